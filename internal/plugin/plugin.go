// Package plugin defines the contract between report plugins and whatever
// persists the entities they create.
package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Sink receives the entities a plugin creates. IDs are opaque to the plugin.
type Sink interface {
	CreateHost(ctx context.Context, ip string, hostnames []string) (string, error)
	CreateServiceOnHost(ctx context.Context, hostID, name, protocol string, ports []string) (string, error)
	CreateVulnOnHost(ctx context.Context, hostID string, v Vuln) error
	CreateWebVulnOnService(ctx context.Context, hostID, serviceID string, v WebVuln) error
	CreateVulnOnService(ctx context.Context, hostID, serviceID string, v Vuln) error
}

// Vuln is a vulnerability as handed to a Sink.
type Vuln struct {
	Name        string
	Description string
	Severity    string
	Resolution  string
	References  []string
}

// WebVuln is a Vuln found on a web service.
type WebVuln struct {
	Vuln
	Website string
}

// Plugin turns one tool's output into Sink calls.
type Plugin interface {
	ID() string
	Name() string
	MatchesCommand(command string) bool
	ParseOutput(ctx context.Context, run *RunContext, output []byte, sink Sink) (*Summary, error)
}

// RunContext identifies one plugin invocation.
type RunContext struct {
	ReportID   string
	PluginID   string
	OutputPath string
	StartedAt  time.Time
}

// NewRunContext allocates a fresh report ID and the path the run's raw output
// is kept at inside dataDir.
func NewRunContext(pluginID, dataDir string) *RunContext {
	id := uuid.NewString()
	name := fmt.Sprintf("%s_output-%s.xml", strings.ToLower(pluginID), id)
	return &RunContext{
		ReportID:   id,
		PluginID:   pluginID,
		OutputPath: filepath.Join(dataDir, name),
		StartedAt:  time.Now(),
	}
}

// RunContextForFile wraps an existing report file without copying it.
func RunContextForFile(pluginID, path string) *RunContext {
	return &RunContext{
		ReportID:   uuid.NewString(),
		PluginID:   pluginID,
		OutputPath: path,
		StartedAt:  time.Now(),
	}
}

// Summary counts what a run created.
type Summary struct {
	Hosts      int
	Services   int
	Vulns      int
	Ignored    int
	BySeverity map[string]int
}

func NewSummary() *Summary {
	return &Summary{BySeverity: make(map[string]int)}
}

// Text makes s safe to hand to a Sink: invalid UTF-8 sequences are replaced.
func Text(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

// TextAll applies Text to every element.
func TextAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = Text(s)
	}
	return out
}
