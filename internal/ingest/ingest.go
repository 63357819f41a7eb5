// Package ingest runs report files through the OpenVAS plugin into the store.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hootmeow/openvas-strix/internal/models"
	"github.com/hootmeow/openvas-strix/internal/openvas"
	"github.com/hootmeow/openvas-strix/internal/plugin"
	"github.com/hootmeow/openvas-strix/internal/storage"
)

// Scan sources.
const (
	SourceCLI    = "cli"
	SourceUpload = "upload"
	SourceEmail  = "email"
)

// Mirror provides an extra sink per run, fed alongside the store.
type Mirror interface {
	SinkFor(run *plugin.RunContext) plugin.Sink
}

// Ingester persists reports. It is safe for concurrent use as long as the
// store is.
type Ingester struct {
	store   storage.Store
	plugin  plugin.Plugin
	mirror  Mirror
	dataDir string
	log     logrus.FieldLogger
}

type Option func(*Ingester)

// WithMirror tees every run into m.
func WithMirror(m Mirror) Option {
	return func(i *Ingester) { i.mirror = m }
}

// WithDataDir sets where uploaded reports are kept.
func WithDataDir(dir string) Option {
	return func(i *Ingester) { i.dataDir = dir }
}

func New(store storage.Store, p plugin.Plugin, log logrus.FieldLogger, opts ...Option) *Ingester {
	if log == nil {
		log = logrus.StandardLogger()
	}
	i := &Ingester{
		store:   store,
		plugin:  p,
		dataDir: "data/reports",
		log:     log.WithField("component", "ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewRun allocates a run whose output will be written inside the data dir.
func (i *Ingester) NewRun() *plugin.RunContext {
	return plugin.NewRunContext(i.plugin.ID(), i.dataDir)
}

// ProcessFile ingests a report already on disk.
func (i *Ingester) ProcessFile(ctx context.Context, path string) (*models.Scan, error) {
	run := plugin.RunContextForFile(i.plugin.ID(), path)
	return i.ProcessRun(ctx, run, filepath.Base(path), SourceCLI)
}

// ProcessReader stores r under a fresh run's output path and ingests it.
func (i *Ingester) ProcessReader(ctx context.Context, r io.Reader, name, source string) (*models.Scan, error) {
	run := i.NewRun()
	if err := os.MkdirAll(filepath.Dir(run.OutputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	out, err := os.Create(run.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("failed to save report: %w", err)
	}
	return i.ProcessRun(ctx, run, name, source)
}

// ProcessRun reads run.OutputPath, records a scan and feeds the plugin's
// entities into the store.
func (i *Ingester) ProcessRun(ctx context.Context, run *plugin.RunContext, name, source string) (*models.Scan, error) {
	log := i.log.WithFields(logrus.Fields{"report_id": run.ReportID, "file": name})
	log.Info("Ingesting report")

	data, err := os.ReadFile(run.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	scan := &models.Scan{
		ReportID:   run.ReportID,
		Name:       name,
		Source:     source,
		Plugin:     run.PluginID,
		OutputPath: run.OutputPath,
		ScanStart:  run.StartedAt,
	}
	if err := i.store.CreateScan(scan); err != nil {
		return nil, fmt.Errorf("failed to create scan record: %w", err)
	}

	var sink plugin.Sink = storage.NewSink(i.store, scan.ID)
	if i.mirror != nil {
		sink = plugin.NewTee(sink, i.mirror.SinkFor(run))
	}

	summary, runErr := i.plugin.ParseOutput(ctx, run, data, sink)
	if summary != nil {
		applySummary(scan, summary)
	}
	scan.ScanEnd = time.Now()
	if err := i.store.UpdateScan(scan); err != nil {
		log.WithError(err).Error("Failed to update scan stats")
	}
	if runErr != nil {
		return scan, fmt.Errorf("failed to ingest %s: %w", name, runErr)
	}

	warnIfEmpty(log, data, summary)
	log.WithFields(logrus.Fields{
		"scan_id":  scan.ID,
		"critical": scan.CriticalCount,
		"high":     scan.HighCount,
		"medium":   scan.MediumCount,
		"low":      scan.LowCount,
	}).Info("Ingestion complete")
	return scan, nil
}

// DryRun parses a report without touching the store and returns every call
// the plugin would have made.
func (i *Ingester) DryRun(ctx context.Context, path string) (*plugin.Summary, *plugin.Recorder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read report: %w", err)
	}
	rec := &plugin.Recorder{}
	summary, err := i.plugin.ParseOutput(ctx, plugin.RunContextForFile(i.plugin.ID(), path), data, rec)
	if err != nil {
		return summary, rec, err
	}
	warnIfEmpty(i.log.WithField("file", filepath.Base(path)), data, summary)
	return summary, rec, nil
}

func applySummary(scan *models.Scan, s *plugin.Summary) {
	scan.HostCount = s.Hosts
	scan.ServiceCount = s.Services
	scan.IgnoredCount = s.Ignored
	scan.CriticalCount = s.BySeverity[string(openvas.SeverityCritical)]
	scan.HighCount = s.BySeverity[string(openvas.SeverityHigh)]
	scan.MediumCount = s.BySeverity[string(openvas.SeverityMedium)]
	scan.LowCount = s.BySeverity[string(openvas.SeverityLow)]
	scan.OtherCount = s.Vulns - scan.CriticalCount - scan.HighCount - scan.MediumCount - scan.LowCount
}

// warnIfEmpty flags input that produced nothing at all, which usually means
// the file was not an OpenVAS report.
func warnIfEmpty(log logrus.FieldLogger, data []byte, s *plugin.Summary) {
	if len(bytes.TrimSpace(data)) == 0 || s == nil {
		return
	}
	if s.Vulns == 0 && s.Ignored == 0 && s.Hosts == 0 {
		log.Warn("Report produced no hosts or findings")
	}
}
