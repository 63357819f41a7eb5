package openvas

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/hootmeow/openvas-strix/internal/plugin"
)

const (
	PluginID      = "Openvas"
	PluginName    = "Openvas XML Output Plugin"
	PluginVersion = "0.3"
)

var commandPattern = regexp.MustCompile(`^(openvas|sudo openvas|\./openvas)`)

// Plugin feeds OpenVAS XML reports into a plugin.Sink.
type Plugin struct {
	services ServiceTable
	log      logrus.FieldLogger
}

var _ plugin.Plugin = (*Plugin)(nil)

// NewPlugin returns a plugin resolving unknown services through table.
// A nil logger falls back to the logrus standard logger.
func NewPlugin(table ServiceTable, log logrus.FieldLogger) *Plugin {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Plugin{
		services: table,
		log:      log.WithField("plugin", PluginID),
	}
}

func (p *Plugin) ID() string      { return PluginID }
func (p *Plugin) Name() string    { return PluginName }
func (p *Plugin) Version() string { return PluginVersion }

// MatchesCommand reports whether a shell command line runs the scanner.
func (p *Plugin) MatchesCommand(command string) bool {
	return commandPattern.MatchString(command)
}

// ParseOutput creates every host declared in the report, then one host per
// unseen subnet, one service per unseen (subnet, port) and a vulnerability
// per finding whose severity is not ignored.
func (p *Plugin) ParseOutput(ctx context.Context, run *plugin.RunContext, output []byte, sink plugin.Sink) (*plugin.Summary, error) {
	log := p.log
	if run != nil {
		log = log.WithField("report_id", run.ReportID)
	}
	summary := plugin.NewSummary()

	report := Parse(output)
	if err := report.Err(); err != nil {
		log.WithError(err).Warn("Discarding report that is not well-formed XML")
		return summary, nil
	}

	ids := make(map[string]string)
	for _, ip := range report.HostIPs() {
		id, err := sink.CreateHost(ctx, plugin.Text(ip), plugin.TextAll(report.Hosts[ip].Hostnames))
		if err != nil {
			return summary, fmt.Errorf("create host %s: %w", ip, err)
		}
		ids[ip] = id
		summary.Hosts++
	}

	for f := range report.Findings(p.services) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := p.emit(ctx, f, ids, sink, summary); err != nil {
			return summary, err
		}
	}

	log.WithFields(logrus.Fields{
		"hosts":    summary.Hosts,
		"services": summary.Services,
		"vulns":    summary.Vulns,
		"ignored":  summary.Ignored,
	}).Info("Parsed report")
	return summary, nil
}

func (p *Plugin) emit(ctx context.Context, f Finding, ids map[string]string, sink plugin.Sink, summary *plugin.Summary) error {
	hostID, ok := ids[f.Subnet]
	if !ok {
		id, err := sink.CreateHost(ctx, plugin.Text(f.Subnet), plugin.TextAll([]string{f.Host}))
		if err != nil {
			return fmt.Errorf("create host %s: %w", f.Subnet, err)
		}
		hostID = id
		ids[f.Subnet] = id
		summary.Hosts++
	}

	vuln := plugin.Vuln{
		Name:        plugin.Text(f.Name),
		Description: plugin.Text(f.Description),
		Severity:    plugin.Text(f.Severity.String()),
		Resolution:  plugin.Text(f.Resolution),
		References:  plugin.TextAll(f.References),
	}
	ignored := f.Severity.Ignored()

	if f.HostScoped() {
		if ignored {
			summary.Ignored++
			return nil
		}
		if err := sink.CreateVulnOnHost(ctx, hostID, vuln); err != nil {
			return fmt.Errorf("create vuln %q on host %s: %w", f.Name, f.Subnet, err)
		}
		p.count(summary, f)
		return nil
	}

	key := f.Subnet + "_" + f.Port
	serviceID, ok := ids[key]
	if !ok {
		id, err := sink.CreateServiceOnHost(ctx, hostID, plugin.Text(f.Service), plugin.Text(f.Protocol), []string{plugin.Text(f.Port)})
		if err != nil {
			return fmt.Errorf("create service %s/%s on host %s: %w", f.Port, f.Protocol, f.Subnet, err)
		}
		serviceID = id
		ids[key] = id
		summary.Services++
	}

	if ignored {
		summary.Ignored++
		return nil
	}

	var err error
	if IsWeb(f.Service, f.Port) {
		err = sink.CreateWebVulnOnService(ctx, hostID, serviceID, plugin.WebVuln{Vuln: vuln, Website: plugin.Text(f.Host)})
	} else {
		err = sink.CreateVulnOnService(ctx, hostID, serviceID, vuln)
	}
	if err != nil {
		return fmt.Errorf("create vuln %q on %s:%s: %w", f.Name, f.Subnet, f.Port, err)
	}
	p.count(summary, f)
	return nil
}

func (p *Plugin) count(summary *plugin.Summary, f Finding) {
	summary.Vulns++
	summary.BySeverity[f.Severity.String()]++
}
