package openvas

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hootmeow/openvas-strix/internal/plugin"
)

func newTestPlugin(t *testing.T) (*Plugin, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	return NewPlugin(DefaultServiceTable, log), hook
}

func TestParseOutputCallSequence(t *testing.T) {
	p, _ := newTestPlugin(t)
	rec := &plugin.Recorder{}

	summary, err := p.ParseOutput(context.Background(), plugin.NewRunContext(PluginID, t.TempDir()), loadReport(t), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"CreateHost",
		"CreateServiceOnHost", "CreateVulnOnService", // 22/tcp High
		"CreateVulnOnHost",                           // general/tcp Alarm
		"CreateServiceOnHost", "CreateWebVulnOnService", // 80/tcp www
		"CreateServiceOnHost", // 443/tcp Log: service only
		"CreateServiceOnHost", "CreateVulnOnService", // 3306/tcp
		"CreateVulnOnService", // second 22/tcp finding reuses the service
	}, rec.Methods())

	host := rec.Calls[0]
	assert.Equal(t, "10.0.0.5", host.IP)
	assert.Equal(t, []string{"web01.example.com", "web01"}, host.Hostnames)

	ssh := rec.Calls[1]
	assert.Equal(t, host.HostID, ssh.HostID)
	assert.Equal(t, "ssh", ssh.Service)
	assert.Equal(t, "tcp", ssh.Protocol)
	assert.Equal(t, []string{"22"}, ssh.Ports)

	vuln := rec.Calls[2]
	assert.Equal(t, ssh.ServiceID, vuln.ServiceID)
	assert.Equal(t, plugin.Vuln{
		Name:        "Weak SSH ciphers",
		Description: "Buffer overflow Remote exploitable",
		Severity:    "High",
		Resolution:  "Apply patch",
		References:  []string{"CVE-2020-1234", "AV:N/AC:L"},
	}, vuln.Vuln)

	assert.Equal(t, "Critical", rec.Calls[3].Vuln.Severity)

	web := rec.Calls[5]
	assert.Equal(t, "10.0.0.5", web.Website)
	assert.Equal(t, rec.Calls[4].ServiceID, web.ServiceID)

	assert.Equal(t, ssh.ServiceID, rec.Calls[9].ServiceID)

	assert.Equal(t, 1, summary.Hosts)
	assert.Equal(t, 4, summary.Services)
	assert.Equal(t, 5, summary.Vulns)
	assert.Equal(t, 1, summary.Ignored)
	assert.Equal(t, map[string]int{"High": 1, "Critical": 1, "Medium": 2, "Low": 1}, summary.BySeverity)
}

func TestParseOutputIgnoredSeveritiesStillCreateEntities(t *testing.T) {
	data := []byte(`<report><report><results>
		<result><host>10.0.0.2</host><port>general/tcp</port><threat>Log</threat><nvt oid="1"><name>Traceroute</name></nvt></result>
		<result><host>10.0.0.2</host><port>22/tcp</port><threat>Debug</threat><nvt oid="2"><name>SSH banner</name></nvt></result>
	</results></report></report>`)

	p, _ := newTestPlugin(t)
	rec := &plugin.Recorder{}
	summary, err := p.ParseOutput(context.Background(), nil, data, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"CreateHost", "CreateServiceOnHost"}, rec.Methods())
	assert.Equal(t, "10.0.0.2", rec.Calls[0].IP)
	assert.Equal(t, []string{"10.0.0.2"}, rec.Calls[0].Hostnames)
	assert.Equal(t, "ssh", rec.Calls[1].Service)
	assert.Equal(t, 2, summary.Ignored)
	assert.Zero(t, summary.Vulns)
}

func TestParseOutputSubnetHosts(t *testing.T) {
	data := []byte(`<report><report>
		<host><ip>10.0.0.3</ip></host>
		<results>
			<result><host>10.0.0.3</host><subnet>10.0.0.0</subnet><port>general/tcp</port><threat>High</threat><nvt oid="1"><name>A</name></nvt></result>
			<result><host>10.0.0.4</host><subnet>10.0.0.0</subnet><port>general/tcp</port><threat>High</threat><nvt oid="2"><name>B</name></nvt></result>
			<result><host>10.0.0.3</host><port>general/tcp</port><threat>High</threat><nvt oid="3"><name>C</name></nvt></result>
		</results>
	</report></report>`)

	p, _ := newTestPlugin(t)
	rec := &plugin.Recorder{}
	_, err := p.ParseOutput(context.Background(), nil, data, rec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"CreateHost",                     // declared host 10.0.0.3
		"CreateHost", "CreateVulnOnHost", // subnet 10.0.0.0, hostnames [10.0.0.3]
		"CreateVulnOnHost",
		"CreateVulnOnHost",
	}, rec.Methods())
	declared, subnet := rec.Calls[0], rec.Calls[1]
	assert.Equal(t, "10.0.0.0", subnet.IP)
	assert.Equal(t, []string{"10.0.0.3"}, subnet.Hostnames)
	assert.Equal(t, subnet.HostID, rec.Calls[2].HostID)
	assert.Equal(t, subnet.HostID, rec.Calls[3].HostID)
	assert.Equal(t, declared.HostID, rec.Calls[4].HostID)
}

func TestParseOutputMalformed(t *testing.T) {
	p, hook := newTestPlugin(t)
	rec := &plugin.Recorder{}

	summary, err := p.ParseOutput(context.Background(), nil, []byte("<<< definitely not xml"), rec)
	require.NoError(t, err)
	assert.Empty(t, rec.Calls)
	assert.Zero(t, summary.Hosts)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

type failingSink struct {
	plugin.Recorder
}

func (f *failingSink) CreateServiceOnHost(context.Context, string, string, string, []string) (string, error) {
	return "", errors.New("disk full")
}

func TestParseOutputSinkError(t *testing.T) {
	p, _ := newTestPlugin(t)

	_, err := p.ParseOutput(context.Background(), nil, loadReport(t), &failingSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "22/tcp")
}

func TestParseOutputCancelled(t *testing.T) {
	p, _ := newTestPlugin(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ParseOutput(ctx, nil, loadReport(t), &plugin.Recorder{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchesCommand(t *testing.T) {
	p, _ := newTestPlugin(t)
	assert.True(t, p.MatchesCommand("openvas -T xml"))
	assert.True(t, p.MatchesCommand("sudo openvas --scan-start"))
	assert.True(t, p.MatchesCommand("./openvas"))
	assert.False(t, p.MatchesCommand("nmap -sV 10.0.0.1"))
	assert.False(t, p.MatchesCommand(" openvas"))
}

func TestPluginIdentity(t *testing.T) {
	p, _ := newTestPlugin(t)
	assert.Equal(t, "Openvas", p.ID())
	assert.Equal(t, "Openvas XML Output Plugin", p.Name())
	assert.Equal(t, "0.3", p.Version())
}
