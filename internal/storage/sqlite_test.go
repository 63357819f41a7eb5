package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hootmeow/openvas-strix/internal/models"
	"github.com/hootmeow/openvas-strix/internal/plugin"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "strix.db"))
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestScan(t *testing.T, store Store, reportID string) *models.Scan {
	t.Helper()
	scan := &models.Scan{ReportID: reportID, Name: "report.xml", Source: "cli", ScanStart: time.Now()}
	require.NoError(t, store.CreateScan(scan))
	return scan
}

func TestUpsertHostMergesHostnames(t *testing.T) {
	store := newTestStore(t)

	first := &models.Host{IP: "10.0.0.5", Hostnames: "web01"}
	require.NoError(t, store.UpsertHost(first))
	require.NotZero(t, first.ID)

	second := &models.Host{IP: "10.0.0.5", Hostnames: "web01,web01.example.com"}
	require.NoError(t, store.UpsertHost(second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "web01,web01.example.com", second.Hostnames)

	count, err := store.GetHostCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestUpsertServiceKeepsOneRowPerPort(t *testing.T) {
	store := newTestStore(t)
	host := &models.Host{IP: "10.0.0.5"}
	require.NoError(t, store.UpsertHost(host))

	a := &models.Service{HostID: host.ID, Port: "22", Protocol: "tcp", Name: "Unknown"}
	require.NoError(t, store.UpsertService(a))
	b := &models.Service{HostID: host.ID, Port: "22", Protocol: "tcp", Name: "ssh"}
	require.NoError(t, store.UpsertService(b))
	assert.Equal(t, a.ID, b.ID)

	got, err := store.GetHost(host.ID)
	require.NoError(t, err)
	require.Len(t, got.Services, 1)
	assert.Equal(t, "ssh", got.Services[0].Name)
}

func TestVulnerabilitiesSortedBySeverity(t *testing.T) {
	store := newTestStore(t)
	scan := newTestScan(t, store, "r1")
	host := &models.Host{IP: "10.0.0.5"}
	require.NoError(t, store.UpsertHost(host))

	for _, v := range []models.Vulnerability{
		{Name: "b-low", Severity: "Low"},
		{Name: "z-critical", Severity: "Critical"},
		{Name: "a-medium", Severity: "Medium"},
		{Name: "a-critical", Severity: "Critical"},
	} {
		v := v
		v.ScanID = scan.ID
		v.HostID = host.ID
		require.NoError(t, store.CreateVulnerability(&v))
	}

	vulns, err := store.GetVulnerabilities("")
	require.NoError(t, err)
	var names []string
	for _, v := range vulns {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"a-critical", "z-critical", "a-medium", "b-low"}, names)
	assert.Equal(t, "10.0.0.5", vulns[0].Host.IP)

	critical, err := store.GetVulnerabilities("Critical")
	require.NoError(t, err)
	assert.Len(t, critical, 2)

	n, err := store.GetVulnCount("Low")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, store.SetVulnerabilityKEV(critical[0].ID, true))
	forHost, err := store.GetVulnerabilitiesForHost(host.ID)
	require.NoError(t, err)
	assert.True(t, forHost[0].InKEV)
	assert.False(t, forHost[1].InKEV)
}

func TestAddHostToScanIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	scan := newTestScan(t, store, "r1")
	host := &models.Host{IP: "10.0.0.5"}
	require.NoError(t, store.UpsertHost(host))

	require.NoError(t, store.AddHostToScan(host.ID, scan.ID))
	require.NoError(t, store.AddHostToScan(host.ID, scan.ID))

	got, err := store.GetHost(host.ID)
	require.NoError(t, err)
	require.Len(t, got.Scans, 1)
	assert.Equal(t, "r1", got.Scans[0].ReportID)
}

func TestScanRoundTrip(t *testing.T) {
	store := newTestStore(t)
	older := newTestScan(t, store, "older")
	older.ScanStart = time.Now().Add(-time.Hour)
	require.NoError(t, store.UpdateScan(older))
	newer := newTestScan(t, store, "newer")

	newer.HighCount = 3
	newer.ScanEnd = time.Now()
	require.NoError(t, store.UpdateScan(newer))

	got, err := store.GetScan(newer.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.HighCount)

	scans, err := store.GetScans()
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "newer", scans[0].ReportID)

	_, err = store.GetScan(999)
	assert.Error(t, err)
}

func TestSinkPersistsPluginCalls(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	scan := newTestScan(t, store, "r1")
	sink := NewSink(store, scan.ID)

	hostID, err := sink.CreateHost(ctx, "10.0.0.5", []string{"web01"})
	require.NoError(t, err)
	svcID, err := sink.CreateServiceOnHost(ctx, hostID, "http", "tcp", []string{"80"})
	require.NoError(t, err)

	require.NoError(t, sink.CreateVulnOnHost(ctx, hostID, plugin.Vuln{
		Name: "OS End Of Life", Severity: "High",
		References: []string{"CVE-2020-0001, CVE-2020-0002", "AV:N/AC:L"},
	}))
	require.NoError(t, sink.CreateWebVulnOnService(ctx, hostID, svcID, plugin.WebVuln{
		Vuln:    plugin.Vuln{Name: "XSS", Severity: "Medium"},
		Website: "10.0.0.5",
	}))
	require.NoError(t, sink.CreateVulnOnService(ctx, hostID, svcID, plugin.Vuln{Name: "Weak TLS", Severity: "Low"}))

	vulns, err := store.GetVulnerabilitiesForHost(1)
	require.NoError(t, err)
	require.Len(t, vulns, 3)

	eol := vulns[0]
	assert.Equal(t, "OS End Of Life", eol.Name)
	assert.Nil(t, eol.ServiceID)
	assert.Equal(t, "CVE-2020-0001,CVE-2020-0002", eol.CVEs)
	assert.Equal(t, []string{"CVE-2020-0001, CVE-2020-0002", "AV:N/AC:L"}, eol.ReferenceList())
	assert.Equal(t, scan.ID, eol.ScanID)

	xss := vulns[1]
	assert.True(t, xss.Web)
	assert.Equal(t, "10.0.0.5", xss.Website)
	require.NotNil(t, xss.Service)
	assert.Equal(t, "http", xss.Service.Name)

	assert.False(t, vulns[2].Web)

	host, err := store.GetHost(1)
	require.NoError(t, err)
	assert.Len(t, host.Scans, 1)
}

func TestSinkRejectsForeignIDs(t *testing.T) {
	sink := NewSink(newTestStore(t), 1)
	err := sink.CreateVulnOnHost(context.Background(), "not-a-number", plugin.Vuln{})
	assert.ErrorContains(t, err, "invalid entity id")
}
