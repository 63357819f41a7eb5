package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hootmeow/openvas-strix/internal/openvas"
	"github.com/hootmeow/openvas-strix/internal/plugin"
	"github.com/hootmeow/openvas-strix/internal/storage"
)

const sampleReport = "../openvas/testdata/report.xml"

type recorderMirror struct {
	runs []string
	rec  plugin.Recorder
}

func (m *recorderMirror) SinkFor(run *plugin.RunContext) plugin.Sink {
	m.runs = append(m.runs, run.ReportID)
	return &m.rec
}

func newTestIngester(t *testing.T, opts ...Option) (*Ingester, *storage.SQLiteStore, *test.Hook) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "strix.db"))
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate())
	t.Cleanup(func() { _ = store.Close() })

	log, hook := test.NewNullLogger()
	p := openvas.NewPlugin(openvas.DefaultServiceTable, log)
	opts = append([]Option{WithDataDir(filepath.Join(t.TempDir(), "reports"))}, opts...)
	return New(store, p, log, opts...), store, hook
}

func TestProcessFileRecordsScan(t *testing.T) {
	mirror := &recorderMirror{}
	ing, store, _ := newTestIngester(t, WithMirror(mirror))

	scan, err := ing.ProcessFile(context.Background(), sampleReport)
	require.NoError(t, err)

	assert.Equal(t, "report.xml", scan.Name)
	assert.Equal(t, SourceCLI, scan.Source)
	assert.Equal(t, openvas.PluginID, scan.Plugin)
	assert.Equal(t, 1, scan.HostCount)
	assert.Equal(t, 4, scan.ServiceCount)
	assert.Equal(t, 1, scan.CriticalCount)
	assert.Equal(t, 1, scan.HighCount)
	assert.Equal(t, 2, scan.MediumCount)
	assert.Equal(t, 1, scan.LowCount)
	assert.Equal(t, 0, scan.OtherCount)
	assert.Equal(t, 1, scan.IgnoredCount)
	assert.False(t, scan.ScanEnd.IsZero())

	vulns, err := store.GetVulnerabilities("")
	require.NoError(t, err)
	assert.Len(t, vulns, 5)
	assert.Equal(t, "Critical", vulns[0].Severity)

	hosts, err := store.GetHosts()
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "web01.example.com,web01", hosts[0].Hostnames)

	require.Equal(t, []string{scan.ReportID}, mirror.runs)
	assert.Len(t, mirror.rec.Calls, 10)
}

func TestProcessReaderSavesUpload(t *testing.T) {
	ing, store, _ := newTestIngester(t)

	f, err := os.Open(sampleReport)
	require.NoError(t, err)
	defer f.Close()

	scan, err := ing.ProcessReader(context.Background(), f, "upload.xml", SourceUpload)
	require.NoError(t, err)
	assert.Equal(t, SourceUpload, scan.Source)
	assert.True(t, strings.HasPrefix(filepath.Base(scan.OutputPath), "openvas_output-"))
	assert.FileExists(t, scan.OutputPath)

	scans, err := store.GetScans()
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, scan.ReportID, scans[0].ReportID)
}

func TestProcessFileWarnsOnEmptyResult(t *testing.T) {
	ing, _, hook := newTestIngester(t)
	path := filepath.Join(t.TempDir(), "not-openvas.xml")
	require.NoError(t, os.WriteFile(path, []byte("<nessus><thing/></nessus>"), 0644))

	scan, err := ing.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, scan.HostCount)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Report produced no hosts or findings" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestProcessFileMissing(t *testing.T) {
	ing, _, _ := newTestIngester(t)
	_, err := ing.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.xml"))
	assert.ErrorContains(t, err, "failed to read report")
}

func TestProcessFileCancelled(t *testing.T) {
	ing, _, _ := newTestIngester(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scan, err := ing.ProcessFile(ctx, sampleReport)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, scan)
	assert.Equal(t, 1, scan.HostCount)
	assert.Zero(t, scan.HighCount)
}

func TestDryRunLeavesStoreUntouched(t *testing.T) {
	ing, store, _ := newTestIngester(t)

	summary, rec, err := ing.DryRun(context.Background(), sampleReport)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Vulns)
	assert.Equal(t, "CreateHost", rec.Calls[0].Method)

	n, err := store.GetHostCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}
