package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hootmeow/openvas-strix/internal/models"
	"github.com/hootmeow/openvas-strix/internal/storage"
)

const catalog = `{
  "title": "CISA Catalog of Known Exploited Vulnerabilities",
  "catalogVersion": "2026.10.01",
  "dateReleased": "2026-10-01T12:00:00.000Z",
  "count": 2,
  "vulnerabilities": [
    {"cveID": "CVE-2021-44228", "vendorProject": "Apache", "product": "Log4j2"},
    {"cveID": "CVE-2014-0160", "vendorProject": "OpenSSL", "product": "OpenSSL"}
  ]
}`

func TestUpdateKEV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalog))
	}))
	defer srv.Close()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "strix.db"))
	require.NoError(t, err)
	require.NoError(t, store.AutoMigrate())
	defer store.Close()

	host := &models.Host{IP: "10.0.0.5"}
	require.NoError(t, store.UpsertHost(host))
	for _, v := range []*models.Vulnerability{
		{HostID: host.ID, Name: "Log4Shell", Severity: "Critical", CVEs: "CVE-2021-45046,CVE-2021-44228"},
		{HostID: host.ID, Name: "Stale flag", Severity: "Low", CVEs: "CVE-2000-0001", InKEV: true},
		{HostID: host.ID, Name: "No CVE", Severity: "Medium"},
	} {
		require.NoError(t, store.CreateVulnerability(v))
	}

	log, _ := test.NewNullLogger()
	updated, err := UpdateKEV(context.Background(), store, srv.Client(), srv.URL, log)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	vulns, err := store.GetVulnerabilitiesForHost(host.ID)
	require.NoError(t, err)
	got := map[string]bool{}
	for _, v := range vulns {
		got[v.Name] = v.InKEV
	}
	assert.Equal(t, map[string]bool{"Log4Shell": true, "Stale flag": false, "No CVE": false}, got)

	updated, err = UpdateKEV(context.Background(), store, srv.Client(), srv.URL, log)
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestFetchKEVBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := FetchKEV(context.Background(), srv.Client(), srv.URL)
	assert.ErrorContains(t, err, "503")
}
