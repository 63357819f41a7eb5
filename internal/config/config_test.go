package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "data/openvas-strix.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, DefaultKEVURL, cfg.KEV.URL)
	assert.Equal(t, "INBOX", cfg.Email.Mailbox)
	assert.Equal(t, "data/reports", cfg.Plugin.DataDir)
}

func TestLoadConfigSections(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
database:
  path: /var/lib/strix/strix.db
log:
  level: debug
  format: json
  output: file
  file_path: /var/log/strix.log
kafka:
  enabled: true
  brokers: [kafka-1:9092, kafka-2:9092]
  topic: findings
plugin:
  port_map_file: /etc/services
email:
  enabled: true
  imap_server: imap.example.com
  poll_interval_seconds: 60
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/strix/strix.db", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 100, cfg.Log.MaxSize, "unset fields keep defaults")
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "/etc/services", cfg.Plugin.PortMapFile)
	assert.Equal(t, 993, cfg.Email.IMAPPort)
	assert.Equal(t, 60, cfg.Email.PollInterval)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("OPENVAS_STRIX_DB_PATH", "/tmp/override.db")
	t.Setenv("OPENVAS_STRIX_EMAIL_PASSWORD", "s3cret")

	cfg, err := LoadConfig(writeConfig(t, "database:\n  path: ignored.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "s3cret", cfg.Email.Password)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "server: [not, a, map"))
	assert.Error(t, err)
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "# nothing configured\n"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("OPENVAS_STRIX_DB_PATH", "/tmp/env.db")
	cfg := FromEnv()
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
}
