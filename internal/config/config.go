package config

import (
	"errors"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	TLS      TLSConfig      `yaml:"tls"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	KEV      KEVConfig      `yaml:"kev"`
	Plugin   PluginConfig   `yaml:"plugin"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text, json
	Output     string `yaml:"output"` // stdout, stderr, file
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

type AuthConfig struct {
	Enabled        bool   `yaml:"enabled"`
	LDAPServer     string `yaml:"ldap_server"`
	LDAPPort       int    `yaml:"ldap_port"`
	UseTLS         bool   `yaml:"use_tls"`
	BaseDN         string `yaml:"base_dn"`
	BindUser       string `yaml:"bind_user"`
	BindPassword   string `yaml:"bind_password"`
	UserFilter     string `yaml:"user_filter"`
	SessionMinutes int    `yaml:"session_minutes"`
}

type EmailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	IMAPServer   string `yaml:"imap_server"`
	IMAPPort     int    `yaml:"imap_port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Mailbox      string `yaml:"mailbox"`
	PollInterval int    `yaml:"poll_interval_seconds"` // Seconds
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type KEVConfig struct {
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type PluginConfig struct {
	// DataDir keeps the raw report of every run (uploads, mail attachments).
	DataDir string `yaml:"data_dir"`
	// PortMapFile is an /etc/services style table; empty uses the built-in one.
	PortMapFile string `yaml:"port_map_file"`
}

const DefaultKEVURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

// Default returns the configuration used for anything the file leaves out.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "data/openvas-strix.db"},
		Log:      LogConfig{Level: "info", Format: "text", Output: "stdout", MaxSize: 100, MaxBackups: 5, MaxAge: 30},
		Server:   ServerConfig{Port: 8080},
		Auth:     AuthConfig{SessionMinutes: 480},
		Email:    EmailConfig{IMAPPort: 993, Mailbox: "INBOX", PollInterval: 300},
		Kafka:    KafkaConfig{Topic: "openvas-findings"},
		KEV:      KEVConfig{URL: DefaultKEVURL, TimeoutSeconds: 30},
		Plugin:   PluginConfig{DataDir: "data/reports"},
	}
}

// LoadConfig reads the configuration from the given path on top of Default,
// then applies environment overrides (a .env file in the working directory is
// loaded first when present).
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	_ = godotenv.Load()
	cfg.applyEnv()
	return cfg, nil
}

// FromEnv returns Default with environment overrides applied, for running
// without a configuration file.
func FromEnv() *Config {
	_ = godotenv.Load()
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	overrides := map[string]*string{
		"OPENVAS_STRIX_DB_PATH":            &c.Database.Path,
		"OPENVAS_STRIX_DATA_DIR":           &c.Plugin.DataDir,
		"OPENVAS_STRIX_EMAIL_PASSWORD":     &c.Email.Password,
		"OPENVAS_STRIX_LDAP_BIND_PASSWORD": &c.Auth.BindPassword,
		"OPENVAS_STRIX_LOG_LEVEL":          &c.Log.Level,
	}
	for key, field := range overrides {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*field = v
		}
	}
}
