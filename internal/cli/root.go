// Package cli implements the openvas-strix command line.
package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hootmeow/openvas-strix/internal/config"
	"github.com/hootmeow/openvas-strix/internal/logger"
)

const defaultConfigFile = "config.yaml"

// state is shared by every subcommand of one root.
type state struct {
	configFile string
	cfg        *config.Config
	log        *logrus.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:   "openvas-strix",
		Short: "Import OpenVAS XML reports into a vulnerability store",
		Long: `openvas-strix parses OpenVAS XML reports, normalizes their findings and
stores hosts, services and vulnerabilities in SQLite.

Quick start:
  openvas-strix ingest report.xml
  openvas-strix ingest --dry-run report.xml
  openvas-strix serve
  openvas-strix kev-update`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load()
		},
	}

	root.PersistentFlags().StringVar(&st.configFile, "config", "",
		"config file (default: ./config.yaml when present)")

	root.AddCommand(
		newIngestCmd(st),
		newServeCmd(st),
		newPollCmd(st),
		newKEVCmd(st),
		newServiceCmd(st),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (st *state) load() error {
	cfg, err := loadConfig(st.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	st.cfg = cfg
	st.log = log
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err != nil {
			return config.FromEnv(), nil
		}
		path = defaultConfigFile
	}
	return config.LoadConfig(path)
}
