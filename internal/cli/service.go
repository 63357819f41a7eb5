package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
)

// program adapts serve to the service manager's Start/Stop calls.
type program struct {
	run    func(ctx context.Context) error
	cancel context.CancelFunc
	done   chan error
}

func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() { p.done <- p.run(ctx) }()
	return nil
}

func (p *program) Stop(s service.Service) error {
	p.cancel()
	return <-p.done
}

func serviceConfig(configFile string) (*service.Config, error) {
	args := []string{"service", "run"}
	if configFile != "" {
		abs, err := filepath.Abs(configFile)
		if err != nil {
			return nil, err
		}
		args = append(args, "--config", abs)
	}
	return &service.Config{
		Name:        "openvas-strix",
		DisplayName: "OpenVAS Strix",
		Description: "Imports OpenVAS reports and serves the vulnerability API.",
		Arguments:   args,
	}, nil
}

func newServiceCmd(st *state) *cobra.Command {
	actions := append([]string{"run"}, service.ControlAction[:]...)

	return &cobra.Command{
		Use:       "service <" + strings.Join(actions, "|") + ">",
		Short:     "Install, control or run openvas-strix as a system service",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: actions,
		RunE: func(cmd *cobra.Command, args []string) error {
			svcConfig, err := serviceConfig(st.configFile)
			if err != nil {
				return err
			}
			prg := &program{run: st.serve}
			s, err := service.New(prg, svcConfig)
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}

			if args[0] == "run" {
				return s.Run()
			}
			if err := service.Control(s, args[0]); err != nil {
				return fmt.Errorf("service %s failed: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", args[0])
			return nil
		},
	}
}
