package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hootmeow/openvas-strix/internal/auth"
	"github.com/hootmeow/openvas-strix/internal/email"
	"github.com/hootmeow/openvas-strix/internal/server"
)

func newServeCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the mail poller when enabled)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return st.serve(ctx)
		},
	}
}

// serve runs until ctx is done.
func (st *state) serve(ctx context.Context) error {
	a, err := st.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if st.cfg.Auth.Enabled {
		if err := auth.NewLDAPAuthenticator(st.cfg.Auth).TestConnection(); err != nil {
			st.log.WithError(err).Warn("LDAP server not reachable; logins will fail until it is")
		}
	}

	poller := email.NewPoller(st.cfg.Email, a.ingester, st.log)
	poller.Start(ctx)
	defer poller.Stop()

	return server.New(a.store, a.ingester, st.cfg, st.log).ListenAndServe(ctx)
}
