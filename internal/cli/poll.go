package cli

import (
	"github.com/spf13/cobra"

	"github.com/hootmeow/openvas-strix/internal/email"
)

func newPollCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Check the mailbox once and ingest attached reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			return email.NewPoller(st.cfg.Email, a.ingester, st.log).CheckEmail(cmd.Context())
		},
	}
}
