package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hootmeow/openvas-strix/internal/feed"
)

func newKEVCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "kev-update",
		Short: "Flag stored vulnerabilities listed in the CISA KEV catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client := &http.Client{Timeout: time.Duration(st.cfg.KEV.TimeoutSeconds) * time.Second}
			updated, err := feed.UpdateKEV(cmd.Context(), a.store, client, st.cfg.KEV.URL, st.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d vulnerabilities\n", updated)
			return nil
		},
	}
}
