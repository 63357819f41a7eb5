package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hootmeow/openvas-strix/internal/sampledata"
)

func main() {
	var outDir string

	cmd := &cobra.Command{
		Use:   "sample-data",
		Short: "Write synthetic OpenVAS XML reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := sampledata.Generate(outDir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "samples", "output directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
