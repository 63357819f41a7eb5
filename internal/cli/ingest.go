package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hootmeow/openvas-strix/internal/ingest"
	"github.com/hootmeow/openvas-strix/internal/plugin"
)

func newIngestCmd(st *state) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ingest <report.xml>...",
		Short: "Import one or more OpenVAS XML reports",
		Long: `Ingest parses each report and stores its hosts, services and
vulnerabilities. With --dry-run nothing is stored; the entities the report
would create are printed instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				return runDryRun(cmd, st, args)
			}

			a, err := st.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			for _, path := range args {
				scan, err := a.ingester.ProcessFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: scan %d, %d hosts, %d services, critical=%d high=%d medium=%d low=%d other=%d ignored=%d\n",
					path, scan.ID, scan.HostCount, scan.ServiceCount,
					scan.CriticalCount, scan.HighCount, scan.MediumCount, scan.LowCount, scan.OtherCount, scan.IgnoredCount)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and print without storing")
	return cmd
}

func runDryRun(cmd *cobra.Command, st *state, paths []string) error {
	p, err := st.newPlugin()
	if err != nil {
		return err
	}
	// The store is never touched on a dry run.
	ing := ingest.New(nil, p, st.log)

	out := cmd.OutOrStdout()
	for _, path := range paths {
		summary, rec, err := ing.DryRun(cmd.Context(), path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "== %s\n", path)
		printCalls(out, rec.Calls)
		printSummary(out, summary)
	}
	return nil
}

func printCalls(w io.Writer, calls []plugin.Call) {
	hosts := make(map[string]string)
	services := make(map[string]string)
	for _, c := range calls {
		switch c.Method {
		case "CreateHost":
			hosts[c.HostID] = c.IP
			fmt.Fprintf(w, "host     %s %v\n", c.IP, c.Hostnames)
		case "CreateServiceOnHost":
			services[c.ServiceID] = fmt.Sprintf("%v/%s", c.Ports, c.Protocol)
			fmt.Fprintf(w, "service  %s %v/%s %s\n", hosts[c.HostID], c.Ports, c.Protocol, c.Service)
		case "CreateVulnOnHost":
			fmt.Fprintf(w, "vuln     %s [%s] %s\n", hosts[c.HostID], c.Vuln.Severity, c.Vuln.Name)
		case "CreateVulnOnService":
			fmt.Fprintf(w, "vuln     %s %s [%s] %s\n", hosts[c.HostID], services[c.ServiceID], c.Vuln.Severity, c.Vuln.Name)
		case "CreateWebVulnOnService":
			fmt.Fprintf(w, "web-vuln %s %s [%s] %s\n", c.Website, services[c.ServiceID], c.Vuln.Severity, c.Vuln.Name)
		}
	}
}

func printSummary(w io.Writer, s *plugin.Summary) {
	fmt.Fprintf(w, "hosts=%d services=%d vulns=%d ignored=%d\n", s.Hosts, s.Services, s.Vulns, s.Ignored)
	severities := make([]string, 0, len(s.BySeverity))
	for sev := range s.BySeverity {
		severities = append(severities, sev)
	}
	sort.Strings(severities)
	for _, sev := range severities {
		fmt.Fprintf(w, "  %-14s %d\n", sev, s.BySeverity[sev])
	}
}
