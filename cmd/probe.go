package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/permit-cli/internal/probe"
	"github.com/sells-group/permit-cli/internal/report"
	"github.com/sells-group/permit-cli/internal/store"
)

var (
	probeDryRun  bool
	probeHistory int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Probe every configured source and record health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var st store.Store
		if !probeDryRun {
			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		if probeHistory > 0 {
			if st == nil {
				return eris.New("--history requires a store (drop --dry-run)")
			}
			return printHealthHistory(cmd, st, probeHistory)
		}

		reg, err := newRegistry(cfg)
		if err != nil {
			return err
		}
		adapters, err := reg.Adapters()
		if err != nil {
			return err
		}

		prober := probe.New(adapters, st)
		result, err := prober.Run(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tSTATUS\tLATENCY\tRECORDS\tERROR")
		for _, r := range result.Records {
			latency := "-"
			if r.LatencyMs != nil {
				latency = fmt.Sprintf("%dms", *r.LatencyMs)
			}
			records := "-"
			if r.RecordsAvailable != nil {
				records = fmt.Sprintf("%d", *r.RecordsAvailable)
			}
			errMsg := ""
			if r.Error != nil {
				errMsg = *r.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Source, r.Status, latency, records, errMsg)
		}
		w.Flush()

		status := "ok"
		if !result.AllReachable() {
			status = "failed"
		}
		if _, err := report.Write(cfg.Report.LogDir, report.Summary{
			Mode:   "probe",
			Status: status,
			Counts: result,
		}); err != nil {
			zap.L().Warn("failed to write run summary", zap.Error(err))
		}

		// Health visibility survives partial outages: persistence already
		// happened, an offline source still fails the run.
		if !result.AllReachable() {
			return eris.Errorf("%d of %d sources offline", result.Offline, len(result.Records))
		}
		return nil
	},
}

func printHealthHistory(cmd *cobra.Command, st store.Store, limit int) error {
	records, err := st.ListHealthRecords(cmd.Context(), "", limit)
	if err != nil {
		return eris.Wrap(err, "list health history")
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHECKED\tSOURCE\tSTATUS\tLATENCY\tRECORDS")
	for _, r := range records {
		latency := "-"
		if r.LatencyMs != nil {
			latency = fmt.Sprintf("%dms", *r.LatencyMs)
		}
		count := "-"
		if r.RecordsAvailable != nil {
			count = fmt.Sprintf("%d", *r.RecordsAvailable)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.CheckedAt.Format("2006-01-02 15:04:05"), r.Source, r.Status, latency, count)
	}
	return w.Flush()
}

func init() {
	probeCmd.Flags().BoolVar(&probeDryRun, "dry-run", false, "probe without persisting health records")
	probeCmd.Flags().IntVar(&probeHistory, "history", 0, "print the last N health records instead of probing")
	rootCmd.AddCommand(probeCmd)
}
