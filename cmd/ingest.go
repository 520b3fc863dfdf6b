package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/permit-cli/internal/ingest"
	"github.com/sells-group/permit-cli/internal/report"
	"github.com/sells-group/permit-cli/internal/store"
)

var (
	ingestLimit  int
	ingestDryRun bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <source>",
	Short: "Ingest permits from one source into the lead store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sourceKey := args[0]

		reg, err := newRegistry(cfg)
		if err != nil {
			return err
		}
		adapter, err := reg.Adapter(sourceKey)
		if err != nil {
			return err
		}

		var st store.Store
		if !ingestDryRun {
			s, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		orch := ingest.New(adapter, st, ingest.Options{DryRun: ingestDryRun})
		result, runErr := orch.Run(ctx, ingestLimit)

		status := "ok"
		errMsg := ""
		if runErr != nil {
			status = "failed"
			errMsg = runErr.Error()
		}
		if _, err := report.Write(cfg.Report.LogDir, report.Summary{
			Mode:   "ingest",
			Status: status,
			Source: sourceKey,
			Counts: result,
			Error:  errMsg,
		}); err != nil {
			zap.L().Warn("failed to write run summary", zap.Error(err))
		}

		if runErr != nil {
			return eris.Wrapf(runErr, "ingest %s", sourceKey)
		}

		zap.L().Info("ingest finished",
			zap.String("source", sourceKey),
			zap.Int("fetched", result.Fetched),
			zap.Int("inserted", result.Inserted),
			zap.Int("updated", result.Updated),
			zap.Int("skipped", result.Skipped),
			zap.Bool("dry_run", result.DryRun),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "max records to fetch (0 = source default)")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "fetch and normalize without writing to the store")
	rootCmd.AddCommand(ingestCmd)
}
