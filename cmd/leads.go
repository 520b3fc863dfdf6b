package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/permit-cli/internal/model"
)

var (
	leadsSource   string
	leadsTrade    string
	leadsMinScore int
	leadsLimit    int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List stored leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, model.LeadFilter{
			Source:   leadsSource,
			Trade:    model.Trade(leadsTrade),
			MinScore: leadsMinScore,
			Limit:    leadsLimit,
		})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tID\tTRADE\tVALUE\tSCORE\tLABEL\tADDRESS")
		for _, l := range leads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
				l.Source, l.ExternalID, l.Trade, l.Value, l.Score, l.Label, l.Address)
		}
		return w.Flush()
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsSource, "source", "", "filter by source key")
	leadsCmd.Flags().StringVar(&leadsTrade, "trade", "", "filter by trade category")
	leadsCmd.Flags().IntVar(&leadsMinScore, "min-score", 0, "filter by minimum score")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "max leads to list")
	rootCmd.AddCommand(leadsCmd)
}
