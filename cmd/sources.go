package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured permit sources",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := newRegistry(cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tTYPE\tTIMEOUT\tNAME\tURL")
		for _, s := range reg.Sources() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Key, s.Type, s.Timeout(), s.Name, s.URL)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
