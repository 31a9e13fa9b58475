package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/starsim/internal/domain/aggregation"
)

func newBatchCmd(root *rootFlags) *cobra.Command {
	var year int
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Recompute every published star of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openService(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer svc.Stop()

			results, err := svc.BatchStars(cmd.Context(), year)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CONTRACT\tSTAR TYPE\tCOMPUTED\tPUBLISHED")
			for _, r := range results {
				if r.Error != "" {
					fmt.Fprintf(tw, "%s\t-\t%s\t-\n", r.ContractID, r.Error)
					continue
				}
				for _, c := range r.Comparisons {
					fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.1f\n", r.ContractID, c.Label, c.Rounded, c.Actual)
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), aggregation.Disclaimer)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "Rating year (required)")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}
