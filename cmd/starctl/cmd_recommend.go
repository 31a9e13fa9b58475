package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type recommendFlags struct {
	contract string
	year     int
	limit    int
}

func newRecommendCmd(root *rootFlags) *cobra.Command {
	flags := &recommendFlags{}
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Rank a contract-year's measures by improvement impact",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openService(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer svc.Stop()

			recs, err := svc.Recommendations(cmd.Context(), flags.contract, flags.year, flags.limit)
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "#\tMEASURE\tWEIGHT\tSCORE\tSTAR\tPENETRATION")
			for i, r := range recs {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
					i+1, r.Measure, r.Weight, formatScore(r.Score), formatStar(r.Star), formatScore(r.Penetration))
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.contract, "contract", "", "Contract ID (required)")
	f.IntVar(&flags.year, "year", 0, "Rating year (required)")
	f.IntVar(&flags.limit, "limit", 0, "Maximum measures to list (default 10)")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}
