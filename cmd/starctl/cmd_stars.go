package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/starsim/internal/domain/aggregation"
	"github.com/okian/starsim/internal/domain/types"
)

type starsFlags struct {
	contract  string
	year      int
	starType  string
	overrides []string
}

func newStarsCmd(root *rootFlags) *cobra.Command {
	flags := &starsFlags{}
	cmd := &cobra.Command{
		Use:   "stars",
		Short: "Compute star ratings for a contract-year",
		Long: "Compute the overall and summary stars of a contract-year, optionally\n" +
			"after replacing measure stars with --override \"measure=star\".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := parseOverrides(flags.overrides)
			if err != nil {
				return err
			}
			starTypes := aggregation.StarTypes
			if flags.starType != "" {
				t, err := aggregation.ParseStarType(flags.starType)
				if err != nil {
					return err
				}
				starTypes = []aggregation.StarType{t}
			}

			svc, err := openService(cmd.Context(), cmd, root)
			if err != nil {
				return err
			}
			defer svc.Stop()

			c, err := svc.Measures(cmd.Context(), flags.contract, flags.year)
			if err != nil {
				return err
			}
			published := map[aggregation.StarType]*float64{
				aggregation.Overall: c.Contract.OverallStar,
				aggregation.PartC:   c.Contract.PartCStar,
				aggregation.PartD:   c.Contract.PartDStar,
			}

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "STAR TYPE\tRAW\tROUNDED\tPUBLISHED")
			for _, t := range starTypes {
				res, err := svc.ComputeStar(cmd.Context(), flags.contract, flags.year, t, overrides)
				switch {
				case errors.Is(err, types.ErrInsufficientData):
					fmt.Fprintf(tw, "%s\t-\tinsufficient data\t%s\n", t.Label(), formatStar(published[t]))
				case err != nil:
					return err
				default:
					fmt.Fprintf(tw, "%s\t%.3f\t%.1f\t%s\n", t.Label(), res.Raw, res.Rounded, formatStar(published[t]))
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), aggregation.Disclaimer)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.contract, "contract", "", "Contract ID (required)")
	f.IntVar(&flags.year, "year", 0, "Rating year (required)")
	f.StringVar(&flags.starType, "type", "", "Star type: overall, part_c or part_d (default all)")
	f.StringArrayVar(&flags.overrides, "override", nil, "Replace a measure star, as measure=star (repeatable)")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}
