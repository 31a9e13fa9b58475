package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/starsim/internal/adapters/repository"
)

func newImportCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.yaml",
		Short: "Replace the database contents with a YAML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFile(args[0]); err != nil {
				return err
			}
			snap, err := repository.ReadSnapshotFile(args[0])
			if err != nil {
				return err
			}

			svc, err := openService(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			defer svc.Stop()

			counts, err := svc.LoadSnapshot(cmd.Context(), snap)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d contracts, %d measure rows, %d cut points into %s\n",
				counts.Contracts, counts.Rows, counts.CutPoints, flags.db)
			return nil
		},
	}
}
