package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/starsim/internal/adapters/repository"
	app "github.com/okian/starsim/internal/app"
	"github.com/okian/starsim/internal/domain/simulation"
	"github.com/okian/starsim/pkg/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootFlags struct {
	db      string
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "starctl",
		Short:         "Compute and simulate CMS star ratings",
		Long:          "starctl loads star-rating snapshots into a SQLite database and\ncomputes summary stars, improvement recommendations and batch comparisons.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.db, "db", "starsim.db", "SQLite database path")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newImportCmd(flags),
		newStarsCmd(flags),
		newRecommendCmd(flags),
		newBatchCmd(flags),
	)
	return root
}

// openService starts a service over the SQLite database named by flags.
func openService(ctx context.Context, cmd *cobra.Command, flags *rootFlags) (*app.Service, error) {
	level := slog.LevelWarn
	if flags.verbose {
		level = slog.LevelDebug
	}
	log := logger.New(logger.WithWriter(cmd.ErrOrStderr()), logger.WithLevel(level))

	store, err := repository.OpenSQLite(ctx, flags.db, repository.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", flags.db, err)
	}
	svc := app.New(app.WithStore(store), app.WithLogger(log))
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

// parseOverrides reads repeated "measure=star" flag values.
func parseOverrides(values []string) ([]simulation.Override, error) {
	out := make([]simulation.Override, 0, len(values))
	for _, v := range values {
		i := strings.LastIndex(v, "=")
		if i <= 0 {
			return nil, fmt.Errorf("override %q: want measure=star", v)
		}
		star, err := strconv.Atoi(strings.TrimSpace(v[i+1:]))
		if err != nil {
			return nil, fmt.Errorf("override %q: star must be an integer", v)
		}
		out = append(out, simulation.Override{Measure: strings.TrimSpace(v[:i]), Star: star})
	}
	return out, nil
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func formatStar(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

func formatScore(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}
	return nil
}
