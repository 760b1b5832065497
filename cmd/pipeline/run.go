package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
)

func runCmd() *cobra.Command {
	var (
		feed    string
		dryRun  bool
		workers int
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Classify a company feed and materialize its edges",
		Long: `Run reads a JSON Lines company feed, classifies every company against the
configured taxonomy version and materializes the graph edges the results and
insight reports imply. The batch report is printed as JSON and archived to
blob storage when storage is configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := appOptions{
				Memory:    dryRun,
				Ops:       true,
				LogOutput: cmd.ErrOrStderr(),
				Configure: func(cfg *config.Config) error {
					if cmd.Flags().Changed("workers") {
						if workers < 1 {
							return fmt.Errorf("workers must be positive: %d", workers)
						}
						cfg.Pipeline.Workers = workers
					}
					return nil
				},
			}
			return runBatch(cmd.Context(), feed, opts, strict, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&feed, "feed", "f", "-", "Company feed in JSON Lines (- reads stdin)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Keep results, edges and the report ledger in memory")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Override pipeline.workers")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any company or report failed")

	return cmd
}

func runBatch(ctx context.Context, feed string, opts appOptions, strict bool, stdin io.Reader, stdout io.Writer) error {
	cs, err := readFeed(ctx, feed, stdin)
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, opts)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	m, err := app.Modules(ctx)
	if err != nil {
		return err
	}

	report, runErr := m.Pipeline.Run(ctx, cs)
	if err := writeJSON(stdout, report); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if strict && report.Failed() {
		return fmt.Errorf("run %s: %d failures", report.RunID, len(report.Failures))
	}
	return nil
}

func readFeed(ctx context.Context, path string, stdin io.Reader) ([]companies.Company, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open feed: %w", err)
		}
		defer f.Close()
		r = f
	}

	cs, err := companies.ReadFeed(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", path, err)
	}
	return cs, nil
}
