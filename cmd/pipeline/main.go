// Package main provides the pipeline binary. It classifies a company feed
// against a taxonomy version, materializes the resulting graph edges and
// inspects stored results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Company sector classification pipeline",
		Long: `Pipeline classifies companies into a versioned sector taxonomy by fusing
revenue segments, external industry codes, embedding similarity, reranking
and an LLM arbiter, then materializes the company graph edges.

Configuration is read from config.toml in the working directory, the
config.<FINPUT_ENV>.toml overlay and FINPUT_* environment variables.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(runCmd(), holdsCmd(), edgesCmd())
	return cmd
}
