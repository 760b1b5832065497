// Package main provides the migrate binary, which applies the embedded
// schema migrations to the pipeline database.
package main

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

const envDSN = "FINPUT_DB_DSN"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// resolveDSN prefers the flag, then FINPUT_DB_DSN, then a URL assembled from
// the FINPUT_DB_* variables the pipeline itself reads.
func resolveDSN(flagDSN string) (string, error) {
	if flagDSN != "" {
		return flagDSN, nil
	}
	if v := os.Getenv(envDSN); v != "" {
		return v, nil
	}

	var cfg database.Config
	if err := cfg.Finalize(config.DatabaseEnv); err != nil {
		return "", fmt.Errorf("database config: %w", err)
	}
	return cfg.URL(), nil
}

func rootCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply pipeline schema migrations",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", "", "database connection string (default: "+envDSN+" or FINPUT_DB_*)")

	// migrator opens a migrator for the resolved database and runs fn.
	migrator := func(fn func(cmd *cobra.Command, m *migrate.Migrate, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			url, err := resolveDSN(dsn)
			if err != nil {
				return err
			}
			source, err := iofs.New(migrations, "migrations")
			if err != nil {
				return fmt.Errorf("migration source: %w", err)
			}
			m, err := migrate.NewWithSourceInstance("iofs", source, url)
			if err != nil {
				return fmt.Errorf("create migrator: %w", err)
			}
			defer m.Close()
			return fn(cmd, m, args)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: migrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				if err := ignoreNoChange(m.Up()); err != nil {
					return fmt.Errorf("up: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert all migrations",
			Args:  cobra.NoArgs,
			RunE: migrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				if err := ignoreNoChange(m.Down()); err != nil {
					return fmt.Errorf("down: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations reverted")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or revert them when N is negative",
			Long:  "Steps applies N pending migrations. A negative N reverts; pass it after --, as in: migrate steps -- -1",
			Args:  numberArg,
			RunE: migrator(func(cmd *cobra.Command, m *migrate.Migrate, args []string) error {
				n, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				if err := ignoreNoChange(m.Steps(n)); err != nil {
					return fmt.Errorf("steps %d: %w", n, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration steps\n", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: migrator(func(cmd *cobra.Command, m *migrate.Migrate, _ []string) error {
				v, dirty, err := m.Version()
				if errors.Is(err, migrate.ErrNilVersion) {
					fmt.Fprintln(cmd.OutOrStdout(), "version: none")
					return nil
				}
				if err != nil {
					return fmt.Errorf("version: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d, dirty: %v\n", v, dirty)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Long:  "Force records VERSION as applied and clears the dirty flag. Use it only to recover from a failed migration.",
			Args:  numberArg,
			RunE: migrator(func(cmd *cobra.Command, m *migrate.Migrate, args []string) error {
				v, err := parseVersion(args[0])
				if err != nil {
					return err
				}
				if err := m.Force(v); err != nil {
					return fmt.Errorf("force %d: %w", v, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "forced to version %d\n", v)
				return nil
			}),
		},
	)

	return cmd
}

// numberArg accepts exactly one integer argument.
func numberArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	_, err := parseVersion(args[0])
	return err
}

func parseVersion(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
