package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the task store schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStorage(cmd, opts, func(st *storage) error {
					if err := st.migrate(cmd.Context()); err != nil {
						return fmt.Errorf("migrate up: %w", err)
					}
					return printVersion(cmd, st)
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back the given number of migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("steps must be a positive integer, got %q", args[0])
					}
					steps = n
				}
				return withStorage(cmd, opts, func(st *storage) error {
					if err := st.rollback(cmd.Context(), steps); err != nil {
						return fmt.Errorf("migrate down: %w", err)
					}
					return printVersion(cmd, st)
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStorage(cmd, opts, func(st *storage) error {
					return printVersion(cmd, st)
				})
			},
		},
	)
	return cmd
}

// withStorage opens the store without migrating it.
func withStorage(cmd *cobra.Command, opts *rootOptions, fn func(st *storage) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	closeLog := setupLogger(os.Stderr, cfg.Logging)
	defer closeLog.Close()

	st, err := openStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.store.Close() }()
	return fn(st)
}

func printVersion(cmd *cobra.Command, st *storage) error {
	v, err := st.version(cmd.Context())
	if err != nil {
		return fmt.Errorf("migration version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
	return nil
}
