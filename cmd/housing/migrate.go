package main

import (
	"fmt"

	"github.com/example/housing-allocator/internal/logging"
	"github.com/spf13/cobra"
)

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			status, err := store.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "database: %s\n", cfg.Database.Path)
			fmt.Fprintf(out, "current version: %s\n", status.CurrentVersion)
			fmt.Fprintf(out, "applied: %d, pending: %d\n", len(status.Applied), len(status.Pending))
			if statusOnly {
				for _, applied := range status.Applied {
					fmt.Fprintf(out, "  %s applied %s\n", applied.Version, applied.AppliedAt.Format("2006-01-02 15:04:05"))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "list applied migrations")
	return cmd
}
