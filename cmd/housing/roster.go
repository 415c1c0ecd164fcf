package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/housing-allocator/internal/roster"
	"github.com/spf13/cobra"
)

func newRosterCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage the registration roster stored in the database",
	}
	cmd.AddCommand(newRosterLoadCommand(rootOpts))
	return cmd
}

func newRosterLoadCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <roster.yaml>",
		Short: "Replace the stored roster with the contents of a YAML export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open roster: %w", err)
			}
			defer f.Close()

			participants, err := roster.Decode(f)
			if err != nil {
				return fmt.Errorf("roster %s: %w", args[0], err)
			}

			a, err := newApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Roster().Replace(cmd.Context(), participants); err != nil {
				return err
			}
			a.logger.Info("roster replaced", "participants", len(participants))
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d participants\n", len(participants))
			return nil
		},
	}
}
