package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/example/housing-allocator/internal/inventoryio"
	"github.com/spf13/cobra"
)

func newImportCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Create buildings and rooms from an inventory workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			result, err := inventoryio.Import(cmd.Context(), a.inventory, f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "buildings created: %d\n", result.BuildingsCreated)
			fmt.Fprintf(out, "rooms created: %d\n", result.RoomsCreated)
			for _, rowErr := range result.Errors {
				fmt.Fprintf(out, "row %d: %s\n", rowErr.Row, rowErr.Message)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d rows were not imported", len(result.Errors))
			}
			return nil
		},
	}
}

func newExportCommand(rootOpts *rootOptions) *cobra.Command {
	var template bool

	cmd := &cobra.Command{
		Use:   "export <file.xlsx>",
		Short: "Write the inventory, or an empty import template, to a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Create(filepath.Clean(args[0]))
			if err != nil {
				return fmt.Errorf("create workbook: %w", err)
			}

			if template {
				err = inventoryio.WriteTemplate(f)
			} else {
				err = exportInventory(cmd, rootOpts, f)
			}
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&template, "template", false, "write the empty import template instead of the inventory")
	return cmd
}

func exportInventory(cmd *cobra.Command, rootOpts *rootOptions, f *os.File) error {
	a, err := newApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return inventoryio.Export(cmd.Context(), a.inventory, f)
}
