package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/planner"
	"github.com/spf13/cobra"
)

type autoAssignOptions struct {
	Strategy      string
	Gender        string
	Category      string
	Parish        string
	Buildings     []string
	Roommates     bool
	IncludeHoused bool
	DryRun        bool
}

func newAutoAssignCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &autoAssignOptions{}

	cmd := &cobra.Command{
		Use:   "auto-assign",
		Short: "Place unhoused participants into eligible rooms",
		Long: `Plan placements for the roster and commit them room by room.

With --dry-run the plan is printed and nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.autoAssign.Run(cmd.Context(), opts.request())
			if err != nil {
				return err
			}
			printAutoAssignResult(cmd.OutOrStdout(), result, opts.DryRun)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Strategy, "strategy", string(planner.FillRooms), "placement strategy (fill_rooms|balance_rooms|parish_together)")
	flags.StringVar(&opts.Gender, "gender", "", "only place participants of this gender")
	flags.StringVar(&opts.Category, "category", "", "only place participants of this category")
	flags.StringVar(&opts.Parish, "parish", "", "only place participants of this parish")
	flags.StringSliceVar(&opts.Buildings, "building", nil, "restrict placement to these building ids")
	flags.BoolVar(&opts.Roommates, "roommates", false, "honor roommate requests")
	flags.BoolVar(&opts.IncludeHoused, "include-housed", false, "also consider participants that already hold beds")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "print the plan without committing it")

	return cmd
}

func (o *autoAssignOptions) request() application.AutoAssignRequest {
	return application.AutoAssignRequest{
		Gender:                  housing.Gender(strings.ToLower(strings.TrimSpace(o.Gender))),
		Category:                housing.Category(strings.ToLower(strings.TrimSpace(o.Category))),
		ParishID:                strings.TrimSpace(o.Parish),
		BuildingIDs:             o.Buildings,
		Strategy:                planner.Strategy(strings.ToLower(strings.TrimSpace(o.Strategy))),
		HonorRoommatePreference: o.Roommates,
		OnlyUnassigned:          !o.IncludeHoused,
		DryRun:                  o.DryRun,
	}
}

func printAutoAssignResult(out io.Writer, result application.AutoAssignResult, dryRun bool) {
	if dryRun {
		for _, p := range result.Proposals {
			fmt.Fprintf(out, "room %s <- %s (%d beds)\n", p.RoomNumber, p.Label, p.Beds)
		}
	}
	verb := "assigned"
	if dryRun {
		verb = "would assign"
	}
	fmt.Fprintf(out, "%s: %d beds, skipped: %d beds\n", verb, result.Assigned, result.Skipped)
	for _, msg := range result.Errors {
		fmt.Fprintf(out, "  %s\n", msg)
	}
	if result.Cancelled {
		fmt.Fprintln(out, "run cancelled before all proposals were committed")
	}
}
