package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/tripplanner/internal/model"
	"github.com/hitoshi/tripplanner/internal/trip"
	"github.com/hitoshi/tripplanner/internal/warning"
)

func (a *cli) warningsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "warnings",
		Aliases: []string{"warning"},
		Short:   "Travel warnings for your itineraries",
	}

	toggle := func(enabled bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			itineraryID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := requireFeature(c.cfg.Features.TravelWarnings, "travel warnings"); err != nil {
					return err
				}
				if err := c.itineraries.ToggleTravelWarnings(ctx, itineraryID, enabled); err != nil {
					return err
				}
				state := "無効"
				if enabled {
					state = "有効"
				}
				fmt.Fprintf(a.out, "旅程 #%d の渡航警告を%sにしました\n", itineraryID, state)
				return nil
			})
		}
	}

	enable := &cobra.Command{
		Use:   "enable ITINERARY_ID",
		Short: "Subscribe the itinerary's locations to travel warnings",
		Args:  cobra.ExactArgs(1),
		RunE:  toggle(true),
	}
	disable := &cobra.Command{
		Use:   "disable ITINERARY_ID",
		Short: "Remove the trips created for the itinerary",
		Args:  cobra.ExactArgs(1),
		RunE:  toggle(false),
	}

	var (
		all        bool
		activeOnly bool
		level      string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List warnings for your trips, or all travel warnings with --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := requireFeature(c.cfg.Features.TravelWarnings, "travel warnings"); err != nil {
					return err
				}
				if all {
					warnings, err := c.warnings.FetchAll(ctx, activeOnly)
					if err != nil {
						return err
					}
					if level != "" {
						warnings = warning.ByLevel(warnings, level)
					}
					return a.printWarnings(warnings)
				}

				email := c.auth.Email()
				if email == "" {
					return model.ErrNotAuthenticated
				}
				userWarnings, err := c.trips.FetchUserWarnings(ctx, email)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(userWarnings)
				}
				tw := a.table()
				fmt.Fprintln(tw, "TRIP\tCOUNTRY\tLEVEL\tTITLE")
				for _, uw := range userWarnings {
					var w model.Warning
					if uw.Warning != nil {
						w = warning.Normalize(*uw.Warning, c.sanitizer)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", uw.TripName, uw.CountryCode, w.WarningLevel, w.Title)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "List all travel warnings instead of those for your trips")
	list.Flags().BoolVar(&activeOnly, "active-only", false, "With --all, only active warnings")
	list.Flags().StringVar(&level, "level", "", "With --all, filter by warning level")

	var detail bool
	country := &cobra.Command{
		Use:   "country CODE",
		Short: "Show the travel warning for a country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(strings.TrimSpace(args[0]))
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := requireFeature(c.cfg.Features.TravelWarnings, "travel warnings"); err != nil {
					return err
				}
				if detail {
					d, err := c.warnings.FetchDetailed(ctx, code)
					if err != nil {
						return err
					}
					if d == nil {
						return fmt.Errorf("warning for %s: %w", code, model.ErrNotFound)
					}
					if a.jsonOutput {
						return a.printJSON(d)
					}
					if d.Warning != nil {
						a.printWarning(*d.Warning)
					}
					for category, lines := range d.CategorizedContent {
						fmt.Fprintf(a.out, "\n[%s]\n", category)
						for _, l := range lines {
							fmt.Fprintln(a.out, l)
						}
					}
					return nil
				}

				w, err := c.warnings.FetchByCountry(ctx, code)
				if err != nil {
					return err
				}
				if w == nil {
					return fmt.Errorf("warning for %s: %w", code, model.ErrNotFound)
				}
				if a.jsonOutput {
					return a.printJSON(w)
				}
				a.printWarning(*w)
				return nil
			})
		},
	}
	country.Flags().BoolVar(&detail, "detail", false, "Include the categorized content")

	trips := &cobra.Command{
		Use:   "trips",
		Short: "List your trips grouped by upcoming, in progress and past",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withContainer(cmd, func(ctx context.Context, c *container) error {
				if err := requireFeature(c.cfg.Features.TravelWarnings, "travel warnings"); err != nil {
					return err
				}
				email := c.auth.Email()
				if email == "" {
					return model.ErrNotAuthenticated
				}
				all, err := c.trips.ListForUser(ctx, email)
				if err != nil {
					return err
				}
				if a.jsonOutput {
					return a.printJSON(all)
				}

				now := time.Now()
				tw := a.table()
				fmt.Fprintln(tw, "STATUS\tID\tNAME\tCOUNTRY\tSTART\tEND\tNOTIFY")
				for _, group := range []struct {
					label string
					trips []model.Trip
				}{
					{"in progress", trip.InProgress(all, now)},
					{"upcoming", trip.Upcoming(all, now)},
					{"past", trip.Past(all, now)},
				} {
					for _, t := range group.trips {
						fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%t\n",
							group.label, t.ID, t.TripName, t.CountryCode, t.StartDate, t.EndDate, t.NotificationsEnabled)
					}
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(enable, disable, list, country, trips)
	return cmd
}

func (a *cli) printWarnings(warnings []model.Warning) error {
	if a.jsonOutput {
		return a.printJSON(warnings)
	}
	tw := a.table()
	fmt.Fprintln(tw, "COUNTRY\tLEVEL\tACTIVE\tUPDATED\tTITLE")
	for _, w := range warnings {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%s\n", w.CountryCode, w.WarningLevel, w.Active, w.LastModified, w.Title)
	}
	return tw.Flush()
}

func (a *cli) printWarning(w model.Warning) {
	fmt.Fprintf(a.out, "%s (%s)\nLevel:   %s\nUpdated: %s\n\n%s\n",
		w.CountryName, w.CountryCode, w.WarningLevel, w.LastModified, w.Situation)
}
