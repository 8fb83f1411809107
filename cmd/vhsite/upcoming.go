package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vhsite/internal/calendar"
)

var upcomingLimit int

var upcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "Refresh content once and print the next events",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		if err := rt.store.Refresh(ctx); err != nil {
			return err
		}

		limit := rt.cfg.UpcomingLimit
		if upcomingLimit > 0 {
			limit = upcomingLimit
		}
		cal := calendar.New(rt.store.Snapshot().Events,
			calendar.WithLocation(rt.loc),
			calendar.WithWeekStart(calendar.ParseWeekStart(rt.cfg.WeekStart)),
			calendar.WithUpcomingLimit(limit),
		)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, ev := range cal.Upcoming(time.Now()) {
			local := ev.Start.In(rt.loc)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", local.Format("Mon Jan 2"), local.Format("3:04 PM"), ev.Title, ev.Source)
		}
		return tw.Flush()
	},
}

func init() {
	upcomingCmd.Flags().IntVarP(&upcomingLimit, "limit", "n", 0, "Number of events (defaults to upcoming_limit)")
}
