package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/vestique/internal/model"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [collection]",
		Short: "List items, outfits or listings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collections := model.Collections
			if len(args) == 1 {
				c, err := model.ParseCollection(args[0])
				if err != nil {
					return err
				}
				collections = []model.Collection{c}
			}

			return ctx.withTracker(cmd, func(s *session) error {
				out := cmd.OutOrStdout()
				now := time.Now()
				for i, c := range collections {
					items, err := s.tracker.List(c)
					if err != nil {
						return err
					}
					if i > 0 {
						fmt.Fprintln(out)
					}
					printItems(out, c, items, s.cfg.Lifecycle.ResetPeriodDays, now)
				}
				return nil
			})
		},
	}
}

func printItems(out io.Writer, c model.Collection, items []model.Item, defaultReset int, now time.Time) {
	fmt.Fprintf(out, "%s (%d)\n", c, len(items))
	if len(items) == 0 {
		return
	}

	if c == model.CollectionListings {
		rows := make([][]string, 0, len(items))
		for _, it := range items {
			source := "-"
			if it.SourceID != nil {
				source = fmt.Sprintf("%s/%d", it.ListedFrom, *it.SourceID)
			}
			listed := "-"
			if it.DateListed != nil {
				listed = relativeTime(*it.DateListed, now)
			}
			rows = append(rows, []string{
				strconv.FormatInt(it.ID, 10),
				it.DisplayName(),
				it.Type,
				source,
				listed,
				strconv.Itoa(it.WearCount),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"ID", "Name", "Type", "From", "Listed", "Wears"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
		))
		return
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		reset := it.EffectiveResetPeriod(defaultReset)
		status := "ready"
		if days := it.DaysSinceWorn(now); !it.NeverWorn() && days < reset {
			status = "rest " + pluralDays(reset-days)
		}
		rows = append(rows, []string{
			strconv.FormatInt(it.ID, 10),
			it.DisplayName(),
			it.Type,
			strconv.Itoa(it.WearCount),
			relativeTime(it.LastWorn, now),
			status,
			strconv.Itoa(it.ViewCount()),
			itemSize(it),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"ID", "Name", "Type", "Wears", "Last worn", "Status", "Views", "Size"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignRight},
	))
}
