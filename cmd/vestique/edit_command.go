package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/vestique/internal/tracker"
)

const dateLayout = "2006-01-02"

func newEditCommand(ctx *commandContext) *cobra.Command {
	var lastWorn, name, typ string
	var wearCount, resetPeriod int

	cmd := &cobra.Command{
		Use:   "edit <collection> <id>",
		Short: "Correct an item's wear history or details",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id, err := parseItemRef(args[0], args[1])
			if err != nil {
				return err
			}

			var e tracker.Edit
			flags := cmd.Flags()
			if flags.Changed("last-worn") {
				t, err := parseDate(lastWorn)
				if err != nil {
					return err
				}
				e.LastWorn = &t
			}
			if flags.Changed("wear-count") {
				e.WearCount = &wearCount
			}
			if flags.Changed("reset-period") {
				e.ResetPeriod = &resetPeriod
			}
			if flags.Changed("name") {
				e.Name = &name
			}
			if flags.Changed("type") {
				e.Type = &typ
			}
			if e == (tracker.Edit{}) {
				return fmt.Errorf("nothing to change; see --help")
			}

			return ctx.withTracker(cmd, func(s *session) error {
				it, err := s.tracker.Update(cmd.Context(), collection, id, e)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s #%d: worn %d times, last %s\n",
					it.DisplayName(), it.ID, it.WearCount, relativeTime(it.LastWorn, time.Now()))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&lastWorn, "last-worn", "", "Last worn date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().IntVar(&wearCount, "wear-count", 0, "Number of times worn")
	cmd.Flags().IntVar(&resetPeriod, "reset-period", 0, "Days before a re-capture counts as a new wear")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&typ, "type", "", "Garment type")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <collection> <id>",
		Short: "Remove an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id, err := parseItemRef(args[0], args[1])
			if err != nil {
				return err
			}
			return ctx.withTracker(cmd, func(s *session) error {
				it, err := s.tracker.Delete(cmd.Context(), collection, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s #%d\n", it.DisplayName(), it.ID)
				return nil
			})
		},
	}
}

func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "annotate [collection id]",
		Short: "Describe items that have no analysis yet",
		Args: cobra.MatchAll(cobra.MaximumNArgs(2), func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return fmt.Errorf("expected both a collection and an id")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withTracker(cmd, func(s *session) error {
				out := cmd.OutOrStdout()
				if len(args) == 2 {
					collection, id, err := parseItemRef(args[0], args[1])
					if err != nil {
						return err
					}
					it, err := s.tracker.Annotate(cmd.Context(), collection, id)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s: %s\n", it.DisplayName(), it.AIAnalysis)
					return nil
				}

				annotated, failures := s.tracker.AnnotateMissing(cmd.Context())
				for _, err := range failures {
					fmt.Fprintf(out, "warning: %v\n", err)
				}
				fmt.Fprintf(out, "Annotated %d items\n", annotated)
				if annotated == 0 && len(failures) > 0 {
					return failures[0]
				}
				return nil
			})
		},
	}
}

// parseDate accepts a calendar date in local time or a full timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}
