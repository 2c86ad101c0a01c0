package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/erazemk/vestique/internal/imaging"
	"github.com/erazemk/vestique/internal/model"
	"github.com/erazemk/vestique/internal/tracker"
)

func newCaptureCommand(ctx *commandContext) *cobra.Command {
	var outfit bool
	var addAs string
	var name string

	cmd := &cobra.Command{
		Use:   "capture <image>",
		Short: "Recognize a photo and record a wear",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, err := readImageFile(args[0])
			if err != nil {
				return err
			}
			collection := wardrobeCollection(outfit)

			return ctx.withTracker(cmd, func(s *session) error {
				res, err := s.tracker.Capture(cmd.Context(), upload.Image, collection)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printResult(out, res)

				if res.State != tracker.StateNew || addAs == "" {
					return nil
				}
				created, err := s.tracker.Create(cmd.Context(), tracker.CreateRequest{
					Collection: collection,
					Image:      upload.Image,
					Blob:       upload.Data,
					Descriptor: res.Descriptor,
					Type:       addAs,
					Name:       name,
				})
				if err != nil {
					return err
				}
				printResult(out, created)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outfit, "outfit", false, "Match against outfits instead of single items")
	cmd.Flags().StringVar(&addAs, "add-as", "", "Add the photo under this type when nothing matches")
	cmd.Flags().StringVar(&name, "name", "", "Name for an item added with --add-as")
	return cmd
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var outfit bool
	var typ, name string
	var resetPeriod int

	cmd := &cobra.Command{
		Use:   "add <image>",
		Short: "Add a new item worn today",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upload, err := readImageFile(args[0])
			if err != nil {
				return err
			}
			return ctx.withTracker(cmd, func(s *session) error {
				res, err := s.tracker.Create(cmd.Context(), tracker.CreateRequest{
					Collection:  wardrobeCollection(outfit),
					Image:       upload.Image,
					Blob:        upload.Data,
					Type:        typ,
					Name:        name,
					ResetPeriod: resetPeriod,
				})
				if err != nil {
					return err
				}
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outfit, "outfit", false, "Add as a full outfit")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "Garment type, e.g. Hoodie")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to the type)")
	cmd.Flags().IntVar(&resetPeriod, "reset-period", 0, "Days before a re-capture counts as a new wear (default from config)")
	return cmd
}

func newViewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "view <collection> <id> <image>",
		Short: "Add another reference photo to an item",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, id, err := parseItemRef(args[0], args[1])
			if err != nil {
				return err
			}
			upload, err := readImageFile(args[2])
			if err != nil {
				return err
			}
			return ctx.withTracker(cmd, func(s *session) error {
				it, err := s.tracker.AddView(cmd.Context(), collection, id, upload.Image, upload.Data)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d views\n", it.DisplayName(), it.ViewCount())
				return nil
			})
		},
	}
}

func readImageFile(path string) (*imaging.ProcessResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	upload, err := imaging.Process(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return upload, nil
}

func wardrobeCollection(outfit bool) model.Collection {
	if outfit {
		return model.CollectionOutfits
	}
	return model.CollectionItems
}

func parseItemRef(collection, id string) (model.Collection, int64, error) {
	c, err := model.ParseCollection(collection)
	if err != nil {
		return "", 0, err
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("invalid item id %q", id)
	}
	return c, n, nil
}

func printResult(out io.Writer, res tracker.Result) {
	switch res.State {
	case tracker.StateNew:
		if res.Item != nil {
			fmt.Fprintf(out, "Added %s #%d (%s)\n", res.Item.DisplayName(), res.Item.ID, res.Item.Type)
		} else {
			fmt.Fprintln(out, "New item: nothing in the wardrobe matches this photo")
		}
	case tracker.StateExisting:
		fmt.Fprintf(out, "Welcome back, %s: worn %s (%.0f%% match)\n",
			res.Item.DisplayName(), timesWorn(res.Item.WearCount), res.Score*100)
	case tracker.StateTooSoon:
		fmt.Fprintf(out, "%s was worn %s; it counts again in %s\n",
			res.Item.DisplayName(), daysAgo(res.DaysSince), pluralDays(res.DaysRemaining))
	case tracker.StateError:
		fmt.Fprintf(out, "Could not analyze the photo: %v\n", res.Err)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
}
