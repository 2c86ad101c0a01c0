package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/erazemk/vestique/internal/marketplace"
	"github.com/erazemk/vestique/internal/model"
)

func newListingsCommand(ctx *commandContext) *cobra.Command {
	listingsCmd := &cobra.Command{
		Use:   "listings",
		Short: "Manage marketplace listings",
	}

	listingsCmd.AddCommand(newListingsMigrateCommand(ctx))
	listingsCmd.AddCommand(newListingsTokenCommand(ctx))

	return listingsCmd
}

func newListingsMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move items that have not been worn for a while to listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withTracker(cmd, func(s *session) error {
				moved, err := s.tracker.MigrateListings(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(moved) == 0 {
					fmt.Fprintln(out, "No items to list")
					return nil
				}
				printItems(out, model.CollectionListings, moved, s.cfg.Lifecycle.ResetPeriodDays, time.Now())
				return nil
			})
		},
	}
}

func newListingsTokenCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "token <listing id>",
		Short: "Issue a claim token for a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 0 {
				return fmt.Errorf("invalid listing id %q", args[0])
			}
			return ctx.withTracker(cmd, func(s *session) error {
				if _, err := s.tracker.Get(model.CollectionListings, id); err != nil {
					return err
				}
				secret, ttl, err := claimSettings(cmd.Context(), s)
				if err != nil {
					return err
				}
				token, err := marketplace.IssueClaim(secret, id, ttl)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
}
