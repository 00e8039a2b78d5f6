package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yungbote/coursehub-backend/internal/app"
	"github.com/yungbote/coursehub-backend/internal/services"
)

func newSubscriptionCommand(ctx *commandContext) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Inspect subscription state",
	}
	cmd.PersistentFlags().StringVar(&userID, "user", "", "User id")

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored subscription with lazy expiry applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				sub, err := tk.Services.Subscription.GetSubscription(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, sub)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderSubscription(sub))
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Print whether the user currently has premium access",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				premium := tk.Services.Subscription.IsUserPremium(cmd.Context(), userID)
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"userId": userID, "isPremium": premium})
				}
				if premium {
					fmt.Fprintln(cmd.OutOrStdout(), "premium")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "free")
				}
				return nil
			})
		},
	})
	return cmd
}

func renderSubscription(sub *services.Subscription) string {
	endsAt := "-"
	if sub.EndsAt != nil {
		endsAt = *sub.EndsAt
	}
	since := "-"
	if sub.PremiumSince != nil {
		since = formatTime(*sub.PremiumSince)
	}
	status := string(sub.SubscriptionStatus)
	if status == "" {
		status = "none"
	}
	rows := [][]string{
		{"User", sub.UserID},
		{"Premium", strconv.FormatBool(sub.IsPremium)},
		{"Status", status},
		{"Ends at", endsAt},
		{"Premium since", since},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}
