package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"coachflow/internal/notifications"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}

	var to string
	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Send a test operator alert, and optionally a test student message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if cfg.Notifications.AlertTopic == "" {
				fmt.Fprintln(out, "Operator alerts disabled (notifications.alert_topic is empty)")
			} else {
				if err := notifications.NewAlerter(cfg).TestNotification(cmd.Context()); err != nil {
					return fmt.Errorf("send test alert: %w", err)
				}
				fmt.Fprintln(out, "Test alert sent")
			}

			if to == "" {
				return nil
			}
			msg := notifications.Message{
				To:      to,
				Subject: "coachflow test message",
				Body:    "This is a test message from coachflow. Homework links will arrive the same way.",
			}
			if err := notifications.NewService(cfg).Send(cmd.Context(), msg); err != nil {
				return fmt.Errorf("send test message: %w", err)
			}
			fmt.Fprintf(out, "Test message sent to %s via %s\n", to, cfg.Notifications.Channel)
			return nil
		},
	}
	testCmd.Flags().StringVar(&to, "to", "", "Also send a student-style message to this address")

	notifyCmd.AddCommand(testCmd)
	return notifyCmd
}
