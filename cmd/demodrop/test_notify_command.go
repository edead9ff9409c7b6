package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"demodrop/internal/notifications"
)

func newTestNotifyCommand(cctx *commandContext) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test email through the configured provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}
			svc := notifications.NewService(cfg)
			if err := svc.TestNotification(cmd.Context(), to); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent")
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
