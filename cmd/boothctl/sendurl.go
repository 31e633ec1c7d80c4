package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fraxinas/photobooth/internal/tweet"
)

type sendURLFlags struct {
	addr    string
	timeout time.Duration
}

func newSendURLCmd() *cobra.Command {
	flags := &sendURLFlags{}

	cmd := &cobra.Command{
		Use:     "send-url <url>",
		Short:   "Hand a photo URL to a running tweet bridge",
		Example: `  boothctl send-url --addr 127.0.0.1:3000 http://booth.local/photos/latest`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
			defer cancel()
			if err := tweet.Send(ctx, flags.addr, args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "127.0.0.1:3000", "Bridge address")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 60*time.Second, "Time to wait for the post")

	return cmd
}
