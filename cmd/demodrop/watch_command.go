package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"demodrop/internal/livefeed"
	"demodrop/internal/records"
)

func newWatchCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the live submission view until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}
			logger, err := newCommandLogger(cfg)
			if err != nil {
				return err
			}
			recs, err := records.Open(cfg)
			if err != nil {
				return err
			}
			defer recs.Close()

			watchCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			viewer := livefeed.NewViewer(recs, logger)
			viewer.OnInsert(func(sub records.Submission) {
				fmt.Fprintf(out, "+ %s  %s <%s>\n", shortID(sub.ID), sub.Name, sub.Email)
			})
			viewer.OnUpdate(func(sub records.Submission) {
				fmt.Fprintf(out, "~ %s  %s  status=%s rating=%d\n", shortID(sub.ID), sub.Name, sub.Status, sub.Rating)
			})

			if err := viewer.Start(watchCtx); err != nil {
				return err
			}
			defer viewer.Stop()

			for _, sub := range viewer.Submissions() {
				fmt.Fprintf(out, "  %s  %s <%s>  %s\n", shortID(sub.ID), sub.Name, sub.Email, sub.Status)
			}
			fmt.Fprintln(out, "Watching for changes, Ctrl-C to stop")

			<-watchCtx.Done()
			return nil
		},
	}
}
