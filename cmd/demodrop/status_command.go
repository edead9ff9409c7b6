package main

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"demodrop/internal/pipeline"
	"demodrop/internal/records"
)

func newStatusCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and job ledger status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			lockPath := filepath.Join(cfg.Paths.DataDir, "demodropd.lock")
			lock := flock.New(lockPath)
			acquired, lockErr := lock.TryLock()
			switch {
			case lockErr != nil:
				fmt.Fprintf(out, "Daemon:   unknown (%v)\n", lockErr)
			case acquired:
				_ = lock.Unlock()
				fmt.Fprintln(out, "Daemon:   not running")
			default:
				fmt.Fprintln(out, "Daemon:   running")
			}

			recs, err := records.Open(cfg)
			if err != nil {
				return err
			}
			defer recs.Close()
			jobs, err := pipeline.Open(cfg)
			if err != nil {
				return err
			}
			defer jobs.Close()

			subs, err := recs.ListSubmissions(cmd.Context())
			if err != nil {
				return err
			}
			active, err := jobs.ListJobs(cmd.Context(), pipeline.JobPending, pipeline.JobRunning)
			if err != nil {
				return err
			}
			failed, err := jobs.ListJobs(cmd.Context(), pipeline.JobFailed)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Records:  %s (%d submissions)\n", recs.Path(), len(subs))
			fmt.Fprintf(out, "Jobs:     %s (%d active, %d failed)\n", jobs.Path(), len(active), len(failed))
			return nil
		},
	}
}
