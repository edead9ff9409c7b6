package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"demodrop/internal/events"
	"demodrop/internal/pipeline"
	"demodrop/internal/records"
	"demodrop/internal/storage"
	"demodrop/internal/workflow"
)

func newJobsCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and retry ingestion jobs",
	}
	cmd.AddCommand(newJobsListCommand(cctx))
	cmd.AddCommand(newJobsRetryCommand(cctx))
	return cmd
}

func newJobsListCommand(cctx *commandContext) *cobra.Command {
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ingestion jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}
			jobs, err := pipeline.Open(cfg)
			if err != nil {
				return err
			}
			defer jobs.Close()

			var listed []*pipeline.Job
			if failedOnly {
				listed, err = jobs.ListJobs(cmd.Context(), pipeline.JobFailed)
			} else {
				listed, err = jobs.ListJobs(cmd.Context())
			}
			if err != nil {
				return err
			}
			if len(listed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(listed))
			for _, job := range listed {
				rows = append(rows, []string{
					shortID(job.ID),
					shortID(job.TrackID),
					string(job.Status),
					orDash(job.CurrentStep),
					orDash(job.LastError),
					humanize.Time(job.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Job", "Track", "Status", "Step", "Last Error", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Show only failed jobs")
	return cmd
}

func newJobsRetryCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-run a failed ingestion job",
		Args:  cobra.ExactArgs(1),
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

			jobs, err := pipeline.Open(cfg)
			if err != nil {
				return err
			}
			defer jobs.Close()

			backend, err := storage.New(cfg)
			if err != nil {
				return err
			}
			runner, err := pipeline.NewRunner(cfg, jobs, recs, backend, logger)
			if err != nil {
				return err
			}

			bus := events.NewBus(logger, cfg.Pipeline.MaxDeliveryAttempts, cfg.Pipeline.RetryBackoff())
			manager := workflow.NewManager(bus, runner, jobs, logger)

			jobID, err := resolveJobID(cmd, jobs, args[0])
			if err != nil {
				return err
			}
			if err := manager.RetryJob(cmd.Context(), jobID); err != nil {
				return fmt.Errorf("retry job: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s completed\n", shortID(jobID))
			return nil
		},
	}
}

func resolveJobID(cmd *cobra.Command, jobs *pipeline.Store, id string) (string, error) {
	if _, err := jobs.GetJob(cmd.Context(), id); err == nil {
		return id, nil
	}

	listed, err := jobs.ListJobs(cmd.Context())
	if err != nil {
		return "", err
	}
	match := ""
	for _, job := range listed {
		if len(id) >= 4 && len(job.ID) >= len(id) && job.ID[:len(id)] == id {
			if match != "" {
				return "", fmt.Errorf("job id %q is ambiguous", id)
			}
			match = job.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no job with id %q", id)
	}
	return match, nil
}
