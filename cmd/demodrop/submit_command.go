package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"demodrop/internal/events"
	"demodrop/internal/pipeline"
	"demodrop/internal/records"
	"demodrop/internal/storage"
	"demodrop/internal/submission"
	"demodrop/internal/upload"
	"demodrop/internal/workflow"
)

const ingestWait = 60 * time.Second

func newSubmitCommand(cctx *commandContext) *cobra.Command {
	var artistName string
	var artistEmail string
	var bio string
	var instagram string
	var spotify string
	var titles []string
	var genres []string

	cmd := &cobra.Command{
		Use:   "submit [files...]",
		Short: "Upload demo files and record a submission",
		Args:  cobra.MinimumNArgs(1),
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
			if err := manager.Start(cmd.Context()); err != nil {
				return err
			}
			defer manager.Stop()
			if err := bus.Start(cmd.Context(), 2); err != nil {
				return err
			}
			defer bus.Stop()

			forms, err := buildTrackForms(args, titles, genres)
			if err != nil {
				return err
			}

			svc := submission.NewService(cfg, recs, backend, bus, nil, logger)
			result, err := svc.Submit(cmd.Context(), submission.ArtistInfo{
				Name:      artistName,
				Email:     artistEmail,
				Bio:       bio,
				Instagram: instagram,
				Spotify:   spotify,
			}, forms)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Submission %s recorded with %d track(s)\n",
				shortID(result.Submission.ID), len(result.Tracks))
			for _, failed := range result.FailedUploads {
				fmt.Fprintf(cmd.OutOrStdout(), "  upload failed: %s (%v)\n", failed.Name, failed.Err)
			}

			waitForIngestion(cmd.Context(), jobs, result.Tracks)
			printTrackTable(cmd, recs, result.Submission.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&artistName, "name", "", "Artist name (required)")
	cmd.Flags().StringVar(&artistEmail, "email", "", "Contact email (required)")
	cmd.Flags().StringVar(&bio, "bio", "", "Short artist bio")
	cmd.Flags().StringVar(&instagram, "instagram", "", "Instagram handle")
	cmd.Flags().StringVar(&spotify, "spotify", "", "Spotify artist link")
	cmd.Flags().StringArrayVar(&titles, "title", nil, "Track title, repeatable, matched to files in order")
	cmd.Flags().StringArrayVar(&genres, "genre", nil, "Track genre, repeatable, matched to files in order")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func buildTrackForms(paths, titles, genres []string) ([]submission.TrackForm, error) {
	forms := make([]submission.TrackForm, 0, len(paths))
	for i, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if i < len(titles) && strings.TrimSpace(titles[i]) != "" {
			title = titles[i]
		}
		genre := ""
		if i < len(genres) {
			genre = genres[i]
		}

		source := path
		forms = append(forms, submission.TrackForm{
			Title: title,
			Genre: genre,
			Asset: upload.Asset{
				Name: filepath.Base(path),
				Size: info.Size(),
				Open: func() (io.ReadCloser, error) {
					return os.Open(source)
				},
			},
		})
	}
	return forms, nil
}

func waitForIngestion(ctx context.Context, jobs *pipeline.Store, tracks []*records.Track) {
	deadline := time.Now().Add(ingestWait)
	for time.Now().Before(deadline) {
		remaining := 0
		for _, track := range tracks {
			job, err := jobs.JobForTrack(ctx, track.ID)
			if err != nil {
				return
			}
			if job == nil || (job.Status != pipeline.JobCompleted && job.Status != pipeline.JobFailed) {
				remaining++
			}
		}
		if remaining == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func printTrackTable(cmd *cobra.Command, recs *records.Store, submissionID string) {
	tracks, err := recs.TracksForSubmission(cmd.Context(), submissionID)
	if err != nil || len(tracks) == 0 {
		return
	}

	rows := make([][]string, 0, len(tracks))
	for _, track := range tracks {
		rows = append(rows, []string{
			track.Title,
			orDash(track.ContainerFormat),
			formatDuration(track.DurationSeconds),
			formatBitrate(track.BitrateBps),
			formatSampleRate(track.SampleRateHz),
			humanize.Time(track.CreatedAt),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Track", "Format", "Length", "Bitrate", "Sample Rate", "Uploaded"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}
