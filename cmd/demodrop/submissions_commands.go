package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"demodrop/internal/records"
	"demodrop/internal/submission"
)

func newSubmissionsCommand(cctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "submissions",
		Short:   "Inspect and review recorded submissions",
		Aliases: []string{"subs"},
	}
	cmd.AddCommand(newSubmissionsListCommand(cctx))
	cmd.AddCommand(newSubmissionsShowCommand(cctx))
	cmd.AddCommand(newSubmissionsReviewCommand(cctx))
	return cmd
}

func newSubmissionsListCommand(cctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submissions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}
			recs, err := records.Open(cfg)
			if err != nil {
				return err
			}
			defer recs.Close()

			subs, err := recs.ListSubmissions(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(subs))
			for _, sub := range subs {
				if statusFilter != "" && string(sub.Status) != statusFilter {
					continue
				}
				rating := "-"
				if sub.Rating > 0 {
					rating = strconv.Itoa(sub.Rating)
				}
				rows = append(rows, []string{
					shortID(sub.ID),
					sub.Name,
					sub.Email,
					string(sub.Status),
					rating,
					formatAge(sub),
				})
			}
			if len(rows) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No submissions found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Artist", "Email", "Status", "Rating", "Received"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by review status (Pending, In-Review, Approved, Rejected)")
	return cmd
}

func newSubmissionsShowCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <submission-id>",
		Short: "Show one submission with its tracks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}
			recs, err := records.Open(cfg)
			if err != nil {
				return err
			}
			defer recs.Close()

			sub, err := findSubmission(cmd, recs, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Artist:    %s <%s>\n", sub.Name, sub.Email)
			fmt.Fprintf(out, "Status:    %s\n", sub.Status)
			if sub.Rating > 0 {
				fmt.Fprintf(out, "Rating:    %d/5\n", sub.Rating)
			}
			if sub.Bio != "" {
				fmt.Fprintf(out, "Bio:       %s\n", sub.Bio)
			}
			if sub.Instagram != "" {
				fmt.Fprintf(out, "Instagram: %s\n", sub.Instagram)
			}
			if sub.Spotify != "" {
				fmt.Fprintf(out, "Spotify:   %s\n", sub.Spotify)
			}
			if sub.Notes != "" {
				fmt.Fprintf(out, "Notes:     %s\n", sub.Notes)
			}
			fmt.Fprintf(out, "Received:  %s\n\n", formatAge(sub))

			printTrackTable(cmd, recs, sub.ID)
			return nil
		},
	}
}

func newSubmissionsReviewCommand(cctx *commandContext) *cobra.Command {
	var statusFlag string
	var ratingFlag int
	var notesFlag string

	cmd := &cobra.Command{
		Use:   "review <submission-id>",
		Short: "Update a submission's review status, rating, or notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.configValue()
			if err != nil {
				return err
			}
			recs, err := records.Open(cfg)
			if err != nil {
				return err
			}
			defer recs.Close()

			sub, err := findSubmission(cmd, recs, args[0])
			if err != nil {
				return err
			}

			update := submission.ReviewUpdate{}
			if cmd.Flags().Changed("status") {
				status := records.ReviewStatus(statusFlag)
				update.Status = &status
			}
			if cmd.Flags().Changed("rating") {
				update.Rating = &ratingFlag
			}
			if cmd.Flags().Changed("notes") {
				update.Notes = &notesFlag
			}

			svc := submission.NewService(cfg, recs, nil, nil, nil, nil)
			if err := svc.UpdateReview(cmd.Context(), sub.ID, update); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submission %s updated\n", shortID(sub.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Review status (Pending, In-Review, Approved, Rejected)")
	cmd.Flags().IntVar(&ratingFlag, "rating", 0, "Rating from 0 to 5")
	cmd.Flags().StringVar(&notesFlag, "notes", "", "Reviewer notes")
	return cmd
}

// findSubmission resolves a full or shortened submission id.
func findSubmission(cmd *cobra.Command, recs *records.Store, id string) (*records.Submission, error) {
	sub, err := recs.GetSubmission(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	subs, err := recs.ListSubmissions(cmd.Context())
	if err != nil {
		return nil, err
	}
	var match *records.Submission
	for _, candidate := range subs {
		if len(id) >= 4 && len(candidate.ID) >= len(id) && candidate.ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("submission id %q is ambiguous", id)
			}
			match = candidate
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no submission with id %q", id)
	}
	return match, nil
}
