package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/output"
	"github.com/joescharf/rounds/internal/store"
)

var (
	submissionTitle  string
	submissionAuthor string
	submissionEmail  string
)

var submissionCmd = &cobra.Command{
	Use:     "submission",
	Aliases: []string{"sub"},
	Short:   "Manage submissions under review",
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionListRun()
	},
}

var submissionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a submission",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionAddRun()
	},
}

var submissionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List submissions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionListRun()
	},
}

var submissionShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show a submission and its review rounds",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionShowRun(args[0])
	},
}

var submissionRemoveCmd = &cobra.Command{
	Use:     "remove <submission-id>",
	Aliases: []string{"rm"},
	Short:   "Remove a submission with its rounds, assignments and files",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return submissionRemoveRun(args[0])
	},
}

func init() {
	submissionAddCmd.Flags().StringVar(&submissionTitle, "title", "", "Submission title (required)")
	submissionAddCmd.Flags().StringVar(&submissionAuthor, "author", "", "Author name (required)")
	submissionAddCmd.Flags().StringVar(&submissionEmail, "email", "", "Author email")
	_ = submissionAddCmd.MarkFlagRequired("title")
	_ = submissionAddCmd.MarkFlagRequired("author")

	submissionCmd.AddCommand(submissionAddCmd)
	submissionCmd.AddCommand(submissionListCmd)
	submissionCmd.AddCommand(submissionShowCmd)
	submissionCmd.AddCommand(submissionRemoveCmd)
	rootCmd.AddCommand(submissionCmd)
}

func submissionAddRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would add submission: %s by %s", submissionTitle, submissionAuthor)
		return nil
	}

	sub := &models.Submission{
		Title:       submissionTitle,
		Author:      submissionAuthor,
		AuthorEmail: submissionEmail,
	}
	if err := s.CreateSubmission(ctx, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}

	ui.Success("Added submission %s: %s", output.Cyan(shortID(sub.ID)), sub.Title)
	return nil
}

func submissionListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	subs, err := s.ListSubmissions(ctx)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		ui.Info("No submissions. Use 'rounds submission add' to get started.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "Author", "Rounds", "Latest", "Added"})
	for _, sub := range subs {
		list, err := s.ListReviewRounds(ctx, store.ReviewRoundListFilter{SubmissionID: sub.ID})
		if err != nil {
			return err
		}
		latest := "-"
		if r := latestRound(list); r != nil {
			latest = output.RoundStatusColor(string(r.Status))
		}
		_ = table.Append([]string{
			shortID(sub.ID),
			sub.Title,
			sub.Author,
			fmt.Sprintf("%d", len(list)),
			latest,
			timeAgo(sub.CreatedAt),
		})
	}
	return table.Render()
}

func submissionShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sub, err := findSubmission(ctx, s, ref)
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(sub.ID)), sub.Title)
	fmt.Fprintf(ui.Out, "  Author:     %s\n", sub.Author)
	if sub.AuthorEmail != "" {
		fmt.Fprintf(ui.Out, "  Email:      %s\n", sub.AuthorEmail)
	}
	fmt.Fprintf(ui.Out, "  Created:    %s\n", sub.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", sub.ID)

	list, err := s.ListReviewRounds(ctx, store.ReviewRoundListFilter{SubmissionID: sub.ID})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}

	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "Review rounds:")
	table := ui.Table([]string{"ID", "Stage", "Round", "Status"})
	for _, r := range list {
		_ = table.Append([]string{
			shortID(r.ID),
			stageLabel(r.StageID),
			fmt.Sprintf("%d", r.Round),
			output.RoundStatusColor(string(r.Status)),
		})
	}
	return table.Render()
}

func submissionRemoveRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sub, err := findSubmission(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove submission %s: %s", shortID(sub.ID), sub.Title)
		return nil
	}

	if err := s.DeleteSubmission(ctx, sub.ID); err != nil {
		return fmt.Errorf("remove submission: %w", err)
	}
	ui.Success("Removed submission %s: %s", output.Cyan(shortID(sub.ID)), sub.Title)
	return nil
}

// latestRound returns the most recently opened round, or nil.
func latestRound(list []*models.ReviewRound) *models.ReviewRound {
	var latest *models.ReviewRound
	for _, r := range list {
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest
}
