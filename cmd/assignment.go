package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/output"
	"github.com/joescharf/rounds/internal/rounds"
)

var (
	assignmentReviewer string
	assignmentEmail    string
	assignmentStatus   string
	assignmentDue      string
)

var assignmentCmd = &cobra.Command{
	Use:     "assignment",
	Aliases: []string{"assign"},
	Short:   "Manage reviewer assignments",
	Long: `Manage reviewer assignments on a review round.

Assignment statuses: awaiting_response, accepted, response_overdue,
review_overdue, received, declined.

Changing an assignment refreshes the status of its round.`,
}

var assignmentAddCmd = &cobra.Command{
	Use:   "add <round-id>",
	Short: "Assign a reviewer to a round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignmentAddRun(args[0])
	},
}

var assignmentListCmd = &cobra.Command{
	Use:     "list <round-id>",
	Aliases: []string{"ls"},
	Short:   "List a round's assignments",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignmentListRun(args[0])
	},
}

var assignmentUpdateCmd = &cobra.Command{
	Use:   "update <assignment-id>",
	Short: "Change an assignment's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignmentUpdateRun(args[0])
	},
}

var assignmentRemoveCmd = &cobra.Command{
	Use:     "remove <assignment-id>",
	Aliases: []string{"rm"},
	Short:   "Remove an assignment",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignmentRemoveRun(args[0])
	},
}

func init() {
	assignmentAddCmd.Flags().StringVar(&assignmentReviewer, "reviewer", "", "Reviewer name (required)")
	assignmentAddCmd.Flags().StringVar(&assignmentEmail, "email", "", "Reviewer email")
	assignmentAddCmd.Flags().StringVar(&assignmentStatus, "status", "", "Initial status (default: awaiting_response)")
	assignmentAddCmd.Flags().StringVar(&assignmentDue, "due", "", "Due date (YYYY-MM-DD)")
	_ = assignmentAddCmd.MarkFlagRequired("reviewer")

	assignmentUpdateCmd.Flags().StringVar(&assignmentStatus, "status", "", "New status (required)")
	_ = assignmentUpdateCmd.MarkFlagRequired("status")

	assignmentCmd.AddCommand(assignmentAddCmd)
	assignmentCmd.AddCommand(assignmentListCmd)
	assignmentCmd.AddCommand(assignmentUpdateCmd)
	assignmentCmd.AddCommand(assignmentRemoveCmd)
	rootCmd.AddCommand(assignmentCmd)
}

func assignmentAddRun(roundRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := findRound(ctx, s, roundRef)
	if err != nil {
		return err
	}

	a := &models.ReviewAssignment{
		ReviewRoundID: r.ID,
		ReviewerName:  assignmentReviewer,
		ReviewerEmail: assignmentEmail,
	}
	if assignmentStatus != "" {
		st, err := models.ParseAssignmentStatus(assignmentStatus)
		if err != nil {
			return err
		}
		a.Status = st
	}
	if assignmentDue != "" {
		due, err := time.Parse("2006-01-02", assignmentDue)
		if err != nil {
			return fmt.Errorf("invalid --due date %q (use YYYY-MM-DD)", assignmentDue)
		}
		a.DateDue = &due
	}

	if dryRun {
		ui.DryRunMsg("Would assign %s to round %s", assignmentReviewer, shortID(r.ID))
		return nil
	}

	if err := s.CreateReviewAssignment(ctx, a); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	ui.Success("Assigned %s to round %s: %s", a.ReviewerName, shortID(r.ID), output.Cyan(shortID(a.ID)))
	return refreshAfterChange(ctx, r.ID)
}

func assignmentListRun(roundRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := findRound(ctx, s, roundRef)
	if err != nil {
		return err
	}
	assignments, err := s.ListReviewAssignments(ctx, r.ID)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		ui.Info("No reviewers assigned to round %s.", shortID(r.ID))
		return nil
	}
	return renderAssignments(assignments)
}

func renderAssignments(assignments []*models.ReviewAssignment) error {
	table := ui.Table([]string{"ID", "Reviewer", "Status", "Assigned", "Due"})
	for _, a := range assignments {
		due := "-"
		if a.DateDue != nil {
			due = a.DateDue.Format("2006-01-02")
		}
		_ = table.Append([]string{
			shortID(a.ID),
			a.ReviewerName,
			output.AssignmentStatusColor(string(a.Status)),
			a.DateAssigned.Format("2006-01-02"),
			due,
		})
	}
	return table.Render()
}

func assignmentUpdateRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status, err := models.ParseAssignmentStatus(assignmentStatus)
	if err != nil {
		return err
	}
	a, err := findAssignment(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would set assignment %s: %s -> %s", shortID(a.ID), a.Status, status)
		return nil
	}

	if err := s.UpdateReviewAssignmentStatus(ctx, a.ID, status); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	ui.Success("Assignment %s: %s -> %s", output.Cyan(shortID(a.ID)), a.Status, output.AssignmentStatusColor(string(status)))
	return refreshAfterChange(ctx, a.ReviewRoundID)
}

func assignmentRemoveRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	a, err := findAssignment(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would remove assignment %s (%s)", shortID(a.ID), a.ReviewerName)
		return nil
	}

	if err := s.DeleteReviewAssignment(ctx, a.ID); err != nil {
		return fmt.Errorf("remove assignment: %w", err)
	}
	ui.Success("Removed assignment %s (%s)", output.Cyan(shortID(a.ID)), a.ReviewerName)
	return refreshAfterChange(ctx, a.ReviewRoundID)
}

// refreshAfterChange re-derives a round's status after its inputs changed.
func refreshAfterChange(ctx context.Context, roundID string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	res, err := rounds.NewManager(s).Refresh(ctx, roundID)
	if err != nil {
		return fmt.Errorf("refresh round: %w", err)
	}
	if res.Changed {
		ui.Info("Round %s is now %s", shortID(roundID), output.RoundStatusColor(string(res.Status)))
	}
	return nil
}
