package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/output"
	"github.com/joescharf/rounds/internal/store"
)

var statusAttention bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the review round dashboard",
	Long: `Show every review round with its localized status label.

Labels use the configured locale (see 'rounds config').`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusOverviewRun()
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusAttention, "attention", false, "Show only rounds waiting on the editor")
	rootCmd.AddCommand(statusCmd)
}

// needsAttention reports whether the round is waiting on an editor action.
func needsAttention(status models.RoundStatus) bool {
	switch status {
	case models.RoundStatusReviewsOverdue, models.RoundStatusReviewsReady,
		models.RoundStatusReviewsCompleted, models.RoundStatusRevisionsSubmitted:
		return true
	default:
		return false
	}
}

func statusOverviewRun() error {
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
		ui.Info("No submissions tracked. Use 'rounds submission add' to get started.")
		return nil
	}
	titles := make(map[string]string, len(subs))
	for _, sub := range subs {
		titles[sub.ID] = sub.Title
	}

	list, err := s.ListReviewRounds(ctx, store.ReviewRoundListFilter{})
	if err != nil {
		return err
	}

	table := ui.Table([]string{"Round", "Submission", "Stage", "#", "Status", "Reviews", "Label"})
	shown := 0
	for _, r := range list {
		if statusAttention && !needsAttention(r.Status) {
			continue
		}
		label, err := roundLabel(r, false)
		if err != nil {
			return err
		}
		reviews, err := reviewCounts(ctx, s, r.ID)
		if err != nil {
			return err
		}
		_ = table.Append([]string{
			output.Cyan(shortID(r.ID)),
			titles[r.SubmissionID],
			stageLabel(r.StageID),
			fmt.Sprintf("%d", r.Round),
			output.RoundStatusColor(string(r.Status)),
			reviews,
			label,
		})
		shown++
	}

	if shown == 0 {
		ui.Info("No review rounds to show.")
		return nil
	}
	return table.Render()
}

// reviewCounts formats received/active reviewers for a round. Declined
// assignments are not counted.
func reviewCounts(ctx context.Context, s store.Store, roundID string) (string, error) {
	statuses, err := s.AssignmentStatusesForRound(ctx, roundID)
	if err != nil {
		return "", err
	}
	received, active := 0, 0
	for _, st := range statuses {
		switch st {
		case models.AssignmentStatusDeclined:
		case models.AssignmentStatusReceived:
			received++
			active++
		default:
			active++
		}
	}
	if active == 0 {
		return "-", nil
	}
	return fmt.Sprintf("%d/%d", received, active), nil
}
