package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/output"
	"github.com/joescharf/rounds/internal/refresh"
	"github.com/joescharf/rounds/internal/rounds"
	"github.com/joescharf/rounds/internal/roundstatus"
	"github.com/joescharf/rounds/internal/store"
)

var (
	roundStage     string
	roundListStage string
	roundStatus    string
	roundAuthor    bool
	roundAll       bool
)

var roundCmd = &cobra.Command{
	Use:   "round",
	Short: "Manage review rounds",
	Long:  "Open review rounds, refresh their derived status, and record editor decisions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundListRun("")
	},
}

var roundOpenCmd = &cobra.Command{
	Use:   "open <submission-id>",
	Short: "Open the next review round for a submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundOpenRun(args[0])
	},
}

var roundListCmd = &cobra.Command{
	Use:     "list [submission-id]",
	Aliases: []string{"ls"},
	Short:   "List review rounds",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var ref string
		if len(args) > 0 {
			ref = args[0]
		}
		return roundListRun(ref)
	},
}

var roundShowCmd = &cobra.Command{
	Use:   "show <round-id>",
	Short: "Show a review round with its assignments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundShowRun(args[0])
	},
}

var roundRefreshCmd = &cobra.Command{
	Use:   "refresh [round-id]",
	Short: "Recompute review round status",
	Long:  "Recompute a round's status from its assignments and revision files. Use --all to refresh every round.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			if !roundAll {
				return fmt.Errorf("specify a round ID or use --all")
			}
			return roundRefreshAllRun()
		}
		return roundRefreshOneRun(args[0])
	},
}

var roundDecideCmd = &cobra.Command{
	Use:   "decide <round-id> <decision>",
	Short: "Record an editor decision",
	Long: `Record an editor decision on a review round.

Decisions: revisions_requested, resubmitted, sent_to_external, accepted, declined.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundDecideRun(args[0], args[1])
	},
}

var roundNoticeCmd = &cobra.Command{
	Use:   "notice <round-id>",
	Short: "Draft an author notice for the round's status",
	Long:  "Draft a short status notice to the submission's author using the Anthropic API.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return roundNoticeRun(args[0])
	},
}

func init() {
	roundOpenCmd.Flags().StringVar(&roundStage, "stage", "external", "Review stage: internal, external")

	roundListCmd.Flags().StringVar(&roundStatus, "status", "", "Filter by round status")
	roundListCmd.Flags().StringVar(&roundListStage, "stage", "", "Filter by review stage")

	roundShowCmd.Flags().BoolVar(&roundAuthor, "author", false, "Show the author-facing label")

	roundRefreshCmd.Flags().BoolVar(&roundAll, "all", false, "Refresh every review round")

	roundCmd.AddCommand(roundOpenCmd)
	roundCmd.AddCommand(roundListCmd)
	roundCmd.AddCommand(roundShowCmd)
	roundCmd.AddCommand(roundRefreshCmd)
	roundCmd.AddCommand(roundDecideCmd)
	roundCmd.AddCommand(roundNoticeCmd)
	rootCmd.AddCommand(roundCmd)
}

// roundLabel returns the localized display text for a round's status.
func roundLabel(r *models.ReviewRound, isAuthor bool) (string, error) {
	c, err := getCatalog()
	if err != nil {
		return "", err
	}
	return c.Text(c.Match(viper.GetString("locale")), rounds.Label(r, isAuthor)), nil
}

func roundOpenRun(submissionRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	stage, err := models.ParseStageID(roundStage)
	if err != nil {
		return err
	}
	sub, err := findSubmission(ctx, s, submissionRef)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would open a %s review round for %s", stageLabel(stage), shortID(sub.ID))
		return nil
	}

	r, err := rounds.NewManager(s).Open(ctx, sub.ID, stage)
	if err != nil {
		return fmt.Errorf("open round: %w", err)
	}
	ui.Success("Opened %s round %d for %s: %s", stageLabel(stage), r.Round, sub.Title, output.Cyan(shortID(r.ID)))
	return nil
}

func roundListRun(submissionRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var filter store.ReviewRoundListFilter
	if submissionRef != "" {
		sub, err := findSubmission(ctx, s, submissionRef)
		if err != nil {
			return err
		}
		filter.SubmissionID = sub.ID
	}
	if roundStatus != "" {
		st, err := models.ParseRoundStatus(roundStatus)
		if err != nil {
			return err
		}
		filter.Status = st
	}
	if roundListStage != "" {
		stage, err := models.ParseStageID(roundListStage)
		if err != nil {
			return err
		}
		filter.StageID = stage
	}

	list, err := s.ListReviewRounds(ctx, filter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		ui.Info("No review rounds found.")
		return nil
	}

	table := ui.Table([]string{"ID", "Submission", "Stage", "Round", "Status", "Updated"})
	for _, r := range list {
		_ = table.Append([]string{
			shortID(r.ID),
			shortID(r.SubmissionID),
			stageLabel(r.StageID),
			fmt.Sprintf("%d", r.Round),
			output.RoundStatusColor(string(r.Status)),
			timeAgo(r.UpdatedAt),
		})
	}
	return table.Render()
}

func roundShowRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := findRound(ctx, s, ref)
	if err != nil {
		return err
	}
	label, err := roundLabel(r, roundAuthor)
	if err != nil {
		return err
	}

	title := ""
	if sub, err := s.GetSubmission(ctx, r.SubmissionID); err == nil {
		title = sub.Title
	}

	fmt.Fprintf(ui.Out, "%s  %s round %d\n", output.Cyan(shortID(r.ID)), stageLabel(r.StageID), r.Round)
	fmt.Fprintf(ui.Out, "  Submission: %s\n", title)
	fmt.Fprintf(ui.Out, "  Status:     %s (%d)\n", output.RoundStatusColor(string(r.Status)), r.Status.Code())
	fmt.Fprintf(ui.Out, "  Label:      %s\n", label)
	fmt.Fprintf(ui.Out, "  Updated:    %s\n", r.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(ui.Out, "  Full ID:    %s\n", r.ID)

	resolved, err := roundstatus.NewResolver(s, s).Resolve(ctx, r)
	if err != nil {
		return err
	}
	if resolved != r.Status {
		ui.Warning("Stored status is stale; refresh would set %s", output.RoundStatusColor(string(resolved)))
	}

	assignments, err := s.ListReviewAssignments(ctx, r.ID)
	if err != nil {
		return err
	}
	if len(assignments) == 0 {
		return nil
	}

	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "Assignments:")
	return renderAssignments(assignments)
}

func roundRefreshOneRun(ref string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := findRound(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		status, err := roundstatus.NewResolver(s, s).Resolve(ctx, r)
		if err != nil {
			return err
		}
		ui.DryRunMsg("Would set round %s: %s -> %s", shortID(r.ID), r.Status, status)
		return nil
	}

	res, err := rounds.NewManager(s).RefreshRound(ctx, r)
	if err != nil {
		return err
	}
	if res.Changed {
		ui.Success("Round %s: %s -> %s", output.Cyan(shortID(r.ID)), res.Previous, output.RoundStatusColor(string(res.Status)))
	} else {
		ui.Info("Round %s unchanged: %s", output.Cyan(shortID(r.ID)), output.RoundStatusColor(string(res.Status)))
	}
	return nil
}

func roundRefreshAllRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if dryRun {
		ui.DryRunMsg("Would refresh all review rounds")
		return nil
	}

	result, err := refresh.All(ctx, s, rounds.NewManager(s), store.ReviewRoundListFilter{})
	if err != nil {
		return err
	}

	for _, r := range result.Results {
		switch {
		case r.Error != "":
			ui.Warning("Round %s: %s", shortID(r.RoundID), r.Error)
		case r.Changed:
			ui.VerboseLog("Round %s: %s -> %s", shortID(r.RoundID), r.Previous, r.Status)
		}
	}
	ui.Success("Refreshed %d of %d rounds (%d failed)", result.Refreshed, result.Total, result.Failed)
	return nil
}

func roundDecideRun(ref, decision string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	status, err := models.ParseRoundStatus(decision)
	if err != nil {
		return err
	}
	if !roundstatus.IsDecision(status) {
		return fmt.Errorf("%w: %s", rounds.ErrNotDecision, status)
	}
	r, err := findRound(ctx, s, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would record %s on round %s", status, shortID(r.ID))
		return nil
	}

	if _, err := rounds.NewManager(s).Decide(ctx, r.ID, status); err != nil {
		return err
	}
	ui.Success("Recorded %s on round %s", output.RoundStatusColor(string(status)), output.Cyan(shortID(r.ID)))
	return nil
}

func roundNoticeRun(ref string) error {
	client := newLLMClient()
	if client == nil {
		return fmt.Errorf("no Anthropic API key configured (set anthropic.api_key or ANTHROPIC_API_KEY)")
	}

	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	r, err := findRound(ctx, s, ref)
	if err != nil {
		return err
	}
	in, err := noticeInput(ctx, s, r)
	if err != nil {
		return err
	}

	ui.VerboseLog("Drafting notice for round %s (%s)", shortID(r.ID), r.Status)
	text, err := client.DraftNotice(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, text)
	return nil
}
