package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/output"
	"github.com/joescharf/rounds/internal/rounds"
)

var (
	fileName  string
	fileStage string
	fileRound int
	fileKind  string
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Record files uploaded against a submission",
	Long: `Record files uploaded against a submission.

File kinds: submission, review_file, review_attachment, review_revision.
A review_revision file in a round with requested revisions marks the
revisions as submitted.`,
}

var fileAddCmd = &cobra.Command{
	Use:   "add <submission-id>",
	Short: "Record a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fileAddRun(args[0])
	},
}

var fileListCmd = &cobra.Command{
	Use:     "list <submission-id>",
	Aliases: []string{"ls"},
	Short:   "List a submission's files",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return fileListRun(args[0])
	},
}

func init() {
	fileAddCmd.Flags().StringVar(&fileName, "name", "", "File name (required)")
	fileAddCmd.Flags().StringVar(&fileStage, "stage", "", "Review stage: internal, external")
	fileAddCmd.Flags().IntVar(&fileRound, "round", 0, "Review round number (default: latest round of --stage)")
	fileAddCmd.Flags().StringVar(&fileKind, "kind", string(models.FileStageSubmission), "File kind")
	_ = fileAddCmd.MarkFlagRequired("name")

	fileCmd.AddCommand(fileAddCmd)
	fileCmd.AddCommand(fileListCmd)
	rootCmd.AddCommand(fileCmd)
}

func fileAddRun(submissionRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sub, err := findSubmission(ctx, s, submissionRef)
	if err != nil {
		return err
	}
	kind, err := models.ParseFileStage(fileKind)
	if err != nil {
		return err
	}

	f := &models.SubmissionFile{
		SubmissionID: sub.ID,
		FileStage:    kind,
		Name:         fileName,
		Round:        fileRound,
	}

	var round *models.ReviewRound
	if fileStage != "" {
		stage, err := models.ParseStageID(fileStage)
		if err != nil {
			return err
		}
		f.StageID = stage
		round, err = rounds.NewManager(s).Find(ctx, sub.ID, stage, f.Round)
		if err != nil {
			return err
		}
		f.Round = round.Round
	} else if kind != models.FileStageSubmission {
		return fmt.Errorf("--stage is required for %s files", kind)
	}

	if dryRun {
		ui.DryRunMsg("Would record file %s on %s", fileName, shortID(sub.ID))
		return nil
	}

	if err := s.CreateSubmissionFile(ctx, f); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	ui.Success("Recorded %s file %s: %s", f.FileStage, f.Name, output.Cyan(shortID(f.ID)))

	if round != nil {
		return refreshAfterChange(ctx, round.ID)
	}
	return nil
}

func fileListRun(submissionRef string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sub, err := findSubmission(ctx, s, submissionRef)
	if err != nil {
		return err
	}
	files, err := s.ListSubmissionFiles(ctx, sub.ID)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		ui.Info("No files recorded for %s.", shortID(sub.ID))
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Kind", "Stage", "Round", "Added"})
	for _, f := range files {
		stage, round := "-", "-"
		if f.StageID != "" {
			stage = stageLabel(f.StageID)
			round = fmt.Sprintf("%d", f.Round)
		}
		_ = table.Append([]string{
			shortID(f.ID),
			f.Name,
			string(f.FileStage),
			stage,
			round,
			timeAgo(f.CreatedAt),
		})
	}
	return table.Render()
}
