package cmd

import (
	"context"
	"os"

	"github.com/spf13/viper"

	"github.com/joescharf/rounds/internal/llm"
	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/store"
)

// newLLMClient creates an LLM client from config/env, or returns nil if no API key is configured.
func newLLMClient() *llm.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return llm.NewClient(apiKey, viper.GetString("anthropic.model"))
}

// noticeInput gathers what the notice prompt needs about a round.
func noticeInput(ctx context.Context, s store.Store, r *models.ReviewRound) (llm.NoticeInput, error) {
	in := llm.NoticeInput{
		Stage:  stageLabel(r.StageID),
		Round:  r.Round,
		Status: string(r.Status),
	}

	sub, err := s.GetSubmission(ctx, r.SubmissionID)
	if err != nil {
		return in, err
	}
	in.SubmissionTitle = sub.Title
	in.AuthorName = sub.Author

	text, err := roundLabel(r, true)
	if err != nil {
		return in, err
	}
	in.StatusText = text

	assignments, err := s.ListReviewAssignments(ctx, r.ID)
	if err != nil {
		return in, err
	}
	for _, a := range assignments {
		if a.Status == models.AssignmentStatusDeclined {
			continue
		}
		in.Assignments++
		if a.Status == models.AssignmentStatusReceived {
			in.Completed++
		}
	}
	return in, nil
}
