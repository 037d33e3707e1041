package refresh

import (
	"context"

	"github.com/joescharf/rounds/internal/rounds"
	"github.com/joescharf/rounds/internal/store"
)

// Result holds the outcome of refreshing a single review round.
type Result struct {
	RoundID      string `json:"round_id"`
	SubmissionID string `json:"submission_id"`
	Round        int    `json:"round"`
	Previous     string `json:"previous"`
	Status       string `json:"status"`
	Changed      bool   `json:"changed"`
	Error        string `json:"error,omitempty"`
}

// AllResult holds the outcome of refreshing every review round.
type AllResult struct {
	Refreshed int      `json:"refreshed"`
	Total     int      `json:"total"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// All recomputes the status of every review round matching filter.
// A failure on one round is recorded and does not stop the others.
func All(ctx context.Context, s store.Store, m *rounds.Manager, filter store.ReviewRoundListFilter) (*AllResult, error) {
	list, err := s.ListReviewRounds(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &AllResult{Total: len(list)}
	for _, round := range list {
		r := Result{
			RoundID:      round.ID,
			SubmissionID: round.SubmissionID,
			Round:        round.Round,
			Previous:     string(round.Status),
		}
		res, err := m.RefreshRound(ctx, round)
		if err != nil {
			r.Error = err.Error()
			result.Failed++
		} else {
			r.Status = string(res.Status)
			r.Changed = res.Changed
			if res.Changed {
				result.Refreshed++
			}
		}
		result.Results = append(result.Results, r)
	}

	return result, nil
}
