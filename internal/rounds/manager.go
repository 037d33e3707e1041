package rounds

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/roundstatus"
	"github.com/joescharf/rounds/internal/store"
)

// ErrNotDecision is returned when a decision names a derived status.
var ErrNotDecision = errors.New("status is not an editor decision")

// Manager ties the round store to the status resolver.
type Manager struct {
	store    store.Store
	resolver *roundstatus.Resolver
}

// NewManager creates a Manager whose resolver reads from s.
func NewManager(s store.Store) *Manager {
	return &Manager{
		store:    s,
		resolver: roundstatus.NewResolver(s, s),
	}
}

// RefreshResult holds the outcome of recomputing one round's status.
type RefreshResult struct {
	RoundID  string             `json:"round_id"`
	Previous models.RoundStatus `json:"previous"`
	Status   models.RoundStatus `json:"status"`
	Changed  bool               `json:"changed"`
}

// Open starts the next review round for a submission at the given stage.
func (m *Manager) Open(ctx context.Context, submissionID string, stage models.StageID) (*models.ReviewRound, error) {
	if _, err := m.store.GetSubmission(ctx, submissionID); err != nil {
		return nil, err
	}
	round := &models.ReviewRound{
		SubmissionID: submissionID,
		StageID:      stage,
		Status:       models.RoundStatusPendingReviewers,
	}
	if err := m.store.CreateReviewRound(ctx, round); err != nil {
		return nil, err
	}
	slog.Info("opened review round", "round", round.ID, "submission", submissionID, "stage", stage, "number", round.Round)
	return round, nil
}

// Find returns a submission's round at stage by number; n == 0 selects the
// latest round.
func (m *Manager) Find(ctx context.Context, submissionID string, stage models.StageID, n int) (*models.ReviewRound, error) {
	if n == 0 {
		return m.store.GetLatestReviewRound(ctx, submissionID, stage)
	}
	list, err := m.store.ListReviewRounds(ctx, store.ReviewRoundListFilter{SubmissionID: submissionID, StageID: stage})
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if r.Round == n {
			return r, nil
		}
	}
	return nil, fmt.Errorf("review round not found: %s round %d", stage, n)
}

// Refresh recomputes a round's status and persists it if it changed.
func (m *Manager) Refresh(ctx context.Context, roundID string) (*RefreshResult, error) {
	round, err := m.store.GetReviewRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	return m.RefreshRound(ctx, round)
}

// RefreshRound is Refresh for an already loaded round. On success round.Status
// holds the new status.
func (m *Manager) RefreshRound(ctx context.Context, round *models.ReviewRound) (*RefreshResult, error) {
	status, err := m.resolver.Resolve(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("resolve round %s: %w", round.ID, err)
	}

	res := &RefreshResult{RoundID: round.ID, Previous: round.Status, Status: status}
	if status == round.Status {
		return res, nil
	}

	if err := m.store.UpdateReviewRoundStatus(ctx, round.ID, status); err != nil {
		return nil, err
	}
	round.Status = status
	res.Changed = true
	slog.Debug("review round status changed", "round", round.ID, "from", res.Previous, "to", status)
	return res, nil
}

// Decide records an editor decision on a round.
func (m *Manager) Decide(ctx context.Context, roundID string, status models.RoundStatus) (*models.ReviewRound, error) {
	if !roundstatus.IsDecision(status) {
		return nil, fmt.Errorf("%w: %q", ErrNotDecision, status)
	}
	round, err := m.store.GetReviewRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := m.store.UpdateReviewRoundStatus(ctx, round.ID, status); err != nil {
		return nil, err
	}
	slog.Info("recorded editor decision", "round", round.ID, "from", round.Status, "to", status)
	round.Status = status
	return round, nil
}

// Label returns the label key for the round's current status, or the raw
// status name if it has none.
func Label(round *models.ReviewRound, isAuthor bool) string {
	if key, ok := roundstatus.StatusLabel(round.Status, isAuthor); ok {
		return key
	}
	return string(round.Status)
}
