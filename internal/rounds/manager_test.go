package rounds

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/store"
)

func setupManager(t *testing.T) (*Manager, store.Store, *models.Submission) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })

	sub := &models.Submission{Title: "Paper"}
	require.NoError(t, s.CreateSubmission(context.Background(), sub))
	return NewManager(s), s, sub
}

func addAssignment(t *testing.T, s store.Store, roundID string, status models.AssignmentStatus) *models.ReviewAssignment {
	t.Helper()
	a := &models.ReviewAssignment{ReviewRoundID: roundID, ReviewerName: "Reviewer", Status: status}
	require.NoError(t, s.CreateReviewAssignment(context.Background(), a))
	return a
}

func TestOpen(t *testing.T) {
	m, _, sub := setupManager(t)
	ctx := context.Background()

	r1, err := m.Open(ctx, sub.ID, models.StageExternalReview)
	require.NoError(t, err)
	assert.Equal(t, 1, r1.Round)
	assert.Equal(t, models.RoundStatusPendingReviewers, r1.Status)

	r2, err := m.Open(ctx, sub.ID, models.StageExternalReview)
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Round)

	_, err = m.Open(ctx, "missing", models.StageExternalReview)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRefresh_FollowsAssignments(t *testing.T) {
	m, s, sub := setupManager(t)
	ctx := context.Background()

	round, err := m.Open(ctx, sub.ID, models.StageExternalReview)
	require.NoError(t, err)

	res, err := m.Refresh(ctx, round.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.RoundStatusPendingReviewers, res.Status)

	a := addAssignment(t, s, round.ID, models.AssignmentStatusAwaitingResponse)
	res, err = m.Refresh(ctx, round.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.RoundStatusPendingReviewers, res.Previous)
	assert.Equal(t, models.RoundStatusPendingReviews, res.Status)

	addAssignment(t, s, round.ID, models.AssignmentStatusReceived)
	res, err = m.Refresh(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusReviewsReady, res.Status)

	require.NoError(t, s.UpdateReviewAssignmentStatus(ctx, a.ID, models.AssignmentStatusReviewOverdue))
	res, err = m.Refresh(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusReviewsOverdue, res.Status)

	stored, err := s.GetReviewRound(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusReviewsOverdue, stored.Status)
}

func TestRefresh_RevisionsFollowFiles(t *testing.T) {
	m, s, sub := setupManager(t)
	ctx := context.Background()

	round, err := m.Open(ctx, sub.ID, models.StageExternalReview)
	require.NoError(t, err)
	addAssignment(t, s, round.ID, models.AssignmentStatusReceived)

	_, err = m.Decide(ctx, round.ID, models.RoundStatusRevisionsRequested)
	require.NoError(t, err)

	res, err := m.Refresh(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusRevisionsRequested, res.Status, "assignments are ignored during revisions")

	require.NoError(t, s.CreateSubmissionFile(ctx, &models.SubmissionFile{
		SubmissionID: sub.ID, StageID: models.StageExternalReview, Round: round.Round,
		FileStage: models.FileStageReviewRevision, Name: "revised.docx",
	}))
	res, err = m.Refresh(ctx, round.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, models.RoundStatusRevisionsSubmitted, res.Status)
}

func TestDecide(t *testing.T) {
	m, s, sub := setupManager(t)
	ctx := context.Background()

	round, err := m.Open(ctx, sub.ID, models.StageExternalReview)
	require.NoError(t, err)

	_, err = m.Decide(ctx, round.ID, models.RoundStatusReviewsReady)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotDecision)

	got, err := m.Decide(ctx, round.ID, models.RoundStatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusAccepted, got.Status)

	// A decision survives later refreshes.
	addAssignment(t, s, round.ID, models.AssignmentStatusReviewOverdue)
	res, err := m.Refresh(ctx, round.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, models.RoundStatusAccepted, res.Status)

	_, err = m.Decide(ctx, "missing", models.RoundStatusDeclined)
	assert.Error(t, err)
}

func TestLabel(t *testing.T) {
	r := &models.ReviewRound{Status: models.RoundStatusReviewsReady}
	assert.Equal(t, "author.submission.roundStatus.reviewsReady", Label(r, true))
	assert.Equal(t, "editor.submission.roundStatus.reviewsReady", Label(r, false))

	r.Status = "bogus"
	assert.Equal(t, "bogus", Label(r, false))
}
