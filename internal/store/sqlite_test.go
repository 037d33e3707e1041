package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/rounds/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func createSubmission(t *testing.T, s *SQLiteStore, title string) *models.Submission {
	t.Helper()
	sub := &models.Submission{Title: title, Author: "A. Author", AuthorEmail: "author@example.org"}
	require.NoError(t, s.CreateSubmission(context.Background(), sub))
	return sub
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	err := s.Migrate(context.Background())
	assert.NoError(t, err)
}

// --- Submission CRUD ---

func TestSubmissionCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub := createSubmission(t, s, "On Review Rounds")
	assert.NotEmpty(t, sub.ID)
	assert.False(t, sub.CreatedAt.IsZero())

	got, err := s.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "On Review Rounds", got.Title)
	assert.Equal(t, "author@example.org", got.AuthorEmail)

	got.Title = "On Review Rounds, Revised"
	require.NoError(t, s.UpdateSubmission(ctx, got))

	got2, err := s.GetSubmission(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "On Review Rounds, Revised", got2.Title)

	subs, err := s.ListSubmissions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	require.NoError(t, s.DeleteSubmission(ctx, sub.ID))
	_, err = s.GetSubmission(ctx, sub.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCreateSubmission_RequiresTitle(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateSubmission(context.Background(), &models.Submission{Title: "  "})
	assert.Error(t, err)
}

// --- Review Rounds ---

func TestCreateReviewRound_NumbersPerStage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")

	r1 := &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview}
	require.NoError(t, s.CreateReviewRound(ctx, r1))
	assert.Equal(t, 1, r1.Round)
	assert.Equal(t, models.RoundStatusPendingReviewers, r1.Status)

	r2 := &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview}
	require.NoError(t, s.CreateReviewRound(ctx, r2))
	assert.Equal(t, 2, r2.Round)

	internal := &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageInternalReview}
	require.NoError(t, s.CreateReviewRound(ctx, internal))
	assert.Equal(t, 1, internal.Round, "numbering is per stage")

	latest, err := s.GetLatestReviewRound(ctx, sub.ID, models.StageExternalReview)
	require.NoError(t, err)
	assert.Equal(t, r2.ID, latest.ID)

	_, err = s.GetLatestReviewRound(ctx, "missing", models.StageExternalReview)
	assert.Error(t, err)
}

func TestCreateReviewRound_DuplicateRound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")

	require.NoError(t, s.CreateReviewRound(ctx, &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview, Round: 1}))
	err := s.CreateReviewRound(ctx, &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview, Round: 1})
	assert.Error(t, err)
}

func TestCreateReviewRound_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")

	err := s.CreateReviewRound(ctx, &models.ReviewRound{SubmissionID: sub.ID, StageID: "copyediting"})
	assert.Error(t, err)

	err = s.CreateReviewRound(ctx, &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview, Status: "bogus"})
	assert.Error(t, err)

	err = s.CreateReviewRound(ctx, &models.ReviewRound{SubmissionID: "missing", StageID: models.StageExternalReview})
	assert.Error(t, err, "foreign key should reject unknown submission")
}

func TestReviewRoundStatusAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")
	other := createSubmission(t, s, "Other")

	r := &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview}
	require.NoError(t, s.CreateReviewRound(ctx, r))
	require.NoError(t, s.CreateReviewRound(ctx, &models.ReviewRound{SubmissionID: other.ID, StageID: models.StageInternalReview}))

	require.NoError(t, s.UpdateReviewRoundStatus(ctx, r.ID, models.RoundStatusRevisionsRequested))
	got, err := s.GetReviewRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoundStatusRevisionsRequested, got.Status)

	assert.Error(t, s.UpdateReviewRoundStatus(ctx, r.ID, "bogus"))
	assert.Error(t, s.UpdateReviewRoundStatus(ctx, "missing", models.RoundStatusAccepted))

	all, err := s.ListReviewRounds(ctx, ReviewRoundListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	bySub, err := s.ListReviewRounds(ctx, ReviewRoundListFilter{SubmissionID: sub.ID})
	require.NoError(t, err)
	require.Len(t, bySub, 1)
	assert.Equal(t, r.ID, bySub[0].ID)

	byStatus, err := s.ListReviewRounds(ctx, ReviewRoundListFilter{Status: models.RoundStatusPendingReviewers})
	require.NoError(t, err)
	assert.Len(t, byStatus, 1)

	byStage, err := s.ListReviewRounds(ctx, ReviewRoundListFilter{StageID: models.StageExternalReview})
	require.NoError(t, err)
	assert.Len(t, byStage, 1)
}

func TestDeleteSubmission_CascadesRounds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")

	r := &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview}
	require.NoError(t, s.CreateReviewRound(ctx, r))
	require.NoError(t, s.CreateReviewAssignment(ctx, &models.ReviewAssignment{ReviewRoundID: r.ID, ReviewerName: "R1"}))

	require.NoError(t, s.DeleteSubmission(ctx, sub.ID))

	_, err := s.GetReviewRound(ctx, r.ID)
	assert.Error(t, err)
	statuses, err := s.AssignmentStatusesForRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}

// --- Review Assignments ---

func TestReviewAssignmentCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")
	r := &models.ReviewRound{SubmissionID: sub.ID, StageID: models.StageExternalReview}
	require.NoError(t, s.CreateReviewRound(ctx, r))

	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	a := &models.ReviewAssignment{ReviewRoundID: r.ID, ReviewerName: "Reviewer One", DateDue: &due}
	require.NoError(t, s.CreateReviewAssignment(ctx, a))
	assert.Equal(t, models.AssignmentStatusAwaitingResponse, a.Status)
	assert.False(t, a.DateAssigned.IsZero())

	b := &models.ReviewAssignment{ReviewRoundID: r.ID, ReviewerName: "Reviewer Two", Status: models.AssignmentStatusReceived}
	require.NoError(t, s.CreateReviewAssignment(ctx, b))

	got, err := s.GetReviewAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reviewer One", got.ReviewerName)
	require.NotNil(t, got.DateDue)
	assert.True(t, due.Equal(*got.DateDue))

	gotB, err := s.GetReviewAssignment(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, gotB.DateDue)

	list, err := s.ListReviewAssignments(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.UpdateReviewAssignmentStatus(ctx, a.ID, models.AssignmentStatusReviewOverdue))
	statuses, err := s.AssignmentStatusesForRound(ctx, r.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.AssignmentStatus{models.AssignmentStatusReviewOverdue, models.AssignmentStatusReceived}, statuses)

	assert.Error(t, s.UpdateReviewAssignmentStatus(ctx, a.ID, "bogus"))

	require.NoError(t, s.DeleteReviewAssignment(ctx, a.ID))
	_, err = s.GetReviewAssignment(ctx, a.ID)
	assert.Error(t, err)
	assert.Error(t, s.DeleteReviewAssignment(ctx, a.ID))
}

func TestCreateReviewAssignment_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.CreateReviewAssignment(ctx, &models.ReviewAssignment{ReviewRoundID: "x"}))
	assert.Error(t, s.CreateReviewAssignment(ctx, &models.ReviewAssignment{ReviewRoundID: "x", ReviewerName: "R", Status: "bogus"}))
}

// --- Submission Files ---

func TestHasRevisionFiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")

	has, err := s.HasRevisionFiles(ctx, sub.ID, models.StageExternalReview, 1)
	require.NoError(t, err)
	assert.False(t, has)

	// Non-revision files in the same round don't count.
	require.NoError(t, s.CreateSubmissionFile(ctx, &models.SubmissionFile{
		SubmissionID: sub.ID, StageID: models.StageExternalReview, Round: 1,
		FileStage: models.FileStageReviewAttachment, Name: "comments.pdf",
	}))
	// Revision in another round doesn't count.
	require.NoError(t, s.CreateSubmissionFile(ctx, &models.SubmissionFile{
		SubmissionID: sub.ID, StageID: models.StageExternalReview, Round: 2,
		FileStage: models.FileStageReviewRevision, Name: "v3.docx",
	}))
	has, err = s.HasRevisionFiles(ctx, sub.ID, models.StageExternalReview, 1)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.CreateSubmissionFile(ctx, &models.SubmissionFile{
		SubmissionID: sub.ID, StageID: models.StageExternalReview, Round: 1,
		FileStage: models.FileStageReviewRevision, Name: "v2.docx",
	}))
	has, err = s.HasRevisionFiles(ctx, sub.ID, models.StageExternalReview, 1)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = s.HasRevisionFiles(ctx, sub.ID, models.StageInternalReview, 1)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSubmissionFileCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	sub := createSubmission(t, s, "Paper")

	f := &models.SubmissionFile{SubmissionID: sub.ID, Name: "manuscript.pdf"}
	require.NoError(t, s.CreateSubmissionFile(ctx, f))
	assert.Equal(t, models.FileStageSubmission, f.FileStage)

	files, err := s.ListSubmissionFiles(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "manuscript.pdf", files[0].Name)
	assert.Equal(t, models.StageID(""), files[0].StageID)

	assert.Error(t, s.CreateSubmissionFile(ctx, &models.SubmissionFile{SubmissionID: sub.ID, Name: "x", FileStage: "bogus"}))
	assert.Error(t, s.CreateSubmissionFile(ctx, &models.SubmissionFile{SubmissionID: sub.ID}))

	require.NoError(t, s.DeleteSubmissionFile(ctx, f.ID))
	assert.Error(t, s.DeleteSubmissionFile(ctx, f.ID))
}
