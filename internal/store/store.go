package store

import (
	"context"

	"github.com/joescharf/rounds/internal/models"
)

// ReviewRoundListFilter specifies filters for listing review rounds.
type ReviewRoundListFilter struct {
	SubmissionID string
	StageID      models.StageID
	Status       models.RoundStatus
}

// Store defines the persistence interface for rounds.
//
// Implementations also satisfy roundstatus.RevisionFileLookup and
// roundstatus.AssignmentLookup.
type Store interface {
	// Submissions
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	ListSubmissions(ctx context.Context) ([]*models.Submission, error)
	UpdateSubmission(ctx context.Context, sub *models.Submission) error
	DeleteSubmission(ctx context.Context, id string) error

	// Review rounds
	CreateReviewRound(ctx context.Context, round *models.ReviewRound) error
	GetReviewRound(ctx context.Context, id string) (*models.ReviewRound, error)
	GetLatestReviewRound(ctx context.Context, submissionID string, stage models.StageID) (*models.ReviewRound, error)
	ListReviewRounds(ctx context.Context, filter ReviewRoundListFilter) ([]*models.ReviewRound, error)
	UpdateReviewRoundStatus(ctx context.Context, id string, status models.RoundStatus) error

	// Review assignments
	CreateReviewAssignment(ctx context.Context, a *models.ReviewAssignment) error
	GetReviewAssignment(ctx context.Context, id string) (*models.ReviewAssignment, error)
	ListReviewAssignments(ctx context.Context, roundID string) ([]*models.ReviewAssignment, error)
	UpdateReviewAssignmentStatus(ctx context.Context, id string, status models.AssignmentStatus) error
	DeleteReviewAssignment(ctx context.Context, id string) error
	AssignmentStatusesForRound(ctx context.Context, roundID string) ([]models.AssignmentStatus, error)

	// Submission files
	CreateSubmissionFile(ctx context.Context, f *models.SubmissionFile) error
	ListSubmissionFiles(ctx context.Context, submissionID string) ([]*models.SubmissionFile, error)
	DeleteSubmissionFile(ctx context.Context, id string) error
	HasRevisionFiles(ctx context.Context, submissionID string, stage models.StageID, round int) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
