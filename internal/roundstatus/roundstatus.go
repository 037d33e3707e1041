// Package roundstatus computes the status of a review round from its
// current status, its revision files and its review assignments.
package roundstatus

import (
	"context"
	"fmt"

	"github.com/joescharf/rounds/internal/models"
)

// RevisionFileLookup reports whether revision files exist for a round.
type RevisionFileLookup interface {
	HasRevisionFiles(ctx context.Context, submissionID string, stage models.StageID, round int) (bool, error)
}

// AssignmentLookup returns the statuses of a round's review assignments.
type AssignmentLookup interface {
	AssignmentStatusesForRound(ctx context.Context, roundID string) ([]models.AssignmentStatus, error)
}

// DetermineStatus returns the status a round should have.
//
// Rounds in revisions depend only on whether a revision file exists. Rounds
// closed by an editor decision keep their status. Everything else is derived
// from the assignments, where overdue beats unread beats incomplete.
//
// An unknown round or assignment status is a programming error and panics.
func DetermineStatus(current models.RoundStatus, hasRevisionFile bool, assignments []models.AssignmentStatus) models.RoundStatus {
	switch current {
	case models.RoundStatusRevisionsRequested, models.RoundStatusRevisionsSubmitted:
		if hasRevisionFile {
			return models.RoundStatusRevisionsSubmitted
		}
		return models.RoundStatusRevisionsRequested
	case models.RoundStatusResubmitted, models.RoundStatusSentToExternal,
		models.RoundStatusAccepted, models.RoundStatusDeclined:
		return current
	case models.RoundStatusPendingReviewers, models.RoundStatusPendingReviews,
		models.RoundStatusReviewsReady, models.RoundStatusReviewsCompleted,
		models.RoundStatusReviewsOverdue:
	default:
		panic(fmt.Sprintf("roundstatus: unknown round status %q", current))
	}

	var overdue, incomplete, unread bool
	for _, a := range assignments {
		switch a {
		case models.AssignmentStatusDeclined:
		case models.AssignmentStatusResponseOverdue, models.AssignmentStatusReviewOverdue:
			overdue = true
		case models.AssignmentStatusAwaitingResponse, models.AssignmentStatusAccepted:
			incomplete = true
		case models.AssignmentStatusReceived:
			unread = true
		default:
			panic(fmt.Sprintf("roundstatus: unknown assignment status %q", a))
		}
	}

	// Order matters: earlier conditions override later ones.
	switch {
	case len(assignments) == 0:
		return models.RoundStatusPendingReviewers
	case overdue:
		return models.RoundStatusReviewsOverdue
	case unread:
		return models.RoundStatusReviewsReady
	case incomplete:
		return models.RoundStatusPendingReviews
	default:
		return models.RoundStatusReviewsCompleted
	}
}

// IsDecision reports whether status is set by an editor decision rather than
// derived from assignments.
func IsDecision(status models.RoundStatus) bool {
	switch status {
	case models.RoundStatusRevisionsRequested, models.RoundStatusResubmitted,
		models.RoundStatusSentToExternal, models.RoundStatusAccepted, models.RoundStatusDeclined:
		return true
	default:
		return false
	}
}

// DecisionStatuses returns the statuses an editor decision may set.
func DecisionStatuses() []models.RoundStatus {
	return []models.RoundStatus{
		models.RoundStatusRevisionsRequested,
		models.RoundStatusResubmitted,
		models.RoundStatusSentToExternal,
		models.RoundStatusAccepted,
		models.RoundStatusDeclined,
	}
}

// Resolver fetches a round's dependent records and determines its status.
type Resolver struct {
	files       RevisionFileLookup
	assignments AssignmentLookup
}

// NewResolver creates a Resolver backed by the given lookups.
func NewResolver(files RevisionFileLookup, assignments AssignmentLookup) *Resolver {
	return &Resolver{files: files, assignments: assignments}
}

// Resolve returns the status the round should have. It does not modify the round.
func (r *Resolver) Resolve(ctx context.Context, round *models.ReviewRound) (models.RoundStatus, error) {
	switch round.Status {
	case models.RoundStatusRevisionsRequested, models.RoundStatusRevisionsSubmitted:
		has, err := r.files.HasRevisionFiles(ctx, round.SubmissionID, round.StageID, round.Round)
		if err != nil {
			return "", fmt.Errorf("lookup revision files: %w", err)
		}
		return DetermineStatus(round.Status, has, nil), nil
	}
	if IsDecision(round.Status) {
		return round.Status, nil
	}

	statuses, err := r.assignments.AssignmentStatusesForRound(ctx, round.ID)
	if err != nil {
		return "", fmt.Errorf("lookup review assignments: %w", err)
	}
	return DetermineStatus(round.Status, false, statuses), nil
}
