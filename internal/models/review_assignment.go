package models

import (
	"fmt"
	"time"
)

// AssignmentStatus is the state of a single reviewer's assignment.
type AssignmentStatus string

const (
	AssignmentStatusDeclined         AssignmentStatus = "declined"
	AssignmentStatusResponseOverdue  AssignmentStatus = "response_overdue"
	AssignmentStatusReviewOverdue    AssignmentStatus = "review_overdue"
	AssignmentStatusAwaitingResponse AssignmentStatus = "awaiting_response"
	AssignmentStatusAccepted         AssignmentStatus = "accepted"
	AssignmentStatusReceived         AssignmentStatus = "received" // submitted, not yet read by the editor
)

// AllAssignmentStatuses lists every assignment status.
var AllAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusDeclined,
	AssignmentStatusResponseOverdue,
	AssignmentStatusReviewOverdue,
	AssignmentStatusAwaitingResponse,
	AssignmentStatusAccepted,
	AssignmentStatusReceived,
}

// Valid reports whether s is a known assignment status.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusDeclined, AssignmentStatusResponseOverdue, AssignmentStatusReviewOverdue,
		AssignmentStatusAwaitingResponse, AssignmentStatusAccepted, AssignmentStatusReceived:
		return true
	default:
		return false
	}
}

// ParseAssignmentStatus validates a stored or user-supplied assignment status.
func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	st := AssignmentStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid assignment status: %q", s)
	}
	return st, nil
}

// ReviewAssignment links a reviewer to a review round.
type ReviewAssignment struct {
	ID            string
	ReviewRoundID string
	ReviewerName  string
	ReviewerEmail string
	Status        AssignmentStatus
	DateAssigned  time.Time
	DateDue       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
