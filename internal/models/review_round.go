package models

import (
	"fmt"
	"time"
)

// RoundStatus is the status of a review round.
//
// The first five values are set by editor decisions and override whatever
// the assignments say. The rest are derived from the round's review
// assignments and revision files.
type RoundStatus string

const (
	RoundStatusRevisionsRequested RoundStatus = "revisions_requested"
	RoundStatusResubmitted        RoundStatus = "resubmitted"
	RoundStatusSentToExternal     RoundStatus = "sent_to_external"
	RoundStatusAccepted           RoundStatus = "accepted"
	RoundStatusDeclined           RoundStatus = "declined"

	RoundStatusPendingReviewers   RoundStatus = "pending_reviewers"   // no reviewers assigned
	RoundStatusPendingReviews     RoundStatus = "pending_reviews"     // waiting on reviewers
	RoundStatusReviewsReady       RoundStatus = "reviews_ready"       // a review is ready for the editor
	RoundStatusReviewsCompleted   RoundStatus = "reviews_completed"   // all reviews confirmed by the editor
	RoundStatusReviewsOverdue     RoundStatus = "reviews_overdue"     // a response or review is overdue
	RoundStatusRevisionsSubmitted RoundStatus = "revisions_submitted" // revision files uploaded after a request
)

// AllRoundStatuses lists every round status in legacy code order.
var AllRoundStatuses = []RoundStatus{
	RoundStatusRevisionsRequested,
	RoundStatusResubmitted,
	RoundStatusSentToExternal,
	RoundStatusAccepted,
	RoundStatusDeclined,
	RoundStatusPendingReviewers,
	RoundStatusPendingReviews,
	RoundStatusReviewsReady,
	RoundStatusReviewsCompleted,
	RoundStatusReviewsOverdue,
	RoundStatusRevisionsSubmitted,
}

// Valid reports whether s is a known round status.
func (s RoundStatus) Valid() bool {
	return s.Code() != 0
}

// Code returns the legacy numeric code (1-11) used in exports, or 0 for an
// unknown status.
func (s RoundStatus) Code() int {
	for i, st := range AllRoundStatuses {
		if st == s {
			return i + 1
		}
	}
	return 0
}

func (s RoundStatus) String() string {
	return string(s)
}

// ParseRoundStatus validates a stored or user-supplied status name.
func ParseRoundStatus(s string) (RoundStatus, error) {
	st := RoundStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid round status: %q", s)
	}
	return st, nil
}

// ReviewRound is one numbered cycle of peer review for a submission at one stage.
type ReviewRound struct {
	ID           string
	SubmissionID string
	StageID      StageID
	Round        int // 1-based within (SubmissionID, StageID)
	Status       RoundStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
