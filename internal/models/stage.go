package models

import "fmt"

// StageID identifies the review stage a round belongs to.
type StageID string

const (
	StageInternalReview StageID = "internal_review"
	StageExternalReview StageID = "external_review"
)

// Valid reports whether s is a known review stage.
func (s StageID) Valid() bool {
	switch s {
	case StageInternalReview, StageExternalReview:
		return true
	default:
		return false
	}
}

// ParseStageID accepts the stored name or the short forms "internal" and "external".
func ParseStageID(s string) (StageID, error) {
	switch s {
	case "internal", string(StageInternalReview):
		return StageInternalReview, nil
	case "external", string(StageExternalReview):
		return StageExternalReview, nil
	default:
		return "", fmt.Errorf("invalid review stage: %q", s)
	}
}
