package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundStatus_Code(t *testing.T) {
	assert.Equal(t, 1, RoundStatusRevisionsRequested.Code())
	assert.Equal(t, 5, RoundStatusDeclined.Code())
	assert.Equal(t, 6, RoundStatusPendingReviewers.Code())
	assert.Equal(t, 10, RoundStatusReviewsOverdue.Code())
	assert.Equal(t, 11, RoundStatusRevisionsSubmitted.Code())
	assert.Equal(t, 0, RoundStatus("nope").Code())
}

func TestParseRoundStatus(t *testing.T) {
	for _, s := range AllRoundStatuses {
		got, err := ParseRoundStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseRoundStatus("ready")
	assert.Error(t, err)
	_, err = ParseRoundStatus("")
	assert.Error(t, err)
}

func TestParseAssignmentStatus(t *testing.T) {
	for _, s := range AllAssignmentStatuses {
		got, err := ParseAssignmentStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseAssignmentStatus("pending")
	assert.Error(t, err)
}

func TestParseStageID(t *testing.T) {
	got, err := ParseStageID("internal")
	require.NoError(t, err)
	assert.Equal(t, StageInternalReview, got)

	got, err = ParseStageID("external_review")
	require.NoError(t, err)
	assert.Equal(t, StageExternalReview, got)

	_, err = ParseStageID("copyediting")
	assert.Error(t, err)
}

func TestParseFileStage(t *testing.T) {
	got, err := ParseFileStage("review_revision")
	require.NoError(t, err)
	assert.Equal(t, FileStageReviewRevision, got)

	_, err = ParseFileStage("revision")
	assert.Error(t, err)
}
