package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildNoticePrompt(t *testing.T) {
	t.Run("with author and assignments", func(t *testing.T) {
		system, user := buildNoticePrompt(NoticeInput{
			SubmissionTitle: "On Review Rounds",
			AuthorName:      "Ada Author",
			Stage:           "external_review",
			Round:           2,
			Status:          "reviews_ready",
			StatusText:      "Reviews have been submitted and are being considered by the editor.",
			Assignments:     3,
			Completed:       2,
		})

		assert.Contains(t, system, "Never reveal reviewer identities")
		assert.Contains(t, system, "The Editorial Office")

		assert.Contains(t, user, "Manuscript: On Review Rounds")
		assert.Contains(t, user, "Author: Ada Author")
		assert.Contains(t, user, "external_review, round 2")
		assert.Contains(t, user, "being considered by the editor")
		assert.Contains(t, user, "Reviews completed: 2 of 3")
	})

	t.Run("without author or assignments", func(t *testing.T) {
		_, user := buildNoticePrompt(NoticeInput{
			SubmissionTitle: "Untitled",
			Stage:           "internal_review",
			Round:           1,
			Status:          "pending_reviewers",
			StatusText:      "Waiting for reviewers to be assigned.",
		})

		assert.NotContains(t, user, "Author:")
		assert.NotContains(t, user, "Reviews completed")
		assert.Contains(t, user, "pending_reviewers")
	})
}

func TestNewClient(t *testing.T) {
	c := NewClient("test-key", "claude-haiku-4-5-20251001")
	assert.NotNil(t, c.api)
	assert.Equal(t, "claude-haiku-4-5-20251001", string(c.model))
}
