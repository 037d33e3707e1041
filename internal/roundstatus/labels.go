package roundstatus

import "github.com/joescharf/rounds/internal/models"

// StatusLabel returns the label key for a round status. Reviews-ready has a
// separate author phrasing. The second result is false for an unknown status.
func StatusLabel(status models.RoundStatus, isAuthor bool) (string, bool) {
	switch status {
	case models.RoundStatusRevisionsRequested:
		return "editor.submission.roundStatus.revisionsRequested", true
	case models.RoundStatusRevisionsSubmitted:
		return "editor.submission.roundStatus.revisionsSubmitted", true
	case models.RoundStatusResubmitted:
		return "editor.submission.roundStatus.resubmitted", true
	case models.RoundStatusSentToExternal:
		return "editor.submission.roundStatus.sentToExternal", true
	case models.RoundStatusAccepted:
		return "editor.submission.roundStatus.accepted", true
	case models.RoundStatusDeclined:
		return "editor.submission.roundStatus.declined", true
	case models.RoundStatusPendingReviewers:
		return "editor.submission.roundStatus.pendingReviewers", true
	case models.RoundStatusPendingReviews:
		return "editor.submission.roundStatus.pendingReviews", true
	case models.RoundStatusReviewsReady:
		if isAuthor {
			return "author.submission.roundStatus.reviewsReady", true
		}
		return "editor.submission.roundStatus.reviewsReady", true
	case models.RoundStatusReviewsCompleted:
		return "editor.submission.roundStatus.reviewsCompleted", true
	case models.RoundStatusReviewsOverdue:
		return "editor.submission.roundStatus.reviewOverdue", true
	default:
		return "", false
	}
}
