package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/store"
)

// shortID returns a truncated ULID for display (first 12 chars).
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// matchPrefix resolves an ID prefix against ids. It returns the unique
// match, or an error naming the entity when there are none or several.
func matchPrefix(entity, ref string, ids []string) (string, error) {
	upper := strings.ToUpper(ref)
	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, upper) {
			matches = append(matches, id)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s not found: %s", entity, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous %s ID %s: matches %d", entity, ref, len(matches))
	}
}

// findSubmission finds a submission by full ID or prefix match.
func findSubmission(ctx context.Context, s store.Store, ref string) (*models.Submission, error) {
	if sub, err := s.GetSubmission(ctx, ref); err == nil {
		return sub, nil
	}
	subs, err := s.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(subs))
	for i, sub := range subs {
		ids[i] = sub.ID
	}
	id, err := matchPrefix("submission", ref, ids)
	if err != nil {
		return nil, err
	}
	return s.GetSubmission(ctx, id)
}

// findRound finds a review round by full ID or prefix match.
func findRound(ctx context.Context, s store.Store, ref string) (*models.ReviewRound, error) {
	if r, err := s.GetReviewRound(ctx, ref); err == nil {
		return r, nil
	}
	list, err := s.ListReviewRounds(ctx, store.ReviewRoundListFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	id, err := matchPrefix("review round", ref, ids)
	if err != nil {
		return nil, err
	}
	return s.GetReviewRound(ctx, id)
}

// findAssignment finds a review assignment by full ID or prefix match
// across all rounds.
func findAssignment(ctx context.Context, s store.Store, ref string) (*models.ReviewAssignment, error) {
	if a, err := s.GetReviewAssignment(ctx, ref); err == nil {
		return a, nil
	}
	list, err := s.ListReviewRounds(ctx, store.ReviewRoundListFilter{})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, r := range list {
		assignments, err := s.ListReviewAssignments(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range assignments {
			ids = append(ids, a.ID)
		}
	}
	id, err := matchPrefix("review assignment", ref, ids)
	if err != nil {
		return nil, err
	}
	return s.GetReviewAssignment(ctx, id)
}

// stageLabel is the short form used in tables.
func stageLabel(stage models.StageID) string {
	switch stage {
	case models.StageInternalReview:
		return "internal"
	case models.StageExternalReview:
		return "external"
	default:
		return string(stage)
	}
}

// timeAgo returns a human-readable duration from a time.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
