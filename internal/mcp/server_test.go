package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/rounds/internal/locale"
	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/store"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockStore implements store.Store for testing.
type mockStore struct {
	submissions []*models.Submission
	rounds      []*models.ReviewRound
	assignments []*models.ReviewAssignment
	files       []*models.SubmissionFile

	// Track calls for verification.
	statusUpdates map[string]models.RoundStatus

	// Optional error injection.
	listRoundsErr error
}

func (m *mockStore) CreateSubmission(_ context.Context, sub *models.Submission) error {
	m.submissions = append(m.submissions, sub)
	return nil
}
func (m *mockStore) GetSubmission(_ context.Context, id string) (*models.Submission, error) {
	for _, s := range m.submissions {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("submission not found: %s", id)
}
func (m *mockStore) ListSubmissions(_ context.Context) ([]*models.Submission, error) {
	return m.submissions, nil
}
func (m *mockStore) UpdateSubmission(_ context.Context, _ *models.Submission) error { return nil }
func (m *mockStore) DeleteSubmission(_ context.Context, _ string) error             { return nil }

func (m *mockStore) CreateReviewRound(_ context.Context, r *models.ReviewRound) error {
	m.rounds = append(m.rounds, r)
	return nil
}
func (m *mockStore) GetReviewRound(_ context.Context, id string) (*models.ReviewRound, error) {
	for _, r := range m.rounds {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("review round not found: %s", id)
}
func (m *mockStore) GetLatestReviewRound(_ context.Context, submissionID string, stage models.StageID) (*models.ReviewRound, error) {
	var latest *models.ReviewRound
	for _, r := range m.rounds {
		if r.SubmissionID == submissionID && r.StageID == stage && (latest == nil || r.Round > latest.Round) {
			latest = r
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("review round not found: %s", submissionID)
	}
	return latest, nil
}
func (m *mockStore) ListReviewRounds(_ context.Context, filter store.ReviewRoundListFilter) ([]*models.ReviewRound, error) {
	if m.listRoundsErr != nil {
		return nil, m.listRoundsErr
	}
	var out []*models.ReviewRound
	for _, r := range m.rounds {
		if filter.SubmissionID != "" && r.SubmissionID != filter.SubmissionID {
			continue
		}
		if filter.StageID != "" && r.StageID != filter.StageID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
func (m *mockStore) UpdateReviewRoundStatus(_ context.Context, id string, status models.RoundStatus) error {
	for _, r := range m.rounds {
		if r.ID == id {
			r.Status = status
			if m.statusUpdates == nil {
				m.statusUpdates = make(map[string]models.RoundStatus)
			}
			m.statusUpdates[id] = status
			return nil
		}
	}
	return fmt.Errorf("review round not found: %s", id)
}

func (m *mockStore) CreateReviewAssignment(_ context.Context, a *models.ReviewAssignment) error {
	if a.ID == "" {
		a.ID = fmt.Sprintf("asg-%d", len(m.assignments)+1)
	}
	if a.Status == "" {
		a.Status = models.AssignmentStatusAwaitingResponse
	}
	m.assignments = append(m.assignments, a)
	return nil
}
func (m *mockStore) GetReviewAssignment(_ context.Context, id string) (*models.ReviewAssignment, error) {
	for _, a := range m.assignments {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("review assignment not found: %s", id)
}
func (m *mockStore) ListReviewAssignments(_ context.Context, roundID string) ([]*models.ReviewAssignment, error) {
	var out []*models.ReviewAssignment
	for _, a := range m.assignments {
		if a.ReviewRoundID == roundID {
			out = append(out, a)
		}
	}
	return out, nil
}
func (m *mockStore) UpdateReviewAssignmentStatus(_ context.Context, _ string, _ models.AssignmentStatus) error {
	return nil
}
func (m *mockStore) DeleteReviewAssignment(_ context.Context, _ string) error { return nil }
func (m *mockStore) AssignmentStatusesForRound(_ context.Context, roundID string) ([]models.AssignmentStatus, error) {
	var out []models.AssignmentStatus
	for _, a := range m.assignments {
		if a.ReviewRoundID == roundID {
			out = append(out, a.Status)
		}
	}
	return out, nil
}

func (m *mockStore) CreateSubmissionFile(_ context.Context, f *models.SubmissionFile) error {
	m.files = append(m.files, f)
	return nil
}
func (m *mockStore) ListSubmissionFiles(_ context.Context, _ string) ([]*models.SubmissionFile, error) {
	return m.files, nil
}
func (m *mockStore) DeleteSubmissionFile(_ context.Context, _ string) error { return nil }
func (m *mockStore) HasRevisionFiles(_ context.Context, submissionID string, stage models.StageID, round int) (bool, error) {
	for _, f := range m.files {
		if f.SubmissionID == submissionID && f.StageID == stage && f.Round == round && f.FileStage == models.FileStageReviewRevision {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestServer creates a Server backed by a mock store.
func newTestServer(t *testing.T) (*Server, *mockStore) {
	t.Helper()

	catalog, err := locale.Load()
	require.NoError(t, err)

	ms := &mockStore{}
	srv := NewServer(ms, catalog)
	require.NotNil(t, srv)

	return srv, ms
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// seedRound adds a submission and one external review round to the mock store.
func seedRound(t *testing.T, ms *mockStore, id string, status models.RoundStatus) *models.ReviewRound {
	t.Helper()
	sub := &models.Submission{
		ID:        "sub-" + id,
		Title:     "Submission " + id,
		Author:    "Ada",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	ms.submissions = append(ms.submissions, sub)
	r := &models.ReviewRound{
		ID:           id,
		SubmissionID: sub.ID,
		StageID:      models.StageExternalReview,
		Round:        1,
		Status:       status,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	ms.rounds = append(ms.rounds, r)
	return r
}

func seedAssignment(ms *mockStore, roundID string, status models.AssignmentStatus) {
	ms.assignments = append(ms.assignments, &models.ReviewAssignment{
		ID:            fmt.Sprintf("asg-%d", len(ms.assignments)+1),
		ReviewRoundID: roundID,
		ReviewerName:  "Reviewer",
		Status:        status,
		DateAssigned:  time.Now(),
	})
}

// ---------------------------------------------------------------------------
// Tests: MCPServer registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

// ---------------------------------------------------------------------------
// Tests: rounds_list_rounds
// ---------------------------------------------------------------------------

func TestHandleListRounds_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListRounds(context.Background(), callToolReq("rounds_list_rounds", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var out []roundOut
	resultJSON(t, result, &out)
	assert.Empty(t, out)
}

func TestHandleListRounds_StatusFilterAndLabels(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusReviewsOverdue)
	seedRound(t, ms, "r2", models.RoundStatusAccepted)

	req := callToolReq("rounds_list_rounds", map[string]any{"status": "reviews_overdue", "lang": "fr"})
	result, err := srv.handleListRounds(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out []roundOut
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
	assert.Equal(t, "reviews_overdue", out[0].Status)
	assert.Equal(t, "Une évaluation est en retard.", out[0].Label)
}

func TestHandleListRounds_InvalidStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListRounds(context.Background(), callToolReq("rounds_list_rounds", map[string]any{"status": "bogus"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleListRounds_StoreError(t *testing.T) {
	srv, ms := newTestServer(t)
	ms.listRoundsErr = fmt.Errorf("db connection failed")

	result, err := srv.handleListRounds(context.Background(), callToolReq("rounds_list_rounds", nil))
	require.NoError(t, err, "handler should not return Go error; should wrap in result")
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "db connection failed")
}

// ---------------------------------------------------------------------------
// Tests: rounds_round_status
// ---------------------------------------------------------------------------

func TestHandleRoundStatus(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusPendingReviews)
	seedAssignment(ms, "r1", models.AssignmentStatusReceived)
	seedAssignment(ms, "r1", models.AssignmentStatusReceived)
	seedAssignment(ms, "r1", models.AssignmentStatusReviewOverdue)

	req := callToolReq("rounds_round_status", map[string]any{"round_id": "r1", "author": true})
	result, err := srv.handleRoundStatus(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Status      string         `json:"status"`
		Resolved    string         `json:"resolved_status"`
		Stale       bool           `json:"stale"`
		Assignments map[string]int `json:"assignments"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "pending_reviews", out.Status)
	assert.Equal(t, "reviews_overdue", out.Resolved)
	assert.True(t, out.Stale)
	assert.Equal(t, 2, out.Assignments["received"])
	assert.Equal(t, 1, out.Assignments["review_overdue"])

	// Reading status never writes.
	assert.Empty(t, ms.statusUpdates)
}

func TestHandleRoundStatus_MissingParam(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleRoundStatus(context.Background(), callToolReq("rounds_round_status", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "round_id")
}

func TestHandleRoundStatus_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleRoundStatus(context.Background(), callToolReq("rounds_round_status", map[string]any{"round_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

// ---------------------------------------------------------------------------
// Tests: rounds_refresh_round
// ---------------------------------------------------------------------------

func TestHandleRefreshRound(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusPendingReviewers)
	seedAssignment(ms, "r1", models.AssignmentStatusAccepted)

	result, err := srv.handleRefreshRound(context.Background(), callToolReq("rounds_refresh_round", map[string]any{"round_id": "r1"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Previous string `json:"previous"`
		Status   string `json:"status"`
		Changed  bool   `json:"changed"`
	}
	resultJSON(t, result, &out)
	assert.Equal(t, "pending_reviewers", out.Previous)
	assert.Equal(t, "pending_reviews", out.Status)
	assert.True(t, out.Changed)
	assert.Equal(t, models.RoundStatusPendingReviews, ms.statusUpdates["r1"])
}

func TestHandleRefreshRound_RevisionFile(t *testing.T) {
	srv, ms := newTestServer(t)
	r := seedRound(t, ms, "r1", models.RoundStatusRevisionsRequested)
	ms.files = append(ms.files, &models.SubmissionFile{
		ID:           "f1",
		SubmissionID: r.SubmissionID,
		StageID:      r.StageID,
		Round:        r.Round,
		FileStage:    models.FileStageReviewRevision,
		Name:         "revised.pdf",
	})

	result, err := srv.handleRefreshRound(context.Background(), callToolReq("rounds_refresh_round", map[string]any{"round_id": "r1"}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, models.RoundStatusRevisionsSubmitted, ms.statusUpdates["r1"])
}

// ---------------------------------------------------------------------------
// Tests: rounds_record_decision
// ---------------------------------------------------------------------------

func TestHandleRecordDecision(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusReviewsCompleted)

	req := callToolReq("rounds_record_decision", map[string]any{"round_id": "r1", "status": "accepted"})
	result, err := srv.handleRecordDecision(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out roundOut
	resultJSON(t, result, &out)
	assert.Equal(t, "accepted", out.Status)
	assert.Equal(t, models.RoundStatusAccepted, ms.statusUpdates["r1"])
}

func TestHandleRecordDecision_NotADecision(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusReviewsCompleted)

	req := callToolReq("rounds_record_decision", map[string]any{"round_id": "r1", "status": "reviews_ready"})
	result, err := srv.handleRecordDecision(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, ms.statusUpdates)
}

// ---------------------------------------------------------------------------
// Tests: rounds_add_assignment
// ---------------------------------------------------------------------------

func TestHandleAddAssignment(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusPendingReviewers)

	req := callToolReq("rounds_add_assignment", map[string]any{"round_id": "r1", "reviewer": "Grace", "email": "grace@example.com"})
	result, err := srv.handleAddAssignment(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]string
	resultJSON(t, result, &out)
	assert.Equal(t, "Grace", out["reviewer"])
	assert.Equal(t, "awaiting_response", out["status"])
	assert.Equal(t, "pending_reviews", out["round_status"])

	require.Len(t, ms.assignments, 1)
	assert.Equal(t, "grace@example.com", ms.assignments[0].ReviewerEmail)
	assert.Equal(t, models.RoundStatusPendingReviews, ms.statusUpdates["r1"])
}

func TestHandleAddAssignment_ReceivedReviewMakesRoundReady(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusPendingReviews)
	seedAssignment(ms, "r1", models.AssignmentStatusAccepted)

	req := callToolReq("rounds_add_assignment", map[string]any{"round_id": "r1", "reviewer": "Grace", "status": "received"})
	result, err := srv.handleAddAssignment(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out map[string]string
	resultJSON(t, result, &out)
	assert.Equal(t, "reviews_ready", out["round_status"])
	assert.Equal(t, models.RoundStatusReviewsReady, ms.statusUpdates["r1"])
}

func TestHandleAddAssignment_UnknownRound(t *testing.T) {
	srv, ms := newTestServer(t)

	req := callToolReq("rounds_add_assignment", map[string]any{"round_id": "nope", "reviewer": "Grace"})
	result, err := srv.handleAddAssignment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Empty(t, ms.assignments)
}

func TestHandleAddAssignment_InvalidStatus(t *testing.T) {
	srv, ms := newTestServer(t)
	seedRound(t, ms, "r1", models.RoundStatusPendingReviewers)

	req := callToolReq("rounds_add_assignment", map[string]any{"round_id": "r1", "reviewer": "Grace", "status": "sleeping"})
	result, err := srv.handleAddAssignment(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
