package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/rounds/internal/locale"
	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/rounds"
	"github.com/joescharf/rounds/internal/roundstatus"
	"github.com/joescharf/rounds/internal/store"
)

// Server wraps the rounds data layer and exposes it as MCP tools.
type Server struct {
	store   store.Store
	rounds  *rounds.Manager
	catalog *locale.Catalog
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, catalog *locale.Catalog) *Server {
	return &Server{
		store:   s,
		rounds:  rounds.NewManager(s),
		catalog: catalog,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("rounds", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listRoundsTool())
	srv.AddTool(s.roundStatusTool())
	srv.AddTool(s.refreshRoundTool())
	srv.AddTool(s.recordDecisionTool())
	srv.AddTool(s.addAssignmentTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// toolError logs a failed tool call and returns it as an MCP error result.
func toolError(tool string, err error) *mcp.CallToolResult {
	slog.Warn("mcp tool failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(tool string, v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return toolError(tool, fmt.Errorf("marshal result: %w", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

type roundOut struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	Stage        string `json:"stage"`
	Round        int    `json:"round"`
	Status       string `json:"status"`
	Label        string `json:"label"`
}

func (s *Server) toRoundOut(r *models.ReviewRound, lang string, isAuthor bool) roundOut {
	return roundOut{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		Stage:        string(r.StageID),
		Round:        r.Round,
		Status:       string(r.Status),
		Label:        s.catalog.Text(s.catalog.Match(lang), rounds.Label(r, isAuthor)),
	}
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// rounds_list_rounds
func (s *Server) listRoundsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rounds_list_rounds",
		mcp.WithDescription("List review rounds. Returns a JSON array with id, submission_id, stage, round number, status and a display label."),
		mcp.WithString("submission_id", mcp.Description("Only rounds of this submission")),
		mcp.WithString("status", mcp.Description("Only rounds with this status, e.g. reviews_overdue")),
		mcp.WithString("lang", mcp.Description("Label language, e.g. en or fr")),
	)
	return tool, s.handleListRounds
}

func (s *Server) handleListRounds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.ReviewRoundListFilter{SubmissionID: request.GetString("submission_id", "")}
	if v := request.GetString("status", ""); v != "" {
		st, err := models.ParseRoundStatus(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Status = st
	}

	list, err := s.store.ListReviewRounds(ctx, filter)
	if err != nil {
		return toolError("rounds_list_rounds", fmt.Errorf("failed to list rounds: %w", err)), nil
	}

	lang := request.GetString("lang", "")
	out := make([]roundOut, len(list))
	for i, r := range list {
		out[i] = s.toRoundOut(r, lang, false)
	}
	return jsonResult("rounds_list_rounds", out)
}

// rounds_round_status
func (s *Server) roundStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rounds_round_status",
		mcp.WithDescription("Get a review round's stored status, the status it would have after a refresh, its label, and a count of its review assignments by status."),
		mcp.WithString("round_id", mcp.Required(), mcp.Description("Review round ID")),
		mcp.WithBoolean("author", mcp.Description("Use the author-facing label phrasing")),
		mcp.WithString("lang", mcp.Description("Label language, e.g. en or fr")),
	)
	return tool, s.handleRoundStatus
}

func (s *Server) handleRoundStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roundID, err := request.RequireString("round_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: round_id"), nil
	}

	round, err := s.store.GetReviewRound(ctx, roundID)
	if err != nil {
		return toolError("rounds_round_status", err), nil
	}
	assignments, err := s.store.ListReviewAssignments(ctx, roundID)
	if err != nil {
		return toolError("rounds_round_status", err), nil
	}

	counts := make(map[string]int)
	for _, a := range assignments {
		counts[string(a.Status)]++
	}

	resolved, err := roundstatus.NewResolver(s.store, s.store).Resolve(ctx, round)
	if err != nil {
		return toolError("rounds_round_status", err), nil
	}

	out := struct {
		roundOut
		Resolved    string         `json:"resolved_status"`
		Stale       bool           `json:"stale"`
		Assignments map[string]int `json:"assignments"`
	}{
		roundOut:    s.toRoundOut(round, request.GetString("lang", ""), request.GetBool("author", false)),
		Resolved:    string(resolved),
		Stale:       resolved != round.Status,
		Assignments: counts,
	}
	return jsonResult("rounds_round_status", out)
}

// rounds_refresh_round
func (s *Server) refreshRoundTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rounds_refresh_round",
		mcp.WithDescription("Recompute a review round's status from its assignments and revision files and save it."),
		mcp.WithString("round_id", mcp.Required(), mcp.Description("Review round ID")),
	)
	return tool, s.handleRefreshRound
}

func (s *Server) handleRefreshRound(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roundID, err := request.RequireString("round_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: round_id"), nil
	}

	res, err := s.rounds.Refresh(ctx, roundID)
	if err != nil {
		return toolError("rounds_refresh_round", err), nil
	}
	return jsonResult("rounds_refresh_round", res)
}

// rounds_record_decision
func (s *Server) recordDecisionTool() (mcp.Tool, server.ToolHandlerFunc) {
	decisions := make([]string, 0, 5)
	for _, d := range roundstatus.DecisionStatuses() {
		decisions = append(decisions, string(d))
	}

	tool := mcp.NewTool("rounds_record_decision",
		mcp.WithDescription("Record an editor decision on a review round. Decisions override the status derived from assignments."),
		mcp.WithString("round_id", mcp.Required(), mcp.Description("Review round ID")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Decision"), mcp.Enum(decisions...)),
	)
	return tool, s.handleRecordDecision
}

func (s *Server) handleRecordDecision(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roundID, err := request.RequireString("round_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: round_id"), nil
	}
	raw, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	status, err := models.ParseRoundStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	round, err := s.rounds.Decide(ctx, roundID, status)
	if errors.Is(err, rounds.ErrNotDecision) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return toolError("rounds_record_decision", err), nil
	}
	return jsonResult("rounds_record_decision", s.toRoundOut(round, "", false))
}

// rounds_add_assignment
func (s *Server) addAssignmentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("rounds_add_assignment",
		mcp.WithDescription("Assign a reviewer to a review round."),
		mcp.WithString("round_id", mcp.Required(), mcp.Description("Review round ID")),
		mcp.WithString("reviewer", mcp.Required(), mcp.Description("Reviewer name")),
		mcp.WithString("email", mcp.Description("Reviewer email")),
		mcp.WithString("status", mcp.Description("Initial assignment status (default: awaiting_response)")),
	)
	return tool, s.handleAddAssignment
}

func (s *Server) handleAddAssignment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roundID, err := request.RequireString("round_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: round_id"), nil
	}
	reviewer, err := request.RequireString("reviewer")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: reviewer"), nil
	}

	if _, err := s.store.GetReviewRound(ctx, roundID); err != nil {
		return toolError("rounds_add_assignment", err), nil
	}

	a := &models.ReviewAssignment{
		ReviewRoundID: roundID,
		ReviewerName:  reviewer,
		ReviewerEmail: request.GetString("email", ""),
	}
	if v := request.GetString("status", ""); v != "" {
		st, err := models.ParseAssignmentStatus(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		a.Status = st
	}

	if err := s.store.CreateReviewAssignment(ctx, a); err != nil {
		return toolError("rounds_add_assignment", err), nil
	}
	res, err := s.rounds.Refresh(ctx, roundID)
	if err != nil {
		return toolError("rounds_add_assignment", err), nil
	}
	return jsonResult("rounds_add_assignment", map[string]string{
		"id":           a.ID,
		"round_id":     a.ReviewRoundID,
		"reviewer":     a.ReviewerName,
		"status":       string(a.Status),
		"round_status": string(res.Status),
	})
}
