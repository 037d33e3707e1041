package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/joescharf/rounds/internal/locale"
	"github.com/joescharf/rounds/internal/models"
	"github.com/joescharf/rounds/internal/refresh"
	"github.com/joescharf/rounds/internal/rounds"
	"github.com/joescharf/rounds/internal/store"
)

// Server provides the REST API handlers.
type Server struct {
	store   store.Store
	rounds  *rounds.Manager
	catalog *locale.Catalog
}

// NewServer creates a new API server.
func NewServer(s store.Store, catalog *locale.Catalog) *Server {
	return &Server{
		store:   s,
		rounds:  rounds.NewManager(s),
		catalog: catalog,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/submissions", s.listSubmissions)
	mux.HandleFunc("POST /api/v1/submissions", s.createSubmission)
	mux.HandleFunc("GET /api/v1/submissions/{id}", s.getSubmission)
	mux.HandleFunc("DELETE /api/v1/submissions/{id}", s.deleteSubmission)

	mux.HandleFunc("GET /api/v1/submissions/{id}/rounds", s.listSubmissionRounds)
	mux.HandleFunc("POST /api/v1/submissions/{id}/rounds", s.openRound)
	mux.HandleFunc("GET /api/v1/submissions/{id}/files", s.listFiles)
	mux.HandleFunc("POST /api/v1/submissions/{id}/files", s.createFile)

	mux.HandleFunc("GET /api/v1/rounds", s.listRounds)
	mux.HandleFunc("POST /api/v1/rounds/refresh", s.refreshAllRounds)
	mux.HandleFunc("GET /api/v1/rounds/{id}", s.getRound)
	mux.HandleFunc("POST /api/v1/rounds/{id}/refresh", s.refreshRound)
	mux.HandleFunc("POST /api/v1/rounds/{id}/decision", s.recordDecision)
	mux.HandleFunc("GET /api/v1/rounds/{id}/assignments", s.listAssignments)
	mux.HandleFunc("POST /api/v1/rounds/{id}/assignments", s.createAssignment)

	mux.HandleFunc("PUT /api/v1/assignments/{id}", s.updateAssignment)
	mux.HandleFunc("DELETE /api/v1/assignments/{id}", s.deleteAssignment)

	return logMiddleware(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept-Language")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps "not found" errors to 404 and everything else to 500.
func writeStoreError(w http.ResponseWriter, err error) {
	if strings.Contains(err.Error(), "not found") {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// --- Views ---

type submissionView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	AuthorEmail string    `json:"author_email"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toSubmissionView(sub *models.Submission) submissionView {
	return submissionView{
		ID:          sub.ID,
		Title:       sub.Title,
		Author:      sub.Author,
		AuthorEmail: sub.AuthorEmail,
		CreatedAt:   sub.CreatedAt,
		UpdatedAt:   sub.UpdatedAt,
	}
}

type roundView struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Stage        string    `json:"stage"`
	Round        int       `json:"round"`
	Status       string    `json:"status"`
	StatusCode   int       `json:"status_code"`
	LabelKey     string    `json:"label_key"`
	Label        string    `json:"label"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Server) toRoundView(r *models.ReviewRound, tag language.Tag, isAuthor bool) roundView {
	key := rounds.Label(r, isAuthor)
	return roundView{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		Stage:        string(r.StageID),
		Round:        r.Round,
		Status:       string(r.Status),
		StatusCode:   r.Status.Code(),
		LabelKey:     key,
		Label:        s.catalog.Text(tag, key),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (s *Server) toRoundViews(list []*models.ReviewRound, r *http.Request) []roundView {
	tag, isAuthor := s.labelPrefs(r)
	out := make([]roundView, len(list))
	for i, round := range list {
		out[i] = s.toRoundView(round, tag, isAuthor)
	}
	return out
}

// labelPrefs reads the label locale (?lang= or Accept-Language) and the
// ?author= flag from the request.
func (s *Server) labelPrefs(r *http.Request) (language.Tag, bool) {
	accept := r.URL.Query().Get("lang")
	if accept == "" {
		accept = r.Header.Get("Accept-Language")
	}
	isAuthor, _ := strconv.ParseBool(r.URL.Query().Get("author"))
	return s.catalog.Match(accept), isAuthor
}

type assignmentView struct {
	ID            string     `json:"id"`
	ReviewRoundID string     `json:"review_round_id"`
	ReviewerName  string     `json:"reviewer_name"`
	ReviewerEmail string     `json:"reviewer_email"`
	Status        string     `json:"status"`
	DateAssigned  time.Time  `json:"date_assigned"`
	DateDue       *time.Time `json:"date_due,omitempty"`
}

func toAssignmentView(a *models.ReviewAssignment) assignmentView {
	return assignmentView{
		ID:            a.ID,
		ReviewRoundID: a.ReviewRoundID,
		ReviewerName:  a.ReviewerName,
		ReviewerEmail: a.ReviewerEmail,
		Status:        string(a.Status),
		DateAssigned:  a.DateAssigned,
		DateDue:       a.DateDue,
	}
}

type fileView struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Stage        string    `json:"stage,omitempty"`
	Round        int       `json:"round,omitempty"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

func toFileView(f *models.SubmissionFile) fileView {
	return fileView{
		ID:           f.ID,
		SubmissionID: f.SubmissionID,
		Stage:        string(f.StageID),
		Round:        f.Round,
		Kind:         string(f.FileStage),
		Name:         f.Name,
		CreatedAt:    f.CreatedAt,
	}
}

// --- Submissions ---

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListSubmissions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]submissionView, len(subs))
	for i, sub := range subs {
		out[i] = toSubmissionView(sub)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.store.GetSubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionView(sub))
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Author      string `json:"author"`
		AuthorEmail string `json:"author_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	sub := &models.Submission{Title: req.Title, Author: req.Author, AuthorEmail: req.AuthorEmail}
	if err := s.store.CreateSubmission(r.Context(), sub); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toSubmissionView(sub))
}

func (s *Server) deleteSubmission(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSubmission(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Rounds ---

func (s *Server) listSubmissionRounds(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListReviewRounds(r.Context(), store.ReviewRoundListFilter{SubmissionID: r.PathValue("id")})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.toRoundViews(list, r))
}

func (s *Server) openRound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Stage string `json:"stage"`
	}
	// An empty body opens an external review round.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Stage == "" {
		req.Stage = string(models.StageExternalReview)
	}
	stage, err := models.ParseStageID(req.Stage)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	round, err := s.rounds.Open(r.Context(), r.PathValue("id"), stage)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tag, isAuthor := s.labelPrefs(r)
	writeJSON(w, http.StatusCreated, s.toRoundView(round, tag, isAuthor))
}

func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	filter := store.ReviewRoundListFilter{
		SubmissionID: r.URL.Query().Get("submission"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := models.ParseRoundStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.Status = st
	}
	if v := r.URL.Query().Get("stage"); v != "" {
		stage, err := models.ParseStageID(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.StageID = stage
	}

	list, err := s.store.ListReviewRounds(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.toRoundViews(list, r))
}

func (s *Server) getRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.store.GetReviewRound(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tag, isAuthor := s.labelPrefs(r)
	writeJSON(w, http.StatusOK, s.toRoundView(round, tag, isAuthor))
}

func (s *Server) refreshRound(w http.ResponseWriter, r *http.Request) {
	res, err := s.rounds.Refresh(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) refreshAllRounds(w http.ResponseWriter, r *http.Request) {
	result, err := refresh.All(r.Context(), s.store, s.rounds, store.ReviewRoundListFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) recordDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	status, err := models.ParseRoundStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	round, err := s.rounds.Decide(r.Context(), r.PathValue("id"), status)
	if errors.Is(err, rounds.ErrNotDecision) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tag, isAuthor := s.labelPrefs(r)
	writeJSON(w, http.StatusOK, s.toRoundView(round, tag, isAuthor))
}

// --- Assignments ---

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListReviewAssignments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]assignmentView, len(list))
	for i, a := range list {
		out[i] = toAssignmentView(a)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request) {
	roundID := r.PathValue("id")
	if _, err := s.store.GetReviewRound(r.Context(), roundID); err != nil {
		writeStoreError(w, err)
		return
	}

	var req struct {
		ReviewerName  string     `json:"reviewer_name"`
		ReviewerEmail string     `json:"reviewer_email"`
		Status        string     `json:"status"`
		DateDue       *time.Time `json:"date_due"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.ReviewerName) == "" {
		writeError(w, http.StatusBadRequest, "reviewer_name is required")
		return
	}

	a := &models.ReviewAssignment{
		ReviewRoundID: roundID,
		ReviewerName:  req.ReviewerName,
		ReviewerEmail: req.ReviewerEmail,
		DateDue:       req.DateDue,
	}
	if req.Status != "" {
		st, err := models.ParseAssignmentStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Status = st
	}

	if err := s.store.CreateReviewAssignment(r.Context(), a); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.rounds.Refresh(r.Context(), roundID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentView(a))
}

func (s *Server) updateAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	status, err := models.ParseAssignmentStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := r.PathValue("id")
	if err := s.store.UpdateReviewAssignmentStatus(r.Context(), id, status); err != nil {
		writeStoreError(w, err)
		return
	}
	a, err := s.store.GetReviewAssignment(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := s.rounds.Refresh(r.Context(), a.ReviewRoundID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentView(a))
}

func (s *Server) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetReviewAssignment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if err := s.store.DeleteReviewAssignment(r.Context(), a.ID); err != nil {
		writeStoreError(w, err)
		return
	}
	if _, err := s.rounds.Refresh(r.Context(), a.ReviewRoundID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Files ---

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListSubmissionFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]fileView, len(files))
	for i, f := range files {
		out[i] = toFileView(f)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createFile(w http.ResponseWriter, r *http.Request) {
	submissionID := r.PathValue("id")
	if _, err := s.store.GetSubmission(r.Context(), submissionID); err != nil {
		writeStoreError(w, err)
		return
	}

	var req struct {
		Name  string `json:"name"`
		Kind  string `json:"kind"`
		Stage string `json:"stage"`
		Round int    `json:"round"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	f := &models.SubmissionFile{SubmissionID: submissionID, Name: req.Name, Round: req.Round}
	if req.Kind != "" {
		kind, err := models.ParseFileStage(req.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.FileStage = kind
	}
	if req.Stage != "" {
		stage, err := models.ParseStageID(req.Stage)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.StageID = stage
	}

	// Review-stage files belong to a round; round 0 means the latest one.
	var round *models.ReviewRound
	if f.StageID != "" {
		var err error
		round, err = s.rounds.Find(r.Context(), submissionID, f.StageID, f.Round)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		f.Round = round.Round
	}

	if err := s.store.CreateSubmissionFile(r.Context(), f); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if round != nil {
		if _, err := s.rounds.RefreshRound(r.Context(), round); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, toFileView(f))
}
