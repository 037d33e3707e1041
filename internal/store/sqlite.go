package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/rounds/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; the API and MCP server share this pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", strings.ToLower(pragma), err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// --- Submissions ---

const submissionColumns = `id, title, author, author_email, created_at, updated_at`

func scanSubmission(row scanner) (*models.Submission, error) {
	sub := &models.Submission{}
	err := row.Scan(&sub.ID, &sub.Title, &sub.Author, &sub.AuthorEmail, &sub.CreatedAt, &sub.UpdatedAt)
	return sub, err
}

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if strings.TrimSpace(sub.Title) == "" {
		return fmt.Errorf("create submission: title is required")
	}
	if sub.ID == "" {
		sub.ID = newULID()
	}
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Title, sub.Author, sub.AuthorEmail, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := scanSubmission(s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("submission not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) ListSubmissions(ctx context.Context) ([]*models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *SQLiteStore) UpdateSubmission(ctx context.Context, sub *models.Submission) error {
	sub.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET title=?, author=?, author_email=?, updated_at=? WHERE id=?`,
		sub.Title, sub.Author, sub.AuthorEmail, sub.UpdatedAt, sub.ID,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("submission not found: %s", sub.ID)
	}
	return nil
}

// DeleteSubmission removes a submission together with its rounds, assignments and files.
func (s *SQLiteStore) DeleteSubmission(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM submissions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("submission not found: %s", id)
	}
	return nil
}

// --- Review Rounds ---

const reviewRoundColumns = `id, submission_id, stage_id, round, status, created_at, updated_at`

func scanReviewRound(row scanner) (*models.ReviewRound, error) {
	r := &models.ReviewRound{}
	var stage, status string
	if err := row.Scan(&r.ID, &r.SubmissionID, &stage, &r.Round, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if r.StageID, err = models.ParseStageID(stage); err != nil {
		return nil, fmt.Errorf("review round %s: %w", r.ID, err)
	}
	if r.Status, err = models.ParseRoundStatus(status); err != nil {
		return nil, fmt.Errorf("review round %s: %w", r.ID, err)
	}
	return r, nil
}

// CreateReviewRound inserts a round. A zero Round is assigned the next number
// for the submission and stage; an empty Status defaults to pending reviewers.
func (s *SQLiteStore) CreateReviewRound(ctx context.Context, round *models.ReviewRound) error {
	if !round.StageID.Valid() {
		return fmt.Errorf("create review round: invalid review stage: %q", round.StageID)
	}
	if round.Status == "" {
		round.Status = models.RoundStatusPendingReviewers
	}
	if !round.Status.Valid() {
		return fmt.Errorf("create review round: invalid round status: %q", round.Status)
	}
	if round.ID == "" {
		round.ID = newULID()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create review round: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if round.Round == 0 {
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(round), 0) + 1 FROM review_rounds WHERE submission_id = ? AND stage_id = ?`,
			round.SubmissionID, string(round.StageID),
		).Scan(&round.Round)
		if err != nil {
			return fmt.Errorf("next round number: %w", err)
		}
	}

	now := time.Now().UTC()
	round.CreatedAt = now
	round.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO review_rounds (`+reviewRoundColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		round.ID, round.SubmissionID, string(round.StageID), round.Round, string(round.Status),
		round.CreatedAt, round.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review round: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetReviewRound(ctx context.Context, id string) (*models.ReviewRound, error) {
	r, err := scanReviewRound(s.db.QueryRowContext(ctx,
		`SELECT `+reviewRoundColumns+` FROM review_rounds WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review round not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get review round: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) GetLatestReviewRound(ctx context.Context, submissionID string, stage models.StageID) (*models.ReviewRound, error) {
	r, err := scanReviewRound(s.db.QueryRowContext(ctx,
		`SELECT `+reviewRoundColumns+` FROM review_rounds
		WHERE submission_id = ? AND stage_id = ? ORDER BY round DESC LIMIT 1`,
		submissionID, string(stage)))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review round not found: %s/%s", submissionID, stage)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest review round: %w", err)
	}
	return r, nil
}

func (s *SQLiteStore) ListReviewRounds(ctx context.Context, filter ReviewRoundListFilter) ([]*models.ReviewRound, error) {
	query := `SELECT ` + reviewRoundColumns + ` FROM review_rounds`
	var conditions []string
	var args []any

	if filter.SubmissionID != "" {
		conditions = append(conditions, "submission_id = ?")
		args = append(args, filter.SubmissionID)
	}
	if filter.StageID != "" {
		conditions = append(conditions, "stage_id = ?")
		args = append(args, string(filter.StageID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY submission_id, stage_id, round"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review rounds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rounds []*models.ReviewRound
	for rows.Next() {
		r, err := scanReviewRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

func (s *SQLiteStore) UpdateReviewRoundStatus(ctx context.Context, id string, status models.RoundStatus) error {
	if !status.Valid() {
		return fmt.Errorf("update review round: invalid round status: %q", status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE review_rounds SET status=?, updated_at=? WHERE id=?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update review round: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("review round not found: %s", id)
	}
	return nil
}

// --- Review Assignments ---

const reviewAssignmentColumns = `id, review_round_id, reviewer_name, reviewer_email, status, date_assigned, date_due, created_at, updated_at`

func scanReviewAssignment(row scanner) (*models.ReviewAssignment, error) {
	a := &models.ReviewAssignment{}
	var status string
	var due sql.NullTime
	if err := row.Scan(&a.ID, &a.ReviewRoundID, &a.ReviewerName, &a.ReviewerEmail, &status,
		&a.DateAssigned, &due, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if a.Status, err = models.ParseAssignmentStatus(status); err != nil {
		return nil, fmt.Errorf("review assignment %s: %w", a.ID, err)
	}
	if due.Valid {
		a.DateDue = &due.Time
	}
	return a, nil
}

func (s *SQLiteStore) CreateReviewAssignment(ctx context.Context, a *models.ReviewAssignment) error {
	if a.ReviewerName == "" {
		return fmt.Errorf("create review assignment: reviewer name is required")
	}
	if a.Status == "" {
		a.Status = models.AssignmentStatusAwaitingResponse
	}
	if !a.Status.Valid() {
		return fmt.Errorf("create review assignment: invalid assignment status: %q", a.Status)
	}
	if a.ID == "" {
		a.ID = newULID()
	}
	now := time.Now().UTC()
	if a.DateAssigned.IsZero() {
		a.DateAssigned = now
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	var due sql.NullTime
	if a.DateDue != nil {
		due = sql.NullTime{Time: *a.DateDue, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO review_assignments (`+reviewAssignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ReviewRoundID, a.ReviewerName, a.ReviewerEmail, string(a.Status),
		a.DateAssigned, due, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create review assignment: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReviewAssignment(ctx context.Context, id string) (*models.ReviewAssignment, error) {
	a, err := scanReviewAssignment(s.db.QueryRowContext(ctx,
		`SELECT `+reviewAssignmentColumns+` FROM review_assignments WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review assignment not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get review assignment: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) ListReviewAssignments(ctx context.Context, roundID string) ([]*models.ReviewAssignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reviewAssignmentColumns+` FROM review_assignments
		WHERE review_round_id = ? ORDER BY date_assigned, id`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list review assignments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var assignments []*models.ReviewAssignment
	for rows.Next() {
		a, err := scanReviewAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (s *SQLiteStore) UpdateReviewAssignmentStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("update review assignment: invalid assignment status: %q", status)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE review_assignments SET status=?, updated_at=? WHERE id=?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update review assignment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("review assignment not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteReviewAssignment(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM review_assignments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete review assignment: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("review assignment not found: %s", id)
	}
	return nil
}

// AssignmentStatusesForRound returns the status of every assignment in the round.
func (s *SQLiteStore) AssignmentStatusesForRound(ctx context.Context, roundID string) ([]models.AssignmentStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status FROM review_assignments WHERE review_round_id = ?`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list assignment statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses []models.AssignmentStatus
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan assignment status: %w", err)
		}
		st, err := models.ParseAssignmentStatus(raw)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// --- Submission Files ---

const submissionFileColumns = `id, submission_id, stage_id, round, file_stage, name, created_at`

func scanSubmissionFile(row scanner) (*models.SubmissionFile, error) {
	f := &models.SubmissionFile{}
	var stage, fileStage string
	if err := row.Scan(&f.ID, &f.SubmissionID, &stage, &f.Round, &fileStage, &f.Name, &f.CreatedAt); err != nil {
		return nil, err
	}
	f.StageID = models.StageID(stage)

	var err error
	if f.FileStage, err = models.ParseFileStage(fileStage); err != nil {
		return nil, fmt.Errorf("submission file %s: %w", f.ID, err)
	}
	return f, nil
}

func (s *SQLiteStore) CreateSubmissionFile(ctx context.Context, f *models.SubmissionFile) error {
	if f.Name == "" {
		return fmt.Errorf("create submission file: name is required")
	}
	if f.FileStage == "" {
		f.FileStage = models.FileStageSubmission
	}
	if _, err := models.ParseFileStage(string(f.FileStage)); err != nil {
		return fmt.Errorf("create submission file: %w", err)
	}
	if f.StageID != "" && !f.StageID.Valid() {
		return fmt.Errorf("create submission file: invalid review stage: %q", f.StageID)
	}
	if f.ID == "" {
		f.ID = newULID()
	}
	f.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_files (`+submissionFileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SubmissionID, string(f.StageID), f.Round, string(f.FileStage), f.Name, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create submission file: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSubmissionFiles(ctx context.Context, submissionID string) ([]*models.SubmissionFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+submissionFileColumns+` FROM submission_files
		WHERE submission_id = ? ORDER BY created_at, id`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list submission files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []*models.SubmissionFile
	for rows.Next() {
		f, err := scanSubmissionFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *SQLiteStore) DeleteSubmissionFile(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM submission_files WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete submission file: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("submission file not found: %s", id)
	}
	return nil
}

// HasRevisionFiles reports whether any revision file was uploaded for the
// given submission, stage and round.
func (s *SQLiteStore) HasRevisionFiles(ctx context.Context, submissionID string, stage models.StageID, round int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM submission_files
		WHERE submission_id = ? AND stage_id = ? AND round = ? AND file_stage = ?)`,
		submissionID, string(stage), round, string(models.FileStageReviewRevision),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check revision files: %w", err)
	}
	return exists, nil
}
