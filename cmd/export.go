package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/rounds/internal/store"
)

var (
	exportFormat string
	exportType   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export submissions, review rounds, or reviewer assignments in various formats.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun()
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "rounds", "Data type: submissions, rounds, assignments")
	rootCmd.AddCommand(exportCmd)
}

// exportTable is one export type rendered as rows. JSON output uses records.
type exportTable struct {
	title   string
	headers []string
	rows    [][]string
	records any
}

func exportRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var t *exportTable
	switch exportType {
	case "submissions":
		t, err = exportSubmissions(ctx, s)
	case "rounds":
		t, err = exportRounds(ctx, s)
	case "assignments":
		t, err = exportAssignments(ctx, s)
	default:
		return fmt.Errorf("unknown export type: %s (use: submissions, rounds, assignments)", exportType)
	}
	if err != nil {
		return err
	}
	return writeExport(t)
}

func writeExport(t *exportTable) error {
	switch exportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(t.records)
	case "csv":
		w := csv.NewWriter(ui.Out)
		_ = w.Write(t.headers)
		for _, row := range t.rows {
			_ = w.Write(row)
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# %s\n\n", t.title)
		fmt.Fprintf(ui.Out, "| %s |\n", strings.Join(t.headers, " | "))
		seps := make([]string, len(t.headers))
		for i, h := range t.headers {
			seps[i] = strings.Repeat("-", len(h))
		}
		fmt.Fprintf(ui.Out, "|%s|\n", strings.Join(seps, "|"))
		for _, row := range t.rows {
			cells := make([]string, len(row))
			for i, c := range row {
				cells[i] = strings.ReplaceAll(c, "|", `\|`)
			}
			fmt.Fprintf(ui.Out, "| %s |\n", strings.Join(cells, " | "))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", exportFormat)
	}
}

type submissionRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	AuthorEmail string `json:"author_email,omitempty"`
	Created     string `json:"created"`
}

func exportSubmissions(ctx context.Context, s store.Store) (*exportTable, error) {
	subs, err := s.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}

	t := &exportTable{
		title:   "Submissions",
		headers: []string{"ID", "Title", "Author", "Email", "Created"},
	}
	records := make([]submissionRecord, 0, len(subs))
	for _, sub := range subs {
		rec := submissionRecord{
			ID:          sub.ID,
			Title:       sub.Title,
			Author:      sub.Author,
			AuthorEmail: sub.AuthorEmail,
			Created:     sub.CreatedAt.Format("2006-01-02"),
		}
		records = append(records, rec)
		t.rows = append(t.rows, []string{rec.ID, rec.Title, rec.Author, rec.AuthorEmail, rec.Created})
	}
	t.records = records
	return t, nil
}

type roundRecord struct {
	ID           string `json:"id"`
	SubmissionID string `json:"submission_id"`
	Stage        string `json:"stage"`
	Round        int    `json:"round"`
	Status       string `json:"status"`
	StatusCode   int    `json:"status_code"`
	Label        string `json:"label"`
	Updated      string `json:"updated"`
}

func exportRounds(ctx context.Context, s store.Store) (*exportTable, error) {
	list, err := s.ListReviewRounds(ctx, store.ReviewRoundListFilter{})
	if err != nil {
		return nil, err
	}

	t := &exportTable{
		title:   "Review Rounds",
		headers: []string{"ID", "SubmissionID", "Stage", "Round", "Status", "Code", "Label", "Updated"},
	}
	records := make([]roundRecord, 0, len(list))
	for _, r := range list {
		label, err := roundLabel(r, false)
		if err != nil {
			return nil, err
		}
		rec := roundRecord{
			ID:           r.ID,
			SubmissionID: r.SubmissionID,
			Stage:        string(r.StageID),
			Round:        r.Round,
			Status:       string(r.Status),
			StatusCode:   r.Status.Code(),
			Label:        label,
			Updated:      r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		records = append(records, rec)
		t.rows = append(t.rows, []string{
			rec.ID, rec.SubmissionID, rec.Stage, fmt.Sprintf("%d", rec.Round),
			rec.Status, fmt.Sprintf("%d", rec.StatusCode), rec.Label, rec.Updated,
		})
	}
	t.records = records
	return t, nil
}

type assignmentRecord struct {
	ID       string `json:"id"`
	RoundID  string `json:"round_id"`
	Reviewer string `json:"reviewer"`
	Email    string `json:"email,omitempty"`
	Status   string `json:"status"`
	Assigned string `json:"assigned"`
	Due      string `json:"due,omitempty"`
}

func exportAssignments(ctx context.Context, s store.Store) (*exportTable, error) {
	list, err := s.ListReviewRounds(ctx, store.ReviewRoundListFilter{})
	if err != nil {
		return nil, err
	}

	t := &exportTable{
		title:   "Review Assignments",
		headers: []string{"ID", "RoundID", "Reviewer", "Email", "Status", "Assigned", "Due"},
	}
	records := []assignmentRecord{}
	for _, r := range list {
		assignments, err := s.ListReviewAssignments(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range assignments {
			rec := assignmentRecord{
				ID:       a.ID,
				RoundID:  a.ReviewRoundID,
				Reviewer: a.ReviewerName,
				Email:    a.ReviewerEmail,
				Status:   string(a.Status),
				Assigned: a.DateAssigned.Format("2006-01-02"),
			}
			if a.DateDue != nil {
				rec.Due = a.DateDue.Format("2006-01-02")
			}
			records = append(records, rec)
			t.rows = append(t.rows, []string{rec.ID, rec.RoundID, rec.Reviewer, rec.Email, rec.Status, rec.Assigned, rec.Due})
		}
	}
	t.records = records
	return t, nil
}
