package models

import "time"

// Submission is a manuscript moving through the editorial workflow.
type Submission struct {
	ID          string
	Title       string
	Author      string
	AuthorEmail string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
