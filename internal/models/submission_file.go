package models

import (
	"fmt"
	"time"
)

// FileStage is the workflow role of an uploaded submission file.
type FileStage string

const (
	FileStageSubmission       FileStage = "submission"
	FileStageReviewFile       FileStage = "review_file"
	FileStageReviewAttachment FileStage = "review_attachment"
	FileStageReviewRevision   FileStage = "review_revision"
)

// ParseFileStage validates a stored or user-supplied file stage.
func ParseFileStage(s string) (FileStage, error) {
	switch fs := FileStage(s); fs {
	case FileStageSubmission, FileStageReviewFile, FileStageReviewAttachment, FileStageReviewRevision:
		return fs, nil
	default:
		return "", fmt.Errorf("invalid file stage: %q", s)
	}
}

// SubmissionFile is a file uploaded against a submission. Review-stage files
// also carry the stage and round they were uploaded in; Round is 0 otherwise.
type SubmissionFile struct {
	ID           string
	SubmissionID string
	StageID      StageID
	Round        int
	FileStage    FileStage
	Name         string
	CreatedAt    time.Time
}
