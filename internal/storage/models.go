package storage

import (
	"time"
)

// Run statuses.
const (
	StatusMerged  = "merged"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// RunRecord captures the outcome of processing one workbook.
type RunRecord struct {
	ID         int64
	Symbol     string
	SourceFile string
	Status     string
	FirstDate  *time.Time
	LastDate   *time.Time
	Rows       int
	Retried    bool
	OutputPath string
	Error      *string
	CreatedAt  time.Time
}
