package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Summaries() SummaryStore
}

// SummaryStore persists finalized exam session summaries. The session
// subsystem itself is ephemeral; this is the only durable hand-off it makes.
type SummaryStore interface {
	PutSummary(ctx context.Context, summary SessionSummary) error
	GetSummary(ctx context.Context, sessionID string) (*SessionSummary, error)
	ListSummariesByUser(ctx context.Context, userID string, limit int) ([]SessionSummary, error)
	DeleteSummariesBefore(ctx context.Context, cutoff time.Time) (int, error)
}
