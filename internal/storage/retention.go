package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const retentionCheckInterval = 24 * time.Hour

// RetentionScheduler prunes persisted summaries older than the retention
// period once a day.
type RetentionScheduler struct {
	summaries     SummaryStore
	retentionDays int
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewRetentionScheduler creates a retention scheduler. A retentionDays of 0
// or less disables pruning.
func NewRetentionScheduler(summaries SummaryStore, retentionDays int, logger zerolog.Logger) *RetentionScheduler {
	return &RetentionScheduler{
		summaries:     summaries,
		retentionDays: retentionDays,
		logger:        logger.With().Str("component", "summary-retention").Logger(),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the retention scheduler.
func (rs *RetentionScheduler) Start() {
	if rs.retentionDays <= 0 {
		rs.logger.Info().Msg("Summary retention disabled")
		return
	}
	go rs.run()
	rs.logger.Info().
		Int("retention_days", rs.retentionDays).
		Msg("Summary retention scheduler started")
}

// Stop stops the retention scheduler.
func (rs *RetentionScheduler) Stop() {
	close(rs.stopChan)
}

func (rs *RetentionScheduler) run() {
	ticker := time.NewTicker(retentionCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rs.prune()
		case <-rs.stopChan:
			return
		}
	}
}

func (rs *RetentionScheduler) prune() {
	cutoff := time.Now().AddDate(0, 0, -rs.retentionDays)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := rs.summaries.DeleteSummariesBefore(ctx, cutoff)
	if err != nil {
		rs.logger.Error().Err(err).Msg("Failed to prune old summaries")
		return
	}
	if deleted > 0 {
		rs.logger.Info().
			Int("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Pruned old summaries")
	}
}
