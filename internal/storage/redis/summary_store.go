package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

const (
	summaryKeyPrefix = "chartexam:summary:"
	userZSetPrefix   = "chartexam:summaries:user:"
	endZSetKey       = "chartexam:summaries:by_end"
)

type summaryStore struct {
	client *redis.Client
}

// PutSummary atomically stores a summary and updates the user and end-time
// indexes.
func (s *summaryStore) PutSummary(ctx context.Context, summary storage.SessionSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	script := redis.NewScript(putSummaryScript)
	keys := []string{
		summaryKeyPrefix + summary.SessionID,
		userZSetPrefix + summary.UserID,
		endZSetKey,
	}
	args := []interface{}{
		summary.SessionID,
		string(payload),
		float64(summary.SessionEndTime.UnixMilli()),
	}

	return script.Run(ctx, s.client, keys, args...).Err()
}

// GetSummary retrieves a summary by session ID.
func (s *summaryStore) GetSummary(ctx context.Context, sessionID string) (*storage.SessionSummary, error) {
	payload, err := s.client.Get(ctx, summaryKeyPrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var summary storage.SessionSummary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &summary, nil
}

// ListSummariesByUser returns a user's summaries, most recent first.
func (s *summaryStore) ListSummariesByUser(ctx context.Context, userID string, limit int) ([]storage.SessionSummary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	sessionIDs, err := s.client.ZRevRange(ctx, userZSetPrefix+userID, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(sessionIDs) == 0 {
		return []storage.SessionSummary{}, nil
	}

	// Use pipeline for efficient batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(sessionIDs))
	for i, id := range sessionIDs {
		cmds[i] = pipe.Get(ctx, summaryKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	summaries := make([]storage.SessionSummary, 0, len(sessionIDs))
	for _, cmd := range cmds {
		payload, err := cmd.Result()
		if err != nil {
			continue
		}
		var summary storage.SessionSummary
		if err := json.Unmarshal([]byte(payload), &summary); err == nil {
			summaries = append(summaries, summary)
		}
	}
	return summaries, nil
}

// DeleteSummariesBefore removes summaries that ended before the cutoff.
func (s *summaryStore) DeleteSummariesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	max := fmt.Sprintf("(%d", cutoff.UnixMilli())
	sessionIDs, err := s.client.ZRangeByScore(ctx, endZSetKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(sessionIDs) == 0 {
		return 0, nil
	}

	deleted := 0
	for _, id := range sessionIDs {
		summaryKey := summaryKeyPrefix + id

		// Look up the owner so the user index stays consistent.
		payload, err := s.client.Get(ctx, summaryKey).Result()
		if err == nil {
			var summary storage.SessionSummary
			if err := json.Unmarshal([]byte(payload), &summary); err == nil {
				s.client.ZRem(ctx, userZSetPrefix+summary.UserID, id)
			}
		}

		removed, err := s.client.Del(ctx, summaryKey).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(removed)
		s.client.ZRem(ctx, endZSetKey, id)
	}
	return deleted, nil
}
