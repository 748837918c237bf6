package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

type summaryStore struct {
	db *bbolt.DB
}

// PutSummary stores a finalized session summary and indexes it by user.
func (s *summaryStore) PutSummary(ctx context.Context, summary storage.SessionSummary) error {
	data, err := marshal(summary)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b := tx.Bucket([]byte(bucketSummaries))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucketSummaries)
		}
		if err := b.Put([]byte(summary.SessionID), data); err != nil {
			return err
		}

		userIndex, err := ensureUserIndex(tx, summary.UserID)
		if err != nil {
			return err
		}
		key := indexKey(summary.SessionEndTime, summary.SessionID)
		return userIndex.Put([]byte(key), []byte(summary.SessionID))
	})
}

// GetSummary retrieves a summary by session ID.
func (s *summaryStore) GetSummary(ctx context.Context, sessionID string) (*storage.SessionSummary, error) {
	var summary *storage.SessionSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b := tx.Bucket([]byte(bucketSummaries))
		if b == nil {
			return storage.ErrNotFound
		}
		value := b.Get([]byte(sessionID))
		if value == nil {
			return storage.ErrNotFound
		}

		var result storage.SessionSummary
		if err := unmarshal(value, &result); err != nil {
			return err
		}
		summary = &result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ListSummariesByUser returns a user's summaries, most recent first.
func (s *summaryStore) ListSummariesByUser(ctx context.Context, userID string, limit int) ([]storage.SessionSummary, error) {
	summaries := make([]storage.SessionSummary, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b := tx.Bucket([]byte(bucketSummaries))
		if b == nil {
			return nil
		}
		userIndex := userIndexBucket(tx, userID)
		if userIndex == nil {
			return nil
		}

		// Index keys sort by end time, so a reverse cursor walk yields the
		// most recent summaries first.
		c := userIndex.Cursor()
		for k, id := c.Last(); k != nil; k, id = c.Prev() {
			if limit > 0 && len(summaries) >= limit {
				break
			}
			value := b.Get(id)
			if value == nil {
				continue
			}
			var summary storage.SessionSummary
			if err := unmarshal(value, &summary); err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// DeleteSummariesBefore removes summaries that ended before the cutoff.
func (s *summaryStore) DeleteSummariesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		b := tx.Bucket([]byte(bucketSummaries))
		if b == nil {
			return nil
		}

		type victim struct {
			sessionID string
			userID    string
			endTime   time.Time
		}
		victims := make([]victim, 0)

		if err := b.ForEach(func(k, v []byte) error {
			var summary storage.SessionSummary
			if err := unmarshal(v, &summary); err != nil {
				return err
			}
			if summary.SessionEndTime.Before(cutoff) {
				victims = append(victims, victim{
					sessionID: summary.SessionID,
					userID:    summary.UserID,
					endTime:   summary.SessionEndTime,
				})
			}
			return nil
		}); err != nil {
			return err
		}

		for _, v := range victims {
			if err := b.Delete([]byte(v.sessionID)); err != nil {
				return err
			}
			if userIndex := userIndexBucket(tx, v.userID); userIndex != nil {
				_ = userIndex.Delete([]byte(indexKey(v.endTime, v.sessionID)))
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return deleted, err
	}
	return deleted, nil
}

func ensureUserIndex(tx *bbolt.Tx, userID string) (*bbolt.Bucket, error) {
	root := tx.Bucket([]byte(bucketIndexes))
	if root == nil {
		return nil, fmt.Errorf("indexes bucket missing")
	}
	users, err := root.CreateBucketIfNotExists([]byte(bucketIndexUser))
	if err != nil {
		return nil, err
	}
	return users.CreateBucketIfNotExists([]byte(userID))
}

func userIndexBucket(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	root := tx.Bucket([]byte(bucketIndexes))
	if root == nil {
		return nil
	}
	users := root.Bucket([]byte(bucketIndexUser))
	if users == nil {
		return nil
	}
	return users.Bucket([]byte(userID))
}
