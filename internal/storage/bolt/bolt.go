package bolt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

const (
	bucketSummaries = "exam_summaries"
	bucketIndexes   = "indexes"
	bucketIndexUser = "user"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketSummaries)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketSummaries, err)
		}

		indexes, err := tx.CreateBucketIfNotExists([]byte(bucketIndexes))
		if err != nil {
			return fmt.Errorf("create indexes bucket: %w", err)
		}
		if _, err := indexes.CreateBucketIfNotExists([]byte(bucketIndexUser)); err != nil {
			return fmt.Errorf("create user index: %w", err)
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Summaries returns the session summary store.
func (s *Store) Summaries() storage.SummaryStore { return &summaryStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

// indexKey orders summaries by session end time within a user's index bucket.
func indexKey(ts time.Time, sessionID string) string {
	return fmt.Sprintf("%020d-%s", ts.UnixNano(), sessionID)
}
