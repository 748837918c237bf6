package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/FarisAlahmad714/chartexam/internal/config"
	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("failed to parse miniredis port: %v", err)
	}

	store, err := Open(config.RedisConfig{
		Host:         mr.Host(),
		Port:         port,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func testSummary(sessionID, userID string, endTime time.Time) storage.SessionSummary {
	return storage.SessionSummary{
		SessionID:        sessionID,
		UserID:           userID,
		ExamType:         "fibonacci",
		ChartCount:       1,
		Part:             1,
		SessionStartTime: endTime.Add(-time.Minute),
		SessionEndTime:   endTime,
		TotalTimeSpentMS: 60000,
		Completed:        true,
		FinalScore:       1.5,
		FinalAccuracy:    75,
	}
}

func TestPutAndGetSummary(t *testing.T) {
	store := setupTestStore(t)
	summaries := store.Summaries()
	ctx := context.Background()

	want := testSummary("sess-1", "user1", time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	if err := summaries.PutSummary(ctx, want); err != nil {
		t.Fatalf("PutSummary failed: %v", err)
	}

	got, err := summaries.GetSummary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.UserID != want.UserID || got.FinalScore != want.FinalScore {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestGetSummaryNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Summaries().GetSummary(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSummariesByUserOrdering(t *testing.T) {
	store := setupTestStore(t)
	summaries := store.Summaries()
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := testSummary(fmt.Sprintf("sess-%d", i), "user1", base.Add(time.Duration(i)*time.Hour))
		if err := summaries.PutSummary(ctx, s); err != nil {
			t.Fatalf("PutSummary failed: %v", err)
		}
	}
	if err := summaries.PutSummary(ctx, testSummary("other", "user2", base)); err != nil {
		t.Fatalf("PutSummary failed: %v", err)
	}

	got, err := summaries.ListSummariesByUser(ctx, "user1", 0)
	if err != nil {
		t.Fatalf("ListSummariesByUser failed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d summaries, want 5", len(got))
	}
	if got[0].SessionID != "sess-4" || got[4].SessionID != "sess-0" {
		t.Errorf("ordering wrong: first=%s last=%s", got[0].SessionID, got[4].SessionID)
	}

	limited, err := summaries.ListSummariesByUser(ctx, "user1", 3)
	if err != nil {
		t.Fatalf("ListSummariesByUser failed: %v", err)
	}
	if len(limited) != 3 {
		t.Errorf("got %d summaries, want limit of 3", len(limited))
	}
}

func TestListSummariesUnknownUser(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.Summaries().ListSummariesByUser(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("ListSummariesByUser failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d summaries, want 0", len(got))
	}
}

func TestDeleteSummariesBefore(t *testing.T) {
	store := setupTestStore(t)
	summaries := store.Summaries()
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		s := testSummary(fmt.Sprintf("sess-%d", i), "user1", base.Add(time.Duration(i)*24*time.Hour))
		if err := summaries.PutSummary(ctx, s); err != nil {
			t.Fatalf("PutSummary failed: %v", err)
		}
	}

	deleted, err := summaries.DeleteSummariesBefore(ctx, base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("DeleteSummariesBefore failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d summaries, want 2", deleted)
	}

	if _, err := summaries.GetSummary(ctx, "sess-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("sess-1 should have been deleted, got %v", err)
	}
	if _, err := summaries.GetSummary(ctx, "sess-3"); err != nil {
		t.Errorf("sess-3 should survive, got %v", err)
	}

	remaining, err := summaries.ListSummariesByUser(ctx, "user1", 0)
	if err != nil {
		t.Fatalf("ListSummariesByUser failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("listing returned %d summaries after retention, want 2", len(remaining))
	}
}
