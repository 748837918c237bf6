package bolt

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.bolt"))
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
		ExamType:         "swing",
		ChartCount:       1,
		Part:             1,
		SessionStartTime: endTime.Add(-2 * time.Minute),
		SessionEndTime:   endTime,
		TotalTimeSpentMS: 120000,
		Completed:        true,
		FinalScore:       8,
		FinalAccuracy:    80,
		Attempts:         3,
		SubmissionCount:  1,
	}
}

func TestPutAndGetSummary(t *testing.T) {
	store := openTestStore(t)
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
	if !got.SessionEndTime.Equal(want.SessionEndTime) {
		t.Errorf("SessionEndTime = %v, want %v", got.SessionEndTime, want.SessionEndTime)
	}
}

func TestGetSummaryNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Summaries().GetSummary(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSummariesByUserOrdering(t *testing.T) {
	store := openTestStore(t)
	summaries := store.Summaries()
	ctx := context.Background()

	base := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s := testSummary(fmt.Sprintf("sess-%d", i), "user1", base.Add(time.Duration(i)*time.Hour))
		if err := summaries.PutSummary(ctx, s); err != nil {
			t.Fatalf("PutSummary failed: %v", err)
		}
	}
	// Another user's summary must not leak into the listing.
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
	// Most recent first.
	if got[0].SessionID != "sess-4" || got[4].SessionID != "sess-0" {
		t.Errorf("ordering wrong: first=%s last=%s", got[0].SessionID, got[4].SessionID)
	}

	limited, err := summaries.ListSummariesByUser(ctx, "user1", 2)
	if err != nil {
		t.Fatalf("ListSummariesByUser failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d summaries, want limit of 2", len(limited))
	}
	if limited[0].SessionID != "sess-4" {
		t.Errorf("limited listing should start with the most recent, got %s", limited[0].SessionID)
	}
}

func TestListSummariesUnknownUser(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Summaries().ListSummariesByUser(context.Background(), "nobody", 10)
	if err != nil {
		t.Fatalf("ListSummariesByUser failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d summaries, want 0", len(got))
	}
}

func TestDeleteSummariesBefore(t *testing.T) {
	store := openTestStore(t)
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

	if _, err := summaries.GetSummary(ctx, "sess-0"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("sess-0 should have been deleted, got %v", err)
	}
	if _, err := summaries.GetSummary(ctx, "sess-2"); err != nil {
		t.Errorf("sess-2 should survive, got %v", err)
	}

	// The user index must be cleaned up with the records.
	remaining, err := summaries.ListSummariesByUser(ctx, "user1", 0)
	if err != nil {
		t.Fatalf("ListSummariesByUser failed: %v", err)
	}
	if len(remaining) != 2 {
		t.Errorf("listing returned %d summaries after retention, want 2", len(remaining))
	}
}

func TestPutSummaryOverwrite(t *testing.T) {
	store := openTestStore(t)
	summaries := store.Summaries()
	ctx := context.Background()

	end := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	s := testSummary("sess-1", "user1", end)
	if err := summaries.PutSummary(ctx, s); err != nil {
		t.Fatalf("PutSummary failed: %v", err)
	}
	s.FinalScore = 9
	if err := summaries.PutSummary(ctx, s); err != nil {
		t.Fatalf("PutSummary failed: %v", err)
	}

	got, err := summaries.GetSummary(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.FinalScore != 9 {
		t.Errorf("FinalScore = %v, want overwrite to 9", got.FinalScore)
	}
}
