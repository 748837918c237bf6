package exam

import (
	"context"
	"time"

	"github.com/FarisAlahmad714/chartexam/internal/metrics"
	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

// persistTimeout bounds the summary write so finalization cannot hang on a
// slow store.
const persistTimeout = 5 * time.Second

// End finalizes a session: it folds the recorded events into a summary, hands
// the summary to the persistence collaborator, and removes the session from
// the store. Returns nil when no session exists for the tuple, so calling End
// twice is safe.
//
// Persistence is fire-and-forget: a failed write is logged and counted but
// never fails termination, and the write happens after the session has
// already been removed, outside the table lock.
func (m *Manager) End(userID string, examType ExamType, chartCount, part int) *storage.SessionSummary {
	m.mu.Lock()

	key := SessionKey(userID, examType, chartCount, part)
	session, exists := m.sessions[key]
	if !exists {
		m.mu.Unlock()
		return nil
	}

	now := m.clock.Now()
	summary := buildSummary(session, now)

	delete(m.sessions, key)
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	m.persistSummary(summary)
	m.recent.Add(summary.SessionID, *summary)

	m.logger.Info().
		Str("session_id", summary.SessionID).
		Str("user_id", userID).
		Str("exam_type", string(examType)).
		Bool("completed", summary.Completed).
		Int64("total_time_spent_ms", summary.TotalTimeSpentMS).
		Int("focus_loss_count", summary.FocusLossCount).
		Float64("final_score", summary.FinalScore).
		Msg("Finalized exam session")

	return summary
}

// buildSummary folds an ended session into its immutable summary record.
func buildSummary(session *Session, now time.Time) *storage.SessionSummary {
	totalTimeSpent := now.Sub(session.StartTime)

	// Unresolved lost_focus entries have no back-filled duration and
	// contribute 0: a real but unmeasured gap, intentionally not estimated.
	var totalFocusLost time.Duration
	focusLossCount := 0
	for _, ev := range session.FocusEvents {
		if ev.Type == FocusLost {
			focusLossCount++
			totalFocusLost += ev.Duration
		}
	}

	finalScore, finalAccuracy := 0.0, 0.0
	if n := len(session.Submissions); n > 0 {
		last := session.Submissions[n-1]
		finalScore = last.Score
		finalAccuracy = last.Accuracy
	}

	return &storage.SessionSummary{
		SessionID:         session.ID,
		UserID:            session.UserID,
		ExamType:          string(session.ExamType),
		ChartCount:        session.ChartCount,
		Part:              session.Part,
		SessionStartTime:  session.StartTime,
		SessionEndTime:    now,
		TotalTimeSpentMS:  totalTimeSpent.Milliseconds(),
		TimePressureRatio: totalTimeSpent.Seconds() / session.TimeLimit.Seconds(),
		Completed:         !now.After(session.ExpiresAt),
		TotalFocusLostMS:  totalFocusLost.Milliseconds(),
		FocusLossCount:    focusLossCount,
		FinalScore:        finalScore,
		FinalAccuracy:     finalAccuracy,
		Attempts:          session.Attempts,
		SubmissionCount:   len(session.Submissions),
		ChartMetadata:     session.ChartMetadata,
		DeviceInfo:        session.DeviceInfo,
	}
}

func (m *Manager) persistSummary(summary *storage.SessionSummary) {
	if m.summaries == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := m.summaries.PutSummary(ctx, *summary); err != nil {
		metrics.SummaryPersistFailures.Inc()
		m.logger.Error().Err(err).
			Str("session_id", summary.SessionID).
			Str("user_id", summary.UserID).
			Msg("Failed to persist session summary")
		return
	}
	metrics.SummariesPersisted.Inc()
}
