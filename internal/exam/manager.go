package exam

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/FarisAlahmad714/chartexam/internal/metrics"
	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

const (
	// DefaultSweepInterval is how often the background sweep runs. Exam
	// sessions are short-lived (at most 3 minutes) relative to this, so most
	// cleanup happens via explicit end-of-session calls, not the sweep.
	DefaultSweepInterval = 30 * time.Minute

	// DefaultGraceWindow is how long an expired session stays findable so a
	// client finalizing slightly after expiry still reaches its session.
	DefaultGraceWindow = 5 * time.Minute

	// DefaultRecentCacheSize bounds the cache of recently finalized summaries.
	DefaultRecentCacheSize = 128
)

// Manager holds all active exam sessions keyed by composite key and gates
// every client interaction by elapsed time. It is the single source of truth
// for time remaining, attempt counts, and recorded events. Session state is
// ephemeral: loss on process restart is acceptable, and a missing session is
// recovered by the auto-create policy on the next validation.
type Manager struct {
	sessions          map[string]*Session
	summaries         storage.SummaryStore
	recent            *lru.Cache[string, storage.SessionSummary]
	clock             Clock
	sweepInterval     time.Duration
	graceWindow       time.Duration
	disableAutoCreate bool
	logger            zerolog.Logger
	stopChan          chan struct{}
	stopOnce          sync.Once
	mu                sync.Mutex
}

// Config holds manager configuration.
type Config struct {
	SweepInterval   time.Duration
	GraceWindow     time.Duration
	RecentCacheSize int

	// DisableAutoCreate turns off the auto-create-on-validate policy for
	// stricter deployments: validation of a missing session then fails with
	// SESSION_NOT_FOUND instead of granting a fresh window.
	DisableAutoCreate bool
}

// NewManager creates a new session manager. The summary store may be nil, in
// which case finalized summaries are only kept in the recent cache.
func NewManager(summaries storage.SummaryStore, config Config, logger zerolog.Logger) *Manager {
	if config.SweepInterval == 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.GraceWindow == 0 {
		config.GraceWindow = DefaultGraceWindow
	}
	if config.RecentCacheSize == 0 {
		config.RecentCacheSize = DefaultRecentCacheSize
	}

	// Only fails for a non-positive size, which the default guards against.
	recent, err := lru.New[string, storage.SessionSummary](config.RecentCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create recent summary cache: %v", err))
	}

	return &Manager{
		sessions:          make(map[string]*Session),
		summaries:         summaries,
		recent:            recent,
		clock:             RealClock{}, // Use real time by default
		sweepInterval:     config.SweepInterval,
		graceWindow:       config.GraceWindow,
		disableAutoCreate: config.DisableAutoCreate,
		logger:            logger.With().Str("component", "exam-sessions").Logger(),
		stopChan:          make(chan struct{}),
	}
}

// SetClock sets the clock used for window checks (for testing).
func (m *Manager) SetClock(clock Clock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

// StartSession explicitly opens a fresh time window for the given tuple. An
// existing session for the same key is replaced; the new window is fixed at
// creation and never extended afterwards.
func (m *Manager) StartSession(userID string, examType ExamType, chartCount, part int) SessionInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := m.createLocked(userID, examType, chartCount, part)
	metrics.SessionsStarted.WithLabelValues(string(examType), "start").Inc()

	m.logger.Info().
		Str("session_id", session.ID).
		Str("user_id", userID).
		Str("exam_type", string(examType)).
		Int("chart_count", chartCount).
		Int("part", part).
		Dur("time_limit", session.TimeLimit).
		Msg("Started exam session")

	return SessionInfo{
		SessionKey:    session.Key,
		SessionID:     session.ID,
		StartTime:     session.StartTime,
		ExpiresAt:     session.ExpiresAt,
		TimeLimit:     session.TimeLimit,
		TimeRemaining: session.TimeLimit,
	}
}

// Validate checks whether an interaction for the given tuple is inside its
// time window. Every branch returns a structured result, never an error.
//
// A missing session is auto-created with a fresh window: it most often means
// the client reloaded the chart after a server restart or cache eviction, and
// rejecting outright would fail a legitimate attempt. This leniency is a
// deliberate policy and can be disabled via Config.DisableAutoCreate.
func (m *Manager) Validate(userID string, examType ExamType, chartCount, part int) ValidationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := SessionKey(userID, examType, chartCount, part)
	session, exists := m.sessions[key]
	now := m.clock.Now()

	if !exists {
		if m.disableAutoCreate {
			metrics.ValidationsTotal.WithLabelValues(string(examType), "not_found").Inc()
			return ValidationResult{
				Valid: false,
				Code:  CodeSessionNotFound,
				Error: "no active session for this exam attempt",
			}
		}

		session = m.createLocked(userID, examType, chartCount, part)
		session.Attempts = 1
		metrics.SessionsStarted.WithLabelValues(string(examType), "auto_create").Inc()
		metrics.ValidationsTotal.WithLabelValues(string(examType), "auto_created").Inc()

		m.logger.Info().
			Str("session_id", session.ID).
			Str("user_id", userID).
			Str("exam_type", string(examType)).
			Msg("Auto-created session on validation (no prior session found)")

		return ValidationResult{
			Valid:         true,
			TimeRemaining: session.TimeLimit,
			TimeSpent:     0,
			Attempts:      1,
		}
	}

	if now.After(session.ExpiresAt) {
		metrics.ValidationsTotal.WithLabelValues(string(examType), "expired").Inc()
		return ValidationResult{
			Valid:     false,
			Code:      CodeTimeLimitExceeded,
			Error:     "time limit for this exam attempt has been exceeded",
			TimeSpent: session.TimeLimit,
			Attempts:  session.Attempts,
		}
	}

	session.Attempts++
	remaining := session.ExpiresAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	metrics.ValidationsTotal.WithLabelValues(string(examType), "ok").Inc()

	return ValidationResult{
		Valid:         true,
		TimeRemaining: remaining,
		TimeSpent:     now.Sub(session.StartTime),
		Attempts:      session.Attempts,
	}
}

// RecordFocusEvent appends a focus event to an existing session. It is a
// no-op when the session is absent: focus events annotate an attempt, they do
// not start one. A gained_focus event back-fills the duration of the most
// recent unresolved lost_focus entry.
func (m *Manager) RecordFocusEvent(userID string, examType ExamType, chartCount, part int, eventType FocusEventType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[SessionKey(userID, examType, chartCount, part)]
	if !exists {
		return false
	}

	now := m.clock.Now()
	if eventType == FocusGained {
		for i := len(session.FocusEvents) - 1; i >= 0; i-- {
			ev := &session.FocusEvents[i]
			if ev.Type == FocusLost && ev.Duration == 0 {
				ev.Duration = now.Sub(ev.Timestamp)
				break
			}
		}
	}

	session.FocusEvents = append(session.FocusEvents, FocusEvent{
		Type:      eventType,
		Timestamp: now,
	})
	metrics.FocusEventsRecorded.WithLabelValues(string(eventType)).Inc()
	return true
}

// RecordSubmission appends a graded attempt to an existing session. No-op
// when the session is absent.
func (m *Manager) RecordSubmission(userID string, examType ExamType, chartCount, part int, sub Submission) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[SessionKey(userID, examType, chartCount, part)]
	if !exists {
		return false
	}

	if sub.Timestamp.IsZero() {
		sub.Timestamp = m.clock.Now()
	}
	session.Submissions = append(session.Submissions, sub)
	return true
}

// SetChartMetadata attaches a descriptive chart payload to an existing
// session. Repeated calls overwrite. No-op when the session is absent.
func (m *Manager) SetChartMetadata(userID string, examType ExamType, chartCount, part int, metadata map[string]interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[SessionKey(userID, examType, chartCount, part)]
	if !exists {
		return false
	}
	session.ChartMetadata = metadata
	return true
}

// SetDeviceInfo attaches a client device payload to an existing session.
// Repeated calls overwrite. No-op when the session is absent.
func (m *Manager) SetDeviceInfo(userID string, examType ExamType, chartCount, part int, info map[string]interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[SessionKey(userID, examType, chartCount, part)]
	if !exists {
		return false
	}
	session.DeviceInfo = info
	return true
}

// ActiveSessionCount returns the number of sessions currently held.
func (m *Manager) ActiveSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RecentSummaries returns recently finalized summaries, oldest first.
func (m *Manager) RecentSummaries() []storage.SessionSummary {
	summaries := make([]storage.SessionSummary, 0, m.recent.Len())
	for _, id := range m.recent.Keys() {
		if summary, ok := m.recent.Peek(id); ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

// createLocked builds and registers a new session (must be called with lock held).
func (m *Manager) createLocked(userID string, examType ExamType, chartCount, part int) *Session {
	if !examType.Known() {
		m.logger.Warn().
			Str("exam_type", string(examType)).
			Msg("Unknown exam type, falling back to swing time limit")
	}

	now := m.clock.Now()
	limit := examType.TimeLimit()

	session := &Session{
		ID:         generateSessionID(),
		Key:        SessionKey(userID, examType, chartCount, part),
		UserID:     userID,
		ExamType:   examType,
		ChartCount: chartCount,
		Part:       part,
		StartTime:  now,
		ExpiresAt:  now.Add(limit),
		TimeLimit:  limit,
	}

	m.sessions[session.Key] = session
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return session
}

// generateSessionID generates a unique session ID
func generateSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// This should never happen with a working system RNG
		panic(fmt.Sprintf("failed to generate random session ID: %v", err))
	}
	return hex.EncodeToString(bytes)
}
