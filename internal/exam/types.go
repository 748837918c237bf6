package exam

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ExamType identifies one of the three chart-exam disciplines. Each type
// fixes the time limit and the scoring contract for its sessions.
type ExamType string

const (
	ExamSwing     ExamType = "swing"
	ExamFibonacci ExamType = "fibonacci"
	ExamFVG       ExamType = "fvg"
)

// Per-type time limits. Unknown exam types fall back to the swing limit as a
// conservative default rather than rejecting the session outright.
const (
	swingTimeLimit     = 180 * time.Second
	fibonacciTimeLimit = 120 * time.Second
	fvgTimeLimit       = 150 * time.Second
)

// TimeLimit returns the allotted window for a single session of this type.
func (t ExamType) TimeLimit() time.Duration {
	switch t {
	case ExamFibonacci:
		return fibonacciTimeLimit
	case ExamFVG:
		return fvgTimeLimit
	default:
		return swingTimeLimit
	}
}

// Known reports whether the exam type is one of the supported disciplines.
func (t ExamType) Known() bool {
	switch t {
	case ExamSwing, ExamFibonacci, ExamFVG:
		return true
	}
	return false
}

// UnmarshalJSON normalizes the exam type to lowercase and validates it.
func (t *ExamType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := ExamType(strings.ToLower(s))
	if !normalized.Known() {
		return fmt.Errorf("invalid exam type: %s (must be swing, fibonacci, or fvg)", s)
	}
	*t = normalized
	return nil
}

// SessionKey computes the composite identity of a session. One session exists
// per (user, exam type, chart count, part) tuple.
func SessionKey(userID string, examType ExamType, chartCount, part int) string {
	return fmt.Sprintf("%s:%s:%d:%d", userID, examType, chartCount, part)
}

// FocusEventType is the closed set of client-reported focus events.
type FocusEventType string

const (
	FocusLost         FocusEventType = "lost_focus"
	FocusGained       FocusEventType = "gained_focus"
	FocusWarningShown FocusEventType = "warning_shown"
	FocusTimeoutReset FocusEventType = "timeout_reset"
)

// UnmarshalJSON validates the focus event type against the known set so
// malformed analytics payloads are rejected at the boundary.
func (t *FocusEventType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := FocusEventType(strings.ToLower(s))
	switch normalized {
	case FocusLost, FocusGained, FocusWarningShown, FocusTimeoutReset:
		*t = normalized
		return nil
	default:
		return fmt.Errorf("invalid focus event type: %s", s)
	}
}

// FocusEvent is a single client-reported focus transition. Duration is only
// ever set on a lost_focus entry, back-filled when the matching gained_focus
// arrives; it is never inferred otherwise.
type FocusEvent struct {
	Type      FocusEventType `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration,omitempty"`
}

// Submission is one graded attempt recorded against a session.
type Submission struct {
	Timestamp     time.Time     `json:"timestamp"`
	Score         float64       `json:"score"`
	TotalPoints   float64       `json:"total_points"`
	Accuracy      float64       `json:"accuracy"`
	DrawingsCount int           `json:"drawings_count"`
	TimeSpent     time.Duration `json:"time_spent"`
	Mistakes      int           `json:"mistakes"`
}

// Session is one timed attempt at a single chart/part within an exam type.
// ExpiresAt is fixed at creation and never extended; Attempts only increments
// for in-window validation checks.
type Session struct {
	ID            string
	Key           string
	UserID        string
	ExamType      ExamType
	ChartCount    int
	Part          int
	StartTime     time.Time
	ExpiresAt     time.Time
	TimeLimit     time.Duration
	Attempts      int
	Submissions   []Submission
	FocusEvents   []FocusEvent
	ChartMetadata map[string]interface{}
	DeviceInfo    map[string]interface{}
}

// Validation result codes returned to callers on failed checks.
const (
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeTimeLimitExceeded = "TIME_LIMIT_EXCEEDED"
)

// ValidationResult is the structured outcome of a time-window check. Every
// branch produces a result; validation never returns an error.
type ValidationResult struct {
	Valid         bool          `json:"valid"`
	Code          string        `json:"code,omitempty"`
	Error         string        `json:"error,omitempty"`
	TimeRemaining time.Duration `json:"time_remaining"`
	TimeSpent     time.Duration `json:"time_spent"`
	Attempts      int           `json:"attempts"`
}

// SessionInfo describes a freshly started (or restarted) session window.
type SessionInfo struct {
	SessionKey    string        `json:"session_key"`
	SessionID     string        `json:"session_id"`
	StartTime     time.Time     `json:"start_time"`
	ExpiresAt     time.Time     `json:"expires_at"`
	TimeLimit     time.Duration `json:"time_limit"`
	TimeRemaining time.Duration `json:"time_remaining"`
}
