package storage

import (
	"time"
)

// SessionSummary is the immutable record produced when a timed chart-exam
// session ends. Durations are carried in milliseconds so the record survives
// JSON round-trips without losing sub-second focus gaps.
type SessionSummary struct {
	SessionID         string                 `json:"session_id"`
	UserID            string                 `json:"user_id"`
	ExamType          string                 `json:"exam_type"`
	ChartCount        int                    `json:"chart_count"`
	Part              int                    `json:"part"`
	SessionStartTime  time.Time              `json:"session_start_time"`
	SessionEndTime    time.Time              `json:"session_end_time"`
	TotalTimeSpentMS  int64                  `json:"total_time_spent_ms"`
	TimePressureRatio float64                `json:"time_pressure_ratio"`
	Completed         bool                   `json:"completed"`
	TotalFocusLostMS  int64                  `json:"total_focus_lost_ms"`
	FocusLossCount    int                    `json:"focus_loss_count"`
	FinalScore        float64                `json:"final_score"`
	FinalAccuracy     float64                `json:"final_accuracy"`
	Attempts          int                    `json:"attempts"`
	SubmissionCount   int                    `json:"submission_count"`
	ChartMetadata     map[string]interface{} `json:"chart_metadata,omitempty"`
	DeviceInfo        map[string]interface{} `json:"device_info,omitempty"`
}
