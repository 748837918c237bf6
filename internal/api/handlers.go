package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/FarisAlahmad714/chartexam/internal/exam"
	"github.com/FarisAlahmad714/chartexam/internal/scoring"
	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

type examHandler struct {
	manager   *exam.Manager
	summaries storage.SummaryStore
	logger    zerolog.Logger
}

// sessionRef identifies one exam attempt. Part defaults to 1.
type sessionRef struct {
	UserID     string        `json:"user_id"`
	ExamType   exam.ExamType `json:"exam_type"`
	ChartCount int           `json:"chart_count"`
	Part       int           `json:"part"`
}

func decodeSessionRef(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (ref *sessionRef) normalize(w http.ResponseWriter) bool {
	if ref.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return false
	}
	if ref.Part == 0 {
		ref.Part = 1
	}
	return true
}

// StartSession opens a fresh time window for an exam attempt.
func (h *examHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var ref sessionRef
	if !decodeSessionRef(w, r, &ref) || !ref.normalize(w) {
		return
	}

	info := h.manager.StartSession(ref.UserID, ref.ExamType, ref.ChartCount, ref.Part)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session_key":    info.SessionKey,
		"session_id":     info.SessionID,
		"start_time":     info.StartTime,
		"expires_at":     info.ExpiresAt,
		"time_limit":     info.TimeLimit.Seconds(),
		"time_remaining": info.TimeRemaining.Seconds(),
	})
}

// Validate checks whether a submission or event is inside its time window.
func (h *examHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var ref sessionRef
	if !decodeSessionRef(w, r, &ref) || !ref.normalize(w) {
		return
	}

	result := h.manager.Validate(ref.UserID, ref.ExamType, ref.ChartCount, ref.Part)
	response := map[string]interface{}{
		"valid":          result.Valid,
		"time_remaining": result.TimeRemaining.Seconds(),
		"time_spent":     result.TimeSpent.Seconds(),
		"attempts":       result.Attempts,
	}
	if result.Code != "" {
		response["code"] = result.Code
		response["error"] = result.Error
	}
	writeJSON(w, http.StatusOK, response)
}

// EndSession finalizes an exam attempt and returns its summary.
func (h *examHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	var ref sessionRef
	if !decodeSessionRef(w, r, &ref) || !ref.normalize(w) {
		return
	}

	summary := h.manager.End(ref.UserID, ref.ExamType, ref.ChartCount, ref.Part)
	if summary == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"summary": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"summary": summary})
}

type focusEventRequest struct {
	sessionRef
	Type exam.FocusEventType `json:"type"`
}

// RecordFocusEvent records a client focus transition against a session.
func (h *examHandler) RecordFocusEvent(w http.ResponseWriter, r *http.Request) {
	var req focusEventRequest
	if !decodeSessionRef(w, r, &req) || !req.normalize(w) {
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	recorded := h.manager.RecordFocusEvent(req.UserID, req.ExamType, req.ChartCount, req.Part, req.Type)
	writeJSON(w, http.StatusOK, map[string]interface{}{"recorded": recorded})
}

type submissionRequest struct {
	sessionRef
	Score         float64 `json:"score"`
	TotalPoints   float64 `json:"total_points"`
	Accuracy      float64 `json:"accuracy"`
	DrawingsCount int     `json:"drawings_count"`
	TimeSpentMS   int64   `json:"time_spent_ms"`
	Mistakes      int     `json:"mistakes"`
}

// RecordSubmission records a graded attempt against a session.
func (h *examHandler) RecordSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if !decodeSessionRef(w, r, &req) || !req.normalize(w) {
		return
	}

	recorded := h.manager.RecordSubmission(req.UserID, req.ExamType, req.ChartCount, req.Part, exam.Submission{
		Score:         req.Score,
		TotalPoints:   req.TotalPoints,
		Accuracy:      req.Accuracy,
		DrawingsCount: req.DrawingsCount,
		TimeSpent:     time.Duration(req.TimeSpentMS) * time.Millisecond,
		Mistakes:      req.Mistakes,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"recorded": recorded})
}

type metadataRequest struct {
	sessionRef
	Metadata map[string]interface{} `json:"metadata"`
}

// SetChartMetadata attaches a chart description to a session.
func (h *examHandler) SetChartMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if !decodeSessionRef(w, r, &req) || !req.normalize(w) {
		return
	}

	recorded := h.manager.SetChartMetadata(req.UserID, req.ExamType, req.ChartCount, req.Part, req.Metadata)
	writeJSON(w, http.StatusOK, map[string]interface{}{"recorded": recorded})
}

// SetDeviceInfo attaches client device details to a session.
func (h *examHandler) SetDeviceInfo(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if !decodeSessionRef(w, r, &req) || !req.normalize(w) {
		return
	}

	recorded := h.manager.SetDeviceInfo(req.UserID, req.ExamType, req.ChartCount, req.Part, req.Metadata)
	writeJSON(w, http.StatusOK, map[string]interface{}{"recorded": recorded})
}

// ValidateScore runs the scoring integrity checks on a submitted result.
func (h *examHandler) ValidateScore(w http.ResponseWriter, r *http.Request) {
	var result scoring.Result
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	validation := scoring.Validate(result)
	scoring.Report(h.logger, result, validation)
	writeJSON(w, http.StatusOK, validation)
}

// RecentSummaries returns recently finalized session summaries.
func (h *examHandler) RecentSummaries(w http.ResponseWriter, r *http.Request) {
	summaries := h.manager.RecentSummaries()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summaries": summaries,
		"count":     len(summaries),
	})
}

// UserSummaries returns a user's persisted summaries, most recent first.
func (h *examHandler) UserSummaries(w http.ResponseWriter, r *http.Request) {
	if h.summaries == nil {
		writeError(w, http.StatusServiceUnavailable, "Summary storage is not configured")
		return
	}

	userID := mux.Vars(r)["id"]
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	summaries, err := h.summaries.ListSummariesByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to list user summaries")
		writeError(w, http.StatusInternalServerError, "Failed to retrieve summaries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   userID,
		"summaries": summaries,
		"count":     len(summaries),
	})
}
