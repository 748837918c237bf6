package exam

import (
	"time"

	"github.com/FarisAlahmad714/chartexam/internal/metrics"
)

// Start begins the background sweep that reclaims abandoned sessions.
func (m *Manager) Start() {
	go m.sweepLoop()
	m.logger.Info().
		Dur("sweep_interval", m.sweepInterval).
		Dur("grace_window", m.graceWindow).
		Msg("Session sweeper started")
}

// Stop stops the background sweep. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.logger.Info().Msg("Session sweeper stopped")
	})
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepExpired()
		case <-m.stopChan:
			return
		}
	}
}

// sweepExpired evicts every session whose grace window has elapsed. Sessions
// are otherwise removed only by explicit end-of-session finalization, never
// implicitly during validation.
func (m *Manager) sweepExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	swept := 0
	for key, session := range m.sessions {
		if now.After(session.ExpiresAt.Add(m.graceWindow)) {
			delete(m.sessions, key)
			swept++

			m.logger.Debug().
				Str("session_id", session.ID).
				Str("user_id", session.UserID).
				Str("exam_type", string(session.ExamType)).
				Time("expired_at", session.ExpiresAt).
				Msg("Swept abandoned session")
		}
	}

	if swept > 0 {
		metrics.SessionsSwept.Add(float64(swept))
		metrics.ActiveSessions.Set(float64(len(m.sessions)))
	}

	return swept
}
