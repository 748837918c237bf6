package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session lifecycle metrics
	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartexam_sessions_started_total",
			Help: "Total exam sessions created, including auto-created ones",
		},
		[]string{"exam_type", "origin"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chartexam_active_sessions",
			Help: "Number of sessions currently held in the in-memory store",
		},
	)

	SessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartexam_sessions_swept_total",
			Help: "Sessions evicted by the background sweeper after the grace window",
		},
	)

	// Time-window validation metrics
	ValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartexam_validations_total",
			Help: "Time-window validation checks by outcome",
		},
		[]string{"exam_type", "outcome"},
	)

	FocusEventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartexam_focus_events_total",
			Help: "Focus events recorded against active sessions",
		},
		[]string{"type"},
	)

	// Finalization metrics
	SummariesPersisted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartexam_summaries_persisted_total",
			Help: "Session summaries handed to the persistence collaborator",
		},
	)

	SummaryPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chartexam_summary_persist_failures_total",
			Help: "Summary persistence attempts that failed (non-fatal)",
		},
	)

	// Scoring integrity metrics
	ScoringValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chartexam_scoring_validations_total",
			Help: "Score integrity validations by sub-type and severity",
		},
		[]string{"sub_type", "severity"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SessionsStarted,
		ActiveSessions,
		SessionsSwept,
		ValidationsTotal,
		FocusEventsRecorded,
		SummariesPersisted,
		SummaryPersistFailures,
		ScoringValidations,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
