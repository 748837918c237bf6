package api

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/FarisAlahmad714/chartexam/internal/exam"
	"github.com/FarisAlahmad714/chartexam/internal/storage"
)

// Server exposes the exam session manager to the application's request
// handlers over a small internal HTTP API.
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new API server. The summary store may be nil when the
// service runs without durable storage.
func NewServer(addr string, manager *exam.Manager, summaries storage.SummaryStore, logger zerolog.Logger) *Server {
	handler := &examHandler{
		manager:   manager,
		summaries: summaries,
		logger:    logger.With().Str("handler", "exam").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/api/exam/sessions", handler.StartSession).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/sessions/validate", handler.Validate).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/sessions/end", handler.EndSession).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/sessions/focus", handler.RecordFocusEvent).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/sessions/submissions", handler.RecordSubmission).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/sessions/chart-metadata", handler.SetChartMetadata).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/sessions/device-info", handler.SetDeviceInfo).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/scores/validate", handler.ValidateScore).Methods(http.MethodPost)
	router.HandleFunc("/api/exam/summaries/recent", handler.RecentSummaries).Methods(http.MethodGet)
	router.HandleFunc("/api/exam/summaries/user/{id}", handler.UserSummaries).Methods(http.MethodGet)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop stops the API server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")
	return s.server.Close()
}

// Handler returns the underlying HTTP handler (for tests).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
