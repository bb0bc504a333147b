package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/coldwatch/coldwatch/internal/ingest"
	"github.com/coldwatch/coldwatch/internal/logbuffer"
	"github.com/coldwatch/coldwatch/internal/store"
	"github.com/coldwatch/coldwatch/internal/types"
	"github.com/coldwatch/coldwatch/internal/version"
)

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// HealthSource reports the ingestion session state
type HealthSource interface {
	Health() ingest.Health
}

// AlertSource reports the alert engine state
type AlertSource interface {
	State() types.AlertState
	LastAlert() (types.Alert, bool)
}

// LatestReader reads the last-reading slot
type LatestReader interface {
	Latest(ctx context.Context) (types.Reading, error)
}

// RecentReader lists recently recorded readings, newest first
type RecentReader interface {
	Recent(ctx context.Context, limit int) ([]types.Reading, error)
}

// Server provides the status HTTP endpoints
type Server struct {
	health    HealthSource
	alerts    AlertSource
	latest    LatestReader
	recent    RecentReader
	logBuffer *logbuffer.Buffer
	threshold float64
	label     string
	logger    zerolog.Logger
	addr      string
	startTime time.Time
}

// NewServer creates a new status server listening on addr
func NewServer(health HealthSource, alerts AlertSource, logger zerolog.Logger, addr string) *Server {
	return &Server{
		health:    health,
		alerts:    alerts,
		logger:    logger.With().Str("component", "api").Logger(),
		addr:      addr,
		startTime: time.Now(),
	}
}

// SetReadings sets where reading endpoints read from
func (s *Server) SetReadings(latest LatestReader, recent RecentReader) {
	s.latest = latest
	s.recent = recent
}

// SetLogBuffer sets the buffer served by /api/logs
func (s *Server) SetLogBuffer(lb *logbuffer.Buffer) {
	s.logBuffer = lb
}

// SetAlertInfo sets the configured threshold and label shown by /status
func (s *Server) SetAlertInfo(threshold float64, label string) {
	s.threshold = threshold
	s.label = label
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Route("/api", func(r chi.Router) {
		r.Get("/latest", s.handleLatest)
		r.Get("/readings", s.handleReadings)
		r.Get("/logs", s.handleLogs)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().
			Str("address", s.addr).
			Msg("Starting status server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"time":    time.Now().UTC().Format(time.RFC3339),
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"version": version.Get(),
	}
	if s.health != nil {
		status["session"] = s.health.Health()
	}
	if s.alerts != nil {
		alert := map[string]interface{}{
			"armed":     s.alerts.State().Armed,
			"threshold": s.threshold,
			"label":     s.label,
		}
		if last, ok := s.alerts.LastAlert(); ok {
			alert["last"] = last
		}
		status["alert"] = alert
	}
	writeJSON(w, http.StatusOK, status)
}

// readingView is the JSON form of a reading
type readingView struct {
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

func toView(r types.Reading) readingView {
	return readingView{Date: r.Date(), Time: r.Clock(), Value: r.Value, Timestamp: r.Timestamp}
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	if s.latest == nil {
		writeError(w, http.StatusServiceUnavailable, "last reading not configured")
		return
	}

	reading, err := s.latest.Latest(r.Context())
	if errors.Is(err, store.ErrNoReading) {
		writeError(w, http.StatusNotFound, "no readings yet")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to read last reading")
		writeError(w, http.StatusInternalServerError, "failed to read last reading")
		return
	}
	writeJSON(w, http.StatusOK, toView(reading))
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if s.recent == nil {
		writeError(w, http.StatusServiceUnavailable, "record store not configured")
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	readings, err := s.recent.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list readings")
		writeError(w, http.StatusInternalServerError, "failed to list readings")
		return
	}

	views := make([]readingView, 0, len(readings))
	for _, reading := range readings {
		views = append(views, toView(reading))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readings": views,
		"count":    len(views),
	})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logBuffer == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"entries": []logbuffer.Entry{},
			"count":   0,
		})
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	entries := s.logBuffer.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
