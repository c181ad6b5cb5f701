package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazz-dev/botmon/internal/bot"
	"github.com/hazz-dev/botmon/internal/monitor"
	"github.com/hazz-dev/botmon/internal/storage"
	"github.com/hazz-dev/botmon/internal/version"
)

// StatusSource supplies the current roster snapshot.
type StatusSource interface {
	Snapshot() monitor.Snapshot
}

// ServerStore defines the storage queries the server needs.
type ServerStore interface {
	BotHistory(ctx context.Context, botID string, limit, offset int) ([]storage.Probe, int, error)
	UptimePercent(ctx context.Context, botID string, last int) (float64, error)
}

// Server holds the chi router and its dependencies.
type Server struct {
	source StatusSource
	store  ServerStore
	router chi.Router
	logger *slog.Logger
}

// New creates a new Server and registers all routes. store may be nil when
// probe history is disabled.
func New(source StatusSource, store ServerStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		source: source,
		store:  store,
		router: chi.NewRouter(),
		logger: logger,
	}
	s.registerRoutes()
	return s
}

// Router returns the chi router (for mounting or testing).
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/status", s.handleStatus)
	r.Get("/api/bots/{id}/history", s.handleBotHistory)
}

// --- Response helpers ---

type envelope struct {
	Data  interface{} `json:"data"`
	Error string      `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: msg})
}

// --- Handlers ---

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "botmon %s — ok\n", version.Version)
}

type monitorInfo struct {
	RSSMb       float64 `json:"rssMb"`
	HeapMb      float64 `json:"heapMb"`
	UptimeSec   int64   `json:"uptimeSec"`
	LastLoopMs  int64   `json:"lastLoopMs"`
	IntervalSec int64   `json:"intervalSec"`
}

type botInfo struct {
	ID           string `json:"id"`
	URL          string `json:"url"`
	DeployURL    string `json:"deployUrl"`
	Status       string `json:"status"`
	LastCheckAt  int64  `json:"lastCheckAt"`
	LastDeployAt int64  `json:"lastDeployAt"`
	LastPingMs   int64  `json:"lastPingMs"`
	FailCount    int    `json:"failCount"`
}

type statusResponse struct {
	OK        bool        `json:"ok"`
	UpdatedAt int64       `json:"updatedAt"`
	Monitor   monitorInfo `json:"monitor"`
	Bots      []botInfo   `json:"bots"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.source.Snapshot()

	bots := make([]botInfo, 0, len(snap.Bots))
	for _, b := range snap.Bots {
		bots = append(bots, botInfo{
			ID:           b.ID,
			URL:          b.URL,
			DeployURL:    b.DeployURL,
			Status:       string(b.Status),
			LastCheckAt:  bot.UnixMs(b.LastCheckAt),
			LastDeployAt: bot.UnixMs(b.LastDeployAt),
			LastPingMs:   b.LastPingMs,
			FailCount:    b.FailCount,
		})
	}

	writeJSON(w, http.StatusOK, statusResponse{
		OK:        true,
		UpdatedAt: snap.TakenAt.UnixMilli(),
		Monitor: monitorInfo{
			RSSMb:       snap.Monitor.RSSMb,
			HeapMb:      snap.Monitor.HeapMb,
			UptimeSec:   snap.Monitor.UptimeSec,
			LastLoopMs:  snap.Monitor.LastLoopMs,
			IntervalSec: snap.Monitor.IntervalSec,
		},
		Bots: bots,
	})
}

type historyResponse struct {
	Probes    []storage.Probe `json:"probes"`
	Total     int             `json:"total"`
	UptimePct float64         `json:"uptime_percent"`
}

func (s *Server) handleBotHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "history disabled")
		return
	}

	id := chi.URLParam(r, "id")
	if !s.knownBot(id) {
		writeError(w, http.StatusNotFound, "bot not found")
		return
	}

	const maxLimit = 1000

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit parameter")
			return
		}
		if n > maxLimit {
			n = maxLimit
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset parameter")
			return
		}
		offset = n
	}

	probes, total, err := s.store.BotHistory(r.Context(), id, limit, offset)
	if err != nil {
		s.logger.Error("BotHistory", "bot", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	pct, _ := s.store.UptimePercent(r.Context(), id, 100)

	writeJSON(w, http.StatusOK, historyResponse{
		Probes:    probes,
		Total:     total,
		UptimePct: pct,
	})
}

func (s *Server) knownBot(id string) bool {
	for _, b := range s.source.Snapshot().Bots {
		if b.ID == id {
			return true
		}
	}
	return false
}

// --- Middleware ---

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}
