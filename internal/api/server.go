package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/EyasDmour/vehicle-tracker/internal/config"
	"github.com/EyasDmour/vehicle-tracker/internal/db"
	"github.com/EyasDmour/vehicle-tracker/internal/dispatch"
	"github.com/EyasDmour/vehicle-tracker/internal/events"
	"github.com/EyasDmour/vehicle-tracker/internal/playback"
	"github.com/EyasDmour/vehicle-tracker/internal/timeutil"
	"github.com/EyasDmour/vehicle-tracker/internal/units"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	db     *db.DB
	hub    *events.Hub
	router dispatch.Router
	cfg    *config.Config
	clock  timeutil.Clock
	units  string

	playbackMu      sync.Mutex
	playbackSession *playback.Session
	playbackCancel  context.CancelFunc
	playbackScale   playback.RateScale

	dispatchMu       sync.Mutex
	dispatchSessions map[int]*dispatch.Session
}

func NewServer(database *db.DB, hub *events.Hub, router dispatch.Router, cfg *config.Config, clock timeutil.Clock, speedUnits string) *Server {
	if clock == nil {
		clock = &timeutil.RealClock{}
	}
	scale := playback.ScaleForRange(
		cfg.GetMinPlaybackRate(), cfg.GetMaxPlaybackRate(), cfg.GetSnapThreshold())
	return &Server{
		db:               database,
		hub:              hub,
		router:           router,
		cfg:              cfg,
		clock:            clock,
		units:            speedUnits,
		playbackScale:    scale,
		dispatchSessions: make(map[int]*dispatch.Session),
	}
}

// convertSpeed renders a km/h value in the server's configured units.
// Database stores speeds in km/h.
func (s *Server) convertSpeed(speedKMPH float64) float64 {
	return units.ConvertSpeed(speedKMPH, s.units)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400 && statusCode < 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 500:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/vehicles", s.handleVehicles)
	mux.HandleFunc("/api/vehicles/unassigned", s.listUnassignedVehicles)
	mux.HandleFunc("/api/vehicles/{id}", s.handleVehicle)
	mux.HandleFunc("/api/vehicles/{id}/driver", s.assignDriver)
	mux.HandleFunc("/api/vehicles/{id}/history", s.showLocationHistory)
	mux.HandleFunc("/api/vehicles/{id}/history/today", s.showTodayHistory)
	mux.HandleFunc("/api/vehicles/{id}/history/summary", s.showHistorySummary)
	mux.HandleFunc("/api/vehicles/{id}/history/chart", s.showHistoryChart)
	mux.HandleFunc("/api/vehicle_statuses", s.listVehicleStatuses)

	mux.HandleFunc("/api/drivers", s.handleDrivers)
	mux.HandleFunc("/api/drivers/{id}", s.handleDriver)

	mux.HandleFunc("/api/incidents", s.handleIncidents)
	mux.HandleFunc("/api/incidents/{id}", s.handleIncident)
	mux.HandleFunc("/api/incidents/{id}/close", s.closeIncident)
	mux.HandleFunc("/api/incidents/{id}/nearest-vehicles", s.showNearestVehicles)
	mux.HandleFunc("/api/incidents/{id}/dispatch", s.showDispatchState)
	mux.HandleFunc("/api/incidents/{id}/dispatch/search", s.dispatchSearch)
	mux.HandleFunc("/api/incidents/{id}/dispatch/highlight", s.dispatchHighlight)
	mux.HandleFunc("/api/incidents/{id}/dispatch/confirm", s.dispatchConfirm)
	mux.HandleFunc("/api/incidents/{id}/dispatch/cancel", s.dispatchCancel)
	mux.HandleFunc("/api/incident_statuses", s.listIncidentStatuses)
	mux.HandleFunc("/api/incident_priorities", s.listIncidentPriorities)

	mux.HandleFunc("/api/livetracking", s.handleLiveTracking)
	mux.HandleFunc("/api/livetracking/{id}", s.showLivePosition)

	mux.HandleFunc("/api/playback/load", s.playbackLoad)
	mux.HandleFunc("/api/playback/play", s.playbackPlay)
	mux.HandleFunc("/api/playback/pause", s.playbackPause)
	mux.HandleFunc("/api/playback/stop", s.playbackStop)
	mux.HandleFunc("/api/playback/seek", s.playbackSeek)
	mux.HandleFunc("/api/playback/skip", s.playbackSkip)
	mux.HandleFunc("/api/playback/rate", s.playbackRate)
	mux.HandleFunc("/api/playback/status", s.playbackStatus)

	mux.HandleFunc("/api/auth/login", s.handleLogin)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/events", s.hub.SSEHandler())

	return mux
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cfg := map[string]interface{}{
		"units":            s.units,
		"min_rate":         s.playbackScale.MinRate(),
		"max_rate":         s.playbackScale.MaxRate(),
		"urgency_seconds":  s.cfg.GetUrgencySeconds(),
		"history_window_h": s.cfg.GetHistoryWindowHours(),
	}

	if err := json.NewEncoder(w).Encode(cfg); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write config")
		return
	}
}

// Close tears down the playback driver and any open dispatch sessions.
func (s *Server) Close() {
	s.playbackMu.Lock()
	if s.playbackCancel != nil {
		s.playbackCancel()
		s.playbackCancel = nil
	}
	if s.playbackSession != nil {
		s.playbackSession.Close()
		s.playbackSession = nil
	}
	s.playbackMu.Unlock()

	s.dispatchMu.Lock()
	for id, session := range s.dispatchSessions {
		session.Close()
		delete(s.dispatchSessions, id)
	}
	s.dispatchMu.Unlock()
}

// pathID parses the {id} wildcard of the matched route.
func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
