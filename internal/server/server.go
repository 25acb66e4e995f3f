package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/leappulse/pulse/internal/config"
	"github.com/leappulse/pulse/internal/dashboard"
	"github.com/leappulse/pulse/internal/models"
	"github.com/leappulse/pulse/internal/triage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Controller is the part of the dashboard controller the HTTP surface uses
type Controller interface {
	Snapshot() models.Snapshot
	Alerts() triage.AlertCounts
	SetDataSource(ctx context.Context, source models.DataSource) (models.Snapshot, error)
	ToggleDataSource(ctx context.Context) (models.Snapshot, error)
	Refresh(ctx context.Context) models.Snapshot
	Watch() (<-chan models.Snapshot, func())
}

// Ensure the dashboard controller satisfies Controller
var _ Controller = (*dashboard.Controller)(nil)

// SnapshotView is the snapshot as presented to the browser: mentions in
// priority order, topics ranked and the alert badge counts.
type SnapshotView struct {
	models.Snapshot
	Alerts triage.AlertCounts `json:"alerts"`
}

// NewSnapshotView derives the presentation order from a snapshot
func NewSnapshotView(snap models.Snapshot) SnapshotView {
	snap.Mentions = triage.SortByPriority(snap.Mentions)
	snap.TrendingTopics = triage.RankTopics(snap.TrendingTopics)
	return SnapshotView{
		Snapshot: snap,
		Alerts:   triage.CountAlerts(snap.Mentions),
	}
}

// Server exposes the dashboard over HTTP and a websocket stream
type Server struct {
	config     *config.Config
	controller Controller
	gatherer   prometheus.Gatherer
	router     *mux.Router
	upgrader   websocket.Upgrader
}

// New creates the server and registers its routes
func New(cfg *config.Config, controller Controller, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		config:     cfg,
		controller: controller,
		gatherer:   gatherer,
		router:     mux.NewRouter(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	s.router.HandleFunc("/api/source/toggle", s.handleToggle).Methods(http.MethodPost)
	s.router.HandleFunc("/api/source/{source}", s.handleSetSource).Methods(http.MethodPut)
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/api/alerts", s.handleAlerts).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stream", s.handleStream).Methods(http.MethodGet)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Handler returns the router wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}).Handler(s.router)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"brand":        s.config.BrandName,
		"data_source":  snap.DataSource,
		"is_loading":   snap.IsLoading,
		"last_updated": snap.LastUpdated,
		"mentions":     len(snap.Mentions),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewSnapshotView(s.controller.Snapshot()))
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	snap, err := s.controller.ToggleDataSource(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSnapshotView(snap))
}

func (s *Server) handleSetSource(w http.ResponseWriter, r *http.Request) {
	source, ok := models.ParseDataSource(mux.Vars(r)["source"])
	if !ok {
		writeError(w, http.StatusBadRequest, dashboard.ErrUnknownSource)
		return
	}

	snap, err := s.controller.SetDataSource(context.WithoutCancel(r.Context()), source)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, dashboard.ErrUnknownSource) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSnapshotView(snap))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap := s.controller.Refresh(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, NewSnapshotView(snap))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Alerts())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
