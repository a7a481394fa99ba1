// Package web serves the crop recommender: an HTML page for picking a region and reading the
// recommendation, a JSON API, a live feed of recommendations over WebSocket, and Prometheus
// metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"crop-recommender/internal/common"
	"crop-recommender/internal/features"
	"crop-recommender/internal/ml"
	"crop-recommender/internal/recommend"
	"crop-recommender/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Service is the recommendation surface the server exposes.
type Service interface {
	Recommend(ctx context.Context, state, district string) (recommend.Recommendation, error)
	States() []string
	Districts(state string) []string
	Models() []ml.ModelInfo
	ModelNames() []string
	History(limit int) ([]recommend.Recommendation, error)
	ImagePath(crop string) (string, bool)
}

// StatsSource reports per-region request statistics.
type StatsSource interface {
	GetRegionStats() ([]storage.RegionStats, error)
}

// RecommendRequest is the body of POST /api/recommendations.
type RecommendRequest struct {
	State    string `json:"state"`
	District string `json:"district"`
}

// ErrorResponse is returned for every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status  string    `json:"status"`
	Models  []string  `json:"models"`
	States  int       `json:"states"`
	Clients int       `json:"clients"`
	Uptime  string    `json:"uptime"`
	Time    time.Time `json:"time"`
}

// Options configure a Server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	Gatherer       prometheus.Gatherer // nil uses the default gatherer
	Stats          StatsSource         // nil disables /api/regions/stats
}

type Server struct {
	svc     Service
	hub     *Hub
	opts    Options
	router  *mux.Router
	server  *http.Server
	started time.Time
}

func NewServer(svc Service, hub *Hub, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{svc: svc, hub: hub, opts: opts, started: time.Now()}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/", s.handleIndexPredict).Methods("POST")
	r.HandleFunc("/api/states", s.handleStates).Methods("GET")
	r.HandleFunc("/api/states/{state}/districts", s.handleDistricts).Methods("GET")
	r.HandleFunc("/api/recommendations", s.handleRecommend).Methods("POST")
	r.HandleFunc("/api/recommendations", s.handleHistory).Methods("GET")
	r.HandleFunc("/api/models", s.handleModels).Methods("GET")
	r.HandleFunc("/api/regions/stats", s.handleRegionStats).Methods("GET")
	r.HandleFunc("/images/{crop}", s.handleImage).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWS).Methods("GET")
	}
	s.router = r

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if s.hub != nil {
		s.hub.Start()
	}
	log.Info().Str("addr", s.server.Addr).Msg("Starting crop recommender server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and the live feed.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Stop()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) recommend(r *http.Request, state, district string) (recommend.Recommendation, error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()
	return s.svc.Recommend(ctx, state, district)
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"states": s.svc.States()})
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	state := mux.Vars(r)["state"]
	districts := s.svc.Districts(state)
	if districts == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown state %q", state))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":     state,
		"districts": districts,
	})
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.State == "" || req.District == "" {
		writeError(w, http.StatusBadRequest, "state and district are required")
		return
	}

	rec, err := s.recommend(r, req.State, req.District)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, features.ErrRegionNotFound):
		writeError(w, http.StatusNotFound, common.MsgRegionNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "recommendation timed out")
	default:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("recommendation failed: %v", err))
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := common.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.svc.History(limit)
	if errors.Is(err, recommend.ErrHistoryDisabled) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read history: %v", err))
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"recommendations": recs})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": s.svc.Models()})
}

func (s *Server) handleRegionStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.Stats == nil {
		writeError(w, http.StatusNotFound, recommend.ErrHistoryDisabled.Error())
		return
	}
	stats, err := s.opts.Stats.GetRegionStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read region stats: %v", err))
		return
	}
	if stats == nil {
		stats = []storage.RegionStats{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"regions": stats})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	path, ok := s.svc.ImagePath(mux.Vars(r)["crop"])
	if !ok {
		http.Error(w, common.MsgImageMissing, http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.hub != nil {
		clients = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Models:  s.svc.ModelNames(),
		States:  len(s.svc.States()),
		Clients: clients,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Time:    time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
