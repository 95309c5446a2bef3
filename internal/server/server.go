package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"QuoteWatch/internal/alert"
	"QuoteWatch/internal/collector"
	"QuoteWatch/internal/forecast"
	"QuoteWatch/internal/indices"
	"QuoteWatch/internal/model"
	"QuoteWatch/internal/portfolio"
	"QuoteWatch/internal/session"
)

// Config holds server configuration and collaborators.
type Config struct {
	Addr              string
	CORSOrigins       []string
	Log               zerolog.Logger
	Fetcher           collector.Fetcher
	Alerts            *alert.Engine
	Portfolio         *portfolio.Portfolio
	Valuator          *portfolio.Valuator
	Forecast          *forecast.Engine
	Indices           []indices.Index
	Watchlist         []model.Symbol
	Display           *time.Location
	Clock             session.Clock
	ReferenceExchange model.Exchange
}

// Server is the JSON API consumed by the dashboard.
type Server struct {
	router    *chi.Mux
	server    *http.Server
	collector *collector.Collector
	log       zerolog.Logger
	cfg       Config
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	if cfg.Display == nil {
		cfg.Display = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	s := &Server{
		router:    chi.NewRouter(),
		collector: collector.NewCollector(cfg.Fetcher),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		cfg:       cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/session", s.handleSession)
		r.Get("/watchlist", s.handleWatchlist)

		r.Route("/quotes/{symbol}", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Get("/history", s.handleHistory)
			r.Get("/latest", s.handleLatest)
			r.Get("/profile", s.handleProfile)
			r.Get("/stats", s.handleStats)
			r.Get("/export.csv", s.handleExportCSV)
			r.Get("/export.json", s.handleExportJSON)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlerts)
			r.Post("/", s.handleCreateAlert)
			r.Post("/evaluate", s.handleEvaluateAlerts)
			r.Delete("/{id}", s.handleDeleteAlert)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/", s.handleGetPortfolio)
			r.Delete("/", s.handleClearPortfolio)
			r.Post("/lots", s.handleAddLot)
			r.Get("/report", s.handlePortfolioReport)
		})

		r.Get("/forecast/{symbol}", s.handleForecast)

		r.Get("/indices", s.handleCompareIndices)
		r.Get("/indices/{symbol}", s.handleIndexDetail)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrInvalidParameter):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInsufficientData):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrFetch):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", model.ErrInvalidParameter, err)
	}
	return nil
}

// symbolParam parses the {symbol} path segment.
func symbolParam(r *http.Request) (model.Symbol, error) {
	raw := chi.URLParam(r, "symbol")
	if u, err := url.PathUnescape(raw); err == nil {
		raw = u
	}
	return model.ParseSymbol(raw)
}
