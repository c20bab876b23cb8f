// Package api exposes the ingestion and analysis surfaces over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tuneline/tuneline/internal/ingest"
	"github.com/tuneline/tuneline/internal/report"
	"github.com/tuneline/tuneline/internal/store"
)

type Server struct {
	store    *store.Store
	pipeline *ingest.Pipeline
	reports  *report.Service
	logger   zerolog.Logger
}

func NewServer(st *store.Store, pipeline *ingest.Pipeline, reports *report.Service, logger zerolog.Logger) *Server {
	return &Server{
		store:    st,
		pipeline: pipeline,
		reports:  reports,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// Router assembles the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
			r.Get("/{username}", s.handleGetUser)
			r.Delete("/{username}", s.handleDeleteUser)
		})

		r.Route("/scrobbles", func(r chi.Router) {
			r.Post("/fetch", s.handleFetchScrobbles)
			r.Get("/{username}", s.handleListScrobbles)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/artist-trends/{username}", s.handleArtistTrends)
			r.Get("/listening-activity/{username}", s.handleListeningActivity)
		})

		r.Get("/continuations/{id}", s.handleContinuation)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(started)).
			Msg("request")
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encoding response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}
