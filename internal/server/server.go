// Package server exposes the icebox JSON API over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/icebox-app/icebox/internal/engine"
	"github.com/icebox-app/icebox/internal/premium"
	"github.com/icebox-app/icebox/internal/store"
)

// Server is the icebox HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	premium *premium.Manager
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server. premium may be nil when no gateway credentials
// are configured; purchase routes then report 503.
func New(db *store.DB, eng *engine.Engine, prem *premium.Manager, version string) *Server {
	s := &Server{
		db:      db,
		engine:  eng,
		premium: prem,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Post("/notes", s.handleCreateNote)
			r.Post("/prompt", s.handlePrompt)
			r.Post("/input", s.handleInput)
			r.Get("/notes/thawed", s.handleThawed)
			r.Get("/notes/old", s.handleOld)
			r.Post("/notes/{noteID}/open", s.handleOpenNote)
			r.Delete("/notes/{noteID}", s.handleDeleteNote)
			r.Post("/notes/{noteID}/refreeze", s.handleRefreeze)
			r.Post("/notes/{noteID}/valuable", s.handleMarkValuable)
			r.Get("/search", s.handleSearch)
			r.Get("/stats", s.handleStats)
			r.Get("/echo", s.handleEcho)
			r.Get("/export", s.handleExport)
			r.Put("/freeze", s.handleSetFreeze)
			r.Put("/city", s.handleSetCity)
			r.Get("/profile", s.handleProfile)
			r.Post("/checkout", s.handleCheckout)
		})

		r.Post("/payments/{paymentID}/check", s.handleCheckPayment)
		r.Get("/payments/{paymentID}/qr", s.handlePaymentQR)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
