// Package web serves the site API, the player websocket, the lobby display
// page and the embedded static UI.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"vhsite/internal/chat"
	"vhsite/internal/config"
	"vhsite/internal/content"
	appLog "vhsite/internal/log"
	"vhsite/internal/metrics"
	"vhsite/internal/websocket"
)

// Deps are the collaborators a Server needs.
type Deps struct {
	Config   *config.Config
	Location *time.Location
	Store    *content.Store
	Players  *Players
	Hub      *websocket.Hub

	// Chat is nil when no model API key is configured.
	Chat chat.Generator

	// Refresh reloads content for POST /api/admin/refresh. Defaults to
	// Store.Refresh.
	Refresh func(ctx context.Context) error

	// Now defaults to time.Now.
	Now func() time.Time
}

// Server provides the HTTP surface of the site.
type Server struct {
	cfg     *config.Config
	loc     *time.Location
	store   *content.Store
	players *Players
	hub     *websocket.Hub
	chat    chat.Generator
	refresh func(ctx context.Context) error
	now     func() time.Time

	router *mux.Router
}

// NewServer constructs a Server and registers its routes.
func NewServer(d Deps) *Server {
	s := &Server{
		cfg:     d.Config,
		loc:     d.Location,
		store:   d.Store,
		players: d.Players,
		hub:     d.Hub,
		chat:    d.Chat,
		refresh: d.Refresh,
		now:     d.Now,
		router:  mux.NewRouter(),
	}
	if s.cfg == nil {
		s.cfg = config.DefaultConfig()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.refresh == nil && s.store != nil {
		s.refresh = s.store.Refresh
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return recovery(logging(s.router))
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/calendar", s.handleCalendar).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleUpcoming).Methods(http.MethodGet)
	api.HandleFunc("/sermons", s.handleSermons).Methods(http.MethodGet)
	api.HandleFunc("/series/current", s.handleCurrentSeries).Methods(http.MethodGet)
	api.HandleFunc("/testimonies", s.handleTestimonies).Methods(http.MethodGet)

	api.HandleFunc("/player", s.handlePlayerState).Methods(http.MethodGet)
	api.HandleFunc("/player/ws", s.handlePlayerWS).Methods(http.MethodGet)
	api.HandleFunc("/player/play", s.handlePlayerPlay).Methods(http.MethodPost)
	api.HandleFunc("/player/{action:toggle|pause|close|ended|error}", s.handlePlayerAction).Methods(http.MethodPost)

	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)

	var auth *config.BasicAuthConfig
	if s.cfg.BasicAuth != nil {
		auth = s.cfg.BasicAuth
	} else {
		auth = &config.BasicAuthConfig{}
	}
	api.Handle("/admin/refresh", basicAuth(auth.Username, auth.Password, http.HandlerFunc(s.handleAdminRefresh))).Methods(http.MethodPost)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errNotFound, "no such endpoint")
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errBadRequest, "method not allowed")
	})

	r.HandleFunc("/events.ics", s.handleICS).Methods(http.MethodGet)
	r.HandleFunc("/display", s.handleDisplay).Methods(http.MethodGet)
	r.HandleFunc("/display.png", s.handleDisplaySnapshot).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(s.staticFileServer())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleAdminRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresh == nil {
		writeError(w, http.StatusServiceUnavailable, errUnavailable, "refresh not configured")
		return
	}
	if err := s.refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, errUnavailable, "content refresh failed")
		return
	}
	resp := map[string]any{"status": "ok"}
	if s.store != nil {
		resp["updated_at"] = s.store.Snapshot().UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListenAndServe serves on cfg.Listen until ctx ends, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}
