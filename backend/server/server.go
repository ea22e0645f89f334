package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/notifications"
	"github.com/jghoshh/taskvibe/backend/server/auth"
)

// Server exposes the engine over a JSON HTTP API.
type Server struct {
	svc  *engine.Service
	auth *auth.Authenticator
	feed *notifications.Feed
}

// New creates a Server exposing svc over HTTP. Pending toasts are read from feed.
func New(svc *engine.Service, authenticator *auth.Authenticator, feed *notifications.Feed) *Server {
	return &Server{svc: svc, auth: authenticator, feed: feed}
}

// Router returns the API routes wrapped in the recovery and JWT middleware.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(recoveryMiddleware, s.jwtMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(requireUser)
	authed.HandleFunc("/auth/user", s.handleGetUser).Methods(http.MethodGet)
	authed.HandleFunc("/user", s.handleUpsertUser).Methods(http.MethodPatch)
	authed.HandleFunc("/user/onboarding", s.handleOnboarding).Methods(http.MethodPatch)
	authed.HandleFunc("/user/theme", s.handleTheme).Methods(http.MethodPatch)

	authed.HandleFunc("/tasks", s.handleListTasks).Methods(http.MethodGet)
	authed.HandleFunc("/tasks/completed", s.handleListCompleted).Methods(http.MethodGet)
	authed.HandleFunc("/tasks", s.handleCreateTask).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{id}", s.handleUpdateTask).Methods(http.MethodPatch)
	authed.HandleFunc("/tasks/{id}", s.handleDeleteTask).Methods(http.MethodDelete)
	authed.HandleFunc("/tasks/{id}/complete", s.handleComplete).Methods(http.MethodPost)
	authed.HandleFunc("/tasks/{id}/uncomplete", s.handleUncomplete).Methods(http.MethodPost)

	authed.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	authed.HandleFunc("/stats/daily", s.handleDailyStats).Methods(http.MethodGet)
	authed.HandleFunc("/achievements", s.handleAchievements).Methods(http.MethodGet)
	authed.HandleFunc("/notifications", s.handleNotifications).Methods(http.MethodGet)

	return r
}

// Handler is Router with CORS and an access log on stdout.
func (s *Server) Handler() http.Handler {
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(s.Router())
	return handlers.LoggingHandler(os.Stdout, corsRouter)
}

// Start serves the API on the host of serverURL until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Start(ctx context.Context, serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server url %q: missing host", serverURL)
	}

	server := &http.Server{
		Handler:      s.Handler(),
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", u.Host)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Println("Shutting down server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
