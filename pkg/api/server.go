// Package api provides the REST and WebSocket surface of the server.
package api

import (
	"context"
	stdliberrors "errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ganeshg1313/askandsay-server/pkg/ai"
	"github.com/Ganeshg1313/askandsay-server/pkg/auth"
	"github.com/Ganeshg1313/askandsay-server/pkg/config"
	"github.com/Ganeshg1313/askandsay-server/pkg/logging"
	"github.com/Ganeshg1313/askandsay-server/pkg/relay"
	"github.com/Ganeshg1313/askandsay-server/pkg/storage"
)

// Server is the HTTP surface: the REST API, the metrics and health
// endpoints, and the WebSocket entry point for project rooms.
type Server struct {
	cfg       *config.Config
	store     *storage.Store
	tokens    *auth.TokenManager
	responder ai.Responder
	gateway   *relay.Gateway
	logger    *logging.Logger

	httpServer *http.Server
}

// NewServer wires the HTTP server from its dependencies.
func NewServer(cfg *config.Config, store *storage.Store, tokens *auth.TokenManager, responder ai.Responder, gateway *relay.Gateway, logger *logging.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		tokens:    tokens,
		responder: responder,
		gateway:   gateway,
		logger:    logger,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(s.corsMiddleware)
	router.Use(s.securityHeadersMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	router.Route("/api/users", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/profile", s.handleProfile)
			r.Get("/logout", s.handleLogout)
			r.Get("/all", s.handleListUsers)
		})
	})

	router.Route("/api/projects", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/create", s.handleCreateProject)
		r.Get("/all", s.handleListProjects)
		r.Put("/add-user", s.handleAddUsers)
		r.Put("/remove-user", s.handleRemoveUsers)
		r.Get("/get-project/{projectId}", s.handleGetProject)
		r.Put("/delete-project", s.handleDeleteProject)
	})

	router.Route("/api/files", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/create-file", s.handleCreateFileTree)
		r.Post("/get-file", s.handleGetFileTree)
		r.Put("/update-file", s.handleUpdateFileTree)
		r.Post("/delete-files", s.handleDeleteFileTree)
	})

	router.Route("/api/notes", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/create-note", s.handleCreateNote)
		r.Post("/get-note", s.handleGetNote)
		r.Put("/update-note", s.handleUpdateNote)
		r.Post("/delete-note", s.handleDeleteNote)
	})

	router.Route("/api/ai", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/get-result", s.handleAIResult)
	})

	router.Get("/ws/project", s.gateway.HandleProjectSocket)

	return router
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Bind,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info(logging.CategoryAPI, "server_started", "serving HTTP", map[string]any{
			"bind": s.cfg.Server.Bind,
		})
		if err := s.httpServer.ListenAndServe(); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if _, err := s.store.GetSchemaVersion(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{"status": status})
}
