package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

const shutdownTimeout = 5 * time.Second

type Deps struct {
	Sessions sessionController
	Registry sessionRegistry
	Rooms    roomReader
	Stats    statsReader

	// Watch serves GET /rooms/{id}/watch when set. Only the match's participants reach it.
	Watch http.Handler
}

// NewRouter wires the HTTP API. Room watchers started by requests live until ctx ends.
func NewRouter(ctx context.Context, logger *slog.Logger, deps Deps) http.Handler {
	h := &handlers{
		logger:   logger.With("component", "rest"),
		watchCtx: ctx,
		sessions: deps.Sessions,
		registry: deps.Registry,
		rooms:    deps.Rooms,
		stats:    deps.Stats,
	}

	r := chi.NewRouter()
	r.Use(requestID(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/ping", h.Ping)

	r.Route("/sessions", func(r chi.Router) {
		r.Use(h.identify)

		r.Post("/ai", h.StartAISession)
		r.Post("/rooms", h.StartRoomSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Post("/moves", h.SubmitMove)
			r.Post("/reset", h.ResetSession)
			r.Post("/leave", h.LeaveSession)
		})
	})

	r.Route("/rooms", func(r chi.Router) {
		r.Get("/history", h.History)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.identify, h.roomMember)

			r.Get("/", h.GetRoom)
			if deps.Watch != nil {
				r.Method(http.MethodGet, "/watch", deps.Watch)
			}
		})
	})

	r.Route("/stats/{userID}", func(r chi.Router) {
		r.Get("/", h.GetStats)
		r.Get("/games", h.ListGames)
	})

	// credentials stay off with the wildcard origin
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{headerRequestID},
	})

	return c.Handler(r)
}

// Start serves handler on port until ctx ends, then shuts down gracefully.
func Start(ctx context.Context, logger *slog.Logger, port string, handler http.Handler) error {
	log := logger.With("component", "http")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	return nil
}
