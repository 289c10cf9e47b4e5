package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/cloo-solutions/docindex/internal/api"
	"github.com/cloo-solutions/docindex/internal/api/handlers"
	"github.com/cloo-solutions/docindex/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const defaultMaxBodyBytes int64 = 10 * 1024 * 1024

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	APIKeys         map[string]string
	MaxBodyBytes    int64
	Health          HealthChecker
	DocumentHandler *handlers.DocumentHandler
	ChunkHandler    *handlers.ChunkHandler
	SearchHandler   *handlers.SearchHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBodyBytes := cfg.MaxBodyBytes
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", healthHandler(cfg.Health))

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.APIKeys))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", cfg.DocumentHandler.Create)
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Put("/{id}/content", cfg.DocumentHandler.UpdateContent)
			r.Post("/{id}/reindex", cfg.DocumentHandler.Reindex)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
			r.Get("/{id}/chunks", cfg.DocumentHandler.ListChunks)
		})

		r.Post("/uploads", cfg.DocumentHandler.InitUpload)
		r.Post("/chunks/preview", cfg.ChunkHandler.Preview)
		r.Post("/search", cfg.SearchHandler.Search)
	})

	return r
}

func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.Ping(ctx); err != nil {
				log.Printf("Health check failed: %v", err)
				api.Error(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
