package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"radio-api/internal/audit"
	"radio-api/internal/config"
	"radio-api/internal/fingerprint"
	"radio-api/internal/hashing"
	"radio-api/internal/limiter"
	"radio-api/internal/util"
)

// RouterDeps collects everything the router wires together.
type RouterDeps struct {
	Config        *config.Config
	TokenHandler  *TokenHandler
	Comments      *CommentHandler
	Stream        *StreamHandler
	Admin         *AdminHandler
	SessionWindow limiter.Strategy
	EventLog      limiter.Strategy
	Auditor       *audit.Publisher
	Fingerprint   *fingerprint.Manager
	Hasher        *hashing.Hasher
	HealthCheck   func(r *http.Request) map[string]string
}

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(deps RouterDeps, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	// Middleware stack
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(ClientInfoMiddleware(deps.Fingerprint))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "If-None-Match"},
		ExposedHeaders:   []string{"ETag", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rateLimit := func(strategy limiter.Strategy, action string, key keyFunc) func(http.Handler) http.Handler {
		return RateLimitMiddleware(strategy, action, key, deps.Auditor)
	}

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		util.Info("Health check requested")
		components := map[string]string{}
		if deps.HealthCheck != nil {
			components = deps.HealthCheck(r)
		}
		healthy := true
		for _, status := range components {
			if status != "ok" {
				healthy = false
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		respondWithJSON(w, status, map[string]interface{}{
			"status":     map[bool]string{true: "healthy", false: "degraded"}[healthy],
			"service":    "radio-api",
			"components": components,
		})
	})

	// Legacy endpoint family: address-keyed fixed windows in Redis.
	router.Route("/api", func(r chi.Router) {
		r.With(rateLimit(deps.SessionWindow, limiter.ActionTokenIssue, ByIP)).
			Get("/csrf-token", deps.TokenHandler.Issue)
		r.Post("/csrf-token/validate", deps.TokenHandler.Validate)

		r.With(rateLimit(deps.SessionWindow, limiter.ActionCommentGet, ByIP)).
			Get("/comments", deps.Comments.List)
		r.With(rateLimit(deps.SessionWindow, limiter.ActionCommentPost, ByIP)).
			Post("/comments", deps.Comments.Create)
	})

	// Versioned family: fingerprint-keyed sliding windows in MySQL.
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/comments", func(r chi.Router) {
			r.With(rateLimit(deps.EventLog, limiter.ActionAPICommentsGet, ByClient)).
				Get("/", deps.Comments.List)
			r.With(rateLimit(deps.EventLog, limiter.ActionAPICommentsPost, ByClient)).
				Post("/", deps.Comments.Create)
			r.With(rateLimit(deps.EventLog, limiter.ActionAPICommentsPut, ByClient)).
				Put("/{commentID}/reaction", deps.Comments.React)
			r.With(rateLimit(deps.EventLog, limiter.ActionAPICommentsPut, ByClient)).
				Put("/{commentID}/report", deps.Comments.Report)
		})

		r.Route("/stream", func(r chi.Router) {
			r.With(rateLimit(deps.EventLog, limiter.ActionAPIStreamGet, ByClient)).
				Get("/status", deps.Stream.Status)
			r.With(rateLimit(deps.EventLog, limiter.ActionAPIStreamGet, ByClient)).
				Get("/now-playing", deps.Stream.NowPlaying)
			r.With(rateLimit(deps.EventLog, limiter.ActionAPIStreamGet, ByClient)).
				Get("/playlist", deps.Stream.Playlist)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(deps.Hasher, deps.Config.Admin.TokenDigest))
			r.Get("/comments", deps.Admin.Queue)
			r.Post("/comments/{commentID}/approve", deps.Admin.Approve)
			r.Post("/comments/{commentID}/reject", deps.Admin.Reject)
			r.Get("/search", deps.Admin.Search)
			r.Post("/rate-limits/reset", deps.Admin.ResetRateLimit)
			r.With(rateLimit(deps.EventLog, limiter.ActionAPIStreamPost, ByClient)).
				Post("/stream/tracks", deps.Stream.AddTrack)
		})
	})

	// 404 handler
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"endpoint not found"}`))
	})

	// Method not allowed handler
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		w.Write([]byte(`{"success":false,"error":"method not allowed"}`))
	})

	return router
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
