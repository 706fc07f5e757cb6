package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/form"
)

// Pinger reports the health of backing connections.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the optional collaborators of a Handler.
type Config struct {
	Logger *slog.Logger

	// MaxUploadBytes bounds every multipart request body.
	MaxUploadBytes int64

	// Assets, when set, is served read-only under AssetsPath.
	Assets     simplepublish.BlobStore
	AssetsPath string

	// Health is pinged by GET /health. Nil always reports healthy.
	Health Pinger

	// Gatherer, when set, is exposed at GET /metrics.
	Gatherer prometheus.Gatherer

	CORSOrigins []string
}

// Handler serves the content and profile HTTP API.
type Handler struct {
	service simplepublish.Service
	config  Config
	logger  *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(service simplepublish.Service, config Config) *Handler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = form.DefaultMaxBytes
	}
	if config.AssetsPath == "" {
		config.AssetsPath = "/assets"
	}
	return &Handler{
		service: service,
		config:  config,
		logger:  config.Logger.With("component", "api"),
	}
}

// Routes returns the full router including middleware
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if len(h.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: h.config.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.handleHealth)
	if h.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.config.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/upload", h.CreateContent)
	r.Route("/content/{category}", func(r chi.Router) {
		r.Get("/", h.ListContent)
		r.Get("/slug/{slug}", h.GetContentBySlug)
		r.Get("/{id}", h.GetContent)
		r.Put("/{id}", h.UpdateContent)
		r.Delete("/{id}", h.DeleteContent)
	})
	r.Route("/profile", func(r chi.Router) {
		r.Get("/", h.GetProfile)
		r.Post("/avatar", h.UploadAvatar)
	})

	if h.config.Assets != nil {
		r.Get(h.config.AssetsPath+"/*", h.ServeAsset)
	}

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "healthy", "timestamp": time.Now().UTC().Format(time.RFC3339)}
	if h.config.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.config.Health.Ping(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "health check failed", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
	}
	writeJSON(w, r, status, body)
}
