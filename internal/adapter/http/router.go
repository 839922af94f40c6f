package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	// MaxUploadBytes 限制 uploadApp 与 loadAndPushImage 的请求体。
	MaxUploadBytes int64
	Metrics        http.Handler
}

func NewRouter(
	bundleH *BundleHandler,
	imageH *ImageHandler,
	opH *OperationHandler,
	healthH *HealthHandler,
	cfg RouterConfig,
) http.Handler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)

	r.Get("/healthz", healthH.Healthz)
	r.Get("/readyz", healthH.Readyz)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(bodySizeLimit(maxRequestBodySize))
			r.Post("/exportApp", bundleH.Export)
			r.Post("/deployAppWithImage", bundleH.DeployWithImage)
			r.Get("/downloadApp", bundleH.Download)
			r.Get("/operations", opH.List)
		})

		r.Group(func(r chi.Router) {
			r.Use(bodySizeLimit(cfg.MaxUploadBytes))
			r.Post("/uploadApp", bundleH.Upload)
			r.Post("/loadAndPushImage", imageH.LoadAndPush)
		})
	})

	return r
}
