package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"page-drm-service/config"
	"page-drm-service/internal/middleware"
)

// NewRouter はルーターを生成する。OTelが有効な場合はotelhttpで計装する。
func NewRouter(h *PageHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/decrypt", h.Decrypt)
		r.Post("/layouts/decode", h.DecodeLayout)
		r.Route("/chapters/{chapter_id}/pages", func(r chi.Router) {
			r.Post("/", h.DecodeChapter)
			r.Get("/", h.GetChapterPages)
		})
	})

	if cfg == nil || !cfg.OtelEnabled {
		return r
	}
	return otelhttp.NewHandler(r, cfg.OtelServiceName,
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
