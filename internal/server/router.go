package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logging)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealthCheck)
		r.Post("/transform", s.handleTransform)
		r.Post("/card", s.handleCard)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleClearAll)
		r.Delete("/cache/html", s.handleClearHTML)
		r.Delete("/cache/images", s.handleClearImages)
	})

	prefix := imagePath(s.app.Config.Images.BaseURL)
	fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(s.app.Images.Dir())))
	r.Get(prefix+"/*", fileServer.ServeHTTP)

	return r
}

// imagePath returns the path component of the public image base URL.
func imagePath(baseURL string) string {
	p := "/images"
	if u, err := url.Parse(baseURL); err == nil && u.Path != "" && u.Path != "/" {
		p = u.Path
	}
	return "/" + strings.Trim(p, "/")
}
