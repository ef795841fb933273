package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lepinkainen/smart-url-view/pkg/urlutils"
)

// cardRequest is the body of POST /api/card.
type cardRequest struct {
	URL string `json:"url"`
}

// statsResponse adds human readable sizes to app.Stats.
type statsResponse struct {
	HTML struct {
		Backend   string `json:"backend"`
		Total     int64  `json:"total"`
		Valid     int64  `json:"valid"`
		Expired   int64  `json:"expired"`
		SizeBytes int64  `json:"size_bytes"`
		Size      string `json:"size"`
	} `json:"html"`
	Images struct {
		Files int    `json:"files"`
		Bytes int64  `json:"bytes"`
		Size  string `json:"size"`
	} `json:"images"`
	Posts int64 `json:"posts"`
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxContentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondWithError(w, http.StatusRequestEntityTooLarge, "Content too large")
			return
		}
		s.respondWithError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	out := s.app.Transform(r.Context(), string(body))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, out); err != nil {
		slog.Debug("Failed to write transform response", "error", err)
	}
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !urlutils.IsValidURL(req.URL) {
		s.respondWithError(w, http.StatusBadRequest, "Invalid URL: "+req.URL)
		return
	}

	out := s.app.Transformer.RenderCard(r.Context(), req.URL, s.app.Config.Settings)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, out); err != nil {
		slog.Debug("Failed to write card response", "error", err)
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Stats(r.Context())
	if err != nil {
		slog.Error("Failed to collect cache stats", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve cache stats")
		return
	}

	var resp statsResponse
	resp.HTML.Backend = stats.HTML.Backend
	resp.HTML.Total = stats.HTML.Total
	resp.HTML.Valid = stats.HTML.Valid
	resp.HTML.Expired = stats.HTML.Expired
	resp.HTML.SizeBytes = stats.HTML.SizeBytes
	resp.HTML.Size = humanize.Bytes(uint64(max(stats.HTML.SizeBytes, 0)))
	resp.Images.Files = stats.Images.Files
	resp.Images.Bytes = stats.Images.Bytes
	resp.Images.Size = humanize.Bytes(uint64(max(stats.Images.Bytes, 0)))
	resp.Posts = stats.Posts

	s.respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClearHTML(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.ClearHTML(r.Context())
	if err != nil {
		slog.Error("Failed to clear HTML cache", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not clear HTML cache")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]int64{"html_deleted": n})
}

func (s *Server) handleClearImages(w http.ResponseWriter, r *http.Request) {
	n, err := s.app.ClearImages()
	if err != nil {
		slog.Error("Failed to clear image cache", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not clear image cache")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]int{"images_deleted": n})
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	html, images, err := s.app.ClearAll(r.Context())
	if err != nil {
		slog.Error("Failed to clear caches", "error", err)
		s.respondWithError(w, http.StatusInternalServerError, "Could not clear caches")
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]int64{"html_deleted": html, "images_deleted": int64(images)})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.app.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		s.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
