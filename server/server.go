// Package server exposes the scraper's control surface over HTTP for the
// observing UI collaborator: start/pause/reset triggers, state snapshots, and
// JSON export downloads.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/viniciusgf/go-scrape-inci/export"
	"github.com/viniciusgf/go-scrape-inci/models"
	"github.com/viniciusgf/go-scrape-inci/scraper"
)

// Server routes control requests to a scraper controller.
type Server struct {
	controller *scraper.Controller
	router     chi.Router
	now        func() time.Time
}

// New builds the control server around a controller.
func New(controller *scraper.Controller) *Server {
	s := &Server{
		controller: controller,
		now:        time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape/start", s.handleStart)
		r.Post("/scrape/pause", s.handlePause)
		r.Post("/scrape/reset", s.handleReset)
		r.Post("/map", s.handleMap)
		r.Get("/status", s.handleStatus)
		r.Get("/products", s.handleProducts)
		r.Get("/pages", s.handlePages)
		r.Get("/logs", s.handleLogs)
		r.Get("/export", s.handleExportAll)
		r.Get("/export/page/{offset}", s.handleExportPage)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type startRequest struct {
	StartOffset         int  `json:"startOffset"`
	EndOffset           int  `json:"endOffset"`
	ProductLimitPerPage *int `json:"productLimitPerPage,omitempty"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}

	opts := scraper.StartOptions{
		StartOffset: req.StartOffset,
		EndOffset:   req.EndOffset,
	}
	if req.ProductLimitPerPage != nil {
		if *req.ProductLimitPerPage <= 0 {
			writeError(w, http.StatusBadRequest, "productLimitPerPage must be positive")
			return
		}
		opts.ProductLimitPerPage = *req.ProductLimitPerPage
	}

	switch err := s.controller.Start(opts); {
	case errors.Is(err, scraper.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scraper.ErrMissingAPIKey):
		writeError(w, http.StatusInternalServerError, err.Error())
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, s.controller.Status())
	}
}

type mapRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	var req mapRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "limit cannot be negative")
		return
	}

	refs, err := s.controller.MapProductURLs(r.Context(), req.Limit)
	switch {
	case errors.Is(err, scraper.ErrMissingAPIKey):
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if refs == nil {
		refs = []models.ProductRef{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": refs,
		"total":    len(refs),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	paused := s.controller.TogglePause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": paused})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.controller.Reset()
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Status())
}

func (s *Server) handleProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Products())
}

func (s *Server) handlePages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Pages())
}

func (s *Server) handleLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Logs())
}

func (s *Server) handleExportAll(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.AllFilename(s.now())))
	if err := export.WriteAll(w, s.controller.Products()); err != nil {
		// Headers are gone; nothing left to do but drop the connection.
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleExportPage(w http.ResponseWriter, r *http.Request) {
	offset, err := strconv.Atoi(chi.URLParam(r, "offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}
	bucket, ok := s.controller.Page(offset)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no page bucket for offset %d", offset))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.PageFilename(offset, s.now())))
	if err := export.WritePage(w, bucket); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
