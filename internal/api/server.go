// Package api provides the HTTP server and handlers for the catalog.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/huggablesquare/deputy/internal/archive"
	"github.com/huggablesquare/deputy/internal/catalog"
	"github.com/huggablesquare/deputy/internal/library"
	"github.com/huggablesquare/deputy/internal/logging"
	"github.com/huggablesquare/deputy/internal/metrics"
	"github.com/huggablesquare/deputy/internal/opds"
)

// BasePath is where the catalog routes are mounted.
const BasePath = "/catalog"

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Server is the catalog HTTP server.
type Server struct {
	lib   *library.Library
	feeds *opds.Builder
}

// NewServer creates a server over lib. Root feeds are titled feedTitle.
func NewServer(lib *library.Library, feedTitle string) *Server {
	return &Server{
		lib:   lib,
		feeds: opds.NewBuilder(feedTitle, BasePath),
	}
}

// Handler returns the HTTP handler with metrics and logging middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware, logging.Middleware)

	r.Get("/health", s.handleHealth)
	r.Route(BasePath, func(r chi.Router) {
		r.Get("/", s.handleRoot)
		r.Get("/directory/{id}", s.handleDirectory)
		r.Get("/file/{id}", s.handleFile)
		r.Get("/file/{id}/{page}", s.handlePage)
		r.Get("/thumbnail/{id}", s.handleThumbnail)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"entries": s.lib.Index().Len(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.feeds.DirectoryURL(catalog.RootID), http.StatusFound)
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	dir, err := s.lib.Index().Directory(chi.URLParam(r, "id"))
	if err != nil {
		s.sendFailure(w, r, "", err)
		return
	}

	var buf bytes.Buffer
	if err := opds.Encode(&buf, s.feeds.Directory(dir)); err != nil {
		s.sendFailure(w, r, dir.Path, err)
		return
	}
	w.Header().Set("Content-Type", opds.ContentType)
	w.Write(buf.Bytes())
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	f, err := s.lib.File(chi.URLParam(r, "id"))
	if err != nil {
		s.sendFailure(w, r, "", err)
		return
	}

	file, err := os.Open(f.Path)
	if err != nil {
		s.sendFailure(w, r, f.Path, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		s.sendFailure(w, r, f.Path, err)
		return
	}

	name := filepath.Base(f.Path)
	w.Header().Set("Content-Type", f.Format.MediaType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), file)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		s.sendError(w, http.StatusNotFound, "page not found")
		return
	}

	p, err := s.lib.Page(r.Context(), id, page)
	if err != nil {
		s.sendFailure(w, r, s.pathOf(id), err)
		return
	}
	s.sendImage(w, p)
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := s.lib.Thumbnail(r.Context(), id)
	if err != nil {
		s.sendFailure(w, r, s.pathOf(id), err)
		return
	}
	s.sendImage(w, p)
}

func (s *Server) sendImage(w http.ResponseWriter, p *archive.Page) {
	w.Header().Set("Content-Type", p.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.Write(p.Data)
}

// pathOf returns the filesystem path of id for server-side logs.
func (s *Server) pathOf(id string) string {
	if e, err := s.lib.Index().Lookup(id); err == nil {
		return e.Path
	}
	return ""
}

// sendFailure maps a lookup or extraction error to a status code. Only
// server errors are logged; their cause never reaches the client.
func (s *Server) sendFailure(w http.ResponseWriter, r *http.Request, path string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "entry not found")
	case errors.Is(err, archive.ErrPageNotFound):
		s.sendError(w, http.StatusNotFound, "page not found")
	case errors.Is(err, context.Canceled):
		logging.WithContext(r.Context()).Debug("request cancelled", zap.String("path", path))
	default:
		logging.WithContext(r.Context()).Error("request failed",
			zap.String("url", r.URL.Path),
			zap.String("path", path),
			zap.Error(err))
		s.sendError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
		Code:  code,
	})
}
