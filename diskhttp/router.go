// Package diskhttp serves the files of the disks registered with a
// StorageManager over HTTP.
package diskhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gobeaver/diskkit"
	"github.com/gobeaver/diskkit/manager"
)

// DefaultDiskName addresses the default disk of the manager in URLs.
const DefaultDiskName = "default"

// Handler serves disk contents.
type Handler struct {
	manager *manager.StorageManager
	logger  *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler over m.
func NewHandler(m *manager.StorageManager, options ...HandlerOption) *Handler {
	h := &Handler{
		manager: m,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// NewRouter creates the chi router exposing the disks of m.
//
// Routes:
//   - GET /disks - Registered disk names
//   - GET /disks/{disk}/files/* - File contents, inline
//   - GET /disks/{disk}/download/* - File contents, as an attachment
//   - GET /disks/{disk}/list/* - Directory listing, ?deep=true for recursion
//
// The disk name "default" addresses the default disk.
func NewRouter(m *manager.StorageManager, options ...HandlerOption) http.Handler {
	h := NewHandler(m, options...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/disks", h.Disks)
	r.Route("/disks/{disk}", func(r chi.Router) {
		r.Get("/files/*", h.File)
		r.Head("/files/*", h.File)
		r.Get("/download/*", h.Download)
		r.Get("/list", h.List)
		r.Get("/list/*", h.List)
	})
	return r
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		h.logger.Debug("disk request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}

func (h *Handler) disk(w http.ResponseWriter, r *http.Request) (diskkit.Disk, bool) {
	name := chi.URLParam(r, "disk")
	if name == DefaultDiskName {
		name = ""
	}
	disk, ok := h.manager.Disk(name)
	if !ok {
		writeError(w, http.StatusNotFound, "disk not found")
		return nil, false
	}
	return disk, true
}

// Disks lists the registered disk names.
func (h *Handler) Disks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"disks": h.manager.DiskNames()})
}

// File streams a file inline.
func (h *Handler) File(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, diskkit.DispositionInline)
}

// Download streams a file as an attachment.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, diskkit.DispositionAttachment)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, disposition string) {
	disk, ok := h.disk(w, r)
	if !ok {
		return
	}
	filePath := chi.URLParam(r, "*")

	if err := diskkit.ServeFile(w, r, disk, filePath, diskkit.WithDisposition(disposition)); err != nil {
		h.fail(w, r, err)
	}
}

// Entry is one item of a directory listing response.
type Entry struct {
	Path         string             `json:"path"`
	Type         string             `json:"type"`
	Size         *int64             `json:"size,omitempty"`
	MimeType     string             `json:"mime_type,omitempty"`
	Visibility   diskkit.Visibility `json:"visibility,omitempty"`
	LastModified *int64             `json:"last_modified,omitempty"`
}

// List returns the entries below a directory as JSON.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	disk, ok := h.disk(w, r)
	if !ok {
		return
	}
	dir := chi.URLParam(r, "*")
	deep, _ := strconv.ParseBool(r.URL.Query().Get("deep"))

	items, err := disk.ListContentsWithMimeType(r.Context(), dir, deep).SortByPath()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entry := Entry{
			Path:       item.Path(),
			Type:       string(item.Type()),
			Visibility: item.Visibility(),
		}
		if ts, ok := item.LastModified(); ok {
			entry.LastModified = &ts
		}
		if file, ok := item.(*diskkit.FileAttributes); ok {
			if size, ok := file.FileSize(); ok {
				entry.Size = &size
			}
			entry.MimeType = file.MimeType()
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("disk request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, http.StatusText(status))
}

// StatusCode maps a disk error onto an HTTP status.
func StatusCode(err error) int {
	var symlink *diskkit.SymbolicLinkEncountered
	switch {
	case err == nil:
		return http.StatusOK
	case diskkit.IsNotExist(err):
		return http.StatusNotFound
	case diskkit.IsPermission(err), errors.As(err, &symlink), errors.Is(err, diskkit.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, diskkit.ErrPathTraversal), errors.Is(err, diskkit.ErrCorruptedPath):
		return http.StatusBadRequest
	case errors.Is(err, diskkit.ErrIsDir), errors.Is(err, diskkit.ErrNotDir):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
