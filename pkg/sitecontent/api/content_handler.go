package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/site-content/pkg/sitecontent"
)

// Error messages returned to clients. Details stay in the server log.
const (
	msgReadFailed     = "Failed to read content"
	msgUpdateFailed   = "Failed to update content"
	msgInvalidPayload = "Invalid JSON payload"
	msgNoSections     = "No sections provided"
	msgUpdateRejected = "Update rejected"
	msgTooLarge       = "Payload too large"
	msgNotOnPage      = "Section is not part of this page"
)

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// UpdateResponse is the response body of a successful update
type UpdateResponse struct {
	Success bool                 `json:"success"`
	Data    sitecontent.Document `json:"data"`
}

// BatchSectionsRequest is the request body for replacing several sections
type BatchSectionsRequest struct {
	Sections sitecontent.Document `json:"sections"`
}

// BatchSectionsResponse is the response body of a batch section update
type BatchSectionsResponse struct {
	Success bool                 `json:"success"`
	Updated int                  `json:"updated"`
	Data    sitecontent.Document `json:"data"`
}

// ContentHandler handles HTTP requests for site content
type ContentHandler struct {
	service     sitecontent.Service
	documentKey string
	admin       func(http.Handler) http.Handler
	logger      *slog.Logger
}

// HandlerOption configures a ContentHandler
type HandlerOption func(*ContentHandler)

// WithDocumentKey serves the document stored under key
func WithDocumentKey(key string) HandlerOption {
	return func(h *ContentHandler) {
		if key != "" {
			h.documentKey = key
		}
	}
}

// WithAdminGuard protects the write routes with guard
func WithAdminGuard(guard func(http.Handler) http.Handler) HandlerOption {
	return func(h *ContentHandler) {
		h.admin = guard
	}
}

// WithHandlerLogger sets the logger for request failures
func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *ContentHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewContentHandler creates a new content handler
func NewContentHandler(service sitecontent.Service, opts ...HandlerOption) *ContentHandler {
	h := &ContentHandler{
		service:     service,
		documentKey: sitecontent.DefaultDocumentKey,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the content and page routes, to be mounted under /api
func (h *ContentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(NoCacheMiddleware)
		r.Get("/content", h.GetContent)
		r.Get("/content/full", h.GetContent)
		r.Get("/content/sections/{section}", h.GetSection)
		r.Get("/pages/{page}", h.GetPage)
	})

	r.Group(func(r chi.Router) {
		if h.admin != nil {
			r.Use(h.admin)
		}
		r.Post("/content", h.UpdateContent)
		r.Put("/content/sections/{section}", h.PutSection)
		r.Post("/content/sections", h.BatchSections)

		// Page-scoped forms of the section writes
		r.Put("/pages/{page}/{section}", h.PutPageSection)
		r.Post("/pages/{page}/batch", h.BatchSections)
	})

	return r
}

// GetContent returns the full document
func (h *ContentHandler) GetContent(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(r.Context(), h.documentKey)
	if err != nil {
		h.logger.Error("Failed to read content", "document_key", h.documentKey, "error", err)
		writeError(w, r, http.StatusInternalServerError, msgReadFailed)
		return
	}

	render.JSON(w, r, doc)
}

// UpdateContent deep-merges the request body into the document
func (h *ContentHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	patch, err := sitecontent.DecodeDocument(r.Body)
	if err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	doc, err := h.service.Update(r.Context(), h.documentKey, patch)
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, UpdateResponse{Success: true, Data: doc})
}

// GetSection returns one top-level section
func (h *ContentHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")

	value, err := h.service.GetSection(r.Context(), h.documentKey, section)
	if err != nil {
		if errors.Is(err, sitecontent.ErrSectionNotFound) {
			writeError(w, r, http.StatusNotFound, "Section not found")
			return
		}
		h.logger.Error("Failed to read section", "document_key", h.documentKey, "section", section, "error", err)
		writeError(w, r, http.StatusInternalServerError, msgReadFailed)
		return
	}

	render.JSON(w, r, value)
}

// PutSection replaces one top-level section with the request body
func (h *ContentHandler) PutSection(w http.ResponseWriter, r *http.Request) {
	h.putSection(w, r, chi.URLParam(r, "section"))
}

// PutPageSection is PutSection addressed through a page
func (h *ContentHandler) PutPageSection(w http.ResponseWriter, r *http.Request) {
	page, section := chi.URLParam(r, "page"), chi.URLParam(r, "section")
	if _, ok := sitecontent.PageSections[page]; !ok {
		writeError(w, r, http.StatusNotFound, "Page not found")
		return
	}
	if !sitecontent.PageRenders(page, section) {
		writeError(w, r, http.StatusUnprocessableEntity, msgNotOnPage)
		return
	}
	h.putSection(w, r, section)
}

func (h *ContentHandler) putSection(w http.ResponseWriter, r *http.Request, section string) {
	value, err := sitecontent.DecodeValue(r.Body)
	if err != nil {
		h.writeDecodeError(w, r, err)
		return
	}

	doc, err := h.service.PutSection(r.Context(), h.documentKey, section, value)
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, UpdateResponse{Success: true, Data: doc})
}

// BatchSections replaces every section listed in the request
func (h *ContentHandler) BatchSections(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")
	if page != "" {
		if _, ok := sitecontent.PageSections[page]; !ok {
			writeError(w, r, http.StatusNotFound, "Page not found")
			return
		}
	}

	body, err := sitecontent.DecodeDocument(r.Body)
	if err != nil {
		h.writeDecodeError(w, r, err)
		return
	}
	sections, ok := body["sections"].(map[string]interface{})
	if !ok || len(sections) == 0 {
		writeError(w, r, http.StatusBadRequest, msgNoSections)
		return
	}
	if page != "" {
		for section := range sections {
			if !sitecontent.PageRenders(page, section) {
				writeError(w, r, http.StatusUnprocessableEntity, msgNotOnPage)
				return
			}
		}
	}

	doc, err := h.service.BatchSections(r.Context(), h.documentKey, sitecontent.Document(sections))
	if err != nil {
		h.writeUpdateError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, BatchSectionsResponse{Success: true, Updated: len(sections), Data: doc})
}

// GetPage returns the sections rendered by a page
func (h *ContentHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	page := chi.URLParam(r, "page")

	view, err := h.service.GetPage(r.Context(), h.documentKey, page)
	if err != nil {
		if errors.Is(err, sitecontent.ErrPageNotFound) {
			writeError(w, r, http.StatusNotFound, "Page not found")
			return
		}
		h.logger.Error("Failed to read page", "document_key", h.documentKey, "page", page, "error", err)
		writeError(w, r, http.StatusInternalServerError, msgReadFailed)
		return
	}

	render.JSON(w, r, view)
}

func (h *ContentHandler) writeUpdateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sitecontent.ErrMalformedPayload), errors.Is(err, sitecontent.ErrInvalidKey):
		h.logger.Warn("Rejected content update", "document_key", h.documentKey, "error", err)
		writeError(w, r, http.StatusBadRequest, msgInvalidPayload)
	case errors.Is(err, sitecontent.ErrUpdateRejected):
		h.logger.Warn("Content update rejected", "document_key", h.documentKey, "error", err)
		writeError(w, r, http.StatusUnprocessableEntity, msgUpdateRejected)
	default:
		h.logger.Error("Failed to update content", "document_key", h.documentKey, "error", err)
		writeError(w, r, http.StatusInternalServerError, msgUpdateFailed)
	}
}

// writeDecodeError answers a body that could not be decoded
func (h *ContentHandler) writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.logger.Warn("Request body too large", "limit", tooLarge.Limit)
		writeError(w, r, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}
	h.logger.Warn("Rejected content update", "document_key", h.documentKey, "error", err)
	writeError(w, r, http.StatusBadRequest, msgInvalidPayload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
