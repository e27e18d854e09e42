// Package handler exposes statement parsing and template management over
// HTTP with JSON bodies.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/statement-engine/internal/domain/statement/model"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/registry"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/service"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/sniffer"
	"github.com/FACorreiaa/statement-engine/internal/domain/statement/template"
)

// StatementParser is implemented by *service.StatementService.
type StatementParser interface {
	ParseStatement(ctx context.Context, doc model.Document, templateID string) service.Result
}

// StatementHandler serves the /v1 API.
type StatementHandler struct {
	parser    StatementParser
	templates *template.Manager
	logger    *slog.Logger
	maxUpload int64
}

// NewStatementHandler creates a new statement handler. Uploads larger than
// maxUpload bytes are rejected.
func NewStatementHandler(parser StatementParser, templates *template.Manager, maxUpload int64, logger *slog.Logger) *StatementHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &StatementHandler{
		parser:    parser,
		templates: templates,
		logger:    logger,
		maxUpload: maxUpload,
	}
}

// Routes mounts the API on r.
func (h *StatementHandler) Routes(r chi.Router) {
	r.Post("/statements/parse", h.Parse)

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", h.ListTemplates)
		r.Post("/", h.CreateTemplate)
		r.Post("/validate", h.ValidateTemplate)
		r.Get("/{id}", h.ExportTemplate)
		r.Put("/{id}", h.ImportTemplate)
		r.Post("/{id}/test", h.TestTemplate)
	})
}

// Parse handles POST /v1/statements/parse. The document is the multipart
// "file" field with "template_id" alongside, or the raw body with
// ?template_id= and an optional ?filename=.
func (h *StatementHandler) Parse(w http.ResponseWriter, r *http.Request) {
	doc, fields, err := h.readDocument(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	templateID := fields("template_id")
	if templateID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing template_id")
		return
	}

	res := h.parser.ParseStatement(r.Context(), doc, templateID)
	writeJSON(w, statusOf(res), res)
}

// ListTemplates handles GET /v1/templates with optional ?bank= and ?format=.
func (h *StatementHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	bank := r.URL.Query().Get("bank")
	formatStr := r.URL.Query().Get("format")
	format := model.ParseFormat(formatStr)
	if formatStr != "" && format == model.FormatUnknown {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", fmt.Sprintf("Unknown format %q", formatStr))
		return
	}

	list, err := h.templates.Available(r.Context(), bank, format)
	if err != nil {
		h.logger.Error("failed to list templates", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to list templates")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

// CreateTemplate handles POST /v1/templates. Bodies may be JSON or YAML.
func (h *StatementHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}
	if err := h.templates.Create(r.Context(), t); err != nil {
		h.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// ImportTemplate handles PUT /v1/templates/{id}, replacing any existing one.
func (h *StatementHandler) ImportTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if t.Identifier == "" {
		t.Identifier = id
	}
	if t.Identifier != id {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Identifier does not match path")
		return
	}
	if err := h.templates.Import(r.Context(), t); err != nil {
		h.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ExportTemplate handles GET /v1/templates/{id}; ?format=yaml returns YAML.
func (h *StatementHandler) ExportTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.templates.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeManagerError(w, err)
		return
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		data, err := template.EncodeYAML(t)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to encode template")
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ValidateTemplate handles POST /v1/templates/validate. The result is
// returned with 200 whether or not the template is valid.
func (h *StatementHandler) ValidateTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := h.decodeTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.templates.Validate(t))
}

// TestTemplate handles POST /v1/templates/{id}/test with a sample document.
func (h *StatementHandler) TestTemplate(w http.ResponseWriter, r *http.Request) {
	doc, _, err := h.readDocument(w, r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.templates.Test(r.Context(), chi.URLParam(r, "id"), doc))
}

// readDocument returns the uploaded document and a lookup for form or query
// fields.
func (h *StatementHandler) readDocument(w http.ResponseWriter, r *http.Request) (model.Document, func(string) string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			return model.Document{}, nil, fmt.Errorf("failed to parse multipart form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return model.Document{}, nil, errors.New("missing file field")
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return model.Document{}, nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return model.Document{Name: header.Filename, Data: data}, r.FormValue, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return model.Document{}, nil, fmt.Errorf("failed to read body: %w", err)
	}
	query := r.URL.Query()
	return model.Document{Name: query.Get("filename"), Data: data}, query.Get, nil
}

func (h *StatementHandler) decodeTemplate(w http.ResponseWriter, r *http.Request) (template.Template, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read body")
		return template.Template{}, false
	}
	t, err := template.Decode(data)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return template.Template{}, false
	}
	return t, true
}

// ValidationErrorResponse carries every violated rule.
type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors"`
}

func (h *StatementHandler) writeManagerError(w http.ResponseWriter, err error) {
	var verr *template.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ValidationErrorResponse{Error: "validation_failed", Errors: verr.Errors})
	case errors.Is(err, template.ErrTemplateNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, template.ErrTemplateExists):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.logger.Error("template operation failed", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Template operation failed")
	}
}

// statusOf maps a parse result to an HTTP status. Successful parses with no
// transactions are still 200.
func statusOf(res service.Result) int {
	switch {
	case res.Success:
		return http.StatusOK
	case errors.Is(res.Err, template.ErrTemplateNotFound):
		return http.StatusNotFound
	case errors.Is(res.Err, model.ErrFormatMismatch), errors.Is(res.Err, sniffer.ErrEmptyFile):
		return http.StatusUnprocessableEntity
	case errors.Is(res.Err, registry.ErrParserNotFound), errors.Is(res.Err, model.ErrExtraction):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}
