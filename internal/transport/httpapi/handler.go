// Package httpapi serves the ledger pipeline over a local HTTP API for desktop front ends.
package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/javajack/xlledger"
	"github.com/javajack/xlledger/internal/config"
)

// errValidation marks request bodies or parameters that failed validation.
var errValidation = errors.New("invalid request")

// errPathOutsideBase marks request paths that escape the configured base directory.
var errPathOutsideBase = errors.New("path outside base directory")

// errOriginForbidden marks browser requests sent from pages not served by this machine.
var errOriginForbidden = errors.New("cross-origin request refused")

// Handler serves the API.
type Handler struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *Metrics
	validate *validator.Validate
}

// NewHandler builds the router. Metrics are registered with reg and served from it.
func NewHandler(cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (http.Handler, error) {
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	h := &Handler{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "http")),
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.localOrigin)
		r.Use(middleware.AllowContentType("application/json"))
		r.Get("/sheets", h.sheets)
		r.Post("/preview", h.preview)
		r.Post("/process", h.process)
	})
	return r, nil
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.DebugContext(r.Context(), "request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()))
	})
}

// localOrigin rejects requests whose Origin header names a remote site, so a web
// page open in the user's browser cannot drive the API. Non-browser clients send no Origin.
func (h *Handler) localOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && !isLocalOrigin(origin) {
			h.fail(w, r, "origin", fmt.Errorf("origin %q: %w", origin, errOriginForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLocalOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Hostname()) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func (h *Handler) processor(rule xlledger.Rule) (*xlledger.Processor, error) {
	opts, err := h.cfg.Options()
	if err != nil {
		return nil, err
	}
	opts = append(opts, xlledger.WithLogger(h.logger), xlledger.WithRecorder(h.metrics))
	if rule != nil {
		opts = append(opts, xlledger.WithRule(rule))
	}
	return xlledger.NewProcessor(opts...), nil
}

// resolvePath confines p to the configured base directory when one is set.
func (h *Handler) resolvePath(p string) (string, error) {
	base := h.cfg.Server.BaseDir
	if base == "" {
		return filepath.Clean(p), nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(filepath.Clean(base), p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", p, errPathOutsideBase)
	}
	return p, nil
}

func (h *Handler) sheets(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		h.fail(w, r, "sheets", fmt.Errorf("path query parameter is required: %w", errValidation))
		return
	}
	path, err := h.resolvePath(raw)
	if err != nil {
		h.fail(w, r, "sheets", err)
		return
	}
	p, err := h.processor(nil)
	if err != nil {
		h.fail(w, r, "sheets", err)
		return
	}
	infos, err := p.Sheets(path)
	if err != nil {
		h.fail(w, r, "sheets", err)
		return
	}
	h.metrics.observeRequest("sheets", "")
	render.JSON(w, r, sheetsResponse{Path: path, Sheets: infos})
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "preview", err)
		return
	}
	path, err := h.resolvePath(req.Path)
	if err != nil {
		h.fail(w, r, "preview", err)
		return
	}
	p, err := h.processor(nil)
	if err != nil {
		h.fail(w, r, "preview", err)
		return
	}

	var s *xlledger.Session
	if req.Sheet != "" {
		s, err = p.LoadSheet(path, req.Sheet)
	} else {
		s, err = p.Load(path)
	}
	if err != nil {
		h.fail(w, r, "preview", err)
		return
	}

	rows := req.Rows
	if rows == 0 {
		rows = h.cfg.PreviewRows
	}
	h.metrics.observeRequest("preview", "")
	render.JSON(w, r, previewResponse{
		Session: s.ID,
		Sheet:   s.SheetName,
		Sheets:  s.Workbook.SheetNames(),
		Bounds:  newBoundsDTO(s.Bounds),
		Columns: s.Table.Columns,
		Total:   len(s.Table.Rows),
		Rows:    xlledger.Preview(s.Table, rows),
	})
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, "process", err)
		return
	}
	path, err := h.resolvePath(req.Path)
	if err != nil {
		h.fail(w, r, "process", err)
		return
	}
	output, err := h.resolvePath(req.Output)
	if err != nil {
		h.fail(w, r, "process", err)
		return
	}

	var rule xlledger.Rule
	if req.Rule != "" {
		if rule, err = xlledger.RuleByName(req.Rule, req.Expression); err != nil {
			h.fail(w, r, "process", fmt.Errorf("%v: %w", err, errValidation))
			return
		}
	}
	p, err := h.processor(rule)
	if err != nil {
		h.fail(w, r, "process", err)
		return
	}

	run := xlledger.Request{
		Path:    path,
		Sheet:   req.Sheet,
		Add:     req.Add,
		Inspect: req.Inspect,
		Output:  output,
		Region:  req.Region,
	}
	if req.Bounds != nil {
		b := req.Bounds.bounds()
		run.Bounds = &b
	}
	res, err := p.Run(run)
	if err != nil {
		h.fail(w, r, "process", err)
		return
	}

	h.metrics.observeRequest("process", "")
	render.JSON(w, r, processResponse{
		Session:     res.SessionID,
		Output:      res.Output,
		Sheet:       res.Sheet,
		Bounds:      newBoundsDTO(res.Bounds),
		Columns:     res.Columns,
		Rows:        res.Rows,
		Diagnostics: newDiagnostics(res.Diagnostics),
		DurationMS:  res.Duration.Milliseconds(),
	})
}

func (h *Handler) decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, errValidation)
	}
	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("%v: %w", err, errValidation)
	}
	return nil
}

// fail maps an error to a problem response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, route string, err error) {
	status, code := classifyError(err)
	pr := problem{
		Type:      "/errors/" + strings.ToLower(strings.ReplaceAll(code, "_", "-")),
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    err.Error(),
		Code:      code,
		RequestID: middleware.GetReqID(r.Context()),
	}
	var te *xlledger.TrimError
	if errors.As(err, &te) {
		for _, c := range te.Candidates {
			pr.Candidates = append(pr.Candidates, c+1)
		}
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("request_id", pr.RequestID),
		slog.String("route", route),
		slog.String("code", code),
		slog.String("error", err.Error()))
	h.metrics.observeRequest(route, code)

	render.Status(r, status)
	render.JSON(w, r, pr)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, errValidation):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, errPathOutsideBase):
		return http.StatusForbidden, "PATH_FORBIDDEN"
	case errors.Is(err, errOriginForbidden):
		return http.StatusForbidden, "ORIGIN_FORBIDDEN"
	}
	code := xlledger.ErrorCode(err)
	switch code {
	case xlledger.CodeNoMatchingSheet, xlledger.CodeAmbiguousHeader, xlledger.CodeAmbiguousFooter:
		return http.StatusUnprocessableEntity, code
	case xlledger.CodeUnknownColumn, xlledger.CodeColumnNotFound, xlledger.CodeNoColumns, xlledger.CodeInvalidBounds:
		return http.StatusBadRequest, code
	case xlledger.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType, code
	case xlledger.CodeFileNotFound:
		return http.StatusNotFound, code
	default:
		return http.StatusInternalServerError, code
	}
}
