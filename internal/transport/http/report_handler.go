package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"evalreport/internal/auth"
	apierrors "evalreport/internal/errors"
	"evalreport/internal/evaluation"
	"evalreport/internal/exporter"
	"evalreport/internal/middleware"
	"evalreport/internal/services"
)

// ReportService is the report layer used by ReportHandler.
type ReportService interface {
	Report(ctx context.Context, req services.ReportRequest) (*services.Report, error)
	Options(ctx context.Context, access evaluation.Access) (evaluation.FilterOptions, error)
	ExportWorkbook(ctx context.Context, req services.ReportRequest, w io.Writer) error
	ExportEvaluatorRanking(ctx context.Context, req services.ReportRequest, w io.Writer) error
	ExportHourlyVolume(ctx context.Context, req services.ReportRequest, w io.Writer) error
	ExportStoreSummary(ctx context.Context, req services.ReportRequest, w io.Writer) error
	Refresh(ctx context.Context) (services.LoadState, error)
	ClearCache(ctx context.Context)
	Check(ctx context.Context) (*services.CheckResult, error)
	Status() services.Status
}

// ReportHandler serves the dashboard data and downloads.
type ReportHandler struct {
	service      ReportService
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportService, validator *middleware.Validator, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ReportHandler {
	return &ReportHandler{
		service:      service,
		validator:    validator,
		logger:       logger.With(slog.String("component", "report_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the data routes. adminOnly guards the cache and upstream
// operations.
func (h *ReportHandler) Routes(adminOnly func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/options", h.GetOptions)
	r.Get("/report", h.GetReport)
	r.Get("/status", h.GetStatus)

	r.Route("/export", func(r chi.Router) {
		r.Get("/workbook", h.ExportWorkbook)
		r.Get("/evaluators.csv", h.ExportEvaluatorRanking)
		r.Get("/hourly.csv", h.ExportHourlyVolume)
		r.Get("/stores.csv", h.ExportStoreSummary)
	})

	r.Group(func(r chi.Router) {
		r.Use(adminOnly)
		r.Post("/refresh", h.Refresh)
		r.Delete("/cache", h.ClearCache)
		r.Get("/check", h.Check)
	})

	return r
}

// GetReport handles GET /api/data/report
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	req, ok := h.reportRequest(w, r)
	if !ok {
		return
	}

	report, err := h.service.Report(r.Context(), req)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	if report.Load.Stale {
		w.Header().Set("Warning", `110 - "`+report.Load.Message+`"`)
	}
	render.JSON(w, r, report)
}

// GetOptions handles GET /api/data/options
func (h *ReportHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return
	}

	opts, err := h.service.Options(r.Context(), session)
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, opts)
}

// GetStatus handles GET /api/data/status
func (h *ReportHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, h.service.Status())
}

// ExportWorkbook handles GET /api/data/export/workbook
func (h *ReportHandler) ExportWorkbook(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, exporter.WorkbookFileName, exporter.WorkbookContentType, h.service.ExportWorkbook)
}

// ExportEvaluatorRanking handles GET /api/data/export/evaluators.csv
func (h *ReportHandler) ExportEvaluatorRanking(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, exporter.EvaluatorRankingName, exporter.CSVContentType, h.service.ExportEvaluatorRanking)
}

// ExportHourlyVolume handles GET /api/data/export/hourly.csv
func (h *ReportHandler) ExportHourlyVolume(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, exporter.HourlyVolumeName, exporter.CSVContentType, h.service.ExportHourlyVolume)
}

// ExportStoreSummary handles GET /api/data/export/stores.csv
func (h *ReportHandler) ExportStoreSummary(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, exporter.StoreSummaryName, exporter.CSVContentType, h.service.ExportStoreSummary)
}

type exportFunc func(ctx context.Context, req services.ReportRequest, w io.Writer) error

// export renders into memory first so a failure can still be reported as a
// problem response.
func (h *ReportHandler) export(w http.ResponseWriter, r *http.Request, filename, contentType string, fn exportFunc) {
	req, ok := h.reportRequest(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := fn(r.Context(), req, &buf); err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "export served",
		slog.String("file", filename),
		slog.Int("bytes", buf.Len()))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Refresh handles POST /api/data/refresh
func (h *ReportHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	state, err := h.service.Refresh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, state)
}

// ClearCache handles DELETE /api/data/cache
func (h *ReportHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.service.ClearCache(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Check handles GET /api/data/check
func (h *ReportHandler) Check(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Check(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, mapServiceError(err))
		return
	}
	render.JSON(w, r, result)
}

// reportRequest parses and validates the filter of r. On failure the
// problem response is already written.
func (h *ReportHandler) reportRequest(w http.ResponseWriter, r *http.Request) (services.ReportRequest, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnauthorized)
		return services.ReportRequest{}, false
	}

	q, err := parseReportQuery(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidFilterWithError(err))
		return services.ReportRequest{}, false
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return services.ReportRequest{}, false
	}

	return services.ReportRequest{
		Access:       session,
		Criteria:     q.Criteria(),
		PreviewLimit: q.Preview,
	}, true
}

// mapServiceError turns service sentinels into API errors. Transport and
// app errors pass through to the error handler unchanged.
func mapServiceError(err error) error {
	if _, ok := apierrors.AsTransport(err); ok {
		return err
	}
	switch {
	case errors.Is(err, evaluation.ErrInvalidCriteria):
		return apierrors.InvalidFilterWithError(err)
	case errors.Is(err, services.ErrNoAccess):
		return apierrors.ErrUnauthorized
	case errors.Is(err, services.ErrNoDataset):
		return apierrors.ErrNoDataset
	}
	return err
}
