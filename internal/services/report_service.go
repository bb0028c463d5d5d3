package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "evalreport/internal/errors"
	"evalreport/internal/evaluation"
	"evalreport/internal/exporter"
	"evalreport/internal/infrastructure"
	"evalreport/internal/sheetcache"
	"evalreport/internal/sheets"
)

// Load outcomes, also used as the outcome metric label.
const (
	OutcomeFresh  = "fresh"
	OutcomeCached = "cached"
	OutcomeStale  = "stale"
	OutcomeError  = "error"
)

// TabFetcher is the cached tab source the service reads through.
type TabFetcher interface {
	Fetch(ctx context.Context, spreadsheetID string) (*sheetcache.Snapshot, bool, error)
	Invalidate(spreadsheetID string)
	Clear()
	Stats() sheetcache.Stats
}

// LoadState describes how the dataset behind a response was obtained.
type LoadState struct {
	Outcome   string    `json:"outcome"`
	Stale     bool      `json:"stale"`
	Message   string    `json:"message,omitempty"`
	LoadedAt  time.Time `json:"loaded_at"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ReportRequest selects the records a report covers.
type ReportRequest struct {
	Access       evaluation.Access
	Criteria     evaluation.FilterCriteria
	PreviewLimit int
}

// Report is everything the dashboard shows for one filter selection.
type Report struct {
	Overview         evaluation.SummaryRow     `json:"overview"`
	ByPerson         []evaluation.SummaryRow   `json:"by_person"`
	BySector         []evaluation.SummaryRow   `json:"by_sector"`
	ByStore          []evaluation.SummaryRow   `json:"by_store"`
	ByRegion         []evaluation.SummaryRow   `json:"by_region"`
	EvaluatorRanking []evaluation.CountRow     `json:"evaluator_ranking"`
	EvaluatorStore   evaluation.PivotTable     `json:"evaluator_store"`
	HourlyVolume     []evaluation.CountRow     `json:"hourly_volume"`
	HourStore        evaluation.PivotTable     `json:"hour_store"`
	Preview          []evaluation.Record       `json:"preview"`
	Rows             int                       `json:"rows"`
	Warnings         []evaluation.TabWarning   `json:"warnings,omitempty"`
	Criteria         evaluation.FilterCriteria `json:"criteria"`
	Load             LoadState                 `json:"load"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// Status summarises the loaded dataset and the cache.
type Status struct {
	SpreadsheetID string                  `json:"spreadsheet_id"`
	Loaded        bool                    `json:"loaded"`
	Records       int                     `json:"records"`
	Tabs          int                     `json:"tabs"`
	DateMin       time.Time               `json:"date_min"`
	DateMax       time.Time               `json:"date_max"`
	Warnings      []evaluation.TabWarning `json:"warnings,omitempty"`
	Load          LoadState               `json:"load"`
	LastError     string                  `json:"last_error,omitempty"`
	Cache         sheetcache.Stats        `json:"cache"`
}

// CheckResult is what a connection check found upstream.
type CheckResult struct {
	SpreadsheetID string   `json:"spreadsheet_id"`
	Tabs          []string `json:"tabs"`
	Header        []string `json:"header"`
}

// ReportService loads the evaluation dataset through the tab cache and
// answers report, export and filter-option requests from it. A dataset is
// rebuilt only when the cache hands back a different snapshot. When a load
// fails on the transport, the last good dataset keeps being served.
type ReportService struct {
	fetcher       TabFetcher
	assembler     *evaluation.Assembler
	spreadsheetID string
	fetchTimeout  time.Duration
	previewRows   int
	metrics       *infrastructure.ReportMetrics
	tracer        trace.Tracer
	logger        *slog.Logger
	now           func() time.Time

	buildMu sync.Mutex

	mu        sync.RWMutex
	dataset   *evaluation.Dataset
	state     LoadState
	lastError error
}

// ReportServiceConfig carries the ReportService settings.
type ReportServiceConfig struct {
	SpreadsheetID string
	FetchTimeout  time.Duration
	PreviewRows   int
}

// ReportServiceOption configures a ReportService
type ReportServiceOption func(*ReportService)

// WithMetrics records load metrics on m.
func WithMetrics(m *infrastructure.ReportMetrics) ReportServiceOption {
	return func(s *ReportService) { s.metrics = m }
}

// WithServiceClock replaces time.Now.
func WithServiceClock(now func() time.Time) ReportServiceOption {
	return func(s *ReportService) { s.now = now }
}

// NewReportService creates a report service
func NewReportService(fetcher TabFetcher, assembler *evaluation.Assembler, cfg ReportServiceConfig, logger *slog.Logger, opts ...ReportServiceOption) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 200
	}
	s := &ReportService{
		fetcher:       fetcher,
		assembler:     assembler,
		spreadsheetID: cfg.SpreadsheetID,
		fetchTimeout:  cfg.FetchTimeout,
		previewRows:   cfg.PreviewRows,
		tracer:        otel.Tracer(infrastructure.MeterName),
		logger:        logger.With(slog.String("component", "report_service")),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dataset returns the current dataset, loading it through the cache.
func (s *ReportService) Dataset(ctx context.Context) (*evaluation.Dataset, LoadState, error) {
	ctx, span := s.tracer.Start(ctx, "report.load",
		trace.WithAttributes(attribute.String("spreadsheet_id", s.spreadsheetID)))
	defer span.End()

	start := s.now()
	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	snap, hit, err := s.fetcher.Fetch(fetchCtx, s.spreadsheetID)
	if err != nil {
		// the fetch timeout expired while the caller is still waiting
		if _, ok := apperrors.AsTransport(err); !ok && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = apperrors.NewTransportError(apperrors.TransportUnavailable, s.spreadsheetID, "fetch", err)
		}
		infrastructure.RecordError(ctx, err)
		return s.fallback(ctx, err, start)
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.mu.RLock()
	current, state := s.dataset, s.state
	s.mu.RUnlock()

	if current != nil && state.FetchedAt.Equal(snap.FetchedAt) {
		state.Outcome = OutcomeCached
		state.Stale = false
		state.Message = ""
		infrastructure.RecordReportLoad(ctx, s.metrics, OutcomeCached, s.now().Sub(start), len(current.Records))
		return current, state, nil
	}

	ds := s.assembler.Assemble(ctx, snap.Tabs)
	for _, w := range ds.Warnings {
		infrastructure.AddSpanEvent(ctx, "tab.skipped", map[string]interface{}{
			"tab":    w.Tab,
			"reason": w.Message,
		})
	}
	state = LoadState{Outcome: OutcomeFresh, LoadedAt: ds.LoadedAt, FetchedAt: snap.FetchedAt}

	s.mu.Lock()
	s.dataset = ds
	s.state = state
	s.lastError = nil
	s.mu.Unlock()

	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"cache_hit": hit,
		"records":   len(ds.Records),
		"tabs":      ds.Tabs,
		"warnings":  len(ds.Warnings),
	})
	infrastructure.RecordReportLoad(ctx, s.metrics, OutcomeFresh, s.now().Sub(start), len(ds.Records))
	s.logger.InfoContext(ctx, "dataset rebuilt",
		slog.Int("records", len(ds.Records)),
		slog.Int("tabs", ds.Tabs),
		slog.Int("skipped_tabs", len(ds.Warnings)),
		slog.Bool("cache_hit", hit))

	return ds, state, nil
}

// fallback serves the last good dataset after a transport failure.
func (s *ReportService) fallback(ctx context.Context, err error, start time.Time) (*evaluation.Dataset, LoadState, error) {
	s.mu.Lock()
	s.lastError = err
	current, state := s.dataset, s.state
	s.mu.Unlock()

	te, isTransport := apperrors.AsTransport(err)
	if current == nil || !isTransport {
		infrastructure.RecordReportLoad(ctx, s.metrics, OutcomeError, s.now().Sub(start), 0)
		s.logger.ErrorContext(ctx, "dataset load failed",
			slog.String("spreadsheet_id", s.spreadsheetID),
			slog.String("error", err.Error()))
		if current == nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %w", ErrNoDataset, err)
		}
		return nil, LoadState{Outcome: OutcomeError, Message: userMessage(err)}, err
	}

	state.Outcome = OutcomeStale
	state.Stale = true
	state.Message = te.UserMessage()
	infrastructure.RecordReportLoad(ctx, s.metrics, OutcomeStale, s.now().Sub(start), len(current.Records))
	s.logger.WarnContext(ctx, "serving previous dataset after load failure",
		slog.String("kind", string(te.Kind)),
		slog.Time("loaded_at", state.LoadedAt),
		slog.String("error", err.Error()))
	return current, state, nil
}

// Filtered returns the records the request may see after filtering.
func (s *ReportService) Filtered(ctx context.Context, req ReportRequest) ([]evaluation.Record, *evaluation.Dataset, LoadState, error) {
	if req.Access == nil {
		return nil, nil, LoadState{}, ErrNoAccess
	}
	if err := req.Criteria.Validate(); err != nil {
		return nil, nil, LoadState{}, err
	}

	ds, state, err := s.Dataset(ctx)
	if err != nil {
		return nil, nil, state, err
	}

	scoped := evaluation.ScopeToSession(ds.Records, req.Access)
	return evaluation.Apply(scoped, req.Criteria), ds, state, nil
}

// Report builds every dashboard view for the request.
func (s *ReportService) Report(ctx context.Context, req ReportRequest) (*Report, error) {
	records, ds, state, err := s.Filtered(ctx, req)
	if err != nil {
		return nil, err
	}

	limit := req.PreviewLimit
	if limit <= 0 || limit > s.previewRows {
		limit = s.previewRows
	}

	counts := evaluation.HourlyVolume(records)
	ranking := evaluation.EvaluatorRanking(records)

	return &Report{
		Overview:         evaluation.Overview(records),
		ByPerson:         evaluation.Summarize(records, evaluation.PersonGrouping),
		BySector:         evaluation.Summarize(records, evaluation.SectorGrouping),
		ByStore:          evaluation.Summarize(records, evaluation.StoreGrouping),
		ByRegion:         evaluation.Summarize(records, evaluation.RegionGrouping),
		EvaluatorRanking: ranking,
		EvaluatorStore:   evaluation.EvaluatorStorePivot(records),
		HourlyVolume:     counts,
		HourStore:        evaluation.HourStorePivot(records),
		Preview:          evaluation.Preview(records, limit),
		Rows:             len(records),
		Warnings:         ds.Warnings,
		Criteria:         req.Criteria,
		Load:             state,
		GeneratedAt:      s.now(),
	}, nil
}

// Options lists the filter choices available to access.
func (s *ReportService) Options(ctx context.Context, access evaluation.Access) (evaluation.FilterOptions, error) {
	if access == nil {
		return evaluation.FilterOptions{}, ErrNoAccess
	}
	ds, _, err := s.Dataset(ctx)
	if err != nil {
		return evaluation.FilterOptions{}, err
	}
	scoped := evaluation.ScopeToSession(ds.Records, access)
	return evaluation.Options(scoped, s.assembler.Regions(), ds.DateMin, ds.DateMax), nil
}

// ExportWorkbook writes the per-store workbook for the request.
func (s *ReportService) ExportWorkbook(ctx context.Context, req ReportRequest, w io.Writer) error {
	records, _, _, err := s.Filtered(ctx, req)
	if err != nil {
		return err
	}
	if err := exporter.WriteWorkbook(w, records); err != nil {
		return apperrors.NewExportError("failed to build workbook", err)
	}
	infrastructure.RecordExport(ctx, s.metrics, "xlsx")
	return nil
}

// ExportEvaluatorRanking writes the evaluator ranking CSV for the request.
func (s *ReportService) ExportEvaluatorRanking(ctx context.Context, req ReportRequest, w io.Writer) error {
	records, _, _, err := s.Filtered(ctx, req)
	if err != nil {
		return err
	}
	if err := exporter.WriteEvaluatorRankingCSV(w, records); err != nil {
		return apperrors.NewExportError("failed to write evaluator ranking", err)
	}
	infrastructure.RecordExport(ctx, s.metrics, "evaluator_csv")
	return nil
}

// ExportHourlyVolume writes the hourly volume CSV for the request.
func (s *ReportService) ExportHourlyVolume(ctx context.Context, req ReportRequest, w io.Writer) error {
	records, _, _, err := s.Filtered(ctx, req)
	if err != nil {
		return err
	}
	if err := exporter.WriteHourlyVolumeCSV(w, records); err != nil {
		return apperrors.NewExportError("failed to write hourly volume", err)
	}
	infrastructure.RecordExport(ctx, s.metrics, "hourly_csv")
	return nil
}

// ExportStoreSummary writes the per-store score means CSV for the request.
func (s *ReportService) ExportStoreSummary(ctx context.Context, req ReportRequest, w io.Writer) error {
	records, _, _, err := s.Filtered(ctx, req)
	if err != nil {
		return err
	}
	rows := evaluation.Summarize(records, evaluation.StoreGrouping)
	if err := exporter.WriteSummaryCSV(w, rows, evaluation.StoreGrouping); err != nil {
		return apperrors.NewExportError("failed to write store summary", err)
	}
	infrastructure.RecordExport(ctx, s.metrics, "store_csv")
	return nil
}

// Refresh drops the cached tabs and loads again.
func (s *ReportService) Refresh(ctx context.Context) (LoadState, error) {
	s.fetcher.Invalidate(s.spreadsheetID)
	s.logger.InfoContext(ctx, "manual refresh requested")
	_, state, err := s.Dataset(ctx)
	return state, err
}

// ClearCache empties the tab cache. The current dataset stays in service
// until the next load.
func (s *ReportService) ClearCache(ctx context.Context) {
	s.fetcher.Clear()
	s.logger.InfoContext(ctx, "tab cache cleared")
}

// Check fetches the spreadsheet bypassing the cached copy and reports the
// worksheets it found. It does not touch the served dataset.
func (s *ReportService) Check(ctx context.Context) (*CheckResult, error) {
	s.fetcher.Invalidate(s.spreadsheetID)
	snap, _, err := s.fetcher.Fetch(ctx, s.spreadsheetID)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		SpreadsheetID: s.spreadsheetID,
		Tabs:          sheets.TabNames(snap.Tabs),
		Header:        sheets.HeaderOf(snap.Tabs),
	}, nil
}

// Status reports the served dataset without loading.
func (s *ReportService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		SpreadsheetID: s.spreadsheetID,
		Load:          s.state,
		Cache:         s.fetcher.Stats(),
	}
	if s.lastError != nil {
		st.LastError = userMessage(s.lastError)
	}
	if s.dataset != nil {
		st.Loaded = true
		st.Records = len(s.dataset.Records)
		st.Tabs = s.dataset.Tabs
		st.DateMin = s.dataset.DateMin
		st.DateMax = s.dataset.DateMax
		st.Warnings = s.dataset.Warnings
	}
	return st
}

// userMessage is the text shown to users for a load failure.
func userMessage(err error) string {
	if te, ok := apperrors.AsTransport(err); ok {
		return te.UserMessage()
	}
	return err.Error()
}
