package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"evalreport/internal/config"
	apperrors "evalreport/internal/errors"
	"evalreport/internal/evaluation"
)

// GoogleSource reads worksheets through the Sheets v4 API with a service
// account. Value reads are paced by a token bucket.
type GoogleSource struct {
	service *gsheets.Service
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGoogleSource builds the Sheets client from the configured service
// account credentials (inline JSON wins over the file).
func NewGoogleSource(ctx context.Context, cfg config.SheetsConfig, logger *slog.Logger) (*GoogleSource, error) {
	credentialsJSON := []byte(cfg.CredentialsJSON)
	if len(credentialsJSON) == 0 {
		if cfg.CredentialsFile == "" {
			return nil, apperrors.NewConfigError("sheets credentials are not configured", nil)
		}
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, apperrors.NewConfigError("failed to read sheets credentials file", err)
		}
		credentialsJSON = data
	}

	service, err := gsheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gsheets.SpreadsheetsReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return NewGoogleSourceWithService(service, cfg.TabReadRate, logger), nil
}

// NewGoogleSourceWithService wraps an existing client. readsPerSecond <= 0
// disables pacing.
func NewGoogleSourceWithService(service *gsheets.Service, readsPerSecond float64, logger *slog.Logger) *GoogleSource {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if readsPerSecond > 0 {
		limit = rate.Limit(readsPerSecond)
	}
	return &GoogleSource{
		service: service,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With(slog.String("component", "sheets")),
	}
}

// FetchTabs lists the worksheets and reads each one in full. Empty
// worksheets are left out.
func (s *GoogleSource) FetchTabs(ctx context.Context, spreadsheetID string) ([]evaluation.RawTab, error) {
	id := NormalizeSpreadsheetID(spreadsheetID)
	start := time.Now()

	meta, err := s.service.Spreadsheets.Get(id).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err, id, "open")
	}

	tabs := make([]evaluation.RawTab, 0, len(meta.Sheets))
	for _, sheet := range meta.Sheets {
		if sheet.Properties == nil {
			continue
		}
		title := sheet.Properties.Title

		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		values, err := s.service.Spreadsheets.Values.Get(id, quoteSheetName(title)).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		if err != nil {
			return nil, classify(err, id, "read "+title)
		}
		if len(values.Values) == 0 {
			s.logger.DebugContext(ctx, "skipping empty worksheet", slog.String("tab", title))
			continue
		}

		tabs = append(tabs, evaluation.RawTab{Name: title, Rows: toStrings(values.Values)})
	}

	s.logger.InfoContext(ctx, "spreadsheet fetched",
		slog.String("spreadsheet_id", id),
		slog.Int("worksheets", len(meta.Sheets)),
		slog.Int("tabs", len(tabs)),
		slog.Duration("duration", time.Since(start)))

	return tabs, nil
}

// quoteSheetName turns a title into an A1 range covering the whole sheet.
func quoteSheetName(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func toStrings(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	return rows
}
