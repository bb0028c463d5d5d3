package sheets

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"evalreport/internal/evaluation"
)

// FileSource reads the worksheets of a local .xlsx workbook. The
// spreadsheet id passed to FetchTabs is the file path.
type FileSource struct {
	logger *slog.Logger
}

// NewFileSource creates a workbook tab source
func NewFileSource(logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{logger: logger.With(slog.String("component", "sheets"))}
}

// FetchTabs opens the workbook at path and returns its non-empty sheets.
func (s *FileSource) FetchTabs(ctx context.Context, path string) ([]evaluation.RawTab, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, classifyFile(err, path)
	}
	defer f.Close()

	tabs, err := readWorkbook(ctx, f)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "workbook read",
		slog.String("file", path),
		slog.Int("tabs", len(tabs)))
	return tabs, nil
}

func readWorkbook(ctx context.Context, f *excelize.File) ([]evaluation.RawTab, error) {
	var tabs []evaluation.RawTab
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		if len(rows) == 0 {
			continue
		}
		tabs = append(tabs, evaluation.RawTab{Name: name, Rows: rows})
	}
	return tabs, nil
}
