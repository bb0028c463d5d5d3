package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Assembler builds a Dataset from raw tabs.
type Assembler struct {
	columns ColumnMap
	regions *RegionTable
	logger  *slog.Logger
	loc     *time.Location
	now     func() time.Time

	onMappingFailure func(ctx context.Context, tab string)
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock overrides the clock used for empty date bounds and LoadedAt.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// WithLocation sets the time zone used to interpret spreadsheet timestamps.
func WithLocation(loc *time.Location) AssemblerOption {
	return func(a *Assembler) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithMappingFailureHook registers a callback for every skipped tab.
func WithMappingFailureHook(fn func(ctx context.Context, tab string)) AssemblerOption {
	return func(a *Assembler) { a.onMappingFailure = fn }
}

// NewAssembler creates an assembler for the given column map and region table.
func NewAssembler(columns ColumnMap, regions *RegionTable, logger *slog.Logger, opts ...AssemblerOption) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if regions == nil {
		regions = DefaultRegions()
	}
	a := &Assembler{
		columns: columns,
		regions: regions,
		logger:  logger.With(slog.String("component", "assembler")),
		loc:     time.UTC,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Regions returns the region table used for enrichment.
func (a *Assembler) Regions() *RegionTable {
	return a.regions
}

// Assemble concatenates every tab, in tab order then row order. Tabs that
// fail column mapping are skipped and reported in Dataset.Warnings.
func (a *Assembler) Assemble(ctx context.Context, tabs []RawTab) *Dataset {
	ds := &Dataset{LoadedAt: a.now()}

	for _, tab := range tabs {
		cols, err := ResolveColumns(tab, a.columns)
		if err != nil {
			a.skipTab(ctx, ds, tab, err)
			continue
		}

		records := NormalizeTab(tab, cols, a.loc)
		Enrich(records, tab.Name, a.regions)
		ds.Records = append(ds.Records, records...)
		ds.Tabs++

		a.logger.DebugContext(ctx, "tab loaded",
			slog.String("tab", tab.Name),
			slog.Int("rows", len(tab.Rows)),
			slog.Int("records", len(records)))
	}

	ds.DateMin, ds.DateMax = a.dateBounds(ds.Records)

	a.logger.InfoContext(ctx, "dataset assembled",
		slog.Int("tabs", ds.Tabs),
		slog.Int("skipped_tabs", len(ds.Warnings)),
		slog.Int("records", len(ds.Records)),
		slog.String("date_min", ds.DateMin.Format(DayLayout)),
		slog.String("date_max", ds.DateMax.Format(DayLayout)))

	return ds
}

func (a *Assembler) skipTab(ctx context.Context, ds *Dataset, tab RawTab, err error) {
	attrs := []any{slog.String("tab", tab.Name), slog.String("error", err.Error())}
	var mapErr *ColumnMappingError
	if errors.As(err, &mapErr) {
		attrs = append(attrs, slog.Int("header_width", mapErr.Width), slog.String("column", mapErr.Letter))
	}
	a.logger.WarnContext(ctx, "tab skipped: column mapping failed", attrs...)

	ds.Warnings = append(ds.Warnings, TabWarning{Tab: tab.Name, Message: err.Error()})
	if a.onMappingFailure != nil {
		a.onMappingFailure(ctx, tab.Name)
	}
}

// dateBounds returns the first and last calendar day with a record. With no
// dated records both bounds are today.
func (a *Assembler) dateBounds(records []Record) (time.Time, time.Time) {
	var lo, hi *time.Time
	for i := range records {
		d := records[i].Day
		if d == nil {
			continue
		}
		if lo == nil || d.Before(*lo) {
			lo = d
		}
		if hi == nil || d.After(*hi) {
			hi = d
		}
	}
	if lo == nil {
		now := a.now().In(a.loc)
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.loc)
		return today, today
	}
	return *lo, *hi
}
