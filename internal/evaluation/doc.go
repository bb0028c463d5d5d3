// Package evaluation turns loosely structured store spreadsheets into a typed
// dataset of employee evaluations and computes every report view from it.
//
// # Architecture
//
// The package is organized as a pipeline of small components:
//
// 1. Schema mapping: resolves the fixed column letters (A, B, C, D, F, H, J, M) of a tab
// 2. Normalization: converts raw rows into Records (dates, scores, identity fields)
// 3. Enrichment: attaches store, region and date/hour dimensions
// 4. Assembly: concatenates all tabs into one Dataset with global date bounds
// 5. Filtering: applies FilterCriteria as an AND-composed predicate
// 6. Aggregation: grouped means/counts (Summarize, CountBy, Pivot)
//
// # Data Flow
//
//	RawTab → ResolveColumns → NormalizeTab → Enrich → Assemble → Apply → Summarize
//
// # Usage
//
//	assembler := evaluation.NewAssembler(evaluation.DefaultColumnMap(), evaluation.DefaultRegions(), logger)
//	ds := assembler.Assemble(ctx, tabs)
//	filtered := evaluation.Apply(ds.Records, criteria)
//	byStore := evaluation.Summarize(filtered, evaluation.StoreGrouping)
//
// # Error Handling
//
// A tab whose header is narrower than the column map fails with a
// ColumnMappingError; the assembler records it as a warning and keeps loading
// the remaining tabs. Unparsable dates and scores are coerced (nil date, 0.0
// score) and rows without a collaborator are dropped silently.
package evaluation
