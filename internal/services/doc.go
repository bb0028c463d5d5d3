// Package services holds the report layer between the HTTP handlers and
// the evaluation package.
//
// ReportService loads the evaluation dataset through the tab cache,
// rebuilding it only when the cache hands back a new snapshot, and derives
// every dashboard view and export from it. Requests are always scoped to
// the caller's session before filters apply, so a store account never sees
// another store's rows.
//
// When a reload fails on the transport and a dataset was loaded before,
// the previous dataset keeps being served and the response carries a stale
// LoadState with a user-facing message.
//
// HealthService answers liveness and readiness probes from the report
// status.
package services
