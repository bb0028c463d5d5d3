// Package http exposes the evaluation reports over HTTP.
//
// Handlers stay thin: they parse and validate the request, call the report
// or auth layer and render the result with chi/render. Every failure goes
// through errors.ErrorHandler so clients always receive RFC 7807 problem
// details carrying the request's trace_id.
//
// Routes:
//
//	POST   /api/auth/login                   open a session (cookie and bearer token)
//	POST   /api/auth/logout                  revoke the current session
//	GET    /api/auth/me                      current session
//	GET    /api/data/options                 filter choices for the session
//	GET    /api/data/report                  every dashboard view for a filter
//	GET    /api/data/status                  dataset and cache status
//	GET    /api/data/export/workbook         per-store .xlsx
//	GET    /api/data/export/evaluators.csv   evaluator ranking
//	GET    /api/data/export/hourly.csv       hourly volume by store
//	POST   /api/data/refresh                 admin: drop cached tabs and reload
//	DELETE /api/data/cache                   admin: clear the tab cache
//	GET    /api/data/check                   admin: list upstream worksheets
//	POST   /api/client-log                   browser log forwarding
//	GET    /api/health, /api/health/ready, /api/health/live, /api/version
//	GET    /metrics                          Prometheus exposition
package http
