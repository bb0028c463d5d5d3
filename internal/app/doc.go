// Package app wires the evaluation report server together and manages its
// lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, the YAML file and EVAL_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Build the tab source (Google Sheets or a local workbook) and its cache
//	4. Create the report, auth and health services
//	5. Set up the chi router and middleware
//	6. Create the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// Run handles SIGINT and SIGTERM. Stop ends the warm-up and session purge
// loops, drains in-flight requests within the shutdown timeout and flushes
// telemetry.
//
// Initialization errors are returned to the caller. The package never
// calls os.Exit.
package app
