// Package config provides centralized configuration management for the
// evaluation reporting service.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern EVAL_* for namespacing:
//
//	EVAL_SERVER_PORT=8080
//	EVAL_SHEETS_SPREADSHEET_ID=https://docs.google.com/spreadsheets/d/<id>/edit
//	EVAL_SHEETS_CREDENTIALS_FILE=service_account.json
//	EVAL_SHEETS_CACHE_TTL=5m
//	EVAL_LOGGING_LEVEL=debug
//
// The YAML file is the only place for the login directory and the region
// table, since both are lists:
//
//	users:
//	  - username: admin
//	    name: Administrator
//	    password_hash: $2a$10$...
//	    role: admin
//	  - username: carioca
//	    password_hash: $2a$10$...
//	    role: store
//	    store: Carioca
//	regions:
//	  RJ: [Carioca, Santa Cruz]
//	  SP: [Taboão, Mauá]
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
