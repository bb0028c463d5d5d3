package config

import "time"

// Application constants
const (
	AppName    = "evalreport"
	AppVersion = "1.0.0"

	// Session cookie carrying the login token
	SessionCookieName = "eval_session"

	// Minimum bcrypt cost accepted for generated hashes
	MinPasswordCost = 10

	// Preview rows returned with a report
	DefaultPreviewRows = 200

	// Upstream pacing between worksheet reads
	DefaultTabReadInterval = 500 * time.Millisecond
)
