package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. EVAL_SERVER_PORT.
const EnvPrefix = "EVAL"

// Data source kinds.
const (
	SourceSheets = "sheets"
	SourceXLSX   = "xlsx"
)

// User roles.
const (
	RoleAdmin = "admin"
	RoleStore = "store"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Sheets   SheetsConfig   `yaml:"sheets" envconfig:"SHEETS"`
	Columns  ColumnsConfig  `yaml:"columns" envconfig:"COLUMNS"`
	Metrics  MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`

	// Regions maps a region name to its stores.
	Regions map[string][]string `yaml:"regions" ignored:"true"`
	// Users is the static login directory.
	Users []UserConfig `yaml:"users" ignored:"true"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	SessionTTL     time.Duration   `yaml:"session_ttl" envconfig:"SESSION_TTL"`
	CookieSecure   bool            `yaml:"cookie_secure" envconfig:"COOKIE_SECURE"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// SheetsConfig describes where evaluation tabs come from.
type SheetsConfig struct {
	Source string `yaml:"source" envconfig:"SOURCE"`
	// SpreadsheetID accepts a bare id or a full spreadsheet URL.
	SpreadsheetID   string        `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile string        `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
	CredentialsJSON string        `yaml:"-" envconfig:"CREDENTIALS_JSON"`
	File            string        `yaml:"file" envconfig:"FILE"`
	CacheTTL        time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	TabReadRate     float64       `yaml:"tab_read_rate" envconfig:"TAB_READ_RATE"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT"`
	Timezone        string        `yaml:"timezone" envconfig:"TIMEZONE"`
}

// ColumnsConfig holds the column letter of each evaluation field.
type ColumnsConfig struct {
	Date         string `yaml:"date" envconfig:"DATE"`
	Sector       string `yaml:"sector" envconfig:"SECTOR"`
	Collaborator string `yaml:"collaborator" envconfig:"COLLABORATOR"`
	Speed        string `yaml:"speed" envconfig:"SPEED"`
	Service      string `yaml:"service" envconfig:"SERVICE"`
	Quality      string `yaml:"quality" envconfig:"QUALITY"`
	Helpfulness  string `yaml:"helpfulness" envconfig:"HELPFULNESS"`
	Evaluator    string `yaml:"evaluator" envconfig:"EVALUATOR"`
}

// MetricsConfig contains telemetry configuration
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" envconfig:"ENABLED"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER"`
	ServiceName   string `yaml:"service_name" envconfig:"SERVICE_NAME"`
}

// UserConfig is one entry of the login directory.
type UserConfig struct {
	Username     string `yaml:"username"`
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
	Store        string `yaml:"store"`
}

// Load builds the configuration from defaults, the YAML file at path (or
// the first one found in the usual locations) and EVAL_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG_FILE")
	}
	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. A regions section replaces
// the default table instead of merging into it.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	var regions struct {
		Regions map[string][]string `yaml:"regions"`
	}
	if err := yaml.Unmarshal(data, &regions); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	if regions.Regions != nil {
		cfg.Regions = regions.Regions
	}
	return nil
}

// Validate checks a configuration assembled without Load.
func (c *Config) Validate() error {
	return c.validate()
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limit rps must be positive")
	}

	switch c.Sheets.Source {
	case SourceSheets:
		if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
			return fmt.Errorf("sheets.spreadsheet_id is required for the %s source", SourceSheets)
		}
	case SourceXLSX:
		if strings.TrimSpace(c.Sheets.File) == "" {
			return fmt.Errorf("sheets.file is required for the %s source", SourceXLSX)
		}
	default:
		return fmt.Errorf("unknown data source %q", c.Sheets.Source)
	}
	if c.Sheets.CacheTTL <= 0 {
		return fmt.Errorf("sheets cache ttl must be positive")
	}
	if c.Sheets.TabReadRate <= 0 {
		return fmt.Errorf("sheets tab read rate must be positive")
	}
	if _, err := time.LoadLocation(c.Sheets.Timezone); err != nil {
		return fmt.Errorf("invalid sheets timezone %q: %w", c.Sheets.Timezone, err)
	}

	if err := c.validateUsers(); err != nil {
		return err
	}

	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/evalreport.log"
	}

	return nil
}

func (c *Config) validateUsers() error {
	seen := make(map[string]bool, len(c.Users))
	for i, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("users[%d]: username is required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
		if u.PasswordHash == "" {
			return fmt.Errorf("user %q: password_hash is required", u.Username)
		}
		switch u.Role {
		case RoleAdmin:
		case RoleStore:
			if u.Store == "" {
				return fmt.Errorf("user %q: store role requires a store", u.Username)
			}
		default:
			return fmt.Errorf("user %q: unknown role %q", u.Username, u.Role)
		}
	}
	return nil
}

// Location returns the time zone used to read spreadsheet timestamps.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sheets.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			SessionTTL:     12 * time.Hour,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/evalreport.log",
		},
		Sheets: SheetsConfig{
			Source:       SourceSheets,
			CacheTTL:     5 * time.Minute,
			TabReadRate:  float64(time.Second / DefaultTabReadInterval),
			FetchTimeout: 90 * time.Second,
			Timezone:     "UTC",
		},
		Columns: ColumnsConfig{
			Date:         "A",
			Sector:       "B",
			Collaborator: "C",
			Speed:        "D",
			Service:      "F",
			Quality:      "H",
			Helpfulness:  "J",
			Evaluator:    "M",
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			TraceExporter: "none",
			ServiceName:   AppName,
		},
		Regions: map[string][]string{
			"RJ": {"Carioca", "Santa Cruz", "Mesquita", "Nilópolis", "Madureira", "Bonsucesso"},
			"SP": {"Taboão", "São Bernardo", "Santo André", "Mauá", "MDC São Mateus", "CDM São Mateus"},
		},
	}
}
