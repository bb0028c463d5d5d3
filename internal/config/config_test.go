package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with spreadsheet from env",
			env:  map[string]string{"EVAL_SHEETS_SPREADSHEET_ID": "abc123"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, SourceSheets, cfg.Sheets.Source)
				assert.Equal(t, "abc123", cfg.Sheets.SpreadsheetID)
				assert.Equal(t, 5*time.Minute, cfg.Sheets.CacheTTL)
				assert.Equal(t, 2.0, cfg.Sheets.TabReadRate)
				assert.Equal(t, "M", cfg.Columns.Evaluator)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Contains(t, cfg.Regions, "RJ")
				assert.Empty(t, cfg.Users)
			},
		},
		{
			name: "file values",
			file: `
server:
  port: 9090
sheets:
  spreadsheet_id: from-file
  cache_ttl: 10m
  timezone: America/Sao_Paulo
regions:
  MG: [Savassi]
users:
  - username: admin
    name: Admin
    password_hash: $2a$10$abcdefghijklmnopqrstuv
    role: admin
  - username: carioca
    password_hash: $2a$10$abcdefghijklmnopqrstuv
    role: store
    store: Carioca
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "from-file", cfg.Sheets.SpreadsheetID)
				assert.Equal(t, 10*time.Minute, cfg.Sheets.CacheTTL)
				assert.Equal(t, map[string][]string{"MG": {"Savassi"}}, cfg.Regions)
				require.Len(t, cfg.Users, 2)
				assert.Equal(t, RoleStore, cfg.Users[1].Role)
				assert.Equal(t, "Carioca", cfg.Users[1].Store)
				assert.Equal(t, "America/Sao_Paulo", cfg.Location().String())
			},
		},
		{
			name: "env overrides file",
			env:  map[string]string{"EVAL_SERVER_PORT": "7070", "EVAL_SHEETS_CACHE_TTL": "1m"},
			file: "sheets:\n  spreadsheet_id: from-file\nserver:\n  port: 9090\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, time.Minute, cfg.Sheets.CacheTTL)
				assert.Equal(t, "from-file", cfg.Sheets.SpreadsheetID)
			},
		},
		{
			name: "xlsx source",
			env:  map[string]string{"EVAL_SHEETS_SOURCE": "xlsx", "EVAL_SHEETS_FILE": "avaliacoes.xlsx"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, SourceXLSX, cfg.Sheets.Source)
				assert.Equal(t, "avaliacoes.xlsx", cfg.Sheets.File)
			},
		},
		{
			name:    "missing spreadsheet id",
			wantErr: true,
		},
		{
			name:    "invalid port",
			env:     map[string]string{"EVAL_SHEETS_SPREADSHEET_ID": "abc", "EVAL_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "malformed env value",
			env:     map[string]string{"EVAL_SHEETS_SPREADSHEET_ID": "abc", "EVAL_SERVER_PORT": "eighty"},
			wantErr: true,
		},
		{
			name:    "store user without store",
			file:    "sheets:\n  spreadsheet_id: x\nusers:\n  - username: u\n    password_hash: h\n    role: store\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EVAL_CONFIG_FILE", "")
			t.Setenv("EVAL_SHEETS_SPREADSHEET_ID", "")
			os.Unsetenv("EVAL_SHEETS_SPREADSHEET_ID")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "absent.yaml")
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			} else {
				require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
			}

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestValidateUsers(t *testing.T) {
	tests := []struct {
		name    string
		users   []UserConfig
		wantErr string
	}{
		{name: "none"},
		{
			name:  "admin and store",
			users: []UserConfig{{Username: "a", PasswordHash: "h", Role: RoleAdmin}, {Username: "b", PasswordHash: "h", Role: RoleStore, Store: "Mauá"}},
		},
		{
			name:    "duplicate",
			users:   []UserConfig{{Username: "a", PasswordHash: "h", Role: RoleAdmin}, {Username: "a", PasswordHash: "h", Role: RoleAdmin}},
			wantErr: "duplicate",
		},
		{
			name:    "unknown role",
			users:   []UserConfig{{Username: "a", PasswordHash: "h", Role: "owner"}},
			wantErr: "unknown role",
		},
		{
			name:    "missing hash",
			users:   []UserConfig{{Username: "a", Role: RoleAdmin}},
			wantErr: "password_hash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Sheets.SpreadsheetID = "abc"
			cfg.Users = tt.users

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, SourceSheets, cfg.Sheets.Source)
	assert.Equal(t, "A", cfg.Columns.Date)
	assert.Equal(t, "J", cfg.Columns.Helpfulness)
	assert.Equal(t, 12*time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Len(t, cfg.Regions["SP"], 6)

	// a spreadsheet is the only thing the defaults lack
	assert.Error(t, cfg.Validate())
	cfg.Sheets.SpreadsheetID = "abc"
	assert.NoError(t, cfg.Validate())
}
