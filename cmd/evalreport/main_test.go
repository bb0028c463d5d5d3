package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Carioca"))
	header := []interface{}{
		"Data", "Setor", "Colaborador", "Velocidade", "", "Atendimento", "",
		"Qualidade", "", "Ajuda", "", "", "Avaliador",
	}
	require.NoError(t, f.SetSheetRow("Carioca", "A1", &header))
	row := []interface{}{"15/03/2024 10:00", "Caixa", "Ana", 5, "", 5, "", 5, "", 5, "", "", "Paula"}
	require.NoError(t, f.SetSheetRow("Carioca", "A2", &row))
	workbook := filepath.Join(dir, "avaliacoes.xlsx")
	require.NoError(t, f.SaveAs(workbook))

	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("sheets:\n  source: xlsx\n  file: %q\nmetrics:\n  enabled: false\n", workbook)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHashPasswordFromArgument(t *testing.T) {
	out, err := execute(t, "", "hash-password", "hunter22")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter22")))
}

func TestHashPasswordFromStdin(t *testing.T) {
	out, err := execute(t, "from-stdin\n", "hash-password")
	require.NoError(t, err)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("from-stdin")))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := execute(t, "\n", "hash-password")
	assert.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	out, err := execute(t, "", "--config", writeConfig(t), "check")
	require.NoError(t, err)
	assert.Contains(t, out, `"Carioca"`)
	assert.Contains(t, out, `"Avaliador"`)
}

func TestExportCommand(t *testing.T) {
	cfg := writeConfig(t)
	target := filepath.Join(t.TempDir(), "ranking.csv")

	out, err := execute(t, "", "--config", cfg, "export", "--format", "evaluators", "--out", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Evaluator")
	assert.Contains(t, string(data), "Paula")
}

func TestExportStoreSummary(t *testing.T) {
	cfg := writeConfig(t)
	target := filepath.Join(t.TempDir(), "stores.csv")

	_, err := execute(t, "", "--config", cfg, "export", "-f", "stores", "-o", target)
	require.NoError(t, err)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "RJ,Carioca,5.00,5.00,5.00,5.00,1,5.00")
}

func TestExportCommandRejectsBadInput(t *testing.T) {
	cfg := writeConfig(t)
	target := filepath.Join(t.TempDir(), "out")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown format", []string{"--format", "pdf"}, "unknown export format"},
		{"bad date", []string{"--from", "15/03/2024"}, "--from must be a date"},
		{"to without from", []string{"--to", "2024-03-15"}, "date_to requires date_from"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", cfg, "export", "--out", target}, tt.args...)
			_, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.NoFileExists(t, target)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EVALREPORT_TEST_VALUE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("EVALREPORT_TEST_VALUE") })

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv("EVALREPORT_TEST_VALUE"))
}
