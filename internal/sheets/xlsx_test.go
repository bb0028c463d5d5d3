package sheets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "evalreport/internal/errors"
)

func buildWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { f.Close() })

	require.NoError(t, f.SetSheetName("Sheet1", "Carioca"))
	require.NoError(t, f.SetSheetRow("Carioca", "A1", &[]interface{}{"Data", "Setor", "Colaborador"}))
	require.NoError(t, f.SetSheetRow("Carioca", "A2", &[]interface{}{"05/03/2024 10:15:00", "Caixa", "Ana"}))

	_, err := f.NewSheet("Vazia")
	require.NoError(t, err)

	_, err = f.NewSheet("Mauá")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Mauá", "A1", &[]interface{}{"Data", "Setor", "Colaborador"}))
	return f
}

func TestFileSourceFetchTabs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avaliacoes.xlsx")
	require.NoError(t, buildWorkbook(t).SaveAs(path))

	tabs, err := NewFileSource(nil).FetchTabs(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Carioca", "Mauá"}, TabNames(tabs))
	assert.Equal(t, []string{"05/03/2024 10:15:00", "Caixa", "Ana"}, tabs[0].Rows[1])
	assert.Equal(t, []string{"Data", "Setor", "Colaborador"}, HeaderOf(tabs))
}

func TestFileSourceMissingFile(t *testing.T) {
	_, err := NewFileSource(nil).FetchTabs(context.Background(), filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)

	te, ok := apperrors.AsTransport(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.TransportNotFound, te.Kind)
}

func TestFileSourceCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "avaliacoes.xlsx")
	require.NoError(t, buildWorkbook(t).SaveAs(path))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource(nil).FetchTabs(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
}
