package exporter

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalreport/internal/evaluation"
)

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	require.True(t, bytes.HasPrefix(data, utf8BOM), "missing BOM")
	rows, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name    string
		options WriteOptions
		want    string
	}{
		{
			name:    "headers and records",
			options: WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"1", "2"}}},
			want:    "a,b\n1,2\n",
		},
		{
			name:    "quoting",
			options: WriteOptions{Records: [][]string{{"São Bernardo, SP", `"x"`}}},
			want:    "\"São Bernardo, SP\",\"\"\"x\"\"\"\n",
		},
		{
			name:    "bom",
			options: WriteOptions{Headers: []string{"a"}, BOMPrefix: true},
			want:    "\xEF\xBB\xBFa\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.options))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSVPropagatesWriterError(t *testing.T) {
	assert.Error(t, WriteSimpleCSV(failingWriter{}, []string{"a"}, nil))
}

func TestWriteEvaluatorRankingCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEvaluatorRankingCSV(&buf, sampleRecords()))

	rows := readCSV(t, buf.Bytes())
	assert.Equal(t, [][]string{
		{"Evaluator", "Region", "Store", "Evaluations"},
		{"Paula", "RJ", "Carioca", "2"},
		{"Rita", "RJ", "Carioca", "2"},
		{"Paula", "SP", "Mauá", "1"},
	}, rows)
}

func TestWriteHourlyVolumeCSV(t *testing.T) {
	records := sampleRecords()
	records = append(records, evaluation.Record{Store: "Carioca", Region: "RJ", Collaborator: "Sem data"})

	var buf bytes.Buffer
	require.NoError(t, WriteHourlyVolumeCSV(&buf, records))

	rows := readCSV(t, buf.Bytes())
	assert.Equal(t, [][]string{
		{"Region", "Store", "Hour", "Evaluations"},
		{"RJ", "Carioca", "10", "1"},
		{"RJ", "Carioca", "11", "2"},
		{"RJ", "Carioca", "14", "1"},
		{"SP", "Mauá", "9", "1"},
	}, rows)
}

func TestWriteSummaryCSV(t *testing.T) {
	summary := evaluation.Summarize(sampleRecords(), evaluation.StoreGrouping)

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, summary, evaluation.StoreGrouping))

	rows := readCSV(t, buf.Bytes())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Region", "Store", "Speed", "Service", "Quality", "Helpfulness", "Evaluations", "Overall"}, rows[0])
	assert.Equal(t, []string{"RJ", "Carioca", "4.00", "4.00", "4.00", "4.00", "4", "4.00"}, rows[1])
	assert.Equal(t, []string{"SP", "Mauá", "3.00", "3.00", "3.00", "3.00", "1", "3.00"}, rows[2])
}

func TestFieldTitle(t *testing.T) {
	assert.Equal(t, "Collaborator", fieldTitle(evaluation.FieldCollaborator))
	assert.Equal(t, "Time", fieldTitle(evaluation.FieldHourLabel))
}
