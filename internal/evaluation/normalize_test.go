package evaluation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *time.Time
	}{
		{name: "day first with seconds", raw: "15/03/2024 14:30:00", want: at("2024-03-15 14:30")},
		{name: "day first minutes", raw: "15/03/2024 09:05", want: at("2024-03-15 09:05")},
		{name: "day first date only", raw: "15/03/2024", want: at("2024-03-15 00:00")},
		{name: "single digit day and month", raw: "5/3/2024 08:00:00", want: at("2024-03-05 08:00")},
		{name: "dashed", raw: "05-03-2024", want: at("2024-03-05 00:00")},
		{name: "iso", raw: "2024-03-15 14:30:00", want: at("2024-03-15 14:30")},
		{name: "surrounding spaces", raw: "  15/03/2024  ", want: at("2024-03-15 00:00")},
		{name: "blank", raw: "   "},
		{name: "garbage", raw: "ontem"},
		{name: "impossible day", raw: "31/02/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.raw, time.UTC)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}
}

func TestParseDateLocation(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)

	got := ParseDate("15/03/2024 22:00", loc)

	require.NotNil(t, got)
	assert.Equal(t, 22, got.Hour())
	assert.Equal(t, loc, got.Location())
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{raw: "4", want: 4},
		{raw: " 3.5 ", want: 3.5},
		{raw: "4,5", want: 4.5},
		{raw: "", want: 0},
		{raw: "abc", want: 0},
		{raw: "NaN", want: 0},
		{raw: "Inf", want: 0},
		{raw: "-1", want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseScore(tt.raw))
		})
	}
}

func TestCleanCollaborator(t *testing.T) {
	for _, raw := range []string{"", "  ", "nan", "NaN", "None", "none"} {
		_, ok := CleanCollaborator(raw)
		assert.False(t, ok, "%q should be dropped", raw)
	}

	name, ok := CleanCollaborator("  Ana Souza ")
	assert.True(t, ok)
	assert.Equal(t, "Ana Souza", name)
}

func TestNormalizeTab(t *testing.T) {
	tab := formTab("Carioca",
		formRow("15/03/2024 14:30", " Caixa ", " Ana ", "5", "4", "", "x", " Paula "),
		formRow("", "", "", "", "", "", "", ""),
		formRow("15/03/2024", "Caixa", "   ", "5", "5", "5", "5", "Paula"),
		formRow("sem data", "Padaria", "Bruno", "3", "3", "3", "3", ""),
		[]string{"16/03/2024", "Açougue", "Carla", "2"},
	)
	cols, err := ResolveColumns(tab, DefaultColumnMap())
	require.NoError(t, err)

	records := NormalizeTab(tab, cols, time.UTC)

	require.Len(t, records, 3)

	ana := records[0]
	assert.Equal(t, "Ana", ana.Collaborator)
	assert.Equal(t, "Caixa", ana.Sector)
	assert.Equal(t, "Paula", ana.Evaluator)
	assert.Equal(t, 5.0, ana.Speed)
	assert.Equal(t, 4.0, ana.Service)
	assert.Equal(t, 0.0, ana.Quality)
	assert.Equal(t, 0.0, ana.Helpfulness)
	require.NotNil(t, ana.Date)

	bruno := records[1]
	assert.Nil(t, bruno.Date)
	assert.Equal(t, "", bruno.Evaluator)

	carla := records[2]
	assert.Equal(t, "Carla", carla.Collaborator)
	assert.Equal(t, 2.0, carla.Speed)
	assert.Equal(t, 0.0, carla.Service)
	assert.Equal(t, "", carla.Evaluator)
}

func TestNormalizeTabHeaderOnly(t *testing.T) {
	tab := formTab("Carioca")
	cols, err := ResolveColumns(tab, DefaultColumnMap())
	require.NoError(t, err)

	assert.Empty(t, NormalizeTab(tab, cols, time.UTC))
}
