package evaluation

import (
	"time"
)

var testHeader = []string{
	"Data", "Setor", "Colaborador", "Velocidade", "", "Atendimento", "",
	"Qualidade", "", "Ajuda", "", "", "Avaliador",
}

// formRow lays values out on the default column map.
func formRow(date, sector, collaborator, speed, service, quality, help, evaluator string) []string {
	row := make([]string, 13)
	row[0] = date
	row[1] = sector
	row[2] = collaborator
	row[3] = speed
	row[5] = service
	row[7] = quality
	row[9] = help
	row[12] = evaluator
	return row
}

func formTab(name string, rows ...[]string) RawTab {
	return RawTab{Name: name, Rows: append([][]string{testHeader}, rows...)}
}

func at(s string) *time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return &t
}

func day(s string) *time.Time {
	t, err := time.ParseInLocation(DayLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return &t
}

// rec builds an enriched record.
func rec(store, collaborator string, date *time.Time, scores ...float64) Record {
	r := Record{Collaborator: collaborator, Date: date, Sector: "Caixa", Evaluator: "Paula"}
	if len(scores) == 4 {
		r.Speed, r.Service, r.Quality, r.Helpfulness = scores[0], scores[1], scores[2], scores[3]
	}
	recs := []Record{r}
	Enrich(recs, store, DefaultRegions())
	return recs[0]
}
