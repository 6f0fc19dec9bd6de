package imgw

import (
	"bytes"
	"fmt"
	"strconv"
)

// Station is one entry from the hydro station directory.
type Station struct {
	ID       string `json:"id_stacji"`
	Name     string `json:"stacja"`
	River    string `json:"rzeka"`
	Province string `json:"wojewodztwo"`
	Lat      Number `json:"lat"`
	Lon      Number `json:"lon"`
}

// Reading is the first element of the per-station latest-reading payload.
// Either series may be missing or null independently of the other.
type Reading struct {
	StationID      string  `json:"id_stacji"`
	WaterLevel     *Number `json:"stan_wody"`
	WaterLevelDate string  `json:"stan_wody_data_pomiaru"`
	Flow           *Number `json:"przelyw"`
	FlowDate       string  `json:"przeplyw_data"`
}

// Warning is one hydrological warning bulletin.
type Warning struct {
	Opublikowano       string        `json:"opublikowano"`
	Stopien            string        `json:"stopień"`
	DataOd             string        `json:"data_od"`
	DataDo             string        `json:"data_do"`
	Prawdopodobienstwo string        `json:"prawdopodobienstwo"`
	Numer              string        `json:"numer"`
	Biuro              string        `json:"biuro"`
	Zdarzenie          string        `json:"zdarzenie"`
	Przebieg           string        `json:"przebieg"`
	Komentarz          string        `json:"komentarz"`
	Obszary            []WarningArea `json:"obszary"`
}

// WarningArea is one affected area nested in a warning bulletin.
type WarningArea struct {
	Wojewodztwo string   `json:"wojewodztwo"`
	Opis        string   `json:"opis"`
	KodZlewni   []string `json:"kod_zlewni"`
}

// Number decodes IMGW numeric fields, which arrive either quoted or bare.
type Number float64

// UnmarshalJSON accepts "123.4", 123.4 and null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		data = data[1 : len(data)-1]
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("imgw: parse number %q: %w", data, err)
	}
	*n = Number(f)
	return nil
}

// Float64 returns the plain float value.
func (n Number) Float64() float64 {
	return float64(n)
}
