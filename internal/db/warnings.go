package db

import (
	"context"
	"fmt"
	"time"

	"github.com/everlastingflames/flood-monitoring/internal/imgw"
)

// Warning is one stored hydrological warning bulletin with its areas.
type Warning struct {
	ID                 int64         `json:"id"`
	Opublikowano       time.Time     `json:"opublikowano"`
	Stopien            string        `json:"stopien"`
	DataOd             time.Time     `json:"data_od"`
	DataDo             time.Time     `json:"data_do"`
	Prawdopodobienstwo string        `json:"prawdopodobienstwo"`
	Numer              string        `json:"numer"`
	Biuro              string        `json:"biuro"`
	Zdarzenie          string        `json:"zdarzenie"`
	Przebieg           string        `json:"przebieg"`
	Komentarz          string        `json:"komentarz"`
	Obszary            []WarningArea `json:"obszary"`
}

// WarningArea is one affected area belonging to a warning.
type WarningArea struct {
	Wojewodztwo string   `json:"wojewodztwo"`
	Opis        string   `json:"opis"`
	KodZlewni   []string `json:"kod_zlewni"`
}

const warningExistsSQL = `
	SELECT EXISTS (
		SELECT 1 FROM hydro_warnings
		WHERE numer = $1 AND biuro = $2 AND opublikowano = $3
	)
`

const insertWarningSQL = `
	INSERT INTO hydro_warnings
		(opublikowano, stopien, data_od, data_do, prawdopodobienstwo,
		 numer, biuro, zdarzenie, przebieg, komentarz)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id
`

const insertWarningAreaSQL = `
	INSERT INTO warning_areas (warning_id, wojewodztwo, opis, kod_zlewni)
	VALUES ($1, $2, $3, $4)
`

// InsertWarnings persists a batch of upstream warning bulletins. Bulletins
// already known by the (numer, biuro, opublikowano) triple are skipped.
// Each warning and its areas commit as one transaction, so a failure partway
// through the batch keeps the warnings committed before it. Returns the
// number of newly inserted warnings.
func (s *Store) InsertWarnings(ctx context.Context, warnings []imgw.Warning) (int, error) {
	inserted := 0
	for _, w := range warnings {
		// Warning bulletins always carry the plain space-separated format.
		published, err := time.Parse(imgw.MeasurementTimeLayout, w.Opublikowano)
		if err != nil {
			return inserted, fmt.Errorf("parse opublikowano %q: %w", w.Opublikowano, err)
		}
		validFrom, err := time.Parse(imgw.MeasurementTimeLayout, w.DataOd)
		if err != nil {
			return inserted, fmt.Errorf("parse data_od %q: %w", w.DataOd, err)
		}
		validTo, err := time.Parse(imgw.MeasurementTimeLayout, w.DataDo)
		if err != nil {
			return inserted, fmt.Errorf("parse data_do %q: %w", w.DataDo, err)
		}

		ok, err := s.insertWarning(ctx, w, published, validFrom, validTo)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (s *Store) insertWarning(ctx context.Context, w imgw.Warning, published, validFrom, validTo time.Time) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, warningExistsSQL, w.Numer, w.Biuro, published).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var warningID int64
	err = tx.QueryRow(ctx, insertWarningSQL,
		published, w.Stopien, validFrom, validTo, w.Prawdopodobienstwo,
		w.Numer, w.Biuro, w.Zdarzenie, w.Przebieg, w.Komentarz,
	).Scan(&warningID)
	if err != nil {
		return false, err
	}

	for _, area := range w.Obszary {
		if _, err := tx.Exec(ctx, insertWarningAreaSQL,
			warningID, area.Wojewodztwo, area.Opis, area.KodZlewni); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

const listWarningsSQL = `
	SELECT id, opublikowano, stopien, data_od, data_do, prawdopodobienstwo,
	       numer, biuro, zdarzenie, przebieg, komentarz
	FROM hydro_warnings
	ORDER BY opublikowano DESC, id DESC
`

const warningByIDSQL = `
	SELECT id, opublikowano, stopien, data_od, data_do, prawdopodobienstwo,
	       numer, biuro, zdarzenie, przebieg, komentarz
	FROM hydro_warnings
	WHERE id = $1
`

const areasByWarningSQL = `
	SELECT warning_id, wojewodztwo, opis, kod_zlewni
	FROM warning_areas
	WHERE warning_id = ANY($1)
	ORDER BY id
`

// Warnings returns all stored warnings with their nested areas.
func (s *Store) Warnings(ctx context.Context) ([]Warning, error) {
	rows, err := s.pool.Query(ctx, listWarningsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	warnings := make([]Warning, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		w, err := scanWarning(rows)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, w)
		ids = append(ids, w.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.attachAreas(ctx, warnings, ids); err != nil {
		return nil, err
	}
	return warnings, nil
}

// WarningByID returns a single warning or ErrNotFound.
func (s *Store) WarningByID(ctx context.Context, id int64) (Warning, error) {
	row := s.pool.QueryRow(ctx, warningByIDSQL, id)
	w, err := scanWarning(row)
	if err != nil {
		if isNoRows(err) {
			return Warning{}, ErrNotFound
		}
		return Warning{}, err
	}

	warnings := []Warning{w}
	if err := s.attachAreas(ctx, warnings, []int64{w.ID}); err != nil {
		return Warning{}, err
	}
	return warnings[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWarning(row rowScanner) (Warning, error) {
	var w Warning
	err := row.Scan(
		&w.ID, &w.Opublikowano, &w.Stopien, &w.DataOd, &w.DataDo,
		&w.Prawdopodobienstwo, &w.Numer, &w.Biuro, &w.Zdarzenie,
		&w.Przebieg, &w.Komentarz)
	if err != nil {
		return Warning{}, err
	}
	w.Obszary = make([]WarningArea, 0)
	return w, nil
}

func (s *Store) attachAreas(ctx context.Context, warnings []Warning, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	byID := make(map[int64]int, len(warnings))
	for i, w := range warnings {
		byID[w.ID] = i
	}

	rows, err := s.pool.Query(ctx, areasByWarningSQL, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var warningID int64
		var area WarningArea
		if err := rows.Scan(&warningID, &area.Wojewodztwo, &area.Opis, &area.KodZlewni); err != nil {
			return err
		}
		if i, ok := byID[warningID]; ok {
			warnings[i].Obszary = append(warnings[i].Obszary, area)
		}
	}
	return rows.Err()
}
