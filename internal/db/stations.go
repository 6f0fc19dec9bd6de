package db

import (
	"context"
	"errors"
	"fmt"
)

// Station is a measurement station record. Attributes are immutable once
// created: the first-seen metadata is kept forever.
type Station struct {
	ID       string  `json:"id_stacji"`
	Name     string  `json:"stacja"`
	River    *string `json:"rzeka,omitempty"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Province string  `json:"wojewodztwo"`
}

const selectStationSQL = `
	SELECT id_stacji, stacja, rzeka, lat, lon, wojewodztwo
	FROM stations
	WHERE id_stacji = $1
`

const insertStationSQL = `
	INSERT INTO stations (id_stacji, stacja, rzeka, lat, lon, geom, wojewodztwo)
	VALUES ($1, $2, $3, $4, $5, ST_SetSRID(ST_MakePoint($5, $4), 4326), $6)
`

// GetOrCreateStation looks up a station by its upstream code and creates it
// on first sighting. Two syncs racing to create the same station resolve via
// the primary key: the loser rolls back and re-reads the winner's row.
func (s *Store) GetOrCreateStation(ctx context.Context, station Station) (Station, error) {
	if existing, err := s.stationByID(ctx, station.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return Station{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Station{}, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, insertStationSQL,
		station.ID, station.Name, station.River, station.Lat, station.Lon, station.Province)
	if err != nil {
		if isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			existing, readErr := s.stationByID(ctx, station.ID)
			if readErr != nil {
				return Station{}, fmt.Errorf("station %s exists but cannot be read: %w", station.ID, readErr)
			}
			return existing, nil
		}
		return Station{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			existing, readErr := s.stationByID(ctx, station.ID)
			if readErr != nil {
				return Station{}, fmt.Errorf("station %s exists but cannot be read: %w", station.ID, readErr)
			}
			return existing, nil
		}
		return Station{}, err
	}

	return station, nil
}

func (s *Store) stationByID(ctx context.Context, id string) (Station, error) {
	var st Station
	err := s.pool.QueryRow(ctx, selectStationSQL, id).Scan(
		&st.ID, &st.Name, &st.River, &st.Lat, &st.Lon, &st.Province)
	if err != nil {
		if isNoRows(err) {
			return Station{}, ErrNotFound
		}
		return Station{}, err
	}
	return st, nil
}

const listStationsSQL = `
	SELECT id_stacji, stacja, rzeka, lat, lon, wojewodztwo
	FROM stations
	ORDER BY id_stacji
`

// Stations returns all known stations.
func (s *Store) Stations(ctx context.Context) ([]Station, error) {
	rows, err := s.pool.Query(ctx, listStationsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]Station, 0)
	for rows.Next() {
		var st Station
		if err := rows.Scan(&st.ID, &st.Name, &st.River, &st.Lat, &st.Lon, &st.Province); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}
