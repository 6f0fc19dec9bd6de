package db

import (
	"context"
	"fmt"
)

// Uniqueness constraints below are part of the durable contract: the
// exists-check-then-insert pattern in this package resolves races by falling
// back on them, so they must not be dropped.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS postgis`,
	`CREATE TABLE IF NOT EXISTS stations (
		id_stacji    text PRIMARY KEY,
		stacja       text NOT NULL,
		rzeka        text,
		lat          double precision NOT NULL,
		lon          double precision NOT NULL,
		geom         geometry(Point, 4326) NOT NULL,
		wojewodztwo  text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS stan_measurements (
		id                      text PRIMARY KEY,
		station_id              text NOT NULL REFERENCES stations(id_stacji),
		stan_wody_data_pomiaru  timestamp NOT NULL,
		stan_wody               double precision NOT NULL,
		CONSTRAINT uix_station_stan_time UNIQUE (station_id, stan_wody_data_pomiaru)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_stan_station_id ON stan_measurements (station_id)`,
	`CREATE INDEX IF NOT EXISTS ix_stan_data_pomiaru ON stan_measurements (stan_wody_data_pomiaru)`,
	`CREATE INDEX IF NOT EXISTS ix_stan_station_date ON stan_measurements (station_id, stan_wody_data_pomiaru)`,
	`CREATE TABLE IF NOT EXISTS przeplyw_measurements (
		id             text PRIMARY KEY,
		station_id     text NOT NULL REFERENCES stations(id_stacji),
		przeplyw_data  timestamp NOT NULL,
		przelyw        double precision NOT NULL,
		CONSTRAINT uix_station_przeplyw_time UNIQUE (station_id, przeplyw_data)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_przeplyw_station_id ON przeplyw_measurements (station_id)`,
	`CREATE INDEX IF NOT EXISTS ix_przeplyw_data ON przeplyw_measurements (przeplyw_data)`,
	`CREATE INDEX IF NOT EXISTS ix_przeplyw_station_date ON przeplyw_measurements (station_id, przeplyw_data)`,
	`CREATE TABLE IF NOT EXISTS hydro_warnings (
		id                  bigserial PRIMARY KEY,
		opublikowano        timestamp NOT NULL,
		stopien             text NOT NULL,
		data_od             timestamp NOT NULL,
		data_do             timestamp NOT NULL,
		prawdopodobienstwo  text NOT NULL,
		numer               text NOT NULL,
		biuro               text NOT NULL,
		zdarzenie           text NOT NULL,
		przebieg            text NOT NULL,
		komentarz           text NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_warnings_dedup ON hydro_warnings (numer, biuro, opublikowano)`,
	`CREATE TABLE IF NOT EXISTS warning_areas (
		id           bigserial PRIMARY KEY,
		warning_id   bigint NOT NULL REFERENCES hydro_warnings(id),
		wojewodztwo  text NOT NULL,
		opis         text NOT NULL,
		kod_zlewni   text[] NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_warning_areas_warning_id ON warning_areas (warning_id)`,
}

// EnsureSchema creates all tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
