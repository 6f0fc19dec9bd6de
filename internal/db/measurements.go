package db

import (
	"context"
	"fmt"
	"time"
)

// measurementIDLayout is the canonical textual form used to synthesize
// measurement primary keys ({station_id}_{timestamp}). The fraction digits
// keep sub-second readings from colliding on the same id.
const measurementIDLayout = "2006-01-02T15:04:05.999999"

func measurementID(stationID string, ts time.Time) string {
	return stationID + "_" + ts.Format(measurementIDLayout)
}

// series describes one measurement table. The water-level and flow series
// are structurally identical; everything below is written once against this
// descriptor and instantiated twice.
type series struct {
	table    string
	timeCol  string
	valueCol string
}

var (
	waterLevelSeries = series{table: "stan_measurements", timeCol: "stan_wody_data_pomiaru", valueCol: "stan_wody"}
	flowSeries       = series{table: "przeplyw_measurements", timeCol: "przeplyw_data", valueCol: "przelyw"}
)

// MeasurementPoint is one reading at one station at one timestamp.
type MeasurementPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// SeriesBundle holds both series for one station, ascending by time.
type SeriesBundle struct {
	Stan     []MeasurementPoint `json:"stan"`
	Przeplyw []MeasurementPoint `json:"przelyw"`
}

// SeriesBatch is one page of a paginated series read. HasMore is an
// approximation: true whenever either series filled the page.
type SeriesBatch struct {
	SeriesBundle
	HasMore    bool `json:"has_more"`
	NextOffset int  `json:"next_offset"`
}

// AddWaterLevel inserts a water-level reading. Returns true when newly
// inserted, false when the (station, timestamp) pair is already known.
func (s *Store) AddWaterLevel(ctx context.Context, stationID string, ts time.Time, value float64) (bool, error) {
	return s.addMeasurement(ctx, waterLevelSeries, stationID, ts, value)
}

// AddFlow inserts a flow reading; same contract as AddWaterLevel.
func (s *Store) AddFlow(ctx context.Context, stationID string, ts time.Time, value float64) (bool, error) {
	return s.addMeasurement(ctx, flowSeries, stationID, ts, value)
}

// addMeasurement checks for an existing (station, timestamp) row and inserts
// when absent. The exists check is not atomic against a concurrent identical
// write; the unique constraint is the source of truth and losing that race
// reports "already exists", never an error.
func (s *Store) addMeasurement(ctx context.Context, sp series, stationID string, ts time.Time, value float64) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	existsSQL := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE station_id = $1 AND %s = $2)`,
		sp.table, sp.timeCol)

	var exists bool
	if err := tx.QueryRow(ctx, existsSQL, stationID, ts).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	insertSQL := fmt.Sprintf(
		`INSERT INTO %s (id, station_id, %s, %s) VALUES ($1, $2, $3, $4)`,
		sp.table, sp.timeCol, sp.valueCol)

	id := measurementID(stationID, ts)
	if _, err := tx.Exec(ctx, insertSQL, id, stationID, ts, value); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// StationMeasurements returns both series for the last sinceDays days,
// ascending by time and unbounded in count.
func (s *Store) StationMeasurements(ctx context.Context, stationID string, sinceDays int) (SeriesBundle, error) {
	since := windowStart(sinceDays)

	stan, err := s.querySeries(ctx, waterLevelSeries, stationID, since, 0, 0)
	if err != nil {
		return SeriesBundle{}, err
	}
	przeplyw, err := s.querySeries(ctx, flowSeries, stationID, since, 0, 0)
	if err != nil {
		return SeriesBundle{}, err
	}
	return SeriesBundle{Stan: stan, Przeplyw: przeplyw}, nil
}

// StationMeasurementsExtended returns the most recent limit points of both
// series within the window, ascending by time.
func (s *Store) StationMeasurementsExtended(ctx context.Context, stationID string, sinceDays, limit int) (SeriesBundle, error) {
	since := windowStart(sinceDays)

	stan, err := s.querySeries(ctx, waterLevelSeries, stationID, since, limit, 0)
	if err != nil {
		return SeriesBundle{}, err
	}
	przeplyw, err := s.querySeries(ctx, flowSeries, stationID, since, limit, 0)
	if err != nil {
		return SeriesBundle{}, err
	}
	return SeriesBundle{Stan: stan, Przeplyw: przeplyw}, nil
}

// StationMeasurementsBatch pages through both series with an offset.
func (s *Store) StationMeasurementsBatch(ctx context.Context, stationID string, sinceDays, batchSize, offset int) (SeriesBatch, error) {
	since := windowStart(sinceDays)

	stan, err := s.querySeries(ctx, waterLevelSeries, stationID, since, batchSize, offset)
	if err != nil {
		return SeriesBatch{}, err
	}
	przeplyw, err := s.querySeries(ctx, flowSeries, stationID, since, batchSize, offset)
	if err != nil {
		return SeriesBatch{}, err
	}

	return SeriesBatch{
		SeriesBundle: SeriesBundle{Stan: stan, Przeplyw: przeplyw},
		HasMore:      len(stan) == batchSize || len(przeplyw) == batchSize,
		NextOffset:   offset + batchSize,
	}, nil
}

// querySeries fetches one series. With limit 0 the rows come back ascending
// directly; otherwise the newest rows are fetched descending and reversed so
// callers always see ascending time.
func (s *Store) querySeries(ctx context.Context, sp series, stationID string, since time.Time, limit, offset int) ([]MeasurementPoint, error) {
	sql := fmt.Sprintf(
		`SELECT %s, %s FROM %s WHERE station_id = $1 AND %s >= $2`,
		sp.timeCol, sp.valueCol, sp.table, sp.timeCol)
	args := []any{stationID, since}

	if limit > 0 {
		sql += fmt.Sprintf(" ORDER BY %s DESC LIMIT $3", sp.timeCol)
		args = append(args, limit)
		if offset > 0 {
			sql += " OFFSET $4"
			args = append(args, offset)
		}
	} else {
		sql += fmt.Sprintf(" ORDER BY %s ASC", sp.timeCol)
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]MeasurementPoint, 0)
	for rows.Next() {
		var p MeasurementPoint
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if limit > 0 {
		reversePoints(points)
	}
	return points, nil
}

func reversePoints(points []MeasurementPoint) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}

func windowStart(sinceDays int) time.Time {
	return time.Now().UTC().Add(-time.Duration(sinceDays) * 24 * time.Hour)
}

// LatestMeasurements is the newest reading per series for one station.
// Either half may be nil when that series has no rows for the station.
type LatestMeasurements struct {
	WaterLevel *MeasurementPoint
	Flow       *MeasurementPoint
}

// LatestPerStation returns the newest water-level and flow readings for all
// stations, merged by station id.
func (s *Store) LatestPerStation(ctx context.Context) (map[string]LatestMeasurements, error) {
	result := make(map[string]LatestMeasurements)

	stan, err := s.latestBySeries(ctx, waterLevelSeries)
	if err != nil {
		return nil, err
	}
	for stationID, point := range stan {
		entry := result[stationID]
		p := point
		entry.WaterLevel = &p
		result[stationID] = entry
	}

	przeplyw, err := s.latestBySeries(ctx, flowSeries)
	if err != nil {
		return nil, err
	}
	for stationID, point := range przeplyw {
		entry := result[stationID]
		p := point
		entry.Flow = &p
		result[stationID] = entry
	}

	return result, nil
}

func (s *Store) latestBySeries(ctx context.Context, sp series) (map[string]MeasurementPoint, error) {
	sql := fmt.Sprintf(`
		SELECT m.station_id, m.%[1]s, m.%[2]s
		FROM %[3]s m
		JOIN (
			SELECT station_id, MAX(%[1]s) AS max_ts
			FROM %[3]s
			GROUP BY station_id
		) latest ON m.station_id = latest.station_id AND m.%[1]s = latest.max_ts`,
		sp.timeCol, sp.valueCol, sp.table)

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]MeasurementPoint)
	for rows.Next() {
		var stationID string
		var p MeasurementPoint
		if err := rows.Scan(&stationID, &p.Timestamp, &p.Value); err != nil {
			return nil, err
		}
		out[stationID] = p
	}
	return out, rows.Err()
}
