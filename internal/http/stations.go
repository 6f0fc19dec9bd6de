package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type geoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type geoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   geoJSONPoint   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

// handleListStations returns all stations as a GeoJSON FeatureCollection,
// with the latest water-level and flow readings merged into the properties
// when available.
// GET /stations
func (s *Server) handleListStations(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	stations, err := s.store.Stations(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	latest, err := s.store.LatestPerStation(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	features := make([]geoJSONFeature, 0, len(stations))
	for _, station := range stations {
		properties := map[string]any{
			"id_stacji":   station.ID,
			"stacja":      station.Name,
			"rzeka":       station.River,
			"wojewodztwo": station.Province,
		}

		if lm, ok := latest[station.ID]; ok {
			if lm.WaterLevel != nil {
				properties["stan_wody"] = lm.WaterLevel.Value
				properties["stan_wody_data_pomiaru"] = lm.WaterLevel.Timestamp.Format(time.RFC3339)
			}
			if lm.Flow != nil {
				properties["przeplyw"] = lm.Flow.Value
				properties["przeplyw_data"] = lm.Flow.Timestamp.Format(time.RFC3339)
			}
		}

		features = append(features, geoJSONFeature{
			Type: "Feature",
			Geometry: geoJSONPoint{
				Type:        "Point",
				Coordinates: [2]float64{station.Lon, station.Lat},
			},
			Properties: properties,
		})
	}

	c.JSON(http.StatusOK, geoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	})
}

// handleStationMeasurements returns both series for one station. extended
// caps the result at the most recent limit points; batch pages through the
// window with an offset.
// GET /stations/:id?days=N&extended=bool&limit=M&batch=bool&offset=K
func (s *Server) handleStationMeasurements(c *gin.Context) {
	stationID := c.Param("id")

	days, ok := s.intQuery(c, "days", s.cfg.DefaultDays)
	if !ok {
		return
	}
	limit, ok := s.intQuery(c, "limit", s.cfg.DefaultLimit)
	if !ok {
		return
	}

	extended := false
	if v := c.Query("extended"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid extended parameter"})
			return
		}
		extended = parsed
	}

	batch := false
	if v := c.Query("batch"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch parameter"})
			return
		}
		batch = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	if batch {
		offset := 0
		if v := c.Query("offset"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
				return
			}
			offset = parsed
		}

		page, err := s.store.StationMeasurementsBatch(ctx, stationID, days, s.cfg.DefaultBatch, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, page)
		return
	}

	if extended {
		bundle, err := s.store.StationMeasurementsExtended(ctx, stationID, days, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, bundle)
		return
	}

	bundle, err := s.store.StationMeasurements(ctx, stationID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.log.Debug("station measurements served",
		zap.String("station_id", stationID),
		zap.Int("stan", len(bundle.Stan)),
		zap.Int("przeplyw", len(bundle.Przeplyw)))
	c.JSON(http.StatusOK, bundle)
}

func (s *Server) intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	v := c.Query(name)
	if v == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return parsed, true
}
