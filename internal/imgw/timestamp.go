package imgw

import (
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// MeasurementTimeLayout is the plain layout the upstream uses most often and
// the only one it uses for warning bulletins.
const MeasurementTimeLayout = "2006-01-02 15:04:05"

// isoLayouts are the ISO-8601 variants seen in measurement timestamps, tried
// in order after the plain layout. The trailing Z is a literal: an arbitrary
// numeric offset is not part of the upstream format set and must not match.
// Fractional seconds are accepted by time.Parse without a dedicated layout.
var isoLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z",
}

// TimestampParser normalizes heterogeneous upstream date-time strings and
// rejects implausible (future) values against an injectable clock.
type TimestampParser struct {
	clock clockwork.Clock
	log   *zap.Logger
}

// NewTimestampParser builds a parser; pass clockwork.NewRealClock() outside
// of tests.
func NewTimestampParser(clock clockwork.Clock, log *zap.Logger) *TimestampParser {
	return &TimestampParser{clock: clock, log: log}
}

// Parse returns the canonical timestamp for raw, or ok=false when raw matches
// no known layout or encodes a moment later than now. Parse never fails hard:
// a malformed string is simply no data.
func (p *TimestampParser) Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	ts, ok := parseAny(raw)
	if !ok {
		p.log.Warn("unparseable timestamp from upstream", zap.String("raw", raw))
		return time.Time{}, false
	}

	// Upstream occasionally emits clock-skewed or placeholder future
	// timestamps; dropping them keeps the series clean. Upstream times are
	// naive wall-clock values, so the comparison is wall-clock as well.
	now := wallClock(p.clock.Now())
	if ts.After(now) {
		p.log.Warn("future timestamp from upstream, skipping",
			zap.String("raw", raw),
			zap.Time("now", now))
		return time.Time{}, false
	}

	return ts, true
}

func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func parseAny(raw string) (time.Time, bool) {
	// The plain layout carries no fraction, but time.Parse would quietly
	// accept one after the seconds field; formatting back verifies an exact
	// match.
	if ts, err := time.Parse(MeasurementTimeLayout, raw); err == nil && ts.Format(MeasurementTimeLayout) == raw {
		return ts, true
	}

	// The upstream format set is not timezone-aware; an embedded +00:00
	// offset is stripped before matching.
	stripped := strings.Replace(raw, "+00:00", "", 1)
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, stripped); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
