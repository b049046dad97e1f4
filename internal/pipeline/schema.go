package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"bixi/internal/frame"
)

// ModernSchemaFromYear is the first year whose archives embed station
// attributes in ride records and encode times as epoch milliseconds.
const ModernSchemaFromYear = 2022

// Schema is the shape of one data epoch. It is chosen once per year.
type Schema interface {
	Name() string
	// NeedsStations reports whether ride records only carry station codes and
	// need a separate stations file to be denormalized.
	NeedsStations() bool
	ParseTime(raw string) (time.Time, error)
	Denormalize(rides, stations *frame.Frame) (*frame.Frame, error)
}

func SchemaFor(year int) Schema {
	if year >= ModernSchemaFromYear {
		return ModernSchema{}
	}
	return LegacySchema{}
}

// LegacySchema covers years up to 2021: a stations file next to ride files
// keyed by station code, and times as datetime strings.
type LegacySchema struct{}

var legacyLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05.000",
	"2006-01-02",
}

func (LegacySchema) Name() string { return "legacy" }

func (LegacySchema) NeedsStations() bool { return true }

func (LegacySchema) ParseTime(raw string) (time.Time, error) {
	for _, layout := range legacyLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", raw)
}

// Denormalize joins stations twice, on the start then the end station code.
// Station attribute x becomes x_start_station and x_end_station.
func (LegacySchema) Denormalize(rides, stations *frame.Frame) (*frame.Frame, error) {
	out, err := frame.LeftJoin(rides, stations, "code_start_station", "code", "_start_station")
	if err != nil {
		return nil, fmt.Errorf("join start stations: %w", err)
	}
	out, err = frame.LeftJoin(out, stations, "code_end_station", "code", "_end_station")
	if err != nil {
		return nil, fmt.Errorf("join end stations: %w", err)
	}
	return out.Drop("code", "is_member", "duration_sec"), nil
}

// ModernSchema covers 2022 onwards: station name and coordinates are already
// on every ride and times are epoch milliseconds.
type ModernSchema struct{}

func (ModernSchema) Name() string { return "modern" }

func (ModernSchema) NeedsStations() bool { return false }

func (ModernSchema) ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized epoch milliseconds %q", raw)
	}
	return time.UnixMilli(int64(f)).UTC(), nil
}

func (ModernSchema) Denormalize(rides, _ *frame.Frame) (*frame.Frame, error) {
	return rides, nil
}
