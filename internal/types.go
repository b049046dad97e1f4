package internal

import (
	"errors"
	"time"
)

type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
)

type YearStatus string

const (
	StatusOK     YearStatus = "OK"
	StatusFailed YearStatus = "FAILED"
)

// YearResult is the outcome of one stage for one year.
type YearResult struct {
	Year     int
	Stage    Stage
	Status   YearStatus
	Err      error
	Path     string
	Bytes    int64
	Rows     int
	Duration time.Duration
}

type Report struct {
	RunID      string
	Stage      Stage
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []YearResult
}

func (r Report) Failed() []YearResult {
	out := []YearResult{}
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

func (r Report) OKCount() int {
	return len(r.Results) - len(r.Failed())
}

// Err joins the errors of all failed years, nil when every year succeeded.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, res.Err)
	}
	return errors.Join(errs...)
}

type StationInfo struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name"`
	ShortName string  `json:"short_name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Capacity  int     `json:"capacity"`
}

type StationRow struct {
	StationInfo
	NormalizedName string
	LastSeenAt     string
}

type RunRow struct {
	ID          string
	Stage       string
	StartedAt   string
	FinishedAt  string
	OKYears     int
	FailedYears int
}

type YearRow struct {
	RunID      string
	Year       int
	Stage      string
	Status     string
	Error      *string
	Path       *string
	Bytes      int64
	Rows       int
	DurationMs int64
}

type EndpointRow struct {
	Year         int
	URL          string
	DiscoveredAt string
}
