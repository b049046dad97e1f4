package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bixi/internal"
	"bixi/internal/catalog"
)

// Source is where archives come from.
type Source interface {
	DiscoverEndpoints(ctx context.Context, pageURL string) (catalog.Endpoints, error)
	OpenArchive(ctx context.Context, archiveURL string) (io.ReadCloser, error)
}

// Recorder receives the report of every finished stage.
type Recorder interface {
	RecordRun(report internal.Report) error
}

type Options struct {
	CatalogURL    string
	RawDataDir    string
	StartYear     int
	EndYear       int
	ColumnMapping map[string]string
	OutputColumns []string

	// Lenient keeps years whose ride table lacks start_date after renaming
	// and fills missing output columns with nil instead of failing the year.
	Lenient bool
	// NormalizeNames rewrites station name columns of the output through
	// util.NormalizeStationNames.
	NormalizeNames bool

	Source   Source
	Logger   *slog.Logger
	Recorder Recorder
}

type Pipeline struct {
	opts   Options
	years  []int
	source Source
	logger *slog.Logger
	now    func() time.Time
}

func New(opts Options) (*Pipeline, error) {
	if strings.TrimSpace(opts.CatalogURL) == "" {
		return nil, errors.New("catalog url is required")
	}
	if strings.TrimSpace(opts.RawDataDir) == "" {
		return nil, errors.New("raw data directory is required")
	}
	if opts.StartYear <= 0 || opts.EndYear <= 0 {
		return nil, errors.New("year range is required")
	}
	if opts.StartYear > opts.EndYear {
		return nil, fmt.Errorf("start year %d is after end year %d", opts.StartYear, opts.EndYear)
	}
	if opts.ColumnMapping == nil {
		return nil, errors.New("column mapping is required")
	}
	if len(opts.OutputColumns) == 0 {
		return nil, errors.New("output columns are required")
	}
	if opts.Source == nil {
		return nil, errors.New("archive source is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	years := make([]int, 0, opts.EndYear-opts.StartYear+1)
	for y := opts.StartYear; y <= opts.EndYear; y++ {
		years = append(years, y)
	}

	return &Pipeline{
		opts:   opts,
		years:  years,
		source: opts.Source,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Years returns the configured years in processing order.
func (p *Pipeline) Years() []int {
	return append([]int(nil), p.years...)
}

// YearError is a failure of one stage for one year.
type YearError struct {
	Year  int
	Stage internal.Stage
	Err   error
}

func (e *YearError) Error() string {
	return fmt.Sprintf("%s %d: %v", e.Stage, e.Year, e.Err)
}

func (e *YearError) Unwrap() error {
	return e.Err
}

func (p *Pipeline) newReport(stage internal.Stage) internal.Report {
	return internal.Report{
		RunID:     uuid.NewString(),
		Stage:     stage,
		StartedAt: p.now(),
	}
}

func (p *Pipeline) elapsed(started time.Time) time.Duration {
	return p.now().Sub(started)
}

func (p *Pipeline) ok(report *internal.Report, res internal.YearResult) {
	res.Stage = report.Stage
	res.Status = internal.StatusOK
	report.Results = append(report.Results, res)
}

func (p *Pipeline) fail(report *internal.Report, res internal.YearResult, err error) {
	res.Stage = report.Stage
	res.Status = internal.StatusFailed
	res.Err = &YearError{Year: res.Year, Stage: report.Stage, Err: err}
	report.Results = append(report.Results, res)
	p.logger.Error("year failed", "stage", report.Stage, "year", res.Year, "err", err)
}

func (p *Pipeline) finish(report *internal.Report) {
	report.FinishedAt = p.now()
	p.logger.Info("stage finished",
		"stage", report.Stage,
		"run", report.RunID,
		"ok", report.OKCount(),
		"failed", len(report.Failed()),
		"took", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond),
	)
	if p.opts.Recorder == nil {
		return
	}
	if err := p.opts.Recorder.RecordRun(*report); err != nil {
		p.logger.Warn("failed to record run", "run", report.RunID, "err", err)
	}
}
