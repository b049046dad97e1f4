package pipeline

import (
	"context"
	"errors"
	"fmt"

	"bixi/internal"
	"bixi/internal/archive"
	"bixi/internal/frame"
)

var (
	ErrNoStationsFile = errors.New("archive has no stations file")
	ErrNoRideFiles    = errors.New("archive has no ride files")
	ErrMissingColumn  = frame.ErrMissingColumn
)

// stationNameColumns are rewritten when station names are normalized.
var stationNameColumns = []string{"name_start_station", "name_end_station"}

// Transform reads the archive of every configured year, reconciles its
// schema and stacks the years, in configured order, into one frame of the
// output columns. Failed years are left out of the frame and reported.
func (p *Pipeline) Transform(ctx context.Context) (*frame.Frame, internal.Report) {
	report := p.newReport(internal.StageTransform)
	p.logger.Info("transform started", "run", report.RunID, "years", len(p.years), "lenient", p.opts.Lenient)

	parts := make([]*frame.Frame, 0, len(p.years))
	for _, year := range p.years {
		started := p.now()
		res := internal.YearResult{Year: year, Path: archive.Path(p.opts.RawDataDir, year)}
		if err := ctx.Err(); err != nil {
			p.fail(&report, res, err)
			continue
		}

		out, err := p.transformYear(year, res.Path)
		res.Duration = p.elapsed(started)
		if err != nil {
			p.fail(&report, res, err)
			continue
		}
		res.Rows = out.Len()
		p.logger.Info("year transformed", "year", year, "schema", SchemaFor(year).Name(), "rows", res.Rows)
		parts = append(parts, out)
		p.ok(&report, res)
	}

	result := frame.Concat(parts...)
	if len(parts) == 0 {
		result = frame.New(p.opts.OutputColumns...)
	}
	p.finish(&report)
	return result, report
}

func (p *Pipeline) transformYear(year int, path string) (*frame.Frame, error) {
	schema := SchemaFor(year)

	r, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	members := r.Members()
	p.logger.Debug("archive members", "year", year, "stations", members.Stations, "rides", members.Rides)

	stations := frame.New()
	if schema.NeedsStations() {
		if !members.HasStations() {
			return nil, ErrNoStationsFile
		}
		raw, err := r.ReadFrame(members.Stations)
		if err != nil {
			return nil, err
		}
		if stations, err = StandardizeColumns(raw, p.opts.ColumnMapping, year); err != nil {
			return nil, fmt.Errorf("standardize %s: %w", members.Stations, err)
		}
	}

	if len(members.Rides) == 0 {
		return nil, ErrNoRideFiles
	}
	// Ride files are standardized one by one so that headers differing only
	// in case or spacing land in the same column.
	rideParts := make([]*frame.Frame, 0, len(members.Rides))
	for _, name := range members.Rides {
		raw, err := r.ReadFrame(name)
		if err != nil {
			return nil, err
		}
		std, err := StandardizeColumns(raw, p.opts.ColumnMapping, year)
		if err != nil {
			return nil, fmt.Errorf("standardize %s: %w", name, err)
		}
		rideParts = append(rideParts, std)
	}
	rides := frame.Concat(rideParts...)

	if !rides.Has("start_date") {
		if !p.opts.Lenient {
			return nil, fmt.Errorf("%w: start_date", ErrMissingColumn)
		}
		p.logger.Warn("ride table has no start_date", "year", year)
	}

	joined, err := schema.Denormalize(rides, stations)
	if err != nil {
		return nil, fmt.Errorf("%s schema: %w", schema.Name(), err)
	}

	var out *frame.Frame
	if p.opts.Lenient {
		out = joined.SelectFill(p.opts.OutputColumns)
	} else if out, err = joined.Select(p.opts.OutputColumns); err != nil {
		return nil, err
	}

	if p.opts.NormalizeNames {
		if err := NormalizeStationColumns(out, stationNameColumns...); err != nil {
			return nil, err
		}
	}
	return out, nil
}
