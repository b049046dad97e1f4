package pipeline

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"bixi/internal"
	"bixi/internal/archive"
	"bixi/internal/catalog"
)

// Extract downloads the archive of every configured year into the raw data
// directory, replacing archives from earlier runs. Failures never stop the
// stage: each one is reported as a failed year.
func (p *Pipeline) Extract(ctx context.Context) internal.Report {
	report := p.newReport(internal.StageExtract)
	p.logger.Info("extract started", "run", report.RunID, "years", len(p.years))

	endpoints, err := p.source.DiscoverEndpoints(ctx, p.opts.CatalogURL)
	if err != nil {
		for _, year := range p.years {
			p.fail(&report, internal.YearResult{Year: year}, fmt.Errorf("discover endpoints: %w", err))
		}
		p.finish(&report)
		return report
	}

	for _, year := range p.years {
		started := p.now()
		res := internal.YearResult{Year: year, Path: archive.Path(p.opts.RawDataDir, year)}
		if err := ctx.Err(); err != nil {
			p.fail(&report, res, err)
			continue
		}

		n, err := p.extractYear(ctx, endpoints, year, res.Path)
		res.Bytes = n
		res.Duration = p.elapsed(started)
		if err != nil {
			p.fail(&report, res, err)
			continue
		}
		p.logger.Info("archive saved", "year", year, "path", res.Path, "size", humanize.Bytes(uint64(n)))
		p.ok(&report, res)
	}

	p.finish(&report)
	return report
}

func (p *Pipeline) extractYear(ctx context.Context, endpoints catalog.Endpoints, year int, path string) (int64, error) {
	url, err := endpoints.Lookup(year)
	if err != nil {
		return 0, err
	}
	p.logger.Debug("downloading archive", "year", year, "url", url)

	body, err := p.source.OpenArchive(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := archive.Save(path, body)
	if err != nil {
		return n, fmt.Errorf("save archive: %w", err)
	}
	return n, nil
}
