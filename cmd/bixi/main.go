package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"bixi/internal"
	"bixi/internal/catalog"
	"bixi/internal/config"
	"bixi/internal/frame"
	"bixi/internal/logging"
	"bixi/internal/pipeline"
	"bixi/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := logging.New(cfg, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	client := catalog.NewClient(cfg, logger)

	cmd := os.Args[1]
	switch cmd {
	case "catalog:endpoints":
		endpoints, err := client.DiscoverEndpoints(ctx, cfg.CatalogURL)
		must(err)
		must(db.UpsertEndpoints(endpoints))
		rows, err := db.ListEndpoints()
		must(err)
		t := newTable("Year", "URL", "Discovered")
		for _, r := range rows {
			t.AppendRow(table.Row{r.Year, r.URL, r.DiscoveredAt})
		}
		t.Render()
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		years := yearFlags(fs, cfg)
		keepGoing := fs.Bool("keep-going", false, "exit 0 even when some years failed")
		_ = fs.Parse(os.Args[2:])
		p, err := newPipeline(years.apply(cfg), client, db, logger)
		must(err)
		report := p.Extract(ctx)
		printReport(report)
		if !*keepGoing {
			must(report.Err())
		}
	case "transform":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		years := yearFlags(fs, cfg)
		out := exportFlags(fs, cfg)
		_ = fs.Parse(os.Args[2:])
		runCfg := years.apply(cfg)
		runCfg.TransformLenient = runCfg.TransformLenient || *out.lenient
		warnUnextracted(db, runCfg, logger)
		p, err := newPipeline(runCfg, client, db, logger)
		must(err)
		rides, report := p.Transform(ctx)
		printReport(report)
		if !*out.keepGoing {
			must(report.Err())
		}
		must(out.export(db, rides))
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		years := yearFlags(fs, cfg)
		out := exportFlags(fs, cfg)
		_ = fs.Parse(os.Args[2:])
		runCfg := years.apply(cfg)
		runCfg.TransformLenient = runCfg.TransformLenient || *out.lenient
		p, err := newPipeline(runCfg, client, db, logger)
		must(err)
		extracted := p.Extract(ctx)
		printReport(extracted)
		if !*out.keepGoing {
			must(extracted.Err())
		}
		rides, transformed := p.Transform(ctx)
		printReport(transformed)
		if !*out.keepGoing {
			must(transformed.Err())
		}
		must(out.export(db, rides))
	case "stations:sync":
		svc := catalog.NewStationSyncService(db, client, cfg)
		count, err := svc.Sync(ctx)
		must(err)
		fmt.Printf("stations sync complete: %d stations\n", count)
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs")
		runID := fs.String("run", "", "show per-year results of one run")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*runID) != "" {
			rows, err := db.ListYearResults(*runID)
			must(err)
			t := newTable("Year", "Stage", "Status", "Rows", "Size", "Took", "Error")
			for _, r := range rows {
				t.AppendRow(table.Row{r.Year, r.Stage, r.Status, r.Rows, humanize.Bytes(uint64(r.Bytes)),
					time.Duration(r.DurationMs) * time.Millisecond, deref(r.Error)})
			}
			t.Render()
			return
		}
		rows, err := db.ListRuns(*limit)
		must(err)
		t := newTable("Run", "Stage", "Started", "Finished", "OK", "Failed")
		for _, r := range rows {
			t.AppendRow(table.Row{r.ID, r.Stage, r.StartedAt, r.FinishedAt, r.OKYears, r.FailedYears})
		}
		t.Render()
	default:
		usage()
		os.Exit(1)
	}
}

type yearRange struct {
	start *int
	end   *int
}

func yearFlags(fs *flag.FlagSet, cfg config.Config) yearRange {
	return yearRange{
		start: fs.Int("start", cfg.StartYear, "first year"),
		end:   fs.Int("end", cfg.EndYear, "last year"),
	}
}

func (y yearRange) apply(cfg config.Config) config.Config {
	cfg.StartYear = *y.start
	cfg.EndYear = *y.end
	return cfg
}

type exportOptions struct {
	path      *string
	format    *string
	keepGoing *bool
	lenient   *bool
	outputDir string
}

func exportFlags(fs *flag.FlagSet, cfg config.Config) exportOptions {
	return exportOptions{
		path:      fs.String("out", "", "output path (default OUTPUT_DIR/rides.<format>)"),
		format:    fs.String("format", "csv", "csv|xlsx|sqlite"),
		keepGoing: fs.Bool("keep-going", false, "export the years that succeeded even when some failed"),
		lenient:   fs.Bool("lenient", false, "allow years without start_date and fill missing output columns"),
		outputDir: cfg.OutputDir,
	}
}

func (o exportOptions) export(db *storage.DB, rides *frame.Frame) error {
	format := strings.ToLower(strings.TrimSpace(*o.format))
	path := strings.TrimSpace(*o.path)
	if path == "" && format != "sqlite" {
		path = filepath.Join(o.outputDir, "rides."+format)
	}

	switch format {
	case "csv":
		if err := pipeline.ExportCSV(rides, path); err != nil {
			return err
		}
	case "xlsx":
		if err := pipeline.ExportXLSX(rides, path); err != nil {
			return err
		}
	case "sqlite":
		if err := db.ReplaceRides(rides); err != nil {
			return err
		}
		count, err := db.CountRides()
		if err != nil {
			return err
		}
		fmt.Printf("stored %d rides in sqlite table rides\n", count)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", *o.format)
	}
	fmt.Printf("exported %d rides to %s\n", rides.Len(), path)
	return nil
}

func newPipeline(cfg config.Config, client *catalog.Client, db *storage.DB, logger *slog.Logger) (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Options{
		CatalogURL:     cfg.CatalogURL,
		RawDataDir:     cfg.RawDataDir,
		StartYear:      cfg.StartYear,
		EndYear:        cfg.EndYear,
		ColumnMapping:  cfg.ColumnMapping,
		OutputColumns:  cfg.OutputColumns,
		Lenient:        cfg.TransformLenient,
		NormalizeNames: cfg.NormalizeStationNames,
		Source:         client,
		Logger:         logger,
		Recorder:       db,
	})
}

// warnUnextracted flags years whose last recorded extract did not succeed.
func warnUnextracted(db *storage.DB, cfg config.Config, logger *slog.Logger) {
	for year := cfg.StartYear; year <= cfg.EndYear; year++ {
		last, err := db.LastYearStatus(year, internal.StageExtract)
		if err != nil {
			logger.Warn("failed to read extract history", "year", year, "err", err)
			continue
		}
		if last == nil || last.Status != string(internal.StatusOK) {
			logger.Warn("no successful extract recorded", "year", year)
		}
	}
}

func printReport(report internal.Report) {
	t := newTable("Year", "Status", "Rows", "Size", "Took", "Error")
	t.SetTitle("%s run %s", report.Stage, report.RunID)
	for _, res := range report.Results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		size := ""
		if res.Bytes > 0 {
			size = humanize.Bytes(uint64(res.Bytes))
		}
		t.AppendRow(table.Row{res.Year, res.Status, res.Rows, size, res.Duration.Round(time.Millisecond), errText})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d ok", report.OKCount()), "", "", "", fmt.Sprintf("%d failed", len(report.Failed()))})
	t.Render()
}

func newTable(headers ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row(headers))
	t.SetStyle(table.StyleRounded)
	return t
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func usage() {
	fmt.Println("usage: bixi <command>")
	fmt.Println("commands:")
	fmt.Println("  catalog:endpoints")
	fmt.Println("  extract [--start=2014] [--end=2023] [--keep-going]")
	fmt.Println("  transform [--start --end] [--out=./out/rides.csv] [--format=csv|xlsx|sqlite] [--lenient] [--keep-going]")
	fmt.Println("  run [--start --end] [--out=...] [--format=csv|xlsx|sqlite] [--lenient] [--keep-going]")
	fmt.Println("  stations:sync")
	fmt.Println("  runs:list [--limit=20] [--run=<id>]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
