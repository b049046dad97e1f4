package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bixi/internal"
	"bixi/internal/frame"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  stage TEXT NOT NULL,
  startedAt TEXT NOT NULL,
  finishedAt TEXT NOT NULL,
  okYears INTEGER NOT NULL,
  failedYears INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS year_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  year INTEGER NOT NULL,
  stage TEXT NOT NULL,
  status TEXT NOT NULL,
  error TEXT,
  path TEXT,
  bytes INTEGER NOT NULL DEFAULT 0,
  rowCount INTEGER NOT NULL DEFAULT 0,
  durationMs INTEGER NOT NULL DEFAULT 0,
  UNIQUE(runId, year),
  FOREIGN KEY(runId) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_year_results_year ON year_results(year, stage);

CREATE TABLE IF NOT EXISTS endpoints (
  year INTEGER PRIMARY KEY,
  url TEXT NOT NULL,
  discoveredAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS stations (
  stationId TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  normalizedName TEXT NOT NULL,
  shortName TEXT,
  lat REAL,
  lon REAL,
  capacity INTEGER,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_stations_normalized ON stations(normalizedName);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// RecordRun stores a stage report and its per-year outcomes.
func (d *DB) RecordRun(report internal.Report) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	failed := len(report.Failed())
	if _, err := tx.Exec(`
INSERT INTO runs (id, stage, startedAt, finishedAt, okYears, failedYears)
VALUES (?, ?, ?, ?, ?, ?)
`, report.RunID, string(report.Stage), formatTime(report.StartedAt), formatTime(report.FinishedAt), len(report.Results)-failed, failed); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO year_results (runId, year, stage, status, error, path, bytes, rowCount, durationMs)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, res := range report.Results {
		var errText, path *string
		if res.Err != nil {
			s := res.Err.Error()
			errText = &s
		}
		if res.Path != "" {
			p := res.Path
			path = &p
		}
		if _, err := stmt.Exec(
			report.RunID, res.Year, string(res.Stage), string(res.Status), errText, path,
			res.Bytes, res.Rows, res.Duration.Milliseconds(),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListRuns(limit int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, stage, startedAt, finishedAt, okYears, failedYears
FROM runs ORDER BY startedAt DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		if err := rows.Scan(&row.ID, &row.Stage, &row.StartedAt, &row.FinishedAt, &row.OKYears, &row.FailedYears); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) ListYearResults(runID string) ([]internal.YearRow, error) {
	rows, err := d.conn.Query(`
SELECT runId, year, stage, status, error, path, bytes, rowCount, durationMs
FROM year_results WHERE runId = ? ORDER BY year ASC
`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.YearRow
	for rows.Next() {
		var row internal.YearRow
		if err := rows.Scan(&row.RunID, &row.Year, &row.Stage, &row.Status, &row.Error, &row.Path, &row.Bytes, &row.Rows, &row.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LastYearStatus returns the most recent outcome of stage for year, nil when
// the year was never processed.
func (d *DB) LastYearStatus(year int, stage internal.Stage) (*internal.YearRow, error) {
	var row internal.YearRow
	err := d.conn.QueryRow(`
SELECT y.runId, y.year, y.stage, y.status, y.error, y.path, y.bytes, y.rowCount, y.durationMs
FROM year_results y JOIN runs r ON r.id = y.runId
WHERE y.year = ? AND y.stage = ?
ORDER BY r.startedAt DESC, y.id DESC LIMIT 1
`, year, string(stage)).Scan(&row.RunID, &row.Year, &row.Stage, &row.Status, &row.Error, &row.Path, &row.Bytes, &row.Rows, &row.DurationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) UpsertEndpoints(endpoints map[int]string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO endpoints (year, url, discoveredAt) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(year) DO UPDATE SET url = excluded.url, discoveredAt = CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for year, u := range endpoints {
		if _, err := stmt.Exec(year, u); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListEndpoints() ([]internal.EndpointRow, error) {
	rows, err := d.conn.Query(`SELECT year, url, discoveredAt FROM endpoints ORDER BY year ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EndpointRow
	for rows.Next() {
		var row internal.EndpointRow
		if err := rows.Scan(&row.Year, &row.URL, &row.DiscoveredAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpsertStations(stations []internal.StationRow) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO stations (stationId, name, normalizedName, shortName, lat, lon, capacity, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, COALESCE(NULLIF(?, ''), CURRENT_TIMESTAMP))
ON CONFLICT(stationId) DO UPDATE SET
  name=excluded.name,
  normalizedName=excluded.normalizedName,
  shortName=excluded.shortName,
  lat=excluded.lat,
  lon=excluded.lon,
  capacity=excluded.capacity,
  lastSeenAt=excluded.lastSeenAt
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range stations {
		if _, err := stmt.Exec(s.StationID, s.Name, s.NormalizedName, s.ShortName, s.Lat, s.Lon, s.Capacity, s.LastSeenAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListStations() ([]internal.StationRow, error) {
	rows, err := d.conn.Query(`
SELECT stationId, name, normalizedName, shortName, lat, lon, capacity, lastSeenAt
FROM stations ORDER BY normalizedName ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.StationRow
	for rows.Next() {
		var s internal.StationRow
		var shortName sql.NullString
		if err := rows.Scan(&s.StationID, &s.Name, &s.NormalizedName, &shortName, &s.Lat, &s.Lon, &s.Capacity, &s.LastSeenAt); err != nil {
			return nil, err
		}
		s.ShortName = shortName.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceRides rewrites the rides table with the columns and rows of f. Every
// cell is stored as text; nil cells are NULL.
func (d *DB) ReplaceRides(f *frame.Frame) error {
	if len(f.Columns) == 0 {
		return errors.New("rides frame has no columns")
	}

	cols := make([]string, len(f.Columns))
	marks := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		cols[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DROP TABLE IF EXISTS rides`); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`CREATE TABLE rides (%s)`, strings.Join(cols, ", "))); err != nil {
		return err
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO rides VALUES (%s)`, strings.Join(marks, ", ")))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(f.Columns))
	for _, row := range f.Rows {
		for i, v := range row {
			if v == nil {
				args[i] = nil
				continue
			}
			args[i] = frame.Format(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) CountRides() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM rides`).Scan(&n)
	return n, err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
