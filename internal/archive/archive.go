package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"bixi/internal/frame"
)

var (
	csvPattern      = regexp.MustCompile(`(?i)csv`)
	stationsPattern = regexp.MustCompile(`(?i)stations`)
)

// Path is where the rides archive of a year lives under root.
func Path(root string, year int) string {
	y := strconv.Itoa(year)
	return filepath.Join(root, "raw_data", "rides_data", y, y+"_hist_rides_data.zip")
}

// Save writes r to path through a temporary file in the same directory, so a
// failed download never leaves a truncated archive behind. An existing file is
// replaced.
func Save(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, err
	}
	return n, nil
}

// Members is the split of an archive's CSV members.
type Members struct {
	Stations string
	Rides    []string
}

func (m Members) HasStations() bool {
	return m.Stations != ""
}

// Reader reads CSV members of one archive.
type Reader struct {
	path string
	zr   *zip.ReadCloser
}

func Open(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	return &Reader{path: path, zr: zr}, nil
}

func (r *Reader) Close() error {
	return r.zr.Close()
}

// ListCSV returns member paths whose name contains "csv" in any case.
// macOS resource forks are skipped.
func (r *Reader) ListCSV() []string {
	out := []string{}
	for _, f := range r.zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		if csvPattern.MatchString(f.Name) {
			out = append(out, f.Name)
		}
	}
	return out
}

// Members splits the CSV members: the first one with "stations" in its path
// is the stations file, the rest are ride files.
func (r *Reader) Members() Members {
	m := Members{}
	for _, name := range r.ListCSV() {
		if m.Stations == "" && stationsPattern.MatchString(name) {
			m.Stations = name
			continue
		}
		m.Rides = append(m.Rides, name)
	}
	return m
}

func (r *Reader) ReadFrame(member string) (*frame.Frame, error) {
	f, err := r.zr.Open(member)
	if err != nil {
		return nil, fmt.Errorf("open %s in %s: %w", member, r.path, err)
	}
	defer f.Close()

	out, err := frame.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s in %s: %w", member, r.path, err)
	}
	return out, nil
}

// ListCSV opens the archive at path and lists its CSV members.
func ListCSV(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ListCSV(), nil
}
