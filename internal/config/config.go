package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath     string
	RawDataDir string
	OutputDir  string

	CatalogURL            string
	CatalogAnchorSelector string
	CatalogStorageDomain  string
	GBFSStationInfoURL    string
	HTTPTimeoutMs         int
	HTTPRetries           int
	HTTPRateLimitRPS      int

	StartYear     int
	EndYear       int
	ColumnMapping map[string]string
	OutputColumns []string

	TransformLenient      bool
	NormalizeStationNames bool

	LogLevel  string
	LogFormat string
}

// DefaultColumnMapping renames the raw column names of every yearly schema to
// the unified ones. Keys are lowercased and trimmed raw names.
func DefaultColumnMapping() map[string]string {
	return map[string]string{
		"pk":                         "code",
		"emplacement_pk_start":       "code_start_station",
		"emplacement_pk_end":         "code_end_station",
		"startstationname":           "name_start_station",
		"startstationarrondissement": "arrondissement_start_station",
		"startstationlatitude":       "latitude_start_station",
		"startstationlongitude":      "longitude_start_station",
		"endstationname":             "name_end_station",
		"endstationarrondissement":   "arrondissement_end_station",
		"endstationlatitude":         "latitude_end_station",
		"endstationlongitude":        "longitude_end_station",
		"starttimems":                "start_date",
		"endtimems":                  "end_date",
		"start_station_code":         "code_start_station",
		"end_station_code":           "code_end_station",
	}
}

var DefaultOutputColumns = []string{"start_date", "end_date", "name_start_station", "name_end_station"}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:     getEnv("DB_PATH", filepath.Join(cwd, "data", "bixi.db")),
		RawDataDir: getEnv("RAW_DATA_DIR", filepath.Join(cwd, "data")),
		OutputDir:  getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		CatalogURL:            getEnv("BIXI_CATALOG_URL", "https://bixi.com/en/open-data/"),
		CatalogAnchorSelector: getEnv("CATALOG_ANCHOR_SELECTOR", "a.button.button-primary"),
		CatalogStorageDomain:  getEnv("CATALOG_STORAGE_DOMAIN", "s3.ca"),
		GBFSStationInfoURL:    getEnv("GBFS_STATION_INFO_URL", "https://gbfs.velobixi.com/gbfs/en/station_information.json"),
		HTTPTimeoutMs:         getEnvInt("HTTP_TIMEOUT_MS", 300000),
		HTTPRetries:           getEnvInt("HTTP_RETRIES", 2),
		HTTPRateLimitRPS:      getEnvInt("HTTP_RATE_LIMIT_RPS", 2),

		StartYear:     getEnvInt("RIDES_START_YEAR", 2014),
		EndYear:       getEnvInt("RIDES_END_YEAR", 2023),
		ColumnMapping: DefaultColumnMapping(),
		OutputColumns: getEnvList("RIDES_OUTPUT_COLUMNS", DefaultOutputColumns),

		TransformLenient:      getEnvBool("TRANSFORM_LENIENT", false),
		NormalizeStationNames: getEnvBool("NORMALIZE_STATION_NAMES", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if path := strings.TrimSpace(getEnv("COLUMN_MAPPING_FILE", "")); path != "" {
		mapping, err := LoadColumnMapping(path)
		if err != nil {
			return Config{}, err
		}
		cfg.ColumnMapping = mapping
	}

	if cfg.StartYear > cfg.EndYear {
		return Config{}, fmt.Errorf("RIDES_START_YEAR %d is after RIDES_END_YEAR %d", cfg.StartYear, cfg.EndYear)
	}

	return cfg, nil
}

// LoadColumnMapping reads a JSON object of raw name -> unified name. Keys are
// lowercased and trimmed like the column names they are matched against.
func LoadColumnMapping(path string) (map[string]string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read column mapping: %w", err)
	}
	var raw map[string]string
	if err := json.Unmarshal(blob, &raw); err != nil {
		return nil, fmt.Errorf("parse column mapping %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value := getEnv(key, "")
	out := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
