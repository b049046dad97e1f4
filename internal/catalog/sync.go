package catalog

import (
	"context"
	"time"

	"bixi/internal"
	"bixi/internal/config"
	"bixi/internal/storage"
	"bixi/internal/util"
)

const lastStationSyncKey = "stations.last_sync"

// StationSyncService keeps the stations table in line with the live GBFS feed.
type StationSyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
	now    func() time.Time
}

func NewStationSyncService(db *storage.DB, client *Client, cfg config.Config) *StationSyncService {
	return &StationSyncService{db: db, client: client, cfg: cfg, now: time.Now}
}

// Sync fetches station information, stores it with normalized names and
// returns the number of stations written.
func (s *StationSyncService) Sync(ctx context.Context) (int, error) {
	if err := s.cfg.Require("GBFS_STATION_INFO_URL", s.cfg.GBFSStationInfoURL); err != nil {
		return 0, err
	}
	stations, err := s.client.FetchStationInformation(ctx)
	if err != nil {
		return 0, err
	}

	names := make([]string, len(stations))
	for i, st := range stations {
		names[i] = st.Name
	}
	normalized := util.NormalizeStationNames(names)

	seen := s.now().UTC().Format(time.RFC3339)
	rows := make([]internal.StationRow, len(stations))
	for i, st := range stations {
		rows[i] = internal.StationRow{StationInfo: st, NormalizedName: normalized[i], LastSeenAt: seen}
	}
	if err := s.db.UpsertStations(rows); err != nil {
		return 0, err
	}
	if err := s.db.SetMetadata(lastStationSyncKey, seen); err != nil {
		return 0, err
	}
	s.client.logger.Info("stations synced", "count", len(rows))
	return len(rows), nil
}

// LastSync returns the time of the last successful sync, nil if none.
func (s *StationSyncService) LastSync() (*time.Time, error) {
	raw, err := s.db.GetMetadata(lastStationSyncKey)
	if err != nil || raw == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
