package catalog

import (
	"context"
	"fmt"

	"bixi/internal"
)

type stationInformationPayload struct {
	LastUpdated int64 `json:"last_updated"`
	Data        struct {
		Stations []internal.StationInfo `json:"stations"`
	} `json:"data"`
}

// FetchStationInformation reads the GBFS station_information feed.
func (c *Client) FetchStationInformation(ctx context.Context) ([]internal.StationInfo, error) {
	var payload stationInformationPayload
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&payload).
		ForceContentType("application/json").
		Get(c.cfg.GBFSStationInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch station information: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: status=%d url=%s", ErrUnexpectedStatus, resp.StatusCode(), c.cfg.GBFSStationInfoURL)
	}

	out := make([]internal.StationInfo, 0, len(payload.Data.Stations))
	for _, s := range payload.Data.Stations {
		if s.StationID == "" || s.Name == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
