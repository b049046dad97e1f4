package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bixi/internal/config"
	"bixi/internal/frame"
)

func TestStandardizeColumnsModernEpoch(t *testing.T) {
	raw, err := frame.ReadCSV(strings.NewReader(" StartTimeMS ,EndTimeMS,STARTSTATIONNAME\n1688212800000,1688212800000,Métro\n"))
	require.NoError(t, err)

	out, err := StandardizeColumns(raw, config.DefaultColumnMapping(), 2023)
	require.NoError(t, err)
	require.Equal(t, []string{"start_date", "end_date", "name_start_station"}, out.Columns)

	v, _ := out.Value(0, "start_date")
	require.Equal(t, time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC), v)
}

func TestStandardizeColumnsLegacyDatetime(t *testing.T) {
	raw, err := frame.ReadCSV(strings.NewReader("StartTimeMS,EndTimeMS\n2019-04-15 07:30:00,\n"))
	require.NoError(t, err)

	out, err := StandardizeColumns(raw, config.DefaultColumnMapping(), 2019)
	require.NoError(t, err)

	v, _ := out.Value(0, "start_date")
	require.Equal(t, time.Date(2019, 4, 15, 7, 30, 0, 0, time.UTC), v)
	v, _ = out.Value(0, "end_date")
	require.Nil(t, v)
}

func TestStandardizeColumnsLeavesInputUntouched(t *testing.T) {
	raw, err := frame.ReadCSV(strings.NewReader("start_date,end_date\n2019-04-15 07:30:00,2019-04-15 07:45:00\n"))
	require.NoError(t, err)

	_, err = StandardizeColumns(raw, config.DefaultColumnMapping(), 2019)
	require.NoError(t, err)
	v, _ := raw.Value(0, "start_date")
	require.Equal(t, "2019-04-15 07:30:00", v)
}

func TestStandardizeColumnsWithoutStartDate(t *testing.T) {
	raw, err := frame.ReadCSV(strings.NewReader("PK,Name,Latitude\nA,Station A,45.5\n"))
	require.NoError(t, err)

	out, err := StandardizeColumns(raw, config.DefaultColumnMapping(), 2019)
	require.NoError(t, err)
	require.Equal(t, []string{"code", "name", "latitude"}, out.Columns)
}

func TestStandardizeColumnsErrors(t *testing.T) {
	raw, err := frame.ReadCSV(strings.NewReader("start_date,end_date\nyesterday,2019-04-15 07:45:00\n"))
	require.NoError(t, err)
	_, err = StandardizeColumns(raw, config.DefaultColumnMapping(), 2019)
	require.ErrorContains(t, err, "column start_date row 1")

	raw, err = frame.ReadCSV(strings.NewReader("start_date\n2019-04-15 07:30:00\n"))
	require.NoError(t, err)
	_, err = StandardizeColumns(raw, config.DefaultColumnMapping(), 2019)
	require.ErrorIs(t, err, frame.ErrMissingColumn)

	raw, err = frame.ReadCSV(strings.NewReader("start_station_code,emplacement_pk_start\nA,A\n"))
	require.NoError(t, err)
	_, err = StandardizeColumns(raw, config.DefaultColumnMapping(), 2019)
	require.ErrorIs(t, err, frame.ErrDuplicateColumn)
}
