package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bixi/internal"
	"bixi/internal/archive"
	"bixi/internal/config"
)

func TestTransformEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2021, legacyArchive2021()...)
	writeArchive(t, root, 2022, modernArchive2022()...)

	p, err := New(testOptions(root, 2021, 2022, &fakeSource{}, nil))
	require.NoError(t, err)

	out, report := p.Transform(context.Background())
	require.NoError(t, report.Err())
	require.Equal(t, internal.StageTransform, report.Stage)
	require.Equal(t, config.DefaultOutputColumns, out.Columns)
	require.Equal(t, 5, out.Len())
	require.Equal(t, 2, report.Results[0].Rows)
	require.Equal(t, 3, report.Results[1].Rows)

	// 2021 rows come first.
	v, _ := out.Value(0, "start_date")
	require.Equal(t, time.Date(2021, 5, 1, 8, 0, 0, 0, time.UTC), v)
	v, _ = out.Value(0, "name_end_station")
	require.Equal(t, "Rue St-Denis / Sherbrooke", v)

	v, _ = out.Value(2, "start_date")
	require.Equal(t, time.Date(2022, 5, 1, 8, 0, 0, 0, time.UTC), v)
	v, _ = out.Value(2, "name_start_station")
	require.Equal(t, "Métro Côte-Vertu", v)
	v, _ = out.Value(4, "end_date")
	require.Nil(t, v)
}

func TestTransformModernPassthrough(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2022, modernArchive2022()...)

	opts := testOptions(root, 2022, 2022, &fakeSource{}, nil)
	opts.OutputColumns = []string{"name_start_station", "latitude_end_station"}
	p, err := New(opts)
	require.NoError(t, err)

	out, report := p.Transform(context.Background())
	require.NoError(t, report.Err())
	require.Equal(t, []string{"name_start_station", "latitude_end_station"}, out.Columns)
	require.Equal(t, 3, out.Len())
	v, _ := out.Value(1, "latitude_end_station")
	require.Equal(t, "45.51", v)
}

func TestTransformMultipleRideFiles(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2019,
		member{"Stations_2019.csv", stations2021},
		member{"OD_2019-04.csv", "start_date,start_station_code,end_date,end_station_code\n2019-04-15 07:30:00,A,2019-04-15 07:45:00,B\n"},
		member{"OD_2019-05.csv", "Start_Date,Start_Station_Code,End_Date,End_Station_Code\n2019-05-15 07:30:00,B,2019-05-15 07:45:00,A\n"},
	)

	p, err := New(testOptions(root, 2019, 2019, &fakeSource{}, nil))
	require.NoError(t, err)

	out, report := p.Transform(context.Background())
	require.NoError(t, report.Err())
	require.Equal(t, 2, out.Len())
	v, _ := out.Value(1, "name_start_station")
	require.Equal(t, "Rue St-Denis / Sherbrooke", v)
}

func TestTransformFailuresAreReported(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2020, member{"OD_2020.csv", rides2021})
	writeArchive(t, root, 2022, modernArchive2022()...)

	p, err := New(testOptions(root, 2019, 2022, &fakeSource{}, nil))
	require.NoError(t, err)

	out, report := p.Transform(context.Background())
	require.Equal(t, 3, out.Len())
	require.Equal(t, 1, report.OKCount())

	failed := report.Failed()
	require.Len(t, failed, 3)
	require.Equal(t, 2019, failed[0].Year)
	require.Contains(t, failed[0].Err.Error(), archive.Path(root, 2019))
	require.Equal(t, 2020, failed[1].Year)
	require.ErrorIs(t, failed[1].Err, ErrNoStationsFile)
	require.Equal(t, 2021, failed[2].Year)
}

func TestTransformNoRideFiles(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2021, member{"Stations_2021.csv", stations2021})

	p, err := New(testOptions(root, 2021, 2021, &fakeSource{}, nil))
	require.NoError(t, err)

	out, report := p.Transform(context.Background())
	require.ErrorIs(t, report.Err(), ErrNoRideFiles)
	require.Equal(t, config.DefaultOutputColumns, out.Columns)
	require.Equal(t, 0, out.Len())
}

func TestTransformStrictAndLenient(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2022, member{"DonneesOuvertes2022.csv",
		"startstationname,endstationname,duration\nA,B,10\n"})

	strict, err := New(testOptions(root, 2022, 2022, &fakeSource{}, nil))
	require.NoError(t, err)
	_, report := strict.Transform(context.Background())
	require.ErrorIs(t, report.Err(), ErrMissingColumn)

	opts := testOptions(root, 2022, 2022, &fakeSource{}, nil)
	opts.Lenient = true
	lenient, err := New(opts)
	require.NoError(t, err)

	out, report := lenient.Transform(context.Background())
	require.NoError(t, report.Err())
	require.Equal(t, 1, out.Len())
	require.Equal(t, []any{nil, nil, "A", "B"}, out.Rows[0])
}

func TestTransformStrictMissingOutputColumn(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2022, modernArchive2022()...)

	opts := testOptions(root, 2022, 2022, &fakeSource{}, nil)
	opts.OutputColumns = []string{"start_date", "rideable_type"}
	p, err := New(opts)
	require.NoError(t, err)

	_, report := p.Transform(context.Background())
	require.ErrorIs(t, report.Err(), ErrMissingColumn)
	require.ErrorContains(t, report.Err(), "rideable_type")
}

func TestTransformNormalizesNames(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2021, legacyArchive2021()...)

	opts := testOptions(root, 2021, 2021, &fakeSource{}, nil)
	opts.NormalizeNames = true
	p, err := New(opts)
	require.NoError(t, err)

	out, report := p.Transform(context.Background())
	require.NoError(t, report.Err())
	starts, err := out.Column("name_start_station")
	require.NoError(t, err)
	require.Equal(t, []any{"mtrocte-vertu", "ruest-denis_sherbrooke"}, starts)
}

func TestTransformRecordsRun(t *testing.T) {
	root := t.TempDir()
	writeArchive(t, root, 2022, modernArchive2022()...)

	var stages []internal.Stage
	opts := testOptions(root, 2022, 2022, &fakeSource{}, nil)
	opts.Recorder = recorderFunc(func(r internal.Report) error {
		stages = append(stages, r.Stage)
		return nil
	})
	p, err := New(opts)
	require.NoError(t, err)

	_, report := p.Transform(context.Background())
	require.NoError(t, report.Err())
	require.Equal(t, []internal.Stage{internal.StageTransform}, stages)
}
