package frame

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffStart_Date,Emplacement_Pk_Start,is_member\n2019-04-14 07:55:22,6209,1\n2019-04-14 08:00:00,6436\n"
	f, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []string{"Start_Date", "Emplacement_Pk_Start", "is_member"}, f.Columns)
	require.Equal(t, 2, f.Len())
	require.Nil(t, f.Rows[1][2])

	empty, err := ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())
	require.Empty(t, empty.Columns)
}

func TestRenameColumns(t *testing.T) {
	f := New(" PK ", "Name")
	f.Append("1", "a")

	out, err := f.RenameColumns(strings.ToLower, map[string]string{" pk ": "code"})
	require.NoError(t, err)
	require.Equal(t, []string{"code", "name"}, out.Columns)

	_, err = f.RenameColumns(nil, map[string]string{" PK ": "Name"})
	require.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestSelectAndDrop(t *testing.T) {
	f := New("a", "b", "c")
	f.Append("1", "2", "3")

	sel, err := f.Select([]string{"c", "a"})
	require.NoError(t, err)
	require.Equal(t, []any{"3", "1"}, sel.Rows[0])

	_, err = f.Select([]string{"z"})
	require.ErrorIs(t, err, ErrMissingColumn)

	filled := f.SelectFill([]string{"a", "z"})
	require.Equal(t, []any{"1", nil}, filled.Rows[0])

	dropped := f.Drop("b", "missing")
	require.Equal(t, []string{"a", "c"}, dropped.Columns)
	require.Same(t, f, f.Drop("missing"))
}

func TestLeftJoin(t *testing.T) {
	rides := New("code_start_station", "start_date")
	rides.Append("A", "t1")
	rides.Append("B", "t2")
	rides.Append("Z", "t3")

	stations := New("code", "name", "latitude")
	stations.Append("A", "alpha", "45.1")
	stations.Append("B", "beta", "45.2")
	stations.Append("A", "alpha-dup", "0")

	out, err := LeftJoin(rides, stations, "code_start_station", "code", "_start_station")
	require.NoError(t, err)
	require.Equal(t, []string{"code_start_station", "start_date", "name_start_station", "latitude_start_station"}, out.Columns)
	require.Equal(t, 3, out.Len())
	require.Equal(t, []any{"A", "t1", "alpha", "45.1"}, out.Rows[0])
	require.Equal(t, []any{"B", "t2", "beta", "45.2"}, out.Rows[1])
	require.Equal(t, []any{"Z", "t3", nil, nil}, out.Rows[2])

	_, err = LeftJoin(rides, stations, "code_end_station", "code", "_end_station")
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestConcat(t *testing.T) {
	a := New("x", "y")
	a.Append("1", "2")
	b := New("y", "z")
	b.Append("3", "4")

	out := Concat(a, nil, b)
	require.Equal(t, []string{"x", "y", "z"}, out.Columns)
	require.Equal(t, [][]any{{"1", "2", nil}, {nil, "3", "4"}}, out.Rows)
}

func TestWriteCSV(t *testing.T) {
	f := New("start_date", "name")
	f.Append(time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC), nil)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, f))
	require.Equal(t, "start_date,name\n2023-04-01T12:00:00Z,\n", buf.String())
}
