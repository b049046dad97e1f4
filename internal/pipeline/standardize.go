package pipeline

import (
	"fmt"
	"strings"
	"time"

	"bixi/internal/frame"
)

var dateColumns = []string{"start_date", "end_date"}

// StandardizeColumns lowercases and trims column names, applies mapping and,
// when start_date is present, converts start_date and end_date to time.Time
// using the schema of year. Empty cells become nil.
func StandardizeColumns(f *frame.Frame, mapping map[string]string, year int) (*frame.Frame, error) {
	out, err := f.RenameColumns(func(c string) string {
		return strings.ToLower(strings.TrimSpace(c))
	}, mapping)
	if err != nil {
		return nil, err
	}
	if !out.Has("start_date") {
		return out, nil
	}
	out = out.Clone()

	schema := SchemaFor(year)
	for _, col := range dateColumns {
		col := col
		err := out.Apply(col, func(row int, v any) (any, error) {
			switch t := v.(type) {
			case nil, time.Time:
				return t, nil
			case string:
				raw := strings.TrimSpace(t)
				if raw == "" {
					return nil, nil
				}
				parsed, err := schema.ParseTime(raw)
				if err != nil {
					return nil, fmt.Errorf("column %s row %d: %w", col, row+1, err)
				}
				return parsed, nil
			default:
				return nil, fmt.Errorf("column %s row %d: unexpected %T", col, row+1, v)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
