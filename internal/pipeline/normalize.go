package pipeline

import (
	"bixi/internal/frame"
	"bixi/internal/util"
)

// NormalizeStationColumns rewrites the named columns of f in place through
// util.NormalizeStationNames. Columns f lacks are skipped; nil cells stay nil.
func NormalizeStationColumns(f *frame.Frame, columns ...string) error {
	for _, name := range columns {
		if !f.Has(name) {
			continue
		}
		values, err := f.Column(name)
		if err != nil {
			return err
		}

		raw := make([]string, len(values))
		for i, v := range values {
			if v != nil {
				raw[i] = frame.Format(v)
			}
		}
		cleaned := util.NormalizeStationNames(raw)

		err = f.Apply(name, func(row int, v any) (any, error) {
			if v == nil {
				return nil, nil
			}
			return cleaned[row], nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
