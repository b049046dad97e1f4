// Package frame holds the in-memory table the transform stage works on.
// Cells are untyped: string as read from CSV, time.Time after date parsing,
// nil when missing.
package frame

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumn   = errors.New("missing column")
	ErrDuplicateColumn = errors.New("duplicate column")
)

type Frame struct {
	Columns []string
	Rows    [][]any
}

func New(columns ...string) *Frame {
	return &Frame{Columns: append([]string(nil), columns...)}
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

func (f *Frame) Index(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

func (f *Frame) Has(name string) bool {
	return f.Index(name) >= 0
}

// Append adds a row, padding or truncating it to the column count.
func (f *Frame) Append(values ...any) {
	row := make([]any, len(f.Columns))
	copy(row, values)
	f.Rows = append(f.Rows, row)
}

func (f *Frame) Value(row int, column string) (any, bool) {
	idx := f.Index(column)
	if idx < 0 || row < 0 || row >= len(f.Rows) {
		return nil, false
	}
	return f.Rows[row][idx], true
}

func (f *Frame) Column(name string) ([]any, error) {
	idx := f.Index(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	out := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// Clone copies the rows of f so that cell updates do not reach f.
func (f *Frame) Clone() *Frame {
	out := &Frame{Columns: append([]string(nil), f.Columns...), Rows: make([][]any, len(f.Rows))}
	for i, row := range f.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// RenameColumns rewrites every column name through fn and then through
// mapping. Rows are shared with f.
func (f *Frame) RenameColumns(fn func(string) string, mapping map[string]string) (*Frame, error) {
	cols := make([]string, len(f.Columns))
	seen := map[string]struct{}{}
	for i, c := range f.Columns {
		if fn != nil {
			c = fn(c)
		}
		if renamed, ok := mapping[c]; ok {
			c = renamed
		}
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c)
		}
		seen[c] = struct{}{}
		cols[i] = c
	}
	return &Frame{Columns: cols, Rows: f.Rows}, nil
}

// Apply replaces every value of column in place.
func (f *Frame) Apply(column string, fn func(row int, v any) (any, error)) error {
	idx := f.Index(column)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, column)
	}
	for i, row := range f.Rows {
		v, err := fn(i, row[idx])
		if err != nil {
			return err
		}
		row[idx] = v
	}
	return nil
}

// Select projects f onto columns, in that order.
func (f *Frame) Select(columns []string) (*Frame, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = f.Index(c)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return f.project(columns, idx), nil
}

// SelectFill is Select with nil cells for columns f lacks.
func (f *Frame) SelectFill(columns []string) *Frame {
	idx := make([]int, len(columns))
	for i, c := range columns {
		idx[i] = f.Index(c)
	}
	return f.project(columns, idx)
}

func (f *Frame) project(columns []string, idx []int) *Frame {
	out := &Frame{Columns: append([]string(nil), columns...), Rows: make([][]any, len(f.Rows))}
	for r, row := range f.Rows {
		next := make([]any, len(idx))
		for i, j := range idx {
			if j >= 0 {
				next[i] = row[j]
			}
		}
		out.Rows[r] = next
	}
	return out
}

// Drop removes the named columns when present.
func (f *Frame) Drop(columns ...string) *Frame {
	drop := map[string]struct{}{}
	for _, c := range columns {
		drop[c] = struct{}{}
	}
	keep := make([]string, 0, len(f.Columns))
	for _, c := range f.Columns {
		if _, ok := drop[c]; !ok {
			keep = append(keep, c)
		}
	}
	if len(keep) == len(f.Columns) {
		return f
	}
	out, _ := f.Select(keep)
	return out
}

// LeftJoin keeps every row of left and appends the columns of right, except
// the right key, renamed with suffix. The first right row per key wins, so the
// result has exactly left.Len() rows. Unmatched rows get nil cells.
func LeftJoin(left, right *Frame, leftOn, rightOn, suffix string) (*Frame, error) {
	li := left.Index(leftOn)
	if li < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, leftOn)
	}
	ri := right.Index(rightOn)
	if ri < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, rightOn)
	}

	cols := append([]string(nil), left.Columns...)
	carried := make([]int, 0, len(right.Columns))
	for i, c := range right.Columns {
		if i == ri {
			continue
		}
		name := c + suffix
		if left.Has(name) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		cols = append(cols, name)
		carried = append(carried, i)
	}

	lookup := make(map[string][]any, len(right.Rows))
	for _, row := range right.Rows {
		key := Key(row[ri])
		if key == "" {
			continue
		}
		if _, ok := lookup[key]; !ok {
			lookup[key] = row
		}
	}

	out := &Frame{Columns: cols, Rows: make([][]any, len(left.Rows))}
	for r, row := range left.Rows {
		next := make([]any, len(cols))
		copy(next, row)
		if match, ok := lookup[Key(row[li])]; ok {
			for i, j := range carried {
				next[len(left.Columns)+i] = match[j]
			}
		}
		out.Rows[r] = next
	}
	return out, nil
}

// Concat stacks frames vertically. The result has the union of all columns in
// first-seen order; cells a frame lacks are nil.
func Concat(frames ...*Frame) *Frame {
	out := &Frame{}
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, c := range f.Columns {
			if !out.Has(c) {
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, f := range frames {
		if f == nil {
			continue
		}
		idx := make([]int, len(f.Columns))
		for i, c := range f.Columns {
			idx[i] = out.Index(c)
		}
		for _, row := range f.Rows {
			next := make([]any, len(out.Columns))
			for i, j := range idx {
				next[j] = row[i]
			}
			out.Rows = append(out.Rows, next)
		}
	}
	return out
}

// Key is the join form of a cell value.
func Key(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
