package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"bixi/internal/frame"
)

func WriteCSV(f *frame.Frame, w io.Writer) error {
	return frame.WriteCSV(w, f)
}

// ExportCSV writes f to outputPath, creating parent directories.
func ExportCSV(f *frame.Frame, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, out); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// ExportXLSX streams f into the first sheet of a new workbook. Frames with
// more rows than a sheet holds are rejected.
func ExportXLSX(f *frame.Frame, outputPath string) error {
	if f.Len()+1 > excelize.TotalRows {
		return fmt.Errorf("%d rows do not fit in one sheet (max %d)", f.Len(), excelize.TotalRows-1)
	}

	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)

	sw, err := book.NewStreamWriter(sheet)
	if err != nil {
		return err
	}

	headers := make([]any, len(f.Columns))
	for i, c := range f.Columns {
		headers[i] = c
	}
	if err := sw.SetRow("A1", headers); err != nil {
		return err
	}

	for i, row := range f.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := make([]any, len(row))
		copy(values, row)
		if err := sw.SetRow(cell, values); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return book.SaveAs(outputPath)
}
