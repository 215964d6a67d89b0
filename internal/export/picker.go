package export

import (
	"errors"
	"fmt"
)

// ErrAborted is returned by a ColumnPicker when the user abandons column
// selection. It cancels writing the current file only; the run continues
// with the remaining files.
var ErrAborted = errors.New("export: column selection abandoned")

// ColumnPicker narrows the computed column set before a file is written.
// It is a synchronous external collaborator (typically a user-facing
// dialog); the exporter works correctly with the pass-through default.
type ColumnPicker interface {
	// Pick returns the subset of columns to write, preserving order, or
	// ErrAborted to skip the file.
	Pick(title string, columns []string) ([]string, error)
}

// PassThrough is the default picker: it keeps every column.
type PassThrough struct{}

func (PassThrough) Pick(_ string, columns []string) ([]string, error) {
	return columns, nil
}

// excelColumnLimit is the spreadsheet column limit that, combined with the
// ExcelLimits option, forces the picker to be consulted.
const excelColumnLimit = 256

// pickColumns consults the configured picker when column picking is enabled
// or the Excel column limit would be exceeded. The bool result reports that
// the user abandoned the file.
func (e *Exporter) pickColumns(title string, columns []string) ([]string, bool, error) {
	if !e.opt.PickColumns && !(e.opt.ExcelLimits && len(columns) >= excelColumnLimit) {
		return columns, false, nil
	}
	picked, err := e.opt.Picker.Pick(title, columns)
	if errors.Is(err, ErrAborted) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pick columns: %w", err)
	}
	return picked, false, nil
}
