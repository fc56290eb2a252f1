// Package workbook turns spreadsheet bytes into typed, uneven cell grids in
// file-declared sheet order.
package workbook

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"cert-studio/studio-backend/pkg/apperr"
)

// CellKind tags the value held by a Cell.
type CellKind int

const (
	Empty CellKind = iota
	Text
	Number
)

// Cell is one untyped spreadsheet value.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
}

func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: Text, Text: s}
}

func NumberCell(f float64) Cell {
	return Cell{Kind: Number, Number: f}
}

// String is the single canonical string form used by every matcher. Integral
// numbers print without a fractional part or exponent.
func (c Cell) String() string {
	switch c.Kind {
	case Text:
		return c.Text
	case Number:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	default:
		return ""
	}
}

// IsBlank reports whether the cell is empty after trimming.
func (c Cell) IsBlank() bool {
	return strings.TrimSpace(c.String()) == ""
}

// Sheet is a named grid. Rows may have different lengths.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// Cell returns the cell at (row, col), or an empty cell when out of range.
func (s Sheet) Cell(row, col int) Cell {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return Cell{}
	}
	return s.Rows[row][col]
}

// Strings returns row as canonical strings.
func (s Sheet) Strings(row int) []string {
	if row < 0 || row >= len(s.Rows) {
		return nil
	}
	out := make([]string, len(s.Rows[row]))
	for i, c := range s.Rows[row] {
		out[i] = c.String()
	}
	return out
}

// Load parses an xlsx stream into sheets in declared order.
func Load(r io.Reader) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnreadableSpreadsheet, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	sheets := make([]Sheet, 0, len(names))
	for _, name := range names {
		sheet, err := readSheet(name, f.GetRows, f.GetCellType)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", apperr.ErrUnreadableSpreadsheet, name, err)
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

type (
	rowsFunc     func(sheet string, opts ...excelize.Options) ([][]string, error)
	cellTypeFunc func(sheet, cell string) (excelize.CellType, error)
)

func readSheet(name string, rows rowsFunc, cellType cellTypeFunc) (Sheet, error) {
	raw, err := rows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Sheet{}, err
	}

	sheet := Sheet{Name: name, Rows: make([][]Cell, len(raw))}
	for r, values := range raw {
		row := make([]Cell, len(values))
		for c, value := range values {
			if value == "" {
				continue
			}
			number, err := strconv.ParseFloat(value, 64)
			if err != nil {
				row[c] = TextCell(value)
				continue
			}
			// Only numeric-looking values need the type: digits stored as text stay text.
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return Sheet{}, err
			}
			kind, err := cellType(name, ref)
			if err != nil {
				return Sheet{}, err
			}
			row[c] = typedCell(kind, value, number)
		}
		sheet.Rows[r] = row
	}
	return sheet, nil
}

func typedCell(kind excelize.CellType, value string, number float64) Cell {
	switch kind {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		return NumberCell(number)
	}
	return TextCell(value)
}
