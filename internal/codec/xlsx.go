package codec

import (
	"io"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/digits"
)

const sheetName = "Sheet1"

// decodeXLSX reads the first worksheet. Cells are read twice, formatted and
// raw: numeric cells keep their raw number unless their display text is a
// date or time, in which case the display text is kept.
func decodeXLSX(r io.Reader) (*dataset.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, decodeError("invalid spreadsheet: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, emptyFileError()
	}
	sheet := sheets[0]

	formatted, err := f.GetRows(sheet)
	if err != nil {
		return nil, decodeError("invalid spreadsheet: %v", err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, decodeError("invalid spreadsheet: %v", err)
	}
	if len(formatted) == 0 {
		return nil, emptyFileError()
	}

	n := max(width(formatted), width(raw))
	columns := headerNames(pad(formatted[0], n))

	rows := make([][]dataset.Value, 0, len(formatted)-1)
	for i := 1; i < len(formatted); i++ {
		display := pad(formatted[i], n)
		values := display
		if i < len(raw) {
			values = pad(raw[i], n)
		}

		vals := make([]dataset.Value, n)
		for j := 0; j < n; j++ {
			v, err := xlsxCell(f, sheet, j+1, i+1, values[j], display[j])
			if err != nil {
				return nil, err
			}
			vals[j] = v
		}
		rows = append(rows, vals)
	}
	return dataset.New(columns, rows)
}

func xlsxCell(f *excelize.File, sheet string, col, row int, raw, display string) (dataset.Value, error) {
	if raw == "" && display == "" {
		return dataset.Null(), nil
	}
	if display == "" {
		display = raw
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsInf(num, 0) || math.IsNaN(num) {
		return dataset.Text(display), nil
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return dataset.Value{}, decodeError("invalid cell reference: %v", err)
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return dataset.Value{}, decodeError("reading cell %s: %v", cell, err)
	}

	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString,
		excelize.CellTypeBool, excelize.CellTypeError:
		return dataset.Text(display), nil
	case excelize.CellTypeFormula:
		// t="str" marks both formula results and plain strings; only a real
		// formula carries a numeric result.
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil || formula == "" {
			return dataset.Text(display), nil
		}
	}

	if digits.LooksNumeric(display) || !dateLike(display) {
		return dataset.Number(num), nil
	}
	return dataset.Text(display), nil
}

// dateLike reports whether display text looks like a formatted date or time
// rather than a formatted number.
func dateLike(s string) bool {
	for i, r := range s {
		switch {
		case r == '/' || r == ':':
			return true
		case r == '-' && i > 0:
			return true
		case unicode.IsLetter(r):
			return true
		}
	}
	return false
}

func encodeXLSX(w io.Writer, ds *dataset.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	header := make([]interface{}, ds.NumColumns())
	for j, c := range ds.Columns() {
		header[j] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	row := make([]interface{}, ds.NumColumns())
	for i := 0; i < ds.NumRows(); i++ {
		for j := range row {
			v := ds.At(i, j)
			switch v.Kind() {
			case dataset.KindNumber:
				row[j], _ = v.Float()
			case dataset.KindText:
				row[j], _ = v.Str()
			default:
				row[j] = nil
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.Write(w)
}
