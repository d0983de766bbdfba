package codec

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/digits"
)

// decodeCSV reads comma-separated text. A column whose non-empty fields are
// all ASCII numbers becomes numeric; every other column stays text.
func decodeCSV(r io.Reader) (*dataset.Dataset, error) {
	cr := csv.NewReader(wrapText(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return nil, decodeError("invalid csv at line %d: %v", pe.Line, pe.Err)
		}
		return nil, decodeError("invalid csv: %v", err)
	}
	if len(records) == 0 {
		return nil, emptyFileError()
	}

	n := width(records)
	columns := headerNames(pad(records[0], n))
	body := records[1:]

	numeric := make([]bool, n)
	for j := range numeric {
		numeric[j] = numericColumn(body, j)
	}

	rows := make([][]dataset.Value, len(body))
	for i, rec := range body {
		rec = pad(rec, n)
		vals := make([]dataset.Value, n)
		for j, s := range rec {
			switch {
			case s == "":
				vals[j] = dataset.Null()
			case numeric[j]:
				f, _ := strconv.ParseFloat(s, 64)
				vals[j] = dataset.Number(f)
			default:
				vals[j] = dataset.Text(s)
			}
		}
		rows[i] = vals
	}
	return dataset.New(columns, rows)
}

func numericColumn(records [][]string, j int) bool {
	seen := false
	for _, rec := range records {
		if j >= len(rec) || rec[j] == "" {
			continue
		}
		s := rec[j]
		if digits.ToASCII(s) != s || !digits.LooksNumeric(s) {
			return false
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}

func encodeCSV(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns()); err != nil {
		return err
	}
	rec := make([]string, ds.NumColumns())
	for i := 0; i < ds.NumRows(); i++ {
		for j := range rec {
			rec[j] = ds.At(i, j).String()
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
