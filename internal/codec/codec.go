// Package codec converts between spreadsheet files and datasets.
//
// xlsx/xlsm files are read and written with excelize; CSV goes through
// encoding/csv behind BOM and UTF-8 cleanup. Numbers stay numbers, text stays
// text and column order is preserved in both directions.
package codec

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// Format is a supported file format.
type Format string

const (
	XLSX Format = "xlsx"
	CSV  Format = "csv"
)

// FormatFromName picks the format from a file name's extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return XLSX, nil
	case ".csv":
		return CSV, nil
	}
	return "", decodeError("unsupported file type %q", filepath.Ext(name))
}

// ParseFormat accepts "xlsx" or "csv" (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case XLSX, "":
		return XLSX, nil
	case CSV:
		return CSV, nil
	}
	return "", dataset.Validationf("encode", "unsupported download format %q", s)
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	if f == CSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension is the file extension, with the dot, written for f.
func (f Format) Extension() string { return "." + string(f) }

// Decode reads a dataset in format f from r. The first row holds the column
// names.
func Decode(r io.Reader, f Format) (*dataset.Dataset, error) {
	switch f {
	case XLSX:
		return decodeXLSX(r)
	case CSV:
		return decodeCSV(r)
	}
	return nil, decodeError("unsupported format %q", f)
}

// Encode writes ds to w in format f.
func Encode(w io.Writer, ds *dataset.Dataset, f Format) error {
	switch f {
	case XLSX:
		return encodeXLSX(w, ds)
	case CSV:
		return encodeCSV(w, ds)
	}
	return dataset.Validationf("encode", "unsupported format %q", f)
}

func decodeError(format string, args ...any) *dataset.Error {
	return dataset.Validationf("decode", format, args...)
}

// headerNames turns a raw header row into unique, non-empty column names.
// Blank headers become "Unnamed: <i>" and repeats get ".1", ".2" suffixes.
func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for k := 1; used[name]; k++ {
			name = h + "." + strconv.Itoa(k)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

// width is the number of columns needed to hold every row.
func width(rows [][]string) int {
	n := 0
	for _, r := range rows {
		n = max(n, len(r))
	}
	return n
}

func pad(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

func emptyFileError() error {
	return decodeError("empty file: no header row")
}
