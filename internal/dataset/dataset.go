// Package dataset defines the in-memory table that every transformation
// reads and produces.
//
// A Dataset is an ordered list of unique column names plus ordered rows.
// Rows are stored as value slices aligned with the column list, so a row
// can never miss or add a column. Datasets are never modified after New
// returns; derived datasets may share row storage with their source.
package dataset

import "fmt"

// Row is a mapping from column name to cell, used at the API boundary.
type Row map[string]Value

// Dataset is an immutable table.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// New builds a dataset from columns and positional rows.
// Column names must be non-empty and unique, and every row must have exactly
// one value per column. New takes ownership of both slices.
func New(columns []string, rows [][]Value) (*Dataset, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, &Error{
				Kind: Validation, Op: "dataset", Row: i, Pos: -1,
				Msg: fmt.Sprintf("row has %d values, want %d", len(r), len(columns)),
			}
		}
	}
	if rows == nil {
		rows = [][]Value{}
	}
	return &Dataset{columns: columns, index: index, rows: rows}, nil
}

// MustNew is New that panics on error, for literals in tests and fixtures.
func MustNew(columns []string, rows [][]Value) *Dataset {
	ds, err := New(columns, rows)
	if err != nil {
		panic(err)
	}
	return ds
}

// FromRows builds a dataset from keyed rows. Columns a row does not mention
// are Null; keys that are not in columns are rejected.
func FromRows(columns []string, rows []Row) (*Dataset, error) {
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	out := make([][]Value, len(rows))
	for i, r := range rows {
		vals := make([]Value, len(columns))
		for k, v := range r {
			j, ok := index[k]
			if !ok {
				return nil, &Error{Kind: Validation, Op: "dataset", Column: k, Row: i, Pos: -1, Msg: "unknown column"}
			}
			vals[j] = v
		}
		out[i] = vals
	}
	return &Dataset{columns: columns, index: index, rows: out}, nil
}

func buildIndex(columns []string) (map[string]int, error) {
	if len(columns) == 0 {
		return nil, Validationf("dataset", "at least one column is required")
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return nil, Validationf("dataset", "column %d has an empty name", i)
		}
		if _, dup := index[c]; dup {
			return nil, ColumnError(Validation, "dataset", c, "duplicate column name")
		}
		index[c] = i
	}
	return index, nil
}

// Columns returns a copy of the column names in order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

func (d *Dataset) NumColumns() int { return len(d.columns) }
func (d *Dataset) NumRows() int    { return len(d.rows) }

// ColumnIndex returns the position of name.
func (d *Dataset) ColumnIndex(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// HasColumn reports whether name is one of the dataset's columns.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// At returns the cell at row i, column position j.
func (d *Dataset) At(i, j int) Value { return d.rows[i][j] }

// Cell returns the cell at row i in the named column, or Null if the column
// does not exist.
func (d *Dataset) Cell(i int, column string) Value {
	j, ok := d.index[column]
	if !ok {
		return Null()
	}
	return d.rows[i][j]
}

// Values returns a copy of row i in column order.
func (d *Dataset) Values(i int) []Value {
	out := make([]Value, len(d.columns))
	copy(out, d.rows[i])
	return out
}

// Row returns row i as a keyed map.
func (d *Dataset) Row(i int) Row {
	r := make(Row, len(d.columns))
	for j, c := range d.columns {
		r[c] = d.rows[i][j]
	}
	return r
}

// Rows returns every row as a keyed map.
func (d *Dataset) Rows() []Row {
	out := make([]Row, len(d.rows))
	for i := range d.rows {
		out[i] = d.Row(i)
	}
	return out
}

// Column returns a copy of every cell in the named column.
func (d *Dataset) Column(name string) ([]Value, bool) {
	j, ok := d.index[name]
	if !ok {
		return nil, false
	}
	out := make([]Value, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[j]
	}
	return out, true
}

// Select returns a dataset with the given rows, in the given order.
// Row storage is shared with d.
func (d *Dataset) Select(indices []int) *Dataset {
	rows := make([][]Value, len(indices))
	for k, i := range indices {
		rows[k] = d.rows[i]
	}
	return &Dataset{columns: d.columns, index: d.index, rows: rows}
}

// Slice returns rows [from, to). Row storage is shared with d.
func (d *Dataset) Slice(from, to int) *Dataset {
	rows := make([][]Value, to-from)
	copy(rows, d.rows[from:to])
	return &Dataset{columns: d.columns, index: d.index, rows: rows}
}

// Project returns a dataset holding only columns, in that order.
func (d *Dataset) Project(columns []string) (*Dataset, error) {
	pos := make([]int, len(columns))
	for k, c := range columns {
		j, ok := d.index[c]
		if !ok {
			return nil, ColumnError(Validation, "project", c, "column does not exist")
		}
		pos[k] = j
	}
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	rows := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		vals := make([]Value, len(pos))
		for k, j := range pos {
			vals[k] = r[j]
		}
		rows[i] = vals
	}
	return &Dataset{columns: append([]string(nil), columns...), index: index, rows: rows}, nil
}

// WithColumnNames returns a dataset whose columns are renamed positionally.
// Row storage is shared with d.
func (d *Dataset) WithColumnNames(names []string) (*Dataset, error) {
	if len(names) != len(d.columns) {
		return nil, Validationf("rename", "got %d names for %d columns", len(names), len(d.columns))
	}
	index, err := buildIndex(names)
	if err != nil {
		return nil, err
	}
	return &Dataset{columns: append([]string(nil), names...), index: index, rows: d.rows}, nil
}

// AppendColumn returns a dataset with one more column at the end.
func (d *Dataset) AppendColumn(name string, values []Value) (*Dataset, error) {
	if len(values) != len(d.rows) {
		return nil, Validationf("append column", "got %d values for %d rows", len(values), len(d.rows))
	}
	columns := append(d.Columns(), name)
	index, err := buildIndex(columns)
	if err != nil {
		return nil, err
	}
	rows := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		vals := make([]Value, len(r)+1)
		copy(vals, r)
		vals[len(r)] = values[i]
		rows[i] = vals
	}
	return &Dataset{columns: columns, index: index, rows: rows}, nil
}

// MapColumns returns a dataset where every cell of the listed column positions
// is replaced by fn(row, column, cell). Rows that no cell changed are shared.
func (d *Dataset) MapColumns(positions []int, fn func(row int, column string, v Value) (Value, error)) (*Dataset, error) {
	rows := make([][]Value, len(d.rows))
	for i, r := range d.rows {
		var vals []Value
		for _, j := range positions {
			nv, err := fn(i, d.columns[j], r[j])
			if err != nil {
				return nil, err
			}
			if nv.Equal(r[j]) {
				continue
			}
			if vals == nil {
				vals = make([]Value, len(r))
				copy(vals, r)
			}
			vals[j] = nv
		}
		if vals == nil {
			rows[i] = r
		} else {
			rows[i] = vals
		}
	}
	return &Dataset{columns: d.columns, index: d.index, rows: rows}, nil
}

// Equal reports whether two datasets have the same columns and cells.
func (d *Dataset) Equal(o *Dataset) bool {
	if len(d.columns) != len(o.columns) || len(d.rows) != len(o.rows) {
		return false
	}
	for i, c := range d.columns {
		if o.columns[i] != c {
			return false
		}
	}
	for i, r := range d.rows {
		for j, v := range r {
			if !v.Equal(o.rows[i][j]) {
				return false
			}
		}
	}
	return true
}
