// Package transform holds the dataset operations. Every function is pure: it
// reads its inputs, never modifies them, and returns a new dataset or an
// error of the dataset.Error type. Nothing here knows about file ids.
package transform

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/USFAkbari/Excel-Tools/internal/coerce"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// Merge concatenates the rows of every input. The result's columns are the
// union of the inputs' columns in first-seen order; cells a source row lacks
// are Null.
func Merge(inputs ...*dataset.Dataset) (*dataset.Dataset, error) {
	if len(inputs) < 2 {
		return nil, dataset.Validationf("merge", "at least 2 files are required, got %d", len(inputs))
	}

	var columns []string
	seen := map[string]int{}
	total := 0
	for _, in := range inputs {
		for _, c := range in.Columns() {
			if _, ok := seen[c]; !ok {
				seen[c] = len(columns)
				columns = append(columns, c)
			}
		}
		total += in.NumRows()
	}

	rows := make([][]dataset.Value, 0, total)
	for _, in := range inputs {
		pos := make([]int, in.NumColumns())
		for j, c := range in.Columns() {
			pos[j] = seen[c]
		}
		for i := 0; i < in.NumRows(); i++ {
			vals := make([]dataset.Value, len(columns))
			for j, p := range pos {
				vals[p] = in.At(i, j)
			}
			rows = append(rows, vals)
		}
	}
	return dataset.New(columns, rows)
}

// DeduplicateMerge collapses rows whose key columns compare equal. In a group
// with more than one row, each non-key column becomes the exact decimal sum of
// its cells when all of them are numeric, otherwise the first row's cell.
// Groups keep the position of their first row.
func DeduplicateMerge(ds *dataset.Dataset, keys []string) (*dataset.Dataset, error) {
	const op = "deduplicate_merge"
	if len(keys) == 0 {
		return nil, dataset.Validationf(op, "at least one duplicate column is required")
	}
	keyPos, err := positions(op, ds, keys)
	if err != nil {
		return nil, err
	}
	isKey := make([]bool, ds.NumColumns())
	for _, p := range keyPos {
		isKey[p] = true
	}

	order, groups := groupRows(ds, keyPos)

	rows := make([][]dataset.Value, 0, len(order))
	for _, k := range order {
		members := groups[k]
		if len(members) == 1 {
			rows = append(rows, ds.Values(members[0]))
			continue
		}
		vals := ds.Values(members[0])
		for j := range vals {
			if isKey[j] {
				continue
			}
			sum, ok, err := sumColumn(op, ds, members, j)
			if err != nil {
				return nil, err
			}
			if ok {
				vals[j] = sum
			}
		}
		rows = append(rows, vals)
	}
	return dataset.New(ds.Columns(), rows)
}

// groupRows buckets row indices by the coerce.Key of the given columns and
// returns the bucket keys in order of first appearance.
func groupRows(ds *dataset.Dataset, cols []int) ([]string, map[string][]int) {
	var order []string
	groups := map[string][]int{}
	for i := 0; i < ds.NumRows(); i++ {
		k := rowKey(ds, i, cols)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	return order, groups
}

func rowKey(ds *dataset.Dataset, row int, cols []int) string {
	if len(cols) == 1 {
		return coerce.Key(ds.At(row, cols[0]))
	}
	var b []byte
	for _, j := range cols {
		b = append(b, coerce.Key(ds.At(row, j))...)
		b = append(b, 0x1f)
	}
	return string(b)
}

// sumColumn adds the cells of col over rows. ok is false when a cell has no
// numeric reading. A sum outside the float64 range fails against the group's
// first row.
func sumColumn(op string, ds *dataset.Dataset, rows []int, col int) (dataset.Value, bool, error) {
	total := decimal.Zero
	for _, i := range rows {
		f, err := coerce.AsNumber(ds.At(i, col))
		if err != nil {
			return dataset.Value{}, false, nil
		}
		total = total.Add(decimal.NewFromFloat(f))
	}
	sum := total.InexactFloat64()
	if math.IsInf(sum, 0) || math.IsNaN(sum) {
		return dataset.Value{}, false, dataset.CellError(dataset.Eval, op, ds.Columns()[col], rows[0],
			errors.New("sum is not a finite number"))
	}
	return dataset.Number(sum), true, nil
}

// positions resolves column names to positions, failing on the first absent one.
func positions(op string, ds *dataset.Dataset, columns []string) ([]int, error) {
	out := make([]int, len(columns))
	for k, c := range columns {
		j, ok := ds.ColumnIndex(c)
		if !ok {
			return nil, dataset.ColumnError(dataset.Validation, op, c, "column does not exist")
		}
		out[k] = j
	}
	return out, nil
}
