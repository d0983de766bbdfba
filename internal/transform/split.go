package transform

import (
	"strconv"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// SplitMethod selects how Split partitions rows.
type SplitMethod string

const (
	ByColumn   SplitMethod = "by_column"
	ByRowCount SplitMethod = "by_row_count"
)

// Part is one output of a split. Label is the distinct value for by_column
// splits and the 1-based chunk number for by_row_count splits.
type Part struct {
	Label   string
	Dataset *dataset.Dataset
}

// SplitByColumn partitions rows by the distinct values of column. Parts are
// returned in order of each value's first appearance, rows keep their order.
func SplitByColumn(ds *dataset.Dataset, column string) ([]Part, error) {
	const op = "split"
	j, ok := ds.ColumnIndex(column)
	if !ok {
		return nil, dataset.ColumnError(dataset.Validation, op, column, "column does not exist")
	}

	order, groups := groupRows(ds, []int{j})
	parts := make([]Part, 0, len(order))
	for _, k := range order {
		members := groups[k]
		parts = append(parts, Part{
			Label:   ds.At(members[0], j).String(),
			Dataset: ds.Select(members),
		})
	}
	return parts, nil
}

// SplitByRowCount chunks rows into consecutive parts of size rows; the last
// part holds the remainder. An empty dataset yields no parts.
func SplitByRowCount(ds *dataset.Dataset, size int) ([]Part, error) {
	if size <= 0 {
		return nil, dataset.Validationf("split", "row count must be positive, got %d", size)
	}
	n := ds.NumRows()
	parts := make([]Part, 0, (n+size-1)/size)
	for from := 0; from < n; from += size {
		to := min(from+size, n)
		parts = append(parts, Part{
			Label:   strconv.Itoa(len(parts) + 1),
			Dataset: ds.Slice(from, to),
		})
	}
	return parts, nil
}

// Split dispatches to SplitByColumn or SplitByRowCount.
func Split(ds *dataset.Dataset, method SplitMethod, column string, rowCount int) ([]Part, error) {
	switch method {
	case ByColumn:
		if column == "" {
			return nil, dataset.Validationf("split", "column is required for by_column")
		}
		return SplitByColumn(ds, column)
	case ByRowCount:
		return SplitByRowCount(ds, rowCount)
	}
	return nil, dataset.Validationf("split", "method must be by_column or by_row_count, got %q", method)
}
