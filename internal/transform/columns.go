package transform

import (
	"sort"
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// RenameColumns renames columns in place of their old names; the column
// order does not change. Names may be swapped within one call.
func RenameColumns(ds *dataset.Dataset, mapping map[string]string) (*dataset.Dataset, error) {
	const op = "rename_columns"
	if len(mapping) == 0 {
		return nil, dataset.Validationf(op, "rename map is empty")
	}

	// Sorted for a deterministic error when several entries are invalid.
	sources := make([]string, 0, len(mapping))
	for from := range mapping {
		sources = append(sources, from)
	}
	sort.Strings(sources)

	for _, from := range sources {
		to := strings.TrimSpace(mapping[from])
		if !ds.HasColumn(from) {
			return nil, dataset.ColumnError(dataset.Validation, op, from, "column does not exist")
		}
		if to == "" {
			return nil, dataset.ColumnError(dataset.Validation, op, from, "new name is empty")
		}
	}

	old := ds.Columns()
	names := ds.Columns()
	for j, c := range names {
		if to, ok := mapping[c]; ok {
			names[j] = strings.TrimSpace(to)
		}
	}

	seen := make(map[string]string, len(names))
	for j, c := range names {
		if prev, dup := seen[c]; dup {
			return nil, dataset.ColumnError(dataset.Validation, op, c,
				"name collides with column "+prev)
		}
		seen[c] = old[j]
	}
	return ds.WithColumnNames(names)
}

// DeleteColumns drops the listed columns from the dataset.
func DeleteColumns(ds *dataset.Dataset, columns []string) (*dataset.Dataset, error) {
	const op = "delete_columns"
	if len(columns) == 0 {
		return nil, dataset.Validationf(op, "no columns to delete")
	}
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		if !ds.HasColumn(c) {
			return nil, dataset.ColumnError(dataset.Validation, op, c, "column does not exist")
		}
		drop[c] = true
	}

	var remaining []string
	for _, c := range ds.Columns() {
		if !drop[c] {
			remaining = append(remaining, c)
		}
	}
	if len(remaining) == 0 {
		return nil, dataset.Validationf(op, "cannot delete every column")
	}
	return ds.Project(remaining)
}

// ReorderColumns emits the columns in the given order, which must be a
// permutation of the existing columns.
func ReorderColumns(ds *dataset.Dataset, order []string) (*dataset.Dataset, error) {
	const op = "reorder_columns"
	if len(order) != ds.NumColumns() {
		return nil, dataset.Validationf(op, "column order lists %d columns, dataset has %d", len(order), ds.NumColumns())
	}
	seen := make(map[string]bool, len(order))
	for _, c := range order {
		if !ds.HasColumn(c) {
			return nil, dataset.ColumnError(dataset.Validation, op, c, "column does not exist")
		}
		if seen[c] {
			return nil, dataset.ColumnError(dataset.Validation, op, c, "column listed twice")
		}
		seen[c] = true
	}
	return ds.Project(order)
}
