package transform

import (
	"github.com/USFAkbari/Excel-Tools/internal/coerce"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/digits"
)

// NormalizeDigits rewrites the digits of every Text cell in columns (all
// columns when none are given). Listed columns that do not exist are ignored.
func NormalizeDigits(ds *dataset.Dataset, dir digits.Direction, columns []string) (*dataset.Dataset, []string) {
	var pos []int
	var processed []string
	if len(columns) == 0 {
		processed = ds.Columns()
		for j := range processed {
			pos = append(pos, j)
		}
	} else {
		for _, c := range columns {
			if j, ok := ds.ColumnIndex(c); ok {
				pos = append(pos, j)
				processed = append(processed, c)
			}
		}
	}

	out, _ := ds.MapColumns(pos, func(_ int, _ string, v dataset.Value) (dataset.Value, error) {
		s, ok := v.Str()
		if !ok {
			return v, nil
		}
		return dataset.Text(digits.Normalize(s, dir)), nil
	})
	return out, processed
}

// Condition is one filter predicate: cell(Column) Operator Value.
type Condition struct {
	Column   string          `json:"column"`
	Operator coerce.Operator `json:"operator"`
	Value    dataset.Value   `json:"value"`
}

// Filter keeps the rows that satisfy all conditions (matchAll) or any of
// them, in their original order.
func Filter(ds *dataset.Dataset, conditions []Condition, matchAll bool) (*dataset.Dataset, error) {
	const op = "filter"
	if len(conditions) == 0 {
		return nil, dataset.Validationf(op, "at least one condition is required")
	}
	pos := make([]int, len(conditions))
	for k, c := range conditions {
		j, ok := ds.ColumnIndex(c.Column)
		if !ok {
			return nil, dataset.ColumnError(dataset.Validation, op, c.Column, "column does not exist")
		}
		if !c.Operator.Valid() {
			return nil, dataset.ColumnError(dataset.Validation, op, c.Column, "unknown operator "+string(c.Operator))
		}
		pos[k] = j
	}

	keep := make([]int, 0, ds.NumRows())
	for i := 0; i < ds.NumRows(); i++ {
		match := matchAll
		for k, c := range conditions {
			ok := coerce.Compare(ds.At(i, pos[k]), c.Operator, c.Value)
			if matchAll && !ok {
				match = false
				break
			}
			if !matchAll && ok {
				match = true
				break
			}
		}
		if match {
			keep = append(keep, i)
		}
	}
	return ds.Select(keep), nil
}
