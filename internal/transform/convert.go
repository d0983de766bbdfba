package transform

import (
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/coerce"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/formula"
)

// ConvertTypes casts every cell of each listed column to its target type.
// Columns are processed in dataset order and the first cell that cannot be
// cast fails the whole conversion. It returns the converted column names.
func ConvertTypes(ds *dataset.Dataset, conversions map[string]string) (*dataset.Dataset, []string, error) {
	const op = "convert_types"
	if len(conversions) == 0 {
		return nil, nil, dataset.Validationf(op, "no conversions given")
	}

	targets := make(map[string]coerce.Target, len(conversions))
	for col, name := range conversions {
		if !ds.HasColumn(col) {
			return nil, nil, dataset.ColumnError(dataset.Validation, op, col, "column does not exist")
		}
		t, ok := coerce.ParseTarget(name)
		if !ok {
			return nil, nil, dataset.ColumnError(dataset.Validation, op, col, "unsupported target type "+name)
		}
		targets[col] = t
	}

	var pos []int
	var converted []string
	for j, c := range ds.Columns() {
		if _, ok := targets[c]; ok {
			pos = append(pos, j)
			converted = append(converted, c)
		}
	}

	// MapColumns walks row by row; check column by column first so the
	// reported cell is the first bad one in column order.
	for k, j := range pos {
		for i := 0; i < ds.NumRows(); i++ {
			if _, err := coerce.Cast(ds.At(i, j), targets[converted[k]]); err != nil {
				return nil, nil, dataset.CellError(dataset.Coercion, op, converted[k], i, err)
			}
		}
	}

	out, err := ds.MapColumns(pos, func(i int, column string, v dataset.Value) (dataset.Value, error) {
		nv, err := coerce.Cast(v, targets[column])
		if err != nil {
			return dataset.Value{}, dataset.CellError(dataset.Coercion, op, column, i, err)
		}
		return nv, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, converted, nil
}

// AddCalculatedColumn evaluates expr for every row and appends the results
// as a new column named name.
func AddCalculatedColumn(ds *dataset.Dataset, name, expr string) (*dataset.Dataset, *formula.Expr, error) {
	const op = "calculated_column"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, dataset.Validationf(op, "new column name is empty")
	}
	if ds.HasColumn(name) {
		return nil, nil, dataset.ColumnError(dataset.Validation, op, name, "column already exists")
	}

	e, err := formula.Parse(expr, ds.Columns())
	if err != nil {
		return nil, nil, err
	}
	values, err := e.EvalAll(ds)
	if err != nil {
		return nil, nil, err
	}
	out, err := ds.AppendColumn(name, values)
	if err != nil {
		return nil, nil, err
	}
	return out, e, nil
}
