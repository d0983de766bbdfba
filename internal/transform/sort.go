package transform

import (
	"sort"

	"github.com/USFAkbari/Excel-Tools/internal/coerce"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// Sort orders rows by column with a stable sort. The comparison is numeric
// when every non-empty cell of the column has a numeric reading, otherwise
// lexical on the cell text. Empty cells go last in either order.
func Sort(ds *dataset.Dataset, column string, order SortOrder) (*dataset.Dataset, error) {
	const op = "sort"
	j, ok := ds.ColumnIndex(column)
	if !ok {
		return nil, dataset.ColumnError(dataset.Validation, op, column, "column does not exist")
	}
	switch order {
	case "":
		order = Ascending
	case Ascending, Descending:
	default:
		return nil, dataset.Validationf(op, "order must be asc or desc, got %q", order)
	}

	n := ds.NumRows()
	numeric := true
	nums := make([]float64, n)
	for i := 0; i < n; i++ {
		v := ds.At(i, j)
		if v.IsNull() {
			continue
		}
		f, err := coerce.AsNumber(v)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = f
	}

	less := func(a, b int) bool {
		if numeric {
			return nums[a] < nums[b]
		}
		return ds.At(a, j).String() < ds.At(b, j).String()
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool {
		a, b := idx[x], idx[y]
		nullA, nullB := ds.At(a, j).IsNull(), ds.At(b, j).IsNull()
		if nullA || nullB {
			return !nullA && nullB
		}
		if order == Descending {
			return less(b, a)
		}
		return less(a, b)
	})
	return ds.Select(idx), nil
}
