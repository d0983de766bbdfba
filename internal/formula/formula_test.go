package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

func sample() *dataset.Dataset {
	return dataset.MustNew(
		[]string{"price", "qty", "unit cost", "note", "قیمت"},
		[][]dataset.Value{
			{dataset.Number(10), dataset.Number(3), dataset.Number(4), dataset.Text("x"), dataset.Text("۲")},
			{dataset.Text("2.5"), dataset.Number(0), dataset.Null(), dataset.Text("y"), dataset.Number(1)},
		},
	)
}

func TestEval(t *testing.T) {
	ds := sample()
	tests := []struct {
		formula string
		want    float64
	}{
		{"price * qty", 30},
		{"price + qty * 2", 16},
		{"(price + qty) * 2", 26},
		{"price - qty - 1", 6},
		{"price / 4 / 5", 0.5},
		{"`unit cost` * qty", 12},
		{"قیمت * 3", 6},
		{"۲ + 3", 5},
		{"  price  ", 10},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			expr, err := Parse(tt.formula, ds.Columns())
			require.NoError(t, err)
			got, err := expr.Eval(ds, 0)
			require.NoError(t, err)
			f, ok := got.Float()
			require.True(t, ok)
			assert.InDelta(t, tt.want, f, 1e-9)
		})
	}
}

func TestParseErrors(t *testing.T) {
	cols := sample().Columns()
	tests := []struct {
		formula string
		token   string
	}{
		{"", ""},
		{"price *", "end of formula"},
		{"* price", "*"},
		{"-price", "-"},
		{"(price + qty", "end of formula"},
		{"price + qty)", ")"},
		{"discount * 2", "discount"},
		{"Price", "Price"},
		{"price ^ 2", "^"},
		{"sum(price)", "sum"},
		{"1.2.3", "1.2.3"},
		{"`unit cost", "`unit cost"},
		{"price qty", "qty"},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			_, err := Parse(tt.formula, cols)
			require.Error(t, err)
			var e *dataset.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, dataset.Parse, e.Kind)
			assert.Equal(t, tt.token, e.Token)
		})
	}
}

func TestEvalErrors(t *testing.T) {
	ds := sample()
	tests := []struct {
		name    string
		formula string
		column  string
	}{
		{"text cell", "note + 1", "note"},
		{"null cell", "`unit cost` + 1", "unit cost"},
		{"division by zero", "price / qty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.formula, ds.Columns())
			require.NoError(t, err)
			_, err = expr.EvalAll(ds)
			require.Error(t, err)
			var e *dataset.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, dataset.Eval, e.Kind)
			assert.Equal(t, tt.column, e.Column)
			assert.GreaterOrEqual(t, e.Row, 0)
		})
	}
}

func TestColumnsInFirstUseOrder(t *testing.T) {
	expr, err := Parse("qty * price + qty", sample().Columns())
	require.NoError(t, err)
	assert.Equal(t, []string{"qty", "price"}, expr.Columns())
	assert.Equal(t, "qty * price + qty", expr.String())
}
