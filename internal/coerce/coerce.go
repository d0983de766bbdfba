// Package coerce implements the comparison and cast rules shared by filter,
// sort, deduplication, type conversion and formula evaluation.
package coerce

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/digits"
)

// Operator names a filter comparison.
type Operator string

const (
	Equals       Operator = "equals"
	NotEquals    Operator = "not_equals"
	Contains     Operator = "contains"
	NotContains  Operator = "not_contains"
	GreaterThan  Operator = "greater_than"
	LessThan     Operator = "less_than"
	GreaterEqual Operator = "greater_equal"
	LessEqual    Operator = "less_equal"
)

// Operators lists every supported operator.
var Operators = []Operator{Equals, NotEquals, Contains, NotContains, GreaterThan, LessThan, GreaterEqual, LessEqual}

// Valid reports whether op is supported.
func (op Operator) Valid() bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// ErrNotNumeric is returned by AsNumber for values that have no numeric reading.
var ErrNotNumeric = errors.New("value is not numeric")

// AsNumber returns the numeric reading of v. Numbers are themselves, Text is
// parsed after digit normalization, Null has none.
func AsNumber(v dataset.Value) (float64, error) {
	switch v.Kind() {
	case dataset.KindNumber:
		f, _ := v.Float()
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, ErrNotNumeric
		}
		return f, nil
	case dataset.KindText:
		s, _ := v.Str()
		f, err := digits.ParseNumber(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotNumeric, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: empty cell", ErrNotNumeric)
	}
}

// IsNumeric reports whether AsNumber would succeed.
func IsNumeric(v dataset.Value) bool {
	_, err := AsNumber(v)
	return err == nil
}

// Compare evaluates `cell op target` where target is the user-supplied value.
// Ordering operators yield false when either side is not numeric. Equality is
// numeric when both sides look numeric, otherwise exact on the renderings.
// Containment is case-insensitive on the renderings.
func Compare(cell dataset.Value, op Operator, target dataset.Value) bool {
	switch op {
	case Equals:
		return equal(cell, target)
	case NotEquals:
		return !equal(cell, target)
	case Contains:
		return contains(cell, target)
	case NotContains:
		return !contains(cell, target)
	case GreaterThan, LessThan, GreaterEqual, LessEqual:
		a, err := AsNumber(cell)
		if err != nil {
			return false
		}
		b, err := AsNumber(target)
		if err != nil {
			return false
		}
		switch op {
		case GreaterThan:
			return a > b
		case LessThan:
			return a < b
		case GreaterEqual:
			return a >= b
		default:
			return a <= b
		}
	}
	return false
}

func equal(a, b dataset.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.String() == b.String()
	}
	x, errA := AsNumber(a)
	y, errB := AsNumber(b)
	if errA == nil && errB == nil {
		return x == y
	}
	return a.String() == b.String()
}

func contains(a, b dataset.Value) bool {
	// A Caser keeps state between calls and cannot be shared across goroutines.
	fold := cases.Fold()
	return strings.Contains(fold.String(a.String()), fold.String(b.String()))
}

// Key returns a grouping key under which values that compare equal collide:
// numeric-looking values share the key of their number, everything else is
// keyed by its rendering.
func Key(v dataset.Value) string {
	if f, err := AsNumber(v); err == nil {
		if f == 0 {
			f = 0 // fold -0 into 0
		}
		return "n:" + dataset.FormatNumber(f)
	}
	return "t:" + v.String()
}
