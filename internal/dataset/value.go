package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ValueKind identifies which variant a Value holds.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "null"
	}
}

// Value is a single cell: Null, a finite Number, or Text.
// The zero value is Null.
type Value struct {
	kind ValueKind
	num  float64
	text string
}

// Null returns the empty cell.
func Null() Value { return Value{} }

// Number returns a numeric cell.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Text returns a text cell.
func Text(s string) Value { return Value{kind: KindText, text: s} }

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsNumber() bool  { return v.kind == KindNumber }
func (v Value) IsText() bool    { return v.kind == KindText }

// Float returns the numeric payload. ok is false for Null and Text.
func (v Value) Float() (f float64, ok bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Str returns the text payload. ok is false for Null and Number.
func (v Value) Str() (s string, ok bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// String renders the value the way it is shown and compared as text:
// Null is empty, numbers use the shortest decimal form.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.text
	default:
		return ""
	}
}

// FormatNumber renders f without exponent and without trailing zeros.
func FormatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equal reports whether a and b are the same variant with the same payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	default:
		return true
	}
}

// Compare orders two values. Same-variant values compare by payload;
// mixed variants fall back to comparing their renderings.
func (v Value) Compare(o Value) int {
	if v.kind == o.kind {
		switch v.kind {
		case KindNumber:
			switch {
			case v.num < o.num:
				return -1
			case v.num > o.num:
				return 1
			}
			return 0
		case KindText:
			return compareStrings(v.text, o.text)
		default:
			return 0
		}
	}
	return compareStrings(v.String(), o.String())
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MarshalJSON encodes Null as null, Number as a JSON number and Text as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	case KindText:
		return json.Marshal(v.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, numbers and strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case nil:
		*v = Null()
	case float64:
		*v = Number(x)
	case string:
		*v = Text(x)
	case bool:
		*v = Text(strconv.FormatBool(x))
	default:
		return fmt.Errorf("unsupported cell value %s", string(data))
	}
	return nil
}
