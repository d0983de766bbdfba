package coerce

import (
	"fmt"
	"math"
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// Target is a type-conversion target.
type Target string

const (
	TargetText    Target = "text"
	TargetInteger Target = "integer"
	TargetFloat   Target = "float"
)

// ParseTarget accepts the target names used by clients, including "string"
// as an alias of text.
func ParseTarget(s string) (Target, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string", "str":
		return TargetText, true
	case "integer", "int":
		return TargetInteger, true
	case "float", "number", "numeric":
		return TargetFloat, true
	}
	return "", false
}

// Cast converts v to target. Null stays Null. Text that cannot be read as a
// number fails for the numeric targets; integer truncates toward zero.
func Cast(v dataset.Value, target Target) (dataset.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	switch target {
	case TargetText:
		if v.IsText() {
			return v, nil
		}
		return dataset.Text(v.String()), nil
	case TargetFloat, TargetInteger:
		f, err := AsNumber(v)
		if err != nil {
			return dataset.Value{}, fmt.Errorf("cannot convert %q to %s", v.String(), target)
		}
		if target == TargetInteger {
			f = math.Trunc(f)
			if f == 0 {
				f = 0 // -0
			}
		}
		return dataset.Number(f), nil
	}
	return dataset.Value{}, fmt.Errorf("unsupported conversion target %q", target)
}
