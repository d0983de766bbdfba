// Package digits converts between Persian (Extended Arabic-Indic) digits
// U+06F0..U+06F9 and ASCII digits, and parses numbers written with either.
package digits

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Direction selects which way Normalize maps digits.
type Direction string

const (
	PersianToEnglish Direction = "persian_to_english"
	EnglishToPersian Direction = "english_to_persian"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == PersianToEnglish || d == EnglishToPersian
}

const persianZero = '۰'

var (
	toASCII = runes.Map(func(r rune) rune {
		if r >= persianZero && r <= persianZero+9 {
			return '0' + (r - persianZero)
		}
		return r
	})
	toPersian = runes.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return persianZero + (r - '0')
		}
		return r
	})
)

// Normalize maps every digit of the source script to the target script.
// All other characters are left untouched.
func Normalize(s string, d Direction) string {
	var t transform.Transformer
	switch d {
	case PersianToEnglish:
		t = toASCII
	case EnglishToPersian:
		t = toPersian
	default:
		return s
	}
	out, _, err := transform.String(t, s)
	if err != nil {
		// runes.Map never fails on valid input; invalid UTF-8 is kept as is.
		return s
	}
	return out
}

// ToASCII is Normalize(s, PersianToEnglish).
func ToASCII(s string) string {
	return Normalize(s, PersianToEnglish)
}

// numericRegex matches optional sign, digits with optional decimal part, and optional exponent.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses s as a finite decimal number after trimming whitespace
// and mapping Persian digits to ASCII.
func ParseNumber(s string) (float64, error) {
	t := ToASCII(strings.TrimSpace(s))
	if !numericRegex.MatchString(t) {
		return 0, fmt.Errorf("cannot parse %q as a number", s)
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("cannot parse %q as a finite number", s)
	}
	return f, nil
}

// LooksNumeric reports whether ParseNumber would succeed.
func LooksNumeric(s string) bool {
	_, err := ParseNumber(s)
	return err == nil
}
