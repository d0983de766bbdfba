package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies engine failures.
type Kind uint8

const (
	KindUnknown Kind = iota
	NotFound
	Validation
	Parse
	Coercion
	Eval
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Validation:
		return "validation error"
	case Parse:
		return "parse error"
	case Coercion:
		return "coercion error"
	case Eval:
		return "eval error"
	default:
		return "error"
	}
}

// Error is the single error type returned by the engine packages.
// Row is the 0-based data row index, or -1 when the error is not tied to a row.
// Pos is the byte offset of Token inside a formula, or -1.
type Error struct {
	Kind   Kind
	Op     string
	Column string
	Row    int
	Token  string
	Pos    int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	parts := []string{e.Kind.String()}
	if e.Op != "" {
		parts = append(parts, e.Op)
	}

	var detail []string
	if e.Column != "" {
		detail = append(detail, fmt.Sprintf("column %q", e.Column))
	}
	if e.Row >= 0 {
		detail = append(detail, fmt.Sprintf("row %d", e.Row))
	}
	if e.Token != "" {
		if e.Pos >= 0 {
			detail = append(detail, fmt.Sprintf("token %q at %d", e.Token, e.Pos))
		} else {
			detail = append(detail, fmt.Sprintf("token %q", e.Token))
		}
	}
	if len(detail) > 0 {
		parts = append(parts, strings.Join(detail, " "))
	}

	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	if msg != "" {
		parts = append(parts, msg)
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Column == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound   = &Error{Kind: NotFound, Row: -1, Pos: -1}
	ErrValidation = &Error{Kind: Validation, Row: -1, Pos: -1}
	ErrParse      = &Error{Kind: Parse, Row: -1, Pos: -1}
	ErrCoercion   = &Error{Kind: Coercion, Row: -1, Pos: -1}
	ErrEval       = &Error{Kind: Eval, Row: -1, Pos: -1}
)

// KindOf returns the engine Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Validationf builds a validation error for op.
func Validationf(op, format string, args ...any) *Error {
	return &Error{Kind: Validation, Op: op, Row: -1, Pos: -1, Msg: fmt.Sprintf(format, args...)}
}

// ColumnError builds an error of kind k bound to a column.
func ColumnError(k Kind, op, column, msg string) *Error {
	return &Error{Kind: k, Op: op, Column: column, Row: -1, Pos: -1, Msg: msg}
}

// CellError builds an error of kind k bound to a single cell.
func CellError(k Kind, op, column string, row int, err error) *Error {
	return &Error{Kind: k, Op: op, Column: column, Row: row, Pos: -1, Err: err}
}

// NotFoundError reports a missing file id.
func NotFoundError(id string) *Error {
	return &Error{Kind: NotFound, Op: "lookup", Row: -1, Pos: -1, Msg: fmt.Sprintf("file %s", id)}
}
