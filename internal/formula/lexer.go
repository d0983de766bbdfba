package formula

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/USFAkbari/Excel-Tools/internal/dataset"
	"github.com/USFAkbari/Excel-Tools/internal/digits"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string // source text, or the unquoted name for identifiers
	pos  int    // byte offset in the formula
	num  float64
}

func (t token) display() string {
	if t.kind == tokEOF {
		return "end of formula"
	}
	return t.text
}

func isPersianDigit(r rune) bool { return r >= '۰' && r <= '۹' }

func isDigitRune(r rune) bool { return (r >= '0' && r <= '9') || isPersianDigit(r) }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// lex splits the formula into tokens.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case r == '+' || r == '-' || r == '*' || r == '/' || r == '(' || r == ')':
			toks = append(toks, token{kind: punct(r), text: string(r), pos: i})
			i += size

		case isDigitRune(r) || r == '.':
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if !isDigitRune(r) && r != '.' {
					break
				}
				i += size
			}
			text := src[start:i]
			f, err := digits.ParseNumber(text)
			if err != nil {
				return nil, parseError(text, start, "invalid number")
			}
			toks = append(toks, token{kind: tokNumber, text: text, pos: start, num: f})

		case r == '`':
			start := i
			end := strings.IndexByte(src[i+1:], '`')
			if end < 0 {
				return nil, parseError(src[start:], start, "unterminated quoted column name")
			}
			name := src[i+1 : i+1+end]
			if name == "" {
				return nil, parseError("``", start, "empty quoted column name")
			}
			i += end + 2
			toks = append(toks, token{kind: tokIdent, text: name, pos: start})

		case isIdentStart(r):
			start := i
			for i < len(src) {
				r, size = utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})

		default:
			return nil, parseError(string(r), i, "unexpected character")
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func punct(r rune) tokenKind {
	switch r {
	case '+':
		return tokPlus
	case '-':
		return tokMinus
	case '*':
		return tokStar
	case '/':
		return tokSlash
	case '(':
		return tokLParen
	default:
		return tokRParen
	}
}

func parseError(tok string, pos int, msg string) *dataset.Error {
	return &dataset.Error{Kind: dataset.Parse, Op: "formula", Row: -1, Token: tok, Pos: pos, Msg: msg}
}
