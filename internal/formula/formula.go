// Package formula parses and evaluates row-wise arithmetic expressions over
// dataset columns.
//
// Grammar:
//
//	expr   := term (('+' | '-') term)*
//	term   := factor (('*' | '/') factor)*
//	factor := NUMBER | IDENT | '`' name '`' | '(' expr ')'
//
// Identifiers must name an existing column exactly. There are no unary
// operators and no functions. A formula is parsed once and evaluated per row.
package formula

import (
	"fmt"
	"math"
	"strings"

	"github.com/USFAkbari/Excel-Tools/internal/coerce"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// Expr is a parsed formula bound to a set of columns.
type Expr struct {
	src  string
	root node
	refs []string
}

type node interface {
	eval(ds *dataset.Dataset, row int) (float64, error)
}

type numberNode struct{ val float64 }

type columnNode struct {
	name string
	pos  int // column position in the dataset, resolved at parse time
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

// Parse parses src and checks every identifier against columns.
func Parse(src string, columns []string) (*Expr, error) {
	if strings.TrimSpace(src) == "" {
		return nil, parseError("", 0, "formula is empty")
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	p := &parser{toks: toks, columns: index, seen: map[string]bool{}}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, parseError(t.display(), t.pos, "unexpected token")
	}
	return &Expr{src: strings.TrimSpace(src), root: root, refs: p.refs}, nil
}

// String returns the formula source without surrounding space.
func (e *Expr) String() string { return e.src }

// Columns returns the referenced columns in order of first use.
func (e *Expr) Columns() []string { return append([]string(nil), e.refs...) }

// Eval evaluates the expression against row i of ds, which must have the
// columns the expression was parsed with.
func (e *Expr) Eval(ds *dataset.Dataset, row int) (dataset.Value, error) {
	f, err := e.root.eval(ds, row)
	if err != nil {
		return dataset.Value{}, err
	}
	return dataset.Number(f), nil
}

// EvalAll evaluates the expression for every row and stops at the first failure.
func (e *Expr) EvalAll(ds *dataset.Dataset) ([]dataset.Value, error) {
	out := make([]dataset.Value, ds.NumRows())
	for i := range out {
		v, err := e.Eval(ds, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (n numberNode) eval(*dataset.Dataset, int) (float64, error) { return n.val, nil }

func (n columnNode) eval(ds *dataset.Dataset, row int) (float64, error) {
	v := ds.At(row, n.pos)
	f, err := coerce.AsNumber(v)
	if err != nil {
		return 0, dataset.CellError(dataset.Eval, "formula", n.name, row,
			fmt.Errorf("cell %q is not a number", v.String()))
	}
	return f, nil
}

func (n binaryNode) eval(ds *dataset.Dataset, row int) (float64, error) {
	a, err := n.left.eval(ds, row)
	if err != nil {
		return 0, err
	}
	b, err := n.right.eval(ds, row)
	if err != nil {
		return 0, err
	}

	var out float64
	switch n.op {
	case tokPlus:
		out = a + b
	case tokMinus:
		out = a - b
	case tokStar:
		out = a * b
	case tokSlash:
		if b == 0 {
			return 0, &dataset.Error{Kind: dataset.Eval, Op: "formula", Row: row, Pos: -1, Msg: "division by zero"}
		}
		out = a / b
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return 0, &dataset.Error{Kind: dataset.Eval, Op: "formula", Row: row, Pos: -1, Msg: "result is not a finite number"}
	}
	return out, nil
}

type parser struct {
	toks    []token
	pos     int
	columns map[string]int
	seen    map[string]bool
	refs    []string
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokPlus && t.kind != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, left: left, right: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokStar && t.kind != tokSlash {
			return left, nil
		}
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: t.kind, left: left, right: right}
	}
}

func (p *parser) parseFactor() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return numberNode{val: t.num}, nil

	case tokIdent:
		pos, ok := p.columns[t.text]
		if !ok {
			return nil, parseError(t.text, t.pos, "unknown column")
		}
		if !p.seen[t.text] {
			p.seen[t.text] = true
			p.refs = append(p.refs, t.text)
		}
		return columnNode{name: t.text, pos: pos}, nil

	case tokLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		closing := p.next()
		if closing.kind != tokRParen {
			return nil, parseError(closing.display(), closing.pos, "expected )")
		}
		return inner, nil

	default:
		return nil, parseError(t.display(), t.pos, "expected a number, column or (")
	}
}
