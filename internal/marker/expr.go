package marker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Expr is a boolean expression over marker names, e.g.
// "smoke and not (win10 or slow)".
type Expr interface {
	Match(s Set) bool
	String() string
}

// ParseExpr parses a selection expression.
//
// Grammar:
//
//	expr    := and ("or" and)*
//	and     := unary ("and" unary)*
//	unary   := "not" unary | primary
//	primary := NAME | "(" expr ")"
//
// An empty expression matches every test.
func ParseExpr(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return matchAll{}, nil
	}

	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, p.errorf("unexpected %q", p.toks[p.pos].text)
	}
	return e, nil
}

// MustParseExpr is like ParseExpr but panics on error.
func MustParseExpr(src string) Expr {
	e, err := ParseExpr(src)
	if err != nil {
		panic(err)
	}
	return e
}

// ExprError describes a malformed selection expression.
type ExprError struct {
	Expr string
	// Offset counts runes from the start of Expr.
	Offset  int
	Message string
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("invalid marker expression %q at offset %d: %s", e.Expr, e.Offset, e.Message)
}

type matchAll struct{}

func (matchAll) Match(Set) bool { return true }
func (matchAll) String() string { return "" }

type nameExpr string

func (n nameExpr) Match(s Set) bool { return s.Has(string(n)) }
func (n nameExpr) String() string   { return string(n) }

type notExpr struct{ x Expr }

func (n notExpr) Match(s Set) bool { return !n.x.Match(s) }
func (n notExpr) String() string   { return "not " + n.x.String() }

type binaryExpr struct {
	op   string
	l, r Expr
}

func (b binaryExpr) Match(s Set) bool {
	if b.op == "and" {
		return b.l.Match(s) && b.r.Match(s)
	}
	return b.l.Match(s) || b.r.Match(s)
}

func (b binaryExpr) String() string {
	return "(" + b.l.String() + " " + b.op + " " + b.r.String() + ")"
}

type tokenKind int

const (
	tokName tokenKind = iota + 1
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	off  int
}

func tokenize(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", off: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", off: i})
			i++
		case isNameRune(r):
			start := i
			for i < len(rs) && isNameRune(rs[i]) {
				i++
			}
			word := string(rs[start:i])
			kind := tokName
			switch word {
			case "and":
				kind = tokAnd
			case "or":
				kind = tokOr
			case "not":
				kind = tokNot
			}
			toks = append(toks, token{kind: kind, text: word, off: start})
		default:
			return nil, &ExprError{Expr: src, Offset: i, Message: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return toks, nil
}

func isNameRune(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) errorf(format string, args ...any) error {
	off := utf8.RuneCountInString(p.src)
	if p.pos < len(p.toks) {
		off = p.toks[p.pos].off
	}
	return &ExprError{Expr: p.src, Offset: off, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) peek(kind tokenKind) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == kind
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek(tokOr) {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "or", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek(tokAnd) {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryExpr{op: "and", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.peek(tokNot) {
		p.pos++
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{x: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.pos >= len(p.toks) {
		return nil, p.errorf("unexpected end of expression")
	}
	tok := p.toks[p.pos]
	switch tok.kind {
	case tokName:
		p.pos++
		return nameExpr(tok.text), nil
	case tokLParen:
		p.pos++
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.peek(tokRParen) {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		return e, nil
	default:
		return nil, p.errorf("unexpected %q", tok.text)
	}
}
