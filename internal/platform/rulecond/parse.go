package rulecond

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

// ---------------------------------------------------------------------------
// Tokenizer
// ---------------------------------------------------------------------------

type tokenType int

const (
	tokWord tokenType = iota
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokOr
	tokAnd
	tokNot
	tokIn
)

type token struct {
	typ tokenType
	val string
}

func isOpChar(c byte) bool {
	return c == '=' || c == '!' || c == '<' || c == '>'
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "["})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case isOpChar(c):
			j := i
			for j < n && isOpChar(src[j]) {
				j++
			}
			op := src[i:j]
			if !expr.IsComparisonOperator(op) {
				return nil, fmt.Errorf("unknown operator %q at position %d", op, i)
			}
			toks = append(toks, token{tokOp, op})
			i = j
		default:
			j := i
			for j < n && !strings.ContainsRune(" \t\n\r()[],", rune(src[j])) && !isOpChar(src[j]) {
				j++
			}
			word := src[i:j]
			i = j
			switch strings.ToUpper(word) {
			case "OR":
				toks = append(toks, token{tokOr, word})
			case "AND":
				toks = append(toks, token{tokAnd, word})
			case "NOT":
				toks = append(toks, token{tokNot, word})
			case "IN":
				toks = append(toks, token{tokIn, word})
			default:
				toks = append(toks, token{tokWord, word})
			}
		}
	}
	return toks, nil
}

// ---------------------------------------------------------------------------
// Recursive descent parser
//
//   or      -> and ( OR and )*
//   and     -> unary ( AND unary )*
//   unary   -> NOT unary | primary
//   primary -> "(" or ")" | atom
//   atom    -> "cap_triggered:" NAME
//            | "cap_level" [ ":" NAME ] IN "[" LEVEL ( "," LEVEL )* "]"
//            | FIELD OP VALUE
//            | FIELD
// ---------------------------------------------------------------------------

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() *token {
	if p.pos >= len(p.toks) {
		return nil
	}
	return &p.toks[p.pos]
}

func (p *parser) next() *token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *parser) expect(tt tokenType, what string) (*token, error) {
	t := p.next()
	if t == nil {
		return nil, fmt.Errorf("unexpected end, expected %s", what)
	}
	if t.typ != tt {
		return nil, fmt.Errorf("unexpected %q, expected %s", t.val, what)
	}
	return t, nil
}

func (p *parser) parseOr() (Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for t := p.peek(); t != nil && t.typ == tokOr; t = p.peek() {
		p.next()
		e, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, e)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return orExpr{terms: terms}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{first}
	for t := p.peek(); t != nil && t.typ == tokAnd; t = p.peek() {
		p.next()
		e, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, e)
	}
	if len(terms) == 1 {
		return first, nil
	}
	return andExpr{terms: terms}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if t := p.peek(); t != nil && t.typ == tokNot {
		p.next()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.next()
	if t == nil {
		return nil, fmt.Errorf("unexpected end of condition")
	}
	switch t.typ {
	case tokLParen:
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case tokWord:
		return p.parseAtom(t.val)
	default:
		return nil, fmt.Errorf("unexpected %q", t.val)
	}
}

func (p *parser) parseAtom(word string) (Expr, error) {
	lower := strings.ToLower(word)

	if strings.HasPrefix(lower, "cap_triggered:") {
		name := word[len("cap_triggered:"):]
		if name == "" {
			return nil, fmt.Errorf("cap_triggered without a CAP name")
		}
		return capTriggeredExpr{name: name}, nil
	}

	if lower == "cap_level" || strings.HasPrefix(lower, "cap_level:") {
		name := ""
		if i := strings.IndexByte(word, ':'); i >= 0 {
			name = word[i+1:]
			if name == "" {
				return nil, fmt.Errorf("cap_level: without a CAP name")
			}
		}
		levels, err := p.parseLevelList()
		if err != nil {
			return nil, err
		}
		return capLevelExpr{name: name, levels: levels}, nil
	}

	switch lower {
	case "true":
		return constExpr(true), nil
	case "false":
		return constExpr(false), nil
	}

	if t := p.peek(); t != nil && t.typ == tokOp {
		p.next()
		v, err := p.expect(tokWord, "a value")
		if err != nil {
			return nil, err
		}
		return compareExpr{field: word, op: t.val, value: literal(v.val)}, nil
	}
	return fieldExpr{field: word}, nil
}

func (p *parser) parseLevelList() ([]string, error) {
	if _, err := p.expect(tokIn, "IN"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBracket, "'['"); err != nil {
		return nil, err
	}
	var levels []string
	for {
		t := p.next()
		if t == nil {
			return nil, fmt.Errorf("unterminated level list")
		}
		switch t.typ {
		case tokRBracket:
			if len(levels) == 0 {
				return nil, fmt.Errorf("empty level list")
			}
			return levels, nil
		case tokComma:
			continue
		case tokWord:
			levels = append(levels, strings.ToUpper(strings.Trim(t.val, `'"`)))
		default:
			return nil, fmt.Errorf("unexpected %q in level list", t.val)
		}
	}
}

func literal(s string) expr.Value {
	s = strings.Trim(s, `'"`)
	switch strings.ToLower(s) {
	case "true":
		return expr.Bool(true)
	case "false":
		return expr.Bool(false)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return expr.Number(f)
	}
	return expr.String(s)
}
