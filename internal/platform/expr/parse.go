package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Precedence-splitting parser
//
// Grammar, lowest to highest binding:
//   expr       -> ternary
//   ternary    -> or ( "?" expr ":" expr )?
//   or         -> and ( "||" and )*
//   and        -> comparison ( "&&" comparison )*
//   comparison -> sum ( ("=="|"!="|">="|"<="|">"|"<") sum )?
//   sum        -> group ( "+" group )*
//   group      -> "(" expr ")" | atom
//   atom       -> NUMBER | "true" | "false" | IDENT
//
// Each level splits the source at operators found at paren depth zero, so an
// operator inside a nested group is never a split point. Malformed input
// compiles to an invalid node that evaluates to Zero.
// ---------------------------------------------------------------------------

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

var twoCharComparisons = []string{"==", "!=", ">=", "<="}

type parser struct {
	diags  []string
	idents map[string]struct{}
	order  []string
}

func (p *parser) fail(src, reason string) node {
	p.diags = append(p.diags, fmt.Sprintf("%s in %q", reason, src))
	return invalidNode{src: src, reason: reason}
}

func (p *parser) parse(src string) node {
	s := strings.TrimSpace(src)
	if s == "" {
		return p.fail(src, "empty expression")
	}
	if !balanced(s) {
		return p.fail(s, "unbalanced parentheses")
	}

	if q := indexTop(s, "?", 0); q >= 0 {
		c := matchingColon(s, q+1)
		if c < 0 {
			return p.fail(s, "ternary without matching ':'")
		}
		return ternaryNode{
			cond: p.parse(s[:q]),
			then: p.parse(s[q+1 : c]),
			els:  p.parse(s[c+1:]),
		}
	}

	if parts := splitTop(s, "||"); len(parts) > 1 {
		return orNode{terms: p.parseAll(parts)}
	}
	if parts := splitTop(s, "&&"); len(parts) > 1 {
		return andNode{terms: p.parseAll(parts)}
	}

	if i, op := findComparison(s); i >= 0 {
		return compareNode{
			op:    op,
			left:  p.parse(s[:i]),
			right: p.parse(s[i+len(op):]),
		}
	}

	if parts := splitTop(s, "+"); len(parts) > 1 {
		return addNode{terms: p.parseAll(parts)}
	}

	if wrapped(s) {
		return p.parse(s[1 : len(s)-1])
	}

	return p.atom(s)
}

func (p *parser) parseAll(parts []string) []node {
	out := make([]node, len(parts))
	for i, part := range parts {
		out[i] = p.parse(part)
	}
	return out
}

func (p *parser) atom(s string) node {
	switch strings.ToLower(s) {
	case "true":
		return literalNode{v: Bool(true)}
	case "false":
		return literalNode{v: Bool(false)}
	}
	if numeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return literalNode{v: Number(f)}
		}
	}
	if identPattern.MatchString(s) {
		if _, seen := p.idents[s]; !seen {
			p.idents[s] = struct{}{}
			p.order = append(p.order, s)
		}
		return identNode{name: s}
	}
	return p.fail(s, "unknown token")
}

// numeric reports whether s looks like a number literal: a digit or '.'
// after an optional sign. Words such as inf or nan stay identifiers.
func numeric(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return s != "" && (s[0] == '.' || (s[0] >= '0' && s[0] <= '9'))
}

// balanced reports whether every ')' closes an earlier '(' and none are left
// open.
func balanced(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// wrapped reports whether the outermost '(' at position 0 closes at the last
// byte, i.e. the whole expression is one group.
func wrapped(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return true
}

// indexTop returns the first index >= from where op occurs at depth zero.
func indexTop(s, op string, from int) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if i >= from && depth == 0 && strings.HasPrefix(s[i:], op) {
			return i
		}
	}
	return -1
}

// matchingColon finds the ':' pairing with a '?' that ended just before
// from. Nested ternaries in the middle operand are skipped.
func matchingColon(s string, from int) int {
	depth, nested := 0, 0
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '?':
			if depth == 0 {
				nested++
			}
		case ':':
			if depth == 0 {
				if nested == 0 {
					return i
				}
				nested--
			}
		}
	}
	return -1
}

// splitTop cuts s at every depth-zero occurrence of op.
func splitTop(s, op string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth == 0 && strings.HasPrefix(s[i:], op) {
			parts = append(parts, s[start:i])
			i += len(op) - 1
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// findComparison locates the first depth-zero comparison operator, preferring
// two-character operators at the same position.
func findComparison(s string) (int, string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
			continue
		case ')':
			depth--
			continue
		}
		if depth != 0 {
			continue
		}
		for _, op := range twoCharComparisons {
			if strings.HasPrefix(s[i:], op) {
				return i, op
			}
		}
		if s[i] == '>' || s[i] == '<' {
			return i, string(s[i])
		}
	}
	return -1, ""
}
