// Package rulecond parses the condition strings attached to substitution
// rules and CAP-driven service packages, for example
//
//	cap_triggered:falls OR (fallsRiskLevel >= 2 AND livesAlone)
//	cap_level:adl IN [IMPROVE, PREVENT]
//	cap_level IN [IMPROVE]
//
// Conditions are parsed once into a tree. OR/AND/NOT/IN are recognised only
// as whole tokens, so a CAP named "OR_risk" is never split.
package rulecond

import (
	"fmt"
	"strings"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

// Env is what a condition is evaluated against.
type Env struct {
	// CAPs maps triggered CAP names to their level. NOT_TRIGGERED results
	// must not be present.
	CAPs map[string]string
	// Lookup resolves profile fields. Nil behaves as an empty profile.
	Lookup func(field string) expr.Value
}

func (e Env) field(name string) expr.Value {
	if e.Lookup == nil {
		return expr.Zero
	}
	return e.Lookup(name)
}

// Expr is a parsed condition.
type Expr interface {
	Eval(env Env) bool
	// CAPs lists the CAP names the condition references, in source order.
	CAPs() []string
	String() string
}

// Always is the condition used for empty condition strings.
var Always Expr = constExpr(true)

// Parse compiles a condition string. An empty string yields Always.
func Parse(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return Always, nil
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	p := &parser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", src, err)
	}
	if t := p.peek(); t != nil {
		return nil, fmt.Errorf("condition %q: unexpected %q", src, t.val)
	}
	return e, nil
}

// MustParse is Parse for conditions known at compile time.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

type constExpr bool

func (c constExpr) Eval(Env) bool { return bool(c) }
func (c constExpr) CAPs() []string { return nil }
func (c constExpr) String() string { return fmt.Sprintf("%t", bool(c)) }

type orExpr struct{ terms []Expr }

func (o orExpr) Eval(env Env) bool {
	for _, t := range o.terms {
		if t.Eval(env) {
			return true
		}
	}
	return false
}

func (o orExpr) CAPs() []string { return collectCAPs(o.terms) }
func (o orExpr) String() string { return joinExprs(o.terms, " OR ") }

type andExpr struct{ terms []Expr }

func (a andExpr) Eval(env Env) bool {
	for _, t := range a.terms {
		if !t.Eval(env) {
			return false
		}
	}
	return true
}

func (a andExpr) CAPs() []string { return collectCAPs(a.terms) }
func (a andExpr) String() string { return joinExprs(a.terms, " AND ") }

type notExpr struct{ inner Expr }

func (n notExpr) Eval(env Env) bool { return !n.inner.Eval(env) }
func (n notExpr) CAPs() []string { return n.inner.CAPs() }
func (n notExpr) String() string { return "NOT " + n.inner.String() }

type capTriggeredExpr struct{ name string }

func (c capTriggeredExpr) Eval(env Env) bool {
	_, ok := env.CAPs[c.name]
	return ok
}

func (c capTriggeredExpr) CAPs() []string { return []string{c.name} }
func (c capTriggeredExpr) String() string { return "cap_triggered:" + c.name }

// capLevelExpr matches when the named CAP (or, with no name, any triggered
// CAP) is at one of the listed levels.
type capLevelExpr struct {
	name   string
	levels []string
}

func (c capLevelExpr) Eval(env Env) bool {
	if c.name != "" {
		lvl, ok := env.CAPs[c.name]
		return ok && c.has(lvl)
	}
	for _, lvl := range env.CAPs {
		if c.has(lvl) {
			return true
		}
	}
	return false
}

func (c capLevelExpr) has(level string) bool {
	for _, l := range c.levels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}

func (c capLevelExpr) CAPs() []string {
	if c.name == "" {
		return nil
	}
	return []string{c.name}
}

func (c capLevelExpr) String() string {
	head := "cap_level"
	if c.name != "" {
		head += ":" + c.name
	}
	return head + " IN [" + strings.Join(c.levels, ", ") + "]"
}

type compareExpr struct {
	field string
	op    string
	value expr.Value
}

func (c compareExpr) Eval(env Env) bool {
	return expr.Compare(c.op, env.field(c.field), c.value)
}

func (c compareExpr) CAPs() []string { return nil }
func (c compareExpr) String() string {
	return c.field + " " + c.op + " " + c.value.String()
}

// fieldExpr is a bare profile field, true when the field is truthy.
type fieldExpr struct{ field string }

func (f fieldExpr) Eval(env Env) bool { return env.field(f.field).Truthy() }
func (f fieldExpr) CAPs() []string { return nil }
func (f fieldExpr) String() string { return f.field }

func collectCAPs(terms []Expr) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range terms {
		for _, c := range t.CAPs() {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

func joinExprs(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
