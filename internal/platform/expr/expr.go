// Package expr evaluates the small expression language used by algorithm
// definitions: ternary, ||, &&, comparisons, addition, groups and atoms,
// evaluated against a flat variable context.
//
// Evaluation never fails. Identifiers missing from the context resolve to 0
// and malformed fragments evaluate to 0; Program.Diagnostics exposes what was
// malformed so loaders can surface it.
package expr

import "strings"

// Program is a compiled expression. It is immutable and safe for concurrent
// use.
type Program struct {
	src    string
	root   node
	diags  []string
	idents []string
}

// Compile parses src once. It never returns an error; see Diagnostics.
func Compile(src string) *Program {
	p := &parser{idents: make(map[string]struct{})}
	root := p.parse(src)
	return &Program{src: src, root: root, diags: p.diags, idents: p.order}
}

// Eval compiles and evaluates src in one step.
func Eval(src string, vars Vars) Value {
	return Compile(src).Eval(vars)
}

// Eval evaluates the program against vars.
func (p *Program) Eval(vars Vars) Value {
	return p.root.eval(vars)
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.src }

// Identifiers lists the identifiers referenced by the program in first-seen
// order.
func (p *Program) Identifiers() []string {
	out := make([]string, len(p.idents))
	copy(out, p.idents)
	return out
}

// Diagnostics lists the malformed fragments found while compiling.
func (p *Program) Diagnostics() []string {
	out := make([]string, len(p.diags))
	copy(out, p.diags)
	return out
}

// Valid reports whether the program compiled without diagnostics.
func (p *Program) Valid() bool { return len(p.diags) == 0 }

func (p *Program) String() string { return p.root.String() }

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

type node interface {
	eval(vars Vars) Value
	String() string
}

type literalNode struct{ v Value }

func (n literalNode) eval(Vars) Value { return n.v }
func (n literalNode) String() string { return n.v.String() }

type identNode struct{ name string }

func (n identNode) eval(vars Vars) Value { return vars.Lookup(n.name) }
func (n identNode) String() string { return n.name }

type invalidNode struct{ src, reason string }

func (n invalidNode) eval(Vars) Value { return Zero }
func (n invalidNode) String() string { return "<invalid:" + n.src + ">" }

type ternaryNode struct{ cond, then, els node }

func (n ternaryNode) eval(vars Vars) Value {
	if n.cond.eval(vars).Truthy() {
		return n.then.eval(vars)
	}
	return n.els.eval(vars)
}

func (n ternaryNode) String() string {
	return "(" + n.cond.String() + " ? " + n.then.String() + " : " + n.els.String() + ")"
}

type orNode struct{ terms []node }

func (n orNode) eval(vars Vars) Value {
	for _, t := range n.terms {
		if t.eval(vars).Truthy() {
			return Bool(true)
		}
	}
	return Bool(false)
}

func (n orNode) String() string { return joinNodes(n.terms, " || ") }

type andNode struct{ terms []node }

func (n andNode) eval(vars Vars) Value {
	for _, t := range n.terms {
		if !t.eval(vars).Truthy() {
			return Bool(false)
		}
	}
	return Bool(true)
}

func (n andNode) String() string { return joinNodes(n.terms, " && ") }

type compareNode struct {
	op          string
	left, right node
}

func (n compareNode) eval(vars Vars) Value {
	return Bool(Compare(n.op, n.left.eval(vars), n.right.eval(vars)))
}

func (n compareNode) String() string {
	return "(" + n.left.String() + " " + n.op + " " + n.right.String() + ")"
}

type addNode struct{ terms []node }

func (n addNode) eval(vars Vars) Value {
	var sum float64
	for _, t := range n.terms {
		sum += t.eval(vars).Float()
	}
	return Number(sum)
}

func (n addNode) String() string { return joinNodes(n.terms, " + ") }

func joinNodes(ns []node, sep string) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = n.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}
