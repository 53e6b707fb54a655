package algorithm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

// Definition is a loaded algorithm: ordered computed inputs feeding a binary
// decision tree. It is immutable once loaded.
type Definition struct {
	Name               string          `json:"name"`
	Version            string          `json:"version"`
	VerificationStatus string          `json:"verification_status,omitempty"`
	OutputRange        [2]float64      `json:"output_range"`
	OutputType         string          `json:"output_type,omitempty"`
	Tree               Node            `json:"-"`
	ComputedInputs     []ComputedInput `json:"-"`
	ItemsUsed          []string        `json:"items_used,omitempty"`
}

// ComputedInput is a named formula evaluated before tree traversal.
type ComputedInput struct {
	Name    string
	Formula string
	program *expr.Program
}

// Program returns the compiled formula.
func (c ComputedInput) Program() *expr.Program {
	if c.program == nil {
		return expr.Compile(c.Formula)
	}
	return c.program
}

// Meta is the introspection view of a definition.
type Meta struct {
	Name               string     `json:"name"`
	Version            string     `json:"version"`
	VerificationStatus string     `json:"verification_status,omitempty"`
	OutputRange        [2]float64 `json:"output_range"`
	OutputType         string     `json:"output_type,omitempty"`
	ItemsUsed          []string   `json:"items_used,omitempty"`
	ComputedInputs     []string   `json:"computed_inputs,omitempty"`
	Depth              int        `json:"depth"`
	Leaves             int        `json:"leaves"`
}

// Node is a decision tree node: either *Leaf or *Branch.
type Node interface {
	isNode()
}

// Leaf ends traversal with an integer or boolean score.
type Leaf struct {
	Return expr.Value
}

// Branch routes on a condition.
type Branch struct {
	Condition string
	True      Node
	False     Node
	program   *expr.Program
}

func (*Leaf) isNode()   {}
func (*Branch) isNode() {}

// Program returns the compiled condition.
func (b *Branch) Program() *expr.Program {
	if b.program == nil {
		return expr.Compile(b.Condition)
	}
	return b.program
}

// NewBranch builds a branch with its condition compiled.
func NewBranch(condition string, t, f Node) *Branch {
	return &Branch{Condition: condition, True: t, False: f, program: expr.Compile(condition)}
}

// NewComputedInput builds a computed input with its formula compiled.
func NewComputedInput(name, formula string) ComputedInput {
	return ComputedInput{Name: name, Formula: formula, program: expr.Compile(formula)}
}

// Leaves returns every leaf value in depth-first order.
func (d *Definition) Leaves() []expr.Value {
	var out []expr.Value
	walk(d.Tree, func(n Node, _ int) {
		if l, ok := n.(*Leaf); ok {
			out = append(out, l.Return)
		}
	})
	return out
}

// Depth returns the number of nodes on the longest root-to-leaf path.
func (d *Definition) Depth() int {
	deepest := 0
	walk(d.Tree, func(_ Node, depth int) {
		if depth > deepest {
			deepest = depth
		}
	})
	return deepest
}

func walk(n Node, fn func(Node, int)) {
	var rec func(Node, int)
	rec = func(n Node, depth int) {
		if n == nil {
			return
		}
		fn(n, depth)
		if b, ok := n.(*Branch); ok {
			rec(b.True, depth+1)
			rec(b.False, depth+1)
		}
	}
	rec(n, 1)
}

// ---------------------------------------------------------------------------
// JSON decoding
// ---------------------------------------------------------------------------

type rawDefinition struct {
	Name               *string         `json:"name"`
	Version            json.RawMessage `json:"version"`
	VerificationStatus string          `json:"verification_status"`
	OutputRange        []float64       `json:"output_range"`
	OutputType         string          `json:"output_type"`
	Tree               json.RawMessage `json:"tree"`
	ComputedInputs     orderedFormulas `json:"computed_inputs"`
	ItemsUsed          []string        `json:"items_used"`
}

// orderedFormulas keeps computed_inputs in declaration order; a later formula
// may reference an earlier one.
type orderedFormulas []ComputedInput

func (o *orderedFormulas) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("computed_inputs must be an object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var formula string
		if err := dec.Decode(&formula); err != nil {
			return fmt.Errorf("computed input %q: formula must be a string", key)
		}
		*o = append(*o, NewComputedInput(key, formula))
	}
	_, err = dec.Token()
	return err
}

// Parse decodes and validates a JSON algorithm definition.
func Parse(data []byte) (*Definition, error) {
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	var missing []string
	if raw.Name == nil || *raw.Name == "" {
		missing = append(missing, "name")
	}
	if len(raw.Version) == 0 || string(raw.Version) == "null" {
		missing = append(missing, "version")
	}
	if raw.OutputRange == nil {
		missing = append(missing, "output_range")
	}
	if len(raw.Tree) == 0 || string(raw.Tree) == "null" {
		missing = append(missing, "tree")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields %v", ErrInvalidDefinition, missing)
	}
	if len(raw.OutputRange) != 2 {
		return nil, fmt.Errorf("%w: output_range must have exactly two values", ErrInvalidDefinition)
	}

	tree, err := decodeNode(raw.Tree, "tree")
	if err != nil {
		return nil, err
	}

	def := &Definition{
		Name:               *raw.Name,
		Version:            versionString(raw.Version),
		VerificationStatus: raw.VerificationStatus,
		OutputRange:        [2]float64{raw.OutputRange[0], raw.OutputRange[1]},
		OutputType:         raw.OutputType,
		Tree:               tree,
		ComputedInputs:     []ComputedInput(raw.ComputedInputs),
		ItemsUsed:          raw.ItemsUsed,
	}
	if err := Validate(def); err != nil {
		return nil, err
	}
	return def, nil
}

func versionString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func decodeNode(raw json.RawMessage, path string) (Node, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: %s: node must be an object", ErrInvalidDefinition, path)
	}

	if ret, ok := fields["return"]; ok {
		var v interface{}
		if err := json.Unmarshal(ret, &v); err != nil {
			return nil, fmt.Errorf("%w: %s.return: %v", ErrInvalidDefinition, path, err)
		}
		switch v.(type) {
		case float64, bool:
			return &Leaf{Return: expr.FromAny(v)}, nil
		default:
			return nil, fmt.Errorf("%w: %s.return must be a number or boolean", ErrInvalidDefinition, path)
		}
	}

	for _, key := range []string{"condition", "true_branch", "false_branch"} {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w: %s: branch missing %q", ErrInvalidDefinition, path, key)
		}
	}
	var cond string
	if err := json.Unmarshal(fields["condition"], &cond); err != nil {
		return nil, fmt.Errorf("%w: %s.condition must be a string", ErrInvalidDefinition, path)
	}
	t, err := decodeNode(fields["true_branch"], path+".true_branch")
	if err != nil {
		return nil, err
	}
	f, err := decodeNode(fields["false_branch"], path+".false_branch")
	if err != nil {
		return nil, err
	}
	return NewBranch(cond, t, f), nil
}
