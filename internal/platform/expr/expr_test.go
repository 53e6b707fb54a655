package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Logical and comparison operators
// ---------------------------------------------------------------------------

func TestEval_AndOfComparisons(t *testing.T) {
	p := Compile("C1 >= 2 && C2a == 1")
	require.True(t, p.Valid(), p.Diagnostics())

	assert.True(t, p.Eval(Vars{"C1": Number(3), "C2a": Number(1)}).Truthy())
	assert.False(t, p.Eval(Vars{"C1": Number(1), "C2a": Number(1)}).Truthy())
}

func TestEval_Precedence(t *testing.T) {
	tests := []struct {
		name string
		src  string
		vars Vars
		want Value
	}{
		{"or binds looser than and", "a == 1 || b == 1 && c == 1", Vars{"a": Number(1)}, Bool(true)},
		{"and of or group", "(a == 1 || b == 1) && c == 1", Vars{"a": Number(1)}, Bool(false)},
		{"addition before comparison", "a + b >= 3", Vars{"a": Number(1), "b": Number(2)}, Bool(true)},
		{"ternary lowest", "a > 1 ? 5 : 7", Vars{"a": Number(2)}, Number(5)},
		{"ternary else", "a > 1 ? 5 : 7", Vars{"a": Number(0)}, Number(7)},
		{"nested ternary in then", "a > 0 ? b > 0 ? 1 : 2 : 3", Vars{"a": Number(1)}, Number(2)},
		{"nested ternary in else", "a > 0 ? 1 : b > 0 ? 2 : 3", Vars{"b": Number(1)}, Number(2)},
		{"parenthesized ternary in sum", "(a > 0 ? 2 : 0) + (b > 0 ? 3 : 0)", Vars{"a": Number(1), "b": Number(1)}, Number(5)},
		{"group in comparison", "(a + b) > (c + 1)", Vars{"a": Number(2), "b": Number(2), "c": Number(2)}, Bool(true)},
		{"sum of three", "a + b + c", Vars{"a": Number(1), "b": Number(2), "c": Number(3)}, Number(6)},
		{"literal true", "true", nil, Bool(true)},
		{"literal float", "2.5", nil, Number(2.5)},
		{"not equal", "a != 2", Vars{"a": Number(3)}, Bool(true)},
		{"less than or equal", "a <= 2", Vars{"a": Number(2)}, Bool(true)},
		{"strict less than", "a < 2", Vars{"a": Number(2)}, Bool(false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Eval(tt.src, tt.vars)
			assert.True(t, Equal(got, tt.want), "got %s, want %s", got, tt.want)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestEval_OperatorInsideParensIsNotSplitPoint(t *testing.T) {
	// The && lives inside the group, so the top-level split is the ||.
	p := Compile("(a == 1 && b == 1) || c == 1")
	assert.Equal(t, "((a == 1) && (b == 1)) || (c == 1)", trimOuter(p.String()))

	assert.True(t, p.Eval(Vars{"c": Number(1)}).Truthy())
	assert.False(t, p.Eval(Vars{"a": Number(1)}).Truthy())
}

func TestEval_TernaryConditionWithColonInsideGroup(t *testing.T) {
	p := Compile("(a > 0 ? 1 : 0) == 1 ? 10 : 20")
	require.True(t, p.Valid(), p.Diagnostics())
	assert.Equal(t, 10, p.Eval(Vars{"a": Number(4)}).Int())
	assert.Equal(t, 20, p.Eval(Vars{}).Int())
}

// ---------------------------------------------------------------------------
// Fail-soft behaviour
// ---------------------------------------------------------------------------

func TestEval_UnknownIdentifierIsZero(t *testing.T) {
	assert.Equal(t, 0, Eval("missing", Vars{}).Int())
	assert.True(t, Eval("missing == 0", Vars{}).Truthy())
	assert.True(t, Eval("missing + 2 == 2", nil).Truthy())
}

func TestEval_FloatWordsAreIdentifiers(t *testing.T) {
	for _, word := range []string{"inf", "Infinity", "NaN", "nan"} {
		t.Run(word, func(t *testing.T) {
			p := Compile(word + " > 5")
			require.True(t, p.Valid(), p.Diagnostics())
			assert.Equal(t, []string{word}, p.Identifiers())
			assert.False(t, p.Eval(Vars{}).Truthy())
			assert.True(t, p.Eval(Vars{word: Number(9)}).Truthy())
		})
	}
	assert.True(t, Eval(".5 + 1 == 1.5", nil).Truthy())
}

func TestEval_MalformedFailsClosed(t *testing.T) {
	tests := []string{
		"(a == 1",
		"a == 1)",
		"a $ b",
		"",
		"a ? 1",
		"a + ",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			p := Compile(src)
			assert.False(t, p.Valid())
			assert.NotEmpty(t, p.Diagnostics())
			assert.NotPanics(t, func() { p.Eval(Vars{"a": Number(1), "b": Number(1)}) })
		})
	}

	assert.False(t, Eval("(a == 1", Vars{"a": Number(1)}).Truthy())
}

func TestEval_PartiallyMalformedStillEvaluatesRest(t *testing.T) {
	p := Compile("a == 1 || #bad")
	assert.False(t, p.Valid())
	assert.True(t, p.Eval(Vars{"a": Number(1)}).Truthy())
	assert.False(t, p.Eval(Vars{"a": Number(0)}).Truthy())
}

// ---------------------------------------------------------------------------
// Loose equality
// ---------------------------------------------------------------------------

func TestEqual_LooseSemantics(t *testing.T) {
	tests := []struct {
		name string
		l, r Value
		want bool
	}{
		{"zero equals false", Number(0), Bool(false), true},
		{"one equals true", Number(1), Bool(true), true},
		{"two equals true", Number(2), Bool(true), true},
		{"numeric string equals number", String("3"), Number(3), true},
		{"numeric strings compare numerically", String("1.0"), String("1"), true},
		{"different strings", String("a"), String("b"), false},
		{"empty string equals false", String(""), Bool(false), true},
		{"zero string equals false", String("0"), Bool(false), true},
		{"numbers", Number(2), Number(3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.l, tt.r))
			assert.Equal(t, tt.want, Equal(tt.r, tt.l))
		})
	}
}

func TestEval_UnsetItemEqualsFalse(t *testing.T) {
	assert.True(t, Eval("J1 == false", Vars{}).Truthy())
	assert.False(t, Eval("J1 != false", Vars{}).Truthy())
}

func TestCompare_BoolOrdering(t *testing.T) {
	assert.True(t, Compare(">", Bool(true), Bool(false)))
	assert.True(t, Compare(">=", Number(1), Bool(true)))
	assert.False(t, Compare("~", Number(1), Number(1)))
}

// ---------------------------------------------------------------------------
// Purity and introspection
// ---------------------------------------------------------------------------

func TestEval_Deterministic(t *testing.T) {
	srcs := []string{
		"C1 >= 2 && C2a == 1",
		"(a + b) > 2 ? a : b",
		"x || y && z",
	}
	vars := Vars{"C1": Number(2), "C2a": Number(1), "a": Number(2), "b": Number(1), "y": Bool(true), "z": Number(3)}
	for _, src := range srcs {
		p := Compile(src)
		first := p.Eval(vars)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, p.Eval(vars), src)
		}
		assert.Equal(t, first, Eval(src, vars), src)
	}
}

func TestProgram_Identifiers(t *testing.T) {
	p := Compile("(adl_hierarchy >= 3 || cps > 2) && adl_hierarchy < 6 ? 1 : iG1aa")
	assert.Equal(t, []string{"adl_hierarchy", "cps", "iG1aa"}, p.Identifiers())
}

func TestVarsFromMap(t *testing.T) {
	vs := VarsFromMap(map[string]interface{}{
		"i":   3,
		"f":   1.5,
		"b":   true,
		"s":   "x",
		"nil": nil,
	})
	assert.Equal(t, 3, vs.Lookup("i").Int())
	assert.Equal(t, 1.5, vs.Lookup("f").Float())
	assert.True(t, vs.Lookup("b").Truthy())
	assert.Equal(t, "x", vs.Lookup("s").String())
	assert.Equal(t, Zero, vs.Lookup("nil"))
	assert.Equal(t, Zero, vs.Lookup("absent"))
}

func TestValue_Interface(t *testing.T) {
	assert.Equal(t, 3, Number(3).Interface())
	assert.Equal(t, 2.5, Number(2.5).Interface())
	assert.Equal(t, true, Bool(true).Interface())
}

func trimOuter(s string) string {
	if wrapped(s) {
		return s[1 : len(s)-1]
	}
	return s
}
