package expr

import (
	"strconv"
	"strings"
)

// Kind identifies which member of the Value union is populated.
type Kind int

const (
	KindNumber Kind = iota
	KindBool
	KindString
)

// Value is the result of evaluating an expression. Assessment items are
// numeric or boolean; strings only appear when callers pass them in.
type Value struct {
	kind Kind
	num  float64
	b    bool
	str  string
}

// Zero is the value unknown identifiers and malformed atoms resolve to.
var Zero = Number(0)

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func String(s string) Value { return Value{kind: KindString, str: s} }

func (v Value) Kind() Kind { return v.kind }

// Float returns the numeric reading of v. Booleans map to 0/1, numeric
// strings are parsed, anything else is 0.
func (v Value) Float() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString:
		f, ok := parseNumeric(v.str)
		if !ok {
			return 0
		}
		return f
	default:
		return v.num
	}
}

// Int truncates the numeric reading of v.
func (v Value) Int() int { return int(v.Float()) }

// Truthy follows the loose rules the rule authors rely on: 0, false, ""
// and "0" are false, everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.str != "" && v.str != "0"
	default:
		return v.num != 0
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return v.str
	default:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
}

// Interface returns v as a plain Go value: int for whole numbers, float64
// otherwise, bool or string.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.str
	default:
		if v.num == float64(int64(v.num)) {
			return int(v.num)
		}
		return v.num
	}
}

// MarshalJSON renders the underlying scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindString:
		return []byte(strconv.Quote(v.str)), nil
	default:
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	}
}

// FromAny converts decoded JSON/YAML scalars into a Value. Unsupported
// types (nil, maps, slices) become Zero.
func FromAny(x interface{}) Value {
	switch t := x.(type) {
	case Value:
		return t
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case int8:
		return Number(float64(t))
	case int16:
		return Number(float64(t))
	case int32:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case uint:
		return Number(float64(t))
	case uint8:
		return Number(float64(t))
	case uint16:
		return Number(float64(t))
	case uint32:
		return Number(float64(t))
	case uint64:
		return Number(float64(t))
	case float32:
		return Number(float64(t))
	case float64:
		return Number(t)
	case string:
		return String(t)
	default:
		return Zero
	}
}

// Vars is the flat variable context an expression is evaluated against.
type Vars map[string]Value

// VarsFromMap converts a decoded input map into Vars.
func VarsFromMap(m map[string]interface{}) Vars {
	out := make(Vars, len(m))
	for k, v := range m {
		out[k] = FromAny(v)
	}
	return out
}

// Lookup returns the named variable or Zero when it is absent.
func (vs Vars) Lookup(name string) Value {
	if v, ok := vs[name]; ok {
		return v
	}
	return Zero
}

func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal implements loose equality. Booleans win: if either side is a bool
// both sides are compared by truthiness, so an unset item (0) equals false.
// Two numeric operands (numeric strings included) compare as float64.
// Otherwise the string forms are compared.
func Equal(l, r Value) bool {
	if l.kind == KindBool || r.kind == KindBool {
		return l.Truthy() == r.Truthy()
	}
	lf, lok := numericOf(l)
	rf, rok := numericOf(r)
	if lok && rok {
		return lf == rf
	}
	return l.String() == r.String()
}

func numericOf(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		return parseNumeric(v.str)
	default:
		return v.Float(), true
	}
}

// Compare applies one of the six comparison operators. Unknown operators
// yield false.
func Compare(op string, l, r Value) bool {
	switch op {
	case "==":
		return Equal(l, r)
	case "!=":
		return !Equal(l, r)
	case ">=":
		return l.Float() >= r.Float()
	case "<=":
		return l.Float() <= r.Float()
	case ">":
		return l.Float() > r.Float()
	case "<":
		return l.Float() < r.Float()
	default:
		return false
	}
}

// IsComparisonOperator reports whether op is one of == != >= <= > <.
func IsComparisonOperator(op string) bool {
	switch op {
	case "==", "!=", ">=", "<=", ">", "<":
		return true
	}
	return false
}
