package engine

// Package engine implements the compiler and stack VM for the technical
// analysis DSL: IR instructions (ir.go), the tree-to-IR compiler
// (compiler.go), the stack VM (vm.go), the indicator registry and its
// entries (registry.go, indicators_*.go), the ring buffer (ringbuffer.go)
// and the tagged error model (errors.go).

// ValueKind tags the dynamic type carried by a Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindFloat
	KindBool
	KindString
)

// Value is the tagged union every IR instruction pushes and pops. Only one
// of Num/Bool/Str is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Num  float64
	Bool bool
	Str  string
}

// Null is the sentinel value that propagates through arithmetic.
var Null = Value{Kind: KindNull}

// Num constructs a float value.
func Num(f float64) Value { return Value{Kind: KindFloat, Num: f} }

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Str constructs a string value.
func Str(s string) Value { return Value{Kind: KindString, Str: s} }

// IsNull reports whether v is the null sentinel.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Truthy implements the language's truthiness rule: false, 0, null and the
// empty string are falsy; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindFloat:
		return v.Num != 0
	case KindString:
		return v.Str != ""
	default:
		return false
	}
}

// Equal implements strict structural equality: no coercion across kinds,
// null equals only null.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindFloat:
		return v.Num == o.Num
	case KindString:
		return v.Str == o.Str
	default:
		return false
	}
}
