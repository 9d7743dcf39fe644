package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind tags the taxonomy of errors the compiler and VM can raise.
// Generalizes the teacher's APIError{Code, Message, Details} into the
// tagged-kind model the DSL needs: Kind plays the role APIError.Code played,
// Context plays the role APIError.Details played, but structured instead of
// a single string.
type ErrorKind string

const (
	KindRuntimeError         ErrorKind = "RuntimeError"
	KindTypeError            ErrorKind = "TypeError"
	KindDivisionByZero       ErrorKind = "DivisionByZero"
	KindInvalidOperator      ErrorKind = "InvalidOperator"
	KindInvalidAssignment    ErrorKind = "InvalidAssignment"
	KindInvalidFunctionCall  ErrorKind = "InvalidFunctionCall"
	KindInvalidMemberAccess  ErrorKind = "InvalidMemberAccess"
	KindUndefinedVariable    ErrorKind = "UndefinedVariable"
	KindUndefinedLabel       ErrorKind = "UndefinedLabel"
	KindUnimplementedFeature ErrorKind = "UnimplementedFeature"
	KindSyntaxError          ErrorKind = "SyntaxError"
	KindUnexpectedToken      ErrorKind = "UnexpectedToken"
	KindMissingToken         ErrorKind = "MissingToken"
	KindBuiltinError         ErrorKind = "BuiltinError"
	KindInvalidArgument      ErrorKind = "InvalidArgument"
)

// SourceLoc is a source span copied from the parsed tree's node.Loc into
// compiled instruction debug extras.
type SourceLoc struct {
	StartLine, StartCol int
	EndLine, EndCol     int
}

// Error is the tagged error every layer of this package raises. It
// implements the standard error interface and renders as
// "[Kind] message at line L, column C {key: value, ...}" per the spec's
// error surface.
type Error struct {
	Kind    ErrorKind
	Message string
	Loc     *SourceLoc
	Context map[string]any
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Loc != nil {
		fmt.Fprintf(&b, " at line %d, column %d", e.Loc.StartLine, e.Loc.StartCol)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %v", k, e.Context[k])
		}
		b.WriteString("}")
	}
	return b.String()
}

// WithContext returns a copy of e with key/value merged into Context.
func (e *Error) WithContext(key string, value any) *Error {
	ne := *e
	ctx := make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		ctx[k] = v
	}
	ctx[key] = value
	ne.Context = ctx
	return &ne
}

// AsEngineError reports whether err is (or wraps) an *Error and returns it.
func AsEngineError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// wrapRuntime wraps an arbitrary failure as a RuntimeError at the current
// instruction, preserving the original message. A failure that is already a
// typed *Error keeps its Kind and Message but, if it has no location of its
// own yet, picks up the raising instruction's.
func wrapRuntime(err error, instr *Instruction) *Error {
	if e, ok := AsEngineError(err); ok {
		if e.Loc == nil && instr != nil {
			ne := *e
			ne.Loc = instr.Loc
			return &ne
		}
		return e
	}
	ne := &Error{Kind: KindRuntimeError, Message: err.Error()}
	if instr != nil {
		ne.Context = map[string]any{
			"opcode":         instr.Op.String(),
			"instruction_id": instr.ID,
		}
		if instr.OperandName != "" {
			ne.Context["operand_name"] = instr.OperandName
		}
		ne.Loc = instr.Loc
	}
	return ne
}
