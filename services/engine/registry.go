package engine

import "fmt"

// Logger is the minimal sink builtins like PRINT write through. The VM's
// default implementation adapts a *zap.Logger (see vm.go); embedders may
// supply their own.
type Logger interface {
	Print(args ...any)
}

// CallState is the opaque per-call-site state object the VM hands to a
// registry entry by reference. An entry is free to stash ring buffers,
// scalars, or sub-state keyed by argument shape (e.g. "ma_5") within it;
// the VM never introspects it. Persists for the VM instance's lifetime.
type CallState map[string]any

// CallContext is what the VM passes to a registry entry on every call:
// {state, marketTs, log}. No registered entry currently reads MarketTs —
// bar fields flow to indicators as ordinary arguments (O/H/L/C lower to
// globals the same as any other identifier) — but it is carried here so a
// future entry needing the current bar's timestamp without threading it
// through its own arguments has somewhere to read it from.
type CallContext struct {
	State    CallState
	MarketTs float64
	Log      Logger
}

// EntryFunc is the signature every registry entry implements.
type EntryFunc func(args []Value, ctx *CallContext) (Value, error)

// Entry pairs a canonical name with its stateful/stateless implementation.
type Entry struct {
	Name    string
	Aliases []string
	Execute EntryFunc
}

// registry is a process-global, name -> entry table, immutable once built.
// Grounded on the teacher's IndicatorDAG/IndicatorConfig scaffolding
// (services/engine/indicators.go, indicators_simd.go), generalized from a
// warmup-only lookup into the full stateful call table the DSL needs.
type registry struct {
	entries map[string]*Entry
}

func newRegistry() *registry {
	return &registry{entries: map[string]*Entry{}}
}

// register adds e under its Name and every Alias. Duplicate registration
// under an already-used key is a startup-time bug.
func (r *registry) register(e *Entry) {
	names := make([]string, 0, len(e.Aliases)+1)
	names = append(names, e.Name)
	names = append(names, e.Aliases...)
	for _, n := range names {
		if _, exists := r.entries[n]; exists {
			panic(fmt.Sprintf("registry: duplicate entry for %q", n))
		}
		r.entries[n] = e
	}
}

func (r *registry) lookup(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// globalRegistry is the process-wide indicator table, populated once by
// registerBuiltins at package init.
var globalRegistry = newRegistry()

func init() {
	registerBuiltins(globalRegistry)
}

// LookupBuiltin exposes the global registry for the VM's CALL_BUILTIN
// dispatch.
func LookupBuiltin(name string) (*Entry, bool) {
	return globalRegistry.lookup(name)
}

func typeError(name, shape string) error {
	return &Error{Kind: KindTypeError, Message: fmt.Sprintf("%s expects %s", name, shape)}
}

func builtinError(name, msg string) error {
	return &Error{Kind: KindBuiltinError, Message: fmt.Sprintf("%s: %s", name, msg)}
}
