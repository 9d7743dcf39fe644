package engine

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// defaultMaxStackSize bounds the operand stack; a program that would need
// more is almost certainly a compiler bug, not a legitimate workload, per
// spec §4.F.
const defaultMaxStackSize = 1000

// zapLogger adapts a *zap.Logger to the registry's Logger interface, so
// PRINT calls flow through the same structured sink as everything else the
// VM logs. Grounded on the teacher's logging setup in cmd/server/main.go.
type zapLogger struct {
	z *zap.Logger
}

func (l zapLogger) Print(args ...any) {
	l.z.Info("PRINT", zap.Any("values", args))
}

// Options configures a VM instance.
type Options struct {
	Logger *zap.Logger

	// UserGlobals seeds globals declared via CompileOptions.ExtraGlobals
	// with values known at construction time (run parameters), not
	// per-bar market data. O, H, L, C are never sourced from here — they
	// come from each call's bar argument.
	UserGlobals map[string]float64

	// MaxStackSize overrides defaultMaxStackSize; 0 means "use the
	// default".
	MaxStackSize int
}

// ExecutionResult is what one bar's execution produces.
type ExecutionResult struct {
	// Output holds every value stored via the `:` output-assignment
	// operator this bar, keyed by variable name.
	Output map[string]Value

	// Locals holds every local variable's value at the end of this bar
	// (locals reset to null at the start of each bar).
	Locals map[string]Value

	// Globals holds every persisted global's value after this bar,
	// including O/H/L/C and any VARIABLE-declared globals.
	Globals map[string]Value

	// LastResult is the value of the final top-level statement, the one
	// instruction the compiler left un-popped.
	LastResult Value
}

// VM executes a compiled Program bar by bar. Locals reset every bar;
// globals, per-call-site indicator state, and the round counter persist
// for the VM's lifetime. Grounded on the teacher's engine.VM execution
// loop (services/engine/vm.go's opcode switch), retargeted from the
// teacher's OHLCV feature pipeline onto this package's IR and Value model.
type VM struct {
	id  uuid.UUID
	log *zap.Logger

	prog     *Program
	maxStack int

	globals []Value
	locals  []Value
	stack   []Value

	// callState is keyed by the calling instruction's ID: one persistent
	// state object per call site, shared across every bar.
	callState map[int]CallState

	round int

	// marketTs is the current bar's T field, remembered on every Execute
	// call the same way O/H/L/C are, and handed to builtins through
	// CallContext.MarketTs.
	marketTs float64
}

// New constructs a VM ready to execute prog, seeding O/H/L/C to null and
// any extra globals declared at compile time from opts.UserGlobals.
func New(prog *Program, opts Options) *VM {
	maxStack := opts.MaxStackSize
	if maxStack <= 0 {
		maxStack = defaultMaxStackSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	vm := &VM{
		id:        uuid.New(),
		log:       logger,
		prog:      prog,
		maxStack:  maxStack,
		globals:   make([]Value, len(prog.GlobalNames)),
		locals:    make([]Value, len(prog.LocalNames)),
		callState: make(map[int]CallState),
	}
	for name, v := range opts.UserGlobals {
		if slot, ok := prog.GlobalSlots[name]; ok {
			vm.globals[slot] = Num(v)
		}
	}
	vm.log.Debug("vm constructed", zap.String("vm_id", vm.id.String()))
	return vm
}

// ID returns this VM instance's correlation id, for log association across
// a long-running backtest or live session. Never part of Program's
// structural identity, so two VMs over the same compiled Program stay
// deterministically comparable regardless of instance id.
func (vm *VM) ID() uuid.UUID { return vm.id }

var barFieldAliases = map[string][]string{
	"O": {"O", "OPEN"},
	"H": {"H", "HIGH"},
	"L": {"L", "LOW"},
	"C": {"C", "CLOSE"},
}

// marketTsAliases are the bar keys checked for the current bar's
// timestamp. Unlike O/H/L/C, T is not required; a bar without one leaves
// marketTs at its previous value.
var marketTsAliases = []string{"T", "TIME", "TIMESTAMP"}

// Execute runs one bar through the program: resets locals and the output
// map, ingests O/H/L/C (and any other bar field that has a global slot)
// from bar, runs to completion, and reports the resulting state.
func (vm *VM) Execute(bar map[string]float64) (res *ExecutionResult, err error) {
	vm.round++
	for i := range vm.locals {
		vm.locals[i] = Null
	}
	vm.stack = vm.stack[:0]

	for canonical, aliases := range barFieldAliases {
		slot, ok := vm.prog.GlobalSlots[canonical]
		if !ok {
			continue
		}
		v, ok := lookupBarField(bar, aliases)
		if !ok {
			err = &Error{
				Kind:    KindRuntimeError,
				Message: fmt.Sprintf("bar is missing required field %s", canonical),
				Context: map[string]any{"field": canonical},
			}
			vm.log.Error("execution failed", zap.String("vm_id", vm.id.String()), zap.Error(err))
			return nil, err
		}
		vm.globals[slot] = Num(v)
	}
	// Any other bar field whose name has a global slot (an embedder-declared
	// extra global) receives this bar's value.
	for name, v := range bar {
		if _, isOHLC := barFieldAliases[name]; isOHLC {
			continue
		}
		if slot, ok := vm.prog.GlobalSlots[name]; ok {
			vm.globals[slot] = Num(v)
		}
	}
	if v, ok := lookupBarField(bar, marketTsAliases); ok {
		vm.marketTs = v
	}

	output := map[string]Value{}
	if err := vm.run(output); err != nil {
		vm.log.Error("execution failed", zap.String("vm_id", vm.id.String()), zap.Error(err))
		return nil, err
	}

	locals := make(map[string]Value, len(vm.prog.LocalNames))
	for i, name := range vm.prog.LocalNames {
		if name != "" {
			locals[name] = vm.locals[i]
		}
	}
	globals := make(map[string]Value, len(vm.prog.GlobalNames))
	for i, name := range vm.prog.GlobalNames {
		if name != "" {
			globals[name] = vm.globals[i]
		}
	}
	last := Null
	if len(vm.stack) > 0 {
		last = vm.stack[len(vm.stack)-1]
	}
	return &ExecutionResult{Output: output, Locals: locals, Globals: globals, LastResult: last}, nil
}

func lookupBarField(bar map[string]float64, aliases []string) (float64, bool) {
	for _, a := range aliases {
		if v, ok := bar[a]; ok {
			return v, true
		}
	}
	return 0, false
}

func (vm *VM) push(v Value, instr *Instruction) error {
	if len(vm.stack) >= vm.maxStack {
		return wrapRuntime(fmt.Errorf("stack overflow (max %d)", vm.maxStack), instr)
	}
	vm.stack = append(vm.stack, v)
	return nil
}

func (vm *VM) pop(instr *Instruction) (Value, error) {
	if len(vm.stack) == 0 {
		return Null, wrapRuntime(fmt.Errorf("stack underflow"), instr)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

// run dispatches the main function's instructions to completion.
func (vm *VM) run(output map[string]Value) error {
	instrs := vm.prog.Main.Instructions
	pc := 0
	for pc < len(instrs) {
		instr := &instrs[pc]
		next, err := vm.step(instr, output)
		if err != nil {
			return wrapRuntime(err, instr)
		}
		if next >= 0 {
			pc = next
			continue
		}
		pc++
	}
	return nil
}

// step executes a single instruction. It returns a non-negative target pc
// for control-flow instructions, or -1 to mean "advance to the next
// instruction normally".
func (vm *VM) step(instr *Instruction, output map[string]Value) (int, error) {
	switch instr.Op {
	case OpNop:
		return -1, nil

	case OpLoadConst:
		return -1, vm.push(vm.prog.Constants[instr.IntOperand()], instr)

	case OpLoadVar:
		return -1, vm.push(vm.locals[instr.IntOperand()], instr)

	case OpLoadGlobal:
		return -1, vm.push(vm.globals[instr.IntOperand()], instr)

	case OpStoreVar:
		v, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		vm.locals[instr.IntOperand()] = v
		return -1, nil

	case OpStoreGlobal:
		v, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		vm.globals[instr.IntOperand()] = v
		return -1, nil

	case OpInitGlobal:
		v, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		if vm.round == 1 {
			vm.globals[instr.IntOperand()] = v
		}
		return -1, nil

	case OpStoreOutput:
		v, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		output[instr.OperandName] = v
		return -1, vm.push(v, instr)

	case OpAdd, OpSub, OpMul, OpDiv:
		return -1, vm.binaryArith(instr)

	case OpUnaryPlus, OpUnaryMinus:
		return -1, vm.unaryArith(instr)

	case OpGT, OpLT, OpGTE, OpLTE:
		return -1, vm.compareNumeric(instr)

	case OpEQ, OpNEQ:
		return -1, vm.compareEqual(instr)

	case OpAnd, OpOr:
		return -1, vm.logical(instr)

	case OpJump:
		return vm.prog.Labels[instr.LabelOperand()], nil

	case OpJumpIfFalse:
		v, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		if !v.Truthy() {
			return vm.prog.Labels[instr.LabelOperand()], nil
		}
		return -1, nil

	case OpJumpIfTrue:
		v, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		if v.Truthy() {
			return vm.prog.Labels[instr.LabelOperand()], nil
		}
		return -1, nil

	case OpCallBuiltin:
		return -1, vm.callBuiltin(instr)

	case OpCallFunc:
		return -1, &Error{Kind: KindUnimplementedFeature, Message: "user-defined function values are not supported"}

	case OpPop:
		_, err := vm.pop(instr)
		return -1, err

	case OpDup:
		v, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		if err := vm.push(v, instr); err != nil {
			return -1, err
		}
		return -1, vm.push(v, instr)

	case OpSwap:
		b, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		a, err := vm.pop(instr)
		if err != nil {
			return -1, err
		}
		if err := vm.push(b, instr); err != nil {
			return -1, err
		}
		return -1, vm.push(a, instr)

	case OpReturn:
		return len(vm.prog.Main.Instructions), nil

	default:
		return -1, &Error{Kind: KindRuntimeError, Message: fmt.Sprintf("unhandled opcode %s", instr.Op)}
	}
}

func (vm *VM) binaryArith(instr *Instruction) error {
	b, err := vm.pop(instr)
	if err != nil {
		return err
	}
	a, err := vm.pop(instr)
	if err != nil {
		return err
	}
	if a.IsNull() || b.IsNull() {
		return vm.push(Null, instr)
	}
	if a.Kind != KindFloat || b.Kind != KindFloat {
		return &Error{Kind: KindTypeError, Message: fmt.Sprintf("%s requires numeric operands", instr.Op)}
	}
	var r float64
	switch instr.Op {
	case OpAdd:
		r = a.Num + b.Num
	case OpSub:
		r = a.Num - b.Num
	case OpMul:
		r = a.Num * b.Num
	case OpDiv:
		if b.Num == 0 {
			return &Error{Kind: KindDivisionByZero, Message: "division by zero"}
		}
		r = a.Num / b.Num
	}
	return vm.push(Num(r), instr)
}

func (vm *VM) unaryArith(instr *Instruction) error {
	a, err := vm.pop(instr)
	if err != nil {
		return err
	}
	if a.IsNull() {
		return vm.push(Null, instr)
	}
	if a.Kind != KindFloat {
		return &Error{Kind: KindTypeError, Message: fmt.Sprintf("%s requires a numeric operand", instr.Op)}
	}
	if instr.Op == OpUnaryMinus {
		return vm.push(Num(-a.Num), instr)
	}
	return vm.push(a, instr)
}

func (vm *VM) compareNumeric(instr *Instruction) error {
	b, err := vm.pop(instr)
	if err != nil {
		return err
	}
	a, err := vm.pop(instr)
	if err != nil {
		return err
	}
	if a.IsNull() || b.IsNull() {
		return vm.push(Null, instr)
	}
	if a.Kind != KindFloat || b.Kind != KindFloat {
		return &Error{Kind: KindTypeError, Message: fmt.Sprintf("%s requires numeric operands", instr.Op)}
	}
	var r bool
	switch instr.Op {
	case OpGT:
		r = a.Num > b.Num
	case OpLT:
		r = a.Num < b.Num
	case OpGTE:
		r = a.Num >= b.Num
	case OpLTE:
		r = a.Num <= b.Num
	}
	return vm.push(Bool(r), instr)
}

func (vm *VM) compareEqual(instr *Instruction) error {
	b, err := vm.pop(instr)
	if err != nil {
		return err
	}
	a, err := vm.pop(instr)
	if err != nil {
		return err
	}
	eq := a.Equal(b)
	if instr.Op == OpNEQ {
		eq = !eq
	}
	return vm.push(Bool(eq), instr)
}

func (vm *VM) logical(instr *Instruction) error {
	b, err := vm.pop(instr)
	if err != nil {
		return err
	}
	a, err := vm.pop(instr)
	if err != nil {
		return err
	}
	if a.IsNull() || b.IsNull() {
		return vm.push(Null, instr)
	}
	var r bool
	if instr.Op == OpAnd {
		r = a.Truthy() && b.Truthy()
	} else {
		r = a.Truthy() || b.Truthy()
	}
	return vm.push(Bool(r), instr)
}

func (vm *VM) callBuiltin(instr *Instruction) error {
	call := instr.CallOperandOf()
	if call == nil {
		return &Error{Kind: KindRuntimeError, Message: "malformed CALL_BUILTIN operand"}
	}
	entry, ok := LookupBuiltin(call.Name)
	if !ok {
		return &Error{Kind: KindInvalidFunctionCall, Message: fmt.Sprintf("unknown function %s", call.Name)}
	}
	args := make([]Value, call.ArgCount)
	for i := call.ArgCount - 1; i >= 0; i-- {
		v, err := vm.pop(instr)
		if err != nil {
			return err
		}
		args[i] = v
	}
	state, ok := vm.callState[instr.ID]
	if !ok {
		state = CallState{}
		vm.callState[instr.ID] = state
	}
	ctx := &CallContext{State: state, MarketTs: vm.marketTs, Log: zapLogger{z: vm.log}}
	result, err := entry.Execute(args, ctx)
	if err != nil {
		if e, ok := AsEngineError(err); ok {
			return e.WithContext("function", call.Name)
		}
		return err
	}
	return vm.push(result, instr)
}
