package engine

// This file implements the indicators whose state is a handful of scalars
// or a small bounded history rather than a full rolling window: continuous
// smoothers (EMA, the 3-arg SMA, DMA), lag/crossing detectors (REF, CROSS,
// CROSSDOWN, BARSLAST, LONGCROSS, VALUEWHEN, LAST, FILTER). Grounded on the
// teacher's stateful strategy indicators (strategies/ema_atr_strategy.go's
// running EMA/ATR updates), generalized to the DSL's per-call-site state
// object instead of a struct field on a fixed strategy type.

type emaState struct {
	prev float64
	init bool
}

// biEMA is the continuous exponential moving average: seeded with the
// first observed x (no SMA warmup), alpha = 2/(n+1).
func biEMA(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("EMA", "(x, n)")
	}
	x, null, err := numArg(args, 0)
	if err != nil {
		return Null, err
	}
	if null {
		return Null, nil
	}
	n, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	if n <= 0 {
		return Null, nil
	}
	const key = "ema"
	st := getEMAState(ctx.State, key)
	if !st.init {
		st.prev = x
		st.init = true
		return Num(x), nil
	}
	alpha := 2.0 / float64(n+1)
	st.prev = st.prev*(1-alpha) + x*alpha
	return Num(st.prev), nil
}

func getEMAState(state CallState, key string) *emaState {
	if v, ok := state[key]; ok {
		return v.(*emaState)
	}
	st := &emaState{}
	state[key] = st
	return st
}

// biSMA3 is the classic TDX-style 3-argument smoothing function: prev ← x
// on the first call, otherwise prev ← prev*(n-m)/n + x*m/n. Registered as
// "SMA" rather than as an alias of MA: the spec's alias example ("SMA→MA")
// and its own worked formula for a 3-arg SMA name the same token for two
// different arities, so SMA is kept as this smoothing function and MA's
// 2-arg moving average gets no SMA alias.
func biSMA3(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 3 {
		return Null, typeError("SMA", "(x, n, m)")
	}
	x, null, err := numArg(args, 0)
	if err != nil {
		return Null, err
	}
	if null {
		return Null, nil
	}
	n, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	m, err := intArg(args, 2)
	if err != nil {
		return Null, err
	}
	if n <= 0 || m <= 0 || m > n {
		return Null, &Error{Kind: KindInvalidArgument, Message: "SMA requires 0 < m <= n"}
	}
	const key = "sma3"
	st := getEMAState(ctx.State, key)
	if !st.init {
		st.prev = x
		st.init = true
		return Num(x), nil
	}
	st.prev = st.prev*float64(n-m)/float64(n) + x*float64(m)/float64(n)
	return Num(st.prev), nil
}

// biDMA is a dynamic moving average whose smoothing factor is itself a
// per-bar argument rather than derived from a fixed window: prev ← x on
// the first call, otherwise prev ← prev*(1-a) + x*a, strict 0 < a < 1.
func biDMA(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("DMA", "(x, a)")
	}
	x, xNull, err := numArg(args, 0)
	if err != nil {
		return Null, err
	}
	a, aNull, err := numArg(args, 1)
	if err != nil {
		return Null, err
	}
	if xNull || aNull {
		return Null, nil
	}
	if a <= 0 || a >= 1 {
		return Null, &Error{Kind: KindInvalidArgument, Message: "DMA requires 0 < a < 1"}
	}
	const key = "dma"
	st := getEMAState(ctx.State, key)
	if !st.init {
		st.prev = x
		st.init = true
		return Num(x), nil
	}
	st.prev = st.prev*(1-a) + x*a
	return Num(st.prev), nil
}

// biREF looks back n bars in x's own history, returning null until n bars
// have accumulated.
func biREF(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("REF", "(x, n)")
	}
	n, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	if n <= 0 {
		return Null, &Error{Kind: KindInvalidArgument, Message: "REF requires n > 0"}
	}
	buf, err := getOrCreateValueBuf(ctx.State, stateKey("ref", n), n)
	if err != nil {
		return Null, err
	}
	cur := args[0]
	out := Null
	if buf.Full() {
		// Checked before this bar's push, so the oldest retained entry is
		// exactly n bars behind the current one.
		out = buf.First()
	}
	buf.Push(cur)
	return out, nil
}

// getOrCreateValueBuf is the Value-typed analogue of getOrCreateFloatBuf,
// needed by REF-style lookback indicators that must preserve null/bool/
// string history, not just floats.
func getOrCreateValueBuf(state CallState, key string, capacity int) (*RingBuf[Value], error) {
	if v, ok := state[key]; ok {
		return v.(*RingBuf[Value]), nil
	}
	buf, err := NewRingBuf[Value](capacity)
	if err != nil {
		return nil, err
	}
	state[key] = buf
	return buf, nil
}

type crossState struct {
	prevSign int  // sign of a-b on the prior bar: -1, 0 or 1
	seen     bool // false until the first non-null observation
}

func signOf(d float64) int {
	switch {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

// biCROSS reports a golden cross: a strictly below b on the prior bar,
// strictly above b on this one. Null, not 0, when there is no prior bar or
// the crossing does not fire.
func biCROSS(args []Value, ctx *CallContext) (Value, error) {
	return crossing(args, ctx, "cross", func(prev, cur int) bool { return prev < 0 && cur > 0 })
}

// biCROSSDOWN is CROSS's mirror: a strictly above b, then strictly below.
func biCROSSDOWN(args []Value, ctx *CallContext) (Value, error) {
	return crossing(args, ctx, "crossdown", func(prev, cur int) bool { return prev > 0 && cur < 0 })
}

func crossing(args []Value, ctx *CallContext, key string, fires func(prev, cur int) bool) (Value, error) {
	if len(args) != 2 {
		return Null, typeError(key, "(a, b)")
	}
	a, aNull, err := numArg(args, 0)
	if err != nil {
		return Null, err
	}
	b, bNull, err := numArg(args, 1)
	if err != nil {
		return Null, err
	}
	if aNull || bNull {
		return Null, nil
	}
	raw, ok := ctx.State[key]
	var st *crossState
	if ok {
		st = raw.(*crossState)
	} else {
		st = &crossState{}
		ctx.State[key] = st
	}
	cur := signOf(a - b)
	if !st.seen {
		st.seen = true
		st.prevSign = cur
		return Null, nil
	}
	out := Null
	if fires(st.prevSign, cur) {
		out = Num(1)
	}
	st.prevSign = cur
	return out, nil
}

type barsLastState struct {
	barIndex int
	lastTrue int
	everTrue bool
}

// biBARSLAST counts bars since cond last held true, null if it never has.
func biBARSLAST(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 1 {
		return Null, typeError("BARSLAST", "(cond)")
	}
	if args[0].IsNull() {
		return Null, nil
	}
	cond := args[0].Truthy()
	const key = "barslast"
	raw, ok := ctx.State[key]
	var st *barsLastState
	if ok {
		st = raw.(*barsLastState)
	} else {
		st = &barsLastState{}
		ctx.State[key] = st
	}
	if cond {
		st.lastTrue = st.barIndex
		st.everTrue = true
	}
	out := Null
	if st.everTrue {
		out = Num(float64(st.barIndex - st.lastTrue))
	}
	st.barIndex++
	return out, nil
}

type valueWhenState struct {
	last Value
	set  bool
}

// biVALUEWHEN latches data whenever cond is truthy and returns the latch.
func biVALUEWHEN(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("VALUEWHEN", "(cond, data)")
	}
	const key = "valuewhen"
	raw, ok := ctx.State[key]
	var st *valueWhenState
	if ok {
		st = raw.(*valueWhenState)
	} else {
		st = &valueWhenState{}
		ctx.State[key] = st
	}
	if !args[0].IsNull() && args[0].Truthy() {
		st.last = args[1]
		st.set = true
	}
	if !st.set {
		return Null, nil
	}
	return st.last, nil
}

// biLAST reports whether cond held continuously from n2 to n1 bars ago
// (inclusive, n1 >= n2 >= 0), 0 if there is not yet enough history.
func biLAST(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 3 {
		return Null, typeError("LAST", "(cond, n1, n2)")
	}
	if args[0].IsNull() {
		return Null, nil
	}
	cond := args[0].Truthy()
	n1, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	n2, err := intArg(args, 2)
	if err != nil {
		return Null, err
	}
	if n1 < n2 || n2 < 0 {
		return Null, &Error{Kind: KindInvalidArgument, Message: "LAST requires n1 >= n2 >= 0"}
	}
	windowCap := n1 + 1
	cb, err := getOrCreateCountBuf(ctx.State, stateKey("last", windowCap), windowCap)
	if err != nil {
		return Null, err
	}
	cb.push(cond)
	if cb.buf.Len() < windowCap {
		return boolNum(false), nil
	}
	arr := cb.buf.ToArray()
	lo, hi := len(arr)-1-n1, len(arr)-1-n2
	for i := lo; i <= hi; i++ {
		if !arr[i] {
			return boolNum(false), nil
		}
	}
	return boolNum(true), nil
}

// biFILTER emits 1 when cond is true and at least n bars have passed since
// the previous emission, suppressing re-triggers in between.
func biFILTER(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("FILTER", "(cond, n)")
	}
	if args[0].IsNull() {
		return Null, nil
	}
	cond := args[0].Truthy()
	n, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	const key = "filter"
	raw, ok := ctx.State[key]
	st, _ := raw.(*barsLastState)
	if !ok {
		st = &barsLastState{lastTrue: -n - 1}
		ctx.State[key] = st
	}
	out := boolNum(false)
	if cond && st.barIndex-st.lastTrue >= n {
		st.lastTrue = st.barIndex
		out = boolNum(true)
	}
	st.barIndex++
	return out, nil
}

// biLONGCROSS reports 1 iff a < b held for the prior n bars and a >= b now.
func biLONGCROSS(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 3 {
		return Null, typeError("LONGCROSS", "(a, b, n)")
	}
	a, aNull, err := numArg(args, 0)
	if err != nil {
		return Null, err
	}
	b, bNull, err := numArg(args, 1)
	if err != nil {
		return Null, err
	}
	if aNull || bNull {
		return Null, nil
	}
	n, err := intArg(args, 2)
	if err != nil {
		return Null, err
	}
	if n <= 0 {
		return Null, &Error{Kind: KindInvalidArgument, Message: "LONGCROSS requires n > 0"}
	}
	cb, err := getOrCreateCountBuf(ctx.State, stateKey("longcross", n), n)
	if err != nil {
		return Null, err
	}
	priorHeld := cb.buf.Full() && cb.trues == cb.buf.Len()
	fires := priorHeld && a >= b
	cb.push(a < b)
	return boolNum(fires), nil
}
