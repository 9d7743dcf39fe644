package engine

import "math"

// This file implements the rolling-window indicator family (spec §4.E):
// each call site owns a fixed-capacity buffer keyed on its window size n,
// filled bar by bar, returning null until the window is full (when n > 0).
// Grounded on the teacher's windowed feature calculators
// (services/engine/indicators.go's SMA/stddev helpers), generalized from a
// batch-array input to the DSL's one-bar-at-a-time call contract.

func biMA(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("MA", "(x, n)")
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
	buf, err := getOrCreateStatsBuf(ctx.State, stateKey("ma", n), n)
	if err != nil {
		return Null, err
	}
	buf.Push(x)
	if n > 0 && !buf.Full() {
		return Null, nil
	}
	return Num(buf.Avg()), nil
}

func biSUM(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("SUM", "(x, n)")
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
	buf, err := getOrCreateStatsBuf(ctx.State, stateKey("sum", n), windowCapacity(n))
	if err != nil {
		return Null, err
	}
	buf.Push(x)
	if n > 0 && !buf.Full() {
		return Null, nil
	}
	return Num(buf.Sum()), nil
}

func biCOUNT(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("COUNT", "(cond, n)")
	}
	if args[0].IsNull() {
		return Null, nil
	}
	cond := args[0].Truthy()
	n, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	cb, err := getOrCreateCountBuf(ctx.State, stateKey("count", n), n)
	if err != nil {
		return Null, err
	}
	cb.push(cond)
	if n > 0 && !cb.buf.Full() {
		return Null, nil
	}
	return Num(float64(cb.trues)), nil
}

func biEXIST(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("EXIST", "(cond, n)")
	}
	if args[0].IsNull() {
		return Null, nil
	}
	cond := args[0].Truthy()
	n, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	cb, err := getOrCreateCountBuf(ctx.State, stateKey("exist", n), n)
	if err != nil {
		return Null, err
	}
	cb.push(cond)
	if n > 0 && !cb.buf.Full() {
		return Null, nil
	}
	return boolNum(cb.trues > 0), nil
}

func biEVERY(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("EVERY", "(cond, n)")
	}
	if args[0].IsNull() {
		return Null, nil
	}
	cond := args[0].Truthy()
	n, err := intArg(args, 1)
	if err != nil {
		return Null, err
	}
	cb, err := getOrCreateCountBuf(ctx.State, stateKey("every", n), n)
	if err != nil {
		return Null, err
	}
	cb.push(cond)
	if n > 0 && !cb.buf.Full() {
		return Null, nil
	}
	return boolNum(cb.trues == cb.buf.Len()), nil
}

func boolNum(b bool) Value {
	if b {
		return Num(1)
	}
	return Num(0)
}

func biHHV(args []Value, ctx *CallContext) (Value, error) {
	v, _, err := extremeWindow(args, ctx, "hhv", true)
	return v, err
}

func biLLV(args []Value, ctx *CallContext) (Value, error) {
	v, _, err := extremeWindow(args, ctx, "llv", false)
	return v, err
}

func biHHVBARS(args []Value, ctx *CallContext) (Value, error) {
	_, idx, err := extremeWindow(args, ctx, "hhvbars", true)
	if err != nil || idx < 0 {
		return Null, err
	}
	return Num(float64(idx)), nil
}

func biLLVBARS(args []Value, ctx *CallContext) (Value, error) {
	_, idx, err := extremeWindow(args, ctx, "llvbars", false)
	if err != nil || idx < 0 {
		return Null, err
	}
	return Num(float64(idx)), nil
}

// extremeWindow pushes x into the named window and returns the extreme
// value and, as idx, the number of bars between the extreme and the
// newest bar (0 == the current bar holds the extreme). idx is -1 when the
// window is not yet full.
func extremeWindow(args []Value, ctx *CallContext, prefix string, wantMax bool) (Value, int, error) {
	if len(args) != 2 {
		return Null, -1, typeError(prefix, "(x, n)")
	}
	x, null, err := numArg(args, 0)
	if err != nil {
		return Null, -1, err
	}
	if null {
		return Null, -1, nil
	}
	n, err := intArg(args, 1)
	if err != nil {
		return Null, -1, err
	}
	buf, err := getOrCreateFloatBuf(ctx.State, stateKey(prefix, n), windowCapacity(n))
	if err != nil {
		return Null, -1, err
	}
	buf.Push(x)
	if n > 0 && !buf.Full() {
		return Null, -1, nil
	}
	arr := buf.ToArray()
	bestIdx := 0
	for i, v := range arr {
		if wantMax && v > arr[bestIdx] {
			bestIdx = i
		}
		if !wantMax && v < arr[bestIdx] {
			bestIdx = i
		}
	}
	return Num(arr[bestIdx]), len(arr) - 1 - bestIdx, nil
}

func biAVEDEV(args []Value, ctx *CallContext) (Value, error) {
	arr, ok, err := pushAndCollect(args, ctx, "avedev")
	if err != nil || !ok {
		return Null, err
	}
	mean := meanOf(arr)
	var sum float64
	for _, v := range arr {
		sum += math.Abs(v - mean)
	}
	return Num(sum / float64(len(arr))), nil
}

func biDEVSQ(args []Value, ctx *CallContext) (Value, error) {
	arr, ok, err := pushAndCollect(args, ctx, "devsq")
	if err != nil || !ok {
		return Null, err
	}
	mean := meanOf(arr)
	var sum float64
	for _, v := range arr {
		d := v - mean
		sum += d * d
	}
	return Num(sum), nil
}

func biVAR(args []Value, ctx *CallContext) (Value, error) {
	return variance(args, ctx, "var", true)
}

func biVARP(args []Value, ctx *CallContext) (Value, error) {
	return variance(args, ctx, "varp", false)
}

func biSTD(args []Value, ctx *CallContext) (Value, error) {
	v, err := variance(args, ctx, "std", true)
	if err != nil || v.IsNull() {
		return v, err
	}
	return Num(math.Sqrt(v.Num)), nil
}

func biSTDP(args []Value, ctx *CallContext) (Value, error) {
	v, err := variance(args, ctx, "stdp", false)
	if err != nil || v.IsNull() {
		return v, err
	}
	return Num(math.Sqrt(v.Num)), nil
}

func variance(args []Value, ctx *CallContext, prefix string, sample bool) (Value, error) {
	arr, ok, err := pushAndCollect(args, ctx, prefix)
	if err != nil || !ok {
		return Null, err
	}
	if sample && len(arr) < 2 {
		return Null, nil
	}
	mean := meanOf(arr)
	var sum float64
	for _, v := range arr {
		d := v - mean
		sum += d * d
	}
	denom := float64(len(arr))
	if sample {
		denom--
	}
	return Num(sum / denom), nil
}

func meanOf(arr []float64) float64 {
	var sum float64
	for _, v := range arr {
		sum += v
	}
	return sum / float64(len(arr))
}

// pushAndCollect is the shared "push x into the n-sized window, return its
// contents once full" step every statistics indicator starts from.
func pushAndCollect(args []Value, ctx *CallContext, prefix string) ([]float64, bool, error) {
	if len(args) != 2 {
		return nil, false, typeError(prefix, "(x, n)")
	}
	x, null, err := numArg(args, 0)
	if err != nil {
		return nil, false, err
	}
	if null {
		return nil, false, nil
	}
	n, err := intArg(args, 1)
	if err != nil {
		return nil, false, err
	}
	buf, err := getOrCreateFloatBuf(ctx.State, stateKey(prefix, n), n)
	if err != nil {
		return nil, false, err
	}
	buf.Push(x)
	if n > 0 && !buf.Full() {
		return nil, false, nil
	}
	return buf.ToArray(), true, nil
}

func biSLOPE(args []Value, ctx *CallContext) (Value, error) {
	arr, ok, err := pushAndCollect(args, ctx, "slope")
	if err != nil || !ok {
		return Null, err
	}
	slope, _ := leastSquares(arr)
	return Num(slope), nil
}

func biFORCAST(args []Value, ctx *CallContext) (Value, error) {
	arr, ok, err := pushAndCollect(args, ctx, "forcast")
	if err != nil || !ok {
		return Null, err
	}
	slope, intercept := leastSquares(arr)
	return Num(intercept + slope*float64(len(arr))), nil
}

// leastSquares fits y = intercept + slope*i over i = 0..len(arr)-1.
func leastSquares(arr []float64) (slope, intercept float64) {
	n := float64(len(arr))
	var sumX, sumY, sumXY, sumXX float64
	for i, v := range arr {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

func biTRMA(args []Value, ctx *CallContext) (Value, error) {
	arr, ok, err := pushAndCollect(args, ctx, "trma")
	if err != nil || !ok {
		return Null, err
	}
	n := len(arr)
	var weighted, total float64
	for i, v := range arr {
		w := float64(i + 1)
		if rem := n - i; float64(rem) < w {
			w = float64(rem)
		}
		weighted += w * v
		total += w
	}
	return Num(weighted / total), nil
}

func biTSMA(args []Value, ctx *CallContext) (Value, error) {
	arr, ok, err := pushAndCollect(args, ctx, "tsma")
	if err != nil || !ok {
		return Null, err
	}
	var weighted, total float64
	for i, v := range arr {
		w := float64(i + 1)
		weighted += w * v
		total += w
	}
	return Num(weighted / total), nil
}

// ema2State is EMA2's warmup-then-recursive state: the window seeds the
// first EMA value with a plain average, then folds subsequent bars in with
// the usual exponential recursion.
type ema2State struct {
	buf  *RingBuf[float64]
	ema  float64
	init bool
}

func biEMA2(args []Value, ctx *CallContext) (Value, error) {
	if len(args) != 2 {
		return Null, typeError("EMA2", "(x, n)")
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
	key := stateKey("ema2", n)
	raw, ok := ctx.State[key]
	var st *ema2State
	if ok {
		st = raw.(*ema2State)
	} else {
		rb, err := NewRingBuf[float64](n)
		if err != nil {
			return Null, err
		}
		st = &ema2State{buf: rb}
		ctx.State[key] = st
	}
	if !st.init {
		st.buf.Push(x)
		if !st.buf.Full() {
			return Null, nil
		}
		st.ema = meanOf(st.buf.ToArray())
		st.init = true
		return Num(st.ema), nil
	}
	alpha := 2.0 / float64(n+1)
	st.ema = st.ema*(1-alpha) + x*alpha
	return Num(st.ema), nil
}
