package engine

import "testing"

func newCallCtx() *CallContext {
	return &CallContext{State: CallState{}}
}

func TestCrossReturnsNullUntilFires(t *testing.T) {
	ctx := newCallCtx()
	seq := []struct {
		a, b     float64
		wantNull bool
		wantOne  bool
	}{
		{7.5, 8.5, true, false},  // first observation: below, no prior sign to compare
		{7.5, 8.0, true, false},  // still below, no fire
		{9.0, 8.25, false, true}, // crosses from below to above: fires
		{11.0, 9.25, true, false},
		{13.0, 11.0, true, false},
	}
	for i, s := range seq {
		v, err := biCROSS([]Value{Num(s.a), Num(s.b)}, ctx)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if s.wantOne {
			if v.Kind != KindFloat || v.Num != 1 {
				t.Fatalf("step %d: CROSS = %+v, want 1", i, v)
			}
			continue
		}
		if s.wantNull && !v.IsNull() {
			t.Fatalf("step %d: CROSS = %+v, want null", i, v)
		}
	}
}

func TestCrossNullPropagation(t *testing.T) {
	ctx := newCallCtx()
	v, err := biCROSS([]Value{Null, Num(1)}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNull() {
		t.Fatalf("CROSS with a null argument = %+v, want null", v)
	}
}

func TestCrossDownMirrorsCross(t *testing.T) {
	ctx := newCallCtx()
	// first observation, above
	if v, err := biCROSSDOWN([]Value{Num(10), Num(5)}, ctx); err != nil || !v.IsNull() {
		t.Fatalf("first observation = %+v, %v, want null", v, err)
	}
	// still above: no fire
	if v, err := biCROSSDOWN([]Value{Num(9), Num(5)}, ctx); err != nil || !v.IsNull() {
		t.Fatalf("still above = %+v, %v, want null", v, err)
	}
	// crosses below: fires
	v, err := biCROSSDOWN([]Value{Num(4), Num(5)}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Kind != KindFloat || v.Num != 1 {
		t.Fatalf("crossing down = %+v, want 1", v)
	}
}

func TestEMAZeroOrNegativeWindowIsNull(t *testing.T) {
	ctx := newCallCtx()
	v, err := biEMA([]Value{Num(100), Num(0)}, ctx)
	if err != nil {
		t.Fatalf("EMA with n=0 should return null, not an error: %v", err)
	}
	if !v.IsNull() {
		t.Fatalf("EMA with n=0 = %+v, want null", v)
	}
	v, err = biEMA([]Value{Num(100), Num(-3)}, ctx)
	if err != nil || !v.IsNull() {
		t.Fatalf("EMA with n<0 = %+v, %v, want null", v, err)
	}
}

func TestEMASeedsWithFirstValue(t *testing.T) {
	ctx := newCallCtx()
	v, err := biEMA([]Value{Num(10), Num(4)}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Num != 10 {
		t.Fatalf("first EMA value = %v, want 10", v.Num)
	}
	v, err = biEMA([]Value{Num(20), Num(4)}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := 10*(1-2.0/5) + 20*(2.0/5) // alpha = 2/(n+1)
	if diff := v.Num - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("second EMA value = %v, want %v", v.Num, want)
	}
}

func TestDMARejectsInclusiveBounds(t *testing.T) {
	ctx := newCallCtx()
	if _, err := biDMA([]Value{Num(10), Num(0)}, ctx); err == nil {
		t.Fatal("DMA with a=0 should be rejected, bound is strict 0<a<1")
	}
	if _, err := biDMA([]Value{Num(10), Num(1)}, ctx); err == nil {
		t.Fatal("DMA with a=1 should be rejected, bound is strict 0<a<1")
	}
	if _, err := biDMA([]Value{Num(10), Num(0.5)}, newCallCtx()); err != nil {
		t.Fatal("DMA with a=0.5 should be accepted")
	}
}

func TestMAZeroWindowIsAnErrorNotSinceBeginning(t *testing.T) {
	// MA is not in the HHV/LLV/SUM group that treats n==0 as "since the
	// beginning"; it must surface the ring buffer's own InvalidArgument.
	ctx := newCallCtx()
	_, err := biMA([]Value{Num(10), Num(0)}, ctx)
	if err == nil {
		t.Fatal("expected an error for MA with n=0")
	}
	e, ok := AsEngineError(err)
	if !ok || e.Kind != KindInvalidArgument {
		t.Fatalf("got %v, want InvalidArgument", err)
	}
}

func TestSumZeroWindowMeansSinceBeginning(t *testing.T) {
	ctx := newCallCtx()
	var last Value
	var err error
	for _, x := range []float64{1, 2, 3, 4} {
		last, err = biSUM([]Value{Num(x), Num(0)}, ctx)
		if err != nil {
			t.Fatal(err)
		}
	}
	if last.Num != 10 {
		t.Fatalf("SUM(x, 0) after 4 pushes = %v, want 10 (since beginning)", last.Num)
	}
}

func TestREFReturnsValueFromNBarsAgo(t *testing.T) {
	ctx := newCallCtx()
	closes := []float64{10, 20, 30}
	wantNull := []bool{true, false, false}
	wantVal := []float64{0, 10, 20}
	for i, c := range closes {
		v, err := biREF([]Value{Num(c), Num(1)}, ctx)
		if err != nil {
			t.Fatal(err)
		}
		if wantNull[i] {
			if !v.IsNull() {
				t.Fatalf("step %d: REF = %+v, want null", i, v)
			}
			continue
		}
		if v.Num != wantVal[i] {
			t.Fatalf("step %d: REF = %v, want %v", i, v.Num, wantVal[i])
		}
	}
}

func TestSMA3ArgSmoothing(t *testing.T) {
	ctx := newCallCtx()
	v, err := biSMA3([]Value{Num(10), Num(5), Num(2)}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v.Num != 10 {
		t.Fatalf("first SMA value = %v, want 10", v.Num)
	}
	v, err = biSMA3([]Value{Num(20), Num(5), Num(2)}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := 10.0*3/5 + 20.0*2/5
	if v.Num != want {
		t.Fatalf("second SMA value = %v, want %v", v.Num, want)
	}
}

func TestSMA3RejectsMGreaterThanN(t *testing.T) {
	ctx := newCallCtx()
	if _, err := biSMA3([]Value{Num(10), Num(2), Num(3)}, ctx); err == nil {
		t.Fatal("SMA with m > n should be rejected")
	}
}

func TestBoundedMathReturnsNullOutsideDomain(t *testing.T) {
	ctx := newCallCtx()
	v, err := biACOS([]Value{Num(2)}, ctx)
	if err != nil {
		t.Fatalf("ACOS outside [-1,1] should return null, not an error: %v", err)
	}
	if !v.IsNull() {
		t.Fatalf("ACOS(2) = %+v, want null", v)
	}
}

func TestModByZeroReturnsNull(t *testing.T) {
	ctx := newCallCtx()
	v, err := biMOD([]Value{Num(5), Num(0)}, ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsNull() {
		t.Fatalf("MOD(5, 0) = %+v, want null", v)
	}
}

func TestBetweenIsInclusiveRangeIsExclusive(t *testing.T) {
	ctx := newCallCtx()
	v, _ := biBETWEEN([]Value{Num(5), Num(5), Num(10)}, ctx)
	if v.Kind != KindBool || !v.Bool {
		t.Fatalf("BETWEEN(5,5,10) = %+v, want true (inclusive)", v)
	}
	v, _ = biRANGE([]Value{Num(5), Num(5), Num(10)}, ctx)
	if v.Kind != KindBool || v.Bool {
		t.Fatalf("RANGE(5,5,10) = %+v, want false (exclusive)", v)
	}
}
