package engine

import "testing"

// TestVMVariableInitializesOnce is testable-properties scenario 2:
// VARIABLE: cnt := 0; cnt := cnt + 1; cnt : cnt; executed ten times with any
// bars yields output["cnt"] = 1..10, proving INIT_GLOBAL only assigns once.
func TestVMVariableInitializesOnce(t *testing.T) {
	src := program(
		varDeclStmt(varDecl("cnt", numLit(0))),
		exprStmt(assign(":=", ident("cnt"), bin("+", ident("cnt"), numLit(1)))),
		exprStmt(assign(":", ident("cnt"), ident("cnt"))),
	)
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})
	for i := 1; i <= 10; i++ {
		res, err := vm.Execute(barC(float64(i)))
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		got := res.Output["cnt"]
		if got.Kind != KindFloat || got.Num != float64(i) {
			t.Fatalf("bar %d: output[cnt] = %+v, want %d", i, got, i)
		}
	}
}

// TestVMRollingMA is testable-properties scenario 3.
func TestVMRollingMA(t *testing.T) {
	src := program(
		exprStmt(assign(":=", ident("m"), call("MA", ident("C"), numLit(3)))),
		exprStmt(assign(":", ident("m"), ident("m"))),
	)
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})

	closes := []float64{102, 106, 107, 109, 113}
	wantNull := []bool{true, true, false, false, false}
	wantNum := []float64{0, 0, 105, 107 + 1.0/3, 109 + 2.0/3}

	for i, c := range closes {
		res, err := vm.Execute(barC(c))
		if err != nil {
			t.Fatalf("bar %d: %v", i+1, err)
		}
		got := res.Output["m"]
		if wantNull[i] {
			if !got.IsNull() {
				t.Fatalf("bar %d: output[m] = %+v, want null", i+1, got)
			}
			continue
		}
		if got.IsNull() || got.Kind != KindFloat {
			t.Fatalf("bar %d: output[m] = %+v, want numeric", i+1, got)
		}
		if diff := got.Num - wantNum[i]; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("bar %d: output[m] = %v, want %v", i+1, got.Num, wantNum[i])
		}
	}
}

// TestVMRollingREF is testable-properties scenario 4.
func TestVMRollingREF(t *testing.T) {
	src := program(
		exprStmt(assign(":=", ident("p"), call("REF", ident("C"), numLit(1)))),
		exprStmt(assign(":", ident("p"), ident("p"))),
	)
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})

	closes := []float64{10, 20, 30}
	wantNull := []bool{true, false, false}
	wantNum := []float64{0, 10, 20}

	for i, c := range closes {
		res, err := vm.Execute(barC(c))
		if err != nil {
			t.Fatalf("bar %d: %v", i+1, err)
		}
		got := res.Output["p"]
		if wantNull[i] {
			if !got.IsNull() {
				t.Fatalf("bar %d: output[p] = %+v, want null", i+1, got)
			}
			continue
		}
		if got.Num != wantNum[i] {
			t.Fatalf("bar %d: output[p] = %v, want %v", i+1, got.Num, wantNum[i])
		}
	}
}

// TestVMIfElseBranches is testable-properties scenario 5.
func TestVMIfElseBranches(t *testing.T) {
	src := program(
		ifStmt(
			bin(">", ident("C"), ident("O")),
			block(exprStmt(assign(":=", ident("t"), numLit(1)))),
			block(exprStmt(assign(":=", ident("t"), numLit(-1)))),
		),
	)
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})

	res, err := vm.Execute(ohlc(100, 100, 100, 102))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Locals["t"]; got.Num != 1 {
		t.Fatalf("C > O: vars[t] = %+v, want 1", got)
	}

	res, err = vm.Execute(ohlc(100, 100, 100, 95))
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Locals["t"]; got.Num != -1 {
		t.Fatalf("C < O: vars[t] = %+v, want -1", got)
	}
}

// TestVMCrossFiresOncePerCrossover is testable-properties scenario 6: a
// short MA rising through a longer MA produces a single 1 at the crossover
// and null everywhere else.
func TestVMCrossFiresOncePerCrossover(t *testing.T) {
	src := program(
		exprStmt(assign(":=", ident("x"), call("CROSS", call("MA", ident("C"), numLit(2)), call("MA", ident("C"), numLit(4))))),
		exprStmt(assign(":", ident("x"), ident("x"))),
	)
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})

	closes := []float64{10, 9, 8, 7, 8, 10, 12, 14, 16}
	wantFire := map[int]bool{5: true} // 0-indexed bar 5 == the 6th bar

	for i, c := range closes {
		res, err := vm.Execute(barC(c))
		if err != nil {
			t.Fatalf("bar %d: %v", i+1, err)
		}
		got := res.Output["x"]
		if wantFire[i] {
			if got.Kind != KindFloat || got.Num != 1 {
				t.Fatalf("bar %d: output[x] = %+v, want 1 (the crossover bar)", i+1, got)
			}
			continue
		}
		if !got.IsNull() {
			t.Fatalf("bar %d: output[x] = %+v, want null", i+1, got)
		}
	}
}

func TestVMDivisionByZeroHasLocation(t *testing.T) {
	divExpr := &BinaryExpr{
		Operator: "/",
		Left:     numLit(1),
		Right:    numLit(0),
		Loc:      &Loc{Start: Position{Line: 3, Column: 7}, End: Position{Line: 3, Column: 7}},
	}
	src := program(exprStmt(divExpr))
	prog, err := Compile(src, CompileOptions{Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})
	_, err = vm.Execute(barC(100))
	if err == nil {
		t.Fatal("expected a division-by-zero error")
	}
	e, ok := AsEngineError(err)
	if !ok || e.Kind != KindDivisionByZero {
		t.Fatalf("got %v, want DivisionByZero", err)
	}
	if e.Loc == nil || e.Loc.StartLine != 3 || e.Loc.StartCol != 7 {
		t.Fatalf("error location = %+v, want line 3 column 7", e.Loc)
	}
}

// TestVMMultipleNonFinalDisplayAssignsCompile guards against the compiler
// scoring STORE_OUTPUT as a pop: a display-assign used as a non-final
// statement must still leave exactly one value for the following POP to
// discard, the same as any other statement.
func TestVMMultipleNonFinalDisplayAssignsCompile(t *testing.T) {
	src := program(
		exprStmt(assign(":", ident("ma5"), call("MA", ident("C"), numLit(5)))),
		exprStmt(assign(":", ident("ma20"), call("MA", ident("C"), numLit(20)))),
	)
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	vm := New(prog, Options{})
	res, err := vm.Execute(barC(100))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := res.Output["ma5"]; !ok {
		t.Fatal("output missing ma5")
	}
	if _, ok := res.Output["ma20"]; !ok {
		t.Fatal("output missing ma20")
	}
}

func TestVMUnregisteredBuiltinFailsAtRuntime(t *testing.T) {
	src := program(exprStmt(call("NOT_A_REAL_FUNCTION", ident("C"))))
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})
	_, err = vm.Execute(barC(100))
	if err == nil {
		t.Fatal("expected a runtime error calling an unregistered builtin")
	}
	e, ok := AsEngineError(err)
	if !ok || e.Kind != KindInvalidFunctionCall {
		t.Fatalf("got %v, want InvalidFunctionCall", err)
	}
}

func TestVMStackNeverExceedsOneAtEndOfExecution(t *testing.T) {
	src := program(
		exprStmt(assign(":=", ident("a"), numLit(1))),
		exprStmt(assign(":=", ident("b"), numLit(2))),
		exprStmt(assign(":", ident("b"), bin("+", ident("a"), ident("b")))),
	)
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})
	res, err := vm.Execute(barC(1))
	if err != nil {
		t.Fatal(err)
	}
	if res.LastResult.Num != 3 {
		t.Fatalf("LastResult = %+v, want 3", res.LastResult)
	}
	if len(vm.stack) > 1 {
		t.Fatalf("stack has %d elements at end of execution, want <= 1", len(vm.stack))
	}
}

func TestVMBarAliasesOpenHighLowClose(t *testing.T) {
	src := program(exprStmt(assign(":", ident("c"), ident("C"))))
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})
	bar := map[string]float64{"OPEN": 1, "HIGH": 2, "LOW": 0.5, "CLOSE": 1.5}
	res, err := vm.Execute(bar)
	if err != nil {
		t.Fatal(err)
	}
	if res.Output["c"].Num != 1.5 {
		t.Fatalf("output[c] = %+v, want 1.5 (via CLOSE alias)", res.Output["c"])
	}
}

func TestVMCapturesMarketTs(t *testing.T) {
	src := program(exprStmt(assign(":", ident("c"), ident("C"))))
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})
	if _, err := vm.Execute(map[string]float64{"O": 1, "H": 1, "L": 1, "C": 1, "T": 1700000000}); err != nil {
		t.Fatal(err)
	}
	if vm.marketTs != 1700000000 {
		t.Fatalf("marketTs = %v, want 1700000000", vm.marketTs)
	}
	// a bar without T leaves the previously remembered value in place.
	if _, err := vm.Execute(map[string]float64{"O": 1, "H": 1, "L": 1, "C": 1}); err != nil {
		t.Fatal(err)
	}
	if vm.marketTs != 1700000000 {
		t.Fatalf("marketTs after a T-less bar = %v, want it unchanged", vm.marketTs)
	}
}

func TestVMMissingRequiredBarFieldFails(t *testing.T) {
	src := program(exprStmt(assign(":", ident("c"), ident("C"))))
	prog, err := Compile(src, CompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	vm := New(prog, Options{})
	_, err = vm.Execute(map[string]float64{"O": 1, "H": 2, "L": 0.5})
	if err == nil {
		t.Fatal("expected an error for a bar missing the close field")
	}
}
