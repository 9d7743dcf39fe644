package engine

// Small constructors for hand-built parsed-tree fixtures. Compile consumes
// the shapes in ast.go directly; there is no lexer/parser in this package,
// so tests build the tree by hand rather than through source text.

func numLit(v float64) *NumberLiteral { return &NumberLiteral{Value: v} }
func strLit(s string) *StringLiteral  { return &StringLiteral{Value: s} }
func boolLit(b bool) *BoolLiteral     { return &BoolLiteral{Value: b} }
func ident(name string) *Identifier   { return &Identifier{Name: name} }

func bin(op string, l, r Expression) *BinaryExpr {
	return &BinaryExpr{Operator: op, Left: l, Right: r}
}

func assign(op string, l, r Expression) *AssignExpr {
	return &AssignExpr{Operator: op, Left: l, Right: r}
}

func call(name string, args ...Expression) *CallExpr {
	return &CallExpr{Callee: ident(name), Arguments: args}
}

func exprStmt(e Expression) *ExprStatement { return &ExprStatement{Expr: e} }

func varDecl(name string, init Expression) VarDecl {
	return VarDecl{Name: name, Init: init}
}

func varDeclStmt(decls ...VarDecl) *VarDeclStatement {
	return &VarDeclStatement{Decls: decls}
}

func ifStmt(test Expression, consequent, alternate Statement) *IfStatement {
	return &IfStatement{Test: test, Consequent: consequent, Alternate: alternate}
}

func block(stmts ...Statement) *BlockStatement { return &BlockStatement{Body: stmts} }

func program(stmts ...Statement) *SourceProgram { return &SourceProgram{Body: stmts} }

// ohlc builds the bar map Execute expects; barC fills O/H/L with the close,
// since most tests only care about C.
func ohlc(o, h, l, c float64) map[string]float64 {
	return map[string]float64{"O": o, "H": h, "L": l, "C": c}
}

func barC(c float64) map[string]float64 { return ohlc(c, c, c, c) }
