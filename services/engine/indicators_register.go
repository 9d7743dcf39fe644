package engine

// registerBuiltins wires every indicator and scalar function this package
// implements into r. Split out from registry.go so the (long, mechanical)
// name table doesn't crowd the registry's own machinery.
func registerBuiltins(r *registry) {
	// Rolling-window indicators.
	r.register(&Entry{Name: "MA", Execute: biMA})
	r.register(&Entry{Name: "SUM", Execute: biSUM})
	r.register(&Entry{Name: "COUNT", Execute: biCOUNT})
	r.register(&Entry{Name: "EXIST", Execute: biEXIST})
	r.register(&Entry{Name: "EVERY", Execute: biEVERY})
	r.register(&Entry{Name: "HHV", Execute: biHHV})
	r.register(&Entry{Name: "LLV", Execute: biLLV})
	r.register(&Entry{Name: "HHVBARS", Execute: biHHVBARS})
	r.register(&Entry{Name: "LLVBARS", Execute: biLLVBARS})
	r.register(&Entry{Name: "AVEDEV", Execute: biAVEDEV})
	r.register(&Entry{Name: "DEVSQ", Execute: biDEVSQ})
	r.register(&Entry{Name: "VAR", Execute: biVAR})
	r.register(&Entry{Name: "VARP", Execute: biVARP})
	r.register(&Entry{Name: "STD", Execute: biSTD})
	r.register(&Entry{Name: "STDP", Execute: biSTDP})
	r.register(&Entry{Name: "SLOPE", Execute: biSLOPE})
	r.register(&Entry{Name: "FORCAST", Execute: biFORCAST})
	r.register(&Entry{Name: "TRMA", Execute: biTRMA})
	r.register(&Entry{Name: "TSMA", Execute: biTSMA})
	r.register(&Entry{Name: "EMA2", Execute: biEMA2})

	// Stateful / cross-bar indicators.
	r.register(&Entry{Name: "EMA", Execute: biEMA})
	r.register(&Entry{Name: "SMA", Execute: biSMA3})
	r.register(&Entry{Name: "DMA", Execute: biDMA})
	r.register(&Entry{Name: "REF", Execute: biREF})
	r.register(&Entry{Name: "CROSS", Execute: biCROSS})
	r.register(&Entry{Name: "CROSSDOWN", Execute: biCROSSDOWN})
	r.register(&Entry{Name: "BARSLAST", Execute: biBARSLAST})
	r.register(&Entry{Name: "VALUEWHEN", Execute: biVALUEWHEN})
	r.register(&Entry{Name: "LAST", Execute: biLAST})
	r.register(&Entry{Name: "FILTER", Execute: biFILTER})
	r.register(&Entry{Name: "LONGCROSS", Execute: biLONGCROSS})

	// Scalar math.
	r.register(&Entry{Name: "ABS", Execute: biABS})
	r.register(&Entry{Name: "ACOS", Execute: biACOS})
	r.register(&Entry{Name: "ASIN", Execute: biASIN})
	r.register(&Entry{Name: "ATAN", Execute: biATAN})
	r.register(&Entry{Name: "SIN", Execute: biSIN})
	r.register(&Entry{Name: "COS", Execute: biCOS})
	r.register(&Entry{Name: "TAN", Execute: biTAN})
	r.register(&Entry{Name: "EXP", Execute: biEXP})
	r.register(&Entry{Name: "LN", Execute: biLN})
	r.register(&Entry{Name: "LOG", Execute: biLOG})
	r.register(&Entry{Name: "SQRT", Execute: biSQRT})
	r.register(&Entry{Name: "SQUARE", Execute: biSQUARE})
	r.register(&Entry{Name: "CUBE", Execute: biCUBE})
	r.register(&Entry{Name: "POW", Execute: biPOW})
	r.register(&Entry{Name: "MOD", Execute: biMOD})
	r.register(&Entry{Name: "CEILING", Execute: biCEILING})
	r.register(&Entry{Name: "FLOOR", Execute: biFLOOR})
	r.register(&Entry{Name: "INTPART", Execute: biINTPART})
	r.register(&Entry{Name: "MAX2", Execute: biMAX2})
	r.register(&Entry{Name: "MIN2", Execute: biMIN2})
	r.register(&Entry{Name: "SGN", Execute: biSGN})
	r.register(&Entry{Name: "REVERSE", Execute: biREVERSE})
	r.register(&Entry{Name: "NOT", Execute: biNOT})
	r.register(&Entry{Name: "BETWEEN", Execute: biBETWEEN})
	r.register(&Entry{Name: "RANGE", Execute: biRANGE})
	r.register(&Entry{Name: "IFELSE", Aliases: []string{"IFF"}, Execute: biIFELSE})

	// Bar predicates.
	r.register(&Entry{Name: "ISUP", Execute: biISUP})
	r.register(&Entry{Name: "ISDOWN", Execute: biISDOWN})
	r.register(&Entry{Name: "ISEQUAL", Execute: biISEQUAL})

	// Variadic reducers. SUM is deliberately not re-registered here: it
	// already exists as the rolling-window SUM(x, n) above, and a 2-arg
	// variadic SUM(a, b) would be indistinguishable from that call shape
	// at the registry level (see DESIGN.md).
	r.register(&Entry{Name: "MAX", Execute: biMAXN})
	r.register(&Entry{Name: "MIN", Execute: biMINN})
	r.register(&Entry{Name: "PRINT", Execute: biPRINT})
}
