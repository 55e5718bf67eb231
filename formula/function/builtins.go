package function

import (
	"github.com/outofforest/oledoc/formula/ptg"
)

const (
	ref = ptg.ClassRef
	val = ptg.ClassValue
	arr = ptg.ClassArray
)

// maxArgs is the limit of arguments in BIFF8 function calls.
const maxArgs = 30

func classes(c ...ptg.Class) []ptg.Class {
	return c
}

// builtins is the table of function metadata, indices are the ones stored in BIFF8 records.
var builtins = []Metadata{
	{Index: 0, Name: "COUNT", MinArgs: 0, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: count},
	{Index: 1, Name: "IF", MinArgs: 2, MaxArgs: 3, ReturnClass: ref, ParamClasses: classes(val, ref), Impl: ifFunc},
	{Index: 2, Name: "ISNA", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isNA},
	{Index: 3, Name: "ISERROR", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isError},
	{Index: 4, Name: "SUM", MinArgs: 0, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: sum},
	{Index: 5, Name: "AVERAGE", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: average},
	{Index: 6, Name: "MIN", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: minFunc},
	{Index: 7, Name: "MAX", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: maxFunc},
	{Index: 8, Name: "ROW", MinArgs: 0, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: rowFunc},
	{Index: 9, Name: "COLUMN", MinArgs: 0, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: columnFunc},
	{Index: 10, Name: "NA", MinArgs: 0, MaxArgs: 0, ReturnClass: val, Impl: na},
	{Index: 15, Name: "SIN", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: sin},
	{Index: 16, Name: "COS", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: cos},
	{Index: 19, Name: "PI", MinArgs: 0, MaxArgs: 0, ReturnClass: val, Impl: pi},
	{Index: 20, Name: "SQRT", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: sqrt},
	{Index: 21, Name: "EXP", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: exp},
	{Index: 22, Name: "LN", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: ln},
	{Index: 23, Name: "LOG10", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: log10},
	{Index: 24, Name: "ABS", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: abs},
	{Index: 25, Name: "INT", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: intFunc},
	{Index: 26, Name: "SIGN", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: sign},
	{Index: 27, Name: "ROUND", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: round},
	{Index: 29, Name: "INDEX", MinArgs: 2, MaxArgs: 4, ReturnClass: ref, ParamClasses: classes(ref, val), Impl: indexFunc},
	{Index: 30, Name: "REPT", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: rept},
	{Index: 31, Name: "MID", MinArgs: 3, MaxArgs: 3, ReturnClass: val, ParamClasses: classes(val), Impl: mid},
	{Index: 32, Name: "LEN", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: lenFunc},
	{Index: 33, Name: "VALUE", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: valueFunc},
	{Index: 34, Name: "TRUE", MinArgs: 0, MaxArgs: 0, ReturnClass: val, Impl: trueFunc},
	{Index: 35, Name: "FALSE", MinArgs: 0, MaxArgs: 0, ReturnClass: val, Impl: falseFunc},
	{Index: 36, Name: "AND", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: and},
	{Index: 37, Name: "OR", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: or},
	{Index: 38, Name: "NOT", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: not},
	{Index: 39, Name: "MOD", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: mod},
	{Index: 63, Name: "RAND", MinArgs: 0, MaxArgs: 0, ReturnClass: val, Volatile: true, Impl: random},
	{Index: 64, Name: "MATCH", MinArgs: 2, MaxArgs: 3, ReturnClass: val, ParamClasses: classes(val, ref, ref), Impl: match},
	{Index: 74, Name: "NOW", MinArgs: 0, MaxArgs: 0, ReturnClass: val, Volatile: true, Impl: now},
	{Index: 76, Name: "ROWS", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: rowsFunc},
	{Index: 77, Name: "COLUMNS", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: columnsFunc},
	{Index: 100, Name: "CHOOSE", MinArgs: 2, MaxArgs: maxArgs, ReturnClass: ref, ParamClasses: classes(val, ref), Impl: choose},
	{Index: 101, Name: "HLOOKUP", MinArgs: 3, MaxArgs: 4, ReturnClass: val, ParamClasses: classes(val, ref, ref, val), Impl: hlookup},
	{Index: 102, Name: "VLOOKUP", MinArgs: 3, MaxArgs: 4, ReturnClass: val, ParamClasses: classes(val, ref, ref, val), Impl: vlookup},
	{Index: 105, Name: "ISREF", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: isRef},
	{Index: 109, Name: "LOG", MinArgs: 1, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: logFunc},
	{Index: 111, Name: "CHAR", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: char},
	{Index: 112, Name: "LOWER", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: lower},
	{Index: 113, Name: "UPPER", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: upper},
	{Index: 114, Name: "PROPER", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: proper},
	{Index: 115, Name: "LEFT", MinArgs: 1, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: left},
	{Index: 116, Name: "RIGHT", MinArgs: 1, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: right},
	{Index: 117, Name: "EXACT", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: exact},
	{Index: 118, Name: "TRIM", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: trim},
	{Index: 119, Name: "REPLACE", MinArgs: 4, MaxArgs: 4, ReturnClass: val, ParamClasses: classes(val), Impl: replace},
	{Index: 120, Name: "SUBSTITUTE", MinArgs: 3, MaxArgs: 4, ReturnClass: val, ParamClasses: classes(val), Impl: substitute},
	{Index: 121, Name: "CODE", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: codeFunc},
	{Index: 124, Name: "FIND", MinArgs: 2, MaxArgs: 3, ReturnClass: val, ParamClasses: classes(val), Impl: find},
	{Index: 126, Name: "ISERR", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isErr},
	{Index: 127, Name: "ISTEXT", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isText},
	{Index: 128, Name: "ISNUMBER", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isNumber},
	{Index: 129, Name: "ISBLANK", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isBlank},
	{Index: 130, Name: "T", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: tFunc},
	{Index: 131, Name: "N", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: nFunc},
	{Index: 169, Name: "COUNTA", MinArgs: 0, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: counta},
	{Index: 183, Name: "PRODUCT", MinArgs: 0, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: product},
	{Index: 184, Name: "FACT", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: fact},
	{Index: 190, Name: "ISNONTEXT", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isNonText},
	{Index: 197, Name: "TRUNC", MinArgs: 1, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: trunc},
	{Index: 198, Name: "ISLOGICAL", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(val), Impl: isLogical},
	{Index: 212, Name: "ROUNDUP", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: roundUp},
	{Index: 213, Name: "ROUNDDOWN", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: roundDown},
	{Index: 221, Name: "TODAY", MinArgs: 0, MaxArgs: 0, ReturnClass: val, Volatile: true, Impl: today},
	{Index: 227, Name: "MEDIAN", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: median},
	{Index: 228, Name: "SUMPRODUCT", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(arr), Impl: sumProduct},
	{Index: 336, Name: "CONCATENATE", MinArgs: 0, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(val), Impl: concatenate},
	{Index: 337, Name: "POWER", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(val), Impl: power},
	{Index: 345, Name: "SUMIF", MinArgs: 2, MaxArgs: 3, ReturnClass: val, ParamClasses: classes(ref, val, ref), Impl: sumIf},
	{Index: 346, Name: "COUNTIF", MinArgs: 2, MaxArgs: 2, ReturnClass: val, ParamClasses: classes(ref, val), Impl: countIf},
	{Index: 347, Name: "COUNTBLANK", MinArgs: 1, MaxArgs: 1, ReturnClass: val, ParamClasses: classes(ref), Impl: countBlank},
	{Index: 361, Name: "AVERAGEA", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: averageA},
	{Index: 362, Name: "MAXA", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: maxA},
	{Index: 363, Name: "MINA", MinArgs: 1, MaxArgs: maxArgs, ReturnClass: val, ParamClasses: classes(ref), Impl: minA},
}

// Builtins returns registry containing the builtin functions.
func Builtins() *Registry {
	reg := NewRegistry()
	for _, m := range builtins {
		if err := reg.Register(m); err != nil {
			panic(err)
		}
	}
	return reg
}
