package function

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
)

type sheet map[[2]int]value.Value

func (s sheet) CellValue(_ value.SheetKey, row, col int) value.Value {
	return s[[2]int{row, col}]
}

func (s sheet) area(firstRow, firstCol, lastRow, lastCol int) *value.Area {
	return value.NewArea(s, value.SheetKey{}, value.Rect{
		FirstRow: firstRow,
		FirstCol: firstCol,
		LastRow:  lastRow,
		LastCol:  lastCol,
	})
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time {
	return time.Time(c)
}

type fixedRand float64

func (r fixedRand) Float64() float64 {
	return float64(r)
}

var registry = Builtins()

func call(t *testing.T, name string, args ...value.Value) value.Value {
	m, exists := registry.Lookup(name)
	require.True(t, exists, name)
	return m.Call(&Context{
		Row:   4,
		Col:   0,
		Clock: fixedClock(time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)),
		Rand:  fixedRand(0.25),
	}, args)
}

func TestRegistry(t *testing.T) {
	requireT := require.New(t)

	m, exists := registry.Lookup("sum")
	requireT.True(exists)
	requireT.Equal(4, m.Index)
	requireT.False(m.IsFixed())
	requireT.Equal(ptg.ClassRef, m.ParamClass(7))

	name, exists := registry.FunctionName(24)
	requireT.True(exists)
	requireT.Equal("ABS", name)

	n, exists := registry.FixedArgs(24)
	requireT.True(exists)
	requireT.Equal(1, n)
	_, exists = registry.FixedArgs(4)
	requireT.False(exists)

	ext, exists := registry.ByIndex(ptg.ExternalFunctionIndex)
	requireT.True(exists)
	requireT.Same(External, ext)

	m, exists = registry.Lookup("vlookup")
	requireT.True(exists)
	requireT.Equal(ptg.ClassValue, m.ParamClass(0))
	requireT.Equal(ptg.ClassRef, m.ParamClass(1))
	requireT.Equal(ptg.ClassValue, m.ParamClass(3))

	reg := NewRegistry()
	requireT.NoError(reg.Register(Metadata{Index: 1000, Name: "twice", MinArgs: 1, MaxArgs: 1}))
	requireT.Error(reg.Register(Metadata{Index: 1001, Name: "TWICE", MinArgs: 1, MaxArgs: 1}))
	requireT.Error(reg.Register(Metadata{Index: 1000, Name: "other", MinArgs: 1, MaxArgs: 1}))
	requireT.Error(reg.Register(Metadata{Index: ptg.ExternalFunctionIndex, Name: "ext"}))
	requireT.Error(reg.Register(Metadata{Index: 1002, Name: "broken", MinArgs: 2, MaxArgs: 1}))

	requireT.NoError(reg.RegisterUDF("myFunc", func(*Context, []value.Value) value.Value {
		return value.Number(42)
	}))
	requireT.Error(reg.RegisterUDF("MYFUNC", nil))
	requireT.Error(reg.RegisterUDF("twice", nil))
	impl, exists := reg.UDF("MyFunc")
	requireT.True(exists)
	requireT.Equal(value.Number(42), impl(nil, nil))
}

func TestArgumentCount(t *testing.T) {
	assertT := assert.New(t)

	assertT.Equal(value.ErrorValue, call(t, "ABS"))
	assertT.Equal(value.ErrorValue, call(t, "ABS", value.Number(1), value.Number(2)))
}

func TestAggregates(t *testing.T) {
	assertT := assert.New(t)

	s := sheet{
		{0, 0}: value.Number(1),
		{1, 0}: value.Number(2),
		{3, 0}: value.String("x"),
		{4, 0}: value.Bool(true),
	}
	column := s.area(0, 0, 4, 0)

	assertT.Equal(value.Number(3), call(t, "SUM", column))
	assertT.Equal(value.Number(6), call(t, "SUM", column, value.String("3")))
	assertT.Equal(value.ErrorValue, call(t, "SUM", column, value.String("x")))
	assertT.Equal(value.Number(4), call(t, "SUM", column, value.Bool(true)))
	assertT.Equal(value.Number(2), call(t, "COUNT", column))
	assertT.Equal(value.Number(3), call(t, "COUNT", column, value.Bool(true)))
	assertT.Equal(value.Number(4), call(t, "COUNTA", column))
	assertT.Equal(value.Number(1), call(t, "COUNTBLANK", column))
	assertT.Equal(value.Number(1.5), call(t, "AVERAGE", column))
	assertT.Equal(value.Number(1), call(t, "AVERAGEA", column))
	assertT.Equal(value.Number(2), call(t, "MAX", column))
	assertT.Equal(value.Number(0), call(t, "MINA", column))
	assertT.Equal(value.Number(1.5), call(t, "MEDIAN", column))
	assertT.Equal(value.Number(2), call(t, "PRODUCT", column))
	assertT.Equal(value.ErrorDiv0, call(t, "AVERAGE", s.area(10, 0, 11, 0)))
	assertT.Equal(value.Number(0), call(t, "MAX", s.area(10, 0, 11, 0)))

	s[[2]int{2, 0}] = value.ErrorNA
	assertT.Equal(value.ErrorNA, call(t, "SUM", column))

	array := &value.Array{Rows: 1, Cols: 3, Values: []value.Value{value.Number(1), value.Number(2), value.Number(3)}}
	assertT.Equal(value.Number(14), call(t, "SUMPRODUCT", array, array))
	assertT.Equal(value.ErrorValue, call(t, "SUMPRODUCT", array, s.area(0, 0, 1, 0)))
}

func TestMath(t *testing.T) {
	assertT := assert.New(t)

	assertT.Equal(value.Number(2.35), call(t, "ROUND", value.Number(2.345), value.Number(2)))
	assertT.Equal(value.Number(-3), call(t, "ROUND", value.Number(-2.5), value.Number(0)))
	assertT.Equal(value.Number(1200), call(t, "ROUND", value.Number(1234), value.Number(-2)))
	assertT.Equal(value.Number(2.35), call(t, "ROUNDUP", value.Number(2.341), value.Number(2)))
	assertT.Equal(value.Number(-2.34), call(t, "ROUNDDOWN", value.Number(-2.349), value.Number(2)))
	assertT.Equal(value.Number(3), call(t, "TRUNC", value.Number(3.9)))
	assertT.Equal(value.Number(-4), call(t, "INT", value.Number(-3.5)))
	assertT.Equal(value.Number(1), call(t, "MOD", value.Number(-3), value.Number(2)))
	assertT.Equal(value.ErrorDiv0, call(t, "MOD", value.Number(3), value.Number(0)))
	assertT.Equal(value.Number(8), call(t, "POWER", value.Number(2), value.Number(3)))
	assertT.Equal(value.ErrorDiv0, call(t, "POWER", value.Number(0), value.Number(-1)))
	assertT.Equal(value.ErrorNum, call(t, "SQRT", value.Number(-1)))
	assertT.Equal(value.Number(3), call(t, "LOG", value.Number(8), value.Number(2)))
	assertT.Equal(value.Number(2), call(t, "LOG", value.Number(100)))
	assertT.Equal(value.Number(120), call(t, "FACT", value.Number(5)))
	assertT.Equal(value.Number(3), call(t, "ABS", value.String("-3")))
	assertT.Equal(value.ErrorValue, call(t, "ABS", value.String("abc")))
	assertT.Equal(value.Number(0.25), call(t, "RAND"))
	assertT.Equal(value.Number(45293.5), call(t, "NOW"))
	assertT.Equal(value.Number(45293), call(t, "TODAY"))
}

func TestLogical(t *testing.T) {
	assertT := assert.New(t)

	s := sheet{
		{0, 0}: value.Bool(true),
		{1, 0}: value.String("text"),
		{2, 0}: value.Number(0),
	}

	assertT.Equal(value.Number(0), call(t, "IF", value.Bool(true), value.Missing{}))
	assertT.Equal(value.Bool(false), call(t, "IF", value.Bool(false), value.Number(1)))
	assertT.Equal(value.String("b"), call(t, "IF", value.Number(0), value.String("a"), value.String("b")))
	assertT.Equal(value.ErrorValue, call(t, "IF", value.String("x"), value.Number(1)))
	assertT.Equal(value.Bool(true), call(t, "AND", s.area(0, 0, 1, 0)))
	assertT.Equal(value.Bool(false), call(t, "AND", s.area(0, 0, 2, 0)))
	assertT.Equal(value.Bool(true), call(t, "OR", s.area(0, 0, 2, 0)))
	assertT.Equal(value.ErrorValue, call(t, "OR", s.area(1, 0, 1, 0)))
	assertT.Equal(value.ErrorValue, call(t, "AND", value.String("text")))
	assertT.Equal(value.Bool(false), call(t, "NOT", value.Bool(true)))
	assertT.Equal(value.ErrorNA, call(t, "NA"))

	assertT.Equal(value.Bool(true), call(t, "ISBLANK", s.area(5, 0, 5, 0)))
	assertT.Equal(value.Bool(false), call(t, "ISBLANK", s.area(2, 0, 2, 0)))
	assertT.Equal(value.Bool(true), call(t, "ISTEXT", s.area(1, 0, 1, 0)))
	assertT.Equal(value.Bool(true), call(t, "ISNONTEXT", value.Number(1)))
	assertT.Equal(value.Bool(true), call(t, "ISLOGICAL", s.area(0, 0, 0, 0)))
	assertT.Equal(value.Bool(true), call(t, "ISNUMBER", value.Number(1)))
	assertT.Equal(value.Bool(true), call(t, "ISERROR", value.ErrorNA))
	assertT.Equal(value.Bool(false), call(t, "ISERR", value.ErrorNA))
	assertT.Equal(value.Bool(true), call(t, "ISNA", value.ErrorNA))
	assertT.Equal(value.Bool(true), call(t, "ISREF", s.area(0, 0, 0, 0)))
	assertT.Equal(value.Bool(false), call(t, "ISREF", value.Number(1)))
}

func TestText(t *testing.T) {
	assertT := assert.New(t)

	assertT.Equal(value.Number(4), call(t, "LEN", value.String("żółw")))
	assertT.Equal(value.String("żó"), call(t, "LEFT", value.String("żółw"), value.Number(2)))
	assertT.Equal(value.String("w"), call(t, "RIGHT", value.String("żółw")))
	assertT.Equal(value.String("żółw"), call(t, "RIGHT", value.String("żółw"), value.Number(10)))
	assertT.Equal(value.String("ół"), call(t, "MID", value.String("żółw"), value.Number(2), value.Number(2)))
	assertT.Equal(value.String(""), call(t, "MID", value.String("abc"), value.Number(5), value.Number(2)))
	assertT.Equal(value.ErrorValue, call(t, "MID", value.String("abc"), value.Number(0), value.Number(2)))
	assertT.Equal(value.String("ABC"), call(t, "UPPER", value.String("abc")))
	assertT.Equal(value.String("abc"), call(t, "LOWER", value.String("AbC")))
	assertT.Equal(value.String("Hello World"), call(t, "PROPER", value.String("hello wORLD")))
	assertT.Equal(value.String("a b"), call(t, "TRIM", value.String("  a   b ")))
	assertT.Equal(value.String("ab1TRUE"), call(t, "CONCATENATE", value.String("a"), value.String("b"),
		value.Number(1), value.Bool(true)))
	assertT.Equal(value.Bool(false), call(t, "EXACT", value.String("a"), value.String("A")))
	assertT.Equal(value.String("abab"), call(t, "REPT", value.String("ab"), value.Number(2)))
	assertT.Equal(value.ErrorValue, call(t, "REPT", value.String("ab"), value.Number(-1)))
	assertT.Equal(value.Number(4), call(t, "FIND", value.String("b"), value.String("abcb"), value.Number(3)))
	assertT.Equal(value.Number(3), call(t, "FIND", value.String("ł"), value.String("żółw")))
	assertT.Equal(value.ErrorValue, call(t, "FIND", value.String("B"), value.String("abc")))
	assertT.Equal(value.String("bbb"), call(t, "SUBSTITUTE", value.String("aaa"), value.String("a"),
		value.String("b")))
	assertT.Equal(value.String("aba"), call(t, "SUBSTITUTE", value.String("aaa"), value.String("a"),
		value.String("b"), value.Number(2)))
	assertT.Equal(value.String("aXef"), call(t, "REPLACE", value.String("abcdef"), value.Number(2),
		value.Number(3), value.String("X")))
	assertT.Equal(value.String("A"), call(t, "CHAR", value.Number(65)))
	assertT.Equal(value.String("€"), call(t, "CHAR", value.Number(128)))
	assertT.Equal(value.Number(65), call(t, "CODE", value.String("ABC")))
	assertT.Equal(value.Number(12.5), call(t, "VALUE", value.String(" 12.5 ")))
	assertT.Equal(value.ErrorValue, call(t, "VALUE", value.String("12a")))
	assertT.Equal(value.String(""), call(t, "T", value.Number(1)))
	assertT.Equal(value.Number(1), call(t, "N", value.Bool(true)))
}

func TestLookup(t *testing.T) {
	assertT := assert.New(t)

	s := sheet{
		{0, 0}: value.Number(1), {0, 1}: value.String("one"),
		{1, 0}: value.Number(2), {1, 1}: value.String("two"),
		{2, 0}: value.Number(3), {2, 1}: value.String("three"),
	}
	table := s.area(0, 0, 2, 1)

	assertT.Equal(value.String("two"), call(t, "VLOOKUP", value.Number(2), table, value.Number(2)))
	assertT.Equal(value.String("two"), call(t, "VLOOKUP", value.Number(2.5), table, value.Number(2)))
	assertT.Equal(value.ErrorNA, call(t, "VLOOKUP", value.Number(2.5), table, value.Number(2), value.Bool(false)))
	assertT.Equal(value.ErrorNA, call(t, "VLOOKUP", value.Number(0), table, value.Number(2)))
	assertT.Equal(value.ErrorRef, call(t, "VLOOKUP", value.Number(2), table, value.Number(3)))
	assertT.Equal(value.ErrorValue, call(t, "VLOOKUP", value.Number(2), table, value.Number(0)))
	assertT.Equal(value.String("two"), call(t, "HLOOKUP", value.String("ONE"), s.area(0, 0, 1, 1), value.Number(2)))

	assertT.Equal(value.Number(3), call(t, "MATCH", value.String("T*E"), s.area(0, 1, 2, 1), value.Number(0)))
	assertT.Equal(value.Number(2), call(t, "MATCH", value.String("tw?"), s.area(0, 1, 2, 1), value.Number(0)))
	assertT.Equal(value.Number(2), call(t, "MATCH", value.Number(2.2), s.area(0, 0, 2, 0)))
	assertT.Equal(value.ErrorNA, call(t, "MATCH", value.Number(5), s.area(0, 0, 2, 0), value.Number(0)))
	assertT.Equal(value.ErrorNA, call(t, "MATCH", value.Number(5), table))

	row, ok := call(t, "INDEX", table, value.Number(2), value.Number(0)).(*value.Area)
	assertT.True(ok)
	assertT.Equal(value.Rect{FirstRow: 1, FirstCol: 0, LastRow: 1, LastCol: 1}, row.Rect())
	cell, ok := call(t, "INDEX", table, value.Number(3), value.Number(2)).(*value.Area)
	assertT.True(ok)
	assertT.Equal(value.String("three"), cell.Get(0, 0))
	assertT.Equal(value.ErrorRef, call(t, "INDEX", table, value.Number(4), value.Number(1)))

	array := &value.Array{Rows: 1, Cols: 3, Values: []value.Value{value.Number(7), value.Number(8), value.Number(9)}}
	assertT.Equal(value.Number(8), call(t, "INDEX", array, value.Number(2)))

	assertT.Equal(value.String("b"), call(t, "CHOOSE", value.Number(2), value.String("a"), value.String("b")))
	assertT.Equal(value.ErrorValue, call(t, "CHOOSE", value.Number(3), value.String("a"), value.String("b")))

	assertT.Equal(value.Number(5), call(t, "ROW"))
	assertT.Equal(value.Number(2), call(t, "ROW", s.area(1, 0, 2, 0)))
	assertT.Equal(value.Number(2), call(t, "COLUMN", s.area(0, 1, 0, 1)))
	assertT.Equal(value.Number(3), call(t, "ROWS", table))
	assertT.Equal(value.Number(2), call(t, "COLUMNS", table))
	assertT.Equal(value.Number(3), call(t, "COLUMNS", array))
}

func TestCriteria(t *testing.T) {
	assertT := assert.New(t)

	s := sheet{
		{0, 0}: value.Number(1), {0, 1}: value.Number(10),
		{1, 0}: value.Number(2), {1, 1}: value.Number(20),
		{2, 0}: value.String("apple"), {2, 1}: value.Number(30),
		{3, 0}: value.String("Avocado"), {3, 1}: value.Number(40),
		{5, 0}: value.Bool(true), {5, 1}: value.Number(60),
	}
	keys := s.area(0, 0, 5, 0)
	amounts := s.area(0, 1, 5, 1)

	assertT.Equal(value.Number(1), call(t, "COUNTIF", keys, value.Number(2)))
	assertT.Equal(value.Number(1), call(t, "COUNTIF", keys, value.String("2")))
	assertT.Equal(value.Number(1), call(t, "COUNTIF", keys, value.String(">1")))
	assertT.Equal(value.Number(2), call(t, "COUNTIF", keys, value.String("<=2")))
	assertT.Equal(value.Number(2), call(t, "COUNTIF", keys, value.String("a*")))
	assertT.Equal(value.Number(4), call(t, "COUNTIF", keys, value.String("<>a*")))
	assertT.Equal(value.Number(1), call(t, "COUNTIF", keys, value.String("")))
	assertT.Equal(value.Number(5), call(t, "COUNTIF", keys, value.String("<>")))
	assertT.Equal(value.Number(1), call(t, "COUNTIF", keys, value.String("TRUE")))
	assertT.Equal(value.Number(0), call(t, "COUNTIF", keys, s.area(9, 9, 9, 9)))

	assertT.Equal(value.Number(70), call(t, "SUMIF", keys, value.String("a*"), amounts))
	assertT.Equal(value.Number(70), call(t, "SUMIF", keys, value.String("a*"), s.area(0, 1, 0, 1)))
	assertT.Equal(value.Number(3), call(t, "SUMIF", keys, value.String("<3")))
}

func TestWildcardMatch(t *testing.T) {
	assertT := assert.New(t)

	assertT.True(wildcardMatch("a*c", "ABBC"))
	assertT.True(wildcardMatch("a?c", "abc"))
	assertT.False(wildcardMatch("a?c", "ac"))
	assertT.True(wildcardMatch("a~*", "a*"))
	assertT.False(wildcardMatch("a~*", "ab"))
	assertT.True(wildcardMatch("*", ""))
}
