package eval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/formula/book"
	"github.com/outofforest/oledoc/formula/eval"
	"github.com/outofforest/oledoc/formula/parser"
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
)

func parse(t *testing.T, wb *book.Workbook, formula string) []ptg.Token {
	tokens, err := parser.Parse(formula, wb, parser.Context{}, parser.Config{Registry: wb.Registry()})
	require.NoError(t, err, formula)
	return tokens
}

func TestOperators(t *testing.T) {
	wb := book.New(book.DefaultConfig())
	_, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)

	for _, c := range []struct {
		row, col int
		v        value.Value
	}{
		{0, 0, value.Number(1)},
		{1, 0, value.Number(2)},
		{2, 0, value.String("3")},
		{0, 1, value.String("abc")},
		{1, 1, value.Bool(true)},
	} {
		require.NoError(t, wb.SetValue(0, c.row, c.col, c.v))
	}
	ev := eval.New(wb, eval.Config{})

	tests := []struct {
		formula  string
		expected value.Value
	}{
		{formula: "1+2*3", expected: value.Number(7)},
		{formula: "(1+2)*3", expected: value.Number(9)},
		{formula: "2^10", expected: value.Number(1024)},
		{formula: "7/2", expected: value.Number(3.5)},
		{formula: "1/0", expected: value.ErrorDiv0},
		{formula: "0^0", expected: value.ErrorNum},
		{formula: "(-8)^0.5", expected: value.ErrorNum},
		{formula: "-A1", expected: value.Number(-1)},
		{formula: "+B1", expected: value.String("abc")},
		{formula: "50%", expected: value.Number(0.5)},
		{formula: "A3+1", expected: value.Number(4)},
		{formula: "B1+1", expected: value.ErrorValue},
		{formula: "B2+1", expected: value.Number(2)},
		{formula: "C1+1", expected: value.Number(1)},
		{formula: "#N/A+1", expected: value.ErrorNA},
		{formula: "1+#DIV/0!", expected: value.ErrorDiv0},
		{formula: `"a"&1.5&TRUE`, expected: value.String("a1.5TRUE")},
		{formula: `C1&"x"`, expected: value.String("x")},
		{formula: `#REF!&"x"`, expected: value.ErrorRef},
		{formula: `"abc"="ABC"`, expected: value.Bool(true)},
		{formula: `"abc"<>"abd"`, expected: value.Bool(true)},
		{formula: `1<"a"`, expected: value.Bool(true)},
		{formula: `"a"<TRUE`, expected: value.Bool(true)},
		{formula: "2>=2", expected: value.Bool(true)},
		{formula: "2>3", expected: value.Bool(false)},
		{formula: "3<=2", expected: value.Bool(false)},
		{formula: "C1=0", expected: value.Bool(true)},
		{formula: `C1=""`, expected: value.Bool(true)},
		{formula: "C1=FALSE", expected: value.Bool(true)},
		{formula: "#NULL!=1", expected: value.ErrorNull},
		{formula: "A1:A3", expected: value.ErrorValue},
		{formula: "SUM(A1:A2 A2:B2)", expected: value.Number(2)},
		{formula: "SUM(A1 B2)", expected: value.ErrorNull},
		{formula: "SUM((A1,A2))", expected: value.Number(3)},
		{formula: "COUNT((A1,A2,B1:B2))", expected: value.Number(2)},
		{formula: "SUM(A1:INDEX(A1:A3,2))", expected: value.Number(3)},
		{formula: "SUMPRODUCT(A1:A2*2)", expected: value.Number(6)},
		{formula: "SUMPRODUCT(A1:A2*{10;100})", expected: value.Number(210)},
		{formula: "{1,2;3,4}", expected: value.Number(1)},
		{formula: "SUM({1,2}+{10;20})", expected: value.Number(66)},
		{formula: "SUM({1,2,3}+{1,2})", expected: value.ErrorNA},
		{formula: "SUMPRODUCT(-{1,2})", expected: value.Number(-3)},
		{formula: "IF(A1>0,\"pos\",\"neg\")", expected: value.String("pos")},
		{formula: "ABS(-3)", expected: value.Number(3)},
		{formula: "NOSUCHNAME", expected: value.ErrorName},
	}

	for _, test := range tests {
		t.Run(test.formula, func(t *testing.T) {
			tokens, err := parser.Parse(test.formula, wb, parser.Context{Row: 10, Col: 10}, parser.Config{})
			if err != nil {
				// Unknown names are reported by the parser, evaluator sees the error literal.
				var unknown *parser.UnknownNameError
				require.ErrorAs(t, err, &unknown)
				tokens = []ptg.Token{&ptg.Err{Code: value.ErrorName}}
			}
			assert.Equal(t, test.expected, ev.EvaluateFormula(0, 10, 10, tokens))
		})
	}
}

func TestImplicitIntersection(t *testing.T) {
	assertT := assert.New(t)

	wb := book.New(book.DefaultConfig())
	_, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)
	for row := 0; row < 3; row++ {
		require.NoError(t, wb.SetValue(0, row, 0, value.Number(row+1)))
	}
	ev := eval.New(wb, eval.Config{})
	tokens := parse(t, wb, "A1:A3*10")

	assertT.Equal(value.Number(20), ev.EvaluateFormula(0, 1, 3, tokens))
	assertT.Equal(value.Number(30), ev.EvaluateFormula(0, 2, 3, tokens))
	assertT.Equal(value.ErrorValue, ev.EvaluateFormula(0, 5, 3, tokens))
}
