package book

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/formula/eval"
	"github.com/outofforest/oledoc/formula/function"
	"github.com/outofforest/oledoc/formula/parser"
	"github.com/outofforest/oledoc/formula/value"
)

func newBook(t *testing.T, sheets ...string) *Workbook {
	wb := New(DefaultConfig())
	for _, s := range sheets {
		_, err := wb.AddSheet(s)
		require.NoError(t, err)
	}
	return wb
}

func TestSheets(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1", "Data")
	requireT.Equal(2, wb.SheetCount())
	requireT.Equal("Data", wb.SheetName(1))
	requireT.Equal("", wb.SheetName(2))

	index, exists := wb.SheetIndex("DATA")
	requireT.True(exists)
	requireT.Equal(1, index)

	_, err := wb.AddSheet("data")
	requireT.ErrorIs(err, ErrDuplicateSheet)

	requireT.ErrorIs(wb.SetValue(5, 0, 0, value.Number(1)), ErrSheetNotFound)
	requireT.ErrorIs(wb.SetFormula(-1, 0, 0, "1"), ErrSheetNotFound)
}

func TestCells(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1")
	requireT.NoError(wb.SetValue(0, 0, 0, value.Number(3)))
	requireT.NoError(wb.SetFormula(0, 0, 1, "=A1*2"))

	requireT.Equal(eval.Cell{Value: value.Number(3)}, wb.Cell(0, 0, 0))
	requireT.True(wb.Cell(0, 0, 1).IsFormula())
	requireT.Equal(eval.Cell{}, wb.Cell(0, 5, 5))
	requireT.Equal(eval.Cell{}, wb.Cell(3, 0, 0))

	formula, exists, err := wb.Formula(0, 0, 1)
	requireT.NoError(err)
	requireT.True(exists)
	requireT.Equal("A1*2", formula)

	_, exists, err = wb.Formula(0, 0, 0)
	requireT.NoError(err)
	requireT.False(exists)

	requireT.NoError(wb.SetValue(0, 0, 0, value.Blank{}))
	requireT.Equal(eval.Cell{}, wb.Cell(0, 0, 0))

	requireT.NoError(wb.Clear(0, 0, 1))
	requireT.False(wb.Cell(0, 0, 1).IsFormula())
}

func TestSetFormulaErrors(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1")

	var syntaxErr *parser.SyntaxError
	requireT.True(errors.As(wb.SetFormula(0, 0, 0, "1+"), &syntaxErr))

	var unknownErr *parser.UnknownNameError
	requireT.True(errors.As(wb.SetFormula(0, 0, 0, "NOSUCHFUNC(1)"), &unknownErr))
	requireT.Equal("NOSUCHFUNC", unknownErr.Name)

	requireT.Error(wb.SetTokens(0, 0, 0, nil))
}

func TestTokensAreRendered(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1", "Other Sheet")
	requireT.NoError(wb.SetFormula(0, 0, 0, "SUM('Other Sheet'!A1:B2)+1"))
	requireT.NoError(wb.SetTokens(0, 1, 0, wb.Cell(0, 0, 0).Formula))

	formula, exists, err := wb.Formula(0, 1, 0)
	requireT.NoError(err)
	requireT.True(exists)
	requireT.Equal("SUM('Other Sheet'!A1:B2)+1", formula)
}

func TestParseCache(t *testing.T) {
	assertT := assert.New(t)
	requireT := require.New(t)

	wb := newBook(t, "Sheet1")
	requireT.NoError(wb.SetFormula(0, 0, 1, "SUM(A1:A3)"))
	requireT.NoError(wb.SetFormula(0, 1, 1, "SUM(A1:A3)"))
	assertT.Same(wb.Cell(0, 0, 1).Formula[0], wb.Cell(0, 1, 1).Formula[0])

	config := DefaultConfig()
	config.ParseCacheSize = 0
	wb = New(config)
	_, err := wb.AddSheet("Sheet1")
	requireT.NoError(err)
	requireT.NoError(wb.SetFormula(0, 0, 1, "SUM(A1:A3)"))
	requireT.NoError(wb.SetFormula(0, 1, 1, "SUM(A1:A3)"))
	assertT.NotSame(wb.Cell(0, 0, 1).Formula[0], wb.Cell(0, 1, 1).Formula[0])
}

func TestEvaluate(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1")
	requireT.NoError(wb.SetValue(0, 0, 0, value.Number(1)))
	requireT.NoError(wb.SetValue(0, 1, 0, value.Number(2)))
	requireT.NoError(wb.SetFormula(0, 2, 0, "SUM(A1:A2)*2"))

	ev := eval.New(wb, eval.Config{})
	requireT.Equal(value.Number(6), ev.Evaluate(0, 2, 0))

	requireT.NoError(wb.SetValue(0, 0, 0, value.Number(5)))
	ev.NotifyUpdateCell(0, 0, 0)
	requireT.Equal(value.Number(14), ev.Evaluate(0, 2, 0))
}

func TestDefinedNames(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1", "Sheet2")
	requireT.NoError(wb.SetValue(0, 0, 0, value.Number(10)))
	requireT.NoError(wb.SetValue(0, 0, 1, value.Number(0.2)))
	_, err := wb.DefineName("rate", GlobalScope, "Sheet1!$B$1")
	requireT.NoError(err)
	_, err = wb.DefineName("rate", 1, "0.5")
	requireT.NoError(err)
	_, err = wb.DefineName("RATE", GlobalScope, "1")
	requireT.ErrorIs(err, ErrDuplicateName)
	_, err = wb.DefineName("other", 7, "1")
	requireT.ErrorIs(err, ErrSheetNotFound)

	requireT.NoError(wb.SetFormula(0, 1, 0, "A1*rate"))
	requireT.NoError(wb.SetFormula(1, 0, 0, "Sheet1!A1*rate"))

	ev := eval.New(wb, eval.Config{})
	requireT.Equal(value.Number(2), ev.Evaluate(0, 1, 0))
	requireT.Equal(value.Number(5), ev.Evaluate(1, 0, 0))
}

func TestUserDefinedFunctions(t *testing.T) {
	requireT := require.New(t)

	registry := function.Builtins()
	requireT.NoError(registry.RegisterUDF("DOUBLE", func(_ *function.Context, args []value.Value) value.Value {
		n, errV := value.ToNumber(value.SingleValue(args[0], 0, 0))
		if errV != nil {
			return errV
		}
		return value.Number(2 * n)
	}))

	config := DefaultConfig()
	config.Registry = registry
	config.UnknownFunctions = parser.RegisterAsExternal
	wb := New(config)
	_, err := wb.AddSheet("Sheet1")
	requireT.NoError(err)

	requireT.NoError(wb.SetValue(0, 0, 0, value.Number(21)))
	requireT.NoError(wb.SetFormula(0, 0, 1, "double(A1)"))
	requireT.NoError(wb.SetFormula(0, 0, 2, "TRIPLE(A1)"))

	formula, _, err := wb.Formula(0, 0, 1)
	requireT.NoError(err)
	requireT.Equal("double(A1)", formula)

	ev := eval.New(wb, eval.Config{Registry: registry})
	requireT.Equal(value.Number(42), ev.Evaluate(0, 0, 1))
	requireT.Equal(value.ErrorName, ev.Evaluate(0, 0, 2))
}

func TestTables(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1")
	table := parser.Table{
		Sheet:      "Sheet1",
		FirstRow:   0,
		FirstCol:   0,
		LastRow:    3,
		LastCol:    1,
		Columns:    []string{"Item", "Price"},
		HeaderRows: 1,
	}
	requireT.NoError(wb.AddTable("Prices", table))
	requireT.ErrorIs(wb.AddTable("PRICES", table), ErrDuplicateName)
	table.Sheet = "Missing"
	requireT.ErrorIs(wb.AddTable("Other", table), ErrSheetNotFound)

	for row, price := range []float64{1.5, 2, 3.5} {
		requireT.NoError(wb.SetValue(0, row+1, 1, value.Number(price)))
	}
	requireT.NoError(wb.SetFormula(0, 5, 1, "SUM(Prices[Price])"))

	ev := eval.New(wb, eval.Config{})
	requireT.Equal(value.Number(7), ev.Evaluate(0, 5, 1))
}

func TestResolveRange(t *testing.T) {
	wb := newBook(t, "Sheet1", "Sheet2", "My Sheet")

	tests := []struct {
		text  string
		ok    bool
		sheet int
		rect  value.Rect
	}{
		{text: "B3", ok: true, sheet: 0, rect: value.CellRect(2, 1)},
		{text: "$B$3", ok: true, sheet: 0, rect: value.CellRect(2, 1)},
		{text: "Sheet2!C3:A1", ok: true, sheet: 1, rect: value.Rect{LastRow: 2, LastCol: 2}},
		{text: "'My Sheet'!D4", ok: true, sheet: 2, rect: value.CellRect(3, 3)},
		{text: "B:$A", ok: true, sheet: 0, rect: value.Rect{LastRow: 65535, LastCol: 1}},
		{text: "3:2", ok: true, sheet: 0, rect: value.Rect{FirstRow: 1, LastRow: 2, LastCol: 255}},
		{text: "[Book1]Sheet1!A1", ok: false},
		{text: "Sheet1:Sheet2!A1", ok: false},
		{text: "Unknown!A1", ok: false},
		{text: "myName", ok: false},
	}

	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			requireT := require.New(t)

			ref, ok := wb.resolveRange(test.text, 0)
			requireT.Equal(test.ok, ok)
			if ok {
				requireT.Equal(test.sheet, ref.sheet)
				requireT.Equal(test.rect, ref.rect)
			}
		})
	}
}

func TestDependencyLevels(t *testing.T) {
	requireT := require.New(t)

	wb := newBook(t, "Sheet1", "Sheet2")
	requireT.NoError(wb.SetValue(0, 0, 0, value.Number(1)))
	requireT.NoError(wb.SetFormula(0, 0, 1, "A1+1"))
	requireT.NoError(wb.SetFormula(0, 0, 2, "B1+Sheet2!A1"))
	requireT.NoError(wb.SetFormula(1, 0, 0, "Sheet1!A1*3"))
	requireT.NoError(wb.SetFormula(1, 1, 0, "SUM(Sheet1!A1:C1)"))
	requireT.NoError(wb.SetFormula(1, 2, 0, "B5"))
	requireT.NoError(wb.SetFormula(1, 4, 1, "A3"))

	requireT.Equal([][]position{
		{{sheet: 0, row: 0, col: 1}, {sheet: 1, row: 0, col: 0}},
		{{sheet: 0, row: 0, col: 2}},
		{{sheet: 1, row: 1, col: 0}},
		{{sheet: 1, row: 2, col: 0}, {sheet: 1, row: 4, col: 1}},
	}, wb.dependencyLevels())

	results := wb.EvaluateAll(eval.New(wb, eval.Config{}))
	requireT.Equal([]Result{
		{Sheet: 0, Row: 0, Col: 1, Value: value.Number(2)},
		{Sheet: 1, Row: 0, Col: 0, Value: value.Number(3)},
		{Sheet: 0, Row: 0, Col: 2, Value: value.Number(5)},
		{Sheet: 1, Row: 1, Col: 0, Value: value.Number(8)},
		{Sheet: 1, Row: 2, Col: 0, Value: value.ErrorCircularRef},
		{Sheet: 1, Row: 4, Col: 1, Value: value.ErrorCircularRef},
	}, results)
}

func TestEvaluateAllLongChain(t *testing.T) {
	requireT := require.New(t)

	const length = 3000

	wb := newBook(t, "Sheet1")
	requireT.NoError(wb.SetValue(0, 0, 0, value.Number(1)))
	for row := 1; row < length; row++ {
		requireT.NoError(wb.SetFormula(0, row, 0, fmt.Sprintf("A%d+1", row)))
	}

	requireT.Len(wb.dependencyLevels(), length-1)

	results := wb.EvaluateAll(eval.New(wb, eval.Config{}))
	requireT.Len(results, length-1)
	requireT.Equal(Result{Sheet: 0, Row: length - 1, Col: 0, Value: value.Number(length)}, results[length-2])
}
