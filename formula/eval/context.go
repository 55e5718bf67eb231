package eval

import (
	"github.com/outofforest/oledoc/formula/function"
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
	"github.com/outofforest/oledoc/pkg/mlog"
)

// operand is the item on the evaluation stack. Array is set if value operators should process
// the value element by element.
type operand struct {
	v     value.Value
	array bool
}

// opContext is the context of one formula being evaluated. Areas created by it read cells through it,
// so every cell used by the formula is recorded by the tracker.
type opContext struct {
	ev      *Evaluator
	sheet   int
	row     int
	col     int
	tracker *tracker
	fctx    *function.Context

	// names being evaluated, used to stop recursive definitions.
	names map[int]struct{}
}

func (e *Evaluator) newContext(sheet, row, col int, t *tracker) *opContext {
	return &opContext{
		ev:      e,
		sheet:   sheet,
		row:     row,
		col:     col,
		tracker: t,
		fctx: &function.Context{
			Row:   row,
			Col:   col,
			Clock: e.clock,
			Rand:  e.rand,
		},
		names: map[int]struct{}{},
	}
}

// CellValue returns value of the cell evaluating it if needed.
func (c *opContext) CellValue(sheet value.SheetKey, row, col int) value.Value {
	target := c.ev.evaluatorOf(sheet.Book)
	if target == nil {
		return value.ErrorRef
	}
	return target.evaluateAny(sheet.Sheet, row, col, c.tracker)
}

// evaluateTokens runs the token stream. Malformed stream evaluates to #VALUE!.
func (c *opContext) evaluateTokens(tokens []ptg.Token) value.Value {
	stack := make([]operand, 0, len(tokens))
	pop := func(n int) ([]operand, bool) {
		if n > len(stack) {
			return nil, false
		}
		args := make([]operand, n)
		copy(args, stack[len(stack)-n:])
		stack = stack[:len(stack)-n]
		return args, true
	}

	for _, t := range tokens {
		switch x := t.(type) {
		case ptg.Paren, *ptg.MemArea, *ptg.MemErr, *ptg.MemFunc:
		case *ptg.Attr:
			if x.Kind != ptg.AttrSum {
				continue
			}
			args, ok := pop(1)
			if !ok {
				return c.malformed(tokens)
			}
			stack = append(stack, operand{v: c.call(sumIndex, values(args))})
		case ptg.Operator:
			args, ok := pop(x.Operands())
			if !ok {
				return c.malformed(tokens)
			}
			stack = append(stack, c.operate(x, args))
		case *ptg.Func:
			args, ok := pop(x.NumArgs)
			if !ok {
				return c.malformed(tokens)
			}
			stack = append(stack, c.result(c.call(x.Index, values(args))))
		case *ptg.FuncVar:
			args, ok := pop(x.NumArgs)
			if !ok {
				return c.malformed(tokens)
			}
			stack = append(stack, c.result(c.call(x.Index, values(args))))
		default:
			stack = append(stack, c.operand(t))
		}
	}
	if len(stack) != 1 {
		return c.malformed(tokens)
	}
	return stack[0].v
}

func (c *opContext) malformed(tokens []ptg.Token) value.Value {
	mlog.Printf2("formula/eval/context", "Malformed formula in sheet %d, cell R%dC%d: %d tokens",
		c.sheet, c.row+1, c.col+1, len(tokens))
	return value.ErrorValue
}

func (c *opContext) result(v value.Value) operand {
	_, array := v.(*value.Array)
	return operand{v: v, array: array}
}

func (c *opContext) operand(t ptg.Token) operand {
	switch x := t.(type) {
	case *ptg.Int:
		return operand{v: value.Number(x.Value)}
	case *ptg.Number:
		return operand{v: value.Number(x.Value)}
	case *ptg.Str:
		return operand{v: value.String(x.Value)}
	case *ptg.Bool:
		return operand{v: value.Bool(x.Value)}
	case *ptg.Err:
		return operand{v: x.Code}
	case ptg.MissingArg:
		return operand{v: value.Missing{}}
	case *ptg.Array:
		return operand{v: &value.Array{Rows: x.Rows, Cols: x.Cols, Values: x.Values}, array: true}
	case *ptg.RefErr, *ptg.AreaErr:
		return operand{v: value.ErrorRef}
	case *ptg.Ref:
		return c.reference(x, c.localArea(value.CellRect(x.Cell.Row, x.Cell.Col)))
	case *ptg.Area:
		return c.reference(x, c.localArea(x.Area.Rect()))
	case *ptg.Ref3D:
		return c.reference(x, c.externArea(x.ExternSheet, value.CellRect(x.Cell.Row, x.Cell.Col)))
	case *ptg.Area3D:
		return c.reference(x, c.externArea(x.ExternSheet, x.Area.Rect()))
	case *ptg.Name:
		return c.reference(x, c.name(x.Index))
	case *ptg.NameX:
		return operand{v: value.FunctionName(c.ev.book.ExternalNameText(x.ExternSheet, x.Index))}
	default:
		return operand{v: value.ErrorValue}
	}
}

func (c *opContext) reference(t ptg.Classed, v value.Value) operand {
	return operand{v: v, array: t.OperandClass() == ptg.ClassArray}
}

func (c *opContext) localArea(rect value.Rect) value.Value {
	return value.NewArea(c, value.SheetKey{Book: c.ev.bookIndex, Sheet: c.sheet}, rect)
}

// externArea resolves the reference going through the extern sheet table. It may point to another
// workbook and span many sheets.
func (c *opContext) externArea(externSheet int, rect value.Rect) value.Value {
	sheets, ok := c.ev.book.ExternSheet(externSheet)
	if !ok {
		return value.ErrorRef
	}
	target := c.ev
	if sheets.Book != "" {
		if target = c.ev.otherEvaluator(sheets.Book); target == nil {
			return value.ErrorRef
		}
	}

	first, ok := target.book.SheetIndex(sheets.First)
	if !ok {
		return value.ErrorRef
	}
	last := first
	if sheets.Last != "" && sheets.Last != sheets.First {
		if last, ok = target.book.SheetIndex(sheets.Last); !ok {
			return value.ErrorRef
		}
	}
	if first > last {
		first, last = last, first
	}

	if first == last {
		return value.NewArea(c, value.SheetKey{Book: target.bookIndex, Sheet: first}, rect)
	}
	list := make(value.RefList, 0, last-first+1)
	for sheet := first; sheet <= last; sheet++ {
		list = append(list, value.NewArea(c, value.SheetKey{Book: target.bookIndex, Sheet: sheet}, rect))
	}
	return list
}

// name evaluates the defined name. Function names evaluate to the name itself, consumed by the call
// of the user defined function.
func (c *opContext) name(index int) value.Value {
	n, ok := c.ev.book.DefinedName(index)
	if !ok {
		return value.ErrorName
	}
	if n.Function {
		return value.FunctionName(n.Name)
	}
	if n.Formula == nil {
		return value.ErrorName
	}
	if _, exists := c.names[index]; exists {
		return value.ErrorName
	}
	c.names[index] = struct{}{}
	defer delete(c.names, index)

	return c.evaluateTokens(n.Formula)
}

func (c *opContext) call(index int, args []value.Value) value.Value {
	if index == ptg.ExternalFunctionIndex {
		return c.callExternal(args)
	}
	m, ok := c.ev.registry.ByIndex(index)
	if !ok {
		return value.ErrorName
	}
	return m.Call(c.fctx, args)
}

// callExternal calls user defined function, the first argument is its name.
func (c *opContext) callExternal(args []value.Value) value.Value {
	if len(args) == 0 {
		return value.ErrorValue
	}
	var name value.FunctionName
	switch x := args[0].(type) {
	case value.FunctionName:
		name = x
	case value.Error:
		return x
	default:
		return value.ErrorName
	}
	impl, ok := c.ev.registry.UDF(string(name))
	if !ok {
		return value.ErrorName
	}
	return impl(c.fctx, args[1:])
}

func values(args []operand) []value.Value {
	vs := make([]value.Value, 0, len(args))
	for _, a := range args {
		vs = append(vs, a.v)
	}
	return vs
}
