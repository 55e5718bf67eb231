package eval

import (
	"math"

	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
)

func (c *opContext) operate(op ptg.Operator, args []operand) operand {
	switch op {
	case ptg.OpRange:
		return operand{v: rangeOf(args[0].v, args[1].v)}
	case ptg.OpIntersect:
		return operand{v: intersection(args[0].v, args[1].v)}
	case ptg.OpUnion:
		return operand{v: union(args[0].v, args[1].v)}
	}

	if op.Operands() == 1 {
		if isArray(args[0]) {
			return operand{v: c.elementwise(args[0].v, value.Number(0), func(x, _ value.Value) value.Value {
				return unary(op, x)
			}), array: true}
		}
		return operand{v: unary(op, c.single(args[0].v))}
	}

	fn := func(x, y value.Value) value.Value {
		return binary(op, x, y)
	}
	if isArray(args[0]) || isArray(args[1]) {
		return operand{v: c.elementwise(args[0].v, args[1].v, fn), array: true}
	}
	return operand{v: fn(c.single(args[0].v), c.single(args[1].v))}
}

func isArray(o operand) bool {
	if _, ok := o.v.(*value.Array); ok {
		return true
	}
	return o.array
}

// single dereferences the operand of value operator.
func (c *opContext) single(v value.Value) value.Value {
	v = value.SingleValue(v, c.row, c.col)
	if _, ok := v.(value.Missing); ok {
		return value.Blank{}
	}
	return v
}

// elementwise applies operator to every pair of elements. Dimension equal to one is broadcast,
// elements missing in smaller operand give #N/A.
func (c *opContext) elementwise(a, b value.Value, fn func(x, y value.Value) value.Value) *value.Array {
	ga := c.grid(a)
	gb := c.grid(b)
	rows := max(ga.rows, gb.rows)
	cols := max(ga.cols, gb.cols)

	values := make([]value.Value, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x, okX := ga.element(row, col)
			y, okY := gb.element(row, col)
			if !okX || !okY {
				values = append(values, value.ErrorNA)
				continue
			}
			values = append(values, fn(x, y))
		}
	}
	return &value.Array{Rows: rows, Cols: cols, Values: values}
}

type grid struct {
	rows int
	cols int
	at   func(row, col int) value.Value
}

func (c *opContext) grid(v value.Value) grid {
	switch x := v.(type) {
	case *value.Array:
		return grid{rows: x.Rows, cols: x.Cols, at: x.At}
	case *value.Area:
		r := x.Rect()
		return grid{rows: r.Height(), cols: r.Width(), at: x.Get}
	case value.RefList:
		if len(x) == 1 {
			return c.grid(x[0])
		}
		return scalarGrid(value.ErrorValue)
	default:
		return scalarGrid(c.single(v))
	}
}

func scalarGrid(v value.Value) grid {
	return grid{rows: 1, cols: 1, at: func(int, int) value.Value { return v }}
}

func (g grid) element(row, col int) (value.Value, bool) {
	if g.rows == 1 {
		row = 0
	}
	if g.cols == 1 {
		col = 0
	}
	if row >= g.rows || col >= g.cols {
		return nil, false
	}
	v := g.at(row, col)
	switch v.(type) {
	case nil, value.Missing:
		return value.Blank{}, true
	default:
		return v, true
	}
}

func unary(op ptg.Operator, v value.Value) value.Value {
	if _, ok := v.(value.String); ok && op == ptg.OpUnaryPlus {
		return v
	}
	n, errV := value.ToNumber(v)
	if errV != nil {
		return errV
	}
	switch op {
	case ptg.OpUnaryMin:
		n = -n
	case ptg.OpPercent:
		n /= 100
	}
	return number(n)
}

func binary(op ptg.Operator, a, b value.Value) value.Value {
	switch op {
	case ptg.OpAdd, ptg.OpSubtract, ptg.OpMultiply, ptg.OpDivide, ptg.OpPower:
		return arithmetic(op, a, b)
	case ptg.OpConcat:
		return concat(a, b)
	default:
		return comparison(op, a, b)
	}
}

func arithmetic(op ptg.Operator, a, b value.Value) value.Value {
	x, errV := value.ToNumber(a)
	if errV != nil {
		return errV
	}
	y, errV := value.ToNumber(b)
	if errV != nil {
		return errV
	}

	var r float64
	switch op {
	case ptg.OpAdd:
		r = x + y
	case ptg.OpSubtract:
		r = x - y
	case ptg.OpMultiply:
		r = x * y
	case ptg.OpDivide:
		if y == 0 {
			return value.ErrorDiv0
		}
		r = x / y
	case ptg.OpPower:
		if x == 0 && y == 0 {
			return value.ErrorNum
		}
		r = math.Pow(x, y)
	}
	return number(r)
}

func number(n float64) value.Value {
	if !value.IsFinite(n) {
		return value.ErrorNum
	}
	if n == 0 {
		// Negative zero is not distinguished.
		return value.Number(0)
	}
	return value.Number(n)
}

func concat(a, b value.Value) value.Value {
	x, errV := value.ToText(a)
	if errV != nil {
		return errV
	}
	y, errV := value.ToText(b)
	if errV != nil {
		return errV
	}
	return value.String(x + y)
}

func comparison(op ptg.Operator, a, b value.Value) value.Value {
	if e, ok := a.(value.Error); ok {
		return e
	}
	if e, ok := b.(value.Error); ok {
		return e
	}
	r := value.Compare(a, b)
	switch op {
	case ptg.OpLess:
		return value.Bool(r < 0)
	case ptg.OpLessEqual:
		return value.Bool(r <= 0)
	case ptg.OpEqual:
		return value.Bool(r == 0)
	case ptg.OpGreaterEq:
		return value.Bool(r >= 0)
	case ptg.OpGreater:
		return value.Bool(r > 0)
	case ptg.OpNotEqual:
		return value.Bool(r != 0)
	default:
		return value.ErrorValue
	}
}

// areaOf returns the area referenced by the operand of reference operator.
func areaOf(v value.Value) (*value.Area, value.Value) {
	switch x := v.(type) {
	case *value.Area:
		return x, nil
	case value.RefList:
		if len(x) == 1 {
			return x[0], nil
		}
		return nil, value.ErrorValue
	case value.Error:
		return nil, x
	default:
		return nil, value.ErrorValue
	}
}

// rangeOf returns the smallest area containing both operands.
func rangeOf(a, b value.Value) value.Value {
	x, errV := areaOf(a)
	if errV != nil {
		return errV
	}
	y, errV := areaOf(b)
	if errV != nil {
		return errV
	}
	if x.Sheet() != y.Sheet() {
		return value.ErrorRef
	}
	return x.Sub(x.Rect().Bound(y.Rect()))
}

func intersection(a, b value.Value) value.Value {
	x, errV := areaOf(a)
	if errV != nil {
		return errV
	}
	y, errV := areaOf(b)
	if errV != nil {
		return errV
	}
	if x.Sheet() != y.Sheet() {
		return value.ErrorValue
	}
	r, ok := x.Rect().Intersect(y.Rect())
	if !ok {
		return value.ErrorNull
	}
	return x.Sub(r)
}

func union(a, b value.Value) value.Value {
	var list value.RefList
	for _, v := range []value.Value{a, b} {
		switch x := v.(type) {
		case *value.Area:
			list = append(list, x)
		case value.RefList:
			list = append(list, x...)
		case value.Error:
			return x
		default:
			return value.ErrorValue
		}
	}
	return list
}
