package function

import (
	"math"
	"strconv"

	"github.com/outofforest/oledoc/formula/value"
)

func scalar(ctx *Context, arg value.Value) value.Value {
	return value.SingleValue(arg, ctx.Row, ctx.Col)
}

func numberArg(ctx *Context, arg value.Value) (float64, value.Value) {
	return value.ToNumber(scalar(ctx, arg))
}

func textArg(ctx *Context, arg value.Value) (string, value.Value) {
	return value.ToText(scalar(ctx, arg))
}

func boolArg(ctx *Context, arg value.Value) (bool, value.Value) {
	return value.ToBool(scalar(ctx, arg))
}

// optionalNumber returns default if argument is omitted.
func optionalNumber(ctx *Context, args []value.Value, i int, def float64) (float64, value.Value) {
	if i >= len(args) {
		return def, nil
	}
	if _, ok := args[i].(value.Missing); ok {
		return def, nil
	}
	return numberArg(ctx, args[i])
}

func result(n float64) value.Value {
	if !value.IsFinite(n) {
		return value.ErrorNum
	}
	return value.Number(n)
}

// roundSignificant removes binary noise below 15 significant digits, the precision kept by spreadsheets.
func roundSignificant(n float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(n, 'g', 15, 64), 64)
	if err != nil {
		return n
	}
	return r
}

// grid gives uniform access to areas and arrays used by lookup functions.
type grid interface {
	height() int
	width() int
	at(row, col int) value.Value
}

type areaGrid struct {
	area *value.Area
}

func (g areaGrid) height() int {
	return g.area.Rect().Height()
}

func (g areaGrid) width() int {
	return g.area.Rect().Width()
}

func (g areaGrid) at(row, col int) value.Value {
	return g.area.Get(row, col)
}

type arrayGrid struct {
	array *value.Array
}

func (g arrayGrid) height() int {
	return g.array.Rows
}

func (g arrayGrid) width() int {
	return g.array.Cols
}

func (g arrayGrid) at(row, col int) value.Value {
	return g.array.At(row, col)
}

type scalarGrid struct {
	v value.Value
}

func (g scalarGrid) height() int {
	return 1
}

func (g scalarGrid) width() int {
	return 1
}

func (g scalarGrid) at(int, int) value.Value {
	return g.v
}

func toGrid(arg value.Value) (grid, value.Value) {
	switch x := arg.(type) {
	case *value.Area:
		return areaGrid{area: x}, nil
	case *value.Array:
		return arrayGrid{array: x}, nil
	case value.RefList:
		if len(x) == 1 {
			return areaGrid{area: x[0]}, nil
		}
		return nil, value.ErrorValue
	case value.Error:
		return nil, x
	default:
		return scalarGrid{v: arg}, nil
	}
}

func truncate(n float64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int(n)
}
