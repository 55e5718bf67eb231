package function

import (
	"strings"

	"github.com/outofforest/oledoc/formula/value"
)

type predicate func(v value.Value) bool

var criteriaOperators = []string{"<>", "<=", ">=", "=", "<", ">"}

// newPredicate builds predicate from criteria argument of SUMIF and COUNTIF. Nil predicate matches nothing.
func newPredicate(criteria value.Value) predicate {
	switch x := criteria.(type) {
	case value.Number:
		return compareWith("=", x)
	case value.Bool:
		return compareWith("=", x)
	case value.Error:
		return compareWith("=", x)
	case value.String:
		return parseCriteria(string(x))
	default:
		return nil
	}
}

func parseCriteria(text string) predicate {
	op := ""
	for _, o := range criteriaOperators {
		if strings.HasPrefix(text, o) {
			op = o
			text = text[len(o):]
			break
		}
	}

	if n, ok := value.ParseNumber(text); ok {
		return compareWith(op, value.Number(n))
	}
	switch strings.ToUpper(text) {
	case "TRUE":
		return compareWith(op, value.Bool(true))
	case "FALSE":
		return compareWith(op, value.Bool(false))
	}
	if e, ok := value.ParseError(text); ok {
		return compareWith(op, e)
	}

	if text == "" {
		switch op {
		case "":
			return func(v value.Value) bool {
				s, isString := v.(value.String)
				_, isBlank := v.(value.Blank)
				return isBlank || (isString && s == "")
			}
		case "=":
			return func(v value.Value) bool {
				_, isBlank := v.(value.Blank)
				return isBlank
			}
		case "<>":
			return func(v value.Value) bool {
				_, isBlank := v.(value.Blank)
				return !isBlank
			}
		}
	}

	switch op {
	case "", "=":
		return func(v value.Value) bool {
			s, ok := v.(value.String)
			return ok && wildcardMatch(text, string(s))
		}
	case "<>":
		return func(v value.Value) bool {
			s, ok := v.(value.String)
			return !ok || !wildcardMatch(text, string(s))
		}
	}
	return compareWith(op, value.String(text))
}

// compareWith matches values of the same type as criteria.
func compareWith(op string, criteria value.Value) predicate {
	if _, ok := criteria.(value.Error); ok {
		return func(v value.Value) bool {
			switch op {
			case "", "=":
				return v == criteria
			case "<>":
				return v != criteria
			default:
				return false
			}
		}
	}
	return func(v value.Value) bool {
		if !sameType(criteria, v) {
			return op == "<>"
		}
		c := value.Compare(v, criteria)
		switch op {
		case "", "=":
			return c == 0
		case "<>":
			return c != 0
		case "<":
			return c < 0
		case "<=":
			return c <= 0
		case ">":
			return c > 0
		default:
			return c >= 0
		}
	}
}

func criteriaArg(ctx *Context, arg value.Value) predicate {
	return newPredicate(scalar(ctx, arg))
}

func countIf(ctx *Context, args []value.Value) value.Value {
	pred := criteriaArg(ctx, args[1])
	if pred == nil {
		return value.Number(0)
	}
	var total int
	value.Walk(args[0], func(v value.Value, _ bool) bool {
		if pred(v) {
			total++
		}
		return true
	})
	return value.Number(total)
}

func sumIf(ctx *Context, args []value.Value) value.Value {
	g, errV := toGrid(args[0])
	if errV != nil {
		return errV
	}
	pred := criteriaArg(ctx, args[1])
	if pred == nil {
		return value.Number(0)
	}

	sumGrid := g
	if len(args) > 2 && !isMissing(args[2]) {
		sg, errV := toGrid(args[2])
		if errV != nil {
			return errV
		}
		if a, ok := sg.(areaGrid); ok {
			r := a.area.Rect()
			r.LastRow = r.FirstRow + g.height() - 1
			r.LastCol = r.FirstCol + g.width() - 1
			sg = areaGrid{area: a.area.Sub(r)}
		}
		sumGrid = sg
	}

	var total float64
	for row := 0; row < g.height(); row++ {
		for col := 0; col < g.width(); col++ {
			if !pred(g.at(row, col)) || row >= sumGrid.height() || col >= sumGrid.width() {
				continue
			}
			switch x := sumGrid.at(row, col).(type) {
			case value.Number:
				total += float64(x)
			case value.Error:
				return x
			}
		}
	}
	return result(total)
}
