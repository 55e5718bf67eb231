package function

import (
	"sort"

	"github.com/outofforest/oledoc/formula/value"
)

// collectNumbers gathers numbers from arguments. Direct arguments count if they are numbers, logical values
// or numeric text, other text is an error. Cells count only if they hold numbers unless countAll is set,
// then logical values count as 1 or 0 and text as 0. Errors propagate.
func collectNumbers(args []value.Value, countAll bool) ([]float64, value.Value) {
	var numbers []float64
	var errV value.Value
	for _, arg := range args {
		value.Walk(arg, func(v value.Value, direct bool) bool {
			switch x := v.(type) {
			case value.Number:
				numbers = append(numbers, float64(x))
			case value.Error:
				errV = x
				return false
			case value.Bool:
				if direct || countAll {
					if x {
						numbers = append(numbers, 1)
					} else {
						numbers = append(numbers, 0)
					}
				}
			case value.String:
				switch {
				case direct:
					n, ok := value.ParseNumber(string(x))
					if !ok {
						errV = value.ErrorValue
						return false
					}
					numbers = append(numbers, n)
				case countAll:
					numbers = append(numbers, 0)
				}
			}
			return true
		})
		if errV != nil {
			return nil, errV
		}
	}
	return numbers, nil
}

func sum(_ *Context, args []value.Value) value.Value {
	numbers, errV := collectNumbers(args, false)
	if errV != nil {
		return errV
	}
	var total float64
	for _, n := range numbers {
		total += n
	}
	return result(total)
}

func product(_ *Context, args []value.Value) value.Value {
	numbers, errV := collectNumbers(args, false)
	if errV != nil {
		return errV
	}
	if len(numbers) == 0 {
		return value.Number(0)
	}
	total := 1.0
	for _, n := range numbers {
		total *= n
	}
	return result(total)
}

func averageOf(args []value.Value, countAll bool) value.Value {
	numbers, errV := collectNumbers(args, countAll)
	if errV != nil {
		return errV
	}
	if len(numbers) == 0 {
		return value.ErrorDiv0
	}
	var total float64
	for _, n := range numbers {
		total += n
	}
	return result(total / float64(len(numbers)))
}

func average(_ *Context, args []value.Value) value.Value {
	return averageOf(args, false)
}

func averageA(_ *Context, args []value.Value) value.Value {
	return averageOf(args, true)
}

func extreme(args []value.Value, countAll bool, better func(a, b float64) bool) value.Value {
	numbers, errV := collectNumbers(args, countAll)
	if errV != nil {
		return errV
	}
	if len(numbers) == 0 {
		return value.Number(0)
	}
	res := numbers[0]
	for _, n := range numbers[1:] {
		if better(n, res) {
			res = n
		}
	}
	return value.Number(res)
}

func less(a, b float64) bool {
	return a < b
}

func greater(a, b float64) bool {
	return a > b
}

func minFunc(_ *Context, args []value.Value) value.Value {
	return extreme(args, false, less)
}

func maxFunc(_ *Context, args []value.Value) value.Value {
	return extreme(args, false, greater)
}

func minA(_ *Context, args []value.Value) value.Value {
	return extreme(args, true, less)
}

func maxA(_ *Context, args []value.Value) value.Value {
	return extreme(args, true, greater)
}

func median(_ *Context, args []value.Value) value.Value {
	numbers, errV := collectNumbers(args, false)
	if errV != nil {
		return errV
	}
	if len(numbers) == 0 {
		return value.ErrorNum
	}
	sort.Float64s(numbers)
	mid := len(numbers) / 2
	if len(numbers)%2 == 1 {
		return value.Number(numbers[mid])
	}
	return value.Number((numbers[mid-1] + numbers[mid]) / 2)
}

func count(_ *Context, args []value.Value) value.Value {
	var total int
	for _, arg := range args {
		value.Walk(arg, func(v value.Value, direct bool) bool {
			switch x := v.(type) {
			case value.Number:
				total++
			case value.Bool:
				if direct {
					total++
				}
			case value.String:
				if _, ok := value.ParseNumber(string(x)); ok && direct {
					total++
				}
			}
			return true
		})
	}
	return value.Number(total)
}

func counta(_ *Context, args []value.Value) value.Value {
	var total int
	for _, arg := range args {
		value.Walk(arg, func(v value.Value, direct bool) bool {
			switch v.(type) {
			case value.Blank:
			case value.Missing:
				if direct {
					total++
				}
			default:
				total++
			}
			return true
		})
	}
	return value.Number(total)
}

func countBlank(_ *Context, args []value.Value) value.Value {
	if _, ok := args[0].(*value.Area); !ok {
		return value.ErrorValue
	}
	var total int
	value.Walk(args[0], func(v value.Value, _ bool) bool {
		switch x := v.(type) {
		case value.Blank:
			total++
		case value.String:
			if x == "" {
				total++
			}
		}
		return true
	})
	return value.Number(total)
}

func sumProduct(_ *Context, args []value.Value) value.Value {
	grids := make([]grid, 0, len(args))
	for _, arg := range args {
		g, errV := toGrid(arg)
		if errV != nil {
			return errV
		}
		if len(grids) > 0 && (g.height() != grids[0].height() || g.width() != grids[0].width()) {
			return value.ErrorValue
		}
		grids = append(grids, g)
	}

	var total float64
	for row := 0; row < grids[0].height(); row++ {
		for col := 0; col < grids[0].width(); col++ {
			term := 1.0
			for _, g := range grids {
				switch x := g.at(row, col).(type) {
				case value.Number:
					term *= float64(x)
				case value.Error:
					return x
				default:
					term = 0
				}
			}
			total += term
		}
	}
	return result(total)
}
