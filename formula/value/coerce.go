package value

import (
	"math"
	"strconv"
	"strings"
)

// SingleValue dereferences the value to the scalar used by value operators. Area is reduced by implicit
// intersection with the row or column of the evaluated cell.
func SingleValue(v Value, srcRow, srcCol int) Value {
	switch x := v.(type) {
	case *Area:
		r := x.Rect()
		switch {
		case r.IsCell():
			return x.Get(0, 0)
		case r.Width() == 1:
			if srcRow < r.FirstRow || srcRow > r.LastRow {
				return ErrorValue
			}
			return x.Get(srcRow-r.FirstRow, 0)
		case r.Height() == 1:
			if srcCol < r.FirstCol || srcCol > r.LastCol {
				return ErrorValue
			}
			return x.Get(0, srcCol-r.FirstCol)
		default:
			return ErrorValue
		}
	case RefList:
		if len(x) == 1 {
			return SingleValue(x[0], srcRow, srcCol)
		}
		return ErrorValue
	case *Array:
		if len(x.Values) == 0 {
			return ErrorValue
		}
		return x.Values[0]
	case FunctionName:
		return ErrorName
	case nil:
		return Blank{}
	default:
		return v
	}
}

// ParseNumber parses text holding the number. Surrounding spaces are allowed.
func ParseNumber(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, c := range text {
		switch {
		case c >= '0' && c <= '9', c == '.', c == 'e', c == 'E', c == '+', c == '-':
		default:
			return 0, false
		}
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ToNumber coerces scalar to number. On failure the error value to propagate is returned.
func ToNumber(v Value) (float64, Value) {
	switch x := v.(type) {
	case Number:
		return float64(x), nil
	case Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case Blank, Missing, nil:
		return 0, nil
	case String:
		n, ok := ParseNumber(string(x))
		if !ok {
			return 0, ErrorValue
		}
		return n, nil
	case Error:
		return 0, x
	default:
		return 0, ErrorValue
	}
}

// ToText coerces scalar to text.
func ToText(v Value) (string, Value) {
	switch x := v.(type) {
	case Error:
		return "", x
	case *Area, RefList, *Array:
		return "", ErrorValue
	default:
		return Format(v), nil
	}
}

// ToBool coerces scalar to logical value.
func ToBool(v Value) (bool, Value) {
	switch x := v.(type) {
	case Bool:
		return bool(x), nil
	case Number:
		return x != 0, nil
	case Blank, Missing, nil:
		return false, nil
	case String:
		switch strings.ToUpper(string(x)) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
		return false, ErrorValue
	case Error:
		return false, x
	default:
		return false, ErrorValue
	}
}

// Compare orders two scalars: numbers before text before logical values, text is compared case-insensitively.
// Blank takes the zero value of the other operand's type.
func Compare(a, b Value) int {
	a, b = blankAs(a, b), blankAs(b, a)

	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmp(ra, rb)
	}
	switch x := a.(type) {
	case Number:
		return cmp(float64(x), float64(b.(Number)))
	case String:
		return strings.Compare(strings.ToUpper(string(x)), strings.ToUpper(string(b.(String))))
	case Bool:
		return cmp(boolRank(bool(x)), boolRank(bool(b.(Bool))))
	default:
		return 0
	}
}

// Walk calls fn for every scalar carried by the value. Values coming from cells or array constants
// are reported with direct set to false. Walking stops when fn returns false.
func Walk(v Value, fn func(v Value, direct bool) bool) bool {
	switch x := v.(type) {
	case *Area:
		r := x.Rect()
		for row := 0; row < r.Height(); row++ {
			for col := 0; col < r.Width(); col++ {
				if !fn(x.Get(row, col), false) {
					return false
				}
			}
		}
		return true
	case RefList:
		for _, a := range x {
			if !Walk(a, fn) {
				return false
			}
		}
		return true
	case *Array:
		for _, item := range x.Values {
			if !fn(item, false) {
				return false
			}
		}
		return true
	default:
		return fn(v, true)
	}
}

// IsFinite tells if number may be stored in a cell.
func IsFinite(n float64) bool {
	return !math.IsNaN(n) && !math.IsInf(n, 0)
}

func blankAs(v, other Value) Value {
	if _, ok := v.(Blank); !ok {
		return v
	}
	switch other.(type) {
	case String:
		return String("")
	case Bool:
		return Bool(false)
	default:
		return Number(0)
	}
}

func typeRank(v Value) int {
	switch v.(type) {
	case Number:
		return 0
	case String:
		return 1
	case Bool:
		return 2
	default:
		return 3
	}
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func cmp[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
