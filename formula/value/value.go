package value

import (
	"math"
	"strconv"
	"strings"
)

// Value is the result of evaluating an operand, an operator or a cell.
// The set of implementations is closed.
type Value interface {
	isValue()
}

// Number is the numeric value.
type Number float64

// String is the text value.
type String string

// Bool is the logical value.
type Bool bool

// Blank is the value of an empty cell.
type Blank struct{}

// Missing is the value of an omitted function argument.
type Missing struct{}

// FunctionName is pushed by a name referring to a user defined function. It is consumed by the
// external function call.
type FunctionName string

func (Number) isValue()       {}
func (String) isValue()       {}
func (Bool) isValue()         {}
func (Blank) isValue()        {}
func (Missing) isValue()      {}
func (FunctionName) isValue() {}
func (Error) isValue()        {}
func (RefList) isValue()      {}
func (*Array) isValue()       {}

// Error is the formula error value. Numeric codes are the ones stored in BIFF8 records.
type Error int

// Error codes.
const (
	ErrorNull        Error = 0x00
	ErrorDiv0        Error = 0x07
	ErrorValue       Error = 0x0F
	ErrorRef         Error = 0x17
	ErrorName        Error = 0x1D
	ErrorNum         Error = 0x24
	ErrorNA          Error = 0x2A
	ErrorCircularRef Error = -60
)

var errorTexts = map[Error]string{
	ErrorNull:        "#NULL!",
	ErrorDiv0:        "#DIV/0!",
	ErrorValue:       "#VALUE!",
	ErrorRef:         "#REF!",
	ErrorName:        "#NAME?",
	ErrorNum:         "#NUM!",
	ErrorNA:          "#N/A",
	ErrorCircularRef: "~CIRCULAR~REF~",
}

func (e Error) String() string {
	if text, exists := errorTexts[e]; exists {
		return text
	}
	return "~non~std~err(" + strconv.Itoa(int(e)) + ")~"
}

// IsValid tells if code may be stored in a file.
func (e Error) IsValid() bool {
	_, exists := errorTexts[e]
	return exists && e != ErrorCircularRef
}

// ParseError returns error matching the literal, like #DIV/0!.
func ParseError(text string) (Error, bool) {
	for code, t := range errorTexts {
		if code != ErrorCircularRef && strings.EqualFold(t, text) {
			return code, true
		}
	}
	return 0, false
}

// RefList is the result of the union operator and of references spanning several sheets.
type RefList []*Area

// Array is the array constant.
type Array struct {
	Rows   int
	Cols   int
	Values []Value
}

// At returns the element at position.
func (a *Array) At(row, col int) Value {
	return a.Values[row*a.Cols+col]
}

// Format converts value to the text displayed for it.
func Format(v Value) string {
	switch x := v.(type) {
	case Number:
		return FormatNumber(float64(x))
	case String:
		return string(x)
	case Bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case Error:
		return x.String()
	case FunctionName:
		return string(x)
	case Blank, Missing, nil:
		return ""
	case *Area:
		return "<area " + x.Rect().String() + ">"
	case RefList:
		return "<reference list>"
	case *Array:
		return "<array>"
	default:
		return ""
	}
}

// FormatNumber converts number to text the way it is displayed in the general format.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n), math.IsInf(n, 0):
		return ErrorNum.String()
	case n == math.Trunc(n) && math.Abs(n) < 1e15:
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	text := strconv.FormatFloat(n, 'G', 15, 64)
	if mantissa, exp, found := strings.Cut(text, "E"); found {
		if strings.Contains(mantissa, ".") {
			mantissa = strings.TrimRight(strings.TrimRight(mantissa, "0"), ".")
		}
		return mantissa + "E" + exp
	}
	if strings.Contains(text, ".") {
		text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	}
	return text
}

// Equal compares values stored in the evaluation cache.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Number:
		y, ok := b.(Number)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Error:
		y, ok := b.(Error)
		return ok && x == y
	case Blank:
		_, ok := b.(Blank)
		return ok
	default:
		return false
	}
}
