package function

import (
	"math"
	"time"

	"github.com/outofforest/oledoc/formula/value"
)

func unary(fn func(n float64) value.Value) Impl {
	return func(ctx *Context, args []value.Value) value.Value {
		n, errV := numberArg(ctx, args[0])
		if errV != nil {
			return errV
		}
		return fn(n)
	}
}

func binary(fn func(a, b float64) value.Value) Impl {
	return func(ctx *Context, args []value.Value) value.Value {
		a, errV := numberArg(ctx, args[0])
		if errV != nil {
			return errV
		}
		b, errV := numberArg(ctx, args[1])
		if errV != nil {
			return errV
		}
		return fn(a, b)
	}
}

var (
	abs = unary(func(n float64) value.Value {
		return value.Number(math.Abs(n))
	})
	intFunc = unary(func(n float64) value.Value {
		return value.Number(math.Floor(n))
	})
	sign = unary(func(n float64) value.Value {
		switch {
		case n > 0:
			return value.Number(1)
		case n < 0:
			return value.Number(-1)
		default:
			return value.Number(0)
		}
	})
	sqrt = unary(func(n float64) value.Value {
		if n < 0 {
			return value.ErrorNum
		}
		return value.Number(math.Sqrt(n))
	})
	exp = unary(func(n float64) value.Value {
		return result(math.Exp(n))
	})
	ln = unary(func(n float64) value.Value {
		if n <= 0 {
			return value.ErrorNum
		}
		return value.Number(math.Log(n))
	})
	log10 = unary(func(n float64) value.Value {
		if n <= 0 {
			return value.ErrorNum
		}
		return value.Number(math.Log10(n))
	})
	sin = unary(func(n float64) value.Value {
		return result(math.Sin(n))
	})
	cos = unary(func(n float64) value.Value {
		return result(math.Cos(n))
	})
	fact = unary(func(n float64) value.Value {
		if n < 0 || n > 170 {
			return value.ErrorNum
		}
		res := 1.0
		for i := 2; i <= int(n); i++ {
			res *= float64(i)
		}
		return value.Number(res)
	})
	mod = binary(func(a, b float64) value.Value {
		if b == 0 {
			return value.ErrorDiv0
		}
		return result(a - b*math.Floor(a/b))
	})
	power = binary(powerOf)
	round = binary(func(n, digits float64) value.Value {
		return roundWith(n, digits, math.Round)
	})
	roundUp = binary(func(n, digits float64) value.Value {
		return roundWith(n, digits, func(x float64) float64 {
			if x < 0 {
				return -math.Ceil(-x)
			}
			return math.Ceil(x)
		})
	})
	roundDown = binary(func(n, digits float64) value.Value {
		return roundWith(n, digits, math.Trunc)
	})
)

func powerOf(a, b float64) value.Value {
	if a == 0 && b < 0 {
		return value.ErrorDiv0
	}
	return result(math.Pow(a, b))
}

// Power raises a to b. It backs the power operator.
func Power(a, b float64) value.Value {
	return powerOf(a, b)
}

func roundWith(n, digits float64, fn func(float64) float64) value.Value {
	p := math.Pow(10, math.Trunc(digits))
	return result(fn(roundSignificant(n*p)) / p)
}

func trunc(ctx *Context, args []value.Value) value.Value {
	n, errV := numberArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	digits, errV := optionalNumber(ctx, args, 1, 0)
	if errV != nil {
		return errV
	}
	return roundWith(n, digits, math.Trunc)
}

func logFunc(ctx *Context, args []value.Value) value.Value {
	n, errV := numberArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	base, errV := optionalNumber(ctx, args, 1, 10)
	if errV != nil {
		return errV
	}
	if n <= 0 || base <= 0 || base == 1 {
		return value.ErrorNum
	}
	return result(math.Log(n) / math.Log(base))
}

func pi(*Context, []value.Value) value.Value {
	return value.Number(math.Pi)
}

func random(ctx *Context, _ []value.Value) value.Value {
	return value.Number(ctx.Rand.Float64())
}

// epoch is the day zero of the serial date numbering.
var epoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// SerialDate converts time to the spreadsheet serial date number.
func SerialDate(t time.Time) float64 {
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return local.Sub(epoch).Hours() / 24
}

func now(ctx *Context, _ []value.Value) value.Value {
	return value.Number(SerialDate(ctx.Clock.Now()))
}

func today(ctx *Context, _ []value.Value) value.Value {
	return value.Number(math.Floor(SerialDate(ctx.Clock.Now())))
}
