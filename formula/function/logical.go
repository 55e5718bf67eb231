package function

import (
	"github.com/outofforest/oledoc/formula/value"
)

func ifFunc(ctx *Context, args []value.Value) value.Value {
	cond, errV := boolArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	if cond {
		return branch(args[1])
	}
	if len(args) < 3 {
		return value.Bool(false)
	}
	return branch(args[2])
}

func branch(v value.Value) value.Value {
	if _, ok := v.(value.Missing); ok {
		return value.Number(0)
	}
	return v
}

// logical folds logical values found in arguments. Text in cells is skipped, direct text is an error.
func logical(args []value.Value, initial bool, fold func(acc, v bool) bool) value.Value {
	acc := initial
	found := false
	var errV value.Value
	for _, arg := range args {
		value.Walk(arg, func(v value.Value, direct bool) bool {
			switch x := v.(type) {
			case value.Bool:
				acc = fold(acc, bool(x))
				found = true
			case value.Number:
				acc = fold(acc, x != 0)
				found = true
			case value.Error:
				errV = x
				return false
			case value.String:
				if direct {
					b, e := value.ToBool(x)
					if e != nil {
						errV = e
						return false
					}
					acc = fold(acc, b)
					found = true
				}
			}
			return true
		})
		if errV != nil {
			return errV
		}
	}
	if !found {
		return value.ErrorValue
	}
	return value.Bool(acc)
}

func and(_ *Context, args []value.Value) value.Value {
	return logical(args, true, func(acc, v bool) bool { return acc && v })
}

func or(_ *Context, args []value.Value) value.Value {
	return logical(args, false, func(acc, v bool) bool { return acc || v })
}

func not(ctx *Context, args []value.Value) value.Value {
	b, errV := boolArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	return value.Bool(!b)
}

func trueFunc(*Context, []value.Value) value.Value {
	return value.Bool(true)
}

func falseFunc(*Context, []value.Value) value.Value {
	return value.Bool(false)
}

func na(*Context, []value.Value) value.Value {
	return value.ErrorNA
}

func is(check func(v value.Value) bool) Impl {
	return func(ctx *Context, args []value.Value) value.Value {
		return value.Bool(check(scalar(ctx, args[0])))
	}
}

var (
	isError = is(func(v value.Value) bool {
		_, ok := v.(value.Error)
		return ok
	})
	isErr = is(func(v value.Value) bool {
		e, ok := v.(value.Error)
		return ok && e != value.ErrorNA
	})
	isNA = is(func(v value.Value) bool {
		return v == value.ErrorNA
	})
	isBlank = is(func(v value.Value) bool {
		_, ok := v.(value.Blank)
		return ok
	})
	isNumber = is(func(v value.Value) bool {
		_, ok := v.(value.Number)
		return ok
	})
	isText = is(func(v value.Value) bool {
		_, ok := v.(value.String)
		return ok
	})
	isNonText = is(func(v value.Value) bool {
		_, ok := v.(value.String)
		return !ok
	})
	isLogical = is(func(v value.Value) bool {
		_, ok := v.(value.Bool)
		return ok
	})
)

func isRef(_ *Context, args []value.Value) value.Value {
	switch args[0].(type) {
	case *value.Area, value.RefList:
		return value.Bool(true)
	default:
		return value.Bool(false)
	}
}
