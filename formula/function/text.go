package function

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"

	"github.com/outofforest/oledoc/formula/value"
)

var (
	upperCaser = cases.Upper(language.Und)
	lowerCaser = cases.Lower(language.Und)
	titleCaser = cases.Title(language.Und)
)

func textUnary(fn func(s string) value.Value) Impl {
	return func(ctx *Context, args []value.Value) value.Value {
		s, errV := textArg(ctx, args[0])
		if errV != nil {
			return errV
		}
		return fn(s)
	}
}

var (
	lenFunc = textUnary(func(s string) value.Value {
		return value.Number(utf8.RuneCountInString(s))
	})
	upper = textUnary(func(s string) value.Value {
		return value.String(upperCaser.String(s))
	})
	lower = textUnary(func(s string) value.Value {
		return value.String(lowerCaser.String(s))
	})
	proper = textUnary(func(s string) value.Value {
		return value.String(titleCaser.String(s))
	})
	trim = textUnary(func(s string) value.Value {
		return value.String(strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' }), " "))
	})
	valueFunc = textUnary(func(s string) value.Value {
		n, ok := value.ParseNumber(s)
		if !ok {
			return value.ErrorValue
		}
		return value.Number(n)
	})
	codeFunc = textUnary(func(s string) value.Value {
		if s == "" {
			return value.ErrorValue
		}
		r, _ := utf8.DecodeRuneInString(s)
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			return value.Number(b)
		}
		return value.Number(r)
	})
)

func char(ctx *Context, args []value.Value) value.Value {
	n, errV := numberArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	if n < 1 || n > 255 {
		return value.ErrorValue
	}
	return value.String(string(charmap.Windows1252.DecodeByte(byte(n))))
}

func left(ctx *Context, args []value.Value) value.Value {
	s, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	n, errV := optionalNumber(ctx, args, 1, 1)
	if errV != nil {
		return errV
	}
	if n < 0 {
		return value.ErrorValue
	}
	runes := []rune(s)
	return value.String(runes[:min(len(runes), truncate(n))])
}

func right(ctx *Context, args []value.Value) value.Value {
	s, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	n, errV := optionalNumber(ctx, args, 1, 1)
	if errV != nil {
		return errV
	}
	if n < 0 {
		return value.ErrorValue
	}
	runes := []rune(s)
	return value.String(runes[len(runes)-min(len(runes), truncate(n)):])
}

func mid(ctx *Context, args []value.Value) value.Value {
	s, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	start, errV := numberArg(ctx, args[1])
	if errV != nil {
		return errV
	}
	n, errV := numberArg(ctx, args[2])
	if errV != nil {
		return errV
	}
	if start < 1 || n < 0 {
		return value.ErrorValue
	}
	runes := []rune(s)
	from := truncate(start) - 1
	if from >= len(runes) {
		return value.String("")
	}
	to := min(len(runes), from+truncate(n))
	return value.String(runes[from:to])
}

func concatenate(ctx *Context, args []value.Value) value.Value {
	var sb strings.Builder
	for _, arg := range args {
		s, errV := textArg(ctx, arg)
		if errV != nil {
			return errV
		}
		sb.WriteString(s)
	}
	return value.String(sb.String())
}

func exact(ctx *Context, args []value.Value) value.Value {
	s1, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	s2, errV := textArg(ctx, args[1])
	if errV != nil {
		return errV
	}
	return value.Bool(s1 == s2)
}

func rept(ctx *Context, args []value.Value) value.Value {
	s, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	n, errV := numberArg(ctx, args[1])
	if errV != nil {
		return errV
	}
	if n < 0 || float64(len(s))*n > 32767 {
		return value.ErrorValue
	}
	return value.String(strings.Repeat(s, truncate(n)))
}

func find(ctx *Context, args []value.Value) value.Value {
	needle, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	haystack, errV := textArg(ctx, args[1])
	if errV != nil {
		return errV
	}
	start, errV := optionalNumber(ctx, args, 2, 1)
	if errV != nil {
		return errV
	}
	runes := []rune(haystack)
	from := truncate(start) - 1
	if from < 0 || from > len(runes) {
		return value.ErrorValue
	}
	pos := strings.Index(string(runes[from:]), needle)
	if pos < 0 {
		return value.ErrorValue
	}
	return value.Number(from + utf8.RuneCountInString(string(runes[from:])[:pos]) + 1)
}

func substitute(ctx *Context, args []value.Value) value.Value {
	s, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	old, errV := textArg(ctx, args[1])
	if errV != nil {
		return errV
	}
	repl, errV := textArg(ctx, args[2])
	if errV != nil {
		return errV
	}
	if old == "" {
		return value.String(s)
	}
	if len(args) < 4 {
		return value.String(strings.ReplaceAll(s, old, repl))
	}
	instance, errV := numberArg(ctx, args[3])
	if errV != nil {
		return errV
	}
	if instance < 1 {
		return value.ErrorValue
	}
	pos := 0
	for i := 1; ; i++ {
		idx := strings.Index(s[pos:], old)
		if idx < 0 {
			return value.String(s)
		}
		if i == truncate(instance) {
			return value.String(s[:pos+idx] + repl + s[pos+idx+len(old):])
		}
		pos += idx + len(old)
	}
}

func replace(ctx *Context, args []value.Value) value.Value {
	s, errV := textArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	start, errV := numberArg(ctx, args[1])
	if errV != nil {
		return errV
	}
	n, errV := numberArg(ctx, args[2])
	if errV != nil {
		return errV
	}
	repl, errV := textArg(ctx, args[3])
	if errV != nil {
		return errV
	}
	if start < 1 || n < 0 {
		return value.ErrorValue
	}
	runes := []rune(s)
	from := min(len(runes), truncate(start)-1)
	to := min(len(runes), from+truncate(n))
	return value.String(string(runes[:from]) + repl + string(runes[to:]))
}

func tFunc(ctx *Context, args []value.Value) value.Value {
	switch x := scalar(ctx, args[0]).(type) {
	case value.String:
		return x
	case value.Error:
		return x
	default:
		return value.String("")
	}
}

func nFunc(ctx *Context, args []value.Value) value.Value {
	switch x := scalar(ctx, args[0]).(type) {
	case value.Number:
		return x
	case value.Bool:
		if x {
			return value.Number(1)
		}
		return value.Number(0)
	case value.Error:
		return x
	default:
		return value.Number(0)
	}
}
