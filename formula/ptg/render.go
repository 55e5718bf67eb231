package ptg

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/formula/value"
)

// Sheets is the entry of the extern sheet table: a sheet or a range of sheets, optionally in another workbook.
type Sheets struct {
	Book  string
	First string
	Last  string
}

// Prefix returns the sheet qualifier with the trailing '!'.
func (s Sheets) Prefix() string {
	text := s.First
	if s.Last != "" && s.Last != s.First {
		text += ":" + s.Last
	}
	if s.Book != "" {
		text = "[" + s.Book + "]" + text
	}
	if needsQuotes(s.First) || (s.Last != "" && needsQuotes(s.Last)) || strings.ContainsAny(s.Book, " '!") {
		return "'" + strings.ReplaceAll(text, "'", "''") + "'!"
	}
	return text + "!"
}

// Renderer resolves workbook dependent parts of the formula text.
type Renderer interface {
	Functions
	ExternSheet(index int) (Sheets, bool)
	NameText(index int) string
	ExternalNameText(externSheet, index int) string
}

var plainSheetName = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_.]*$`)

func needsQuotes(name string) bool {
	if !plainSheetName.MatchString(name) {
		return true
	}
	upper := strings.ToUpper(name)
	if upper == "TRUE" || upper == "FALSE" {
		return true
	}
	return IsCellName(name)
}

// ToFormulaString rebuilds formula text from tokens.
//
//nolint:gocyclo
func ToFormulaString(tokens []Token, r Renderer) (string, error) {
	var stack []string
	pop := func(n int) ([]string, error) {
		if len(stack) < n {
			return nil, errors.Errorf("token stack underflow, %d operands needed", n)
		}
		items := append([]string{}, stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return items, nil
	}

	for _, t := range tokens {
		switch x := t.(type) {
		case Operator:
			ops, err := pop(x.Operands())
			if err != nil {
				return "", err
			}
			switch {
			case x == OpPercent:
				stack = append(stack, ops[0]+"%")
			case len(ops) == 1:
				stack = append(stack, x.Symbol()+ops[0])
			default:
				stack = append(stack, ops[0]+x.Symbol()+ops[1])
			}
		case Paren:
			ops, err := pop(1)
			if err != nil {
				return "", err
			}
			stack = append(stack, "("+ops[0]+")")
		case *Attr:
			if x.Kind != AttrSum {
				continue
			}
			ops, err := pop(1)
			if err != nil {
				return "", err
			}
			stack = append(stack, "SUM("+ops[0]+")")
		case *MemArea, *MemErr, *MemFunc:
		case *Func:
			text, err := renderCall(x.Index, x.NumArgs, pop, r)
			if err != nil {
				return "", err
			}
			stack = append(stack, text)
		case *FuncVar:
			text, err := renderCall(x.Index, x.NumArgs, pop, r)
			if err != nil {
				return "", err
			}
			stack = append(stack, text)
		default:
			text, err := renderOperand(t, r)
			if err != nil {
				return "", err
			}
			stack = append(stack, text)
		}
	}
	if len(stack) != 1 {
		return "", errors.Errorf("%d items left on the token stack", len(stack))
	}
	return stack[0], nil
}

func renderCall(index, numArgs int, pop func(int) ([]string, error), r Renderer) (string, error) {
	args, err := pop(numArgs)
	if err != nil {
		return "", err
	}
	var name string
	if index == ExternalFunctionIndex {
		if len(args) == 0 {
			return "", errors.New("external function call without name")
		}
		name, args = args[0], args[1:]
	} else {
		var ok bool
		name, ok = r.FunctionName(index)
		if !ok {
			return "", errors.Errorf("unknown function index %d", index)
		}
	}
	return name + "(" + strings.Join(args, ",") + ")", nil
}

func renderOperand(t Token, r Renderer) (string, error) {
	switch x := t.(type) {
	case MissingArg:
		return "", nil
	case *Str:
		return `"` + strings.ReplaceAll(x.Value, `"`, `""`) + `"`, nil
	case *Err:
		return x.Code.String(), nil
	case *Bool:
		if x.Value {
			return "TRUE", nil
		}
		return "FALSE", nil
	case *Int:
		return value.FormatNumber(float64(x.Value)), nil
	case *Number:
		return value.FormatNumber(x.Value), nil
	case *Array:
		return renderArray(x), nil
	case *Name:
		return r.NameText(x.Index), nil
	case *NameX:
		return r.ExternalNameText(x.ExternSheet, x.Index), nil
	case *Ref:
		return x.Cell.String(), nil
	case *Area:
		return x.Area.String(), nil
	case *RefErr, *AreaErr:
		return value.ErrorRef.String(), nil
	case *Ref3D:
		prefix, err := sheetPrefix(x.ExternSheet, r)
		if err != nil {
			return "", err
		}
		return prefix + x.Cell.String(), nil
	case *Area3D:
		prefix, err := sheetPrefix(x.ExternSheet, r)
		if err != nil {
			return "", err
		}
		return prefix + x.Area.String(), nil
	default:
		return "", errors.Errorf("token %T can't be rendered", t)
	}
}

func sheetPrefix(index int, r Renderer) (string, error) {
	sheets, ok := r.ExternSheet(index)
	if !ok {
		return "", errors.Errorf("extern sheet %d does not exist", index)
	}
	return sheets.Prefix(), nil
}

func renderArray(a *Array) string {
	var sb strings.Builder
	sb.WriteByte('{')
	for row := 0; row < a.Rows; row++ {
		if row > 0 {
			sb.WriteByte(';')
		}
		for col := 0; col < a.Cols; col++ {
			if col > 0 {
				sb.WriteByte(',')
			}
			switch v := a.Values[row*a.Cols+col].(type) {
			case value.String:
				sb.WriteString(`"` + strings.ReplaceAll(string(v), `"`, `""`) + `"`)
			default:
				sb.WriteString(value.Format(v))
			}
		}
	}
	sb.WriteByte('}')
	return sb.String()
}
