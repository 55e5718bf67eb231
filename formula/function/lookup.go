package function

import (
	"strings"
	"unicode"

	"github.com/outofforest/oledoc/formula/value"
)

// vector is a single row or column of a grid.
type vector struct {
	g       grid
	fixed   int
	columns bool
}

func (v vector) len() int {
	if v.columns {
		return v.g.width()
	}
	return v.g.height()
}

func (v vector) at(i int) value.Value {
	if v.columns {
		return v.g.at(v.fixed, i)
	}
	return v.g.at(i, v.fixed)
}

func rowVector(g grid, row int) vector {
	return vector{g: g, fixed: row, columns: true}
}

func columnVector(g grid, col int) vector {
	return vector{g: g, fixed: col}
}

// lookupIndex finds position of the lookup value in the vector. Match type 0 finds exact match, 1 finds
// the largest value not greater than lookup in ascending data, -1 finds the smallest value not less than
// lookup in descending data. It returns -1 if nothing matches.
func lookupIndex(lookup value.Value, vec vector, matchType int) int {
	if matchType == 0 {
		for i := 0; i < vec.len(); i++ {
			if matches(lookup, vec.at(i)) {
				return i
			}
		}
		return -1
	}

	found := -1
	for i := 0; i < vec.len(); i++ {
		item := vec.at(i)
		if !sameType(lookup, item) {
			continue
		}
		c := value.Compare(item, lookup)
		if c == 0 {
			found = i
			continue
		}
		if (matchType > 0 && c > 0) || (matchType < 0 && c < 0) {
			break
		}
		found = i
	}
	return found
}

func sameType(a, b value.Value) bool {
	switch a.(type) {
	case value.Number:
		_, ok := b.(value.Number)
		return ok
	case value.String:
		_, ok := b.(value.String)
		return ok
	case value.Bool:
		_, ok := b.(value.Bool)
		return ok
	default:
		return false
	}
}

// matches compares values for exact lookup. Text supports wildcards.
func matches(lookup, item value.Value) bool {
	if s, ok := lookup.(value.String); ok {
		t, ok := item.(value.String)
		if !ok {
			return false
		}
		if hasWildcards(string(s)) {
			return wildcardMatch(string(s), string(t))
		}
		return strings.EqualFold(string(s), string(t))
	}
	return sameType(lookup, item) && value.Compare(lookup, item) == 0
}

func hasWildcards(pattern string) bool {
	return strings.ContainsAny(pattern, "*?~")
}

// wildcardMatch matches text against pattern where * matches any sequence, ? matches single character
// and ~ escapes the next one. Matching ignores case.
func wildcardMatch(pattern, text string) bool {
	p := []rune(pattern)
	t := []rune(text)

	var match func(pi, ti int) bool
	match = func(pi, ti int) bool {
		for pi < len(p) {
			switch p[pi] {
			case '*':
				for pi < len(p) && p[pi] == '*' {
					pi++
				}
				if pi == len(p) {
					return true
				}
				for k := ti; k <= len(t); k++ {
					if match(pi, k) {
						return true
					}
				}
				return false
			case '?':
				if ti == len(t) {
					return false
				}
				pi++
				ti++
			default:
				if p[pi] == '~' && pi+1 < len(p) {
					pi++
				}
				if ti == len(t) || unicode.ToUpper(p[pi]) != unicode.ToUpper(t[ti]) {
					return false
				}
				pi++
				ti++
			}
		}
		return ti == len(t)
	}
	return match(0, 0)
}

func lookupValue(ctx *Context, arg value.Value) value.Value {
	v := scalar(ctx, arg)
	if _, ok := v.(value.Blank); ok {
		return value.Number(0)
	}
	return v
}

func match(ctx *Context, args []value.Value) value.Value {
	lookup := lookupValue(ctx, args[0])
	if e, ok := lookup.(value.Error); ok {
		return e
	}
	g, errV := toGrid(args[1])
	if errV != nil {
		return errV
	}
	matchType, errV := optionalNumber(ctx, args, 2, 1)
	if errV != nil {
		return errV
	}

	var vec vector
	switch {
	case g.width() == 1:
		vec = columnVector(g, 0)
	case g.height() == 1:
		vec = rowVector(g, 0)
	default:
		return value.ErrorNA
	}

	mt := 0
	switch {
	case matchType > 0:
		mt = 1
	case matchType < 0:
		mt = -1
	}
	i := lookupIndex(lookup, vec, mt)
	if i < 0 {
		return value.ErrorNA
	}
	return value.Number(i + 1)
}

func tableLookup(ctx *Context, args []value.Value, vertical bool) value.Value {
	lookup := lookupValue(ctx, args[0])
	if e, ok := lookup.(value.Error); ok {
		return e
	}
	g, errV := toGrid(args[1])
	if errV != nil {
		return errV
	}
	index, errV := numberArg(ctx, args[2])
	if errV != nil {
		return errV
	}
	approximate := true
	if len(args) > 3 {
		if _, ok := args[3].(value.Missing); !ok {
			if approximate, errV = boolArg(ctx, args[3]); errV != nil {
				return errV
			}
		}
	}

	i := truncate(index) - 1
	if i < 0 {
		return value.ErrorValue
	}

	mt := 0
	if approximate {
		mt = 1
	}
	if vertical {
		if i >= g.width() {
			return value.ErrorRef
		}
		row := lookupIndex(lookup, columnVector(g, 0), mt)
		if row < 0 {
			return value.ErrorNA
		}
		return g.at(row, i)
	}
	if i >= g.height() {
		return value.ErrorRef
	}
	col := lookupIndex(lookup, rowVector(g, 0), mt)
	if col < 0 {
		return value.ErrorNA
	}
	return g.at(i, col)
}

func vlookup(ctx *Context, args []value.Value) value.Value {
	return tableLookup(ctx, args, true)
}

func hlookup(ctx *Context, args []value.Value) value.Value {
	return tableLookup(ctx, args, false)
}

func indexFunc(ctx *Context, args []value.Value) value.Value {
	source := args[0]
	if list, ok := source.(value.RefList); ok {
		areaNum, errV := optionalNumber(ctx, args, 3, 1)
		if errV != nil {
			return errV
		}
		n := truncate(areaNum)
		if n < 1 || n > len(list) {
			return value.ErrorRef
		}
		source = list[n-1]
	}
	g, errV := toGrid(source)
	if errV != nil {
		return errV
	}

	row, errV := optionalNumber(ctx, args, 1, 0)
	if errV != nil {
		return errV
	}
	col, errV := optionalNumber(ctx, args, 2, 0)
	if errV != nil {
		return errV
	}
	r, c := truncate(row), truncate(col)
	if len(args) == 2 && g.height() == 1 {
		r, c = 1, r
	}
	if r < 0 || c < 0 {
		return value.ErrorValue
	}
	if r > g.height() || c > g.width() {
		return value.ErrorRef
	}

	area, isArea := g.(areaGrid)
	if !isArea {
		if r == 0 || c == 0 {
			if g.height() == 1 && r == 0 {
				r = 1
			}
			if g.width() == 1 && c == 0 {
				c = 1
			}
			if r == 0 || c == 0 {
				return value.ErrorValue
			}
		}
		return g.at(r-1, c-1)
	}

	rect := area.area.Rect()
	sub := rect
	if r > 0 {
		sub.FirstRow = rect.FirstRow + r - 1
		sub.LastRow = sub.FirstRow
	}
	if c > 0 {
		sub.FirstCol = rect.FirstCol + c - 1
		sub.LastCol = sub.FirstCol
	}
	return area.area.Sub(sub)
}

func choose(ctx *Context, args []value.Value) value.Value {
	index, errV := numberArg(ctx, args[0])
	if errV != nil {
		return errV
	}
	i := truncate(index)
	if i < 1 || i >= len(args) {
		return value.ErrorValue
	}
	return branch(args[i])
}

func position(ctx *Context, args []value.Value, ofRow bool) value.Value {
	if len(args) == 0 || isMissing(args[0]) {
		if ofRow {
			return value.Number(ctx.Row + 1)
		}
		return value.Number(ctx.Col + 1)
	}
	switch x := args[0].(type) {
	case *value.Area:
		if ofRow {
			return value.Number(x.Rect().FirstRow + 1)
		}
		return value.Number(x.Rect().FirstCol + 1)
	case value.Error:
		return x
	default:
		return value.ErrorValue
	}
}

func isMissing(v value.Value) bool {
	_, ok := v.(value.Missing)
	return ok
}

func rowFunc(ctx *Context, args []value.Value) value.Value {
	return position(ctx, args, true)
}

func columnFunc(ctx *Context, args []value.Value) value.Value {
	return position(ctx, args, false)
}

func dimension(args []value.Value, rows bool) value.Value {
	g, errV := toGrid(args[0])
	if errV != nil {
		return errV
	}
	if rows {
		return value.Number(g.height())
	}
	return value.Number(g.width())
}

func rowsFunc(_ *Context, args []value.Value) value.Value {
	return dimension(args, true)
}

func columnsFunc(_ *Context, args []value.Value) value.Value {
	return dimension(args, false)
}
