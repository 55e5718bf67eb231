package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/outofforest/oledoc/formula/ptg"
)

type partKind int

const (
	cellPart partKind = iota
	rowPart
	columnPart
)

// rangePart is one side of the area reference: a cell, a row or a column.
type rangePart struct {
	rep   string
	kind  partKind
	cell  ptg.CellRef
	index int
	abs   bool
}

func (rp *rangePart) isRowOrColumn() bool {
	return rp.kind != cellPart
}

func (rp *rangePart) compatible(other *rangePart) bool {
	return rp.kind == other.kind
}

// rangeExpression parses references joined by range operators.
func (p *parser) rangeExpression() *node {
	result := p.rangeable()
	hasRange := false
	for p.look == ':' {
		pos := p.pos
		p.next()
		next := p.rangeable()
		p.checkRangeOperand("left", pos, result)
		p.checkRangeOperand("right", pos, next)
		result = branch(ptg.OpRange, result, next)
		hasRange = true
	}
	if hasRange {
		return withMem(result)
	}
	return result
}

func (p *parser) checkRangeOperand(side string, pos int, n *node) {
	if !isValidRangeOperand(n, p.registry) {
		p.seek(pos)
		p.fail(fmt.Sprintf("the %s operand of the range operator is not a proper reference", side))
	}
}

// rangeable parses things which may be operands of the range operator together with simple factors.
//
//nolint:gocyclo
func (p *parser) rangeable() *node {
	p.skipWhite()
	start := p.pos
	sheets, hasSheet := p.sheetPrefix()
	if hasSheet {
		p.skipWhite()
		start = p.pos
	} else {
		p.seek(start)
	}

	part1 := p.simpleRangePart()
	if part1 == nil {
		if hasSheet {
			p.expected("cell reference after sheet name")
		}
		return p.nonRange(start)
	}
	whiteAfterPart1 := isWhite(p.look)
	p.skipWhite()

	switch p.look {
	case ':':
		colon := p.pos
		p.next()
		p.skipWhite()
		part2 := p.simpleRangePart()
		if part2 != nil && !part1.compatible(part2) {
			part2 = nil
		}
		if part2 == nil {
			// Let the caller apply explicit range operator, like in A1:INDEX(B1:B3, 2).
			p.seek(colon)
			if !part1.isCell() {
				p.fail(fmt.Sprintf("%q is not a proper reference", part1.rep))
			}
		}
		return p.reference(sheets, hasSheet, part1, part2)
	case '.':
		dots := 0
		for p.look == '.' {
			dots++
			p.next()
		}
		whiteBeforePart2 := isWhite(p.look)
		p.skipWhite()
		part2 := p.simpleRangePart()
		if part2 == nil || !part1.compatible(part2) {
			if hasSheet {
				p.expected("complete area reference after sheet name")
			}
			return p.nonRange(start)
		}
		if whiteAfterPart1 || whiteBeforePart2 {
			if part1.isRowOrColumn() {
				p.fail("dotted range of rows or columns must not contain whitespace")
			}
			return p.reference(sheets, hasSheet, part1, part2)
		}
		if dots == 1 && part1.kind == rowPart {
			// Looks like a number.
			return p.nonRange(start)
		}
		if part1.isRowOrColumn() && dots != 2 {
			if hasSheet {
				p.fail("dotted range of rows or columns must have exactly 2 dots")
			}
			return p.nonRange(start)
		}
		return p.reference(sheets, hasSheet, part1, part2)
	}

	if part1.isCell() {
		return p.reference(sheets, hasSheet, part1, nil)
	}
	if hasSheet {
		p.expected("second part of the area reference after sheet name")
	}
	return p.nonRange(start)
}

func (rp *rangePart) isCell() bool {
	return rp.kind == cellPart
}

// simpleRangePart parses A1, $A1, A$1, $A$1, A or 1. Nothing is consumed if the text is not the range part.
//
//nolint:gocyclo
func (p *parser) simpleRangePart() *rangePart {
	end := p.pos
	hasDigits, hasLetters := false, false
scan:
	for end < len(p.text) {
		c := p.text[end]
		switch {
		case isDigit(c):
			hasDigits = true
		case unicode.IsLetter(c):
			hasLetters = true
		case c == '$':
		default:
			break scan
		}
		end++
	}
	if end == p.pos {
		return nil
	}
	rep := string(p.text[p.pos:end])

	part := &rangePart{rep: rep}
	switch {
	case hasLetters && hasDigits:
		cell, ok := ptg.ParseCell(rep)
		if !ok || p.followedByParen(end) {
			return nil
		}
		part.kind = cellPart
		part.cell = cell
	case hasLetters:
		letters, abs := strings.CutPrefix(rep, "$")
		col, ok := ptg.ColumnIndex(letters)
		if !ok || col >= ptg.MaxCols {
			return nil
		}
		part.kind = columnPart
		part.index = col
		part.abs = abs
	case hasDigits:
		digits, abs := strings.CutPrefix(rep, "$")
		row, err := strconv.Atoi(digits)
		if err != nil || row < 1 || row > ptg.MaxRows {
			return nil
		}
		part.kind = rowPart
		part.index = row - 1
		part.abs = abs
	default:
		return nil
	}

	p.seek(end)
	return part
}

// followedByParen tells if text at pos is the opening parenthesis, possibly after whitespace. Text like LOG10
// is a cell address unless it is a function call.
func (p *parser) followedByParen(pos int) bool {
	for pos < len(p.text) && isWhite(p.text[pos]) {
		pos++
	}
	return pos < len(p.text) && p.text[pos] == '('
}

func (p *parser) reference(sheets ptg.Sheets, hasSheet bool, part1, part2 *rangePart) *node {
	externSheet := 0
	if hasSheet {
		externSheet = p.externSheet(sheets)
	}

	if part2 == nil {
		if hasSheet {
			return leaf(&ptg.Ref3D{ExternSheet: externSheet, Cell: part1.cell})
		}
		return leaf(&ptg.Ref{Cell: part1.cell})
	}

	area := p.areaRef(part1, part2)
	if hasSheet {
		return leaf(&ptg.Area3D{ExternSheet: externSheet, Area: area})
	}
	return leaf(&ptg.Area{Area: area})
}

func (p *parser) externSheet(sheets ptg.Sheets) int {
	if p.book == nil {
		p.unknown(sheets.First)
	}
	index, exists := p.book.ExternSheetIndex(sheets.Book, sheets.First, sheets.Last)
	if !exists {
		name := sheets.First
		if sheets.Last != sheets.First {
			name += ":" + sheets.Last
		}
		if sheets.Book != "" {
			name = "[" + sheets.Book + "]" + name
		}
		p.unknown(name)
	}
	return index
}

func (p *parser) areaRef(part1, part2 *rangePart) ptg.AreaRef {
	switch part1.kind {
	case rowPart:
		return ptg.AreaRef{
			First: ptg.CellRef{Row: part1.index, Col: 0, RowAbs: part1.abs, ColAbs: true},
			Last:  ptg.CellRef{Row: part2.index, Col: ptg.MaxCols - 1, RowAbs: part2.abs, ColAbs: true},
		}
	case columnPart:
		return ptg.AreaRef{
			First: ptg.CellRef{Row: 0, Col: part1.index, RowAbs: true, ColAbs: part1.abs},
			Last:  ptg.CellRef{Row: ptg.MaxRows - 1, Col: part2.index, RowAbs: true, ColAbs: part2.abs},
		}
	default:
		return ptg.AreaRef{First: part1.cell, Last: part2.cell}
	}
}

// sheetPrefix parses sheet qualifier up to and including '!'. Caller resets position if nothing is found.
func (p *parser) sheetPrefix() (ptg.Sheets, bool) {
	var sheets ptg.Sheets
	if p.look == '[' {
		sheets.Book = p.bookName()
	}

	if p.look == '\'' {
		name := p.quotedSheetName()
		if sheets.Book == "" && strings.HasPrefix(name, "[") {
			if end := strings.IndexByte(name, ']'); end > 0 {
				sheets.Book = name[1:end]
				name = name[end+1:]
			}
		}
		p.skipWhite()
		if p.look != '!' {
			return ptg.Sheets{}, false
		}
		p.next()
		first, last, found := strings.Cut(name, ":")
		if !found {
			last = first
		}
		sheets.First, sheets.Last = first, last
		return sheets, true
	}

	if !startsUnquotedSheetName(p.look) {
		return ptg.Sheets{}, false
	}
	first := p.unquotedSheetName()
	last := first
	if p.look == ':' {
		p.next()
		if !startsUnquotedSheetName(p.look) {
			return ptg.Sheets{}, false
		}
		last = p.unquotedSheetName()
	}
	p.skipWhite()
	if p.look != '!' {
		return ptg.Sheets{}, false
	}
	p.next()
	sheets.First, sheets.Last = first, last
	return sheets, true
}

func (p *parser) bookName() string {
	p.match('[')
	var sb strings.Builder
	for p.look != ']' {
		if p.look == 0 {
			p.expected("']'")
		}
		sb.WriteRune(p.look)
		p.next()
	}
	p.next()
	return sb.String()
}

// quotedSheetName parses name in single quotes, doubled quote stands for the quote character.
func (p *parser) quotedSheetName() string {
	p.match('\'')
	var sb strings.Builder
	for {
		if p.look == 0 {
			p.expected("'")
		}
		if p.look == '\'' {
			p.next()
			if p.look != '\'' {
				return sb.String()
			}
		}
		sb.WriteRune(p.look)
		p.next()
	}
}

func startsUnquotedSheetName(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isUnquotedSheetNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '.' || c == '_'
}

func (p *parser) unquotedSheetName() string {
	var sb strings.Builder
	for isUnquotedSheetNameChar(p.look) {
		sb.WriteRune(p.look)
		p.next()
	}
	return sb.String()
}

func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '.' || c == '_' || c == '?' || c == '\\'
}

// nonRange parses numbers, strings, defined names, function calls and structured references.
func (p *parser) nonRange(start int) *node {
	p.seek(start)

	if isDigit(p.look) || p.look == '.' {
		return leaf(p.number())
	}
	if p.look == '"' {
		return leaf(&ptg.Str{Value: p.stringLiteral()})
	}
	if !unicode.IsLetter(p.look) && p.look != '_' && p.look != '\\' {
		p.expected("number, string or defined name")
	}

	var sb strings.Builder
	for isNameChar(p.look) {
		sb.WriteRune(p.look)
		p.next()
	}
	name := sb.String()

	if p.look == '[' {
		return p.structuredReference(name)
	}
	p.skipWhite()
	if p.look == '(' {
		return p.function(name)
	}
	switch strings.ToUpper(name) {
	case "TRUE":
		return leaf(&ptg.Bool{Value: true})
	case "FALSE":
		return leaf(&ptg.Bool{Value: false})
	}

	if p.book == nil {
		p.unknown(name)
	}
	info, exists := p.book.Name(name, p.ctx.Sheet)
	if !exists {
		p.unknown(name)
	}
	if info.Function {
		p.fail(fmt.Sprintf("name %q refers to a function, not to a range", name))
	}
	return leaf(&ptg.Name{Index: info.Index})
}
