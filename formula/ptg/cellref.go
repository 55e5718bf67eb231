package ptg

import (
	"strconv"
	"strings"

	"github.com/outofforest/oledoc/formula/value"
)

// Limits of the BIFF8 grid.
const (
	MaxRows = 65536
	MaxCols = 256
)

// CellRef is the A1 style cell address. Abs flags correspond to '$' markers.
type CellRef struct {
	Row    int
	Col    int
	RowAbs bool
	ColAbs bool
}

func (c CellRef) String() string {
	var sb strings.Builder
	if c.ColAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(ColumnName(c.Col))
	if c.RowAbs {
		sb.WriteByte('$')
	}
	sb.WriteString(strconv.Itoa(c.Row + 1))
	return sb.String()
}

// AreaRef is the rectangle between two cells.
type AreaRef struct {
	First CellRef
	Last  CellRef
}

// IsWholeColumn tells if area covers all the rows.
func (a AreaRef) IsWholeColumn() bool {
	return a.First.Row == 0 && a.Last.Row == MaxRows-1
}

// IsWholeRow tells if area covers all the columns.
func (a AreaRef) IsWholeRow() bool {
	return a.First.Col == 0 && a.Last.Col == MaxCols-1
}

// Rect returns rectangle covered by the area.
func (a AreaRef) Rect() value.Rect {
	return value.Rect{
		FirstRow: min(a.First.Row, a.Last.Row),
		FirstCol: min(a.First.Col, a.Last.Col),
		LastRow:  max(a.First.Row, a.Last.Row),
		LastCol:  max(a.First.Col, a.Last.Col),
	}
}

func (a AreaRef) String() string {
	switch {
	case a.IsWholeColumn() && !a.IsWholeRow():
		return colPart(a.First) + ":" + colPart(a.Last)
	case a.IsWholeRow() && !a.IsWholeColumn():
		return rowPart(a.First) + ":" + rowPart(a.Last)
	default:
		return a.First.String() + ":" + a.Last.String()
	}
}

// ColumnName converts zero-based column index to letters.
func ColumnName(col int) string {
	var buf [8]byte
	i := len(buf)
	for col++; col > 0; col = (col - 1) / 26 {
		i--
		buf[i] = byte('A' + (col-1)%26)
	}
	return string(buf[i:])
}

// ColumnIndex converts letters to zero-based column index. Case is ignored.
func ColumnIndex(letters string) (int, bool) {
	if letters == "" || len(letters) > 7 {
		return 0, false
	}
	col := 0
	for i := 0; i < len(letters); i++ {
		c := letters[i] | 0x20
		if c < 'a' || c > 'z' {
			return 0, false
		}
		col = col*26 + int(c-'a'+1)
	}
	return col - 1, true
}

// CellName returns A1 name of the cell.
func CellName(row, col int) string {
	return ColumnName(col) + strconv.Itoa(row+1)
}

// ParseCell parses A1 style address with optional '$' markers. Bounds of the grid are checked.
func ParseCell(text string) (CellRef, bool) {
	var c CellRef
	i := 0
	if i < len(text) && text[i] == '$' {
		c.ColAbs = true
		i++
	}
	start := i
	for i < len(text) && isLetter(text[i]) {
		i++
	}
	col, ok := ColumnIndex(text[start:i])
	if !ok || col >= MaxCols {
		return CellRef{}, false
	}
	if i < len(text) && text[i] == '$' {
		c.RowAbs = true
		i++
	}
	start = i
	for i < len(text) && isDigit(text[i]) {
		i++
	}
	if start == i || i != len(text) {
		return CellRef{}, false
	}
	row, err := strconv.Atoi(text[start:])
	if err != nil || row < 1 || row > MaxRows {
		return CellRef{}, false
	}
	c.Row = row - 1
	c.Col = col
	return c, true
}

// IsCellName tells if text is the valid cell address.
func IsCellName(text string) bool {
	_, ok := ParseCell(text)
	return ok
}

func colPart(c CellRef) string {
	if c.ColAbs {
		return "$" + ColumnName(c.Col)
	}
	return ColumnName(c.Col)
}

func rowPart(c CellRef) string {
	if c.RowAbs {
		return "$" + strconv.Itoa(c.Row+1)
	}
	return strconv.Itoa(c.Row + 1)
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
