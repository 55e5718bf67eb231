package eval

import (
	"fmt"

	"github.com/outofforest/oledoc/formula/value"
)

// Loc is the location of the cell among collaborating workbooks.
type Loc struct {
	Book  int
	Sheet int
	Row   int
	Col   int
}

func (l Loc) sheetKey() value.SheetKey {
	return value.SheetKey{Book: l.Book, Sheet: l.Sheet}
}

func (l Loc) less(o Loc) bool {
	switch {
	case l.Book != o.Book:
		return l.Book < o.Book
	case l.Sheet != o.Sheet:
		return l.Sheet < o.Sheet
	case l.Row != o.Row:
		return l.Row < o.Row
	default:
		return l.Col < o.Col
	}
}

func (l Loc) String() string {
	return fmt.Sprintf("[%d]%d!R%dC%d", l.Book, l.Sheet, l.Row+1, l.Col+1)
}

// blankRectangle is the group of rows having blank cells in the same columns.
type blankRectangle struct {
	firstRow int
	lastRow  int
	firstCol int
	lastCol  int
}

func (r *blankRectangle) contains(row, col int) bool {
	return row >= r.firstRow && row <= r.lastRow && col >= r.firstCol && col <= r.lastCol
}

// acceptRow extends the rectangle by the next row if it spans the same columns.
func (r *blankRectangle) acceptRow(row, firstCol, lastCol int) bool {
	if firstCol != r.firstCol || lastCol != r.lastCol || row != r.lastRow+1 {
		return false
	}
	r.lastRow = row
	return true
}

// blankSheetGroup collects blank cells of one sheet. Cells are expected to come row by row, the way areas
// are scanned, so consecutive cells are merged into row runs and runs into rectangles.
type blankSheetGroup struct {
	rectangles []*blankRectangle
	current    *blankRectangle

	// The run of the row being collected, row is -1 if nothing has been collected yet.
	row      int
	firstCol int
	lastCol  int
}

func newBlankSheetGroup() *blankSheetGroup {
	return &blankSheetGroup{row: -1}
}

func (g *blankSheetGroup) add(row, col int) {
	if g.row == -1 {
		g.row, g.firstCol, g.lastCol = row, col, col
		return
	}
	if g.row == row && g.lastCol+1 == col {
		g.lastCol = col
		return
	}

	switch {
	case g.current == nil:
		g.current = &blankRectangle{firstRow: g.row, lastRow: g.row, firstCol: g.firstCol, lastCol: g.lastCol}
	case !g.current.acceptRow(g.row, g.firstCol, g.lastCol):
		g.rectangles = append(g.rectangles, g.current)
		g.current = &blankRectangle{firstRow: g.row, lastRow: g.row, firstCol: g.firstCol, lastCol: g.lastCol}
	}
	g.row, g.firstCol, g.lastCol = row, col, col
}

func (g *blankSheetGroup) contains(row, col int) bool {
	for i := len(g.rectangles) - 1; i >= 0; i-- {
		if g.rectangles[i].contains(row, col) {
			return true
		}
	}
	if g.current != nil && g.current.contains(row, col) {
		return true
	}
	return g.row == row && col >= g.firstCol && col <= g.lastCol
}

// blankCellSet is the set of blank cells used by the formula.
type blankCellSet struct {
	sheets map[value.SheetKey]*blankSheetGroup
}

func newBlankCellSet() *blankCellSet {
	return &blankCellSet{sheets: map[value.SheetKey]*blankSheetGroup{}}
}

func (s *blankCellSet) add(loc Loc) {
	key := loc.sheetKey()
	g := s.sheets[key]
	if g == nil {
		g = newBlankSheetGroup()
		s.sheets[key] = g
	}
	g.add(loc.Row, loc.Col)
}

func (s *blankCellSet) contains(loc Loc) bool {
	g := s.sheets[loc.sheetKey()]
	return g != nil && g.contains(loc.Row, loc.Col)
}

func (s *blankCellSet) isEmpty() bool {
	return len(s.sheets) == 0
}
