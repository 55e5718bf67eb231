package value

import "strconv"

// SheetKey identifies sheet among collaborating workbooks.
type SheetKey struct {
	Book  int
	Sheet int
}

// Rect is the rectangle of cells, bounds are inclusive and zero-based.
type Rect struct {
	FirstRow int
	FirstCol int
	LastRow  int
	LastCol  int
}

// CellRect returns rectangle covering one cell.
func CellRect(row, col int) Rect {
	return Rect{FirstRow: row, FirstCol: col, LastRow: row, LastCol: col}
}

// Height returns number of rows.
func (r Rect) Height() int {
	return r.LastRow - r.FirstRow + 1
}

// Width returns number of columns.
func (r Rect) Width() int {
	return r.LastCol - r.FirstCol + 1
}

// IsCell tells if rectangle covers exactly one cell.
func (r Rect) IsCell() bool {
	return r.FirstRow == r.LastRow && r.FirstCol == r.LastCol
}

// Contains tells if cell belongs to the rectangle.
func (r Rect) Contains(row, col int) bool {
	return row >= r.FirstRow && row <= r.LastRow && col >= r.FirstCol && col <= r.LastCol
}

// Intersect returns common part of two rectangles.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	res := Rect{
		FirstRow: max(r.FirstRow, o.FirstRow),
		FirstCol: max(r.FirstCol, o.FirstCol),
		LastRow:  min(r.LastRow, o.LastRow),
		LastCol:  min(r.LastCol, o.LastCol),
	}
	if res.FirstRow > res.LastRow || res.FirstCol > res.LastCol {
		return Rect{}, false
	}
	return res, true
}

// Bound returns the smallest rectangle containing both.
func (r Rect) Bound(o Rect) Rect {
	return Rect{
		FirstRow: min(r.FirstRow, o.FirstRow),
		FirstCol: min(r.FirstCol, o.FirstCol),
		LastRow:  max(r.LastRow, o.LastRow),
		LastCol:  max(r.LastCol, o.LastCol),
	}
}

func (r Rect) String() string {
	return "R" + strconv.Itoa(r.FirstRow+1) + "C" + strconv.Itoa(r.FirstCol+1) +
		":R" + strconv.Itoa(r.LastRow+1) + "C" + strconv.Itoa(r.LastCol+1)
}

// Source provides values of the cells referenced by areas.
type Source interface {
	CellValue(sheet SheetKey, row, col int) Value
}

// Area is the reference to a rectangle of cells on one sheet. Single cell reference is an area of one cell.
// Cells are evaluated lazily, when requested.
type Area struct {
	source Source
	sheet  SheetKey
	rect   Rect
}

// NewArea creates area.
func NewArea(source Source, sheet SheetKey, rect Rect) *Area {
	return &Area{source: source, sheet: sheet, rect: rect}
}

func (*Area) isValue() {}

// Sheet returns the sheet the area belongs to.
func (a *Area) Sheet() SheetKey {
	return a.sheet
}

// Rect returns the absolute coordinates of the area.
func (a *Area) Rect() Rect {
	return a.rect
}

// IsCell tells if area references single cell.
func (a *Area) IsCell() bool {
	return a.rect.IsCell()
}

// Get returns value of the cell, coordinates are relative to the top left corner.
func (a *Area) Get(row, col int) Value {
	v := a.source.CellValue(a.sheet, a.rect.FirstRow+row, a.rect.FirstCol+col)
	if v == nil {
		return Blank{}
	}
	return v
}

// Sub returns area on the same sheet covering absolute rectangle.
func (a *Area) Sub(r Rect) *Area {
	return &Area{source: a.source, sheet: a.sheet, rect: r}
}
