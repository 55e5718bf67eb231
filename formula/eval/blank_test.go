package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/formula/value"
)

func TestBlankSheetGroup(t *testing.T) {
	assertT := assert.New(t)

	g := newBlankSheetGroup()
	assertT.False(g.contains(0, 0))

	// Area B2:C4 scanned row by row.
	for row := 1; row <= 3; row++ {
		for col := 1; col <= 2; col++ {
			g.add(row, col)
		}
	}
	// Single cell after the area.
	g.add(10, 5)

	for row := 1; row <= 3; row++ {
		for col := 1; col <= 2; col++ {
			assertT.True(g.contains(row, col), "row %d col %d", row, col)
		}
	}
	assertT.True(g.contains(10, 5))
	assertT.Len(g.rectangles, 0)
	assertT.NotNil(g.current)
	assertT.Equal(blankRectangle{firstRow: 1, lastRow: 3, firstCol: 1, lastCol: 2}, *g.current)

	assertT.False(g.contains(0, 1))
	assertT.False(g.contains(4, 1))
	assertT.False(g.contains(2, 0))
	assertT.False(g.contains(2, 3))
	assertT.False(g.contains(10, 4))
	assertT.False(g.contains(10, 6))
}

func TestBlankSheetGroupRectangles(t *testing.T) {
	assertT := assert.New(t)

	g := newBlankSheetGroup()
	g.add(0, 0)
	g.add(0, 1)
	g.add(1, 0)
	g.add(1, 1)
	// Different width starts new rectangle.
	g.add(2, 0)
	g.add(5, 3)

	assertT.Equal([]*blankRectangle{{firstRow: 0, lastRow: 1, firstCol: 0, lastCol: 1}}, g.rectangles)
	assertT.Equal(blankRectangle{firstRow: 2, lastRow: 2, firstCol: 0, lastCol: 0}, *g.current)

	assertT.True(g.contains(1, 1))
	assertT.True(g.contains(2, 0))
	assertT.True(g.contains(5, 3))
	assertT.False(g.contains(2, 1))
	assertT.False(g.contains(3, 0))
}

func TestBlankCellSet(t *testing.T) {
	requireT := require.New(t)

	s := newBlankCellSet()
	requireT.True(s.isEmpty())

	s.add(Loc{Book: 0, Sheet: 0, Row: 1, Col: 1})
	s.add(Loc{Book: 1, Sheet: 0, Row: 1, Col: 1})
	requireT.False(s.isEmpty())

	requireT.True(s.contains(Loc{Book: 0, Sheet: 0, Row: 1, Col: 1}))
	requireT.True(s.contains(Loc{Book: 1, Sheet: 0, Row: 1, Col: 1}))
	requireT.False(s.contains(Loc{Book: 0, Sheet: 1, Row: 1, Col: 1}))
	requireT.False(s.contains(Loc{Book: 0, Sheet: 0, Row: 1, Col: 2}))
}

func TestTrackerCycle(t *testing.T) {
	requireT := require.New(t)

	c := newCache(nil)
	tr := newTracker(c)
	a := c.formulaEntry(Loc{Row: 0})
	b := c.formulaEntry(Loc{Row: 1})

	requireT.True(tr.startEvaluate(a))
	requireT.True(tr.startEvaluate(b))
	requireT.False(tr.startEvaluate(a))

	tr.acceptFormulaDependency(a)
	tr.updateCacheResult(value.ErrorCircularRef)
	tr.endEvaluate(b)
	requireT.Nil(b.value)

	tr.acceptFormulaDependency(b)
	tr.updateCacheResult(value.ErrorCircularRef)
	tr.endEvaluate(a)
	requireT.Equal(value.ErrorCircularRef, a.value)
	requireT.Contains(b.consumers, a)

	requireT.Panics(func() {
		tr.endEvaluate(a)
	})
}
