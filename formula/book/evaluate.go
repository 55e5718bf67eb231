package book

import (
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/efp"

	"github.com/outofforest/oledoc/formula/eval"
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
	"github.com/outofforest/oledoc/pkg/mlog"
)

// Result is the value of the formula cell.
type Result struct {
	Sheet int
	Row   int
	Col   int
	Value value.Value
}

// EvaluateAll evaluates every formula cell. Cells are evaluated level by level, formulas depending only
// on plain cells first, so evaluation of long chains does not recurse deeply. Results are returned
// in the order of evaluation.
func (wb *Workbook) EvaluateAll(ev *eval.Evaluator) []Result {
	levels := wb.dependencyLevels()
	var results []Result
	for i, level := range levels {
		mlog.Printf2("formula/book/evaluate", "Evaluating level %d of %d cells", i, len(level))
		for _, pos := range level {
			results = append(results, Result{
				Sheet: pos.sheet,
				Row:   pos.row,
				Col:   pos.col,
				Value: ev.Evaluate(pos.sheet, pos.row, pos.col),
			})
		}
	}
	return results
}

type reference struct {
	sheet int
	rect  value.Rect
}

// dependencyLevels groups formula cells so cells of each level depend only on formulas of previous levels.
// Cells taking part in cycles form the last level.
func (wb *Workbook) dependencyLevels() [][]position {
	cells := wb.formulaCells()
	index := newFormulaIndex(cells)

	pending := make(map[position]int, len(cells))
	dependents := map[position][]position{}
	for _, pos := range cells {
		inputs := map[position]struct{}{}
		for _, ref := range wb.references(pos) {
			index.each(ref, func(input position) {
				if input != pos {
					inputs[input] = struct{}{}
				}
			})
		}
		pending[pos] = len(inputs)
		for input := range inputs {
			dependents[input] = append(dependents[input], pos)
		}
	}

	var level []position
	for _, pos := range cells {
		if pending[pos] == 0 {
			level = append(level, pos)
		}
	}

	var levels [][]position
	done := 0
	for len(level) > 0 {
		levels = append(levels, level)
		done += len(level)

		var next []position
		for _, pos := range level {
			for _, dependent := range dependents[pos] {
				pending[dependent]--
				if pending[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Slice(next, func(i, j int) bool {
			return next[i].less(next[j])
		})
		level = next
	}

	if done < len(cells) {
		var cyclic []position
		for _, pos := range cells {
			if pending[pos] > 0 {
				cyclic = append(cyclic, pos)
			}
		}
		levels = append(levels, cyclic)
	}
	return levels
}

// references extracts ranges used by the formula of the cell. References which can't be resolved,
// like names and external workbooks, are skipped.
func (wb *Workbook) references(pos position) []reference {
	formula, _, err := wb.Formula(pos.sheet, pos.row, pos.col)
	if err != nil {
		return nil
	}

	ps := efp.ExcelParser()
	var refs []reference
	for _, token := range ps.Parse("=" + formula) {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		if ref, ok := wb.resolveRange(token.TValue, pos.sheet); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (wb *Workbook) resolveRange(text string, sheet int) (reference, bool) {
	if i := strings.LastIndexByte(text, '!'); i >= 0 {
		sheetName := text[:i]
		text = text[i+1:]
		if len(sheetName) >= 2 && sheetName[0] == '\'' && sheetName[len(sheetName)-1] == '\'' {
			sheetName = strings.ReplaceAll(sheetName[1:len(sheetName)-1], "''", "'")
		}
		if strings.ContainsAny(sheetName, "[:") {
			return reference{}, false
		}
		var ok bool
		if sheet, ok = wb.SheetIndex(sheetName); !ok {
			return reference{}, false
		}
	}

	first, last, isArea := strings.Cut(text, ":")
	if !isArea {
		c, ok := ptg.ParseCell(first)
		if !ok {
			return reference{}, false
		}
		return reference{sheet: sheet, rect: value.CellRect(c.Row, c.Col)}, true
	}

	if c1, ok := ptg.ParseCell(first); ok {
		c2, ok := ptg.ParseCell(last)
		if !ok {
			return reference{}, false
		}
		return reference{sheet: sheet, rect: ptg.AreaRef{First: c1, Last: c2}.Rect()}, true
	}

	first = strings.TrimPrefix(first, "$")
	last = strings.TrimPrefix(last, "$")
	if col1, ok := ptg.ColumnIndex(first); ok {
		col2, ok := ptg.ColumnIndex(last)
		if !ok {
			return reference{}, false
		}
		return reference{sheet: sheet, rect: value.Rect{
			FirstRow: 0,
			FirstCol: min(col1, col2),
			LastRow:  ptg.MaxRows - 1,
			LastCol:  max(col1, col2),
		}}, true
	}
	row1, err := strconv.Atoi(first)
	if err != nil {
		return reference{}, false
	}
	row2, err := strconv.Atoi(last)
	if err != nil {
		return reference{}, false
	}
	return reference{sheet: sheet, rect: value.Rect{
		FirstRow: min(row1, row2) - 1,
		FirstCol: 0,
		LastRow:  max(row1, row2) - 1,
		LastCol:  ptg.MaxCols - 1,
	}}, true
}

type columnKey struct {
	sheet int
	col   int
}

// formulaIndex finds formula cells inside rectangles. Rows of each column are kept sorted.
type formulaIndex struct {
	columns map[columnKey][]int
}

func newFormulaIndex(cells []position) formulaIndex {
	index := formulaIndex{columns: map[columnKey][]int{}}
	for _, pos := range cells {
		key := columnKey{sheet: pos.sheet, col: pos.col}
		index.columns[key] = append(index.columns[key], pos.row)
	}
	for _, rows := range index.columns {
		sort.Ints(rows)
	}
	return index
}

func (fi formulaIndex) each(ref reference, fn func(pos position)) {
	for col := ref.rect.FirstCol; col <= ref.rect.LastCol; col++ {
		rows := fi.columns[columnKey{sheet: ref.sheet, col: col}]
		for i := sort.SearchInts(rows, ref.rect.FirstRow); i < len(rows) && rows[i] <= ref.rect.LastRow; i++ {
			fn(position{sheet: ref.sheet, row: rows[i], col: col})
		}
	}
}
