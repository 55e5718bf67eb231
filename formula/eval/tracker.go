package eval

import (
	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/formula/value"
)

// frame is the formula being evaluated together with the inputs it has used so far.
type frame struct {
	entry  *formulaEntry
	inputs []*cellEntry
	seen   map[*cellEntry]struct{}
	blanks *blankCellSet
}

func (f *frame) addInput(e *cellEntry) {
	if _, exists := f.seen[e]; exists {
		return
	}
	f.seen[e] = struct{}{}
	f.inputs = append(f.inputs, e)
}

func (f *frame) addBlank(loc Loc) {
	if f.blanks == nil {
		f.blanks = newBlankCellSet()
	}
	f.blanks.add(loc)
}

// tracker follows nested evaluation of formulas. It detects cycles and collects inputs of each formula.
type tracker struct {
	cache      *cache
	frames     []*frame
	evaluating map[*formulaEntry]struct{}
}

func newTracker(c *cache) *tracker {
	return &tracker{
		cache:      c,
		evaluating: map[*formulaEntry]struct{}{},
	}
}

// startEvaluate pushes the frame of the formula. False is returned if the formula is already being
// evaluated, meaning there is a cycle.
func (t *tracker) startEvaluate(f *formulaEntry) bool {
	if _, exists := t.evaluating[f]; exists {
		return false
	}
	t.evaluating[f] = struct{}{}
	t.frames = append(t.frames, &frame{entry: f, seen: map[*cellEntry]struct{}{}})
	return true
}

// updateCacheResult stores the result of the formula on the top of the stack. Circular reference error
// is cached only for the outermost formula because inner ones might not be a part of the cycle.
func (t *tracker) updateCacheResult(result value.Value) {
	if len(t.frames) == 0 {
		panic(errors.New("result updated without started evaluation"))
	}
	if result == value.ErrorCircularRef && len(t.frames) > 1 {
		return
	}
	top := t.frames[len(t.frames)-1]
	top.entry.updateFormulaResult(result, top.inputs, top.blanks)
}

// endEvaluate pops the frame of the formula.
func (t *tracker) endEvaluate(f *formulaEntry) {
	n := len(t.frames) - 1
	if n < 0 || t.frames[n].entry != f {
		panic(errors.New("evaluation ended for the formula not being on the top of the stack"))
	}
	t.frames = t.frames[:n]
	delete(t.evaluating, f)
}

func (t *tracker) top() *frame {
	if len(t.frames) == 0 {
		return nil
	}
	return t.frames[len(t.frames)-1]
}

// acceptFormulaDependency records that the formula being evaluated uses another formula.
func (t *tracker) acceptFormulaDependency(f *formulaEntry) {
	if top := t.top(); top != nil {
		top.addInput(&f.cellEntry)
	}
}

// acceptPlainValueDependency records that the formula being evaluated uses the plain cell.
func (t *tracker) acceptPlainValueDependency(loc Loc, v value.Value) {
	top := t.top()
	if top == nil {
		return
	}
	if _, blank := v.(value.Blank); blank {
		top.addBlank(loc)
		return
	}
	top.addInput(t.cache.plainEntry(loc, v))
}
