package eval

import (
	"sort"

	"github.com/outofforest/oledoc/formula/value"
)

// cellEntry is the cached value of the cell together with formulas which used it.
type cellEntry struct {
	loc       Loc
	value     value.Value
	consumers map[*formulaEntry]struct{}
}

// updateValue stores new value and tells if it differs from the previous one.
func (e *cellEntry) updateValue(v value.Value) bool {
	changed := !value.Equal(e.value, v)
	e.value = v
	return changed
}

func (e *cellEntry) addConsumer(f *formulaEntry) {
	if e.consumers == nil {
		e.consumers = map[*formulaEntry]struct{}{}
	}
	e.consumers[f] = struct{}{}
}

func (e *cellEntry) removeConsumer(f *formulaEntry) {
	delete(e.consumers, f)
}

// sortedConsumers returns consumers ordered by location so invalidation is deterministic.
func (e *cellEntry) sortedConsumers() []*formulaEntry {
	consumers := make([]*formulaEntry, 0, len(e.consumers))
	for f := range e.consumers {
		consumers = append(consumers, f)
	}
	sort.Slice(consumers, func(i, j int) bool {
		return consumers[i].loc.less(consumers[j].loc)
	})
	return consumers
}

// recurseClearCachedFormulaResults clears values of all the formulas depending on this entry, directly
// or indirectly.
func (e *cellEntry) recurseClearCachedFormulaResults(listener Listener) {
	listener.OnClearCachedValue(e.loc, e.value)
	e.recurseClearDependents(listener, 1)
}

func (e *cellEntry) recurseClearDependents(listener Listener, depth int) {
	for _, f := range e.sortedConsumers() {
		listener.OnClearDependentCachedValue(f.loc, f.value, depth)
		f.clearFormulaEntry()
		f.recurseClearDependents(listener, depth+1)
	}
}

// formulaEntry is the cached result of the formula together with cells it was computed from.
type formulaEntry struct {
	cellEntry

	inputs []*cellEntry
	blanks *blankCellSet
}

// clearFormulaEntry drops the result and detaches the formula from its inputs.
func (f *formulaEntry) clearFormulaEntry() {
	for i := len(f.inputs) - 1; i >= 0; i-- {
		f.inputs[i].removeConsumer(f)
	}
	f.inputs = nil
	f.blanks = nil
	f.value = nil
}

// updateFormulaResult stores the result and the inputs used to compute it.
func (f *formulaEntry) updateFormulaResult(result value.Value, inputs []*cellEntry, blanks *blankCellSet) {
	f.updateValue(result)
	f.setInputs(inputs)
	f.blanks = blanks
}

// setInputs replaces the inputs, formula stops being the consumer of the inputs not used anymore.
func (f *formulaEntry) setInputs(inputs []*cellEntry) {
	used := make(map[*cellEntry]struct{}, len(inputs))
	for _, in := range inputs {
		used[in] = struct{}{}
		in.addConsumer(f)
	}
	for _, prev := range f.inputs {
		if _, exists := used[prev]; !exists {
			prev.removeConsumer(f)
		}
	}
	f.inputs = inputs
}

// notifyUpdatedBlankCell clears the formula if it used the blank cell which is not blank anymore.
func (f *formulaEntry) notifyUpdatedBlankCell(loc Loc, listener Listener) {
	if f.blanks == nil || !f.blanks.contains(loc) {
		return
	}
	f.clearFormulaEntry()
	f.recurseClearCachedFormulaResults(listener)
}

// cache keeps values of plain cells and results of formulas of all the collaborating workbooks.
// Blank plain cells are never stored, formulas using them keep track of them on their own.
type cache struct {
	listener Listener
	plain    map[Loc]*cellEntry
	formulas map[Loc]*formulaEntry
}

func newCache(listener Listener) *cache {
	if listener == nil {
		listener = BaseListener{}
	}
	return &cache{
		listener: listener,
		plain:    map[Loc]*cellEntry{},
		formulas: map[Loc]*formulaEntry{},
	}
}

// plainEntry returns entry of the non-blank plain cell, creating it on first read.
func (c *cache) plainEntry(loc Loc, v value.Value) *cellEntry {
	e := c.plain[loc]
	if e == nil {
		e = &cellEntry{loc: loc, value: v}
		c.plain[loc] = e
		c.listener.OnReadPlainValue(loc, v)
		return e
	}
	if !value.Equal(e.value, v) {
		// Workbook changed without notification, value read now is the valid one.
		e.updateValue(v)
		e.recurseClearCachedFormulaResults(c.listener)
	}
	c.listener.OnCacheHit(loc, v)
	return e
}

func (c *cache) formulaEntry(loc Loc) *formulaEntry {
	f := c.formulas[loc]
	if f == nil {
		f = &formulaEntry{cellEntry: cellEntry{loc: loc}}
		c.formulas[loc] = f
	}
	return f
}

// notifyUpdateCell updates the cache after the cell got new value or formula.
func (c *cache) notifyUpdateCell(loc Loc, cell Cell) {
	f := c.formulas[loc]
	p := c.plain[loc]

	if cell.IsFormula() {
		if f == nil {
			f = &formulaEntry{cellEntry: cellEntry{loc: loc}}
			if p == nil {
				c.listener.OnChangeFromBlankValue(loc, nil)
				c.updateAnyBlankReferencingFormulas(loc)
			}
			c.formulas[loc] = f
		} else {
			f.recurseClearCachedFormulaResults(c.listener)
			f.clearFormulaEntry()
		}
		if p != nil {
			// Plain cell became the formula.
			p.recurseClearCachedFormulaResults(c.listener)
			delete(c.plain, loc)
		}
		return
	}

	v := cell.plainValue()
	_, blank := v.(value.Blank)
	if p == nil {
		if !blank {
			p = &cellEntry{loc: loc, value: v}
			if f == nil {
				c.listener.OnChangeFromBlankValue(loc, v)
				c.updateAnyBlankReferencingFormulas(loc)
			}
			c.plain[loc] = p
		}
	} else {
		if p.updateValue(v) {
			p.recurseClearCachedFormulaResults(c.listener)
		}
		if blank {
			delete(c.plain, loc)
		}
	}
	if f != nil {
		// Formula cell became the plain one.
		delete(c.formulas, loc)
		f.setInputs(nil)
		f.recurseClearCachedFormulaResults(c.listener)
	}
}

// notifyDeleteCell updates the cache after the cell has been removed.
func (c *cache) notifyDeleteCell(loc Loc) {
	if f := c.formulas[loc]; f != nil {
		delete(c.formulas, loc)
		f.setInputs(nil)
		f.recurseClearCachedFormulaResults(c.listener)
	}
	if p := c.plain[loc]; p != nil {
		delete(c.plain, loc)
		p.recurseClearCachedFormulaResults(c.listener)
	}
}

func (c *cache) updateAnyBlankReferencingFormulas(loc Loc) {
	formulas := make([]*formulaEntry, 0, len(c.formulas))
	for _, f := range c.formulas {
		formulas = append(formulas, f)
	}
	sort.Slice(formulas, func(i, j int) bool {
		return formulas[i].loc.less(formulas[j].loc)
	})
	for _, f := range formulas {
		f.notifyUpdatedBlankCell(loc, c.listener)
	}
}

func (c *cache) clear() {
	c.listener.OnClearWholeCache()
	c.plain = map[Loc]*cellEntry{}
	c.formulas = map[Loc]*formulaEntry{}
}
