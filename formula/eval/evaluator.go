package eval

import (
	"github.com/outofforest/oledoc/formula/function"
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
	"github.com/outofforest/oledoc/pkg/mlog"
)

const sumIndex = 4

// Cell is the content of the cell. Formula is set for formula cells, otherwise Value holds the plain
// value, nil meaning blank cell.
type Cell struct {
	Value   value.Value
	Formula []ptg.Token
}

// IsFormula tells if cell contains formula.
func (c Cell) IsFormula() bool {
	return c.Formula != nil
}

func (c Cell) plainValue() value.Value {
	switch c.Value.(type) {
	case nil, value.Missing:
		return value.Blank{}
	default:
		return c.Value
	}
}

// DefinedName is the name defined in the workbook.
type DefinedName struct {
	Name string

	// Function is set if name refers to user defined function.
	Function bool

	// Formula is the definition of the name.
	Formula []ptg.Token
}

// Workbook provides cells and metadata of the evaluated workbook.
type Workbook interface {
	// SheetIndex returns index of the sheet by name, case is ignored.
	SheetIndex(name string) (int, bool)

	// Cell returns content of the cell.
	Cell(sheet, row, col int) Cell

	// ExternSheet resolves sheet range referenced by 3-D tokens.
	ExternSheet(index int) (ptg.Sheets, bool)

	// DefinedName returns defined name referenced by name tokens.
	DefinedName(index int) (DefinedName, bool)

	// ExternalNameText returns name referenced by external name tokens.
	ExternalNameText(externSheet, index int) string
}

// Config configures the evaluator.
type Config struct {
	// Registry provides functions, builtins are used if nil.
	Registry *function.Registry

	// Listener observes the cache. It must be comparable, evaluators collaborating with each other
	// are required to use the same listener.
	Listener Listener

	// Clock is used by NOW and TODAY, wall clock is used if nil.
	Clock function.Clock

	// Rand is used by RAND, standard generator is used if nil.
	Rand function.RandomGenerator
}

// Evaluator evaluates formulas of the workbook caching results.
type Evaluator struct {
	book     Workbook
	registry *function.Registry
	listener Listener
	clock    function.Clock
	rand     function.RandomGenerator

	cache     *cache
	bookIndex int
	env       *Environment
}

// New creates evaluator of the workbook.
func New(book Workbook, config Config) *Evaluator {
	e := &Evaluator{
		book:     book,
		registry: config.Registry,
		listener: config.Listener,
		clock:    config.Clock,
		rand:     config.Rand,
	}
	if e.registry == nil {
		e.registry = function.Builtins()
	}
	if e.clock == nil {
		e.clock = function.WallClock{}
	}
	if e.rand == nil {
		e.rand = function.DefaultRandomGenerator{}
	}
	e.cache = newCache(e.listener)
	return e
}

// Workbook returns the evaluated workbook.
func (e *Evaluator) Workbook() Workbook {
	return e.book
}

// Evaluate returns the value of the cell. Formula result comes from the cache if it is there.
// Formula never evaluates to blank, blank result becomes 0. Plain blank cell gives value.Blank.
func (e *Evaluator) Evaluate(sheet, row, col int) value.Value {
	return e.evaluateAny(sheet, row, col, newTracker(e.cache))
}

// EvaluateFormula evaluates tokens as if they were the formula of the cell. Result is not cached.
func (e *Evaluator) EvaluateFormula(sheet, row, col int, tokens []ptg.Token) value.Value {
	ctx := e.newContext(sheet, row, col, newTracker(e.cache))
	return dereferenceResult(ctx.evaluateTokens(tokens), row, col)
}

// NotifyUpdateCell must be called after the cell gets new value or formula.
func (e *Evaluator) NotifyUpdateCell(sheet, row, col int) {
	loc := Loc{Book: e.bookIndex, Sheet: sheet, Row: row, Col: col}
	e.cache.notifyUpdateCell(loc, e.book.Cell(sheet, row, col))
}

// NotifyDeleteCell must be called after the cell is removed.
func (e *Evaluator) NotifyDeleteCell(sheet, row, col int) {
	e.cache.notifyDeleteCell(Loc{Book: e.bookIndex, Sheet: sheet, Row: row, Col: col})
}

// ClearAllCachedResultValues drops the whole cache. It is shared by collaborating evaluators.
func (e *Evaluator) ClearAllCachedResultValues() {
	e.cache.clear()
}

func (e *Evaluator) evaluateAny(sheet, row, col int, t *tracker) value.Value {
	loc := Loc{Book: e.bookIndex, Sheet: sheet, Row: row, Col: col}
	cell := e.book.Cell(sheet, row, col)
	if !cell.IsFormula() {
		v := cell.plainValue()
		t.acceptPlainValueDependency(loc, v)
		return v
	}

	f := e.cache.formulaEntry(loc)
	t.acceptFormulaDependency(f)
	if f.value != nil {
		e.cache.listener.OnCacheHit(loc, f.value)
		return f.value
	}
	if !t.startEvaluate(f) {
		return value.ErrorCircularRef
	}
	defer t.endEvaluate(f)

	e.cache.listener.OnStartEvaluate(loc, cell.Formula)
	ctx := e.newContext(sheet, row, col, t)
	result := dereferenceResult(ctx.evaluateTokens(cell.Formula), row, col)
	e.cache.listener.OnEndEvaluate(loc, result)
	t.updateCacheResult(result)

	mlog.Printf2("formula/eval/evaluator", "Evaluated %s to %s", loc, value.Format(result))
	return result
}

// evaluatorOf returns evaluator of the collaborating workbook.
func (e *Evaluator) evaluatorOf(book int) *Evaluator {
	if book == e.bookIndex {
		return e
	}
	if e.env == nil || e.env.unhooked || book < 0 || book >= len(e.env.evaluators) {
		return nil
	}
	return e.env.evaluators[book]
}

// otherEvaluator returns evaluator of the collaborating workbook by name.
func (e *Evaluator) otherEvaluator(name string) *Evaluator {
	if e.env == nil {
		return nil
	}
	other, err := e.env.Evaluator(name)
	if err != nil {
		return nil
	}
	return other
}

func (e *Evaluator) attach(env *Environment, c *cache, bookIndex int) {
	e.env = env
	e.cache = c
	e.bookIndex = bookIndex
}

func (e *Evaluator) detach() {
	e.env = nil
	e.cache = newCache(e.listener)
	e.bookIndex = 0
}

// dereferenceResult reduces the result to the single value stored in the cell.
func dereferenceResult(v value.Value, row, col int) value.Value {
	v = value.SingleValue(v, row, col)
	switch v.(type) {
	case value.Blank, value.Missing:
		return value.Number(0)
	default:
		return v
	}
}
