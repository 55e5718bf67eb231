package book

import (
	"sort"
	"strings"

	"github.com/bluele/gcache"
	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/formula/eval"
	"github.com/outofforest/oledoc/formula/function"
	"github.com/outofforest/oledoc/formula/parser"
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
	"github.com/outofforest/oledoc/pkg/mlog"
)

var (
	// ErrDuplicateSheet is returned if sheet of the same name exists.
	ErrDuplicateSheet = errors.New("duplicate sheet")

	// ErrSheetNotFound is returned if sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrDuplicateName is returned if name or table of the same name exists in the scope.
	ErrDuplicateName = errors.New("duplicate name")
)

// GlobalScope is the scope of names visible from all the sheets.
const GlobalScope = -1

// Config configures the workbook.
type Config struct {
	// Registry provides functions to the parser, builtins are used if nil.
	Registry *function.Registry

	// ParseCacheSize is the number of parsed formulas kept for reuse, 0 disables the cache.
	ParseCacheSize int

	// UnknownFunctions defines how calls of unknown functions are parsed.
	UnknownFunctions parser.UnknownFunctionPolicy
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		ParseCacheSize: 1024,
	}
}

type position struct {
	sheet int
	row   int
	col   int
}

func (p position) less(o position) bool {
	switch {
	case p.sheet != o.sheet:
		return p.sheet < o.sheet
	case p.row != o.row:
		return p.row < o.row
	default:
		return p.col < o.col
	}
}

type cell struct {
	value   value.Value
	formula string
	tokens  []ptg.Token
}

type sheet struct {
	name  string
	cells map[position]*cell
}

type definedName struct {
	name     string
	scope    int
	function bool
	formula  string
	tokens   []ptg.Token
}

type parseKey struct {
	formula     string
	sheet       int
	formulaType parser.FormulaType
}

// Workbook is the in-memory workbook. It provides everything the parser and the evaluator need.
type Workbook struct {
	config   Config
	registry *function.Registry
	sheets   []*sheet
	names    []*definedName
	externs  []ptg.Sheets
	tables   map[string]parser.Table
	parsed   gcache.Cache
}

// New creates empty workbook.
func New(config Config) *Workbook {
	wb := &Workbook{
		config:   config,
		registry: config.Registry,
		tables:   map[string]parser.Table{},
	}
	if wb.registry == nil {
		wb.registry = function.Builtins()
	}
	if config.ParseCacheSize > 0 {
		wb.parsed = gcache.New(config.ParseCacheSize).
			ARC().
			Build()
	}
	return wb
}

// Registry returns function registry used by the workbook.
func (wb *Workbook) Registry() *function.Registry {
	return wb.registry
}

// AddSheet adds new sheet and returns its index.
func (wb *Workbook) AddSheet(name string) (int, error) {
	if _, exists := wb.SheetIndex(name); exists {
		return 0, errors.Wrapf(ErrDuplicateSheet, "sheet %q", name)
	}
	wb.sheets = append(wb.sheets, &sheet{name: name, cells: map[position]*cell{}})
	wb.purgeParsed()
	return len(wb.sheets) - 1, nil
}

// SheetCount returns the number of sheets.
func (wb *Workbook) SheetCount() int {
	return len(wb.sheets)
}

// SheetName returns the name of the sheet.
func (wb *Workbook) SheetName(sheet int) string {
	if sheet < 0 || sheet >= len(wb.sheets) {
		return ""
	}
	return wb.sheets[sheet].name
}

// SheetIndex returns index of the sheet, case is ignored.
func (wb *Workbook) SheetIndex(name string) (int, bool) {
	for i, s := range wb.sheets {
		if strings.EqualFold(s.name, name) {
			return i, true
		}
	}
	return 0, false
}

// SetValue stores plain value in the cell. Nil or blank value clears the cell.
func (wb *Workbook) SetValue(sheet, row, col int, v value.Value) error {
	s, err := wb.sheet(sheet)
	if err != nil {
		return err
	}
	pos := position{sheet: sheet, row: row, col: col}
	switch v.(type) {
	case nil, value.Blank, value.Missing:
		delete(s.cells, pos)
	default:
		s.cells[pos] = &cell{value: v}
	}
	return nil
}

// SetFormula parses formula and stores it in the cell. Leading '=' is optional.
func (wb *Workbook) SetFormula(sheet, row, col int, formula string) error {
	s, err := wb.sheet(sheet)
	if err != nil {
		return err
	}
	formula = strings.TrimPrefix(formula, "=")
	tokens, err := wb.parse(formula, parser.Context{Sheet: sheet, Row: row, Col: col, Type: parser.CellFormula})
	if err != nil {
		return err
	}
	s.cells[position{sheet: sheet, row: row, col: col}] = &cell{formula: formula, tokens: tokens}
	return nil
}

// SetTokens stores already parsed formula in the cell.
func (wb *Workbook) SetTokens(sheet, row, col int, tokens []ptg.Token) error {
	s, err := wb.sheet(sheet)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return errors.New("formula must contain at least one token")
	}
	s.cells[position{sheet: sheet, row: row, col: col}] = &cell{tokens: tokens}
	return nil
}

// Clear removes the cell.
func (wb *Workbook) Clear(sheet, row, col int) error {
	s, err := wb.sheet(sheet)
	if err != nil {
		return err
	}
	delete(s.cells, position{sheet: sheet, row: row, col: col})
	return nil
}

// Cell returns content of the cell.
func (wb *Workbook) Cell(sheet, row, col int) eval.Cell {
	if sheet < 0 || sheet >= len(wb.sheets) {
		return eval.Cell{}
	}
	c := wb.sheets[sheet].cells[position{sheet: sheet, row: row, col: col}]
	switch {
	case c == nil:
		return eval.Cell{}
	case c.tokens != nil:
		return eval.Cell{Formula: c.tokens}
	default:
		return eval.Cell{Value: c.value}
	}
}

// Formula returns the text of the formula stored in the cell. Formulas stored as tokens are rendered.
func (wb *Workbook) Formula(sheet, row, col int) (string, bool, error) {
	if sheet < 0 || sheet >= len(wb.sheets) {
		return "", false, errors.Wrapf(ErrSheetNotFound, "sheet %d", sheet)
	}
	c := wb.sheets[sheet].cells[position{sheet: sheet, row: row, col: col}]
	if c == nil || c.tokens == nil {
		return "", false, nil
	}
	if c.formula != "" {
		return c.formula, true, nil
	}
	text, err := ptg.ToFormulaString(c.tokens, wb)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// DefineName defines the name referring to the formula. Scope is the sheet index or GlobalScope.
func (wb *Workbook) DefineName(name string, scope int, formula string) (int, error) {
	if scope != GlobalScope {
		if _, err := wb.sheet(scope); err != nil {
			return 0, err
		}
	}
	for _, n := range wb.names {
		if n.scope == scope && strings.EqualFold(n.name, name) {
			return 0, errors.Wrapf(ErrDuplicateName, "name %q", name)
		}
	}

	ctx := parser.Context{Sheet: max(scope, 0), Type: parser.NamedRangeFormula}
	formula = strings.TrimPrefix(formula, "=")
	tokens, err := wb.parse(formula, ctx)
	if err != nil {
		return 0, err
	}
	wb.names = append(wb.names, &definedName{name: name, scope: scope, formula: formula, tokens: tokens})
	wb.purgeParsed()
	return len(wb.names) - 1, nil
}

// RegisterFunctionName registers the name of the user defined function.
func (wb *Workbook) RegisterFunctionName(name string) int {
	for i, n := range wb.names {
		if n.function && strings.EqualFold(n.name, name) {
			return i
		}
	}
	wb.names = append(wb.names, &definedName{name: name, scope: GlobalScope, function: true})
	return len(wb.names) - 1
}

// AddTable adds the table used by structured references.
func (wb *Workbook) AddTable(name string, table parser.Table) error {
	key := strings.ToUpper(name)
	if _, exists := wb.tables[key]; exists {
		return errors.Wrapf(ErrDuplicateName, "table %q", name)
	}
	if _, exists := wb.SheetIndex(table.Sheet); !exists {
		return errors.Wrapf(ErrSheetNotFound, "sheet %q of table %q", table.Sheet, name)
	}
	wb.tables[key] = table
	wb.purgeParsed()
	return nil
}

// Name resolves the name visible from the sheet. Names defined for the sheet hide global ones.
func (wb *Workbook) Name(name string, sheet int) (parser.NameInfo, bool) {
	found := -1
	for i, n := range wb.names {
		if !strings.EqualFold(n.name, name) {
			continue
		}
		if n.scope == sheet {
			found = i
			break
		}
		if n.scope == GlobalScope && found == -1 {
			found = i
		}
	}
	if found == -1 {
		return parser.NameInfo{}, false
	}
	return parser.NameInfo{Index: found, Function: wb.names[found].function}, true
}

// Table returns the table by name.
func (wb *Workbook) Table(name string) (parser.Table, bool) {
	t, exists := wb.tables[strings.ToUpper(name)]
	return t, exists
}

// ExternSheetIndex returns index of the sheet range, registering it on first use.
func (wb *Workbook) ExternSheetIndex(book, first, last string) (int, bool) {
	if book == "" {
		f, ok := wb.SheetIndex(first)
		if !ok {
			return 0, false
		}
		l, ok := wb.SheetIndex(last)
		if !ok {
			return 0, false
		}
		first, last = wb.sheets[f].name, wb.sheets[l].name
	}

	sheets := ptg.Sheets{Book: book, First: first, Last: last}
	for i, s := range wb.externs {
		if s == sheets {
			return i, true
		}
	}
	wb.externs = append(wb.externs, sheets)
	return len(wb.externs) - 1, true
}

// ExternSheet returns the sheet range registered under the index.
func (wb *Workbook) ExternSheet(index int) (ptg.Sheets, bool) {
	if index < 0 || index >= len(wb.externs) {
		return ptg.Sheets{}, false
	}
	return wb.externs[index], true
}

// DefinedName returns the name referenced by name tokens.
func (wb *Workbook) DefinedName(index int) (eval.DefinedName, bool) {
	if index < 0 || index >= len(wb.names) {
		return eval.DefinedName{}, false
	}
	n := wb.names[index]
	return eval.DefinedName{Name: n.name, Function: n.function, Formula: n.tokens}, true
}

// NameText returns the text of the name.
func (wb *Workbook) NameText(index int) string {
	if index < 0 || index >= len(wb.names) {
		return value.ErrorName.String()
	}
	return wb.names[index].name
}

// ExternalNameText returns the text of the external name. Workbook does not link external names.
func (wb *Workbook) ExternalNameText(int, int) string {
	return value.ErrorRef.String()
}

// FunctionName returns the name of the builtin function.
func (wb *Workbook) FunctionName(index int) (string, bool) {
	return wb.registry.FunctionName(index)
}

// FixedArgs returns the number of arguments of fixed-arity function.
func (wb *Workbook) FixedArgs(index int) (int, bool) {
	return wb.registry.FixedArgs(index)
}

// formulaCells returns positions of all the formula cells ordered by sheet, row and column.
func (wb *Workbook) formulaCells() []position {
	var cells []position
	for _, s := range wb.sheets {
		for pos, c := range s.cells {
			if c.tokens != nil {
				cells = append(cells, pos)
			}
		}
	}
	sort.Slice(cells, func(i, j int) bool {
		return cells[i].less(cells[j])
	})
	return cells
}

func (wb *Workbook) sheet(index int) (*sheet, error) {
	if index < 0 || index >= len(wb.sheets) {
		return nil, errors.Wrapf(ErrSheetNotFound, "sheet %d", index)
	}
	return wb.sheets[index], nil
}

// parse parses the formula reusing the tokens parsed before. Structured references depend on the row,
// so formulas containing them are never cached.
func (wb *Workbook) parse(formula string, ctx parser.Context) ([]ptg.Token, error) {
	cacheable := wb.parsed != nil && !strings.ContainsRune(formula, '[')
	key := parseKey{formula: formula, sheet: ctx.Sheet, formulaType: ctx.Type}
	if cacheable {
		if v, err := wb.parsed.GetIFPresent(key); err == nil {
			return v.([]ptg.Token), nil
		}
	}

	tokens, err := parser.Parse(formula, wb, ctx, parser.Config{
		Registry:         wb.registry,
		UnknownFunctions: wb.config.UnknownFunctions,
	})
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := wb.parsed.Set(key, tokens); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	mlog.Printf2("formula/book/workbook", "Parsed %q in sheet %d", formula, ctx.Sheet)
	return tokens, nil
}

func (wb *Workbook) purgeParsed() {
	if wb.parsed != nil {
		wb.parsed.Purge()
	}
}
