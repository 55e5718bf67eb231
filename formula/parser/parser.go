package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/formula/function"
	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
	"github.com/outofforest/oledoc/pkg/mlog"
)

const sumIndex = 4

// FormulaType defines where formula is used. It determines the operand class of the result.
type FormulaType int

// Formula types.
const (
	CellFormula FormulaType = iota
	ArrayFormula
	NamedRangeFormula
)

// UnknownFunctionPolicy defines what happens when formula calls function not known to the registry nor the workbook.
type UnknownFunctionPolicy int

// Unknown function policies.
const (
	// FailOnUnknown reports UnknownNameError.
	FailOnUnknown UnknownFunctionPolicy = iota

	// RegisterAsExternal registers the name in the workbook as the user defined function.
	RegisterAsExternal
)

// Config configures the parser.
type Config struct {
	// Registry provides builtin functions. Builtins are used if nil.
	Registry         *function.Registry
	UnknownFunctions UnknownFunctionPolicy
}

// Context describes the cell formula belongs to.
type Context struct {
	Sheet int
	Row   int
	Col   int
	Type  FormulaType
}

// NameInfo describes defined name.
type NameInfo struct {
	// Index is the zero-based index of the name stored in name tokens.
	Index int

	// Function is set if name refers to user defined function.
	Function bool
}

// Table describes table used by structured references. Rows and columns include header and totals rows.
type Table struct {
	Sheet      string
	FirstRow   int
	FirstCol   int
	LastRow    int
	LastCol    int
	Columns    []string
	HeaderRows int
	TotalsRows int
}

// Workbook resolves workbook dependent parts of the formula.
type Workbook interface {
	// ExternSheetIndex returns index of the sheet range used by 3-D references. Book is empty for
	// sheets of this workbook.
	ExternSheetIndex(book, first, last string) (int, bool)

	// SheetName returns the name of the sheet.
	SheetName(sheet int) string

	// Name resolves defined name visible from the sheet.
	Name(name string, sheet int) (NameInfo, bool)

	// Table returns table by name.
	Table(name string) (Table, bool)
}

// NameRegistrar is implemented by workbooks able to register names of external functions.
type NameRegistrar interface {
	RegisterFunctionName(name string) int
}

// SyntaxError is returned when formula text is malformed.
type SyntaxError struct {
	Formula  string
	Pos      int
	Expected string
	Msg      string
}

func (e *SyntaxError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("formula %q: %s (position %d)", e.Formula, e.Msg, e.Pos)
	}
	return fmt.Sprintf("formula %q: %s expected at position %d", e.Formula, e.Expected, e.Pos)
}

// UnknownNameError is returned when formula references name, function, sheet or table which does not exist.
type UnknownNameError struct {
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("name %q is unknown", e.Name)
}

var defaultRegistry = function.Builtins()

// bailout carries error from the depths of recursive descent.
type bailout struct {
	err error
}

// Parse parses formula text to the list of tokens in reverse polish notation.
func Parse(formula string, book Workbook, ctx Context, config Config) (tokens []ptg.Token, err error) {
	registry := config.Registry
	if registry == nil {
		registry = defaultRegistry
	}
	p := &parser{
		formula:  formula,
		text:     []rune(formula),
		book:     book,
		ctx:      ctx,
		config:   config,
		registry: registry,
	}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			tokens = nil
			err = b.err
		}
	}()

	p.seek(0)
	root := p.unionExpression()
	if p.pos < len(p.text) {
		p.fail(fmt.Sprintf("unused input %q", string(p.text[p.pos:])))
	}

	if err := (classTransformer{functions: registry}).transformFormula(root, ctx.Type); err != nil {
		return nil, err
	}
	tokens = root.appendTokens(nil)
	mlog.Printf2("formula/parser/parser", "Parse(%q) = %d tokens", formula, len(tokens))
	return tokens, nil
}

type parser struct {
	formula  string
	text     []rune
	pos      int
	look     rune
	book     Workbook
	ctx      Context
	config   Config
	registry *function.Registry
}

// next moves to the next character.
func (p *parser) next() {
	p.seek(p.pos + 1)
}

// seek moves to the character at pos. Look is 0 at the end of the text.
func (p *parser) seek(pos int) {
	if pos >= len(p.text) {
		p.pos = len(p.text)
		p.look = 0
		return
	}
	p.pos = pos
	p.look = p.text[pos]
}

func (p *parser) fail(msg string) {
	panic(bailout{err: errors.WithStack(&SyntaxError{Formula: p.formula, Pos: p.pos, Msg: msg})})
}

func (p *parser) expected(what string) {
	panic(bailout{err: errors.WithStack(&SyntaxError{Formula: p.formula, Pos: p.pos, Expected: what})})
}

func (p *parser) unknown(name string) {
	panic(bailout{err: errors.WithStack(&UnknownNameError{Name: name})})
}

func isWhite(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func (p *parser) skipWhite() {
	for isWhite(p.look) {
		p.next()
	}
}

// precededByWhite tells if whitespace was skipped before the current character.
func (p *parser) precededByWhite() bool {
	return p.pos > 0 && isWhite(p.text[p.pos-1])
}

func (p *parser) match(c rune) {
	if p.look != c {
		p.expected("'" + string(c) + "'")
	}
	p.next()
}

func (p *parser) digits() string {
	var sb strings.Builder
	for isDigit(p.look) {
		sb.WriteRune(p.look)
		p.next()
	}
	return sb.String()
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c rune) bool {
	return unicode.IsLetter(c) || c == '$' || c == '_'
}

func (p *parser) unionExpression() *node {
	result := p.comparisonExpression()
	hasUnions := false
	for {
		p.skipWhite()
		if p.look != ',' {
			break
		}
		p.next()
		hasUnions = true
		other := p.comparisonExpression()
		result = branch(ptg.OpUnion, result, other)
	}
	if hasUnions {
		return withMem(result)
	}
	return result
}

func (p *parser) comparisonExpression() *node {
	result := p.concatExpression()
	for {
		p.skipWhite()
		var op ptg.Operator
		switch p.look {
		case '=':
			p.next()
			op = ptg.OpEqual
		case '>':
			p.next()
			op = ptg.OpGreater
			if p.look == '=' {
				p.next()
				op = ptg.OpGreaterEq
			}
		case '<':
			p.next()
			op = ptg.OpLess
			switch p.look {
			case '=':
				p.next()
				op = ptg.OpLessEqual
			case '>':
				p.next()
				op = ptg.OpNotEqual
			}
		default:
			return result
		}
		other := p.concatExpression()
		result = branch(op, result, other)
	}
}

func (p *parser) concatExpression() *node {
	result := p.additiveExpression()
	for {
		p.skipWhite()
		if p.look != '&' {
			return result
		}
		p.next()
		other := p.additiveExpression()
		result = branch(ptg.OpConcat, result, other)
	}
}

func (p *parser) additiveExpression() *node {
	result := p.term()
	for {
		p.skipWhite()
		var op ptg.Operator
		switch p.look {
		case '+':
			op = ptg.OpAdd
		case '-':
			op = ptg.OpSubtract
		default:
			return result
		}
		p.next()
		other := p.term()
		result = branch(op, result, other)
	}
}

func (p *parser) term() *node {
	result := p.powerFactor()
	for {
		p.skipWhite()
		var op ptg.Operator
		switch p.look {
		case '*':
			op = ptg.OpMultiply
		case '/':
			op = ptg.OpDivide
		default:
			return result
		}
		p.next()
		other := p.powerFactor()
		result = branch(op, result, other)
	}
}

func (p *parser) powerFactor() *node {
	result := p.percentFactor()
	for {
		p.skipWhite()
		if p.look != '^' {
			return result
		}
		p.next()
		other := p.percentFactor()
		result = branch(ptg.OpPower, result, other)
	}
}

func (p *parser) percentFactor() *node {
	result := p.intersectionExpression()
	for {
		p.skipWhite()
		if p.look != '%' {
			return result
		}
		p.next()
		result = branch(ptg.OpPercent, result)
	}
}

// intersectionExpression parses references separated by whitespace.
func (p *parser) intersectionExpression() *node {
	result := p.simpleFactor()
	hasIntersections := false
	for {
		p.skipWhite()
		if !p.precededByWhite() || !startsReference(p.look) || !isValidRangeOperand(result, p.registry) {
			break
		}
		pos := p.pos
		other := p.simpleFactor()
		if !isValidRangeOperand(other, p.registry) {
			p.seek(pos)
			p.fail("the right operand of the intersection is not a proper reference")
		}
		result = branch(ptg.OpIntersect, result, other)
		hasIntersections = true
	}
	if hasIntersections {
		return withMem(result)
	}
	return result
}

func startsReference(c rune) bool {
	return isAlpha(c) || c == '\'' || c == '[' || c == '('
}

func (p *parser) simpleFactor() *node {
	p.skipWhite()
	switch p.look {
	case '#':
		return leaf(&ptg.Err{Code: p.errorLiteral()})
	case '-':
		p.next()
		return p.unary(false)
	case '+':
		p.next()
		return p.unary(true)
	case '(':
		p.next()
		inside := p.unionExpression()
		p.skipWhite()
		p.match(')')
		return branch(ptg.Paren{}, inside)
	case '"':
		return leaf(&ptg.Str{Value: p.stringLiteral()})
	case '{':
		p.next()
		array := p.array()
		p.match('}')
		return array
	}
	if isAlpha(p.look) || isDigit(p.look) || p.look == '\'' || p.look == '[' {
		return p.rangeExpression()
	}
	if p.look == '.' {
		return leaf(p.number())
	}
	p.expected("cell reference or constant literal")
	return nil
}

func (p *parser) unary(isPlus bool) *node {
	numberFollows := isDigit(p.look) || p.look == '.'
	factor := p.powerFactor()

	if numberFollows {
		switch t := factor.token.(type) {
		case *ptg.Number:
			if isPlus {
				return factor
			}
			return leaf(&ptg.Number{Value: -t.Value})
		case *ptg.Int:
			if isPlus {
				return factor
			}
			return leaf(&ptg.Number{Value: -float64(t.Value)})
		}
	}
	if isPlus {
		return branch(ptg.OpUnaryPlus, factor)
	}
	return branch(ptg.OpUnaryMin, factor)
}

func (p *parser) array() *node {
	var rows [][]value.Value
	for {
		rows = append(rows, p.arrayRow())
		if p.look == '}' {
			break
		}
		if p.look != ';' {
			p.expected("'}' or ';'")
		}
		p.next()
	}

	cols := len(rows[0])
	values := make([]value.Value, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			p.fail(fmt.Sprintf("array row %d has length %d but row 0 has length %d", i, len(row), cols))
		}
		values = append(values, row...)
	}
	return leaf(&ptg.Array{
		Operand: ptg.Operand{Class: ptg.ClassArray},
		Rows:    len(rows),
		Cols:    cols,
		Values:  values,
	})
}

func (p *parser) arrayRow() []value.Value {
	var row []value.Value
	for {
		row = append(row, p.arrayItem())
		p.skipWhite()
		switch p.look {
		case '}', ';':
			return row
		case ',':
			p.next()
		default:
			p.expected("'}' or ','")
		}
	}
}

func (p *parser) arrayItem() value.Value {
	p.skipWhite()
	switch p.look {
	case '"':
		return value.String(p.stringLiteral())
	case '#':
		return p.errorLiteral()
	case 'T', 't', 'F', 'f':
		switch strings.ToUpper(p.identifier()) {
		case "TRUE":
			return value.Bool(true)
		case "FALSE":
			return value.Bool(false)
		}
		p.expected("'TRUE' or 'FALSE'")
	}

	negative := false
	switch p.look {
	case '-':
		negative = true
		p.next()
	case '+':
		p.next()
	}
	var n float64
	switch t := p.number().(type) {
	case *ptg.Int:
		n = float64(t.Value)
	case *ptg.Number:
		n = t.Value
	}
	if negative {
		n = -n
	}
	return value.Number(n)
}

// number parses numeric literal choosing integer token when the value fits it.
func (p *parser) number() ptg.Token {
	start := p.pos
	intPart := p.digits()
	var fracPart, exponent string
	hasFraction := false
	if p.look == '.' {
		hasFraction = true
		p.next()
		fracPart = p.digits()
	}
	if p.look == 'E' || p.look == 'e' {
		p.next()
		sign := ""
		switch p.look {
		case '+':
			p.next()
		case '-':
			p.next()
			sign = "-"
		}
		digits := p.digits()
		if digits == "" {
			p.expected("integer")
		}
		exponent = sign + digits
	}
	if intPart == "" && fracPart == "" {
		p.seek(start)
		p.expected("integer")
	}

	if !hasFraction && exponent == "" {
		if n, err := strconv.ParseUint(intPart, 10, 16); err == nil {
			return &ptg.Int{Value: uint16(n)}
		}
	}
	text := intPart
	if hasFraction {
		text += "." + fracPart
	}
	if exponent != "" {
		text += "e" + exponent
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || !value.IsFinite(n) {
		p.seek(start)
		p.fail(fmt.Sprintf("number %q is out of range", text))
	}
	return &ptg.Number{Value: n}
}

func (p *parser) errorLiteral() value.Error {
	start := p.pos
	p.match('#')
	var sb strings.Builder
	sb.WriteRune('#')
	for p.look != 0 && (unicode.IsLetter(p.look) || p.look == '/' || p.look == '0') {
		sb.WriteRune(p.look)
		p.next()
	}
	if p.look == '!' || p.look == '?' {
		sb.WriteRune(p.look)
		p.next()
	}
	code, ok := value.ParseError(sb.String())
	if !ok {
		p.seek(start)
		p.expected("#VALUE!, #REF!, #DIV/0!, #NAME?, #NUM!, #NULL! or #N/A")
	}
	return code
}

func (p *parser) identifier() string {
	var sb strings.Builder
	for unicode.IsLetter(p.look) || unicode.IsDigit(p.look) || p.look == '.' {
		sb.WriteRune(p.look)
		p.next()
	}
	return sb.String()
}

func (p *parser) stringLiteral() string {
	p.match('"')
	var sb strings.Builder
	for {
		if p.look == 0 {
			p.expected("'\"'")
		}
		if p.look == '"' {
			p.next()
			if p.look != '"' {
				return sb.String()
			}
		}
		sb.WriteRune(p.look)
		p.next()
	}
}

func isArgumentDelimiter(c rune) bool {
	return c == ',' || c == ')'
}

func (p *parser) arguments() []*node {
	var args []*node
	p.skipWhite()
	if p.look == ')' {
		return nil
	}

	missedPrevious := true
	for {
		p.skipWhite()
		if isArgumentDelimiter(p.look) {
			if missedPrevious {
				args = append(args, leaf(ptg.MissingArg{}))
			}
			if p.look == ')' {
				return args
			}
			p.next()
			missedPrevious = true
			continue
		}
		args = append(args, p.comparisonExpression())
		missedPrevious = false
		p.skipWhite()
		if !isArgumentDelimiter(p.look) {
			p.expected("',' or ')'")
		}
	}
}

// function parses function call. Calls to functions unknown to the registry are encoded as calls to
// the external function receiving the name as the first argument.
func (p *parser) function(name string) *node {
	m, builtin := p.registry.Lookup(name)

	var nameToken ptg.Token
	if !builtin {
		nameToken = p.externalFunctionName(name)
	}

	p.match('(')
	args := p.arguments()
	p.match(')')

	if !builtin {
		all := append([]*node{leaf(nameToken)}, args...)
		return branch(&ptg.FuncVar{Index: ptg.ExternalFunctionIndex, NumArgs: len(all)}, all...)
	}

	if m.Index == sumIndex && len(args) == 1 {
		return branch(&ptg.Attr{Kind: ptg.AttrSum}, args...)
	}
	p.validateArgs(m, len(args))

	if m.IsFixed() {
		return branch(&ptg.Func{Index: m.Index, NumArgs: len(args)}, args...)
	}
	return branch(&ptg.FuncVar{Index: m.Index, NumArgs: len(args)}, args...)
}

func (p *parser) externalFunctionName(name string) ptg.Token {
	if p.book != nil {
		if info, exists := p.book.Name(name, p.ctx.Sheet); exists {
			if !info.Function {
				p.fail(fmt.Sprintf("name %q is used as function but it does not refer to a function", name))
			}
			return &ptg.Name{Index: info.Index}
		}
		if registrar, ok := p.book.(NameRegistrar); ok && p.config.UnknownFunctions == RegisterAsExternal {
			return &ptg.Name{Index: registrar.RegisterFunctionName(name)}
		}
	}
	p.unknown(name)
	return nil
}

func (p *parser) validateArgs(m *function.Metadata, n int) {
	if n < m.MinArgs {
		if m.IsFixed() {
			p.fail(fmt.Sprintf("too few arguments to function %s, expected %d but got %d", m.Name, m.MinArgs, n))
		}
		p.fail(fmt.Sprintf("too few arguments to function %s, at least %d expected but got %d", m.Name, m.MinArgs, n))
	}
	if n > m.MaxArgs {
		if m.IsFixed() {
			p.fail(fmt.Sprintf("too many arguments to function %s, expected %d but got %d", m.Name, m.MaxArgs, n))
		}
		p.fail(fmt.Sprintf("too many arguments to function %s, at most %d expected but got %d", m.Name, m.MaxArgs, n))
	}
}
