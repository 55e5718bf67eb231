package ptg

import (
	"github.com/outofforest/oledoc/formula/value"
)

// Class is the operand class of the token.
type Class byte

// Operand classes. The class is added to the base code of the token.
const (
	ClassRef   Class = 0x00
	ClassValue Class = 0x20
	ClassArray Class = 0x40
)

func (c Class) String() string {
	switch c {
	case ClassRef:
		return "R"
	case ClassValue:
		return "V"
	case ClassArray:
		return "A"
	default:
		return "?"
	}
}

// Token codes.
const (
	codeParen      byte = 0x15
	codeMissingArg byte = 0x16
	codeStr        byte = 0x17
	codeAttr       byte = 0x19
	codeErr        byte = 0x1C
	codeBool       byte = 0x1D
	codeInt        byte = 0x1E
	codeNumber     byte = 0x1F
	codeArray      byte = 0x20
	codeFunc       byte = 0x21
	codeFuncVar    byte = 0x22
	codeName       byte = 0x23
	codeRef        byte = 0x24
	codeArea       byte = 0x25
	codeMemArea    byte = 0x26
	codeMemErr     byte = 0x27
	codeMemFunc    byte = 0x29
	codeRefErr     byte = 0x2A
	codeAreaErr    byte = 0x2B
	codeNameX      byte = 0x39
	codeRef3D      byte = 0x3A
	codeArea3D     byte = 0x3B
)

// ExternalFunctionIndex is the function index of calls to user defined and add-in functions.
// The name of the function is passed as the first argument.
const ExternalFunctionIndex = 255

// Token is one unit of the formula stored in reverse polish notation.
type Token interface {
	// Size returns the number of bytes token occupies in the token stream.
	Size() int
}

// Classed is implemented by tokens carrying operand class.
type Classed interface {
	Token
	OperandClass() Class
	SetOperandClass(class Class)
}

// Operand is embedded by tokens carrying operand class.
type Operand struct {
	Class Class
}

// OperandClass returns operand class of the token.
func (o *Operand) OperandClass() Class {
	return o.Class
}

// SetOperandClass sets operand class of the token.
func (o *Operand) SetOperandClass(class Class) {
	o.Class = class
}

// Operator is the operator token.
type Operator byte

// Operators.
const (
	OpAdd       Operator = 0x03
	OpSubtract  Operator = 0x04
	OpMultiply  Operator = 0x05
	OpDivide    Operator = 0x06
	OpPower     Operator = 0x07
	OpConcat    Operator = 0x08
	OpLess      Operator = 0x09
	OpLessEqual Operator = 0x0A
	OpEqual     Operator = 0x0B
	OpGreaterEq Operator = 0x0C
	OpGreater   Operator = 0x0D
	OpNotEqual  Operator = 0x0E
	OpIntersect Operator = 0x0F
	OpUnion     Operator = 0x10
	OpRange     Operator = 0x11
	OpUnaryPlus Operator = 0x12
	OpUnaryMin  Operator = 0x13
	OpPercent   Operator = 0x14
)

var operatorSymbols = map[Operator]string{
	OpAdd:       "+",
	OpSubtract:  "-",
	OpMultiply:  "*",
	OpDivide:    "/",
	OpPower:     "^",
	OpConcat:    "&",
	OpLess:      "<",
	OpLessEqual: "<=",
	OpEqual:     "=",
	OpGreaterEq: ">=",
	OpGreater:   ">",
	OpNotEqual:  "<>",
	OpIntersect: " ",
	OpUnion:     ",",
	OpRange:     ":",
	OpUnaryPlus: "+",
	OpUnaryMin:  "-",
	OpPercent:   "%",
}

// Size returns the size of the token.
func (o Operator) Size() int {
	return 1
}

// Operands returns number of operands taken by the operator.
func (o Operator) Operands() int {
	switch o {
	case OpUnaryPlus, OpUnaryMin, OpPercent:
		return 1
	default:
		return 2
	}
}

// Symbol returns text of the operator.
func (o Operator) Symbol() string {
	return operatorSymbols[o]
}

// IsValueOperator tells if operator consumes values, not references.
func (o Operator) IsValueOperator() bool {
	switch o {
	case OpIntersect, OpUnion, OpRange:
		return false
	default:
		return true
	}
}

// Paren marks parenthesized expression, used only for rendering.
type Paren struct{}

// Size returns the size of the token.
func (Paren) Size() int {
	return 1
}

// MissingArg is the omitted function argument.
type MissingArg struct{}

// Size returns the size of the token.
func (MissingArg) Size() int {
	return 1
}

// Str is the string literal.
type Str struct {
	Value string
}

// Size returns the size of the token.
func (t *Str) Size() int {
	return 1 + stringSize(t.Value)
}

// AttrKind is the type of attribute token.
type AttrKind byte

// Attribute kinds.
const (
	AttrVolatile AttrKind = 0x01
	AttrIf       AttrKind = 0x02
	AttrChoose   AttrKind = 0x04
	AttrGoto     AttrKind = 0x08
	AttrSum      AttrKind = 0x10
	AttrSpace    AttrKind = 0x40
)

// Attr is the attribute token. AttrSum is SUM of single argument.
type Attr struct {
	Kind  AttrKind
	Data  uint16
	Jumps []uint16
}

// Size returns the size of the token.
func (t *Attr) Size() int {
	if t.Kind == AttrChoose {
		return 4 + 2*(len(t.Jumps))
	}
	return 4
}

// Err is the error literal.
type Err struct {
	Code value.Error
}

// Size returns the size of the token.
func (t *Err) Size() int {
	return 2
}

// Bool is the logical literal.
type Bool struct {
	Value bool
}

// Size returns the size of the token.
func (t *Bool) Size() int {
	return 2
}

// Int is the integer literal in range 0-65535.
type Int struct {
	Value uint16
}

// Size returns the size of the token.
func (t *Int) Size() int {
	return 3
}

// Number is the floating point literal.
type Number struct {
	Value float64
}

// Size returns the size of the token.
func (t *Number) Size() int {
	return 9
}

// Array is the array constant. Values are stored in the trailing data of the formula.
type Array struct {
	Operand
	Rows   int
	Cols   int
	Values []value.Value
}

// Size returns the size of the token.
func (t *Array) Size() int {
	return 8
}

// Func is the call of function taking fixed number of arguments.
type Func struct {
	Operand
	Index   int
	NumArgs int
}

// Size returns the size of the token.
func (t *Func) Size() int {
	return 3
}

// FuncVar is the call of function taking variable number of arguments.
type FuncVar struct {
	Operand
	Index   int
	NumArgs int
}

// Size returns the size of the token.
func (t *FuncVar) Size() int {
	return 4
}

// Name references defined name by its zero-based index.
type Name struct {
	Operand
	Index int
}

// Size returns the size of the token.
func (t *Name) Size() int {
	return 5
}

// Ref references one cell of the current sheet.
type Ref struct {
	Operand
	Cell CellRef
}

// Size returns the size of the token.
func (t *Ref) Size() int {
	return 5
}

// Area references rectangle of the current sheet.
type Area struct {
	Operand
	Area AreaRef
}

// Size returns the size of the token.
func (t *Area) Size() int {
	return 9
}

// MemArea precedes reference subexpression, Length is the size of that subexpression in bytes.
type MemArea struct {
	Operand
	Length int
}

// Size returns the size of the token.
func (t *MemArea) Size() int {
	return 7
}

// MemErr precedes reference subexpression evaluating to an error.
type MemErr struct {
	Operand
	Length int
}

// Size returns the size of the token.
func (t *MemErr) Size() int {
	return 7
}

// MemFunc precedes reference subexpression containing function calls.
type MemFunc struct {
	Operand
	Length int
}

// Size returns the size of the token.
func (t *MemFunc) Size() int {
	return 3
}

// RefErr is the deleted cell reference.
type RefErr struct {
	Operand
}

// Size returns the size of the token.
func (t *RefErr) Size() int {
	return 5
}

// AreaErr is the deleted area reference.
type AreaErr struct {
	Operand
}

// Size returns the size of the token.
func (t *AreaErr) Size() int {
	return 9
}

// NameX references name defined in another workbook or add-in.
type NameX struct {
	Operand
	ExternSheet int
	Index       int
}

// Size returns the size of the token.
func (t *NameX) Size() int {
	return 7
}

// Ref3D references one cell through the extern sheet table.
type Ref3D struct {
	Operand
	ExternSheet int
	Cell        CellRef
}

// Size returns the size of the token.
func (t *Ref3D) Size() int {
	return 7
}

// Area3D references rectangle through the extern sheet table.
type Area3D struct {
	Operand
	ExternSheet int
	Area        AreaRef
}

// Size returns the size of the token.
func (t *Area3D) Size() int {
	return 11
}

// SubexpressionSize returns the number of bytes taken by tokens.
func SubexpressionSize(tokens []Token) int {
	var size int
	for _, t := range tokens {
		size += t.Size()
	}
	return size
}
