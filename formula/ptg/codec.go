package ptg

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/outofforest/oledoc/formula/value"
)

// ErrMalformed is returned if encoded formula can't be decoded.
var ErrMalformed = errors.New("malformed formula encoding")

// MaxStringLength is the maximum number of characters in string literal.
const MaxStringLength = 255

// Functions provides function metadata needed to decode and render function tokens.
type Functions interface {
	FunctionName(index int) (string, bool)
	FixedArgs(index int) (int, bool)
}

var (
	latin1  = charmap.ISO8859_1
	utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
)

// Array element types.
const (
	arrayEmpty  byte = 0x00
	arrayNumber byte = 0x01
	arrayString byte = 0x02
	arrayBool   byte = 0x04
	arrayError  byte = 0x10
)

// Encode serializes tokens to cce, token stream and trailing array data.
func Encode(tokens []Token) ([]byte, error) {
	size := SubexpressionSize(tokens)
	if size > math.MaxUint16 {
		return nil, errors.Errorf("formula of %d bytes is too long", size)
	}

	b := binary.LittleEndian.AppendUint16(make([]byte, 0, 2+size), uint16(size))
	var arrays []*Array
	for _, t := range tokens {
		var err error
		b, err = encodeToken(b, t)
		if err != nil {
			return nil, err
		}
		if a, ok := t.(*Array); ok {
			arrays = append(arrays, a)
		}
	}
	for _, a := range arrays {
		var err error
		b, err = encodeArrayData(b, a)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func encodeToken(b []byte, t Token) ([]byte, error) {
	switch x := t.(type) {
	case Operator:
		return append(b, byte(x)), nil
	case Paren:
		return append(b, codeParen), nil
	case MissingArg:
		return append(b, codeMissingArg), nil
	case *Str:
		return appendString(append(b, codeStr), x.Value, false)
	case *Attr:
		b = append(b, codeAttr, byte(x.Kind))
		if x.Kind == AttrChoose {
			b = binary.LittleEndian.AppendUint16(b, uint16(len(x.Jumps)-1))
			for _, j := range x.Jumps {
				b = binary.LittleEndian.AppendUint16(b, j)
			}
			return b, nil
		}
		return binary.LittleEndian.AppendUint16(b, x.Data), nil
	case *Err:
		return append(b, codeErr, byte(x.Code)), nil
	case *Bool:
		if x.Value {
			return append(b, codeBool, 1), nil
		}
		return append(b, codeBool, 0), nil
	case *Int:
		return binary.LittleEndian.AppendUint16(append(b, codeInt), x.Value), nil
	case *Number:
		return binary.LittleEndian.AppendUint64(append(b, codeNumber), math.Float64bits(x.Value)), nil
	case *Array:
		return append(b, code(codeArray, x.Class), 0, 0, 0, 0, 0, 0, 0), nil
	case *Func:
		return binary.LittleEndian.AppendUint16(append(b, code(codeFunc, x.Class)), uint16(x.Index)), nil
	case *FuncVar:
		b = append(b, code(codeFuncVar, x.Class), byte(x.NumArgs))
		return binary.LittleEndian.AppendUint16(b, uint16(x.Index)), nil
	case *Name:
		b = binary.LittleEndian.AppendUint16(append(b, code(codeName, x.Class)), uint16(x.Index+1))
		return append(b, 0, 0), nil
	case *Ref:
		return appendCell(append(b, code(codeRef, x.Class)), x.Cell), nil
	case *Area:
		return appendArea(append(b, code(codeArea, x.Class)), x.Area), nil
	case *MemArea:
		b = append(b, code(codeMemArea, x.Class), 0, 0, 0, 0)
		return binary.LittleEndian.AppendUint16(b, uint16(x.Length)), nil
	case *MemErr:
		b = append(b, code(codeMemErr, x.Class), 0, 0, 0, 0)
		return binary.LittleEndian.AppendUint16(b, uint16(x.Length)), nil
	case *MemFunc:
		return binary.LittleEndian.AppendUint16(append(b, code(codeMemFunc, x.Class)), uint16(x.Length)), nil
	case *RefErr:
		return append(b, code(codeRefErr, x.Class), 0, 0, 0, 0), nil
	case *AreaErr:
		return append(b, code(codeAreaErr, x.Class), 0, 0, 0, 0, 0, 0, 0, 0), nil
	case *NameX:
		b = binary.LittleEndian.AppendUint16(append(b, code(codeNameX, x.Class)), uint16(x.ExternSheet))
		b = binary.LittleEndian.AppendUint16(b, uint16(x.Index+1))
		return append(b, 0, 0), nil
	case *Ref3D:
		b = binary.LittleEndian.AppendUint16(append(b, code(codeRef3D, x.Class)), uint16(x.ExternSheet))
		return appendCell(b, x.Cell), nil
	case *Area3D:
		b = binary.LittleEndian.AppendUint16(append(b, code(codeArea3D, x.Class)), uint16(x.ExternSheet))
		return appendArea(b, x.Area), nil
	default:
		return nil, errors.Errorf("token %T can't be encoded", t)
	}
}

func encodeArrayData(b []byte, a *Array) ([]byte, error) {
	if a.Cols < 1 || a.Cols > 256 || a.Rows < 1 || a.Rows > 65536 || len(a.Values) != a.Rows*a.Cols {
		return nil, errors.Errorf("invalid array dimensions %dx%d", a.Rows, a.Cols)
	}
	b = append(b, byte(a.Cols-1))
	b = binary.LittleEndian.AppendUint16(b, uint16(a.Rows-1))
	for _, v := range a.Values {
		switch x := v.(type) {
		case nil, value.Blank:
			b = append(b, arrayEmpty, 0, 0, 0, 0, 0, 0, 0, 0)
		case value.Number:
			b = binary.LittleEndian.AppendUint64(append(b, arrayNumber), math.Float64bits(float64(x)))
		case value.String:
			var err error
			b, err = appendString(append(b, arrayString), string(x), true)
			if err != nil {
				return nil, err
			}
		case value.Bool:
			var flag byte
			if x {
				flag = 1
			}
			b = append(b, arrayBool, flag, 0, 0, 0, 0, 0, 0, 0)
		case value.Error:
			b = append(b, arrayError, byte(x), 0, 0, 0, 0, 0, 0, 0)
		default:
			return nil, errors.Errorf("value %T can't be stored in array", v)
		}
	}
	return b, nil
}

// Decode parses cce, token stream and trailing array data.
func Decode(data []byte, funcs Functions) ([]Token, error) {
	if len(data) < 2 {
		return nil, errors.Wrap(ErrMalformed, "formula length is missing")
	}
	size := int(binary.LittleEndian.Uint16(data))
	if len(data) < 2+size {
		return nil, errors.Wrapf(ErrMalformed, "formula declares %d bytes but %d are available", size, len(data)-2)
	}

	d := &decoder{data: data[2 : 2+size], funcs: funcs}
	var tokens []Token
	var arrays []*Array
	for d.pos < len(d.data) {
		t, err := d.token()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
		if a, ok := t.(*Array); ok {
			arrays = append(arrays, a)
		}
	}

	d.data = data[2+size:]
	d.pos = 0
	for _, a := range arrays {
		if err := d.arrayData(a); err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

type decoder struct {
	data  []byte
	pos   int
	funcs Functions
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.data) {
		return errors.Wrapf(ErrMalformed, "%d bytes needed at offset %d", n, d.pos)
	}
	return nil
}

func (d *decoder) readByte() byte {
	d.pos++
	return d.data[d.pos-1]
}

func (d *decoder) readUint16() uint16 {
	d.pos += 2
	return binary.LittleEndian.Uint16(d.data[d.pos-2:])
}

//nolint:gocyclo
func (d *decoder) token() (Token, error) {
	c := d.data[d.pos]
	if c < 0x20 {
		return d.baseToken(c)
	}

	base := c&0x1F | 0x20
	if c >= 0x80 || classedSizes[base] == 0 {
		return nil, errors.Wrapf(ErrMalformed, "unknown token 0x%02x at offset %d", c, d.pos)
	}
	if err := d.need(classedSizes[base]); err != nil {
		return nil, err
	}
	class := Class(c&0x60 - 0x20)
	d.pos++

	op := Operand{Class: class}
	switch base {
	case codeArray:
		d.pos += 7
		return &Array{Operand: op}, nil
	case codeFunc:
		index := int(d.readUint16())
		n, ok := d.funcs.FixedArgs(index)
		if !ok {
			return nil, errors.Wrapf(ErrMalformed, "function %d is not fixed-arity", index)
		}
		return &Func{Operand: op, Index: index, NumArgs: n}, nil
	case codeFuncVar:
		n := int(d.readByte() & 0x7F)
		index := int(d.readUint16() & 0x7FFF)
		return &FuncVar{Operand: op, Index: index, NumArgs: n}, nil
	case codeName:
		index := int(d.readUint16()) - 1
		d.pos += 2
		return &Name{Operand: op, Index: index}, nil
	case codeRef:
		return &Ref{Operand: op, Cell: d.cell()}, nil
	case codeArea:
		return &Area{Operand: op, Area: d.area()}, nil
	case codeMemArea:
		d.pos += 4
		return &MemArea{Operand: op, Length: int(d.readUint16())}, nil
	case codeMemErr:
		d.pos += 4
		return &MemErr{Operand: op, Length: int(d.readUint16())}, nil
	case codeMemFunc:
		return &MemFunc{Operand: op, Length: int(d.readUint16())}, nil
	case codeRefErr:
		d.pos += 4
		return &RefErr{Operand: op}, nil
	case codeAreaErr:
		d.pos += 8
		return &AreaErr{Operand: op}, nil
	case codeNameX:
		ixti := int(d.readUint16())
		index := int(d.readUint16()) - 1
		d.pos += 2
		return &NameX{Operand: op, ExternSheet: ixti, Index: index}, nil
	case codeRef3D:
		ixti := int(d.readUint16())
		return &Ref3D{Operand: op, ExternSheet: ixti, Cell: d.cell()}, nil
	default:
		ixti := int(d.readUint16())
		return &Area3D{Operand: op, ExternSheet: ixti, Area: d.area()}, nil
	}
}

// classedSizes maps base code to the token size, 0 means unknown token.
var classedSizes = [0x40]int{
	codeArray:   8,
	codeFunc:    3,
	codeFuncVar: 4,
	codeName:    5,
	codeRef:     5,
	codeArea:    9,
	codeMemArea: 7,
	codeMemErr:  7,
	codeMemFunc: 3,
	codeRefErr:  5,
	codeAreaErr: 9,
	codeNameX:   7,
	codeRef3D:   7,
	codeArea3D:  11,
}

func (d *decoder) baseToken(c byte) (Token, error) {
	switch {
	case c >= byte(OpAdd) && c <= byte(OpPercent):
		d.pos++
		return Operator(c), nil
	case c == codeParen:
		d.pos++
		return Paren{}, nil
	case c == codeMissingArg:
		d.pos++
		return MissingArg{}, nil
	case c == codeStr:
		d.pos++
		s, err := d.readString(false)
		if err != nil {
			return nil, err
		}
		return &Str{Value: s}, nil
	case c == codeAttr:
		return d.attr()
	case c == codeErr:
		if err := d.need(2); err != nil {
			return nil, err
		}
		d.pos++
		return &Err{Code: value.Error(d.readByte())}, nil
	case c == codeBool:
		if err := d.need(2); err != nil {
			return nil, err
		}
		d.pos++
		return &Bool{Value: d.readByte() != 0}, nil
	case c == codeInt:
		if err := d.need(3); err != nil {
			return nil, err
		}
		d.pos++
		return &Int{Value: d.readUint16()}, nil
	case c == codeNumber:
		if err := d.need(9); err != nil {
			return nil, err
		}
		d.pos++
		n := math.Float64frombits(binary.LittleEndian.Uint64(d.data[d.pos:]))
		d.pos += 8
		return &Number{Value: n}, nil
	default:
		return nil, errors.Wrapf(ErrMalformed, "unknown token 0x%02x at offset %d", c, d.pos)
	}
}

func (d *decoder) attr() (Token, error) {
	if err := d.need(4); err != nil {
		return nil, err
	}
	d.pos++
	kind := AttrKind(d.readByte())
	data := d.readUint16()
	switch kind {
	case AttrVolatile, AttrIf, AttrGoto, AttrSum, AttrSpace:
		return &Attr{Kind: kind, Data: data}, nil
	case AttrChoose:
		n := int(data) + 1
		if err := d.need(2 * n); err != nil {
			return nil, err
		}
		jumps := make([]uint16, 0, n)
		for i := 0; i < n; i++ {
			jumps = append(jumps, d.readUint16())
		}
		return &Attr{Kind: kind, Data: data, Jumps: jumps}, nil
	default:
		return nil, errors.Wrapf(ErrMalformed, "unsupported attribute 0x%02x", kind)
	}
}

func (d *decoder) cell() CellRef {
	row := int(d.readUint16())
	col := d.readUint16()
	return CellRef{
		Row:    row,
		Col:    int(col & 0x00FF),
		RowAbs: col&0x8000 == 0,
		ColAbs: col&0x4000 == 0,
	}
}

func (d *decoder) area() AreaRef {
	row1 := int(d.readUint16())
	row2 := int(d.readUint16())
	col1 := d.readUint16()
	col2 := d.readUint16()
	return AreaRef{
		First: CellRef{Row: row1, Col: int(col1 & 0x00FF), RowAbs: col1&0x8000 == 0, ColAbs: col1&0x4000 == 0},
		Last:  CellRef{Row: row2, Col: int(col2 & 0x00FF), RowAbs: col2&0x8000 == 0, ColAbs: col2&0x4000 == 0},
	}
}

func (d *decoder) readString(wide bool) (string, error) {
	var n int
	if wide {
		if err := d.need(3); err != nil {
			return "", err
		}
		n = int(d.readUint16())
	} else {
		if err := d.need(2); err != nil {
			return "", err
		}
		n = int(d.readByte())
	}
	flags := d.readByte()
	if flags&0x01 == 0 {
		if err := d.need(n); err != nil {
			return "", err
		}
		s, err := latin1.NewDecoder().Bytes(d.data[d.pos : d.pos+n])
		if err != nil {
			return "", errors.Wrap(ErrMalformed, err.Error())
		}
		d.pos += n
		return string(s), nil
	}
	if err := d.need(2 * n); err != nil {
		return "", err
	}
	s, err := utf16le.NewDecoder().Bytes(d.data[d.pos : d.pos+2*n])
	if err != nil {
		return "", errors.Wrap(ErrMalformed, err.Error())
	}
	d.pos += 2 * n
	return string(s), nil
}

func (d *decoder) arrayData(a *Array) error {
	if err := d.need(3); err != nil {
		return err
	}
	a.Cols = int(d.readByte()) + 1
	a.Rows = int(d.readUint16()) + 1
	a.Values = make([]value.Value, 0, a.Rows*a.Cols)
	for i := 0; i < a.Rows*a.Cols; i++ {
		if err := d.need(1); err != nil {
			return err
		}
		switch t := d.readByte(); t {
		case arrayString:
			s, err := d.readString(true)
			if err != nil {
				return err
			}
			a.Values = append(a.Values, value.String(s))
			continue
		case arrayEmpty, arrayNumber, arrayBool, arrayError:
			if err := d.need(8); err != nil {
				return err
			}
			payload := d.data[d.pos : d.pos+8]
			d.pos += 8
			switch t {
			case arrayEmpty:
				a.Values = append(a.Values, value.Blank{})
			case arrayNumber:
				a.Values = append(a.Values, value.Number(math.Float64frombits(binary.LittleEndian.Uint64(payload))))
			case arrayBool:
				a.Values = append(a.Values, value.Bool(payload[0] != 0))
			default:
				a.Values = append(a.Values, value.Error(payload[0]))
			}
		default:
			return errors.Wrapf(ErrMalformed, "unknown array element type 0x%02x", t)
		}
	}
	return nil
}

func code(base byte, class Class) byte {
	return base + byte(class)
}

func appendCell(b []byte, c CellRef) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(c.Row))
	return binary.LittleEndian.AppendUint16(b, colField(c))
}

func appendArea(b []byte, a AreaRef) []byte {
	b = binary.LittleEndian.AppendUint16(b, uint16(a.First.Row))
	b = binary.LittleEndian.AppendUint16(b, uint16(a.Last.Row))
	b = binary.LittleEndian.AppendUint16(b, colField(a.First))
	return binary.LittleEndian.AppendUint16(b, colField(a.Last))
}

func colField(c CellRef) uint16 {
	f := uint16(c.Col) & 0x00FF
	if !c.ColAbs {
		f |= 0x4000
	}
	if !c.RowAbs {
		f |= 0x8000
	}
	return f
}

func isCompressible(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return false
		}
	}
	return true
}

func stringUnits(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.Encode([]rune{r}))
	}
	return n
}

// stringSize returns the size of the short string, including length and flags.
func stringSize(s string) int {
	if isCompressible(s) {
		return 2 + len([]rune(s))
	}
	return 2 + 2*stringUnits(s)
}

func appendString(b []byte, s string, wide bool) ([]byte, error) {
	compressed := isCompressible(s)
	n := stringUnits(s)
	if !wide && n > MaxStringLength {
		return nil, errors.Errorf("string literal of %d characters is too long", n)
	}

	if wide {
		b = binary.LittleEndian.AppendUint16(b, uint16(n))
	} else {
		b = append(b, byte(n))
	}

	var encoded []byte
	var err error
	if compressed {
		b = append(b, 0x00)
		encoded, err = latin1.NewEncoder().Bytes([]byte(s))
	} else {
		b = append(b, 0x01)
		encoded, err = utf16le.NewEncoder().Bytes([]byte(s))
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return append(b, encoded...), nil
}
