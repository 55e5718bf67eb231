package ptg

import (
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/formula/value"
)

type testBook struct{}

func (testBook) FunctionName(index int) (string, bool) {
	switch index {
	case 4:
		return "SUM", true
	case 24:
		return "ABS", true
	}
	return "", false
}

func (testBook) FixedArgs(index int) (int, bool) {
	if index == 24 {
		return 1, true
	}
	return 0, false
}

func (testBook) ExternSheet(index int) (Sheets, bool) {
	switch index {
	case 0:
		return Sheets{First: "Sheet2"}, true
	case 1:
		return Sheets{First: "My Sheet", Last: "Other"}, true
	case 2:
		return Sheets{Book: "Book2", First: "Data"}, true
	}
	return Sheets{}, false
}

func (testBook) NameText(index int) string {
	return "name" + strconv.Itoa(index)
}

func (testBook) ExternalNameText(externSheet, index int) string {
	return "ext" + strconv.Itoa(externSheet) + "_" + strconv.Itoa(index)
}

func sampleTokens() []Token {
	return []Token{
		&Area3D{
			Operand:     Operand{Class: ClassRef},
			ExternSheet: 0,
			Area: AreaRef{
				First: CellRef{Row: 0, Col: 0},
				Last:  CellRef{Row: 1, Col: 1},
			},
		},
		&Ref{Operand: Operand{Class: ClassRef}, Cell: CellRef{Row: 2, Col: 2, RowAbs: true, ColAbs: true}},
		&FuncVar{Operand: Operand{Class: ClassValue}, Index: 4, NumArgs: 2},
		&Int{Value: 2},
		OpMultiply,
		&Str{Value: `say "hi"`},
		OpConcat,
		&Number{Value: -1.5},
		&Func{Operand: Operand{Class: ClassValue}, Index: 24, NumArgs: 1},
		Paren{},
		OpLess,
		&Array{
			Operand: Operand{Class: ClassArray},
			Rows:    2,
			Cols:    2,
			Values: []value.Value{
				value.Number(1), value.String("ż"), value.Bool(true), value.ErrorNA,
			},
		},
		OpUnion,
	}
}

func TestEncodeDecode(t *testing.T) {
	requireT := require.New(t)

	tokens := sampleTokens()
	data, err := Encode(tokens)
	requireT.NoError(err)

	decoded, err := Decode(data, testBook{})
	requireT.NoError(err)
	requireT.Equal(tokens, decoded)

	size := int(data[0]) | int(data[1])<<8
	requireT.Equal(SubexpressionSize(tokens), size)
}

func TestClassIsEncoded(t *testing.T) {
	requireT := require.New(t)

	for class, code := range map[Class]byte{ClassRef: 0x24, ClassValue: 0x44, ClassArray: 0x64} {
		data, err := Encode([]Token{&Ref{Operand: Operand{Class: class}}})
		requireT.NoError(err)
		requireT.Equal(code, data[2])
	}
}

func TestRelativeFlags(t *testing.T) {
	requireT := require.New(t)

	data, err := Encode([]Token{&Ref{Cell: CellRef{Row: 4, Col: 3, RowAbs: false, ColAbs: true}}})
	requireT.NoError(err)
	requireT.Equal([]byte{0x05, 0x00, 0x24, 0x04, 0x00, 0x03, 0x80}, data)
}

func TestDecodeErrors(t *testing.T) {
	requireT := require.New(t)

	for _, data := range [][]byte{
		{0x01},
		{0x05, 0x00, 0x24},
		{0x01, 0x00, 0x02},
		{0x01, 0x00, 0x9F},
		{0x03, 0x00, 0x21, 0x04, 0x00},
		{0x08, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	} {
		_, err := Decode(data, testBook{})
		requireT.Error(err)
		requireT.True(errors.Is(err, ErrMalformed), "%x: %s", data, err)
	}
}

func TestDecodeAttrIf(t *testing.T) {
	requireT := require.New(t)

	// IF(TRUE,1,2) as stored by spreadsheet applications.
	data := []byte{
		0x18, 0x00,
		0x1D, 0x01,
		0x19, 0x02, 0x04, 0x00,
		0x1E, 0x01, 0x00,
		0x19, 0x08, 0x07, 0x00,
		0x1E, 0x02, 0x00,
		0x19, 0x08, 0x03, 0x00,
		0x42, 0x03, 0x01, 0x00,
	}

	tokens, err := Decode(data, testBook{})
	requireT.NoError(err)
	requireT.Len(tokens, 7)
	requireT.Equal(&Attr{Kind: AttrIf, Data: 4}, tokens[1])
	requireT.Equal(&FuncVar{Operand: Operand{Class: ClassValue}, Index: 1, NumArgs: 3}, tokens[6])
}

func TestToFormulaString(t *testing.T) {
	requireT := require.New(t)

	text, err := ToFormulaString(sampleTokens(), testBook{})
	requireT.NoError(err)
	requireT.Equal(`SUM(Sheet2!A1:B2,$C$3)*2&"say ""hi"""<(ABS(-1.5)),{1,"ż";TRUE,#N/A}`, text)

	text, err = ToFormulaString([]Token{
		&Ref3D{ExternSheet: 1, Cell: CellRef{Row: 0, Col: 0}},
		&Area3D{ExternSheet: 2, Area: AreaRef{First: CellRef{Row: 0, Col: 1}, Last: CellRef{Row: MaxRows - 1, Col: 1}}},
		&Attr{Kind: AttrSum},
		OpAdd,
	}, testBook{})
	requireT.NoError(err)
	requireT.Equal(`'My Sheet:Other'!A1+SUM([Book2]Data!B:B)`, text)

	_, err = ToFormulaString([]Token{OpAdd}, testBook{})
	requireT.Error(err)
}

func TestCellNames(t *testing.T) {
	assertT := assert.New(t)

	assertT.Equal("A", ColumnName(0))
	assertT.Equal("Z", ColumnName(25))
	assertT.Equal("AA", ColumnName(26))
	assertT.Equal("IV", ColumnName(255))
	assertT.Equal("B3", CellName(2, 1))

	col, ok := ColumnIndex("iv")
	assertT.True(ok)
	assertT.Equal(255, col)

	c, ok := ParseCell("$B$10")
	assertT.True(ok)
	assertT.Equal(CellRef{Row: 9, Col: 1, RowAbs: true, ColAbs: true}, c)
	assertT.Equal("$B$10", c.String())

	assertT.True(IsCellName("IV65536"))
	assertT.False(IsCellName("IW1"))
	assertT.False(IsCellName("A65537"))
	assertT.False(IsCellName("A0"))
	assertT.False(IsCellName("LOG10X"))
	assertT.False(IsCellName("LOG10"))
	assertT.True(IsCellName("iv1"))
}

func TestSheetPrefix(t *testing.T) {
	assertT := assert.New(t)

	assertT.Equal("Sheet1!", Sheets{First: "Sheet1"}.Prefix())
	assertT.Equal("'A1'!", Sheets{First: "A1"}.Prefix())
	assertT.Equal("'It''s'!", Sheets{First: "It's"}.Prefix())
	assertT.Equal("'1st'!", Sheets{First: "1st"}.Prefix())
	assertT.Equal("Jan:Mar!", Sheets{First: "Jan", Last: "Mar"}.Prefix())
	assertT.Equal("'S1:S3'!", Sheets{First: "S1", Last: "S3"}.Prefix())
}
