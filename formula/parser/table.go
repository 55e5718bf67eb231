package parser

import (
	"fmt"
	"strings"

	"github.com/outofforest/oledoc/formula/ptg"
	"github.com/outofforest/oledoc/formula/value"
)

type tableItems struct {
	all     bool
	data    bool
	headers bool
	totals  bool
	thisRow bool
}

func (ti *tableItems) set(p *parser, item string) {
	switch strings.ToUpper(item) {
	case "#ALL":
		ti.all = true
	case "#DATA":
		ti.data = true
	case "#HEADERS":
		ti.headers = true
	case "#TOTALS":
		ti.totals = true
	case "#THIS ROW":
		ti.thisRow = true
	default:
		p.fail(fmt.Sprintf("unknown table item %q", item))
	}
}

// structuredReference parses Table[...] reference and converts it to the area of the table.
//
//nolint:gocyclo
func (p *parser) structuredReference(tableName string) *node {
	if p.book == nil {
		p.unknown(tableName)
	}
	table, exists := p.book.Table(tableName)
	if !exists {
		p.unknown(tableName)
	}

	var items tableItems
	var columns []string

	p.match('[')
	switch p.look {
	case ']':
	case '#':
		items.set(p, p.bracketContent())
	case '[':
		for {
			p.match('[')
			if p.look == '#' {
				items.set(p, p.bracketContent())
				p.match(']')
			} else {
				if columns != nil {
					p.fail("only one column range may be specified")
				}
				columns = []string{p.bracketContent()}
				p.match(']')
				if p.look == ':' {
					p.next()
					p.match('[')
					columns = append(columns, p.bracketContent())
					p.match(']')
				}
			}
			p.skipWhite()
			if p.look != ',' {
				break
			}
			p.next()
			p.skipWhite()
		}
	default:
		columns = []string{p.bracketContent()}
	}
	p.match(']')

	firstData := table.FirstRow + table.HeaderRows
	lastData := table.LastRow - table.TotalsRows

	var firstRow, lastRow int
	switch {
	case items.thisRow:
		if items.all || items.data || items.headers || items.totals {
			p.fail("#This Row can't be combined with other table items")
		}
		if p.ctx.Row < firstData || p.ctx.Row > lastData {
			return leaf(&ptg.Err{Code: value.ErrorValue})
		}
		firstRow, lastRow = p.ctx.Row, p.ctx.Row
	case items.all:
		firstRow, lastRow = table.FirstRow, table.LastRow
	case items.headers && items.totals:
		p.fail("#Headers and #Totals can't be combined")
	case items.headers:
		if table.HeaderRows == 0 {
			p.fail(fmt.Sprintf("table %q has no header row", tableName))
		}
		firstRow, lastRow = table.FirstRow, table.FirstRow+table.HeaderRows-1
		if items.data {
			lastRow = lastData
		}
	case items.totals:
		if table.TotalsRows == 0 {
			p.fail(fmt.Sprintf("table %q has no totals row", tableName))
		}
		firstRow, lastRow = lastData+1, table.LastRow
		if items.data {
			firstRow = firstData
		}
	default:
		firstRow, lastRow = firstData, lastData
	}

	firstCol, lastCol := table.FirstCol, table.LastCol
	if columns != nil {
		firstCol = p.tableColumn(table, tableName, columns[0])
		lastCol = firstCol
		if len(columns) > 1 {
			lastCol = p.tableColumn(table, tableName, columns[1])
		}
		firstCol, lastCol = min(firstCol, lastCol), max(firstCol, lastCol)
	}

	sheets := ptg.Sheets{First: table.Sheet, Last: table.Sheet}
	hasSheet := table.Sheet != p.book.SheetName(p.ctx.Sheet)
	first := &rangePart{kind: cellPart, cell: ptg.CellRef{Row: firstRow, Col: firstCol}}
	if firstRow == lastRow && firstCol == lastCol {
		return p.reference(sheets, hasSheet, first, nil)
	}
	last := &rangePart{kind: cellPart, cell: ptg.CellRef{Row: lastRow, Col: lastCol}}
	return p.reference(sheets, hasSheet, first, last)
}

// bracketContent reads text up to the closing bracket. Apostrophe escapes the next character.
func (p *parser) bracketContent() string {
	var sb strings.Builder
	for p.look != ']' {
		switch p.look {
		case 0:
			p.expected("']'")
		case '\'':
			p.next()
			if p.look == 0 {
				p.expected("escaped character")
			}
		}
		sb.WriteRune(p.look)
		p.next()
	}
	return strings.TrimSpace(sb.String())
}

func (p *parser) tableColumn(table Table, tableName, column string) int {
	for i, c := range table.Columns {
		if strings.EqualFold(c, column) {
			return table.FirstCol + i
		}
	}
	p.fail(fmt.Sprintf("column %q doesn't exist in table %q", column, tableName))
	return 0
}
