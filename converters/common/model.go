package common

import (
	"fmt"
	"strings"
)

// CellKind is the semantic tag a parser gives a single value.
type CellKind int

const (
	CellNull CellKind = iota
	CellText
	CellNumber
	CellBoolean
	CellPercentage
	CellCurrency
)

// String returns the lower-case name of the kind.
func (k CellKind) String() string {
	switch k {
	case CellNull:
		return "null"
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellBoolean:
		return "boolean"
	case CellPercentage:
		return "percentage"
	case CellCurrency:
		return "currency"
	default:
		return fmt.Sprintf("CellKind(%d)", int(k))
	}
}

// Cell is one value of a row. Literal holds the exact text emitted into SQL;
// it is empty for CellNull.
type Cell struct {
	Kind    CellKind
	Literal string
}

// Null is the empty cell.
var Null = Cell{Kind: CellNull}

// NewCell returns a cell of the given kind.
func NewCell(kind CellKind, literal string) Cell {
	if kind == CellNull {
		return Null
	}
	return Cell{Kind: kind, Literal: literal}
}

// IsNull reports whether c carries no value.
func (c Cell) IsNull() bool {
	return c.Kind == CellNull
}

// Row is an ordered sequence of cells, one per column position.
type Row []Cell

// IsEmpty reports whether every cell of the row is NULL.
func (r Row) IsEmpty() bool {
	for _, c := range r {
		if !c.IsNull() {
			return false
		}
	}
	return true
}

// Sheet is a logical table as found in the source document. Columns holds the
// raw header names and every row has exactly len(Columns) cells.
type Sheet struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Column is a sanitized, typed column of a Table.
type Column struct {
	Name  string
	Kind  CellKind // common tag of the non-null cells, CellText when mixed
	Width int
}

// SQLType returns the column definition type, e.g. varchar(7).
func (c Column) SQLType() string {
	return fmt.Sprintf("varchar(%d)", c.Width)
}

// Table is a Sheet after identifier sanitization and type inference.
type Table struct {
	Name    string
	Columns []Column
	Rows    []Row
}

// ColumnNames returns the sanitized column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// TrimTrailingNulls drops NULL cells from the end of a row. Spreadsheet
// encodings often carry styled but empty cells up to the sheet edge.
func TrimTrailingNulls(cells []Cell) []Cell {
	n := len(cells)
	for n > 0 && cells[n-1].IsNull() {
		n--
	}
	return cells[:n]
}

// ColumnLetter returns the spreadsheet name of a zero-based column position:
// A, B, ..., Z, AA, AB, ...
func ColumnLetter(idx int) string {
	if idx < 0 {
		return ""
	}
	var buf [8]byte
	pos := len(buf)
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		pos--
		buf[pos] = byte('A' + (n-1)%26)
	}
	return string(buf[pos:])
}

// rtrim removes trailing white space; MySQL rejects identifiers ending in one.
func rtrim(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}
