package common

import "strings"

// SheetBuilder accumulates the rows of one sheet and applies the rules every
// dialect shares: header extraction, empty-row policy and padding.
type SheetBuilder struct {
	name        string
	useHeader   bool
	dropEmpty   bool
	header      []Cell
	headerTaken bool
	rows        []Row
	maxCols     int
}

// NewSheetBuilder starts a sheet named name.
func NewSheetBuilder(name string, config *ConversionConfig) *SheetBuilder {
	if config == nil {
		config = DefaultConversionConfig()
	}
	return &SheetBuilder{
		name:      name,
		useHeader: config.UseHeaderRow,
		dropEmpty: config.DropEmptyRows,
	}
}

// ForceHeader makes the first row the header regardless of configuration.
// Markup dialects with explicit header rows use it.
func (b *SheetBuilder) ForceHeader() *SheetBuilder {
	b.useHeader = true
	return b
}

// AddRow appends one physical row. Trailing nulls are trimmed; the caller
// must not reuse cells afterwards.
func (b *SheetBuilder) AddRow(cells []Cell) {
	cells = TrimTrailingNulls(cells)
	if len(cells) > b.maxCols {
		b.maxCols = len(cells)
	}
	if b.useHeader && !b.headerTaken {
		b.header = cells
		b.headerTaken = true
		return
	}
	row := Row(cells)
	if b.dropEmpty && row.IsEmpty() {
		return
	}
	b.rows = append(b.rows, row)
}

// RowCount returns the number of data rows added so far.
func (b *SheetBuilder) RowCount() int {
	return len(b.rows)
}

// Build returns the finished sheet, or nil when it holds no data rows or no
// columns.
func (b *SheetBuilder) Build() *Sheet {
	if len(b.rows) == 0 || b.maxCols == 0 {
		return nil
	}

	columns := make([]string, b.maxCols)
	for i := range columns {
		var name string
		if i < len(b.header) {
			name = rtrim(b.header[i].Literal)
		}
		if strings.TrimSpace(name) == "" {
			name = ColumnLetter(i)
		}
		columns[i] = name
	}

	for i, row := range b.rows {
		if len(row) < b.maxCols {
			padded := make(Row, b.maxCols)
			copy(padded, row)
			for j := len(row); j < b.maxCols; j++ {
				padded[j] = Null
			}
			b.rows[i] = padded
		}
	}

	return &Sheet{Name: b.name, Columns: columns, Rows: b.rows}
}
