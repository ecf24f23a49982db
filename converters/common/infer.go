package common

import "unicode/utf8"

// DefaultColumnWidth is the varchar width of a column without any value.
const DefaultColumnWidth = 10

// InferColumns sizes one varchar column per name over rows. The width is the
// longest literal in runes, at least 1; a column of NULLs gets emptyWidth.
func InferColumns(names []string, rows []Row, emptyWidth int) []Column {
	if emptyWidth <= 0 {
		emptyWidth = DefaultColumnWidth
	}
	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name, Kind: CellNull}
	}

	for _, row := range rows {
		for i := range columns {
			if i >= len(row) || row[i].IsNull() {
				continue
			}
			col := &columns[i]
			switch col.Kind {
			case CellNull:
				col.Kind = row[i].Kind
			case row[i].Kind:
			default:
				col.Kind = CellText
			}
			if w := utf8.RuneCountInString(row[i].Literal); w > col.Width {
				col.Width = w
			}
		}
	}

	for i := range columns {
		switch {
		case columns[i].Kind == CellNull:
			columns[i].Width = emptyWidth
		case columns[i].Width < 1:
			columns[i].Width = 1
		}
	}
	return columns
}
