// Package opendoc decodes the spreadsheet body of OpenDocument content, shared
// by the zipped (.ods) and flat (.fods) dialects.
package opendoc

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/darianmavgo/mkimport/converters/common"
	"golang.org/x/net/html/charset"
)

const (
	nsOffice = "urn:oasis:names:tc:opendocument:xmlns:office:1.0"
	nsTable  = "urn:oasis:names:tc:opendocument:xmlns:table:1.0"
	nsText   = "urn:oasis:names:tc:opendocument:xmlns:text:1.0"
)

const (
	// MaxColumns caps number-columns-repeated expansion.
	MaxColumns = 16384
	// MaxRows caps number-rows-repeated expansion of non-blank rows.
	MaxRows = 1 << 20
)

// Scan decodes every table:table element of r and yields the non-empty ones
// as sheets, in document order.
func Scan(ctx context.Context, r io.Reader, config *common.ConversionConfig, yield func(*common.Sheet) error) error {
	if config == nil {
		config = common.DefaultConversionConfig()
	}
	d := xml.NewDecoder(r)
	d.CharsetReader = charset.NewReaderLabel
	s := &scanner{d: d, config: config}

	root, err := s.root()
	if err != nil {
		return err
	}
	if root.Space != nsOffice || (root.Local != "document" && root.Local != "document-content") {
		return fmt.Errorf("%w: root element %s is not an office document", common.ErrFormat, root.Local)
	}

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return common.FormatError("content", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != nsTable || start.Name.Local != "table" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		sheet, err := s.table(start)
		if err != nil {
			return err
		}
		if sheet == nil {
			continue
		}
		if err := yield(sheet); err != nil {
			return err
		}
	}
}

type scanner struct {
	d      *xml.Decoder
	config *common.ConversionConfig
}

func (s *scanner) root() (xml.Name, error) {
	for {
		tok, err := s.d.Token()
		if errors.Is(err, io.EOF) {
			return xml.Name{}, fmt.Errorf("%w: empty document", common.ErrFormat)
		}
		if err != nil {
			return xml.Name{}, common.FormatError("content", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name, nil
		}
	}
}

func attr(start xml.StartElement, space, local string) string {
	for _, a := range start.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// repeat returns the repeat count of start capped at limit. The element
// itself always counts once, even when the cap is already spent.
func repeat(start xml.StartElement, local string, limit int) int {
	n, err := strconv.Atoi(attr(start, nsTable, local))
	if err != nil || n < 1 {
		return 1
	}
	return max(1, min(n, limit))
}

// table reads rows until the matching end element. Rows may sit inside
// header-rows, row-groups and similar wrappers.
func (s *scanner) table(start xml.StartElement) (*common.Sheet, error) {
	b := common.NewSheetBuilder(attr(start, nsTable, "name"), s.config)
	rows := 0
	for {
		tok, err := s.d.Token()
		if err != nil {
			return nil, common.FormatError("table", unexpectedEOF(err))
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsTable && t.Name.Local == "table-row":
				cells, err := s.row()
				if err != nil {
					return nil, err
				}
				n := 1
				if !common.Row(cells).IsEmpty() {
					n = repeat(t, "number-rows-repeated", MaxRows-rows)
				}
				for i := 0; i < n; i++ {
					if i == 0 {
						b.AddRow(cells)
					} else {
						b.AddRow(append([]common.Cell(nil), cells...))
					}
				}
				rows += n
			case t.Name.Space == nsTable && t.Name.Local == "table":
				// nested sub-tables are not separate sheets
				if err := s.d.Skip(); err != nil {
					return nil, common.FormatError("table", err)
				}
			case t.Name.Space == nsOffice && t.Name.Local == "annotation":
				if err := s.d.Skip(); err != nil {
					return nil, common.FormatError("table", err)
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return b.Build(), nil
			}
		}
	}
}

// row returns the cells of one table-row. Blank cells are only materialized
// when a non-blank cell follows them.
func (s *scanner) row() ([]common.Cell, error) {
	var cells []common.Cell
	pending := 0
	for {
		tok, err := s.d.Token()
		if err != nil {
			return nil, common.FormatError("row", unexpectedEOF(err))
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != nsTable || (t.Name.Local != "table-cell" && t.Name.Local != "covered-table-cell") {
				if err := s.d.Skip(); err != nil {
					return nil, common.FormatError("row", err)
				}
				continue
			}
			cell, err := s.cell(t)
			if err != nil {
				return nil, err
			}
			room := MaxColumns - len(cells) - pending
			if room <= 0 {
				continue
			}
			n := repeat(t, "number-columns-repeated", room)
			if cell.IsNull() {
				pending += n
				continue
			}
			for ; pending > 0; pending-- {
				cells = append(cells, common.Null)
			}
			for i := 0; i < n; i++ {
				cells = append(cells, cell)
			}
		case xml.EndElement:
			return cells, nil
		}
	}
}

// cell reads one table-cell or covered-table-cell.
func (s *scanner) cell(start xml.StartElement) (common.Cell, error) {
	var paragraphs []string
	for {
		tok, err := s.d.Token()
		if err != nil {
			return common.Null, common.FormatError("cell", unexpectedEOF(err))
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsText && (t.Name.Local == "p" || t.Name.Local == "h"):
				p, err := s.text(t)
				if err != nil {
					return common.Null, err
				}
				paragraphs = append(paragraphs, p)
			case t.Name.Space == nsOffice && t.Name.Local == "annotation",
				t.Name.Space == nsTable && t.Name.Local == "table":
				if err := s.d.Skip(); err != nil {
					return common.Null, common.FormatError("cell", err)
				}
			}
		case xml.EndElement:
			if t.Name == start.Name {
				return s.value(start, strings.Join(paragraphs, "\n")), nil
			}
		}
	}
}

// value tags a cell from its office:value-type. Percentage and currency cells
// render the canonical office:value; everything else its display text.
func (s *scanner) value(start xml.StartElement, display string) common.Cell {
	valueType := attr(start, nsOffice, "value-type")
	raw := attr(start, nsOffice, "value")
	switch {
	case valueType == "percentage" && s.config.RecognizePercentages && raw != "":
		return common.NewCell(common.CellPercentage, common.CanonicalDecimal(raw))
	case valueType == "currency" && s.config.RecognizeCurrency && raw != "":
		return common.NewCell(common.CellCurrency, common.CanonicalDecimal(raw))
	case display == "":
		return common.Null
	}
	switch valueType {
	case "float", "percentage", "currency":
		return common.NewCell(common.CellNumber, display)
	case "boolean":
		return common.NewCell(common.CellBoolean, display)
	default:
		return common.NewCell(common.CellText, display)
	}
}

// text collects the character content of a paragraph.
func (s *scanner) text(start xml.StartElement) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		tok, err := s.d.Token()
		if err != nil {
			return "", common.FormatError("paragraph", unexpectedEOF(err))
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if t.Name.Space == nsText {
				switch t.Name.Local {
				case "s":
					n, err := strconv.Atoi(attr(t, nsText, "c"))
					if err != nil || n < 1 {
						n = 1
					}
					b.WriteString(strings.Repeat(" ", n))
				case "tab":
					b.WriteByte('\t')
				case "line-break":
					b.WriteByte('\n')
				}
			}
			if t.Name.Space == nsOffice && t.Name.Local == "annotation" {
				if err := s.d.Skip(); err != nil {
					return "", common.FormatError("paragraph", err)
				}
				continue
			}
			depth++
		case xml.EndElement:
			if depth == 0 {
				return b.String(), nil
			}
			depth--
		}
	}
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
