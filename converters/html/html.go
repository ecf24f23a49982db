package html

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// DatabaseName is the synthetic database of HTML imports.
const DatabaseName = "HTML_DB"

// maxColspan bounds colspan expansion the same way spreadsheets bound
// repeated columns.
const maxColspan = 16384

func init() {
	converters.Register("html", &htmlDriver{})
}

type htmlDriver struct{}

func (d *htmlDriver) Properties() common.Properties {
	return common.Properties{
		Description: "HTML tables",
		Extensions:  []string{"html", "htm"},
	}
}

func (d *htmlDriver) Open(source io.Reader, config *common.ConversionConfig) (common.SheetProvider, error) {
	return NewHTMLConverterWithConfig(source, config)
}

// HTMLConverter yields every <table> of an HTML document as a sheet
type HTMLConverter struct {
	tables []*html.Node
	config *common.ConversionConfig
	rec    *common.Recognizer
}

// Ensure HTMLConverter implements SheetProvider
var _ common.SheetProvider = (*HTMLConverter)(nil)

// NewHTMLConverter creates a new HTMLConverter from an io.Reader
func NewHTMLConverter(r io.Reader) (*HTMLConverter, error) {
	return NewHTMLConverterWithConfig(r, nil)
}

// NewHTMLConverterWithConfig parses the document and collects its tables.
func NewHTMLConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*HTMLConverter, error) {
	if config == nil {
		config = common.DefaultConversionConfig()
	}
	doc, err := html.Parse(decodeReader(bufio.NewReaderSize(r, 65536)))
	if err != nil {
		return nil, common.FormatError("parse HTML", err)
	}

	var tables []*html.Node
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			tables = append(tables, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	return &HTMLConverter{tables: tables, config: config, rec: common.NewRecognizer(config)}, nil
}

// decodeReader honours a BOM or a <meta charset> declaration. Documents that
// declare nothing are read as UTF-8.
func decodeReader(br *bufio.Reader) io.Reader {
	head, _ := br.Peek(1024)
	enc, name, _ := charset.DetermineEncoding(head, "text/html")
	switch {
	case name == "utf-8":
		return br
	case name == "windows-1252" && !bytes.Contains(bytes.ToLower(head), []byte("charset")):
		return br
	}
	return transform.NewReader(br, enc.NewDecoder())
}

// DatabaseName implements SheetProvider
func (c *HTMLConverter) DatabaseName() string {
	return DatabaseName
}

// ScanSheets implements SheetProvider
func (c *HTMLConverter) ScanSheets(ctx context.Context, yield func(*common.Sheet) error) error {
	for _, t := range c.tables {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sheet := c.extractTable(t)
		if sheet == nil {
			continue
		}
		if err := yield(sheet); err != nil {
			return err
		}
	}
	return nil
}

func (c *HTMLConverter) extractTable(n *html.Node) *common.Sheet {
	var name string
	for _, attr := range n.Attr {
		if attr.Key == "id" {
			name = attr.Val
			break
		}
	}

	var rows []*html.Node
	var visitRows func(*html.Node)
	visitRows = func(node *html.Node) {
		if node.Type == html.ElementNode && node.DataAtom == atom.Tr {
			rows = append(rows, node)
			return // Don't look for TRs inside TRs
		}

		for ch := node.FirstChild; ch != nil; ch = ch.NextSibling {
			// Don't traverse into nested tables here
			if ch.Type == html.ElementNode && ch.DataAtom == atom.Table {
				continue
			}
			if ch.Type == html.ElementNode && ch.DataAtom == atom.Caption && name == "" {
				name = extractText(ch)
				continue
			}
			visitRows(ch)
		}
	}
	visitRows(n)

	b := common.NewSheetBuilder(name, c.config)
	if len(rows) > 0 && allHeaderCells(rows[0]) {
		b.ForceHeader()
	}
	for _, tr := range rows {
		b.AddRow(c.extractRow(tr))
	}
	return b.Build()
}

func (c *HTMLConverter) extractRow(tr *html.Node) []common.Cell {
	var cells []common.Cell
	for td := tr.FirstChild; td != nil; td = td.NextSibling {
		if td.Type != html.ElementNode || (td.DataAtom != atom.Td && td.DataAtom != atom.Th) {
			continue
		}
		cells = append(cells, c.rec.Recognize(extractText(td)))
		for i := 1; i < colspan(td) && len(cells) < maxColspan; i++ {
			cells = append(cells, common.Null)
		}
	}
	return cells
}

func allHeaderCells(tr *html.Node) bool {
	found := false
	for td := tr.FirstChild; td != nil; td = td.NextSibling {
		if td.Type != html.ElementNode {
			continue
		}
		switch td.DataAtom {
		case atom.Th:
			found = true
		case atom.Td:
			return false
		}
	}
	return found
}

func colspan(n *html.Node) int {
	for _, attr := range n.Attr {
		if attr.Key == "colspan" {
			if v, err := strconv.Atoi(strings.TrimSpace(attr.Val)); err == nil && v > 1 {
				return v
			}
		}
	}
	return 1
}

func extractText(n *html.Node) string {
	var sb strings.Builder
	extractTextRecursive(n, &sb)
	return strings.TrimSpace(sb.String())
}

func extractTextRecursive(n *html.Node, sb *strings.Builder) {
	switch {
	case n.Type == html.TextNode:
		sb.WriteString(n.Data)
		return
	case n.Type == html.ElementNode && n.DataAtom == atom.Br:
		sb.WriteByte('\n')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractTextRecursive(c, sb)
	}
}

