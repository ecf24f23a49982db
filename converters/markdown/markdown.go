package markdown

import (
	"bufio"
	"context"
	"io"
	"regexp"
	"strings"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"
)

// DatabaseName is the synthetic database of Markdown imports.
const DatabaseName = "MARKDOWN_DB"

func init() {
	converters.Register("markdown", &markdownDriver{})
}

type markdownDriver struct{}

func (d *markdownDriver) Properties() common.Properties {
	return common.Properties{
		Description: "Markdown pipe tables",
		Extensions:  []string{"md", "markdown"},
	}
}

func (d *markdownDriver) Open(source io.Reader, config *common.ConversionConfig) (common.SheetProvider, error) {
	return NewMarkdownConverterWithConfig(source, config)
}

// MarkdownConverter yields the pipe tables of a Markdown document. A table
// is named after the closest preceding heading or anchor.
type MarkdownConverter struct {
	tables []tableData
	config *common.ConversionConfig
	rec    *common.Recognizer
}

type tableData struct {
	rawName string
	rows    [][]string
}

// Ensure MarkdownConverter implements SheetProvider
var _ common.SheetProvider = (*MarkdownConverter)(nil)

// NewMarkdownConverter creates a new MarkdownConverter from an io.Reader
func NewMarkdownConverter(r io.Reader) (*MarkdownConverter, error) {
	return NewMarkdownConverterWithConfig(r, nil)
}

// NewMarkdownConverterWithConfig reads the whole document and collects its tables.
func NewMarkdownConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*MarkdownConverter, error) {
	if config == nil {
		config = common.DefaultConversionConfig()
	}
	tables, err := parseMarkdown(r)
	if err != nil {
		return nil, err
	}
	return &MarkdownConverter{tables: tables, config: config, rec: common.NewRecognizer(config)}, nil
}

// DatabaseName implements SheetProvider
func (c *MarkdownConverter) DatabaseName() string {
	return DatabaseName
}

// ScanSheets implements SheetProvider. The first line of a pipe table is
// always its header.
func (c *MarkdownConverter) ScanSheets(ctx context.Context, yield func(*common.Sheet) error) error {
	for _, t := range c.tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := common.NewSheetBuilder(t.rawName, c.config).ForceHeader()
		for _, row := range t.rows {
			cells := make([]common.Cell, len(row))
			for i, val := range row {
				cells[i] = c.rec.Recognize(val)
			}
			b.AddRow(cells)
		}
		sheet := b.Build()
		if sheet == nil {
			continue
		}
		if err := yield(sheet); err != nil {
			return err
		}
	}
	return nil
}

// Regex for headers and anchors
var (
	headerRegex    = regexp.MustCompile(`^#+\s+(.*?)\s*#*$`)
	anchorRegex    = regexp.MustCompile(`<a\s+.*(?:id|name)="([^"]+)".*>`)
	tableRegex     = regexp.MustCompile(`(^|[^\\])\|`) // an unescaped pipe anywhere, outer pipes are optional
	separatorRegex = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)
)

// isSeparator reports whether l is a delimiter row. A bare run of hyphens is
// a thematic break, so at least one pipe is required.
func isSeparator(l string) bool {
	return strings.Contains(l, "|") && separatorRegex.MatchString(l)
}

func parseMarkdown(r io.Reader) ([]tableData, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, common.FormatError("read Markdown", err)
	}

	var tables []tableData
	var currentName string
	i := 0
	for i < len(lines) {
		trimLine := strings.TrimSpace(lines[i])

		// Check for Name (Header or Anchor)
		if match := headerRegex.FindStringSubmatch(trimLine); match != nil {
			currentName = strings.TrimSpace(match[1])
			i++
			continue
		}
		if match := anchorRegex.FindStringSubmatch(trimLine); match != nil {
			currentName = strings.TrimSpace(match[1])
			i++
			continue
		}

		// Check for Table Start: a row with a pipe followed by a separator row
		if tableRegex.MatchString(trimLine) && i+1 < len(lines) && isSeparator(lines[i+1]) {
			table, consumed := parseTable(lines[i:], currentName)
			tables = append(tables, table)
			i += consumed
			currentName = "" // Reset name
			continue
		}

		i++
	}

	return tables, nil
}

func parseTable(lines []string, name string) (tableData, int) {
	rows := [][]string{splitRow(lines[0])}
	consumed := 2 // header and separator

	for j := 2; j < len(lines); j++ {
		if !strings.Contains(lines[j], "|") {
			break
		}
		rows = append(rows, splitRow(lines[j]))
		consumed++
	}

	return tableData{rawName: name, rows: rows}, consumed
}

// splitRow splits a pipe row into trimmed cells; \| is a literal pipe.
func splitRow(l string) []string {
	l = strings.TrimSpace(l)
	l = strings.TrimPrefix(l, "|")
	if strings.HasSuffix(l, "|") && !strings.HasSuffix(l, `\|`) {
		l = l[:len(l)-1]
	}

	var parts []string
	var cur strings.Builder
	for i := 0; i < len(l); i++ {
		switch {
		case l[i] == '\\' && i+1 < len(l) && l[i+1] == '|':
			cur.WriteByte('|')
			i++
		case l[i] == '|':
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(l[i])
		}
	}
	return append(parts, strings.TrimSpace(cur.String()))
}
