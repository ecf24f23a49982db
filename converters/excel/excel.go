package excel

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"

	"github.com/xuri/excelize/v2"
)

// DatabaseName is the synthetic database of XLSX imports.
const DatabaseName = "XLSX_DB"

func init() {
	converters.Register("excel", &excelDriver{})
}

type excelDriver struct{}

func (d *excelDriver) Properties() common.Properties {
	return common.Properties{
		Description: "Office Open XML Workbook",
		Extensions:  []string{"xlsx", "xlsm"},
	}
}

func (d *excelDriver) Open(source io.Reader, config *common.ConversionConfig) (common.SheetProvider, error) {
	return NewExcelConverterWithConfig(source, config)
}

// ExcelConverter yields the worksheets of an XLSX workbook
type ExcelConverter struct {
	file   *excelize.File
	config *common.ConversionConfig
	styles map[int]cellFormat
}

// Ensure ExcelConverter implements SheetProvider
var _ common.SheetProvider = (*ExcelConverter)(nil)

// Ensure ExcelConverter implements io.Closer
var _ io.Closer = (*ExcelConverter)(nil)

// NewExcelConverter creates a new ExcelConverter from an io.Reader
func NewExcelConverter(r io.Reader) (*ExcelConverter, error) {
	return NewExcelConverterWithConfig(r, nil)
}

// NewExcelConverterWithConfig creates a new ExcelConverter from an io.Reader with optional config
func NewExcelConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*ExcelConverter, error) {
	if config == nil {
		config = common.DefaultConversionConfig()
	}
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, common.FormatError("open Excel stream", err)
	}
	return &ExcelConverter{file: f, config: config, styles: make(map[int]cellFormat)}, nil
}

// DatabaseName implements SheetProvider
func (e *ExcelConverter) DatabaseName() string {
	return DatabaseName
}

// ScanSheets implements SheetProvider
func (e *ExcelConverter) ScanSheets(ctx context.Context, yield func(*common.Sheet) error) error {
	for _, sheetName := range e.file.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return err
		}
		sheet, err := e.readSheet(sheetName)
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
	return nil
}

func (e *ExcelConverter) readSheet(sheetName string) (*common.Sheet, error) {
	rows, err := e.file.Rows(sheetName)
	if err != nil {
		return nil, common.FormatError(fmt.Sprintf("rows of sheet %s", sheetName), err)
	}
	defer rows.Close()

	b := common.NewSheetBuilder(sheetName, e.config)
	for rowIdx := 1; rows.Next(); rowIdx++ {
		cols, err := rows.Columns()
		if err != nil {
			return nil, common.FormatError(fmt.Sprintf("row %d of sheet %s", rowIdx, sheetName), err)
		}
		cells := make([]common.Cell, len(cols))
		for i, display := range cols {
			cell, err := e.cell(sheetName, i+1, rowIdx, display)
			if err != nil {
				return nil, err
			}
			cells[i] = cell
		}
		b.AddRow(cells)
	}
	if err := rows.Error(); err != nil {
		return nil, common.FormatError(fmt.Sprintf("sheet %s", sheetName), err)
	}
	return b.Build(), nil
}

// cell tags one value from the cell type and number format.
func (e *ExcelConverter) cell(sheetName string, col, row int, display string) (common.Cell, error) {
	if display == "" {
		return common.Null, nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return common.Null, err
	}
	typ, err := e.file.GetCellType(sheetName, ref)
	if err != nil {
		return common.Null, common.FormatError("cell type of "+ref, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return common.NewCell(common.CellBoolean, display), nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	default:
		return common.NewCell(common.CellText, display), nil
	}

	format, err := e.format(sheetName, ref)
	if err != nil {
		return common.Null, err
	}
	if (format == formatPercent && e.config.RecognizePercentages) ||
		(format == formatCurrency && e.config.RecognizeCurrency) {
		raw, err := e.file.GetCellValue(sheetName, ref, excelize.Options{RawCellValue: true})
		if err != nil {
			return common.Null, common.FormatError("value of "+ref, err)
		}
		kind := common.CellPercentage
		if format == formatCurrency {
			kind = common.CellCurrency
		}
		return common.NewCell(kind, common.CanonicalDecimal(raw)), nil
	}
	return common.NewCell(common.CellNumber, display), nil
}

type cellFormat int

const (
	formatPlain cellFormat = iota
	formatPercent
	formatCurrency
)

func (e *ExcelConverter) format(sheetName, ref string) (cellFormat, error) {
	idx, err := e.file.GetCellStyle(sheetName, ref)
	if err != nil {
		return formatPlain, common.FormatError("style of "+ref, err)
	}
	if f, ok := e.styles[idx]; ok {
		return f, nil
	}
	style, err := e.file.GetStyle(idx)
	if err != nil {
		return formatPlain, common.FormatError("style of "+ref, err)
	}
	f := classify(style)
	e.styles[idx] = f
	return f, nil
}

// classify maps built-in and custom number formats to a cell format.
// Built-ins 9 and 10 are percentages, 5-8 and the accounting formats 42 and
// 44 are currencies.
func classify(style *excelize.Style) cellFormat {
	if style == nil {
		return formatPlain
	}
	if style.CustomNumFmt != nil {
		code := *style.CustomNumFmt
		switch {
		case strings.Contains(code, "%"):
			return formatPercent
		case strings.Contains(code, "[$"), strings.IndexFunc(code, isCurrencySymbol) >= 0:
			return formatCurrency
		}
		return formatPlain
	}
	switch style.NumFmt {
	case 9, 10:
		return formatPercent
	case 5, 6, 7, 8, 42, 44:
		return formatCurrency
	}
	return formatPlain
}

func isCurrencySymbol(r rune) bool {
	return unicode.Is(unicode.Sc, r)
}

// Close closes the underlying Excel file
func (e *ExcelConverter) Close() error {
	if e.file != nil {
		return e.file.Close()
	}
	return nil
}
