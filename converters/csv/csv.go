package csv

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"
)

// DatabaseName is the synthetic database of delimited-text imports.
const DatabaseName = "CSV_DB"

var bom = []byte{0xef, 0xbb, 0xbf}

func init() {
	converters.Register("csv", &csvDriver{})
}

type csvDriver struct{}

func (d *csvDriver) Properties() common.Properties {
	return common.Properties{
		Description: "Delimited text",
		Extensions:  []string{"csv", "tsv", "txt"},
	}
}

func (d *csvDriver) Open(source io.Reader, config *common.ConversionConfig) (common.SheetProvider, error) {
	return NewCSVConverterWithConfig(source, config)
}

// CSVConverter reads one delimited-text table
type CSVConverter struct {
	csvReader *csv.Reader
	rec       *common.Recognizer
	Config    common.ConversionConfig
}

// Ensure CSVConverter implements SheetProvider
var _ common.SheetProvider = (*CSVConverter)(nil)

// NewCSVConverter creates a new CSVConverter from an io.Reader.
// This allows streaming data from a source (e.g. HTTP response) without a local file.
// Note: ScanSheets can only be called once in this mode.
func NewCSVConverter(r io.Reader) (*CSVConverter, error) {
	return NewCSVConverterWithConfig(r, nil)
}

// NewCSVConverterWithConfig creates a new CSVConverter from an io.Reader with optional config.
func NewCSVConverterWithConfig(r io.Reader, config *common.ConversionConfig) (*CSVConverter, error) {
	if config == nil {
		config = common.DefaultConversionConfig()
	}
	cfg := *config

	br := bufio.NewReaderSize(r, 65536)
	if head, _ := br.Peek(len(bom)); bytes.Equal(head, bom) {
		if _, err := br.Discard(len(bom)); err != nil {
			return nil, fmt.Errorf("failed to skip byte order mark: %w", err)
		}
	}

	// Detect delimiter if not set
	if cfg.Delimiter == 0 {
		peekBytes, _ := br.Peek(2048)
		sample := string(peekBytes)
		if idx := strings.IndexAny(sample, "\r\n"); idx != -1 {
			sample = sample[:idx]
		}
		cfg.Delimiter = common.DetectDelimiter(sample)
	}

	reader := csv.NewReader(br)
	reader.Comma = cfg.Delimiter
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	return &CSVConverter{
		csvReader: reader,
		rec:       common.NewRecognizer(&cfg),
		Config:    cfg,
	}, nil
}

// DatabaseName implements SheetProvider
func (c *CSVConverter) DatabaseName() string {
	return DatabaseName
}

// ScanSheets implements SheetProvider. The single sheet is named after
// Config.TableName.
func (c *CSVConverter) ScanSheets(ctx context.Context, yield func(*common.Sheet) error) error {
	if c.csvReader == nil {
		return fmt.Errorf("CSV reader is not initialized")
	}
	reader := c.csvReader
	c.csvReader = nil

	if err := ctx.Err(); err != nil {
		return err
	}

	b := common.NewSheetBuilder(c.Config.TableName, &c.Config)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return common.FormatError("read CSV row", err)
		}
		cells := make([]common.Cell, len(record))
		for i, val := range record {
			cells[i] = c.rec.Recognize(val)
		}
		b.AddRow(cells)
	}

	sheet := b.Build()
	if sheet == nil {
		return nil
	}
	return yield(sheet)
}
