// Package fods reads flat OpenDocument spreadsheets (.fods, .ods.xml).
package fods

import (
	"bufio"
	"context"
	"errors"
	"io"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/darianmavgo/mkimport/converters/opendoc"
)

// DatabaseName is shared with the zipped dialect.
const DatabaseName = "ODS_DB"

func init() {
	converters.Register("fods", &fodsDriver{})
}

type fodsDriver struct{}

func (d *fodsDriver) Properties() common.Properties {
	return common.Properties{
		Description: "Flat OpenDocument Spreadsheet",
		Extensions:  []string{"fods", "ods.xml", "xml"},
	}
}

func (d *fodsDriver) Open(source io.Reader, config *common.ConversionConfig) (common.SheetProvider, error) {
	return NewFODSConverter(source, config), nil
}

// FODSConverter decodes a flat document in a single pass.
type FODSConverter struct {
	r       io.Reader
	config  *common.ConversionConfig
	scanned bool
}

var _ common.SheetProvider = (*FODSConverter)(nil)

// NewFODSConverter wraps r. The document can be scanned once.
func NewFODSConverter(r io.Reader, config *common.ConversionConfig) *FODSConverter {
	return &FODSConverter{r: bufio.NewReaderSize(r, 65536), config: config}
}

// DatabaseName implements SheetProvider
func (c *FODSConverter) DatabaseName() string {
	return DatabaseName
}

// ScanSheets implements SheetProvider
func (c *FODSConverter) ScanSheets(ctx context.Context, yield func(*common.Sheet) error) error {
	if c.scanned {
		return errors.New("fods: document already scanned")
	}
	c.scanned = true
	return opendoc.Scan(ctx, c.r, c.config, yield)
}
