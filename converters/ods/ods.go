// Package ods reads OpenDocument spreadsheets packed in a zip container.
package ods

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/darianmavgo/mkimport/converters/opendoc"
)

// DatabaseName is the synthetic database of ODS imports.
const DatabaseName = "ODS_DB"

const mimeType = "application/vnd.oasis.opendocument.spreadsheet"

func init() {
	converters.Register("ods", &odsDriver{})
}

type odsDriver struct{}

func (d *odsDriver) Properties() common.Properties {
	return common.Properties{
		Description: "OpenDocument Spreadsheet",
		Extensions:  []string{"ods"},
	}
}

func (d *odsDriver) Open(source io.Reader, config *common.ConversionConfig) (common.SheetProvider, error) {
	return NewODSConverter(source, config)
}

// ODSConverter yields the sheets of a zipped OpenDocument spreadsheet.
type ODSConverter struct {
	content *zip.File
	config  *common.ConversionConfig
}

var _ common.SheetProvider = (*ODSConverter)(nil)

type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// NewODSConverter opens the container and locates content.xml.
func NewODSConverter(r io.Reader, config *common.ConversionConfig) (*ODSConverter, error) {
	if config == nil {
		config = common.DefaultConversionConfig()
	}

	var ra sizedReaderAt
	if s, ok := r.(sizedReaderAt); ok {
		ra = s
	} else {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read ODS stream: %w", err)
		}
		ra = bytes.NewReader(data)
	}

	zr, err := zip.NewReader(ra, ra.Size())
	if err != nil {
		return nil, common.FormatError("open ODS container", err)
	}

	c := &ODSConverter{config: config}
	for _, f := range zr.File {
		switch f.Name {
		case "mimetype":
			if err := checkMimeType(f); err != nil {
				return nil, err
			}
		case "content.xml":
			c.content = f
		}
	}
	if c.content == nil {
		return nil, fmt.Errorf("%w: content.xml missing from ODS container", common.ErrFormat)
	}
	return c, nil
}

func checkMimeType(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return common.FormatError("read mimetype", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 256))
	if err != nil {
		return common.FormatError("read mimetype", err)
	}
	if got := strings.TrimSpace(string(data)); got != mimeType {
		return fmt.Errorf("%w: not a spreadsheet (mimetype %q)", common.ErrFormat, got)
	}
	return nil
}

// DatabaseName implements SheetProvider
func (c *ODSConverter) DatabaseName() string {
	return DatabaseName
}

// ScanSheets implements SheetProvider
func (c *ODSConverter) ScanSheets(ctx context.Context, yield func(*common.Sheet) error) error {
	rc, err := c.content.Open()
	if err != nil {
		return common.FormatError("open content.xml", err)
	}
	defer rc.Close()
	return opendoc.Scan(ctx, rc, c.config, yield)
}
