package fods

import (
	"context"
	"strings"
	"testing"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const doc = `<?xml version="1.0" encoding="UTF-8"?>
<office:document xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
 xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
 xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:spreadsheet>
<table:table table:name="Shop">
<table:table-row><table:table-cell office:value-type="string"><text:p>Artikelnummer</text:p></table:table-cell><table:table-cell office:value-type="string"><text:p>Name</text:p></table:table-cell></table:table-row>
<table:table-row><table:table-cell office:value-type="string"><text:p>1005</text:p></table:table-cell><table:table-cell office:value-type="string"><text:p>Beatmungsfilter</text:p></table:table-cell></table:table-row>
</table:table>
</office:spreadsheet></office:body></office:document>`

func TestFODSConverter(t *testing.T) {
	cfg := common.DefaultConversionConfig()
	cfg.UseHeaderRow = true

	p, err := converters.Open("fods", strings.NewReader(doc), cfg)
	require.NoError(t, err)
	assert.Equal(t, "ODS_DB", p.DatabaseName())

	var sheets []*common.Sheet
	require.NoError(t, p.ScanSheets(context.Background(), func(s *common.Sheet) error {
		sheets = append(sheets, s)
		return nil
	}))
	require.Len(t, sheets, 1)
	assert.Equal(t, []string{"Artikelnummer", "Name"}, sheets[0].Columns)
	assert.Len(t, sheets[0].Rows, 1)

	err = p.ScanSheets(context.Background(), func(*common.Sheet) error { return nil })
	assert.Error(t, err, "second scan of a stream")
}

func TestFODSConverter_NotODF(t *testing.T) {
	p := NewFODSConverter(strings.NewReader(`<?xml version="1.0"?><root/>`), nil)
	err := p.ScanSheets(context.Background(), func(*common.Sheet) error { return nil })
	assert.ErrorIs(t, err, common.ErrFormat)
}
