package ods

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const content = `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
 xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
 xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:spreadsheet>
<table:table table:name="pma_bookmark">
<table:table-row>
<table:table-cell office:value-type="float" office:value="1"><text:p>1</text:p></table:table-cell>
<table:table-cell office:value-type="string"><text:p>dbbase</text:p></table:table-cell>
<table:table-cell/>
<table:table-cell office:value-type="string"><text:p>ddd</text:p></table:table-cell>
</table:table-row>
</table:table>
</office:spreadsheet></office:body></office:document-content>`

func buildODS(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"mimetype", "content.xml", "META-INF/manifest.xml"} {
		body, ok := files[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestODSConverter(t *testing.T) {
	data := buildODS(t, map[string]string{
		"mimetype":    mimeType,
		"content.xml": content,
	})

	p, err := converters.Open("ods", bytes.NewReader(data), nil)
	require.NoError(t, err)
	assert.Equal(t, "ODS_DB", p.DatabaseName())

	var sheets []*common.Sheet
	require.NoError(t, p.ScanSheets(context.Background(), func(s *common.Sheet) error {
		sheets = append(sheets, s)
		return nil
	}))
	require.Len(t, sheets, 1)
	assert.Equal(t, "pma_bookmark", sheets[0].Name)
	assert.Equal(t, []string{"A", "B", "C", "D"}, sheets[0].Columns)
	assert.Equal(t, common.Row{
		common.NewCell(common.CellNumber, "1"),
		common.NewCell(common.CellText, "dbbase"),
		common.Null,
		common.NewCell(common.CellText, "ddd"),
	}, sheets[0].Rows[0])
}

func TestODSConverter_PlainReader(t *testing.T) {
	data := buildODS(t, map[string]string{"content.xml": content})
	// bytes.Buffer has no ReadAt, forcing the buffered path
	c, err := NewODSConverter(bytes.NewBuffer(data), nil)
	require.NoError(t, err)
	n := 0
	require.NoError(t, c.ScanSheets(context.Background(), func(*common.Sheet) error { n++; return nil }))
	assert.Equal(t, 1, n)
}

func TestODSConverter_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"not a zip":       []byte("<office:document/>"),
		"missing content": buildODS(t, map[string]string{"mimetype": mimeType}),
		"text document": buildODS(t, map[string]string{
			"mimetype":    "application/vnd.oasis.opendocument.text",
			"content.xml": content,
		}),
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewODSConverter(bytes.NewReader(data), nil)
			assert.ErrorIs(t, err, common.ErrFormat)
		})
	}
}

func TestODSConverter_BrokenContent(t *testing.T) {
	data := buildODS(t, map[string]string{"content.xml": content[:len(content)/2]})
	c, err := NewODSConverter(bytes.NewReader(data), nil)
	require.NoError(t, err)
	err = c.ScanSheets(context.Background(), func(*common.Sheet) error { return nil })
	assert.ErrorIs(t, err, common.ErrFormat)
}
