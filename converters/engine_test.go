package converters_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/darianmavgo/mkimport/converters"
	_ "github.com/darianmavgo/mkimport/converters/all"
	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/darianmavgo/mkimport/sink"
	"github.com/darianmavgo/mkimport/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docHead = `<?xml version="1.0" encoding="UTF-8"?>
<office:document xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
 xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0"
 xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0">
<office:body><office:spreadsheet>
`

const docTail = `</office:spreadsheet></office:body></office:document>`

const bookmarkDoc = docHead + `<table:table table:name="pma_bookmark">
<table:table-row>
<table:table-cell office:value-type="float" office:value="1"><text:p>1</text:p></table:table-cell>
<table:table-cell office:value-type="string"><text:p>dbbase</text:p></table:table-cell>
<table:table-cell/>
<table:table-cell office:value-type="string"><text:p>ddd</text:p></table:table-cell>
</table:table-row>
</table:table>
` + docTail

const shopDoc = docHead + `<table:table table:name="Shop">
<table:table-row>
<table:table-cell office:value-type="string"><text:p>Artikelnummer</text:p></table:table-cell>
<table:table-cell office:value-type="string"><text:p>Name</text:p></table:table-cell>
</table:table-row>
<table:table-row>
<table:table-cell office:value-type="string"><text:p>1005</text:p></table:table-cell>
<table:table-cell office:value-type="string"><text:p>Beatmungsfilter</text:p></table:table-cell>
</table:table-row>
<table:table-row><table:table-cell table:number-columns-repeated="2"/></table:table-row>
<table:table-row>
<table:table-cell office:value-type="string"><text:p>1006</text:p></table:table-cell>
<table:table-cell office:value-type="string"><text:p>Filter</text:p></table:table-cell>
</table:table-row>
</table:table>
<table:table table:name="Feuille 1">
<table:table-row><table:table-cell office:value-type="string"><text:p>value</text:p></table:table-cell></table:table-row>
<table:table-row><table:table-cell office:value-type="string"><text:p>test@example.org</text:p></table:table-cell></table:table-row>
<table:table-row><table:table-cell office:value-type="percentage" office:value="0.05"><text:p>5%</text:p></table:table-cell></table:table-row>
<table:table-row><table:table-cell office:value-type="boolean" office:boolean-value="true"><text:p>true</text:p></table:table-cell></table:table-row>
</table:table>
` + docTail

const emptyDoc = docHead + `<table:table table:name="Blank"><table:table-row><table:table-cell/></table:table-row></table:table>` + docTail

const (
	createDB    = "CREATE DATABASE IF NOT EXISTS `ODS_DB` DEFAULT CHARACTER SET utf8 COLLATE utf8_general_ci"
	createShop  = "CREATE TABLE IF NOT EXISTS `ODS_DB`.`Shop` (`Artikelnummer` varchar(4), `Name` varchar(15)) DEFAULT CHARACTER SET utf8 COLLATE utf8_general_ci"
	createFeuil = "CREATE TABLE IF NOT EXISTS `ODS_DB`.`Feuille 1` (`value` varchar(16)) DEFAULT CHARACTER SET utf8 COLLATE utf8_general_ci"
	insertFeuil = "INSERT INTO `ODS_DB`.`Feuille 1` (`value`) VALUES ('test@example.org'),\n ('0.05'),\n ('true')"
)

func headerConfig() *common.ConversionConfig {
	cfg := common.DefaultConversionConfig()
	cfg.UseHeaderRow = true
	return cfg
}

func runImport(t *testing.T, ctx context.Context, doc string, cfg *common.ConversionConfig, opts *converters.ImportOptions, s common.Sink) (*converters.Outcome, error) {
	t.Helper()
	driver, err := converters.Lookup("fods")
	require.NoError(t, err)
	h, err := source.NewHandle(strings.NewReader(doc), "test.fods", source.Options{})
	require.NoError(t, err)
	defer h.Close()
	return converters.NewImporter(driver, cfg, opts, s).Run(ctx, h)
}

func TestImporter_BuildOnlyWithoutHeader(t *testing.T) {
	out, err := runImport(t, context.Background(), bookmarkDoc, nil, &converters.ImportOptions{BuildOnly: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, converters.StateFinished, out.State)
	assert.Equal(t, "ODS_DB", out.Database)
	assert.Equal(t, createDB+";;"+
		"CREATE TABLE IF NOT EXISTS `ODS_DB`.`pma_bookmark` (`A` varchar(1), `B` varchar(6), `C` varchar(10), `D` varchar(3)) DEFAULT CHARACTER SET utf8 COLLATE utf8_general_ci;;"+
		"INSERT INTO `ODS_DB`.`pma_bookmark` (`A`, `B`, `C`, `D`) VALUES ('1', 'dbbase', NULL, 'ddd');;",
		out.SQL)
	assert.Equal(t, []string{
		common.NoticeHeading,
		"Go to database: `ODS_DB`",
		"Edit settings for `ODS_DB`",
		"Go to table: `pma_bookmark`",
		"Edit settings for `pma_bookmark`",
	}, out.Notices)
	assert.Zero(t, out.Executed)
	assert.NotEmpty(t, out.RunID)
}

func TestImporter_KeepsEmptyRows(t *testing.T) {
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(), &converters.ImportOptions{BuildOnly: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		createDB,
		createShop,
		createFeuil,
		"INSERT INTO `ODS_DB`.`Shop` (`Artikelnummer`, `Name`) VALUES ('1005', 'Beatmungsfilter'),\n (NULL, NULL),\n ('1006', 'Filter')",
		insertFeuil,
	}, out.Statements)
	require.Len(t, out.Tables, 2)
	assert.Equal(t, "Shop", out.Tables[0].Name)
	assert.Equal(t, 3, out.Tables[0].Rows)
	assert.Equal(t, 3, out.Tables[1].Rows)
	assert.False(t, out.Truncated)
}

func TestImporter_DropsEmptyRows(t *testing.T) {
	cfg := headerConfig()
	cfg.DropEmptyRows = true
	out, err := runImport(t, context.Background(), shopDoc, cfg, &converters.ImportOptions{BuildOnly: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		createDB,
		createShop,
		createFeuil,
		"INSERT INTO `ODS_DB`.`Shop` (`Artikelnummer`, `Name`) VALUES ('1005', 'Beatmungsfilter'),\n ('1006', 'Filter')",
		insertFeuil,
	}, out.Statements)
}

func TestImporter_CompressedSource(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(bookmarkDoc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	driver, err := converters.Lookup("fods")
	require.NoError(t, err)
	h, err := source.NewHandle(&buf, "test.fods.gz", source.Options{Compression: source.CompressionAuto})
	require.NoError(t, err)
	defer h.Close()

	out, err := converters.NewImporter(driver, nil, &converters.ImportOptions{BuildOnly: true, ReadChunkSize: 7}, nil).Run(context.Background(), h)
	require.NoError(t, err)
	assert.Len(t, out.Statements, 3)
	assert.Contains(t, out.SQL, "VALUES ('1', 'dbbase', NULL, 'ddd');;")
}

func TestImporter_OffsetAndLimit(t *testing.T) {
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(),
		&converters.ImportOptions{BuildOnly: true, RowOffset: 2, RowLimit: 2}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		createDB,
		createShop,
		createFeuil,
		"INSERT INTO `ODS_DB`.`Shop` (`Artikelnummer`, `Name`) VALUES ('1006', 'Filter')",
		"INSERT INTO `ODS_DB`.`Feuille 1` (`value`) VALUES ('test@example.org')",
	}, out.Statements, "widths come from the whole sheet")
	assert.True(t, out.Truncated)
	assert.ErrorIs(t, out.TruncatedBy, common.ErrResourceLimit)
	assert.Equal(t, converters.StateFinished, out.State)
}

func TestImporter_OffsetSkipsWholeTable(t *testing.T) {
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(),
		&converters.ImportOptions{BuildOnly: true, RowOffset: 3}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{createDB, createShop, createFeuil, insertFeuil}, out.Statements)
	assert.Equal(t, 0, out.Tables[0].Rows)
	assert.False(t, out.Truncated)
}

func TestImporter_StatementLength(t *testing.T) {
	cfg := headerConfig()
	cfg.MaxStatementLength = 80
	out, err := runImport(t, context.Background(), shopDoc, cfg, &converters.ImportOptions{BuildOnly: true}, nil)
	require.NoError(t, err)

	var shop []string
	for _, s := range out.Statements {
		if strings.HasPrefix(s, "INSERT INTO `ODS_DB`.`Shop`") {
			shop = append(shop, s)
		}
	}
	assert.Equal(t, []string{
		"INSERT INTO `ODS_DB`.`Shop` (`Artikelnummer`, `Name`) VALUES ('1005', 'Beatmungsfilter')",
		"INSERT INTO `ODS_DB`.`Shop` (`Artikelnummer`, `Name`) VALUES (NULL, NULL)",
		"INSERT INTO `ODS_DB`.`Shop` (`Artikelnummer`, `Name`) VALUES ('1006', 'Filter')",
	}, shop)
}

func TestImporter_TargetDatabase(t *testing.T) {
	cfg := common.DefaultConversionConfig()
	cfg.Database = "inventory"
	out, err := runImport(t, context.Background(), bookmarkDoc, cfg, &converters.ImportOptions{BuildOnly: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, "inventory", out.Database)
	require.Len(t, out.Statements, 2)
	assert.True(t, strings.HasPrefix(out.Statements[0], "CREATE TABLE IF NOT EXISTS `inventory`.`pma_bookmark`"))
}

func TestImporter_NoTables(t *testing.T) {
	rec := &sink.Recorder{}
	out, err := runImport(t, context.Background(), emptyDoc, nil, nil, rec)
	require.NoError(t, err)

	assert.Equal(t, converters.StateFinished, out.State)
	assert.Empty(t, out.Statements)
	assert.Empty(t, out.SQL)
	assert.Empty(t, out.Notices)
	assert.Empty(t, rec.Statements)
}

func TestImporter_Execute(t *testing.T) {
	rec := &sink.Recorder{}
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(), nil, rec)
	require.NoError(t, err)

	assert.Equal(t, converters.StateFinished, out.State)
	assert.Equal(t, out.Statements, rec.Statements)
	assert.Equal(t, 5, out.Executed)
	assert.Empty(t, out.Failed)
	assert.Equal(t, common.JoinStatements(out.Statements), out.SQL)
	assert.False(t, out.SQLDisplaySkipped)
}

func TestImporter_SQLDisplayDisabled(t *testing.T) {
	rec := &sink.Recorder{}
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(),
		&converters.ImportOptions{SQLDisplayDisabled: true}, rec)
	require.NoError(t, err)

	assert.Empty(t, out.SQL)
	assert.True(t, out.SQLDisplaySkipped)
	assert.Len(t, out.Statements, 5)
}

func TestImporter_ContinuesAfterFailure(t *testing.T) {
	rejected := errors.New("table exists")
	rec := &sink.Recorder{FailOn: func(i int, _ string) error {
		if i == 1 {
			return rejected
		}
		return nil
	}}
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(), nil, rec)
	require.NoError(t, err)

	assert.Equal(t, converters.StateFinished, out.State)
	assert.Equal(t, 4, out.Executed)
	require.Len(t, out.Failed, 1)
	assert.Equal(t, 1, out.Failed[0].Index)
	assert.Equal(t, createShop, out.Failed[0].Statement)
	assert.ErrorIs(t, out.Failed[0], rejected)
	assert.ErrorIs(t, out.Failed[0], common.ErrExecution)
	assert.Len(t, rec.Statements, 5)
}

func TestImporter_StopOnError(t *testing.T) {
	rec := &sink.Recorder{FailOn: func(i int, _ string) error {
		if i == 1 {
			return errors.New("denied")
		}
		return nil
	}}
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(),
		&converters.ImportOptions{StopOnError: true}, rec)
	require.Error(t, err)

	assert.ErrorIs(t, err, common.ErrExecution)
	var se *common.StatementError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, converters.StateAborted, out.State)
	assert.Equal(t, 1, out.Executed)
	assert.Len(t, rec.Statements, 2)
}

func TestImporter_ElapsedBudget(t *testing.T) {
	rec := &sink.Recorder{FailOn: func(i int, _ string) error {
		if i == 0 {
			time.Sleep(200 * time.Millisecond)
		}
		return nil
	}}
	out, err := runImport(t, context.Background(), shopDoc, headerConfig(),
		&converters.ImportOptions{MaxElapsed: 50 * time.Millisecond}, rec)
	require.NoError(t, err)

	assert.Equal(t, converters.StateFinished, out.State)
	assert.True(t, out.Truncated)
	assert.ErrorIs(t, out.TruncatedBy, common.ErrResourceLimit)
	assert.Equal(t, 3, out.Executed, "schema block completes, rows are skipped")
	assert.Len(t, out.Statements, 5)
}

func TestImporter_FormatError(t *testing.T) {
	out, err := runImport(t, context.Background(), `<?xml version="1.0"?><root/>`, nil, &converters.ImportOptions{BuildOnly: true}, nil)
	require.Error(t, err)

	assert.ErrorIs(t, err, common.ErrFormat)
	assert.Equal(t, converters.StateAborted, out.State)
	assert.Empty(t, out.Statements)
}

type failingReader struct{}

func (failingReader) ReadChunk(int) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func TestImporter_ReadError(t *testing.T) {
	driver, err := converters.Lookup("fods")
	require.NoError(t, err)
	out, err := converters.NewImporter(driver, nil, &converters.ImportOptions{BuildOnly: true}, nil).Run(context.Background(), failingReader{})
	require.Error(t, err)

	assert.ErrorIs(t, err, common.ErrIO)
	assert.Equal(t, converters.StateAborted, out.State)
}

func TestImporter_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := runImport(t, ctx, shopDoc, headerConfig(), nil, &sink.Recorder{})
	require.Error(t, err)
	assert.ErrorIs(t, err, converters.ErrInterrupted)
	assert.Equal(t, converters.StateAborted, out.State)
}

func TestImporter_NeedsSink(t *testing.T) {
	out, err := runImport(t, context.Background(), bookmarkDoc, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, converters.StateAborted, out.State)
}

type runIDSink struct {
	mu  sync.Mutex
	ids map[string]int
}

func (s *runIDSink) Exec(ctx context.Context, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids[common.RunID(ctx)]++
	return nil
}

func TestImporter_RunID(t *testing.T) {
	s := &runIDSink{ids: map[string]int{}}
	out, err := runImport(t, context.Background(), bookmarkDoc, nil, &converters.ImportOptions{RunID: "run-42"}, s)
	require.NoError(t, err)

	assert.Equal(t, "run-42", out.RunID)
	assert.Equal(t, map[string]int{"run-42": 3}, s.ids)
}

func TestImporter_RunTwicePanics(t *testing.T) {
	driver, err := converters.Lookup("fods")
	require.NoError(t, err)
	im := converters.NewImporter(driver, nil, &converters.ImportOptions{BuildOnly: true}, nil)

	h, err := source.NewHandle(strings.NewReader(bookmarkDoc), "a.fods", source.Options{})
	require.NoError(t, err)
	_, err = im.Run(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, converters.StateFinished, im.State())

	assert.Panics(t, func() {
		_, _ = im.Run(context.Background(), h)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "executing", converters.StateExecuting.String())
	assert.Equal(t, "State(42)", converters.State(42).String())
}

type nopDriver struct{}

func (nopDriver) Open(io.Reader, *common.ConversionConfig) (common.SheetProvider, error) {
	return nil, errors.New("nop")
}

func (nopDriver) Properties() common.Properties {
	return common.Properties{Description: "nothing"}
}

// sheetDriver serves fixed sheets and calls after once they are all yielded.
type sheetDriver struct {
	sheets []*common.Sheet
	after  func()
}

func (d sheetDriver) Open(io.Reader, *common.ConversionConfig) (common.SheetProvider, error) {
	return d, nil
}

func (d sheetDriver) Properties() common.Properties {
	return common.Properties{Description: "fixed sheets"}
}

func (d sheetDriver) DatabaseName() string { return "FIXED_DB" }

func (d sheetDriver) ScanSheets(_ context.Context, yield func(*common.Sheet) error) error {
	for _, s := range d.sheets {
		if err := yield(s); err != nil {
			return err
		}
	}
	if d.after != nil {
		d.after()
	}
	return nil
}

func runDriver(t *testing.T, ctx context.Context, d common.Driver, opts *converters.ImportOptions) (*converters.Outcome, error) {
	t.Helper()
	h, err := source.NewHandle(strings.NewReader("ignored"), "fixed.dat", source.Options{})
	require.NoError(t, err)
	defer h.Close()
	return converters.NewImporter(d, nil, opts, nil).Run(ctx, h)
}

func oneCell(name, v string) *common.Sheet {
	return &common.Sheet{Name: name, Columns: []string{"A"}, Rows: []common.Row{{common.NewCell(common.CellText, v)}}}
}

func TestImporter_CancelledWhileBuilding(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := sheetDriver{sheets: []*common.Sheet{oneCell("a", "1"), oneCell("b", "2")}, after: cancel}

	out, err := runDriver(t, ctx, d, &converters.ImportOptions{BuildOnly: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, converters.ErrInterrupted)
	assert.Equal(t, converters.StateAborted, out.State)
	assert.Empty(t, out.Statements)
	assert.Empty(t, out.SQL)
}

func TestImporter_UnnamedSheets(t *testing.T) {
	d := sheetDriver{sheets: []*common.Sheet{oneCell("", "1"), oneCell("TABLE 1", "2"), oneCell("", "3")}}

	out, err := runDriver(t, context.Background(), d, &converters.ImportOptions{BuildOnly: true})
	require.NoError(t, err)
	require.Len(t, out.Tables, 3)
	assert.Equal(t, "TABLE 1", out.Tables[0].Name)
	assert.Equal(t, "TABLE 1_1", out.Tables[1].Name)
	assert.Equal(t, "TABLE 3", out.Tables[2].Name)
	assert.Contains(t, out.SQL, "CREATE TABLE IF NOT EXISTS `FIXED_DB`.`TABLE 1` (`A` varchar(1))")
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"csv", "excel", "fods", "html", "markdown", "ods"}, converters.Drivers())

	_, err := converters.Lookup("parquet")
	assert.ErrorIs(t, err, common.ErrUnknownDriver)

	_, err = converters.Open("parquet", strings.NewReader(""), nil)
	assert.ErrorIs(t, err, common.ErrUnknownDriver)

	for file, want := range map[string]string{
		"book.ods":     "ods",
		"book.ods.xml": "fods",
		"book.FODS":    "fods",
		"Report.XLSX":  "excel",
		"page.htm":     "html",
		"notes.md":     "markdown",
		"data.tsv":     "csv",
	} {
		got, err := converters.DriverFor(file)
		require.NoError(t, err, file)
		assert.Equal(t, want, got, file)
	}
	_, err = converters.DriverFor("archive.rar")
	assert.ErrorIs(t, err, common.ErrUnknownDriver)
	_, err = converters.DriverFor("README")
	assert.ErrorIs(t, err, common.ErrUnknownDriver)

	assert.Panics(t, func() { converters.Register("ods", nopDriver{}) })
	assert.Panics(t, func() { converters.Register("nil", nil) })
}
