package converters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/darianmavgo/mkimport/logging"
	"github.com/google/uuid"
)

var ErrInterrupted = errors.New("operation interrupted by user")

// DefaultReadChunkSize is the source read size when ImportOptions leaves it unset.
const DefaultReadChunkSize = 64 * 1024

var errBudget = fmt.Errorf("%w: elapsed time budget exhausted", common.ErrResourceLimit)
var errRowLimit = fmt.Errorf("%w: row limit reached", common.ErrResourceLimit)

// State is the lifecycle position of an Importer.
type State int

const (
	StateIdle State = iota
	StateReading
	StateParsing
	StateBuilding
	StateExecuting
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateParsing:
		return "parsing"
	case StateBuilding:
		return "building"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var transitions = map[State][]State{
	StateIdle:      {StateReading},
	StateReading:   {StateParsing},
	StateParsing:   {StateBuilding},
	StateBuilding:  {StateExecuting, StateFinished},
	StateExecuting: {StateFinished},
}

// ImportOptions defines configuration for the import process.
type ImportOptions struct {
	RowOffset          int           // Data rows skipped across the whole import, in source order
	RowLimit           int           // Data rows emitted at most, 0 is unlimited
	MaxElapsed         time.Duration // Budget checked at sheet and table boundaries, 0 is unlimited
	BuildOnly          bool          // Return the SQL text without executing it
	StopOnError        bool          // Abort at the first statement the sink rejects
	SQLDisplayDisabled bool          // Leave the SQL text out of execute-mode outcomes
	ReadChunkSize      int
	RunID              string // Generated when empty
}

// TableSummary describes one created table.
type TableSummary struct {
	Name    string
	Columns []common.Column
	Rows    int // rows emitted after offset and limit
}

// Outcome reports what a run did.
type Outcome struct {
	RunID             string
	Database          string
	State             State
	Statements        []string // every built statement, without delimiter
	Executed          int
	Failed            []*common.StatementError
	SQL               string
	SQLDisplaySkipped bool
	Notices           []string
	Tables            []TableSummary
	Truncated         bool
	TruncatedBy       error // wraps common.ErrResourceLimit
}

// Importer runs one file through parse, build and execute.
type Importer struct {
	driver   common.Driver
	config   *common.ConversionConfig
	opts     ImportOptions
	sink     common.Sink
	state    State
	watchdog *common.Watchdog
	budget   <-chan struct{} // closed once MaxElapsed has passed
	logger   *slog.Logger
}

// NewImporter prepares a run. sink may be nil in build-only mode.
func NewImporter(driver common.Driver, config *common.ConversionConfig, opts *ImportOptions, sink common.Sink) *Importer {
	if config == nil {
		config = common.DefaultConversionConfig()
	}
	im := &Importer{driver: driver, config: config, sink: sink}
	if opts != nil {
		im.opts = *opts
	}
	if im.opts.ReadChunkSize <= 0 {
		im.opts.ReadChunkSize = DefaultReadChunkSize
	}
	if im.opts.RunID == "" {
		im.opts.RunID = uuid.NewString()
	}
	return im
}

// State returns the current lifecycle state.
func (im *Importer) State() State {
	return im.state
}

// transition moves to the next state. An invalid transition is a bug.
func (im *Importer) transition(to State) {
	from := im.state
	ok := to == StateAborted && from != StateFinished && from != StateAborted
	for _, s := range transitions[from] {
		ok = ok || s == to
	}
	if !ok {
		panic(fmt.Sprintf("converters: invalid importer transition %s -> %s", from, to))
	}
	im.state = to
	if im.logger != nil {
		im.logger.Debug("state changed", "from", from.String(), "to", to.String())
	}
}

func (im *Importer) expired() bool {
	select {
	case <-im.budget:
		return true
	default:
		return false
	}
}

type builtTable struct {
	summary TableSummary
	inserts []string
}

// Run imports the document read from src. The returned Outcome is non-nil
// even when the run aborts.
func (im *Importer) Run(ctx context.Context, src common.ChunkReader) (*Outcome, error) {
	out := &Outcome{RunID: im.opts.RunID}
	im.logger = logging.WithFields(ctx, "run_id", im.opts.RunID)
	ctx = common.WithRunID(logging.WithLogger(ctx, im.logger), im.opts.RunID)

	im.transition(StateReading)
	if !im.opts.BuildOnly && im.sink == nil {
		return im.abort(out, errors.New("converters: execute mode needs a sink"))
	}

	im.watchdog = common.NewWatchdog(im.opts.MaxElapsed)
	im.budget = im.watchdog.Start()
	defer im.watchdog.Stop()

	data, err := im.read(src)
	if err != nil {
		return im.abort(out, err)
	}

	im.transition(StateParsing)
	sheets, err := im.parse(ctx, data, out)
	if err != nil {
		return im.abort(out, err)
	}
	im.logger = im.logger.With("database", out.Database)

	im.transition(StateBuilding)
	tables, err := im.build(ctx, sheets, out)
	if err != nil {
		return im.abort(out, err)
	}

	if im.opts.BuildOnly {
		out.SQL = common.JoinStatements(out.Statements)
		im.finish(out)
		return out, nil
	}

	im.transition(StateExecuting)
	if err := im.execute(ctx, tables, out); err != nil {
		return im.abort(out, err)
	}
	if im.opts.SQLDisplayDisabled {
		out.SQLDisplaySkipped = true
	} else {
		out.SQL = common.JoinStatements(out.Statements)
	}
	im.finish(out)
	return out, nil
}

func (im *Importer) read(src common.ChunkReader) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := src.ReadChunk(im.opts.ReadChunkSize)
		buf.Write(chunk)
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			if errors.Is(err, common.ErrIO) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", common.ErrIO, err)
		}
	}
}

func (im *Importer) parse(ctx context.Context, data []byte, out *Outcome) ([]*common.Sheet, error) {
	provider, err := im.driver.Open(bytes.NewReader(data), im.config)
	if err != nil {
		return nil, err
	}
	if c, ok := provider.(io.Closer); ok {
		defer c.Close()
	}

	out.Database = provider.DatabaseName()
	if im.config.Database != "" {
		out.Database = common.SanitizeIdentifier(im.config.Database)
	}

	var sheets []*common.Sheet
	err = provider.ScanSheets(ctx, func(s *common.Sheet) error {
		sheets = append(sheets, s)
		if im.expired() {
			return errBudget
		}
		return nil
	})
	switch {
	case errors.Is(err, errBudget):
		im.truncate(out, errBudget)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
	case err != nil:
		return nil, err
	}
	return sheets, nil
}

// build turns sheets into statements: the database, every table, then the
// rows of each table in order.
func (im *Importer) build(ctx context.Context, sheets []*common.Sheet, out *Outcome) ([]builtTable, error) {
	names := common.NewNameSet()
	skip := im.opts.RowOffset
	remaining := im.opts.RowLimit

	var tables []builtTable
	var creates []string
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		if im.expired() {
			im.truncate(out, errBudget)
			break
		}
		table := &common.Table{
			Name:    names.ClaimTable(i, sheet.Name),
			Columns: common.InferColumns(common.GenColumnNames(sheet.Columns), sheet.Rows, im.config.DefaultColumnWidth),
			Rows:    sheet.Rows,
		}
		creates = append(creates, common.GenCreateTableSQL(out.Database, table, im.config.Charset, im.config.Collation))

		rows := table.Rows
		n := min(skip, len(rows))
		rows, skip = rows[n:], skip-n
		if im.opts.RowLimit > 0 {
			if len(rows) > remaining {
				rows = rows[:remaining]
				im.truncate(out, errRowLimit)
			}
			remaining -= len(rows)
		}
		table.Rows = rows

		im.logger.Info("table built", "table", table.Name, "columns", len(table.Columns), "rows", len(rows))
		tables = append(tables, builtTable{
			summary: TableSummary{Name: table.Name, Columns: table.Columns, Rows: len(rows)},
			inserts: common.GenInsertSQL(out.Database, table, im.config.MaxStatementLength),
		})
	}

	if len(tables) == 0 {
		return nil, nil
	}
	if im.config.Database == "" {
		out.Statements = append(out.Statements, common.GenCreateDatabaseSQL(out.Database, im.config.Charset, im.config.Collation))
	}
	out.Statements = append(out.Statements, creates...)
	tableNames := make([]string, len(tables))
	for i, t := range tables {
		out.Statements = append(out.Statements, t.inserts...)
		out.Tables = append(out.Tables, t.summary)
		tableNames[i] = t.summary.Name
	}
	out.Notices = common.GenNotices(out.Database, tableNames)
	return tables, nil
}

// execute submits statements in order. The budget and cancellation are
// checked before the schema block and before the rows of each table.
func (im *Importer) execute(ctx context.Context, tables []builtTable, out *Outcome) error {
	schema := len(out.Statements)
	for _, t := range tables {
		schema -= len(t.inserts)
	}

	idx := 0
	run := func(stmts []string) error {
		for _, stmt := range stmts {
			i := idx
			idx++
			if err := im.sink.Exec(ctx, stmt); err != nil {
				se := &common.StatementError{Index: i, Statement: stmt, Err: err}
				out.Failed = append(out.Failed, se)
				im.logger.Warn("statement failed", "index", i, "error", err)
				if im.opts.StopOnError {
					return se
				}
				continue
			}
			out.Executed++
		}
		return nil
	}

	groups := [][]string{out.Statements[:schema]}
	for _, t := range tables {
		groups = append(groups, t.inserts)
	}
	for g, stmts := range groups {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrInterrupted, err)
		}
		if im.expired() {
			im.truncate(out, errBudget)
			return nil
		}
		if err := run(stmts); err != nil {
			return err
		}
		if g > 0 {
			im.logger.Info("finished table", "table", tables[g-1].summary.Name, "rows", tables[g-1].summary.Rows)
		}
	}
	return nil
}

func (im *Importer) truncate(out *Outcome, reason error) {
	if out.Truncated {
		return
	}
	out.Truncated = true
	out.TruncatedBy = reason
	im.logger.Warn("import truncated", "reason", reason)
}

func (im *Importer) finish(out *Outcome) {
	im.transition(StateFinished)
	out.State = im.state
	im.logger.Info("import finished",
		"tables", len(out.Tables),
		"statements", len(out.Statements),
		"executed", out.Executed,
		"failed", len(out.Failed),
		"truncated", out.Truncated,
	)
}

func (im *Importer) abort(out *Outcome, err error) (*Outcome, error) {
	im.transition(StateAborted)
	out.State = im.state
	im.logger.Error("import aborted", "error", err)
	return out, err
}
