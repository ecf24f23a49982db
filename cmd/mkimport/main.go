// Package main provides the mkimport CLI: it turns spreadsheet and table
// dumps into MySQL statements and optionally runs them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/darianmavgo/mkimport/config"
	"github.com/darianmavgo/mkimport/converters"
	_ "github.com/darianmavgo/mkimport/converters/all"
	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/darianmavgo/mkimport/logging"
	"github.com/darianmavgo/mkimport/sink"
	"github.com/darianmavgo/mkimport/source"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, converters.ErrInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

// cli carries the settings resolved before a command runs.
type cli struct {
	cfg      *config.Config
	openSink func(ctx context.Context, dsn, journal string) (common.Sink, func() error, error)
}

func newRootCmd() *cobra.Command {
	return newCommand(&cli{openSink: openSink})
}

func newCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "mkimport [flags] <input>",
		Short: "Convert spreadsheets and table dumps into MySQL statements",
		Long: `mkimport reads an OpenDocument spreadsheet (.ods, .fods), an XLSX workbook,
HTML or Markdown tables or delimited text, optionally compressed, and builds
CREATE DATABASE, CREATE TABLE and INSERT statements for MySQL.

Without --dsn or --journal the statements are written as a ";;" delimited
script to --sql or stdout.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         c.runImport,
	}
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return c.setup(cmd)
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "HCL configuration file")
	pf.String("dsn", "", "MySQL DSN (user:pass@tcp(host:3306)/) to execute statements on")
	pf.String("journal", "", "SQLite file recording every executed statement")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-format", "", "Log format: text, json")
	pf.Bool("stop-on-error", false, "Abort at the first statement the server rejects")

	f := root.Flags()
	f.StringP("sql", "o", "", "Write the generated script to this file (- for stdout)")
	f.String("driver", "", "Input dialect, detected from the file name when empty")
	f.Bool("col-names", false, "First row of every sheet holds the column names")
	f.Bool("recognize-percentages", true, "Store percentages as their decimal value")
	f.Bool("recognize-currency", true, "Store currency amounts as their decimal value")
	f.Bool("drop-empty-rows", false, "Leave out rows whose cells are all empty")
	f.String("database", "", "Existing target database; no CREATE DATABASE is emitted")
	f.String("table-name", "", "Table name for delimited text input")
	f.String("delimiter", "", "Field delimiter for delimited text, detected when empty")
	f.String("decimal-separator", "", "Decimal separator of untyped numbers")
	f.String("grouping-separator", "", "Digit grouping separator of untyped numbers")
	f.String("charset", "", "DEFAULT CHARACTER SET of created objects")
	f.String("collation", "", "COLLATE of created objects")
	f.Int("max-statement-length", 0, "Split INSERT statements above this many bytes, 0 is unlimited")
	f.Int("row-offset", 0, "Skip this many data rows across the whole import")
	f.Int("row-limit", 0, "Emit at most this many data rows, 0 is unlimited")
	f.String("max-elapsed", "", "Elapsed time budget, e.g. 30s")
	f.Bool("no-sql-display", false, "Do not print the script after executing it")
	f.String("compression", "", "Source compression: auto, none, gz, bz2, xz, zstd")
	f.String("source-charset", "", "Source text encoding label, e.g. windows-1252")

	root.AddCommand(c.newExecCmd(), newDriversCmd(), c.newWriteConfigCmd())
	return root
}

// setup loads the configuration file, applies flag overrides and configures
// logging.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := applyFlags(cmd.Flags(), cfg); err != nil {
		return err
	}
	c.cfg = cfg
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return nil
}

// applyFlags copies every flag set on the command line into cfg.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		var e error
		switch f.Name {
		case "col-names":
			cfg.UseHeaderRow, e = fs.GetBool(f.Name)
		case "recognize-percentages":
			cfg.RecognizePercentages, e = fs.GetBool(f.Name)
		case "recognize-currency":
			cfg.RecognizeCurrency, e = fs.GetBool(f.Name)
		case "drop-empty-rows":
			cfg.DropEmptyRows, e = fs.GetBool(f.Name)
		case "stop-on-error":
			cfg.StopOnError, e = fs.GetBool(f.Name)
		case "no-sql-display":
			cfg.SQLDisplayDisabled, e = fs.GetBool(f.Name)
		case "database":
			cfg.Database, e = fs.GetString(f.Name)
		case "table-name":
			cfg.TableName, e = fs.GetString(f.Name)
		case "delimiter":
			cfg.Delimiter, e = fs.GetString(f.Name)
		case "decimal-separator":
			cfg.DecimalSeparator, e = fs.GetString(f.Name)
		case "grouping-separator":
			cfg.GroupingSeparator, e = fs.GetString(f.Name)
		case "charset":
			cfg.Charset, e = fs.GetString(f.Name)
		case "collation":
			cfg.Collation, e = fs.GetString(f.Name)
		case "max-elapsed":
			cfg.MaxElapsed, e = fs.GetString(f.Name)
		case "compression":
			cfg.Compression, e = fs.GetString(f.Name)
		case "source-charset":
			cfg.SourceCharset, e = fs.GetString(f.Name)
		case "log-level":
			cfg.LogLevel, e = fs.GetString(f.Name)
		case "log-format":
			cfg.LogFormat, e = fs.GetString(f.Name)
		case "max-statement-length":
			cfg.MaxStatementLength, e = fs.GetInt(f.Name)
		case "row-offset":
			cfg.RowOffset, e = fs.GetInt(f.Name)
		case "row-limit":
			cfg.RowLimit, e = fs.GetInt(f.Name)
		}
		if err == nil {
			err = e
		}
	})
	return err
}

// openSink builds the execute-mode sink chain. It returns a nil sink when
// neither a server nor a journal is configured.
func openSink(ctx context.Context, dsn, journal string) (common.Sink, func() error, error) {
	var s common.Sink
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	if dsn != "" {
		m, err := sink.OpenMySQL(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := m.Ping(ctx); err != nil {
			_ = m.Close()
			return nil, nil, fmt.Errorf("%w: MySQL server unreachable: %v", common.ErrIO, err)
		}
		closers = append(closers, m.Close)
		s = m
	}
	if journal != "" {
		j, err := sink.OpenJournal(journal, s)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, j.Close)
		s = j
	}
	return s, closeAll, nil
}

func (c *cli) runImport(cmd *cobra.Command, args []string) error {
	input := args[0]
	name, _ := cmd.Flags().GetString("driver")
	if name == "" {
		var err error
		if name, err = driverName(input); err != nil {
			return err
		}
	}
	driver, err := converters.Lookup(name)
	if err != nil {
		return err
	}

	conv, err := c.cfg.ConversionConfig()
	if err != nil {
		return err
	}
	opts, err := c.cfg.ImportOptions()
	if err != nil {
		return err
	}
	srcOpts, err := c.cfg.SourceOptions()
	if err != nil {
		return err
	}

	h, err := source.Open(input, srcOpts)
	if err != nil {
		return err
	}
	defer h.Close()

	dsn, _ := cmd.Flags().GetString("dsn")
	journal, _ := cmd.Flags().GetString("journal")
	s, closeSink, err := c.openSink(cmd.Context(), dsn, journal)
	if err != nil {
		return err
	}
	defer closeSink()
	opts.BuildOnly = s == nil

	out, err := converters.NewImporter(driver, conv, opts, s).Run(cmd.Context(), h)
	report(cmd.ErrOrStderr(), out)
	if err != nil {
		return err
	}

	sqlPath, _ := cmd.Flags().GetString("sql")
	if out.SQL != "" && (sqlPath != "" || opts.BuildOnly) {
		if err := writeScript(cmd.OutOrStdout(), sqlPath, out.SQL); err != nil {
			return err
		}
	}
	return failedError(out)
}

// failedError reports rejected statements of a run that otherwise finished.
func failedError(out *converters.Outcome) error {
	if len(out.Failed) == 0 {
		return nil
	}
	errs := make([]error, len(out.Failed))
	for i, f := range out.Failed {
		errs[i] = f
	}
	return fmt.Errorf("%d of %d statements failed: %w", len(out.Failed), len(out.Statements), errors.Join(errs...))
}

func writeScript(stdout io.Writer, path, script string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, script+"\n")
		return err
	}
	if err := os.WriteFile(path, []byte(script), 0644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

func report(w io.Writer, out *converters.Outcome) {
	if out == nil {
		return
	}
	for _, n := range out.Notices {
		fmt.Fprintln(w, n)
	}
	for _, f := range out.Failed {
		fmt.Fprintf(w, "statement %d failed: %v\n", f.Index, f.Err)
	}
	if out.Truncated {
		fmt.Fprintf(w, "import truncated: %v\n", out.TruncatedBy)
	}
}

func (c *cli) newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <script.sql>",
		Short: "Execute a saved \";;\" delimited script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dsn, _ := cmd.Flags().GetString("dsn")
			journal, _ := cmd.Flags().GetString("journal")
			s, closeSink, err := c.openSink(cmd.Context(), dsn, journal)
			if err != nil {
				return err
			}
			if s == nil {
				return errors.New("exec needs --dsn or --journal")
			}
			defer closeSink()

			srcOpts, err := c.cfg.SourceOptions()
			if err != nil {
				return err
			}
			h, err := source.Open(args[0], srcOpts)
			if err != nil {
				return err
			}
			defer h.Close()
			script, err := io.ReadAll(h)
			if err != nil {
				return err
			}

			n, failed, err := execScript(cmd.Context(), s, string(script), c.cfg.StopOnError)
			fmt.Fprintf(cmd.ErrOrStderr(), "executed %d statements, %d failed\n", n, failed)
			return err
		},
	}
}

// execScript runs every statement of script. It returns the number executed
// successfully and the number rejected.
func execScript(ctx context.Context, s common.Sink, script string, stopOnError bool) (int, int, error) {
	runID := uuid.NewString()
	logger := logging.WithFields(ctx, "run_id", runID)
	ctx = common.WithRunID(logging.WithLogger(ctx, logger), runID)

	executed, failed := 0, 0
	var errs []error
	for i, stmt := range common.SplitStatements(script) {
		if err := ctx.Err(); err != nil {
			return executed, failed, fmt.Errorf("%w: %v", converters.ErrInterrupted, err)
		}
		if err := s.Exec(ctx, stmt); err != nil {
			failed++
			se := &common.StatementError{Index: i, Statement: stmt, Err: err}
			logger.Warn("statement failed", "index", i, "error", err)
			if stopOnError {
				return executed, failed, se
			}
			errs = append(errs, se)
			continue
		}
		executed++
	}
	return executed, failed, errors.Join(errs...)
}

func newDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List the registered input dialects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, name := range converters.Drivers() {
				driver, err := converters.Lookup(name)
				if err != nil {
					return err
				}
				props := driver.Properties()
				exts := make([]string, len(props.Extensions))
				for i, e := range props.Extensions {
					exts[i] = "." + e
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, props.Description, strings.Join(exts, " "))
			}
			return w.Flush()
		},
	}
}

func (c *cli) newWriteConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "write-config <file.hcl>",
		Short: "Write the effective configuration as HCL",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return config.Export(args[0], c.cfg)
		},
	}
}
