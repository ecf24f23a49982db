package config

import (
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"github.com/darianmavgo/mkimport/converters"
	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/darianmavgo/mkimport/source"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Config represents the application configuration.
type Config struct {
	// Parsing
	UseHeaderRow         bool     `hcl:"col_names,optional"`
	RecognizePercentages bool     `hcl:"recognize_percentages,optional"`
	RecognizeCurrency    bool     `hcl:"recognize_currency,optional"`
	DropEmptyRows        bool     `hcl:"drop_empty_rows,optional"`
	Delimiter            string   `hcl:"delimiter,optional"`
	DecimalSeparator     string   `hcl:"decimal_separator,optional"`
	GroupingSeparator    string   `hcl:"grouping_separator,optional"`
	TrueWords            []string `hcl:"true_words,optional"`
	FalseWords           []string `hcl:"false_words,optional"`
	TableName            string   `hcl:"table_name,optional"`

	// Statement building
	Database           string `hcl:"database,optional"`
	Charset            string `hcl:"charset,optional"`
	Collation          string `hcl:"collation,optional"`
	MaxStatementLength int    `hcl:"max_statement_length,optional"`
	DefaultColumnWidth int    `hcl:"default_column_width,optional"`

	// Run
	RowOffset          int    `hcl:"row_offset,optional"`
	RowLimit           int    `hcl:"row_limit,optional"`
	MaxElapsed         string `hcl:"max_elapsed,optional"` // Go duration, empty is unlimited
	StopOnError        bool   `hcl:"stop_on_error,optional"`
	SQLDisplayDisabled bool   `hcl:"sql_display_disabled,optional"`
	ReadChunkSize      int    `hcl:"read_chunk_size,optional"`

	// Source
	Compression   string `hcl:"compression,optional"`
	SourceCharset string `hcl:"source_charset,optional"`

	LogLevel  string `hcl:"log_level,optional"`
	LogFormat string `hcl:"log_format,optional"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	d := common.DefaultConversionConfig()
	return &Config{
		RecognizePercentages: d.RecognizePercentages,
		RecognizeCurrency:    d.RecognizeCurrency,
		DecimalSeparator:     string(d.DecimalSeparator),
		GroupingSeparator:    string(d.GroupingSeparator),
		TrueWords:            d.TrueWords,
		FalseWords:           d.FalseWords,
		Charset:              d.Charset,
		Collation:            d.Collation,
		DefaultColumnWidth:   d.DefaultColumnWidth,
		ReadChunkSize:        converters.DefaultReadChunkSize,
		Compression:          source.CompressionAuto.String(),
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load reads the configuration from the given HCL file.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(content, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file: %s", diags.Error())
	}

	cfg := DefaultConfig()
	diags = gohcl.DecodeBody(file.Body, nil, cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config: %s", diags.Error())
	}

	return cfg, nil
}

// Export writes the configuration to the specified file in HCL format.
func Export(path string, cfg *Config) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	root.SetAttributeValue("col_names", cty.BoolVal(cfg.UseHeaderRow))
	root.SetAttributeValue("recognize_percentages", cty.BoolVal(cfg.RecognizePercentages))
	root.SetAttributeValue("recognize_currency", cty.BoolVal(cfg.RecognizeCurrency))
	root.SetAttributeValue("drop_empty_rows", cty.BoolVal(cfg.DropEmptyRows))
	root.SetAttributeValue("delimiter", cty.StringVal(cfg.Delimiter))
	root.SetAttributeValue("decimal_separator", cty.StringVal(cfg.DecimalSeparator))
	root.SetAttributeValue("grouping_separator", cty.StringVal(cfg.GroupingSeparator))
	root.SetAttributeValue("true_words", stringList(cfg.TrueWords))
	root.SetAttributeValue("false_words", stringList(cfg.FalseWords))
	root.SetAttributeValue("table_name", cty.StringVal(cfg.TableName))
	root.AppendNewline()

	root.SetAttributeValue("database", cty.StringVal(cfg.Database))
	root.SetAttributeValue("charset", cty.StringVal(cfg.Charset))
	root.SetAttributeValue("collation", cty.StringVal(cfg.Collation))
	root.SetAttributeValue("max_statement_length", cty.NumberIntVal(int64(cfg.MaxStatementLength)))
	root.SetAttributeValue("default_column_width", cty.NumberIntVal(int64(cfg.DefaultColumnWidth)))
	root.AppendNewline()

	root.SetAttributeValue("row_offset", cty.NumberIntVal(int64(cfg.RowOffset)))
	root.SetAttributeValue("row_limit", cty.NumberIntVal(int64(cfg.RowLimit)))
	root.SetAttributeValue("max_elapsed", cty.StringVal(cfg.MaxElapsed))
	root.SetAttributeValue("stop_on_error", cty.BoolVal(cfg.StopOnError))
	root.SetAttributeValue("sql_display_disabled", cty.BoolVal(cfg.SQLDisplayDisabled))
	root.SetAttributeValue("read_chunk_size", cty.NumberIntVal(int64(cfg.ReadChunkSize)))
	root.AppendNewline()

	root.SetAttributeValue("compression", cty.StringVal(cfg.Compression))
	root.SetAttributeValue("source_charset", cty.StringVal(cfg.SourceCharset))
	root.SetAttributeValue("log_level", cty.StringVal(cfg.LogLevel))
	root.SetAttributeValue("log_format", cty.StringVal(cfg.LogFormat))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(f.Bytes())
	if err != nil {
		return fmt.Errorf("failed to write config to file: %w", err)
	}

	return nil
}

func stringList(values []string) cty.Value {
	if len(values) == 0 {
		return cty.ListValEmpty(cty.String)
	}
	vals := make([]cty.Value, len(values))
	for i, v := range values {
		vals[i] = cty.StringVal(v)
	}
	return cty.ListVal(vals)
}

// ConversionConfig maps the parsing and building settings.
func (c *Config) ConversionConfig() (*common.ConversionConfig, error) {
	delim, err := singleRune("delimiter", c.Delimiter)
	if err != nil {
		return nil, err
	}
	decimal, err := singleRune("decimal_separator", c.DecimalSeparator)
	if err != nil {
		return nil, err
	}
	grouping, err := singleRune("grouping_separator", c.GroupingSeparator)
	if err != nil {
		return nil, err
	}
	if c.MaxStatementLength < 0 {
		return nil, fmt.Errorf("max_statement_length must not be negative, got %d", c.MaxStatementLength)
	}
	width := c.DefaultColumnWidth
	if width <= 0 {
		width = common.DefaultColumnWidth
	}

	return &common.ConversionConfig{
		Delimiter:            delim,
		TableName:            c.TableName,
		Database:             c.Database,
		UseHeaderRow:         c.UseHeaderRow,
		RecognizePercentages: c.RecognizePercentages,
		RecognizeCurrency:    c.RecognizeCurrency,
		DropEmptyRows:        c.DropEmptyRows,
		DecimalSeparator:     decimal,
		GroupingSeparator:    grouping,
		TrueWords:            c.TrueWords,
		FalseWords:           c.FalseWords,
		Charset:              c.Charset,
		Collation:            c.Collation,
		MaxStatementLength:   c.MaxStatementLength,
		DefaultColumnWidth:   width,
	}, nil
}

// ImportOptions maps the run settings.
func (c *Config) ImportOptions() (*converters.ImportOptions, error) {
	var elapsed time.Duration
	if c.MaxElapsed != "" {
		d, err := time.ParseDuration(c.MaxElapsed)
		if err != nil {
			return nil, fmt.Errorf("invalid max_elapsed %q: %w", c.MaxElapsed, err)
		}
		elapsed = d
	}
	if c.RowOffset < 0 || c.RowLimit < 0 {
		return nil, fmt.Errorf("row_offset and row_limit must not be negative")
	}
	return &converters.ImportOptions{
		RowOffset:          c.RowOffset,
		RowLimit:           c.RowLimit,
		MaxElapsed:         elapsed,
		StopOnError:        c.StopOnError,
		SQLDisplayDisabled: c.SQLDisplayDisabled,
		ReadChunkSize:      c.ReadChunkSize,
	}, nil
}

// SourceOptions maps the source settings.
func (c *Config) SourceOptions() (source.Options, error) {
	comp, err := source.ParseCompression(c.Compression)
	if err != nil {
		return source.Options{}, err
	}
	return source.Options{Compression: comp, Charset: c.SourceCharset}, nil
}

func singleRune(name, s string) (rune, error) {
	switch utf8.RuneCountInString(s) {
	case 0:
		return 0, nil
	case 1:
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	}
	if s == `\t` {
		return '\t', nil
	}
	return 0, fmt.Errorf("%s must be a single character, got %q", name, s)
}
