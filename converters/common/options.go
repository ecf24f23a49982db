package common

import (
	"strings"
)

// ConversionConfig stores configuration options for the conversion process.
type ConversionConfig struct {
	Delimiter rune   // Delimiter used for CSV parsing, 0 detects it from the first line
	TableName string // Name of the table for single-table dialects (csv)
	Database  string // Existing target database; empty uses the dialect's synthetic name

	UseHeaderRow         bool // First row of every sheet supplies the column names
	RecognizePercentages bool
	RecognizeCurrency    bool
	DropEmptyRows        bool // Rows whose cells are all NULL are left out

	DecimalSeparator  rune // '.' when zero
	GroupingSeparator rune // ',' when zero; same as DecimalSeparator disables grouping
	TrueWords         []string
	FalseWords        []string

	Charset            string // DEFAULT CHARACTER SET of created objects
	Collation          string // COLLATE of created objects
	MaxStatementLength int    // Upper bound in bytes for one INSERT, 0 is unlimited
	DefaultColumnWidth int    // varchar width of a column holding only NULLs
}

// DefaultConversionConfig returns the settings used when callers pass nil.
func DefaultConversionConfig() *ConversionConfig {
	return &ConversionConfig{
		RecognizePercentages: true,
		RecognizeCurrency:    true,
		DecimalSeparator:     '.',
		GroupingSeparator:    ',',
		TrueWords:            []string{"true", "yes", "ja", "wahr", "oui", "vrai"},
		FalseWords:           []string{"false", "no", "nein", "falsch", "non", "faux"},
		Charset:              "utf8",
		Collation:            "utf8_general_ci",
		DefaultColumnWidth:   DefaultColumnWidth,
	}
}

// DetectDelimiter attempts to detect the delimiter from a raw line of text.
// It checks common delimiters and returns the one that produces the most fields.
// Defaults to comma if line is empty or no clear winner.
func DetectDelimiter(line string) rune {
	if line == "" {
		return ','
	}

	delimiters := []rune{',', '\t', ';', '|'}
	maxCount := -1
	winner := ','

	for _, delim := range delimiters {
		count := strings.Count(line, string(delim))
		if count > maxCount {
			maxCount = count
			winner = delim
		}
	}

	return winner
}
