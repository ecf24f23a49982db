package common

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLength is the MySQL limit for database, table and column names
// in characters.
const MaxIdentifierLength = 64

// NameSet hands out unique identifiers. Names are compared the way MySQL
// compares them on case-insensitive file systems.
type NameSet struct {
	taken map[string]struct{}
	fold  cases.Caser
}

// NewNameSet returns an empty set.
func NewNameSet() *NameSet {
	return &NameSet{taken: make(map[string]struct{}), fold: cases.Fold()}
}

// Claim sanitizes raw, falls back to fallback when nothing usable remains and
// appends _1, _2, ... until the name is free.
func (s *NameSet) Claim(raw, fallback string) string {
	name := SanitizeIdentifier(raw)
	if name == "" {
		name = SanitizeIdentifier(fallback)
	}
	if !s.has(name) {
		s.add(name)
		return name
	}
	for k := 1; ; k++ {
		suffix := fmt.Sprintf("_%d", k)
		candidate := truncateRunes(name, MaxIdentifierLength-len(suffix)) + suffix
		if !s.has(candidate) {
			s.add(candidate)
			return candidate
		}
	}
}

// ClaimTable claims the name of the sheet at position idx (zero-based).
// Unnamed sheets become "TABLE <n>" with n counting sheets from 1.
func (s *NameSet) ClaimTable(idx int, raw string) string {
	return s.Claim(raw, fmt.Sprintf("TABLE %d", idx+1))
}

func (s *NameSet) has(name string) bool {
	_, ok := s.taken[s.fold.String(name)]
	return ok
}

func (s *NameSet) add(name string) {
	s.taken[s.fold.String(name)] = struct{}{}
}

// SanitizeIdentifier returns raw in NFC form without NUL bytes or trailing
// white space, cut to MaxIdentifierLength characters.
func SanitizeIdentifier(raw string) string {
	name := norm.NFC.String(raw)
	name = strings.ReplaceAll(name, "\x00", "")
	name = rtrim(name)
	name = truncateRunes(name, MaxIdentifierLength)
	return rtrim(name)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// GenCompliantNames generates unique identifiers for rawnames in order.
// Names that sanitize to nothing take fallback(idx).
func GenCompliantNames(rawnames []string, fallback func(idx int) string) []string {
	set := NewNameSet()
	names := make([]string, len(rawnames))
	for idx, raw := range rawnames {
		names[idx] = set.Claim(raw, fallback(idx))
	}
	return names
}

// GenColumnNames generates column names from raw headers; blank headers
// become spreadsheet letters.
func GenColumnNames(rawheaders []string) []string {
	return GenCompliantNames(rawheaders, ColumnLetter)
}

// GenTableNames generates table names from sheet names with ClaimTable.
func GenTableNames(rawtables []string) []string {
	set := NewNameSet()
	names := make([]string, len(rawtables))
	for idx, raw := range rawtables {
		names[idx] = set.ClaimTable(idx, raw)
	}
	return names
}
