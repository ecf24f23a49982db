package common

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Recognizer tags raw cell text for dialects that carry no type markers
// (delimited text, HTML, Markdown). Order: boolean, number, percentage,
// currency, text.
type Recognizer struct {
	decimal     rune
	grouping    rune
	percentages bool
	currency    bool
	words       map[string]struct{}
}

// NewRecognizer builds a Recognizer from the locale settings in config.
func NewRecognizer(config *ConversionConfig) *Recognizer {
	if config == nil {
		config = DefaultConversionConfig()
	}
	r := &Recognizer{
		decimal:     config.DecimalSeparator,
		grouping:    config.GroupingSeparator,
		percentages: config.RecognizePercentages,
		currency:    config.RecognizeCurrency,
		words:       make(map[string]struct{}),
	}
	if r.decimal == 0 {
		r.decimal = '.'
	}
	if r.grouping == 0 {
		r.grouping = ','
	}
	for _, w := range config.TrueWords {
		r.words[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range config.FalseWords {
		r.words[strings.ToLower(w)] = struct{}{}
	}
	return r
}

// Recognize returns the tagged cell for raw. Boolean, number and text cells
// keep raw verbatim; percentage and currency cells render their canonical
// decimal value (see CanonicalDecimal), the same literal the typed
// spreadsheet dialects emit.
func (r *Recognizer) Recognize(raw string) Cell {
	if raw == "" {
		return Null
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return NewCell(CellText, raw)
	}

	if _, ok := r.words[strings.ToLower(s)]; ok {
		return NewCell(CellBoolean, raw)
	}
	if r.IsNumber(s) {
		return NewCell(CellNumber, raw)
	}
	if r.percentages && strings.HasSuffix(s, "%") {
		n := strings.TrimSpace(strings.TrimSuffix(s, "%"))
		if r.IsNumber(n) {
			return NewCell(CellPercentage, ShiftDecimal(r.normalize(n), -2))
		}
	}
	if r.currency {
		if n, ok := stripCurrency(s); ok && r.IsNumber(n) {
			return NewCell(CellCurrency, CanonicalDecimal(r.normalize(n)))
		}
	}
	return NewCell(CellText, raw)
}

// IsNumber reports whether s is a plain decimal number in the configured
// locale: optional sign, digits optionally grouped in threes, optional
// fraction.
func (r *Recognizer) IsNumber(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, string(r.decimal))
	if hasFrac && !allDigits(frac) {
		return false
	}
	if intPart == "" {
		return hasFrac && frac != ""
	}
	if allDigits(intPart) {
		return true
	}
	if r.grouping == r.decimal {
		return false
	}
	groups := strings.Split(intPart, string(r.grouping))
	if len(groups[0]) == 0 || len(groups[0]) > 3 || !allDigits(groups[0]) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !allDigits(g) {
			return false
		}
	}
	return true
}

// normalize strips grouping and sign noise and uses '.' as decimal point.
func (r *Recognizer) normalize(s string) string {
	s = strings.TrimPrefix(s, "+")
	if r.grouping != r.decimal {
		s = strings.ReplaceAll(s, string(r.grouping), "")
	}
	return strings.ReplaceAll(s, string(r.decimal), ".")
}

// stripCurrency removes one currency symbol or three-letter ISO code at
// either end of s.
func stripCurrency(s string) (string, bool) {
	if first, size := utf8.DecodeRuneInString(s); unicode.Is(unicode.Sc, first) {
		return strings.TrimSpace(s[size:]), true
	}
	if last, size := utf8.DecodeLastRuneInString(s); unicode.Is(unicode.Sc, last) {
		return strings.TrimSpace(s[:len(s)-size]), true
	}
	if code, rest, ok := strings.Cut(s, " "); ok && isCurrencyCode(code) {
		return strings.TrimSpace(rest), true
	}
	if i := strings.LastIndexByte(s, ' '); i > 0 && isCurrencyCode(s[i+1:]) {
		return strings.TrimSpace(s[:i]), true
	}
	return "", false
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ShiftDecimal moves the decimal point of a plain decimal string by places
// (negative is left) without going through floating point: "5" by -2 is
// "0.05".
func ShiftDecimal(s string, places int) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	digits := intPart + frac
	point := len(intPart) + places
	switch {
	case point <= 0:
		digits = "0." + strings.Repeat("0", -point) + digits
	case point >= len(digits):
		digits += strings.Repeat("0", point-len(digits))
	default:
		digits = digits[:point] + "." + digits[point:]
	}
	return sign + CanonicalDecimal(digits)
}

// CanonicalDecimal renders a decimal string without redundant zeros, the way
// spreadsheet applications print office:value attributes: "1.250" is
// "1.25", "007" is "7". Exponent notation is expanded.
func CanonicalDecimal(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "eE") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return s
	}
	sign := ""
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		if s[0] == '-' {
			sign = "-"
		}
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if !allDigits(intPart+frac) && intPart+frac != "" {
		return sign + s
	}
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		if intPart == "0" {
			return "0"
		}
		return sign + intPart
	}
	return sign + intPart + "." + frac
}
