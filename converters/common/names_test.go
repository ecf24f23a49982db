package common

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestGenTableNames(t *testing.T) {
	raw := []string{"Shop", "", "shop", "Shop ", "Feuille 1", ""}
	want := []string{"Shop", "TABLE 2", "shop_1", "Shop_2", "Feuille 1", "TABLE 6"}
	assert.Equal(t, want, GenTableNames(raw))
}

func TestGenColumnNames(t *testing.T) {
	raw := []string{"value", "", "value", "VALUE", "B"}
	want := []string{"value", "B", "value_1", "VALUE_2", "B_1"}
	assert.Equal(t, want, GenColumnNames(raw))
}

func TestGenColumnNames_Idempotent(t *testing.T) {
	raw := []string{"a", "a", " ", "weird`name"}
	assert.Equal(t, GenColumnNames(raw), GenColumnNames(raw))
}

func TestSanitizeIdentifier(t *testing.T) {
	// e + combining acute accent composes to one rune
	assert.Equal(t, "caf\u00e9", SanitizeIdentifier("cafe\u0301"))
	assert.Equal(t, "ab", SanitizeIdentifier("a\x00b \t"))

	long := strings.Repeat("ü", 70)
	assert.Equal(t, MaxIdentifierLength, utf8.RuneCountInString(SanitizeIdentifier(long)))
}

func TestNameSet_LongCollision(t *testing.T) {
	set := NewNameSet()
	long := strings.Repeat("x", 80)
	first := set.Claim(long, "A")
	second := set.Claim(long, "A")
	assert.Len(t, first, MaxIdentifierLength)
	assert.Len(t, second, MaxIdentifierLength)
	assert.True(t, strings.HasSuffix(second, "_1"))
}

func TestNameSet_ClaimTable(t *testing.T) {
	set := NewNameSet()
	assert.Equal(t, "TABLE 1", set.ClaimTable(0, ""))
	assert.Equal(t, "TABLE 1_1", set.ClaimTable(1, "TABLE 1"))
	assert.Equal(t, "TABLE 3", set.ClaimTable(2, "  "))
	assert.Equal(t, "Shop", set.ClaimTable(3, "Shop"))
}
