package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeGTIN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"ean13 left-padded to 14", "3245190000456", "03245190000456"},
		{"upc12 left-padded to 14", "012345678905", "00012345678905"},
		{"gtin8 left-padded to 14", "12345678", "00000012345678"},
		{"gtin14 unchanged", "13245190000456", "13245190000456"},
		{"dashes and spaces stripped", "3-245190 000456", "03245190000456"},
		{"too short rejected", "12345", ""},
		{"too long rejected", "123451900004561234", ""},
		{"letters only rejected", "not-a-gtin", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeGTIN(tt.input))
		})
	}
}

func TestNormalizeLWIN(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lwin7", "1234567", "1234567"},
		{"lwin11", "12345672015", "12345672015"},
		{"lwin16", "1234567201500750", "1234567201500750"},
		{"lwin18", "123456720150075012", "123456720150075012"},
		{"formatted input stripped", "LWIN-1234567", "1234567"},
		{"invalid length rejected", "123456", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeLWIN(tt.input))
		})
	}
}

func TestNormalizeWineName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases and trims", "  Chateau Margaux  ", "chateau margaux"},
		{"folds accents", "Château Lafite-Rothschild", "chateau lafiterothschild"},
		{"drops packaging noise", "Chateau Margaux 6 Bottle Case OWC", "chateau margaux 6"},
		{"keeps size words", "Chateau Margaux Magnum", "chateau margaux magnum"},
		{"collapses whitespace", "chateau   margaux", "chateau margaux"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeWineName(tt.input))
		})
	}
}

func TestNormalizeProducer(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"drops legal suffix", "Domaine Leflaive SARL", "domaine leflaive"},
		{"drops leading article", "The Wine Society", "wine society"},
		{"folds accents", "Château Pétrus", "chateau petrus"},
		{"plain name untouched", "Leflaive", "leflaive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeProducer(tt.input))
		})
	}
}

func TestCanonical(t *testing.T) {
	vintage := 2015
	volume := 750

	t.Run("full line", func(t *testing.T) {
		got := Canonical("Château Margaux", "Margaux Grand Vin", &vintage, &volume)
		assert.Equal(t, "chateau margaux margaux grand vin 2015 750ml", got)
	})

	t.Run("non-vintage uses NV token", func(t *testing.T) {
		got := Canonical("Krug", "Grande Cuvée", nil, &volume)
		assert.Equal(t, "krug grande cuvee NV 750ml", got)
	})

	t.Run("missing volume omitted", func(t *testing.T) {
		got := Canonical("Krug", "Grande Cuvée", &vintage, nil)
		assert.Equal(t, "krug grande cuvee 2015", got)
	})

	t.Run("two NV entries compare equal", func(t *testing.T) {
		a := Canonical("Krug", "Grande Cuvée", nil, nil)
		b := Canonical("KRUG", "grande cuvee", nil, nil)
		assert.Equal(t, a, b)
	})
}

func TestApplyChain(t *testing.T) {
	got := ApplyChain("  Hello, World!  ", "trim", "lowercase", "remove_punctuation")
	assert.Equal(t, "hello world", got)

	t.Run("unknown normalizer is a no-op", func(t *testing.T) {
		assert.Equal(t, "abc", Apply("abc", "does-not-exist"))
	})
}
