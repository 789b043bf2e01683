package config

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	valid := []string{"English", "ChineseSimplified", "en", "fr", "pt-BR", "zh-Hant"}
	for _, s := range valid {
		lang, err := ParseLanguage(s)
		require.NoError(t, err, s)
		assert.Equal(t, Language(s), lang, "identifier must be kept verbatim")
	}

	for _, s := range []string{"", "not a language", "Klingonese", "en_US!"} {
		_, err := ParseLanguage(s)
		assert.Error(t, err, s)
	}
}

func TestLanguageCountryCode(t *testing.T) {
	assert.Equal(t, "US", Language("English").CountryCode())
	assert.Equal(t, "TW", Language("ChineseTraditional").CountryCode())
	assert.Equal(t, "BR", Language("pt-BR").CountryCode())
	assert.Equal(t, "UN", Language("not a language").CountryCode())
}

func TestDetectLanguage(t *testing.T) {
	candidates := []Language{"English", "French", "German"}

	tests := []struct {
		locale string
		want   Language
	}{
		{"fr_FR.UTF-8", "French"},
		{"de_AT", "German"},
		{"en_GB.UTF-8@euro", "English"},
		{"C", "English"},
		{"POSIX", "English"},
		{"", "English"},
		{"???", "English"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.locale, candidates, "English"))
		})
	}

	assert.Equal(t, Language("Spanish"), DetectLanguage("fr_FR", nil, "Spanish"))
}

func TestCatalogLanguages(t *testing.T) {
	langs := CatalogLanguages()
	require.NotEmpty(t, langs)
	assert.Contains(t, langs, Language("English"))
	assert.True(t, sort.SliceIsSorted(langs, func(i, j int) bool { return langs[i] < langs[j] }))
}
