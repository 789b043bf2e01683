package config

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Language identifies a translation language. It is either an engine
// language name ("English", "ChineseSimplified") or a BCP 47 tag ("en", "pt-BR").
// The identifier is kept verbatim; lookups are exact.
type Language string

func (l Language) String() string {
	return string(l)
}

type languageInfo struct {
	tag     string
	country string
}

// languageCatalog lists the named languages and their culture tag and
// two-letter country code.
var languageCatalog = map[Language]languageInfo{
	"Afrikaans":          {"af", "ZA"},
	"Arabic":             {"ar", "SA"},
	"Basque":             {"eu", "ES"},
	"Belarusian":         {"be", "BY"},
	"Bulgarian":          {"bg", "BG"},
	"Catalan":            {"ca", "ES"},
	"Chinese":            {"zh", "CN"},
	"ChineseSimplified":  {"zh-CN", "CN"},
	"ChineseTraditional": {"zh-TW", "TW"},
	"Czech":              {"cs", "CZ"},
	"Danish":             {"da", "DK"},
	"Dutch":              {"nl", "NL"},
	"English":            {"en", "US"},
	"Estonian":           {"et", "EE"},
	"Faroese":            {"fo", "FO"},
	"Finnish":            {"fi", "FI"},
	"French":             {"fr", "FR"},
	"German":             {"de", "DE"},
	"Greek":              {"el", "GR"},
	"Hebrew":             {"he", "IL"},
	"Hindi":              {"hi", "IN"},
	"Hungarian":          {"hu", "HU"},
	"Icelandic":          {"is", "IS"},
	"Indonesian":         {"id", "ID"},
	"Italian":            {"it", "IT"},
	"Japanese":           {"ja", "JP"},
	"Korean":             {"ko", "KR"},
	"Latvian":            {"lv", "LV"},
	"Lithuanian":         {"lt", "LT"},
	"Norwegian":          {"no", "NO"},
	"Polish":             {"pl", "PL"},
	"Portuguese":         {"pt", "PT"},
	"Romanian":           {"ro", "RO"},
	"Russian":            {"ru", "RU"},
	"SerboCroatian":      {"sr", "RS"},
	"Slovak":             {"sk", "SK"},
	"Slovenian":          {"sl", "SI"},
	"Spanish":            {"es", "ES"},
	"Swedish":            {"sv", "SE"},
	"Thai":               {"th", "TH"},
	"Turkish":            {"tr", "TR"},
	"Ukrainian":          {"uk", "UA"},
	"Vietnamese":         {"vi", "VN"},
}

// ParseLanguage validates a language identifier. Catalog names are matched
// exactly; anything else must be a known BCP 47 tag.
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return "", fmt.Errorf("empty language name")
	}
	if _, ok := languageCatalog[Language(s)]; ok {
		return Language(s), nil
	}
	if _, err := language.Parse(s); err != nil {
		return "", fmt.Errorf("invalid language %q: %w", s, err)
	}
	return Language(s), nil
}

// Tag returns the BCP 47 tag of the language.
func (l Language) Tag() (language.Tag, error) {
	if info, ok := languageCatalog[l]; ok {
		return language.MustParse(info.tag), nil
	}
	return language.Parse(string(l))
}

// CountryCode returns the two-letter country code used to display the
// language, or "UN" when unknown.
func (l Language) CountryCode() string {
	if info, ok := languageCatalog[l]; ok {
		return info.country
	}
	tag, err := language.Parse(string(l))
	if err != nil {
		return "UN"
	}
	region, conf := tag.Region()
	if conf == language.No {
		return "UN"
	}
	return region.String()
}

// DetectLanguage maps a POSIX locale string (the value of LANG, e.g.
// "fr_FR.UTF-8") onto the closest of the candidate languages. It returns
// fallback when the locale is unusable or nothing matches.
func DetectLanguage(locale string, candidates []Language, fallback Language) Language {
	if len(candidates) == 0 {
		return fallback
	}

	locale, _, _ = strings.Cut(locale, ".")
	locale, _, _ = strings.Cut(locale, "@")
	locale = strings.ReplaceAll(locale, "_", "-")
	if locale == "" || locale == "C" || locale == "POSIX" {
		return fallback
	}

	want, err := language.Parse(locale)
	if err != nil {
		return fallback
	}

	tags := make([]language.Tag, 0, len(candidates))
	usable := make([]Language, 0, len(candidates))
	for _, c := range candidates {
		tag, err := c.Tag()
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		usable = append(usable, c)
	}
	if len(tags) == 0 {
		return fallback
	}

	_, index, conf := language.NewMatcher(tags).Match(want)
	if conf == language.No {
		return fallback
	}
	return usable[index]
}

// CatalogLanguages returns every named language, sorted.
func CatalogLanguages() []Language {
	langs := make([]Language, 0, len(languageCatalog))
	for l := range languageCatalog {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}
