// Package config implements the smartcfg data model: typed values, their
// JSON wire form, and parsing of versioned config documents into an
// immutable, validated dataset.
package config

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/davidthor/smartcfg/pkg/errors"
)

// CurrentVersion is the only document version this package understands.
const CurrentVersion = 1

// FileName is the conventional name of a config document.
const FileName = "RemoteConfig.json"

// Entry is a single configuration item.
type Entry struct {
	Key      string
	Category string
	Value    Value
}

// Type returns the declared type of the entry.
func (e Entry) Type() ValueType {
	return e.Value.Type()
}

// PlatformBlock is the entry list scoped to one runtime platform.
type PlatformBlock struct {
	Platform Platform
	Entries  []Entry
}

// Document is the result of parsing one JSON payload. It must be treated as
// read-only once returned; a new payload produces a new Document.
type Document struct {
	Version   int
	Entries   []Entry
	Platforms []PlatformBlock

	// Languages is every language seen in an accepted translatable entry,
	// in first-seen order.
	Languages []Language

	// Categories is every non-empty category seen among global entries, in
	// first-seen order.
	Categories []string

	// Diagnostics lists every entry or block that was dropped or altered.
	Diagnostics []Diagnostic
}

// PlatformEntries returns the entries of the block for p.
func (d *Document) PlatformEntries(p Platform) ([]Entry, bool) {
	for _, block := range d.Platforms {
		if block.Platform == p {
			return block.Entries, true
		}
	}
	return nil, false
}

// Entry returns the global entry with the given key.
func (d *Document) Entry(key string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Severity grades a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic describes a non-fatal problem found while parsing.
type Diagnostic struct {
	Severity Severity
	Code     errors.ErrorCode
	// Platform is empty for the global scope.
	Platform Platform
	Key      string
	Message  string
}

// Scope names the uniqueness scope the diagnostic belongs to.
func (d Diagnostic) Scope() string {
	if d.Platform == "" {
		return "global"
	}
	return "platform:" + string(d.Platform)
}

func (d Diagnostic) String() string {
	if d.Key == "" {
		return fmt.Sprintf("%s [%s] %s: %s", d.Severity, d.Code, d.Scope(), d.Message)
	}
	return fmt.Sprintf("%s [%s] %s/%s: %s", d.Severity, d.Code, d.Scope(), d.Key, d.Message)
}

type documentJSON struct {
	Version   int               `json:"version"`
	Platforms []platformJSON    `json:"platforms"`
	Entries   []json.RawMessage `json:"entries"`
}

type platformJSON struct {
	Platform string            `json:"platform"`
	Entries  []json.RawMessage `json:"entries"`
}

type entryJSON struct {
	Key      string          `json:"key"`
	Type     string          `json:"type"`
	Value    json.RawMessage `json:"value,omitempty"`
	Category string          `json:"category"`
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeNotFound, fmt.Sprintf("config file %s does not exist", path), err)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMalformedDocument, fmt.Sprintf("failed to read %s", path), err)
	}
	return Parse(data)
}

// Parse builds a Document from JSON text. Only a malformed envelope or an
// unsupported version is an error; problems with individual entries are
// recorded as diagnostics and the entry is dropped.
func Parse(data []byte) (*Document, error) {
	if err := checkEnvelope(data); err != nil {
		return nil, errors.MalformedDocument("payload", err)
	}

	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.MalformedDocument("payload", err)
	}

	if raw.Version != CurrentVersion {
		return nil, errors.New(errors.ErrCodeUnsupportedVersion,
			fmt.Sprintf("unsupported document version %d", raw.Version)).
			WithDetail("version", raw.Version)
	}

	p := &parser{
		doc:       &Document{Version: raw.Version},
		languages: make(map[Language]bool),
		category:  make(map[string]bool),
	}

	seenPlatforms := make(map[Platform]bool, len(raw.Platforms))
	for _, block := range raw.Platforms {
		platform := Platform(block.Platform)
		if platform == "" {
			p.report(SeverityError, errors.ErrCodeInvalidEntry, "", "", "platform block without a platform identifier dropped")
			continue
		}
		if seenPlatforms[platform] {
			p.report(SeverityError, errors.ErrCodeDuplicateKey, platform, "", fmt.Sprintf("platform %s is already declared, block dropped", platform))
			continue
		}
		seenPlatforms[platform] = true

		p.doc.Platforms = append(p.doc.Platforms, PlatformBlock{
			Platform: platform,
			Entries:  p.parseEntries(platform, block.Entries),
		})
	}

	p.doc.Entries = p.parseEntries("", raw.Entries)

	return p.doc, nil
}

type parser struct {
	doc       *Document
	languages map[Language]bool
	category  map[string]bool
}

func (p *parser) report(sev Severity, code errors.ErrorCode, platform Platform, key, msg string) {
	p.doc.Diagnostics = append(p.doc.Diagnostics, Diagnostic{
		Severity: sev,
		Code:     code,
		Platform: platform,
		Key:      key,
		Message:  msg,
	})
}

// parseEntries decodes one uniqueness scope. The first accepted entry for a
// key wins.
func (p *parser) parseEntries(platform Platform, raws []json.RawMessage) []Entry {
	entries := make([]Entry, 0, len(raws))
	seen := make(map[string]bool, len(raws))

	for i, rawEntry := range raws {
		var ej entryJSON
		if err := json.Unmarshal(rawEntry, &ej); err != nil {
			p.report(SeverityError, errors.ErrCodeInvalidEntry, platform, "", fmt.Sprintf("entry #%d is not a valid entry object: %v", i, err))
			continue
		}

		// Categories are collected from every global entry, even ones dropped below.
		if platform == "" && ej.Category != "" && !p.category[ej.Category] {
			p.category[ej.Category] = true
			p.doc.Categories = append(p.doc.Categories, ej.Category)
		}

		if ej.Key == "" {
			p.report(SeverityError, errors.ErrCodeInvalidEntry, platform, "", fmt.Sprintf("entry #%d has an empty key", i))
			continue
		}

		t, err := ParseValueType(ej.Type)
		if err != nil {
			p.report(SeverityError, errors.ErrCodeUnknownType, platform, ej.Key, err.Error())
			continue
		}

		value, warnings, err := DecodeValue(t, ej.Value)
		if err != nil {
			p.report(SeverityError, errors.ErrCodeTypeMismatch, platform, ej.Key, err.Error())
			continue
		}
		for _, w := range warnings {
			p.report(SeverityWarning, errors.ErrCodeInvalidEntry, platform, ej.Key, w)
		}

		if seen[ej.Key] {
			p.report(SeverityError, errors.ErrCodeDuplicateKey, platform, ej.Key, "key already defined in this scope, entry dropped")
			continue
		}
		seen[ej.Key] = true

		if tv, ok := value.(TranslatableValue); ok {
			for _, lang := range tv.Languages() {
				if !p.languages[lang] {
					p.languages[lang] = true
					p.doc.Languages = append(p.doc.Languages, lang)
				}
			}
		}

		entries = append(entries, Entry{
			Key:      ej.Key,
			Category: ej.Category,
			Value:    value,
		})
	}

	return entries
}
