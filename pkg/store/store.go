// Package store resolves typed configuration values for one platform and the
// currently selected language.
package store

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/davidthor/smartcfg/pkg/config"
	"github.com/davidthor/smartcfg/pkg/errors"
)

// DefaultLanguage is used when Options.DefaultLanguage is empty.
const DefaultLanguage config.Language = "English"

// Options configures a Store.
type Options struct {
	// Platform selects the platform block merged on load. Empty means
	// global entries only.
	Platform config.Platform

	// DefaultLanguage is the language translations resolve to until
	// SelectLanguage is called.
	DefaultLanguage config.Language

	// Logger receives misses, missing translations and load conflicts.
	Logger *zap.Logger

	// Usage is notified on every successful lookup.
	Usage UsageTracker
}

// DefaultOptions returns options for a global-only store in English.
func DefaultOptions() Options {
	return Options{
		DefaultLanguage: DefaultLanguage,
	}
}

// Store is the queryable projection of the latest loaded document. Lookups
// are safe for concurrent use; Load and SelectLanguage are expected to be
// called by a single owner.
type Store struct {
	platform config.Platform
	logger   *zap.Logger
	usage    UsageTracker

	mu sync.RWMutex
	// selected is the language requested by the caller. translated is the
	// language the string values were last resolved for, empty before the
	// first load.
	selected   config.Language
	translated config.Language
	state      *snapshot

	listeners listenerSet
}

// snapshot is one loaded document's dictionaries. A snapshot is built
// completely before it is published.
type snapshot struct {
	doc          *config.Document
	ints         map[string]int32
	floats       map[string]float32
	bools        map[string]bool
	strings      map[string]string
	translatable map[string]config.TranslatableValue
}

// New creates an empty store.
func New(opts Options) *Store {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = DefaultLanguage
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		platform: opts.Platform,
		logger:   opts.Logger,
		usage:    opts.Usage,
		selected: opts.DefaultLanguage,
	}
}

// Platform returns the platform the store merges on load.
func (s *Store) Platform() config.Platform {
	return s.platform
}

// Load replaces every dictionary with the contents of doc and resolves
// translations for the selected language. Platform entries whose key is
// already defined globally are rejected and returned as diagnostics.
func (s *Store) Load(doc *config.Document) []config.Diagnostic {
	if doc == nil {
		return nil
	}

	next := &snapshot{
		doc:          doc,
		ints:         make(map[string]int32),
		floats:       make(map[string]float32),
		bools:        make(map[string]bool),
		strings:      make(map[string]string),
		translatable: make(map[string]config.TranslatableValue),
	}
	for _, e := range doc.Entries {
		next.put(e)
	}

	var conflicts []config.Diagnostic
	if entries, ok := doc.PlatformEntries(s.platform); ok && s.platform != "" {
		for _, e := range entries {
			if next.has(e.Key) {
				d := config.Diagnostic{
					Severity: config.SeverityError,
					Code:     errors.ErrCodeKeyConflict,
					Platform: s.platform,
					Key:      e.Key,
					Message:  "key is already defined globally, platform entry ignored",
				}
				conflicts = append(conflicts, d)
				s.logger.Error("platform entry conflicts with global entry",
					zap.String("platform", string(s.platform)),
					zap.String("key", e.Key),
					zap.Stringer("type", e.Type()))
				continue
			}
			next.put(e)
		}
	}

	count := next.size()

	s.mu.Lock()
	lang := s.selected
	s.resolve(next, lang)
	s.state = next
	s.translated = lang
	s.mu.Unlock()

	s.logger.Debug("config loaded",
		zap.Int("entries", count),
		zap.String("platform", string(s.platform)),
		zap.String("language", string(lang)))

	s.listeners.notifyLoaded()
	return conflicts
}

// SelectLanguage makes lang the language translations resolve to. Selecting
// the language already in effect does nothing. Entries without a
// translation for lang keep their previous text.
func (s *Store) SelectLanguage(lang config.Language) {
	s.mu.Lock()
	if s.state == nil {
		s.selected = lang
		s.mu.Unlock()
		return
	}
	if lang == s.translated {
		s.selected = lang
		s.mu.Unlock()
		return
	}
	s.selected = lang

	next := s.state.cloneStrings()
	s.resolve(next, lang)
	s.state = next
	s.translated = lang
	s.mu.Unlock()

	s.listeners.notifyLanguageSelected()
}

// resolve writes the translation for lang of every translatable entry into
// snap.strings. Callers hold s.mu.
func (s *Store) resolve(snap *snapshot, lang config.Language) {
	for key, tv := range snap.translatable {
		text, ok := tv.Get(lang)
		if !ok {
			s.logger.Warn("translation missing for language",
				zap.String("key", key),
				zap.String("language", string(lang)))
			continue
		}
		snap.strings[key] = text
	}
}

// CurrentLanguage returns the selected language.
func (s *Store) CurrentLanguage() config.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Loaded reports whether a document has been loaded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state != nil
}

// Document returns the loaded document, or nil.
func (s *Store) Document() *config.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	return s.state.doc
}

// Languages returns the languages declared by the loaded document.
func (s *Store) Languages() []config.Language {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return nil
	}
	return append([]config.Language(nil), s.state.doc.Languages...)
}

// CanTranslate reports whether key currently has a string value.
func (s *Store) CanTranslate(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return false
	}
	_, ok := s.state.strings[key]
	return ok
}

// GetInt returns the integer value of key, or -1 and false.
func (s *Store) GetInt(key string) (int32, bool) {
	s.mu.RLock()
	v, ok := lookup(s.state, func(st *snapshot) map[string]int32 { return st.ints }, key)
	s.mu.RUnlock()
	return finishLookup(s, key, config.TypeInt, v, ok, -1)
}

// GetFloat returns the float value of key, or -1 and false.
func (s *Store) GetFloat(key string) (float32, bool) {
	s.mu.RLock()
	v, ok := lookup(s.state, func(st *snapshot) map[string]float32 { return st.floats }, key)
	s.mu.RUnlock()
	return finishLookup(s, key, config.TypeFloat, v, ok, -1)
}

// GetBool returns the bool value of key, or false and false.
func (s *Store) GetBool(key string) (bool, bool) {
	s.mu.RLock()
	v, ok := lookup(s.state, func(st *snapshot) map[string]bool { return st.bools }, key)
	s.mu.RUnlock()
	return finishLookup(s, key, config.TypeBool, v, ok, false)
}

// GetString returns the string value of key, which is the resolved
// translation for translatable entries, or "" and false.
func (s *Store) GetString(key string) (string, bool) {
	s.mu.RLock()
	v, ok := lookup(s.state, func(st *snapshot) map[string]string { return st.strings }, key)
	s.mu.RUnlock()
	return finishLookup(s, key, config.TypeString, v, ok, "")
}

// Text renders the value of key for display, trying string, bool, float and
// int values in that order.
func (s *Store) Text(key string) (string, bool) {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()

	var text string
	var ok bool
	if st != nil {
		if v, found := st.strings[key]; found {
			text, ok = v, true
		} else if v, found := st.bools[key]; found {
			text, ok = fmt.Sprint(v), true
		} else if v, found := st.floats[key]; found {
			text, ok = fmt.Sprint(v), true
		} else if v, found := st.ints[key]; found {
			text, ok = fmt.Sprint(v), true
		}
	}

	if !ok {
		s.logger.Warn("config key not found", zap.String("key", key))
		return "", false
	}
	if s.usage != nil {
		s.usage.KeyAccessed(key)
	}
	return text, true
}

func lookup[T any](st *snapshot, dict func(*snapshot) map[string]T, key string) (T, bool) {
	var zero T
	if st == nil {
		return zero, false
	}
	v, ok := dict(st)[key]
	return v, ok
}

func finishLookup[T any](s *Store, key string, t config.ValueType, v T, ok bool, def T) (T, bool) {
	if !ok {
		s.logger.Warn("config key not found",
			zap.String("key", key),
			zap.Stringer("type", t))
		return def, false
	}
	if s.usage != nil {
		s.usage.KeyAccessed(key)
	}
	return v, true
}

func (st *snapshot) put(e config.Entry) {
	switch v := e.Value.(type) {
	case config.IntValue:
		st.ints[e.Key] = int32(v)
	case config.FloatValue:
		st.floats[e.Key] = float32(v)
	case config.BoolValue:
		st.bools[e.Key] = bool(v)
	case config.StringValue:
		st.strings[e.Key] = string(v)
	case config.TranslatableValue:
		st.translatable[e.Key] = v
	}
}

func (st *snapshot) has(key string) bool {
	if _, ok := st.ints[key]; ok {
		return true
	}
	if _, ok := st.floats[key]; ok {
		return true
	}
	if _, ok := st.bools[key]; ok {
		return true
	}
	if _, ok := st.strings[key]; ok {
		return true
	}
	_, ok := st.translatable[key]
	return ok
}

func (st *snapshot) size() int {
	return len(st.ints) + len(st.floats) + len(st.bools) + len(st.strings) + len(st.translatable)
}

// cloneStrings returns a snapshot sharing every dictionary except strings,
// which is copied so the published snapshot is never written.
func (st *snapshot) cloneStrings() *snapshot {
	next := *st
	next.strings = make(map[string]string, len(st.strings))
	for k, v := range st.strings {
		next.strings[k] = v
	}
	return &next
}
