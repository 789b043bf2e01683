package authoring

import (
	"fmt"

	"github.com/davidthor/smartcfg/pkg/config"
)

// EditEntry is an entry being authored. Valid and PrefixCompliant are
// recomputed by the workspace after every edit.
type EditEntry struct {
	Key      string
	Category string
	Value    config.Value

	// Valid is false for an empty key or a key already accepted earlier in
	// the same scope. Invalid entries are left out of Document.
	Valid bool

	// PrefixCompliant is false when the key does not start with the
	// category's prefix. It is a warning only.
	PrefixCompliant bool
}

// Issue is one authoring problem, addressed by field path.
type Issue struct {
	Field    string
	Key      string
	Severity config.Severity
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s %s: %s", i.Severity, i.Field, i.Message)
}

type platformScope struct {
	platform config.Platform
	entries  []*EditEntry
}

// Workspace is an editable mirror of a document. The global entry list and
// each platform's entry list are separate uniqueness scopes.
type Workspace struct {
	global     []*EditEntry
	platforms  []*platformScope
	categories []Category
	languages  []config.Language
	defaultLng config.Language
}

// DefaultPlatformEntries are added to every new platform block.
var DefaultPlatformEntries = []config.Entry{
	{Key: "app_prod_versions", Value: config.StringValue("0.1.0")},
	{Key: "app_review_versions", Value: config.StringValue("0.0.0")},
	{Key: "app_maintenance_mode_enabled", Value: config.BoolValue(false)},
	{Key: "app_update_url", Value: config.StringValue("")},
}

// NewWorkspace builds a workspace from doc and settings. Either may be nil.
// Categories used by the document are added to the settings' categories;
// prefixes come from settings.
func NewWorkspace(doc *config.Document, settings *Settings) *Workspace {
	if settings == nil {
		settings = &Settings{}
	}
	if doc == nil {
		doc = &config.Document{Version: config.CurrentVersion}
	}

	w := &Workspace{
		categories: append([]Category(nil), settings.Categories...),
		defaultLng: settings.DefaultLanguage,
	}
	for _, name := range doc.Categories {
		if w.categoryIndex(name) < 0 {
			w.categories = append(w.categories, Category{Name: name})
		}
	}
	for _, lang := range append(append([]config.Language(nil), settings.Languages...), doc.Languages...) {
		w.addLanguage(lang)
	}

	for _, e := range doc.Entries {
		w.global = append(w.global, newEditEntry(e))
	}
	for _, block := range doc.Platforms {
		scope := &platformScope{platform: block.Platform}
		for _, e := range block.Entries {
			scope.entries = append(scope.entries, newEditEntry(e))
		}
		w.platforms = append(w.platforms, scope)
	}

	w.revalidateAll()
	return w
}

func newEditEntry(e config.Entry) *EditEntry {
	return &EditEntry{Key: e.Key, Category: e.Category, Value: e.Value}
}

// Entries returns a copy of the entries of a scope. The empty platform is the
// global scope.
func (w *Workspace) Entries(platform config.Platform) ([]EditEntry, error) {
	entries, err := w.scope(platform)
	if err != nil {
		return nil, err
	}
	out := make([]EditEntry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	return out, nil
}

// Platforms returns the platform blocks in order.
func (w *Workspace) Platforms() []config.Platform {
	out := make([]config.Platform, len(w.platforms))
	for i, p := range w.platforms {
		out[i] = p.platform
	}
	return out
}

// Categories returns the declared categories in order.
func (w *Workspace) Categories() []Category {
	return append([]Category(nil), w.categories...)
}

// Languages returns the declared languages in order.
func (w *Workspace) Languages() []config.Language {
	return append([]config.Language(nil), w.languages...)
}

// AddEntry appends a new entry with an empty key and the zero value of t to
// a scope and returns its index. The entry is invalid until it gets a key.
func (w *Workspace) AddEntry(platform config.Platform, t config.ValueType) (int, error) {
	value, err := w.zeroValue(t)
	if err != nil {
		return 0, err
	}
	e := &EditEntry{Value: value}

	if platform == "" {
		w.global = append(w.global, e)
		w.revalidate("")
		return len(w.global) - 1, nil
	}

	scope := w.platformScope(platform)
	if scope == nil {
		return 0, fmt.Errorf("platform %s does not exist", platform)
	}
	scope.entries = append(scope.entries, e)
	w.revalidate(platform)
	return len(scope.entries) - 1, nil
}

// SetKey changes the key of an entry and re-evaluates its scope.
func (w *Workspace) SetKey(platform config.Platform, index int, key string) error {
	e, err := w.entry(platform, index)
	if err != nil {
		return err
	}
	e.Key = key
	w.revalidate(platform)
	return nil
}

// SetValue replaces the value, and with it the type, of an entry.
func (w *Workspace) SetValue(platform config.Platform, index int, value config.Value) error {
	if value == nil {
		return fmt.Errorf("value is required")
	}
	e, err := w.entry(platform, index)
	if err != nil {
		return err
	}
	e.Value = value
	return nil
}

// SetCategory assigns a declared category to a global entry. An empty
// category makes the entry uncategorized.
func (w *Workspace) SetCategory(index int, category string) error {
	e, err := w.entry("", index)
	if err != nil {
		return err
	}
	if category != "" && w.categoryIndex(category) < 0 {
		return fmt.Errorf("category %q does not exist", category)
	}
	e.Category = category
	w.checkPrefixes()
	return nil
}

// AddCategory declares a new category. It reports false if the name is
// empty or already declared.
func (w *Workspace) AddCategory(name string) bool {
	if name == "" || w.categoryIndex(name) >= 0 {
		return false
	}
	w.categories = append(w.categories, Category{Name: name})
	return true
}

// SetCategoryPrefix changes the prefix of a category and re-evaluates its
// entries.
func (w *Workspace) SetCategoryPrefix(name, prefix string) error {
	i := w.categoryIndex(name)
	if i < 0 {
		return fmt.Errorf("category %q does not exist", name)
	}
	w.categories[i].Prefix = prefix
	w.checkPrefixes()
	return nil
}

// DeleteCategory removes a category. Its entries become uncategorized.
func (w *Workspace) DeleteCategory(name string) error {
	i := w.categoryIndex(name)
	if i < 0 {
		return fmt.Errorf("category %q does not exist", name)
	}
	w.categories = append(w.categories[:i], w.categories[i+1:]...)
	for _, e := range w.global {
		if e.Category == name {
			e.Category = ""
		}
	}
	w.checkPrefixes()
	return nil
}

// AddLanguage declares a language and adds an empty translation for it to
// every translatable entry that lacks one.
func (w *Workspace) AddLanguage(lang config.Language) error {
	if _, err := config.ParseLanguage(string(lang)); err != nil {
		return err
	}
	if !w.addLanguage(lang) {
		return fmt.Errorf("language %s is already declared", lang)
	}
	w.eachEntry(func(e *EditEntry) {
		tv, ok := e.Value.(config.TranslatableValue)
		if !ok {
			return
		}
		if _, ok := tv[lang]; !ok {
			next := cloneTranslations(tv)
			next[lang] = ""
			e.Value = next
		}
	})
	return nil
}

// RemoveLanguage drops a language and its translations from every entry.
func (w *Workspace) RemoveLanguage(lang config.Language) error {
	i := -1
	for j, l := range w.languages {
		if l == lang {
			i = j
			break
		}
	}
	if i < 0 {
		return fmt.Errorf("language %s is not declared", lang)
	}
	w.languages = append(w.languages[:i], w.languages[i+1:]...)
	w.eachEntry(func(e *EditEntry) {
		tv, ok := e.Value.(config.TranslatableValue)
		if !ok {
			return
		}
		if _, ok := tv[lang]; ok {
			next := cloneTranslations(tv)
			delete(next, lang)
			e.Value = next
		}
	})
	return nil
}

// AddPlatform adds a platform block seeded with DefaultPlatformEntries.
func (w *Workspace) AddPlatform(platform config.Platform) error {
	if platform == "" {
		return fmt.Errorf("platform identifier is required")
	}
	if w.platformScope(platform) != nil {
		return fmt.Errorf("platform %s already exists", platform)
	}
	scope := &platformScope{platform: platform}
	for _, e := range DefaultPlatformEntries {
		scope.entries = append(scope.entries, newEditEntry(e))
	}
	w.platforms = append(w.platforms, scope)
	w.revalidate(platform)
	return nil
}

// RemovePlatform deletes a platform block and its entries.
func (w *Workspace) RemovePlatform(platform config.Platform) error {
	for i, p := range w.platforms {
		if p.platform == platform {
			w.platforms = append(w.platforms[:i], w.platforms[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("platform %s does not exist", platform)
}

// RemoveEntry deletes an entry and re-evaluates its scope, which may make a
// former duplicate valid.
func (w *Workspace) RemoveEntry(platform config.Platform, index int) error {
	if _, err := w.entry(platform, index); err != nil {
		return err
	}
	if platform == "" {
		w.global = append(w.global[:index], w.global[index+1:]...)
	} else {
		scope := w.platformScope(platform)
		scope.entries = append(scope.entries[:index], scope.entries[index+1:]...)
	}
	w.revalidate(platform)
	return nil
}

// Issues lists every invalid key and every prefix violation.
func (w *Workspace) Issues() []Issue {
	var issues []Issue

	collect := func(field string, entries []*EditEntry) {
		for i, e := range entries {
			path := fmt.Sprintf("%s[%d]", field, i)
			if !e.Valid {
				msg := "key is already used in this scope"
				if e.Key == "" {
					msg = "key is empty"
				}
				issues = append(issues, Issue{
					Field:    path + ".key",
					Key:      e.Key,
					Severity: config.SeverityError,
					Message:  msg + ", entry will not be written",
				})
			}
			if !e.PrefixCompliant {
				issues = append(issues, Issue{
					Field:    path + ".key",
					Key:      e.Key,
					Severity: config.SeverityWarning,
					Message:  fmt.Sprintf("key does not start with prefix %q of category %q", w.prefix(e.Category), e.Category),
				})
			}
		}
	}

	collect("entries", w.global)
	for _, p := range w.platforms {
		collect(fmt.Sprintf("platforms.%s.entries", p.platform), p.entries)
	}

	return issues
}

// Document builds a document from the valid entries.
func (w *Workspace) Document() *config.Document {
	doc := &config.Document{
		Version:   config.CurrentVersion,
		Entries:   validEntries(w.global),
		Platforms: make([]config.PlatformBlock, 0, len(w.platforms)),
	}
	for _, p := range w.platforms {
		doc.Platforms = append(doc.Platforms, config.PlatformBlock{
			Platform: p.platform,
			Entries:  validEntries(p.entries),
		})
	}
	return doc
}

// Settings returns the authoring settings reflecting the workspace's
// categories and languages.
func (w *Workspace) Settings() *Settings {
	return &Settings{
		DefaultLanguage: w.defaultLng,
		Languages:       w.Languages(),
		Categories:      w.Categories(),
	}
}

func validEntries(entries []*EditEntry) []config.Entry {
	out := make([]config.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Valid {
			out = append(out, config.Entry{Key: e.Key, Category: e.Category, Value: e.Value})
		}
	}
	return out
}

// revalidate re-evaluates key validity of one scope in order: the first
// entry with a given key wins.
func (w *Workspace) revalidate(platform config.Platform) {
	entries, err := w.scope(platform)
	if err != nil {
		return
	}
	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		e.Valid = KeyIsUnique(e.Key, taken)
		if e.Valid {
			taken[e.Key] = true
		}
	}
	w.checkPrefixes()
}

func (w *Workspace) revalidateAll() {
	w.revalidate("")
	for _, p := range w.platforms {
		w.revalidate(p.platform)
	}
}

// checkPrefixes re-evaluates prefix compliance. Platform entries carry no
// category and always comply.
func (w *Workspace) checkPrefixes() {
	prefixes := make(map[string]string, len(w.categories))
	for _, c := range w.categories {
		prefixes[c.Name] = c.Prefix
	}
	for _, e := range w.global {
		e.PrefixCompliant = RespectsPrefix(e.Key, e.Category, prefixes)
	}
	for _, p := range w.platforms {
		for _, e := range p.entries {
			e.PrefixCompliant = true
		}
	}
}

func (w *Workspace) prefix(category string) string {
	if i := w.categoryIndex(category); i >= 0 {
		return w.categories[i].Prefix
	}
	return ""
}

func (w *Workspace) categoryIndex(name string) int {
	for i, c := range w.categories {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (w *Workspace) addLanguage(lang config.Language) bool {
	for _, l := range w.languages {
		if l == lang {
			return false
		}
	}
	w.languages = append(w.languages, lang)
	return true
}

func (w *Workspace) zeroValue(t config.ValueType) (config.Value, error) {
	switch t {
	case config.TypeInt:
		return config.IntValue(0), nil
	case config.TypeFloat:
		return config.FloatValue(0), nil
	case config.TypeBool:
		return config.BoolValue(false), nil
	case config.TypeString:
		return config.StringValue(""), nil
	case config.TypeTranslatable:
		tv := make(config.TranslatableValue, len(w.languages))
		for _, lang := range w.languages {
			tv[lang] = ""
		}
		return tv, nil
	default:
		return nil, fmt.Errorf("unknown value type %s", t)
	}
}

func (w *Workspace) eachEntry(fn func(*EditEntry)) {
	for _, e := range w.global {
		fn(e)
	}
	for _, p := range w.platforms {
		for _, e := range p.entries {
			fn(e)
		}
	}
}

func (w *Workspace) platformScope(platform config.Platform) *platformScope {
	for _, p := range w.platforms {
		if p.platform == platform {
			return p
		}
	}
	return nil
}

func (w *Workspace) scope(platform config.Platform) ([]*EditEntry, error) {
	if platform == "" {
		return w.global, nil
	}
	scope := w.platformScope(platform)
	if scope == nil {
		return nil, fmt.Errorf("platform %s does not exist", platform)
	}
	return scope.entries, nil
}

func (w *Workspace) entry(platform config.Platform, index int) (*EditEntry, error) {
	entries, err := w.scope(platform)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("entry index %d out of range [0, %d)", index, len(entries))
	}
	return entries[index], nil
}

func cloneTranslations(tv config.TranslatableValue) config.TranslatableValue {
	next := make(config.TranslatableValue, len(tv)+1)
	for k, v := range tv {
		next[k] = v
	}
	return next
}
