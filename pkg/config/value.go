package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValueType identifies the declared type of an entry.
type ValueType int

const (
	TypeInt ValueType = iota
	TypeFloat
	TypeBool
	TypeString
	TypeTranslatable
)

var valueTypeNames = map[ValueType]string{
	TypeInt:          "Int",
	TypeFloat:        "Float",
	TypeBool:         "Bool",
	TypeString:       "String",
	TypeTranslatable: "Translatable",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// ParseValueType parses a type name. Matching is case-insensitive.
func ParseValueType(s string) (ValueType, error) {
	for t, name := range valueTypeNames {
		if strings.EqualFold(name, s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t ValueType) MarshalText() ([]byte, error) {
	name, ok := valueTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown value type %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ValueType) UnmarshalText(text []byte) error {
	parsed, err := ParseValueType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value is the typed value of an entry. The concrete type is one of
// IntValue, FloatValue, BoolValue, StringValue or TranslatableValue.
type Value interface {
	Type() ValueType
	isValue()
}

// IntValue is a 32-bit integer value.
type IntValue int32

// FloatValue is a single-precision float value.
type FloatValue float32

// BoolValue is a boolean value.
type BoolValue bool

// StringValue is a plain, untranslated string value.
type StringValue string

// TranslatableValue maps a language to its translation.
type TranslatableValue map[Language]string

func (IntValue) Type() ValueType          { return TypeInt }
func (FloatValue) Type() ValueType        { return TypeFloat }
func (BoolValue) Type() ValueType         { return TypeBool }
func (StringValue) Type() ValueType       { return TypeString }
func (TranslatableValue) Type() ValueType { return TypeTranslatable }

func (IntValue) isValue()          {}
func (FloatValue) isValue()        {}
func (BoolValue) isValue()         {}
func (StringValue) isValue()       {}
func (TranslatableValue) isValue() {}

// Languages returns the languages present in the value, sorted.
func (v TranslatableValue) Languages() []Language {
	langs := make([]Language, 0, len(v))
	for lang := range v {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Get returns the translation for lang.
func (v TranslatableValue) Get(lang Language) (string, bool) {
	s, ok := v[lang]
	return s, ok
}

// Platform identifies a runtime platform block, e.g. "Android" or "IPhonePlayer".
type Platform string

func (p Platform) String() string {
	return string(p)
}

// HostPlatform returns the platform identifier conventionally used for goos.
// Unknown systems map to their GOOS name.
func HostPlatform(goos string) Platform {
	switch goos {
	case "darwin":
		return "OSXPlayer"
	case "windows":
		return "WindowsPlayer"
	case "linux":
		return "LinuxPlayer"
	case "android":
		return "Android"
	case "ios":
		return "IPhonePlayer"
	case "js", "wasip1":
		return "WebGLPlayer"
	default:
		return Platform(goos)
	}
}
