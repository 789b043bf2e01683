package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/davidthor/smartcfg/pkg/errors"
)

// EncodeValue converts a value to its wire form: a JSON number, bool or
// string for scalars, and an object of language to string for translatables.
func EncodeValue(v Value) (json.RawMessage, error) {
	switch val := v.(type) {
	case IntValue:
		return json.RawMessage(strconv.FormatInt(int64(val), 10)), nil
	case FloatValue:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, errors.TypeMismatch(TypeFloat.String(), "non-finite float")
		}
		return json.RawMessage(strconv.FormatFloat(f, 'g', -1, 32)), nil
	case BoolValue:
		return json.RawMessage(strconv.FormatBool(bool(val))), nil
	case StringValue:
		return json.Marshal(string(val))
	case TranslatableValue:
		return encodeTranslations(val)
	case nil:
		return nil, fmt.Errorf("cannot encode nil value")
	default:
		return nil, fmt.Errorf("cannot encode value of type %T", v)
	}
}

// encodeTranslations writes the map with sorted keys so output is stable.
func encodeTranslations(v TranslatableValue) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, lang := range v.Languages() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(lang))
		if err != nil {
			return nil, err
		}
		s, err := json.Marshal(v[lang])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(s)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeValue parses a wire value for the declared type. Numeric types accept
// numeric-looking strings. The returned warnings describe parts of a
// translatable value that were dropped; they never make the value invalid.
func DecodeValue(t ValueType, raw json.RawMessage) (Value, []string, error) {
	raw = bytes.TrimSpace(raw)

	switch t {
	case TypeInt:
		v, err := decodeInt(raw)
		return v, nil, err
	case TypeFloat:
		v, err := decodeFloat(raw)
		return v, nil, err
	case TypeBool:
		v, err := decodeBool(raw)
		return v, nil, err
	case TypeString:
		v, err := decodeString(raw)
		return v, nil, err
	case TypeTranslatable:
		return decodeTranslatable(raw)
	default:
		return nil, nil, errors.New(errors.ErrCodeUnknownType, fmt.Sprintf("unknown value type %d", int(t)))
	}
}

func decodeInt(raw json.RawMessage) (Value, error) {
	text, ok := numericText(raw)
	if !ok {
		return nil, errors.TypeMismatch(TypeInt.String(), describe(raw))
	}
	i, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return nil, errors.TypeMismatch(TypeInt.String(), describe(raw))
	}
	return IntValue(i), nil
}

func decodeFloat(raw json.RawMessage) (Value, error) {
	text, ok := numericText(raw)
	if !ok {
		return nil, errors.TypeMismatch(TypeFloat.String(), describe(raw))
	}
	f, err := strconv.ParseFloat(text, 32)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errors.TypeMismatch(TypeFloat.String(), describe(raw))
	}
	return FloatValue(float32(f)), nil
}

// numericText returns the text to parse for a numeric type: the literal of
// a JSON number, or the trimmed content of a JSON string.
func numericText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}

func decodeBool(raw json.RawMessage) (Value, error) {
	switch string(raw) {
	case "true":
		return BoolValue(true), nil
	case "false":
		return BoolValue(false), nil
	default:
		return nil, errors.TypeMismatch(TypeBool.String(), describe(raw))
	}
}

func decodeString(raw json.RawMessage) (Value, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return StringValue(""), nil
	}
	if raw[0] != '"' {
		return nil, errors.TypeMismatch(TypeString.String(), describe(raw))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.TypeMismatch(TypeString.String(), describe(raw))
	}
	return StringValue(s), nil
}

func decodeTranslatable(raw json.RawMessage) (Value, []string, error) {
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil, errors.TypeMismatch(TypeTranslatable.String(), describe(raw))
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, nil, errors.TypeMismatch(TypeTranslatable.String(), describe(raw))
	}

	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []string
	value := make(TranslatableValue, len(members))
	for _, name := range names {
		lang, err := ParseLanguage(name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("dropping translation: %v", err))
			continue
		}
		var text string
		if err := json.Unmarshal(members[name], &text); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropping translation %q: value is %s, not a string", name, describe(members[name])))
			continue
		}
		value[lang] = text
	}

	return value, warnings, nil
}

// describe names the JSON shape of raw for error messages.
func describe(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "absent"
	}
	switch raw[0] {
	case '"':
		return "a string " + truncate(string(raw))
	case '{':
		return "an object"
	case '[':
		return "an array"
	case 't', 'f':
		return "a bool " + string(raw)
	case 'n':
		return "null"
	default:
		return "a number " + truncate(string(raw))
	}
}

func truncate(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
