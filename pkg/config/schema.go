package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// envelopeSchema describes the outer structure of a version 1 document.
// Entries are deliberately left open: a bad entry is dropped, not fatal.
const envelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "platforms", "entries"],
  "properties": {
    "version": {"type": "integer"},
    "platforms": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["platform", "entries"],
        "properties": {
          "platform": {"type": "string"},
          "entries": {"type": "array"}
        }
      }
    },
    "entries": {"type": "array"}
  }
}`

var envelopeLoader = gojsonschema.NewStringLoader(envelopeSchema)

// checkEnvelope validates data against the envelope schema and returns a
// single error listing every violation.
func checkEnvelope(data []byte) error {
	result, err := gojsonschema.Validate(envelopeLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("envelope does not match schema: %s", strings.Join(msgs, "; "))
	}

	return nil
}
