package config

import (
	"encoding/json"
	"fmt"
)

// Marshal writes doc back to its indented JSON wire form. Entry and platform
// order is preserved.
func Marshal(doc *Document) ([]byte, error) {
	out := struct {
		Version   int               `json:"version"`
		Platforms []platformJSON    `json:"platforms"`
		Entries   []json.RawMessage `json:"entries"`
	}{
		Version:   doc.Version,
		Platforms: make([]platformJSON, 0, len(doc.Platforms)),
	}
	if out.Version == 0 {
		out.Version = CurrentVersion
	}

	entries, err := marshalEntries(doc.Entries)
	if err != nil {
		return nil, err
	}
	out.Entries = entries

	for _, block := range doc.Platforms {
		blockEntries, err := marshalEntries(block.Entries)
		if err != nil {
			return nil, fmt.Errorf("platform %s: %w", block.Platform, err)
		}
		out.Platforms = append(out.Platforms, platformJSON{
			Platform: string(block.Platform),
			Entries:  blockEntries,
		})
	}

	return json.MarshalIndent(out, "", "  ")
}

func marshalEntries(entries []Entry) ([]json.RawMessage, error) {
	result := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		if e.Value == nil {
			return nil, fmt.Errorf("entry %s has no value", e.Key)
		}
		value, err := EncodeValue(e.Value)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Key, err)
		}
		data, err := json.Marshal(entryJSON{
			Key:      e.Key,
			Type:     e.Type().String(),
			Value:    value,
			Category: e.Category,
		})
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Key, err)
		}
		result = append(result, data)
	}
	return result, nil
}
