package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one member of a JSON object.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// ObjectEntries decodes a JSON object keeping the member order of the document.
// A JSON array is accepted as an empty object, which is how some APIs encode "no data".
func ObjectEntries(raw json.RawMessage) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	switch tok {
	case json.Delim('['):
		var rest []json.RawMessage
		if err := json.Unmarshal(raw, &rest); err != nil {
			return nil, fmt.Errorf("failed to read array: %w", err)
		}
		if len(rest) > 0 {
			return nil, fmt.Errorf("expected object, got array of %d elements", len(rest))
		}
		return []Entry{}, nil
	case json.Delim('{'):
	default:
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	entries := []Entry{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read object key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("failed to read value of %q: %w", key, err)
		}
		entries = append(entries, Entry{Key: key, Value: value})
	}
	return entries, nil
}
