// Package canonicaljson re-serializes a JSON object with one or more
// top-level keys removed, preserving the original field insertion order of
// everything else.
//
// Signature schemes hash the exact bytes the client signed. A serializer
// that sorts keys (as encoding/json.Marshal of a map would) produces a
// different digest than the client computed and every signature fails to
// verify. StripKeys walks the input with a streaming decoder instead, so
// whatever order the producer emitted fields in is preserved.
package canonicaljson

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// StripKeys returns raw with the named top-level keys removed, compacted
// (whitespace stripped) but otherwise byte-for-byte faithful to the input's
// field order. raw must be a JSON object.
func StripKeys(raw []byte, keys ...string) ([]byte, error) {
	exclude := make(map[string]bool, len(keys))
	for _, k := range keys {
		exclude[k] = true
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("canonicaljson: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("canonicaljson: expected a JSON object")
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("canonicaljson: reading key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("canonicaljson: non-string object key")
		}

		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return nil, fmt.Errorf("canonicaljson: reading value for %q: %w", key, err)
		}

		if exclude[key] {
			continue
		}

		if !first {
			buf.WriteByte(',')
		}
		first = false

		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if err := json.Compact(&buf, val); err != nil {
			return nil, fmt.Errorf("canonicaljson: compacting %q: %w", key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
