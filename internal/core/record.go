package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Field is a single cell of a row, keyed by its normalized header.
type Field struct {
	Key   string
	Value string
}

// RawRecord is one row of a table: normalized header to raw string value, in
// column order.
//
// Duplicate headers are not de-duplicated. Every cell is kept in Fields, but
// lookups and the JSON form resolve a repeated key to its last cell.
type RawRecord struct {
	Fields []Field
}

// RawBatch is the ordered sequence of records parsed from one document.
type RawBatch []RawRecord

// NewRawRecord zips values positionally against headers.
// The caller guarantees len(headers) == len(values).
func NewRawRecord(headers, values []string) RawRecord {
	fields := make([]Field, len(headers))
	for i, h := range headers {
		fields[i] = Field{Key: h, Value: values[i]}
	}
	return RawRecord{Fields: fields}
}

// RecordFromMap builds a record from a map. Keys are sorted so the result is
// deterministic; intended for tests and programmatic callers.
func RecordFromMap(m map[string]string) RawRecord {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, len(keys))
	for i, k := range keys {
		fields[i] = Field{Key: k, Value: m[k]}
	}
	return RawRecord{Fields: fields}
}

// Get returns the value for key. A repeated key resolves to its last cell.
func (r RawRecord) Get(key string) (string, bool) {
	for i := len(r.Fields) - 1; i >= 0; i-- {
		if r.Fields[i].Key == key {
			return r.Fields[i].Value, true
		}
	}
	return "", false
}

// Keys returns the distinct keys in first-appearance order.
func (r RawRecord) Keys() []string {
	seen := make(map[string]struct{}, len(r.Fields))
	keys := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		if _, ok := seen[f.Key]; ok {
			continue
		}
		seen[f.Key] = struct{}{}
		keys = append(keys, f.Key)
	}
	return keys
}

// Has reports whether key is present.
func (r RawRecord) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Map returns the record as a plain map (last cell wins).
func (r RawRecord) Map() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Key] = f.Value
	}
	return m
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (r RawRecord) Clone() RawRecord {
	fields := make([]Field, len(r.Fields))
	copy(fields, r.Fields)
	return RawRecord{Fields: fields}
}

// MarshalJSON writes the record as a JSON object with keys in first-appearance
// order.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, _ := r.Get(key)
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object, preserving key order.
//
// Non-string values are kept as their compact JSON text ("12.5", "true");
// null becomes the empty string.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record must be a JSON object")
	}

	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("record field %q: %w", key, err)
		}
		value, err := rawToString(raw)
		if err != nil {
			return fmt.Errorf("record field %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	r.Fields = fields
	return nil
}

func rawToString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return "", nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case string(trimmed) == "null":
		return "", nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}

// String renders the record for log output.
func (r RawRecord) String() string {
	parts := make([]string, 0, len(r.Fields))
	for _, f := range r.Fields {
		parts = append(parts, f.Key+"="+f.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
