package core

import (
	"encoding/json"
	"fmt"
)

// Provider tags assigned by classification.
const (
	ProviderRevolut       = "revolut_csv"
	ProviderShopifyOrders = "shopify_orders"
	ProviderUnknown       = "unknown"
)

// SchemaDefinition names a provider and the field keys that identify it.
// Keys are treated as an unordered set.
type SchemaDefinition struct {
	Name string   `json:"name" yaml:"name" toml:"name"`
	Keys []string `json:"keys" yaml:"keys" toml:"keys"`
}

// KeySet returns the schema keys as a set.
func (s SchemaDefinition) KeySet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Keys))
	for _, k := range s.Keys {
		set[k] = struct{}{}
	}
	return set
}

// Validate checks that the definition can be used for classification.
func (s SchemaDefinition) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.Name == ProviderUnknown {
		return fmt.Errorf("schema name %q is reserved", ProviderUnknown)
	}
	seen := make(map[string]bool, len(s.Keys))
	for _, k := range s.Keys {
		if k == "" {
			return fmt.Errorf("schema %q: empty key", s.Name)
		}
		if seen[k] {
			return fmt.Errorf("schema %q: duplicate key %q", s.Name, k)
		}
		seen[k] = true
	}
	return nil
}

// ClassifiedRecord is a raw record tagged with the provider of its batch.
type ClassifiedRecord struct {
	DocumentProvider string    `json:"document_provider"`
	Data             RawRecord `json:"data"`
}

// ClassifiedBatch is a batch in which every record carries the same tag.
type ClassifiedBatch []ClassifiedRecord

// Provider returns the batch tag, or ProviderUnknown for an empty batch.
func (b ClassifiedBatch) Provider() string {
	if len(b) == 0 {
		return ProviderUnknown
	}
	return b[0].DocumentProvider
}

// Records returns the batch in output form without casting.
func (b ClassifiedBatch) Records() []Record {
	out := make([]Record, len(b))
	for i, cr := range b {
		out[i] = Record{DocumentProvider: cr.DocumentProvider, Data: cr.Data}
	}
	return out
}

// Record is one element of the pipeline output. Data is either the raw
// record or the provider's canonical struct.
type Record struct {
	DocumentProvider string `json:"document_provider"`
	Data             any    `json:"data"`
}

// CastPolicy controls how a failing record affects the rest of its batch.
type CastPolicy string

const (
	// CastFailFast aborts the whole batch on the first failing record.
	CastFailFast CastPolicy = "fail-fast"

	// CastIsolate casts records independently; a failing record keeps its
	// pre-cast form while the others are cast.
	CastIsolate CastPolicy = "isolate"
)

// ParseCastPolicy converts a config or flag value to a CastPolicy.
func ParseCastPolicy(s string) (CastPolicy, error) {
	switch CastPolicy(s) {
	case "", CastFailFast:
		return CastFailFast, nil
	case CastIsolate:
		return CastIsolate, nil
	default:
		return "", fmt.Errorf("unknown cast policy %q (want fail-fast or isolate)", s)
	}
}

// CastStatus summarizes the casting step of one run.
type CastStatus string

const (
	CastApplied CastStatus = "applied" // every record cast (or nothing to cast)
	CastPartial CastStatus = "partial" // isolate policy, some records failed
	CastFailed  CastStatus = "failed"  // batch returned uncast
	CastSkipped CastStatus = "skipped" // free-text content, no records
)

// Result is the outcome of one pipeline run.
//
// Exactly one of Records and Lines is meaningful, selected by Kind.
type Result struct {
	Kind     ContentKind
	MIME     string
	Provider string
	Records  []Record
	Lines    []string
	Cast     CastStatus
	CastErr  error
}

// MarshalJSON writes the JSON array callers receive: records for tabular
// content, extracted lines for free text.
func (r *Result) MarshalJSON() ([]byte, error) {
	if r.Kind == ContentFreeText {
		lines := r.Lines
		if lines == nil {
			lines = []string{}
		}
		return json.Marshal(lines)
	}
	records := r.Records
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// RowCount returns the number of output elements.
func (r *Result) RowCount() int {
	if r.Kind == ContentFreeText {
		return len(r.Lines)
	}
	return len(r.Records)
}
