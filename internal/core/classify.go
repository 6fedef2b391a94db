package core

// classify.go assigns a provider tag to a batch using key-set heuristics.
//
// Two predicates are used and they point in opposite directions:
//
//   - Built-in schemas describe a closed vocabulary. A record matches when
//     every one of its keys is known to the schema (RecordKeysSubsetOfSchema).
//   - Dynamic schemas describe required fields. A record matches when it
//     carries every key the schema declares (SchemaKeysSubsetOfRecord).
//
// Built-ins are tried in priority order against the first record only and
// the first hit wins. Dynamic schemas are tried against every record and the
// last hit wins. The tag is applied to the whole batch.

import (
	"context"
	"encoding/json"
	"fmt"
)

var builtinSchemas = []SchemaDefinition{
	{
		Name: ProviderRevolut,
		Keys: []string{
			"completed_date",
			"amount",
			"fee",
			"description",
			"product",
			"type",
			"transaction_type",
			"state",
			"currency",
			"balance",
			"started_date",
		},
	},
	{
		Name: ProviderShopifyOrders,
		Keys: []string{
			"order_id",
			"customer",
			"total_price",
			"currency",
			"order_date",
			"fulfillment_status",
			"line_items",
			"shipping_address",
			"billing_address",
		},
	},
}

// BuiltinSchemas returns the built-in schemas in evaluation order.
func BuiltinSchemas() []SchemaDefinition {
	out := make([]SchemaDefinition, len(builtinSchemas))
	for i, s := range builtinSchemas {
		keys := make([]string, len(s.Keys))
		copy(keys, s.Keys)
		out[i] = SchemaDefinition{Name: s.Name, Keys: keys}
	}
	return out
}

// RecordKeysSubsetOfSchema reports whether every key of record is declared by
// schema. The schema may declare keys the record lacks.
func RecordKeysSubsetOfSchema(record RawRecord, schema SchemaDefinition) bool {
	known := schema.KeySet()
	for _, f := range record.Fields {
		if _, ok := known[f.Key]; !ok {
			return false
		}
	}
	return true
}

// SchemaKeysSubsetOfRecord reports whether record carries every key declared
// by schema. The record may carry extra keys.
func SchemaKeysSubsetOfRecord(schema SchemaDefinition, record RawRecord) bool {
	present := make(map[string]struct{}, len(record.Fields))
	for _, f := range record.Fields {
		present[f.Key] = struct{}{}
	}
	for _, k := range schema.Keys {
		if _, ok := present[k]; !ok {
			return false
		}
	}
	return true
}

// DetectProvider returns the provider tag for batch.
func DetectProvider(batch RawBatch, dynamic []SchemaDefinition) string {
	if len(batch) > 0 {
		first := batch[0]
		for _, schema := range builtinSchemas {
			if RecordKeysSubsetOfSchema(first, schema) {
				return schema.Name
			}
		}
	}

	tag := ProviderUnknown
	for _, record := range batch {
		for _, schema := range dynamic {
			if SchemaKeysSubsetOfRecord(schema, record) {
				tag = schema.Name
			}
		}
	}
	return tag
}

// Classify tags every record of batch with the provider detected for the
// batch. Records are not modified.
func Classify(ctx context.Context, batch RawBatch, dynamic []SchemaDefinition) (string, ClassifiedBatch) {
	tag := DetectProvider(batch, dynamic)

	out := make(ClassifiedBatch, len(batch))
	for i, record := range batch {
		out[i] = ClassifiedRecord{DocumentProvider: tag, Data: record}
	}

	LoggerFromContext(ctx).Debug("classified batch",
		"provider", tag,
		"records", len(batch),
		"dynamic_schemas", len(dynamic),
	)
	return tag, out
}

// ClassifyJSON classifies an already-decoded JSON document.
//
// An array of objects is classified as a batch. A single object is not a
// batch: it is wrapped as one record tagged ProviderUnknown without running
// any schema checks.
func ClassifyJSON(ctx context.Context, data []byte, dynamic []SchemaDefinition) (string, ClassifiedBatch, error) {
	trimmed := skipSpace(data)
	if len(trimmed) == 0 {
		return "", nil, fmt.Errorf("%w: empty document", ErrInvalidDocument)
	}

	switch trimmed[0] {
	case '[':
		var batch RawBatch
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		tag, classified := Classify(ctx, batch, dynamic)
		return tag, classified, nil

	case '{':
		var record RawRecord
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		LoggerFromContext(ctx).Warn("document is not a record batch, marking provider unknown")
		return ProviderUnknown, ClassifiedBatch{{DocumentProvider: ProviderUnknown, Data: record}}, nil

	default:
		return "", nil, fmt.Errorf("%w: expected a JSON array or object", ErrInvalidDocument)
	}
}

func skipSpace(b []byte) []byte {
	for len(b) > 0 {
		switch b[0] {
		case ' ', '\t', '\n', '\r':
			b = b[1:]
		default:
			return b
		}
	}
	return b
}
