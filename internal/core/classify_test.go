package core

import (
	"context"
	"errors"
	"testing"
)

var revolutHeaders = []string{
	"type", "product", "started_date", "completed_date", "description",
	"amount", "fee", "currency", "state", "balance",
}

func revolutRow(amount string) RawRecord {
	return NewRawRecord(revolutHeaders, []string{
		"TOPUP", "Current", "2024-01-01 01:24:30", "2024-01-01 01:24:31", "Top-up",
		amount, "0.00", "EUR", "COMPLETED", "100.50",
	})
}

func TestPredicates(t *testing.T) {
	schema := SchemaDefinition{Name: "s", Keys: []string{"a", "b", "c"}}

	tests := []struct {
		name           string
		record         RawRecord
		recordInSchema bool
		schemaInRecord bool
	}{
		{
			name:           "exact match",
			record:         RecordFromMap(map[string]string{"a": "", "b": "", "c": ""}),
			recordInSchema: true,
			schemaInRecord: true,
		},
		{
			name:           "record is a subset",
			record:         RecordFromMap(map[string]string{"a": ""}),
			recordInSchema: true,
			schemaInRecord: false,
		},
		{
			name:           "record is a superset",
			record:         RecordFromMap(map[string]string{"a": "", "b": "", "c": "", "d": ""}),
			recordInSchema: false,
			schemaInRecord: true,
		},
		{
			name:           "disjoint",
			record:         RecordFromMap(map[string]string{"x": ""}),
			recordInSchema: false,
			schemaInRecord: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RecordKeysSubsetOfSchema(tt.record, schema); got != tt.recordInSchema {
				t.Errorf("RecordKeysSubsetOfSchema = %v, want %v", got, tt.recordInSchema)
			}
			if got := SchemaKeysSubsetOfRecord(schema, tt.record); got != tt.schemaInRecord {
				t.Errorf("SchemaKeysSubsetOfRecord = %v, want %v", got, tt.schemaInRecord)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		batch   RawBatch
		dynamic []SchemaDefinition
		want    string
	}{
		{
			name:  "revolut key set",
			batch: RawBatch{revolutRow("1"), revolutRow("2")},
			want:  ProviderRevolut,
		},
		{
			name: "shopify subset",
			batch: RawBatch{
				RecordFromMap(map[string]string{"order_id": "1", "total_price": "9.99", "currency": "USD"}),
			},
			want: ProviderShopifyOrders,
		},
		{
			name: "only first record is checked against built-ins",
			batch: RawBatch{
				revolutRow("1"),
				RecordFromMap(map[string]string{"foo": "bar"}),
			},
			want: ProviderRevolut,
		},
		{
			name: "first record not matching skips built-ins",
			batch: RawBatch{
				RecordFromMap(map[string]string{"foo": "bar"}),
				revolutRow("1"),
			},
			want: ProviderUnknown,
		},
		{
			name: "dynamic schema requires all its keys",
			batch: RawBatch{
				RecordFromMap(map[string]string{"iban": "x", "booking_date": "y", "extra": "z"}),
			},
			dynamic: []SchemaDefinition{{Name: "bank_x", Keys: []string{"iban", "booking_date"}}},
			want:    "bank_x",
		},
		{
			name: "dynamic last match wins",
			batch: RawBatch{
				RecordFromMap(map[string]string{"iban": "x", "booking_date": "y"}),
			},
			dynamic: []SchemaDefinition{
				{Name: "first", Keys: []string{"iban"}},
				{Name: "second", Keys: []string{"booking_date"}},
			},
			want: "second",
		},
		{
			name: "dynamic match on a later record counts",
			batch: RawBatch{
				RecordFromMap(map[string]string{"foo": "1"}),
				RecordFromMap(map[string]string{"iban": "x", "bar": "2"}),
			},
			dynamic: []SchemaDefinition{{Name: "bank_x", Keys: []string{"iban"}}},
			want:    "bank_x",
		},
		{
			name:    "built-ins win over dynamic",
			batch:   RawBatch{revolutRow("1")},
			dynamic: []SchemaDefinition{{Name: "mine", Keys: []string{"amount"}}},
			want:    ProviderRevolut,
		},
		{
			name: "no match",
			batch: RawBatch{
				RecordFromMap(map[string]string{"foo": "bar"}),
			},
			dynamic: []SchemaDefinition{{Name: "bank_x", Keys: []string{"iban"}}},
			want:    ProviderUnknown,
		},
		{
			name:  "empty batch",
			batch: RawBatch{},
			want:  ProviderUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, classified := Classify(ctx, tt.batch, tt.dynamic)
			if tag != tt.want {
				t.Errorf("tag = %q, want %q", tag, tt.want)
			}
			if len(classified) != len(tt.batch) {
				t.Fatalf("classified %d records, want %d", len(classified), len(tt.batch))
			}
			for i, cr := range classified {
				if cr.DocumentProvider != tt.want {
					t.Errorf("record %d tag = %q, want %q", i, cr.DocumentProvider, tt.want)
				}
				if cr.Data.String() != tt.batch[i].String() {
					t.Errorf("record %d data changed: %v", i, cr.Data)
				}
			}
		})
	}
}

func TestClassifyJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("array is classified", func(t *testing.T) {
		doc := []byte(`[{"order_id":"1","customer":"a"},{"order_id":"2","customer":"b"}]`)
		tag, batch, err := ClassifyJSON(ctx, doc, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tag != ProviderShopifyOrders || len(batch) != 2 {
			t.Errorf("got %q with %d records", tag, len(batch))
		}
	})

	t.Run("single object is wrapped as unknown", func(t *testing.T) {
		doc := []byte(`  {"order_id":"1"}`)
		tag, batch, err := ClassifyJSON(ctx, doc, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tag != ProviderUnknown || len(batch) != 1 {
			t.Fatalf("got %q with %d records", tag, len(batch))
		}
		if v, _ := batch[0].Data.Get("order_id"); v != "1" {
			t.Errorf("order_id = %q", v)
		}
	})

	for _, doc := range []string{``, `"text"`, `42`, `[1,2]`} {
		t.Run("invalid "+doc, func(t *testing.T) {
			_, _, err := ClassifyJSON(ctx, []byte(doc), nil)
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("err = %v, want ErrInvalidDocument", err)
			}
		})
	}
}

func TestSchemaDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		schema  SchemaDefinition
		wantErr bool
	}{
		{name: "valid", schema: SchemaDefinition{Name: "x", Keys: []string{"a", "b"}}},
		{name: "no keys is valid", schema: SchemaDefinition{Name: "x"}},
		{name: "missing name", schema: SchemaDefinition{Keys: []string{"a"}}, wantErr: true},
		{name: "reserved name", schema: SchemaDefinition{Name: ProviderUnknown}, wantErr: true},
		{name: "empty key", schema: SchemaDefinition{Name: "x", Keys: []string{""}}, wantErr: true},
		{name: "duplicate key", schema: SchemaDefinition{Name: "x", Keys: []string{"a", "a"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuiltinSchemas_ReturnsCopy(t *testing.T) {
	s := BuiltinSchemas()
	s[0].Keys[0] = "mutated"
	if BuiltinSchemas()[0].Keys[0] == "mutated" {
		t.Error("BuiltinSchemas exposes internal state")
	}
}
