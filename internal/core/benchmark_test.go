package core

import (
	"context"
	"fmt"
	"testing"
)

// ============================================================================
// Conversion Function Benchmarks
// ============================================================================

// BenchmarkTryFloat benchmarks numeric string conversion.
// Called for every numeric field of every cast record.
func BenchmarkTryFloat(b *testing.B) {
	testCases := []string{
		"123",
		"-456.78",
		"100.50",
		"1e3",
		"abc", // Fails, returned unchanged
		"NaN", // Rejected
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			TryFloat(tc)
		}
	}
}

// BenchmarkTryUnix benchmarks timestamp parsing.
func BenchmarkTryUnix(b *testing.B) {
	testCases := []string{
		"2024-01-01 01:24:30",
		"2024-12-31 23:59:59",
		"2024-01-01", // Date only, fails
		"",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			TryUnix(tc)
		}
	}
}

// ============================================================================
// Classification Benchmarks
// ============================================================================

func benchBatch(rows int, headers []string) RawBatch {
	batch := make(RawBatch, rows)
	for i := range batch {
		values := make([]string, len(headers))
		for j := range values {
			values[j] = fmt.Sprintf("v%d", i)
		}
		batch[i] = NewRawRecord(headers, values)
	}
	return batch
}

// BenchmarkClassify_Builtin benchmarks a batch matched by a built-in schema.
// Only the first record is inspected.
func BenchmarkClassify_Builtin(b *testing.B) {
	batch := benchBatch(1000, []string{
		"type", "product", "started_date", "completed_date", "description",
		"amount", "fee", "currency", "state", "balance",
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Classify(ctx, batch, nil)
	}
}

// BenchmarkClassify_Dynamic benchmarks dynamic schemas, which are tried
// against every record.
func BenchmarkClassify_Dynamic(b *testing.B) {
	batch := benchBatch(1000, []string{"booking_date", "value", "memo"})
	dynamic := []SchemaDefinition{
		{Name: "bank_a", Keys: []string{"iban", "value"}},
		{Name: "bank_b", Keys: []string{"booking_date", "value"}},
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Classify(ctx, batch, dynamic)
	}
}

// ============================================================================
// Cast Benchmarks
// ============================================================================

// BenchmarkCastBatch benchmarks casting a valid batch.
func BenchmarkCastBatch(b *testing.B) {
	ClearCasters()
	RegisterCaster(CasterDefinition{
		Info:       CasterInfo{Provider: testProvider, Label: "Numbers"},
		FieldSpecs: numberFields,
		Cast:       castNumber,
	})
	b.Cleanup(ClearCasters)

	values := make([]string, 1000)
	for i := range values {
		values[i] = fmt.Sprintf("%d.25", i)
	}
	batch := numberBatch(values...)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := CastBatch(ctx, batch, CastFailFast); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCheckShape benchmarks the per-record shape check.
func BenchmarkCheckShape(b *testing.B) {
	record := NewRawRecord([]string{"num", "label"}, []string{"1", "row"})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := CheckShape(record, numberFields); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Sniffing Benchmarks
// ============================================================================

// BenchmarkMIMESniffer benchmarks content detection on a small CSV.
func BenchmarkMIMESniffer(b *testing.B) {
	data := []byte("a,b,c\n1,2,3\n4,5,6\n")
	s := MIMESniffer{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Sniff(data)
	}
}
