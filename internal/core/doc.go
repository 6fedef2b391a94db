// Package core provides the business logic for statement normalization.
//
// The package has no transport dependencies. Web handlers, the CLI and tests
// drive it through the same [Pipeline].
//
// # Pipeline
//
// A run takes one document through four steps:
//
//  1. Sniff: [MIMESniffer] inspects magic numbers and reports the content
//     kind. PDF is free text; CSV and XLSX are tabular; anything else is
//     treated as CSV.
//  2. Parse: tabular payloads become a [RawBatch] with normalized headers.
//     Free text is handed to a [TextExtractor] and returned as lines.
//  3. Classify: [Classify] tags the batch with a provider using the
//     built-in schemas first and then any dynamic [SchemaDefinition]s.
//  4. Cast: [CastBatch] converts records of providers that have a caster
//     into typed canonical records.
//
// # Caster Registry
//
// Casters are registered at init time using [RegisterCaster]:
//
//	core.RegisterCaster(core.CasterDefinition{
//	    Info: core.CasterInfo{Provider: "revolut_csv", Label: "Revolut personal statement"},
//	    FieldSpecs: []core.FieldSpec{
//	        {Name: "amount", Type: core.FieldNumeric},
//	        {Name: "transaction_type", Aliases: []string{"type"}},
//	    },
//	    Cast: castRevolut,
//	})
//
// # Cast Policy
//
// [CastFailFast] returns the whole batch uncast when any record fails.
// [CastIsolate] casts what it can and leaves failing records raw. Either way
// the run succeeds and [Result.Cast] reports what happened.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code prefix for support reference:
//
//   - PARSE: malformed tabular input
//   - CAST: records that could not be cast
//   - FILE, FETCH: reading or downloading documents
//   - EXTRACT: free-text extraction
//   - SCHEMA: dynamic schema definitions
//   - RUN, RATE: admission and timeouts
//   - DB: run history and schema persistence
package core
