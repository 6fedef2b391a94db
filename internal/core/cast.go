package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// CastBatch casts every record of batch with the caster registered for its
// provider. Records of providers without a caster pass through unchanged.
//
// With CastFailFast the first failing record aborts the batch: the error is
// returned and no records are. With CastIsolate every record is attempted;
// failing records keep their raw form and the joined failures are returned
// alongside the records.
func CastBatch(ctx context.Context, batch ClassifiedBatch, policy CastPolicy) ([]Record, error) {
	out := make([]Record, len(batch))
	var failures []error

	for i, cr := range batch {
		def, ok := LookupCaster(cr.DocumentProvider)
		if !ok {
			out[i] = Record{DocumentProvider: cr.DocumentProvider, Data: cr.Data}
			continue
		}

		canonical, err := castRecord(def, i, cr)
		if err != nil {
			if policy != CastIsolate {
				return nil, err
			}
			failures = append(failures, err)
			out[i] = Record{DocumentProvider: cr.DocumentProvider, Data: cr.Data}
			continue
		}
		out[i] = Record{DocumentProvider: cr.DocumentProvider, Data: canonical}
	}

	if len(failures) > 0 {
		LoggerFromContext(ctx).Debug("records left uncast",
			"failed", len(failures),
			"total", len(batch),
		)
		return out, errors.Join(failures...)
	}
	return out, nil
}

func castRecord(def CasterDefinition, index int, cr ClassifiedRecord) (any, error) {
	canonical, err := def.Cast(cr.Data)
	if err == nil {
		return canonical, nil
	}

	var ce *CastError
	if errors.As(err, &ce) {
		ce.Provider = cr.DocumentProvider
		ce.Index = index
		return nil, ce
	}
	return nil, &CastError{Provider: cr.DocumentProvider, Index: index, Err: err}
}

// CheckShape verifies that record carries exactly the fields in specs, where
// a spec may be satisfied by its name or one of its aliases (but not both).
// It returns the raw value for each spec keyed by canonical name.
func CheckShape(record RawRecord, specs []FieldSpec) (map[string]string, error) {
	owner := make(map[string]string, len(specs))
	for _, spec := range specs {
		owner[spec.Name] = spec.Name
		for _, alias := range spec.Aliases {
			owner[alias] = spec.Name
		}
	}

	values := make(map[string]string, len(specs))
	source := make(map[string]string, len(specs))
	var unknown []string

	for _, key := range record.Keys() {
		name, ok := owner[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if prev, dup := source[name]; dup {
			return nil, &CastError{
				Field: name,
				Err:   fmt.Errorf("%w: both %q and %q supplied", ErrRecordShape, prev, key),
			}
		}
		v, _ := record.Get(key)
		values[name] = v
		source[name] = key
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &CastError{
			Err: fmt.Errorf("%w: unknown field(s) %s", ErrRecordShape, strings.Join(unknown, ", ")),
		}
	}

	var missing []string
	for _, spec := range specs {
		if _, ok := values[spec.Name]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &CastError{
			Err: fmt.Errorf("%w: missing field(s) %s", ErrRecordShape, strings.Join(missing, ", ")),
		}
	}

	return values, nil
}
