package core

import (
	"fmt"
	"sort"
	"sync"
)

// FieldType is the target type of a raw field when cast.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldTimestamp
)

// String returns a human-readable name for the type.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldNumeric:
		return "number"
	case FieldTimestamp:
		return "timestamp"
	default:
		return "value"
	}
}

// FieldSpec describes one field of a provider's canonical record.
type FieldSpec struct {
	Name    string    // Canonical field name
	Type    FieldType // Target type
	Aliases []string  // Raw header names accepted in place of Name
}

// CasterInfo contains display information about a caster.
type CasterInfo struct {
	Provider string // Provider tag this caster handles: "revolut_csv"
	Label    string // Display name: "Revolut personal CSV"
}

// CastFunc converts one classified record's raw fields to the provider's
// canonical record. Errors should be *CastError.
type CastFunc func(record RawRecord) (any, error)

// CasterDefinition contains everything needed to cast one provider's records.
type CasterDefinition struct {
	Info       CasterInfo
	FieldSpecs []FieldSpec
	Cast       CastFunc
}

var (
	registry   = make(map[string]CasterDefinition)
	registryMu sync.RWMutex
)

// RegisterCaster adds a caster to the registry.
// Panics if a caster for the same provider is already registered.
func RegisterCaster(def CasterDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Info.Provider == "" {
		panic("caster registered without provider tag")
	}
	if def.Cast == nil {
		panic(fmt.Sprintf("caster %s has no Cast func", def.Info.Provider))
	}
	if _, exists := registry[def.Info.Provider]; exists {
		panic(fmt.Sprintf("caster already registered: %s", def.Info.Provider))
	}

	registry[def.Info.Provider] = def
}

// LookupCaster returns the caster for a provider tag.
// Returns false if the provider has no caster; its records pass through.
func LookupCaster(provider string) (CasterDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[provider]
	return def, ok
}

// Casters returns all registered casters sorted by provider tag.
func Casters() []CasterDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]CasterDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Provider < result[j].Info.Provider
	})

	return result
}

// CasterCount returns the number of registered casters.
func CasterCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// ClearCasters removes all registered casters.
// Primarily useful for testing.
func ClearCasters() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]CasterDefinition)
}
