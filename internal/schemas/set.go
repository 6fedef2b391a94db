package schemas

import (
	"sync"

	"github.com/JonMunkholm/statements/internal/core"
)

// Set is the current list of dynamic schemas, safe for concurrent use.
//
// It has two layers. The file layer is swapped wholesale by Replace (startup
// load and Watch reloads). The saved layer holds schemas added through Put,
// such as those created over the API or read back from the database, and
// survives file reloads. List returns the file layer first; order matters
// because classification lets the last match win.
type Set struct {
	mu    sync.RWMutex
	file  []core.SchemaDefinition
	saved []core.SchemaDefinition
}

// NewSet creates a set whose file layer holds defs.
func NewSet(defs []core.SchemaDefinition) *Set {
	s := &Set{}
	s.Replace(defs)
	return s
}

// List returns a copy of all schemas in evaluation order.
func (s *Set) List() []core.SchemaDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.SchemaDefinition, 0, len(s.file)+len(s.saved))
	out = append(out, s.file...)
	return append(out, s.saved...)
}

// Replace swaps in a new file layer.
func (s *Set) Replace(defs []core.SchemaDefinition) {
	cp := make([]core.SchemaDefinition, len(defs))
	copy(cp, defs)

	s.mu.Lock()
	s.file = cp
	s.mu.Unlock()
}

// Put adds def to the saved layer, replacing a saved schema with the same
// name in place.
func (s *Set) Put(def core.SchemaDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.saved {
		if d.Name == def.Name {
			s.saved[i] = def
			return
		}
	}
	s.saved = append(s.saved, def)
}

// Remove deletes every schema named name from both layers. Returns false if
// none was present. A removed file schema returns on the next reload.
func (s *Set) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed bool
	s.file, removed = without(s.file, name)
	var fromSaved bool
	s.saved, fromSaved = without(s.saved, name)
	return removed || fromSaved
}

func without(defs []core.SchemaDefinition, name string) ([]core.SchemaDefinition, bool) {
	out := make([]core.SchemaDefinition, 0, len(defs))
	for _, d := range defs {
		if d.Name != name {
			out = append(out, d)
		}
	}
	return out, len(out) != len(defs)
}

// Len returns the number of schemas.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.file) + len(s.saved)
}

// Merge returns the set's schemas followed by extra. Schemas in extra are
// evaluated after, so they win ties.
func (s *Set) Merge(extra []core.SchemaDefinition) []core.SchemaDefinition {
	return append(s.List(), extra...)
}
