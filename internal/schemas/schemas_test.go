package schemas

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/statements/internal/core"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		format    Format
		input     string
		wantNames []string
		wantErr   bool
	}{
		{
			name:      "json array",
			format:    FormatJSON,
			input:     `[{"name":"bank_x","keys":["iban","booking_date"]},{"name":"bank_y","keys":["account"]}]`,
			wantNames: []string{"bank_x", "bank_y"},
		},
		{
			name:   "yaml list under schemas",
			format: FormatYAML,
			input: `schemas:
  - name: bank_x
    keys: [iban, booking_date]
`,
			wantNames: []string{"bank_x"},
		},
		{
			name:   "yaml bare list",
			format: FormatYAML,
			input: `- name: bank_x
  keys:
    - iban
`,
			wantNames: []string{"bank_x"},
		},
		{
			name:   "toml array of tables",
			format: FormatTOML,
			input: `[[schemas]]
name = "bank_x"
keys = ["iban", "booking_date"]

[[schemas]]
name = "bank_y"
keys = ["account"]
`,
			wantNames: []string{"bank_x", "bank_y"},
		},
		{
			name:      "empty document",
			format:    FormatJSON,
			input:     "  ",
			wantNames: []string{},
		},
		{name: "not a list", format: FormatJSON, input: `{"name":"x","keys":[]}`, wantErr: true},
		{name: "missing keys", format: FormatJSON, input: `[{"name":"x"}]`, wantErr: true},
		{name: "empty name", format: FormatJSON, input: `[{"name":"","keys":[]}]`, wantErr: true},
		{name: "duplicate key", format: FormatJSON, input: `[{"name":"x","keys":["a","a"]}]`, wantErr: true},
		{name: "unknown property", format: FormatJSON, input: `[{"name":"x","keys":[],"extra":1}]`, wantErr: true},
		{name: "duplicate names", format: FormatJSON, input: `[{"name":"x","keys":[]},{"name":"x","keys":[]}]`, wantErr: true},
		{name: "built-in name", format: FormatJSON, input: `[{"name":"revolut_csv","keys":["a"]}]`, wantErr: true},
		{name: "reserved name", format: FormatJSON, input: `[{"name":"unknown","keys":["a"]}]`, wantErr: true},
		{name: "malformed json", format: FormatJSON, input: `[{`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := Parse([]byte(tt.input), tt.format)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(defs) != len(tt.wantNames) {
				t.Fatalf("got %d schemas, want %d", len(defs), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if defs[i].Name != name {
					t.Errorf("schema %d = %q, want %q", i, defs[i].Name, name)
				}
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "schemas.yml")
	if err := os.WriteFile(path, []byte("- name: a\n  keys: [k]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	defs, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(defs) != 1 || defs[0].Keys[0] != "k" {
		t.Errorf("defs = %+v", defs)
	}

	if _, err := Load(filepath.Join(dir, "schemas.ini")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestSet(t *testing.T) {
	s := NewSet([]core.SchemaDefinition{{Name: "a", Keys: []string{"x"}}})

	s.Put(core.SchemaDefinition{Name: "b", Keys: []string{"y"}})
	s.Put(core.SchemaDefinition{Name: "b", Keys: []string{"z"}})

	list := s.List()
	if len(list) != 2 || list[0].Name != "a" || list[1].Name != "b" || list[1].Keys[0] != "z" {
		t.Errorf("List = %+v", list)
	}

	merged := s.Merge([]core.SchemaDefinition{{Name: "c"}})
	if len(merged) != 3 || merged[2].Name != "c" {
		t.Errorf("Merge = %+v", merged)
	}
	if s.Len() != 2 {
		t.Errorf("Merge mutated the set: Len = %d", s.Len())
	}

	if !s.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if s.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}
	if list := s.List(); len(list) != 1 || list[0].Name != "b" {
		t.Errorf("after Remove List = %+v", list)
	}
}

func TestSet_ReplaceKeepsSaved(t *testing.T) {
	s := NewSet([]core.SchemaDefinition{{Name: "file_a", Keys: []string{"x"}}})
	s.Put(core.SchemaDefinition{Name: "saved", Keys: []string{"y"}})

	s.Replace([]core.SchemaDefinition{{Name: "file_b", Keys: []string{"z"}}})

	list := s.List()
	if len(list) != 2 || list[0].Name != "file_b" || list[1].Name != "saved" {
		t.Errorf("List = %+v", list)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schemas.json")
	if err := os.WriteFile(path, []byte(`[{"name":"a","keys":["x"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	set := NewSet(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, set, nil) }()

	// Give the watcher time to register before changing the file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`[{"name":"a","keys":["x"]},{"name":"b","keys":["y"]}]`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for set.Len() != 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if set.Len() != 2 {
		t.Errorf("set not reloaded: %+v", set.List())
	}

	// A broken file keeps the previous schemas.
	if err := os.WriteFile(path, []byte(`not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if set.Len() != 2 {
		t.Errorf("broken file replaced schemas: %+v", set.List())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Watch did not stop after cancel")
	}
}
