// Package schemas loads dynamic provider schemas supplied by operators and
// callers.
//
// A schema list may be written as JSON, YAML or TOML. Every format is decoded
// to a generic value and checked against the same JSON Schema before it is
// turned into core.SchemaDefinition values.
package schemas

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/statements/internal/core"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid schema")

const definitionsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "keys"],
    "additionalProperties": false,
    "properties": {
      "name": {"type": "string", "minLength": 1, "maxLength": 128},
      "keys": {
        "type": "array",
        "uniqueItems": true,
        "items": {"type": "string", "minLength": 1}
      }
    }
  }
}`

var compiled = jsonschema.MustCompileString("definitions.json", definitionsSchema)

// Format is a schema file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported schema file extension %q", filepath.Ext(path))
	}
}

// Load reads a schema list from a file.
func Load(path string) ([]core.SchemaDefinition, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, fmt.Errorf("load schemas %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load schemas %s: %w", path, err)
	}
	defs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("load schemas %s: %w", path, err)
	}
	return defs, nil
}

// ParseJSON parses a JSON array of schema definitions.
func ParseJSON(data []byte) ([]core.SchemaDefinition, error) {
	return Parse(data, FormatJSON)
}

// Parse decodes a schema list. The list may be the document itself or, for
// YAML and TOML, the value of a top-level "schemas" key.
func Parse(data []byte, format Format) ([]core.SchemaDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []core.SchemaDefinition{}, nil
	}

	var doc any
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported schema format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalid, format, err)
	}

	if m, ok := doc.(map[string]any); ok {
		if list, ok := m["schemas"]; ok {
			doc = list
		}
	}

	// Round-trip through JSON so every format is validated the same way.
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var generic any
	if err := json.Unmarshal(normalized, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := compiled.Validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var defs []core.SchemaDefinition
	if err := json.Unmarshal(normalized, &defs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Validate(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// Validate checks each definition and rejects duplicate or built-in names.
func Validate(defs []core.SchemaDefinition) error {
	builtin := make(map[string]bool)
	for _, b := range core.BuiltinSchemas() {
		builtin[b.Name] = true
	}

	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if builtin[d.Name] {
			return fmt.Errorf("%w: name %q is a built-in provider", ErrInvalid, d.Name)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalid, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
