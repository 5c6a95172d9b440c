package page

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaDefinition []byte

// LoadSchema reads a YAML (or JSON) schema file and lays it over the
// built-in schema. A field listed in the file replaces the built-in entry
// of the same name wholesale.
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read schema file %s", path)
	}
	return ParseSchema(data)
}

// ParseSchema is LoadSchema for in-memory content.
func ParseSchema(data []byte) (*Schema, error) {
	if err := checkShape(data); err != nil {
		return nil, err
	}

	s := DefaultSchema()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "failed to decode schema")
	}
	if err := s.Compile(); err != nil {
		return nil, err
	}
	return s, nil
}

// checkShape validates the raw document against the embedded JSON Schema
// before it is decoded into typed fields.
func checkShape(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "failed to parse schema file")
	}
	if raw == nil {
		return errors.New("schema file is empty")
	}

	// Round-trip through JSON so the validator sees plain JSON values.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return errors.Wrap(err, "failed to normalise schema file")
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return errors.Wrap(err, "failed to normalise schema file")
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaDefinition)); err != nil {
		return errors.Wrap(err, "failed to load schema definition")
	}
	definition, err := compiler.Compile("schema.json")
	if err != nil {
		return errors.Wrap(err, "failed to compile schema definition")
	}
	if err := definition.Validate(doc); err != nil {
		return errors.Wrap(err, "schema file does not match the expected shape")
	}
	return nil
}
