package stroke

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MetaField is one user-declared metadata column carried on every
// stroke slot. The registry is built once at activation from config,
// not re-derived per event.
type MetaField struct {
	Name  string `json:"name"`
	Size  int    `json:"size"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// metaSchemaJSON constrains metadata documents: a count followed by
// field objects. The empty document is "[0, {}]".
const metaSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "prefixItems": [
    { "type": "integer", "minimum": 0 }
  ],
  "items": {
    "type": "object",
    "properties": {
      "name": { "type": "string" },
      "size": { "type": "integer", "minimum": 0 },
      "type": { "enum": ["float", "int", "string", "toggle"] },
      "value": {}
    },
    "additionalProperties": false
  }
}`

var (
	metaSchemaOnce sync.Once
	metaSchemaVal  *jsonschema.Schema
	metaSchemaErr  error
)

func metaSchema() (*jsonschema.Schema, error) {
	metaSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("meta.schema.json", strings.NewReader(metaSchemaJSON)); err != nil {
			metaSchemaErr = fmt.Errorf("add metadata schema: %w", err)
			return
		}
		metaSchemaVal, metaSchemaErr = c.Compile("meta.schema.json")
	})
	return metaSchemaVal, metaSchemaErr
}

// EncodeMeta serializes fields as the count-prefixed document written
// to stroke slots: [n, {..}, {..}]; no fields yields "[0,{}]".
func EncodeMeta(fields []MetaField) (string, error) {
	doc := make([]any, 0, len(fields)+1)
	doc = append(doc, len(fields))
	if len(fields) == 0 {
		doc = append(doc, struct{}{})
	}
	for _, f := range fields {
		doc = append(doc, f)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

// DecodeMeta validates a metadata document against the schema and
// returns its fields. The count must match the number of field objects;
// a zero count returns no fields regardless of trailing placeholders.
func DecodeMeta(doc string) ([]MetaField, error) {
	var instance any
	if err := json.Unmarshal([]byte(doc), &instance); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	schema, err := metaSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("validate metadata: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	var count int
	if err := json.Unmarshal(raw[0], &count); err != nil {
		return nil, fmt.Errorf("parse metadata count: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	items := raw[1:]
	if len(items) != count {
		return nil, fmt.Errorf("metadata count %d does not match %d fields", count, len(items))
	}
	fields := make([]MetaField, 0, count)
	for _, it := range items {
		var f MetaField
		if err := json.Unmarshal(it, &f); err != nil {
			return nil, fmt.Errorf("parse metadata field: %w", err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}
