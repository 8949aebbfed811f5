package ai

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// fieldsSchema is the shape the model must return for every step. Only the
// top-level keys and value types are enforced; normalization does the rest.
const fieldsSchema = `{
  "type": "object",
  "required": ["destination", "condition", "toilet", "mood", "mealFood", "mealWater", "medication", "interaction", "memo"],
  "properties": {
    "destination": {"type": "string"},
    "condition": {"type": "object", "additionalProperties": {"type": "boolean"}},
    "toilet": {"type": "object", "additionalProperties": {"type": "boolean"}},
    "sections": {"type": "object", "additionalProperties": {"type": "boolean"}},
    "mood": {"enum": ["sunny", "cloudy-sun", "cloudy", "rainy", null]},
    "mealFood": {"enum": ["all", "half", "none", null]},
    "mealWater": {"enum": ["enough", "lack", null]},
    "medication": {"enum": ["taken", "forgot", "refused", null]},
    "interaction": {"enum": ["had", "none", null]},
    "memo": {"type": ["string", "null"]}
  }
}`

func compileFieldsSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(fieldsSchema))
	if err != nil {
		return nil, fmt.Errorf("parse fields schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("fields.json", doc); err != nil {
		return nil, fmt.Errorf("add fields schema: %w", err)
	}

	schema, err := compiler.Compile("fields.json")
	if err != nil {
		return nil, fmt.Errorf("compile fields schema: %w", err)
	}
	return schema, nil
}
