package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// generateRequestSchema is the wire contract for POST /v1/tours. Typed
// validation still runs after decoding; the schema catches shape errors
// with better messages before any field-level checks.
const generateRequestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["location", "interests"],
	"additionalProperties": false,
	"properties": {
		"location": {
			"type": "object",
			"required": ["street_name"],
			"additionalProperties": false,
			"properties": {
				"street_name": {"type": "string", "minLength": 1},
				"area": {"type": "string"},
				"city": {"type": "string"},
				"country": {"type": "string"},
				"country_code": {"type": "string"},
				"formatted_address": {"type": "string"},
				"latitude": {"type": "number", "minimum": -90, "maximum": 90},
				"longitude": {"type": "number", "minimum": -180, "maximum": 180}
			}
		},
		"interests": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"selected_places": {"type": "array", "items": {"$ref": "#/$defs/place"}},
		"nearby_places": {"type": "array", "items": {"$ref": "#/$defs/place"}}
	},
	"$defs": {
		"place": {
			"type": "object",
			"required": ["name"],
			"additionalProperties": false,
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"types": {"type": "array", "items": {"type": "string"}},
				"address": {"type": "string"},
				"place_id": {"type": "string"},
				"rating": {"type": "number", "minimum": 0, "maximum": 5},
				"review_count": {"type": "integer", "minimum": 0}
			}
		}
	}
}`

var compiledGenerateSchema = jsonschema.MustCompileString("generate_request.json", generateRequestSchema)

func validateGenerateBody(raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiledGenerateSchema.Validate(payload); err != nil {
		return fmt.Errorf("request does not match contract: %w", err)
	}
	return nil
}
