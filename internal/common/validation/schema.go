package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ChatRequestSchema describes the body of POST /api/chat.
const ChatRequestSchema = `{
  "type": "object",
  "required": ["messages"],
  "properties": {
    "messages": {
      "type": "array",
      "minItems": 1,
      "maxItems": 200,
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role": {"type": "string", "enum": ["user", "assistant"]},
          "content": {"type": "string", "maxLength": 32000},
          "id": {"type": ["string", "number", "null"]}
        }
      }
    }
  }
}`

// FeedbackRequestSchema describes the body of POST /api/submit-feedback.
const FeedbackRequestSchema = `{
  "type": "object",
  "required": ["message"],
  "properties": {
    "message": {"type": "string", "minLength": 1},
    "turnId": {"type": "string"}
  }
}`

// ModeRegistrySchema describes the mode table file.
const ModeRegistrySchema = `{
  "type": "object",
  "required": ["version", "modes"],
  "properties": {
    "version": {"type": "string"},
    "modes": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["mode", "provider", "systemPrompt", "params"],
        "properties": {
          "mode": {"type": "string", "minLength": 1},
          "provider": {"type": "string", "minLength": 1},
          "systemPrompt": {"type": "string", "minLength": 1},
          "params": {
            "type": "object",
            "required": ["model"],
            "properties": {
              "model": {"type": "string", "minLength": 1},
              "temperature": {"type": "number", "minimum": 0, "maximum": 2},
              "maxTokens": {"type": "integer", "minimum": 1},
              "topP": {"type": "number", "minimum": 0, "maximum": 1},
              "topK": {"type": "integer", "minimum": 0},
              "frequencyPenalty": {"type": "number", "minimum": -2, "maximum": 2}
            }
          }
        }
      }
    }
  }
}`

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema.
type Schema struct {
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompile is Compile for package-level schemas.
func MustCompile(schemaJSON string) *Schema {
	s, err := Compile(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// ValidateBytes validates a raw JSON document. Malformed JSON is reported as
// a single INVALID_JSON error.
func (s *Schema) ValidateBytes(doc []byte) *ValidationResult {
	return s.validate(gojsonschema.NewBytesLoader(doc))
}

// ValidateValue validates an in-memory Go value.
func (s *Schema) ValidateValue(v interface{}) *ValidationResult {
	return s.validate(gojsonschema.NewGoLoader(v))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) *ValidationResult {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "(root)",
				Message: err.Error(),
				Code:    "INVALID_JSON",
			}},
		}
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}

// FormatErrors joins validation errors into one line.
func FormatErrors(errors []ValidationError) string {
	parts := make([]string, 0, len(errors))
	for _, e := range errors {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(parts, "; ")
}
