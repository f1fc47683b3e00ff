package models

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// flowDocumentSchema describes the persisted flow document. Node data is left
// open here; its shape is enforced when decoding into the NodeData variants.
const flowDocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Chatbot flow document",
  "type": "object",
  "required": ["name", "trigger", "nodes", "edges"],
  "properties": {
    "id": {"type": "string"},
    "name": {"type": "string"},
    "description": {"type": "string"},
    "trigger": {"type": "string"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "data"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "enum": ["flow", "message", "input", "condition", "api", "function"]},
          "position": {
            "type": "object",
            "properties": {
              "x": {"type": "number"},
              "y": {"type": "number"}
            }
          },
          "data": {"type": "object"}
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var loadFlowSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(flowDocumentSchema))
})

// ValidateFlowDocument checks a raw persisted flow against the document schema.
func ValidateFlowDocument(raw []byte) error {
	schema, err := loadFlowSchema()
	if err != nil {
		return fmt.Errorf("failed to compile flow schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return &CorruptFlowError{Element: "document", Reason: "not valid JSON", Err: err}
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}

	return &CorruptFlowError{Element: "document", Reason: strings.Join(problems, "; ")}
}
