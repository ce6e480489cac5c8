package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// workflowSchemaJSON is the JSON Schema every stored workflow document must
// satisfy. It enforces the step tag enum and per-variant requirements before
// the typed decode runs, mirroring how the policy firewall validates tool
// parameters.
const workflowSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "steps"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"enum": ["agent_step", "approval_gate", "tool_step", "http_step"]},
          "name": {"type": "string"},
          "action_type": {"type": "string"},
          "tool_name": {"type": "string"},
          "write": {"type": "boolean"},
          "command": {"type": "string"},
          "artifact": {"type": "string"}
        },
        "additionalProperties": false,
        "allOf": [
          {
            "if": {"properties": {"type": {"const": "tool_step"}}},
            "then": {"required": ["tool_name"]}
          }
        ]
      }
    }
  },
  "additionalProperties": false
}`

var workflowSchema = jsonschema.MustCompileString(
	"https://dara-labs.dev/schemas/workflow.schema.json",
	workflowSchemaJSON,
)

// ParseSchema validates and decodes a raw workflow schema document.
// Unknown step tags and unknown fields fail here, at load time, never
// during step execution.
func ParseSchema(raw []byte) (*WorkflowSchema, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: workflow schema is not valid JSON: %v", ErrValidation, err)
	}
	if err := workflowSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: workflow schema rejected: %v", ErrValidation, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var ws WorkflowSchema
	if err := dec.Decode(&ws); err != nil {
		return nil, fmt.Errorf("%w: workflow schema decode: %v", ErrValidation, err)
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	return &ws, nil
}

// EncodeSchema serializes a workflow schema for storage.
func EncodeSchema(ws *WorkflowSchema) (string, error) {
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ws); err != nil {
		return "", fmt.Errorf("encode workflow schema: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
