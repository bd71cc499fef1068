package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// chatEnvelopeSchema is the minimum shape a chat completion response must have
// for the assistant text to be read from it.
const chatEnvelopeSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["choices"],
  "properties": {
    "choices": {
      "type": "array",
      "minItems": 1,
      "items": [{
        "type": "object",
        "required": ["message"],
        "properties": {
          "message": {
            "type": "object",
            "required": ["content"],
            "properties": {
              "content": {"type": "string"}
            }
          }
        }
      }]
    }
  }
}`

var compileEnvelopeSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("chat_envelope.json", strings.NewReader(chatEnvelopeSchema)); err != nil {
		return nil, fmt.Errorf("failed to load envelope schema: %w", err)
	}
	schema, err := compiler.Compile("chat_envelope.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile envelope schema: %w", err)
	}
	return schema, nil
})

// decodeEnvelope validates and decodes a 2xx chat completion body.
func decodeEnvelope(body []byte) (*chatResponse, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &EnvelopeError{Reason: "response is not JSON", Body: string(body), Err: err}
	}

	schema, err := compileEnvelopeSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &EnvelopeError{Reason: "missing choices[0].message.content", Body: string(body), Err: err}
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &EnvelopeError{Reason: "unexpected response shape", Body: string(body), Err: err}
	}
	return &resp, nil
}
