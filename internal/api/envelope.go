package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tgienger/tdc/internal/models"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://schemas.tdc.local/"

// payloadKind names the success payload an endpoint returns
type payloadKind string

const (
	payloadNone payloadKind = "envelope.json"
	payloadList payloadKind = "list.json"
	payloadTodo payloadKind = "todo.json"
)

// envelope is the wrapper every Task API response uses
type envelope struct {
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message,omitempty"`
	Todos   []models.Task `json:"todos,omitempty"`
	Todo    *models.Task  `json:"todo,omitempty"`
}

var (
	schemasOnce sync.Once
	schemas     map[payloadKind]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[payloadKind]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		for _, name := range []string{"task.json", "envelope.json", "list.json", "todo.json"} {
			data, err := schemaFS.ReadFile("schema/" + name)
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
		}

		compiled := make(map[payloadKind]*jsonschema.Schema)
		for _, kind := range []payloadKind{payloadNone, payloadList, payloadTodo} {
			s, err := compiler.Compile(schemaBaseURL + string(kind))
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", kind, err)
				return
			}
			compiled[kind] = s
		}
		schemas = compiled
	})
	return schemas, schemasErr
}

// decodeEnvelope parses a response body. A body whose success field is not
// true yields an *APIError regardless of the HTTP status; anything that is
// not a well-formed envelope for the expected payload wraps
// ErrMalformedResponse.
func decodeEnvelope(body []byte, status int, requestID string, kind payloadKind) (*envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedResponse)
	}

	if success, _ := obj["success"].(bool); !success {
		msg, _ := obj["error"].(string)
		if msg == "" {
			msg = FallbackErrorMessage
		}
		return nil, &APIError{StatusCode: status, Message: msg, RequestID: requestID}
	}

	compiled, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	if err := compiled[kind].Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &env, nil
}
