package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ripor/slocheck/schemas"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaViolation is returned when a document does not match its schema.
var ErrSchemaViolation = errors.New("schema violation")

// schemaBaseURL matches the $id prefix of the embedded schemas.
const schemaBaseURL = "https://ripor.dev/schemas/"

var (
	compiledMu sync.Mutex
	compiled   = map[string]*jsonschema.Schema{}
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}

	raw, err := schemas.FS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("schema %s unavailable: %w", name, err)
	}
	url := schemaBaseURL + name
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled[name] = s
	return s, nil
}

// Validate checks a JSON document against an embedded schema, for example
// schemas.SLOResultV1.
func Validate(name string, raw []byte) error {
	s, err := compileSchema(name)
	if err != nil {
		return err
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSchemaViolation, name, err)
	}
	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSchemaViolation, name, err)
	}
	return nil
}
