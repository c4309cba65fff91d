// Package report renders and stores the outcome of an idle measurement.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ripor/slocheck/internal/slo"
	"github.com/ripor/slocheck/schemas"
)

// Marshal encodes a result as two-space-indented JSON.
func Marshal(result *slo.Result) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("result cannot be nil")
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return data, nil
}

// Render writes the indented JSON document for result to w, followed by a
// newline.
func Render(w io.Writer, result *slo.Result) error {
	data, err := Marshal(result)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Save validates result against the result schema and writes it to path.
// Parent directories are created as needed.
func Save(path string, result *slo.Result) error {
	if path == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	data, err := Marshal(result)
	if err != nil {
		return err
	}
	if err := Validate(schemas.SLOResultV1, data); err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}

func ensureParent(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// Load reads a result document previously written by Save.
func Load(path string) (*slo.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Validate(schemas.SLOResultV1, data); err != nil {
		return nil, err
	}
	var result slo.Result
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &result, nil
}
