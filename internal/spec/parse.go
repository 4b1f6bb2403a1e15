package spec

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Parse decodes a spec document from the reader. Shape errors surface here;
// semantic errors are left to Validate so they can be reported together.
func Parse(r io.Reader) (*Spec, error) {
	var s Spec
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode spec: %w", err)
	}
	return &s, nil
}

// ParseFile reads and decodes a spec document from disk.
func ParseFile(path string) (*Spec, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open spec: %w", err)
	}
	defer file.Close()
	return Parse(file)
}
