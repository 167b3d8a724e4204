package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/pushplan/internal/ir"
)

// marshalNames converts a name list to canonical JSON TEXT for storage.
func marshalNames(names []string) (string, error) {
	data, err := ir.MarshalCanonical(ir.Strings(names...))
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	return string(data), nil
}

// unmarshalNames parses a stored name list. An empty column reads as an
// empty list.
func unmarshalNames(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal names: %w", err)
	}
	return names, nil
}
