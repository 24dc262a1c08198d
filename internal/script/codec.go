package script

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidFormat marks an import payload whose top-level value is not a
// sequence of node-shaped objects. Callers keep their current script when
// import fails.
var ErrInvalidFormat = errors.New("invalid script format")

// Marshal serializes the tree to indented JSON for export. Round-trips with
// Unmarshal losslessly: nesting, ids, and parameter values all survive.
func Marshal(t *Tree) ([]byte, error) {
	return json.MarshalIndent(t.Export(), "", "  ")
}

// Unmarshal parses an exported script back into a tree. The previous tree is
// never touched: on any error the caller's script stays as it was.
func Unmarshal(data []byte) (*Tree, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	// Guard the shape up front: "null" would otherwise decode into a nil
	// slice and silently produce an empty script.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: top-level value must be a command array", ErrInvalidFormat)
	}

	var nodes []*Node
	if err := json.Unmarshal(trimmed, &nodes); err != nil {
		return nil, fmt.Errorf("%w: top-level value must be a command array", ErrInvalidFormat)
	}

	t, err := FromNodes(nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return t, nil
}
