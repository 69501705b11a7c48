package render

import (
	"encoding/json"
	"fmt"

	"github.com/yourorg/apibuilder/pkg/doc"
	"github.com/yourorg/apibuilder/pkg/types"
)

// Snapshot renders the tree as its JSON snapshot. The output can be loaded
// back with ParseSnapshot and rendered again in any other format.
type Snapshot struct{}

func (Snapshot) Generate(root *doc.Group, opts doc.Options) (string, error) {
	data, err := json.MarshalIndent(root.Snapshot(), "", indent(opts))
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// ParseSnapshot decodes a JSON snapshot into a root group.
func ParseSnapshot(data []byte) (*doc.Group, error) {
	var node types.GroupNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return doc.FromSnapshot(node), nil
}
