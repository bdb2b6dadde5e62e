package task

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// syncFields merges fields' known keys into mapping's top-level nodes,
// replacing existing key nodes in place, appending any key that was not
// already present, and removing the key of a known optional field that is
// now empty. Keys present in mapping but not in Fields (unknown header keys)
// keep their keys and values. Serialize re-marshals the whole header, so
// the YAML encoder normalizes their formatting (indentation, quoting); it
// is not kept byte-for-byte.
func syncFields(mapping *yaml.Node, fields *Fields) error {
	if mapping.Kind == yaml.DocumentNode {
		if len(mapping.Content) == 0 {
			mapping.Kind = yaml.MappingNode
			mapping.Tag = "!!map"
		} else {
			*mapping = *mapping.Content[0]
		}
	}
	if mapping.Kind != yaml.MappingNode {
		return fmt.Errorf("task header is not a mapping")
	}

	replacement := &yaml.Node{}
	if err := replacement.Encode(fields); err != nil {
		return fmt.Errorf("encoding known fields: %w", err)
	}

	present := make(map[string]bool, len(replacement.Content)/2)
	for i := 0; i < len(replacement.Content); i += 2 {
		keyNode := replacement.Content[i]
		valNode := replacement.Content[i+1]
		present[keyNode.Value] = true
		setMappingValue(mapping, keyNode.Value, valNode)
	}
	// The encoder omits cleared omitempty fields, so drop their keys here;
	// otherwise the old value from the parse tree would be written back.
	for _, key := range []string{"tags", "assigned_to", "started_at", "submitted_at", "completed_at",
		"branch", "worktree", "base_sha", "affects", "affects_globs", "must_not_touch", "depends_on"} {
		for i := 0; !present[key] && i < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == key {
				mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
				break
			}
		}
	}
	return nil
}

func setMappingValue(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	mapping.Content = append(mapping.Content, keyNode, value)
}
