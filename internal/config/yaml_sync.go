package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// syncKnownFields re-encodes cfg and merges its scalar/sequence values into
// root's top-level mapping, replacing existing key nodes in place (so
// unrelated formatting and unknown keys are untouched) and appending any
// known key that was previously absent. This is what lets config.yaml
// keep unknown keys and their values across a load-validate-save cycle.
// Save re-marshals the whole tree, so the YAML encoder normalizes their
// formatting (indentation, quoting); it is not kept byte-for-byte.
func syncKnownFields(root *yaml.Node, cfg *Config) error {
	if root.Kind == 0 {
		return nil
	}

	mapping := root
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			root.Kind = yaml.MappingNode
			root.Tag = "!!map"
			mapping = root
		} else {
			mapping = root.Content[0]
		}
	}
	if mapping.Kind != yaml.MappingNode {
		return fmt.Errorf("config.yaml root is not a mapping")
	}

	replacement := &yaml.Node{}
	if err := replacement.Encode(cfg); err != nil {
		return fmt.Errorf("encoding known fields: %w", err)
	}
	if replacement.Kind != yaml.MappingNode {
		return fmt.Errorf("encoded config is not a mapping")
	}

	for i := 0; i < len(replacement.Content); i += 2 {
		keyNode := replacement.Content[i]
		valNode := replacement.Content[i+1]
		setMappingValue(mapping, keyNode.Value, valNode)
	}

	return nil
}

// setMappingValue replaces the value node for key in mapping, or appends a
// new key/value pair at the end if key is not already present.
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
