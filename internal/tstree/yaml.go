package tstree

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseYAML builds a tree from a YAML document. Mapping order is preserved.
//
//	includeCSS.:
//	  a: foo.css
//	  a.:
//	    media: print
//
// and
//
//	includeCSS:
//	  a: foo.css
//	  a.: {media: print}
//
// produce the same tree.
func ParseYAML(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse setup yaml: %w", err)
	}
	root := New()
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return root, nil
	}
	body := doc.Content[0]
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse setup yaml: top level must be a mapping, got %s", kindName(body.Kind))
	}
	if err := fill(root, body); err != nil {
		return nil, err
	}
	return root, nil
}

// LoadFile reads and parses a YAML setup file.
func LoadFile(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read setup file: %w", err)
	}
	return ParseYAML(data)
}

func fill(target *Node, m *yaml.Node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		keyNode, valNode := m.Content[i], m.Content[i+1]
		key := keyNode.Value
		if err := assign(target, key, valNode); err != nil {
			return err
		}
	}
	return nil
}

func assign(target *Node, key string, val *yaml.Node) error {
	if val.Kind == yaml.AliasNode && val.Alias != nil {
		val = val.Alias
	}
	child := target.ensure(key)
	switch val.Kind {
	case yaml.ScalarNode:
		if val.Tag == "!!null" {
			return nil
		}
		child.value = val.Value
		child.hasValue = true
	case yaml.MappingNode:
		return fill(child, val)
	case yaml.SequenceNode:
		for idx, item := range val.Content {
			if err := assign(child, strconv.Itoa(idx), item); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("parse setup yaml: key %q has unsupported %s value at line %d", key, kindName(val.Kind), val.Line)
	}
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
