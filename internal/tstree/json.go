package tstree

import (
	"encoding/json"
	"fmt"
)

// jsonNode is the wire form of a Node. Children are a list so that key order
// survives encoding.
type jsonNode struct {
	Value    *string     `json:"v,omitempty"`
	Children []jsonChild `json:"c,omitempty"`
}

type jsonChild struct {
	Key  string `json:"k"`
	Node *Node  `json:"n"`
}

// MarshalJSON encodes the node with its child order.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	var out jsonNode
	if n.hasValue {
		v := n.value
		out.Value = &v
	}
	for _, k := range n.keys {
		out.Children = append(out.Children, jsonChild{Key: k, Node: n.children[k]})
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a node written by MarshalJSON.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in jsonNode
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode setup tree: %w", err)
	}
	*n = Node{}
	if in.Value != nil {
		n.value = *in.Value
		n.hasValue = true
	}
	for _, c := range in.Children {
		child := c.Node
		if child == nil {
			child = New()
		}
		n.appendChild(c.Key, child)
	}
	return nil
}
