// Package tstree provides the typed configuration tree consumed by the page
// renderer.
//
// TypoScript-style setup arrives as nested key/value data where a key with a
// trailing dot ("includeCSS.") carries the sub-tree of the key without the dot
// ("includeCSS"). The tree normalizes that convention once, at ingestion, so
// that consumers never inspect key suffixes: every Node has an optional scalar
// value and an ordered set of children.
package tstree

import (
	"sort"
	"strconv"
	"strings"
)

// Node is one entry of a configuration tree.
type Node struct {
	value    string
	hasValue bool
	keys     []string
	children map[string]*Node
}

// New returns an empty node.
func New() *Node {
	return &Node{}
}

// NewValue returns a leaf node holding value.
func NewValue(value string) *Node {
	return &Node{value: value, hasValue: true}
}

// Value returns the scalar value of the node, or "" when it has none.
func (n *Node) Value() string {
	if n == nil {
		return ""
	}
	return n.value
}

// HasValue reports whether a scalar value was assigned to the node.
func (n *Node) HasValue() bool {
	return n != nil && n.hasValue
}

// IsTree reports whether the node has at least one child.
func (n *Node) IsTree() bool {
	return n != nil && len(n.keys) > 0
}

// IsContainer reports whether the node only groups children and carries no
// value of its own.
func (n *Node) IsContainer() bool {
	return n != nil && !n.hasValue
}

// Len returns the number of children.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.keys)
}

// Keys returns the child keys in insertion order.
func (n *Node) Keys() []string {
	if n == nil {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// NumericKeys returns the child keys that are integers, sorted numerically.
// Content-object arrays are evaluated in this order.
func (n *Node) NumericKeys() []string {
	if n == nil {
		return nil
	}
	type numbered struct {
		key string
		num int
	}
	var list []numbered
	for _, k := range n.keys {
		if i, err := strconv.Atoi(k); err == nil {
			list = append(list, numbered{k, i})
		}
	}
	sort.SliceStable(list, func(a, b int) bool { return list[a].num < list[b].num })
	out := make([]string, len(list))
	for i, l := range list {
		out[i] = l.key
	}
	return out
}

// Child returns the direct child stored under key, or nil.
func (n *Node) Child(key string) *Node {
	if n == nil || n.children == nil {
		return nil
	}
	return n.children[normalizeKey(key)]
}

// Has reports whether a direct child exists under key.
func (n *Node) Has(key string) bool {
	return n.Child(key) != nil
}

// Get resolves a dotted path such as "config.namespaces". A nil receiver or a
// missing segment yields nil.
func (n *Node) Get(path string) *Node {
	cur := n
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			continue
		}
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// String returns the value of the child at path, or "".
func (n *Node) String(path string) string {
	return n.Get(path).Value()
}

// StringDefault returns the value at path, or def when the value is absent or
// empty.
func (n *Node) StringDefault(path, def string) string {
	if v := n.String(path); v != "" {
		return v
	}
	return def
}

// Bool interprets the value at path the way setup values are interpreted:
// empty, "0" and "false" are false, everything else is true.
func (n *Node) Bool(path string) bool {
	return Truthy(n.String(path))
}

// Int returns the integer value at path, or def when absent or not a number.
func (n *Node) Int(path string, def int) int {
	v := strings.TrimSpace(n.String(path))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// Set assigns a scalar value to the child key, creating it when needed. The
// key keeps its original position when it already exists.
func (n *Node) Set(key, value string) *Node {
	child := n.ensure(key)
	child.value = value
	child.hasValue = true
	return n
}

// SetChild replaces the children of key with those of sub while keeping any
// value already assigned to key.
func (n *Node) SetChild(key string, sub *Node) *Node {
	child := n.ensure(key)
	if sub == nil {
		return n
	}
	if sub.hasValue {
		child.value = sub.value
		child.hasValue = true
	}
	child.keys = nil
	child.children = nil
	for _, k := range sub.keys {
		child.appendChild(k, sub.children[k].Clone())
	}
	return n
}

// Delete removes the child under key.
func (n *Node) Delete(key string) {
	if n == nil || n.children == nil {
		return
	}
	key = normalizeKey(key)
	if _, ok := n.children[key]; !ok {
		return
	}
	delete(n.children, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{value: n.value, hasValue: n.hasValue}
	for _, k := range n.keys {
		out.appendChild(k, n.children[k].Clone())
	}
	return out
}

// Merge returns a copy of n with other merged in recursively. Values and
// children from other win; keys only in n keep their order and keys new in
// other are appended.
func (n *Node) Merge(other *Node) *Node {
	out := n.Clone()
	if out == nil {
		out = New()
	}
	if other == nil {
		return out
	}
	if other.hasValue {
		out.value = other.value
		out.hasValue = true
	}
	for _, k := range other.keys {
		oc := other.children[k]
		if existing := out.Child(k); existing != nil {
			out.children[k] = existing.Merge(oc)
			continue
		}
		out.appendChild(k, oc.Clone())
	}
	return out
}

// ToPlain converts the subtree into plain maps for JSON encoding. Nodes with
// children become maps; a node holding both a value and children exposes the
// value under "_value".
func (n *Node) ToPlain() any {
	if n == nil {
		return nil
	}
	if len(n.keys) == 0 {
		return n.value
	}
	out := make(map[string]any, len(n.keys)+1)
	if n.hasValue {
		out["_value"] = n.value
	}
	for _, k := range n.keys {
		out[k] = n.children[k].ToPlain()
	}
	return out
}

func (n *Node) ensure(key string) *Node {
	key = normalizeKey(key)
	if child := n.Child(key); child != nil {
		return child
	}
	child := New()
	n.appendChild(key, child)
	return child
}

func (n *Node) appendChild(key string, child *Node) {
	if n.children == nil {
		n.children = make(map[string]*Node)
	}
	n.keys = append(n.keys, key)
	n.children[key] = child
}

// normalizeKey strips the structural dot suffix.
func normalizeKey(key string) string {
	return strings.TrimSuffix(key, ".")
}

// Truthy reports whether a setup value counts as enabled.
func Truthy(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "0" && !strings.EqualFold(v, "false")
}
