package tstree

import "sync/atomic"

// Live holds the current setup tree and lets it be swapped while requests
// are reading it. Trees stored in a Live must not be mutated afterwards.
type Live struct {
	v atomic.Pointer[Node]
}

// NewLive returns a Live holding n.
func NewLive(n *Node) *Live {
	l := &Live{}
	l.Store(n)
	return l
}

// Load returns the current tree, never nil.
func (l *Live) Load() *Node {
	if n := l.v.Load(); n != nil {
		return n
	}
	return New()
}

// Store replaces the current tree.
func (l *Live) Store(n *Node) {
	l.v.Store(n)
}
