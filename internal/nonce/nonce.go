// Package nonce implements the per-request content-security-policy nonce.
//
// A Nonce tracks whether it was consumed, i.e. embedded into output. The page
// handler uses that to decide whether cached markup needs the nonce swapped
// on every replay.
package nonce

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync/atomic"
)

// Size is the number of random bytes in a nonce.
const Size = 32

// Nonce is a random token with consumption tracking.
type Nonce struct {
	value string
	uses  atomic.Int64
}

// New creates a nonce from crypto/rand.
func New() (*Nonce, error) {
	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return &Nonce{value: base64.RawURLEncoding.EncodeToString(b)}, nil
}

// FromValue wraps an existing nonce value.
func FromValue(value string) *Nonce {
	return &Nonce{value: value}
}

// Value returns the nonce without marking it consumed. Use it for response
// headers, which are never cached.
func (n *Nonce) Value() string {
	if n == nil {
		return ""
	}
	return n.value
}

// Consume returns the nonce and records one use. Call it whenever the value is
// written into markup that may be cached.
func (n *Nonce) Consume() string {
	if n == nil {
		return ""
	}
	n.uses.Add(1)
	return n.value
}

// Count returns how often the nonce was consumed.
func (n *Nonce) Count() int {
	if n == nil {
		return 0
	}
	return int(n.uses.Load())
}

// Consumed reports whether the nonce was consumed at least once.
func (n *Nonce) Consumed() bool {
	return n.Count() > 0
}

type contextKey struct{}

// WithContext stores n on ctx.
func WithContext(ctx context.Context, n *Nonce) context.Context {
	return context.WithValue(ctx, contextKey{}, n)
}

// FromContext returns the nonce stored on ctx, or nil.
func FromContext(ctx context.Context) *Nonce {
	n, _ := ctx.Value(contextKey{}).(*Nonce)
	return n
}
