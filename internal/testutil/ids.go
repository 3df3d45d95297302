// Package testutil holds deterministic fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"sync"
)

// SequentialIDs generates predictable session IDs: "<prefix>-1", "<prefix>-2", ...
//
// Implements device.IDGenerator so traces and journals are reproducible.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "session".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "session"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}

// Fill returns n copies of b.
func Fill(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

// Pattern returns n bytes cycling through 0..250, so any window of up to
// 251 bytes is distinguishable from its neighbours.
func Pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % 251)
	}
	return out
}
