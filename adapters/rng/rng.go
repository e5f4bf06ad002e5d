// Package rng provides the deterministic random-stream adapter.
package rng

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// StreamFactory derives independent deterministic streams from a base
// seed and a stream name, so distinct operations never share draws while
// staying replayable run to run.
type StreamFactory struct{}

// NewStreamFactory creates the adapter
func NewStreamFactory() *StreamFactory {
	return &StreamFactory{}
}

// SeededStream returns a rand.Rand whose sequence depends only on
// (name, seed).
func (f *StreamFactory) SeededStream(_ context.Context, name string, seed int64) (*rand.Rand, error) {
	h := fnv.New64a()
	h.Write([]byte(name))
	derived := int64(h.Sum64()) ^ seed
	return rand.New(rand.NewSource(derived)), nil
}
