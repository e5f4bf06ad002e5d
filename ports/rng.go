package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation. Equal (name, seed) pairs always yield identical
	// streams, which is what makes injection runs replayable.
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
