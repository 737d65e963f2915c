package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream creates a deterministic RNG stream for one (stage, feature).
	// Resampling of different features never shares a stream, so results do
	// not depend on scheduling.
	Stream(ctx context.Context, stageName, featureKey string, baseSeed int64) (*rand.Rand, error)
}
