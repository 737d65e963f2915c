// Package rng provides the seeded random streams used by resampling stages.
package rng

import (
	"context"
	"fmt"
	"math/rand"

	"goencode/domain/core"
)

// SeededAdapter implements ports.RNGPort with math/rand sources derived from
// an explicit seed.
type SeededAdapter struct {
	allowZeroSeed bool
}

// NewSeededAdapter creates an adapter. A zero seed is rejected unless
// allowZeroSeed is set.
func NewSeededAdapter(allowZeroSeed bool) *SeededAdapter {
	return &SeededAdapter{allowZeroSeed: allowZeroSeed}
}

// Stream derives a seed from stageName and featureKey on top of baseSeed, so
// every (stage, feature) draws from its own sequence. The run ID takes no
// part: two runs with the same seed resample identically.
func (r *SeededAdapter) Stream(ctx context.Context, stageName, featureKey string, baseSeed int64) (*rand.Rand, error) {
	if baseSeed == 0 && !r.allowZeroSeed {
		return nil, fmt.Errorf("%w: %s/%s", core.ErrMissingSeed, stageName, featureKey)
	}
	seed := baseSeed
	if stageName != "" {
		seed = int64(hashString(stageName)) + seed
	}
	if featureKey != "" {
		seed = int64(hashString(featureKey)) + seed
	}
	return rand.New(rand.NewSource(seed)), nil
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2 algorithm
	}
	return hash
}
