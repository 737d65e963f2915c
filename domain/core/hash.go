package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	GridHash    Hash
	FeatureHash Hash
	CohortHash  Hash
)

func (h GridHash) String() string    { return Hash(h).String() }
func (h FeatureHash) String() string { return Hash(h).String() }
func (h CohortHash) String() string  { return Hash(h).String() }

// ComputeGridHash hashes an ordered penalty grid. Order matters because
// selections are reported as grid indices.
func ComputeGridHash(penalties []float64) GridHash {
	var data strings.Builder
	for i, p := range penalties {
		data.WriteString(fmt.Sprintf("%d=%.17g;", i, p))
	}
	return GridHash(NewHash([]byte(data.String())))
}

// ComputeFeatureHash hashes a feature list independent of order
func ComputeFeatureHash(features []string) FeatureHash {
	sorted := append([]string(nil), features...)
	sort.Strings(sorted)
	return FeatureHash(NewHash([]byte(strings.Join(sorted, "|"))))
}

// ComputeCohortHash hashes the subject list of each group
func ComputeCohortHash(groups map[string][]string) CohortHash {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		subjects := append([]string(nil), groups[key]...)
		sort.Strings(subjects)
		data.WriteString(key)
		data.WriteString(":")
		data.WriteString(strings.Join(subjects, ","))
		data.WriteString(";")
	}
	return CohortHash(NewHash([]byte(data.String())))
}
