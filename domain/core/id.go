package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID       ID
	ArtifactID  ID
	FeatureName ID
)

func (id RunID) String() string       { return ID(id).String() }
func (id ArtifactID) String() string  { return ID(id).String() }
func (id FeatureName) String() string { return ID(id).String() }

// NewRunID creates a time-ordered run identifier
func NewRunID() RunID { return RunID(NewID()) }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseArtifactID parses a string into ArtifactID
func ParseArtifactID(s string) (ArtifactID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("artifact ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("artifact ID %q is not a UUID: %w", s, err)
	}
	return ArtifactID(s), nil
}

// ParseFeatureName parses a string into FeatureName
func ParseFeatureName(s string) (FeatureName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("feature name cannot be empty")
	}
	return FeatureName(s), nil
}

// Artifact represents any output of the system
type Artifact struct {
	ID        ArtifactID   `json:"id" db:"id"`
	RunID     RunID        `json:"run_id" db:"run_id"`
	Kind      ArtifactKind `json:"kind" db:"kind"`
	Feature   FeatureName  `json:"feature,omitempty" db:"feature"`
	Payload   interface{}  `json:"payload" db:"-"`
	CreatedAt Timestamp    `json:"created_at" db:"-"`
}

// ArtifactKind defines types of artifacts
type ArtifactKind string

const (
	ArtifactRunManifest ArtifactKind = "run_manifest"
	// ArtifactSearch holds the full score tensor and penalty selection for one feature.
	ArtifactSearch ArtifactKind = "hyperparameter_search"
	// ArtifactEncoding holds held-out test-split scores with the selected penalty.
	ArtifactEncoding       ArtifactKind = "encoding"
	ArtifactAccuracyCI     ArtifactKind = "bootstrap_accuracy_ci"
	ArtifactPeakCI         ArtifactKind = "bootstrap_peak_ci"
	ArtifactPeakDifference ArtifactKind = "bootstrap_peak_difference"
	ArtifactPermutation    ArtifactKind = "permutation_test"
)

// Kinds lists every artifact kind in report order.
func Kinds() []ArtifactKind {
	return []ArtifactKind{
		ArtifactRunManifest,
		ArtifactSearch,
		ArtifactEncoding,
		ArtifactAccuracyCI,
		ArtifactPeakCI,
		ArtifactPeakDifference,
		ArtifactPermutation,
	}
}

// ParseArtifactKind validates a kind string
func ParseArtifactKind(s string) (ArtifactKind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown artifact kind %q", s)
}
