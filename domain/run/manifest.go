package run

import (
	"goencode/domain/core"
)

// CodeVersion is stamped into every manifest
const CodeVersion = "0.3.0"

// RunManifestArtifact is the replay record of a run. It is stored before any
// result artifact of the same run.
type RunManifestArtifact struct {
	RunID       core.RunID        `json:"run_id"`
	Analysis    Analysis          `json:"analysis"`
	Features    []string          `json:"features"`
	Penalties   []float64         `json:"penalties,omitempty"`
	Seed        int64             `json:"seed"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	CodeVersion string            `json:"code_version"`
	Fingerprint RunFingerprint    `json:"fingerprint"`
	CreatedAt   core.Timestamp    `json:"created_at"`
}

// NewRunManifestArtifact creates a run manifest. penalties and cohorts may be
// nil for analyses that do not use them.
func NewRunManifestArtifact(
	runID core.RunID,
	analysis Analysis,
	features []string,
	penalties []float64,
	cohorts map[string][]string,
	seed int64,
	parameters map[string]string,
) *RunManifestArtifact {
	var gridHash core.GridHash
	if len(penalties) > 0 {
		gridHash = core.ComputeGridHash(penalties)
	}
	var cohortHash core.CohortHash
	if len(cohorts) > 0 {
		cohortHash = core.ComputeCohortHash(cohorts)
	}
	fingerprint := NewRunFingerprint(analysis, gridHash, core.ComputeFeatureHash(features), cohortHash, seed, CodeVersion)

	return &RunManifestArtifact{
		RunID:       runID,
		Analysis:    analysis,
		Features:    append([]string(nil), features...),
		Penalties:   append([]float64(nil), penalties...),
		Seed:        seed,
		Parameters:  parameters,
		CodeVersion: CodeVersion,
		Fingerprint: fingerprint,
		CreatedAt:   core.Now(),
	}
}

// ToCoreArtifact converts to a core artifact for storage
func (r *RunManifestArtifact) ToCoreArtifact() core.Artifact {
	return core.Artifact{
		ID:        core.ArtifactID(core.NewID()),
		RunID:     r.RunID,
		Kind:      core.ArtifactRunManifest,
		Payload:   r,
		CreatedAt: r.CreatedAt,
	}
}

// Validate checks if the manifest is complete
func (r *RunManifestArtifact) Validate() error {
	if core.ID(r.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if len(r.Features) == 0 {
		return core.NewValidationError("run_manifest", "features cannot be empty")
	}
	if r.Analysis == AnalysisSearch && len(r.Penalties) == 0 {
		return core.NewValidationError("run_manifest", "search runs need a penalty grid")
	}
	if r.Analysis != AnalysisSearch && r.Seed == 0 {
		return core.NewValidationError("run_manifest", "randomized runs need a non-zero seed")
	}
	if r.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return nil
}
