package run

import (
	"crypto/sha256"
	"fmt"

	"goencode/domain/core"
)

// Analysis names the procedure a run executed
type Analysis string

const (
	AnalysisSearch      Analysis = "search"
	AnalysisBootstrap   Analysis = "bootstrap"
	AnalysisPermutation Analysis = "permutation"
)

// RunFingerprint ensures deterministic replay
type RunFingerprint struct {
	Analysis    Analysis         `json:"analysis"`
	GridHash    core.GridHash    `json:"grid_hash,omitempty"`
	FeatureHash core.FeatureHash `json:"feature_hash"`
	CohortHash  core.CohortHash  `json:"cohort_hash,omitempty"`
	Seed        int64            `json:"seed"`
	CodeVersion string           `json:"code_version"`
	Fingerprint core.Hash        `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(analysis Analysis, gridHash core.GridHash, featureHash core.FeatureHash,
	cohortHash core.CohortHash, seed int64, codeVersion string) RunFingerprint {

	return RunFingerprint{
		Analysis:    analysis,
		GridHash:    gridHash,
		FeatureHash: featureHash,
		CohortHash:  cohortHash,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(analysis, gridHash, featureHash, cohortHash, seed, codeVersion),
	}
}

func computeRunFingerprint(analysis Analysis, gridHash core.GridHash, featureHash core.FeatureHash,
	cohortHash core.CohortHash, seed int64, codeVersion string) core.Hash {

	data := fmt.Sprintf("analysis:%s|grid:%s|features:%s|cohort:%s|seed:%d|code:%s",
		analysis, gridHash, featureHash, cohortHash, seed, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
