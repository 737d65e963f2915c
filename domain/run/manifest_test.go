package run

import (
	"testing"

	"goencode/domain/core"
)

func TestRunFingerprint_Deterministic(t *testing.T) {
	grid := core.ComputeGridHash([]float64{1e-5, 1, 1e10})
	features := core.ComputeFeatureHash([]string{"edges", "action"})

	fp1 := NewRunFingerprint(AnalysisSearch, grid, features, "", 42, "1.0.0")
	fp2 := NewRunFingerprint(AnalysisSearch, grid, features, "", 42, "1.0.0")

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.Seed != 42 {
		t.Errorf("Seed mismatch: %d vs 42", fp1.Seed)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	grid := core.ComputeGridHash([]float64{1, 10})
	features := core.ComputeFeatureHash([]string{"edges"})
	base := NewRunFingerprint(AnalysisBootstrap, grid, features, "cohort", 42, "1.0.0")

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different analysis", NewRunFingerprint(AnalysisPermutation, grid, features, "cohort", 42, "1.0.0")},
		{"different grid", NewRunFingerprint(AnalysisBootstrap, core.ComputeGridHash([]float64{1, 100}), features, "cohort", 42, "1.0.0")},
		{"different features", NewRunFingerprint(AnalysisBootstrap, grid, core.ComputeFeatureHash([]string{"lighting"}), "cohort", 42, "1.0.0")},
		{"different cohort", NewRunFingerprint(AnalysisBootstrap, grid, features, "other", 42, "1.0.0")},
		{"different seed", NewRunFingerprint(AnalysisBootstrap, grid, features, "cohort", 43, "1.0.0")},
		{"different code", NewRunFingerprint(AnalysisBootstrap, grid, features, "cohort", 42, "1.0.1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should change for %s", tc.name)
			}
		})
	}
}

func TestManifestValidate(t *testing.T) {
	m := NewRunManifestArtifact(core.NewRunID(), AnalysisSearch, []string{"edges"}, []float64{1, 10}, nil, 0, nil)
	if err := m.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	noGrid := NewRunManifestArtifact(core.NewRunID(), AnalysisSearch, []string{"edges"}, nil, nil, 0, nil)
	if err := noGrid.Validate(); err == nil {
		t.Error("Expected error for search run without grid")
	}

	noSeed := NewRunManifestArtifact(core.NewRunID(), AnalysisBootstrap, []string{"edges"}, nil, nil, 0, nil)
	if err := noSeed.Validate(); err == nil {
		t.Error("Expected error for bootstrap run without seed")
	}

	art := m.ToCoreArtifact()
	if art.Kind != core.ArtifactRunManifest || art.RunID != m.RunID {
		t.Errorf("Unexpected artifact: %+v", art)
	}
}
