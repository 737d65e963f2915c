package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"goencode/adapters/memory"
	"goencode/domain/core"
	"goencode/domain/encoding"
	domainInference "goencode/domain/inference"
	"goencode/domain/run"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func store(t *testing.T, ledger *memory.LedgerAdapter, runID core.RunID, kind core.ArtifactKind, feature core.FeatureName, payload interface{}) {
	t.Helper()
	require.NoError(t, ledger.StoreArtifact(context.Background(), runID.String(), core.Artifact{
		ID: core.ArtifactID(core.NewID()), Kind: kind, Feature: feature, Payload: payload, CreatedAt: core.Now(),
	}))
}

func TestMarkdownBootstrapRun(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedgerAdapter()
	runID := core.RunID("boot-1")
	manifest := run.NewRunManifestArtifact(runID, run.AnalysisBootstrap, []string{"edges", "skeleton"}, nil, nil, 42, map[string]string{"n_perm": "1000"})
	require.NoError(t, ledger.StoreRunManifest(ctx, manifest))

	store(t, ledger, runID, core.ArtifactAccuracyCI, "edges", &domainInference.AccuracyResult{
		Feature: "edges", Labels: []string{"-400ms", "-380ms"}, Mean: []float64{0.1, 0.3},
		Intervals: []domainInference.Interval{{Lower: 0.05, Upper: 0.15}, {Lower: 0.2, Upper: 0.4}}, NPerm: 1000,
	})
	store(t, ledger, runID, core.ArtifactPeakCI, "edges", domainInference.PeakResult{Feature: "edges", Interval: domainInference.PeakInterval{Lower: 20, Peak: 40, Upper: 60}})
	// raw JSON payloads are what the PostgreSQL ledger returns
	raw, err := json.Marshal(domainInference.PeakDifference{FeatureA: "skeleton", FeatureB: "edges", Lower: 20, Estimate: 60, Upper: 80})
	require.NoError(t, err)
	store(t, ledger, runID, core.ArtifactPeakDifference, "", json.RawMessage(raw))

	md, err := NewBuilder(ledger, domainInference.DefaultTimeline()).Markdown(ctx, runID)
	require.NoError(t, err)

	assert.Contains(t, md, "# Run boot-1")
	assert.Contains(t, md, "- Seed: 42")
	assert.Contains(t, md, "- n_perm: 1000")
	assert.Contains(t, md, "| edges | -380ms | 0.3000 | 0.2000 | 0.4000 | 0.1500 |")
	assert.Contains(t, md, "| edges | 20 | 40 | 60 |")
	assert.Contains(t, md, "| skeleton vs. edges | 20 | 60 | 80 | true |")
	assert.Less(t, strings.Index(md, "## Accuracy"), strings.Index(md, "## Peak latency (ms)"))
}

func TestMarkdownSearchAndPermutation(t *testing.T) {
	ctx := context.Background()
	ledger := memory.NewLedgerAdapter()
	runID := core.RunID("mixed")
	require.NoError(t, ledger.StoreRunManifest(ctx, run.NewRunManifestArtifact(runID, run.AnalysisSearch, []string{"edges"}, []float64{0.1, 1}, nil, 0, nil)))

	store(t, ledger, runID, core.ArtifactSearch, "edges", searchSummary{
		Feature:   "edges",
		Penalties: []float64{0.1, 1},
		Selection: &encoding.SelectionResult{
			Labels:          []string{"0ms"},
			BestIndexRMSE:   []int{1},
			BestIndexCorr:   []int{0},
			BestPenaltyRMSE: []float64{1},
			BestPenaltyCorr: []float64{0.1},
			ReducedCorr:     [][]float64{{0.5, 0.4}},
		},
	})
	store(t, ledger, runID, core.ArtifactEncoding, "edges", &encoding.EncodingResult{
		Labels: []string{"0ms"}, Penalties: []float64{0.1}, Correlation: [][]float64{{0.2, 0.4, 0.6}},
	})
	store(t, ledger, runID, core.ArtifactPermutation, "edges", &domainInference.PermutationResult{
		Feature: "edges", Tail: domainInference.TailBoth, Alpha: 0.05, NPerm: 100,
		Observed: []float64{2, 0}, PValues: []float64{0.01, 0.9}, Corrected: []float64{0.02, 0.9}, Reject: []bool{true, false},
		Null: []domainInference.NullSummary{{Percentile95: 0.8}, {Percentile95: 0.7}},
	})

	b := NewBuilder(ledger, domainInference.DefaultTimeline())
	md, err := b.Markdown(ctx, runID)
	require.NoError(t, err)
	assert.Contains(t, md, "| 0ms | 1 | 0.1 | 0.5000 |")
	assert.Contains(t, md, "| edges | 0ms | 0.1 | 0.4000 | 0.4000 | 0.6000 |")
	assert.Contains(t, md, "1 of 2 timepoints significant")
	assert.Contains(t, md, "| -400ms | 2.0000 | 0.01 | 0.02 | 0.8000 |")

	page, err := b.HTML(ctx, runID)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>Run mixed</title>")
	assert.Contains(t, string(page), "<table>")
}

func TestMarkdownUnknownRun(t *testing.T) {
	_, err := NewBuilder(memory.NewLedgerAdapter(), domainInference.DefaultTimeline()).Markdown(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, core.IsNotFoundError(err))
}
