package app

import (
	"context"
	"testing"

	"goencode/domain/core"
	"goencode/internal/inference"
	"goencode/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeGroup searches every subject of a group against one shared feature
// and returns the channel-averaged test correlation of each subject.
func encodeGroup(t *testing.T, kit *testkit.TestKit, group string, subjects ...string) map[string][]float64 {
	ctx := context.Background()
	svc := searchService(kit)
	means := make(map[string][]float64, len(subjects))
	for _, subject := range subjects {
		res, err := svc.Run(ctx, SearchRunRequest{Subject: subject, Group: group, Features: []core.FeatureName{"edges"}, Grid: grid(t), Encode: true})
		require.NoError(t, err)
		enc, ok := res.Encodings["edges"]
		require.True(t, ok)
		row, err := inference.ChannelMeans(enc.Correlation)
		require.NoError(t, err)
		means[subject] = row
	}
	return means
}

func groupKit() *testkit.TestKit {
	kit := testkit.NewTestKit()
	g := testkit.NewEncodingDataGenerator(testkit.DefaultEncodingConfig())
	f := g.Feature("edges")
	kit.Features().Add(f)
	for _, subject := range []string{"sub-03", "sub-01", "sub-02", "sub-09"} {
		kit.Responses().Add(subject, g.Responses(f))
	}
	return kit
}

func TestEncodedScoresStackGroupSubjects(t *testing.T) {
	ctx := context.Background()
	kit := groupKit()
	means := encodeGroup(t, kit, "adults", "sub-03", "sub-01", "sub-02")
	encodeGroup(t, kit, "children", "sub-09")

	scores, err := NewEncodedScoreSource(kit.Ledger()).LoadScores(ctx, "adults", "edges")
	require.NoError(t, err)
	n, nt := scores.Dims()
	require.Equal(t, 3, n)
	require.Equal(t, 3, nt)
	for i, subject := range []string{"sub-01", "sub-02", "sub-03"} {
		for ti := 0; ti < nt; ti++ {
			assert.InDelta(t, means[subject][ti], scores.At(i, ti), 1e-12, "%s at %d", subject, ti)
		}
	}

	children, err := NewEncodedScoreSource(kit.Ledger()).LoadScores(ctx, "children", "edges")
	require.NoError(t, err)
	rows, _ := children.Dims()
	assert.Equal(t, 1, rows)
}

func TestEncodedScoresUnknownGroup(t *testing.T) {
	kit := groupKit()
	encodeGroup(t, kit, "adults", "sub-01")

	_, err := NewEncodedScoreSource(kit.Ledger()).LoadScores(context.Background(), "elderly", "edges")
	require.Error(t, err)
	assert.True(t, core.IsNotFoundError(err))
}

func TestSearchEncodeThenBootstrap(t *testing.T) {
	ctx := context.Background()
	kit := groupKit()
	means := encodeGroup(t, kit, "adults", "sub-01", "sub-02", "sub-03")

	svc := bootstrapService(NewEncodedScoreSource(kit.Ledger()), kit.Ledger(), kit)
	res, err := svc.Run(ctx, BootstrapRequest{Group: "adults", Features: []core.FeatureName{"edges"}, Seed: 42})
	require.NoError(t, err)

	require.Len(t, res.Accuracy, 1)
	acc := res.Accuracy[0]
	require.Len(t, acc.Mean, 3)
	for ti, m := range acc.Mean {
		want := (means["sub-01"][ti] + means["sub-02"][ti] + means["sub-03"][ti]) / 3
		assert.InDelta(t, want, m, 1e-12)
		assert.Greater(t, m, 0.5)
	}
}
