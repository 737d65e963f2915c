package testkit

import (
	"context"
	"math/rand"
	"testing"

	"goencode/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodingDataGeneratorShapes(t *testing.T) {
	config := DefaultEncodingConfig()
	config.Channels = []int{3, 6}
	g := NewEncodingDataGenerator(config)

	f := g.Feature("edges")
	require.NoError(t, f.Validate())
	responses := g.Responses(f)
	require.Len(t, responses, 2)
	for i, r := range responses {
		require.NoError(t, r.Validate(f))
		assert.Equal(t, config.Channels[i], r.Channels())
		rows, _ := r.Test.Dims()
		assert.Equal(t, config.TestSamples, rows)
	}
	assert.Equal(t, "20ms", responses[1].Label)
}

func TestEncodingDataGeneratorIsSeeded(t *testing.T) {
	a := NewEncodingDataGenerator(DefaultEncodingConfig()).Feature("x")
	b := NewEncodingDataGenerator(DefaultEncodingConfig()).Feature("x")
	assert.Equal(t, a.Train.RawMatrix().Data, b.Train.RawMatrix().Data)
}

func TestPeakedScoresPeakAtCentre(t *testing.T) {
	m := PeakedScores(rand.New(rand.NewSource(1)), 10, 20, 7, 0.5, 0)
	assert.InDelta(t, 0.5, m.At(3, 7), 1e-12)
	assert.Less(t, m.At(3, 2), m.At(3, 7))
}

func TestKitStores(t *testing.T) {
	ctx := context.Background()
	kit := NewTestKit()
	kit.Populate(NewEncodingDataGenerator(DefaultEncodingConfig()), "sub-01", "skeleton", "edges")

	names, err := kit.Features().ListFeatures(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.FeatureName{"edges", "skeleton"}, names)

	_, err = kit.Responses().LoadResponses(ctx, "sub-01")
	require.NoError(t, err)
	_, err = kit.Responses().LoadResponses(ctx, "sub-02")
	assert.True(t, core.IsNotFoundError(err))

	kit.Scores().Add("adults", "edges", ConstantScores(4, 3, 0.1))
	m, err := kit.Scores().LoadScores(ctx, "adults", "edges")
	require.NoError(t, err)
	assert.Equal(t, 0.1, m.At(3, 2))
	_, err = kit.Scores().LoadScores(ctx, "children", "edges")
	assert.True(t, core.IsNotFoundError(err))
}
