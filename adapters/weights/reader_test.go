package weights

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"goencode/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShared(t *testing.T) {
	w, err := Parse([]byte(`{"explained_variance": [0.5, 0.25, 0.125]}`), []string{"-400ms", "-380ms"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5, 0.25, 0.125}}, w)
}

func TestParseLayers(t *testing.T) {
	doc := `{"layers": {
		"layer1.0": {"explained_variance": [0.6, 0.4]},
		"fc": {"explained_variance": [1]}
	}}`
	w, err := Parse([]byte(doc), []string{"layer1.0", "fc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.6, 0.4}, {1}}, w)

	_, err = Parse([]byte(doc), []string{"conv1"})
	assert.True(t, errors.Is(err, core.ErrInvalidWeights))
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, doc := range []string{`{`, `{"explained_variance": "high"}`, `{"explained_variance": [1, "x"]}`, `{}`} {
		_, err := Parse([]byte(doc), nil)
		assert.True(t, errors.Is(err, core.ErrInvalidWeights), doc)
	}
}

func TestLoadWeightsMissingFileIsUnweighted(t *testing.T) {
	dir := t.TempDir()
	reader := NewExplainedVarianceReader(dir, nil)

	w, err := reader.LoadWeights(context.Background(), "sub01", []string{"a"})
	require.NoError(t, err)
	assert.Nil(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub01.json"), []byte(`{"explained_variance": [2, 1]}`), 0o644))
	w, err = reader.LoadWeights(context.Background(), "sub01", []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 1}}, w)
}
