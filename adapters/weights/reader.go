// Package weights reads per-channel importance weights from JSON files.
//
// A file <dir>/<subject>.json either holds one shared vector
//
//	{"explained_variance": [0.41, 0.22, ...]}
//
// or one vector per timepoint or layer
//
//	{"layers": {"conv1": {"explained_variance": [...]}, ...}}
package weights

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"goencode/domain/core"
	"goencode/internal"

	"github.com/tidwall/gjson"
)

// ExplainedVarianceReader implements ports.WeightSource
type ExplainedVarianceReader struct {
	dir    string
	logger *internal.Logger
}

// NewExplainedVarianceReader creates a reader rooted at dir
func NewExplainedVarianceReader(dir string, logger *internal.Logger) *ExplainedVarianceReader {
	return &ExplainedVarianceReader{dir: dir, logger: internal.OrDefault(logger).With("weights")}
}

// LoadWeights returns one vector per label, a single shared vector, or nil
// when the subject has no weight file.
func (r *ExplainedVarianceReader) LoadWeights(ctx context.Context, subject string, labels []string) ([][]float64, error) {
	path := filepath.Join(r.dir, subject+".json")
	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		r.logger.Debug("no weight file for %s, using unweighted channel means", subject)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(body, labels)
}

// Parse extracts weights for labels from a weight document
func Parse(body []byte, labels []string) ([][]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed weight document", core.ErrInvalidWeights)
	}

	if layers := gjson.GetBytes(body, "layers"); layers.Exists() {
		out := make([][]float64, len(labels))
		for i, label := range labels {
			res := layers.Get(gjson.Escape(label) + ".explained_variance")
			if !res.Exists() {
				return nil, fmt.Errorf("%w: no explained_variance for %q", core.ErrInvalidWeights, label)
			}
			v, err := floatsOf(res)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", label, err)
			}
			out[i] = v
		}
		return out, nil
	}

	shared := gjson.GetBytes(body, "explained_variance")
	if !shared.Exists() {
		return nil, fmt.Errorf("%w: document has neither layers nor explained_variance", core.ErrInvalidWeights)
	}
	v, err := floatsOf(shared)
	if err != nil {
		return nil, err
	}
	return [][]float64{v}, nil
}

func floatsOf(res gjson.Result) ([]float64, error) {
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: explained_variance is not an array", core.ErrInvalidWeights)
	}
	items := res.Array()
	out := make([]float64, len(items))
	for i, item := range items {
		if item.Type != gjson.Number {
			return nil, fmt.Errorf("%w: entry %d is %s, not a number", core.ErrInvalidWeights, i, item.Type)
		}
		out[i] = item.Float()
	}
	return out, nil
}
