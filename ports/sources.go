package ports

import (
	"context"

	"goencode/domain/core"
	"goencode/domain/encoding"

	"gonum.org/v1/gonum/mat"
)

// FeatureSource loads named stimulus feature matrices
type FeatureSource interface {
	ListFeatures(ctx context.Context) ([]core.FeatureName, error)
	LoadFeature(ctx context.Context, name core.FeatureName) (*encoding.FeatureSet, error)
}

// ResponseSource loads the response matrices of one subject (EEG) or one
// network (DNN activations), one ResponseSet per timepoint or layer.
type ResponseSource interface {
	LoadResponses(ctx context.Context, subject string) ([]encoding.ResponseSet, error)
}

// WeightSource loads per-channel importance weights, typically the explained
// variance of each principal component. A nil result means unweighted.
type WeightSource interface {
	LoadWeights(ctx context.Context, subject string, labels []string) ([][]float64, error)
}

// ScoreSource loads subjects × timepoints accuracy matrices for one feature
// of one group of subjects.
type ScoreSource interface {
	LoadScores(ctx context.Context, group string, feature core.FeatureName) (*mat.Dense, error)
}
