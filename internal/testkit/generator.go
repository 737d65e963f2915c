package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"goencode/domain/core"
	"goencode/domain/encoding"

	"gonum.org/v1/gonum/mat"
)

// EncodingGeneratorConfig configures synthetic stimulus/response data.
// Responses are a linear map of the features plus Gaussian noise, with a
// fresh map per timepoint.
type EncodingGeneratorConfig struct {
	TrainSamples      int     `json:"train_samples"`
	ValidationSamples int     `json:"validation_samples"`
	TestSamples       int     `json:"test_samples"`
	FeatureDims       int     `json:"feature_dims"`
	Channels          []int   `json:"channels"`
	Noise             float64 `json:"noise"`
	Seed              int64   `json:"seed"`
}

// DefaultEncodingConfig returns a small three-timepoint setup
func DefaultEncodingConfig() EncodingGeneratorConfig {
	return EncodingGeneratorConfig{
		TrainSamples:      60,
		ValidationSamples: 30,
		TestSamples:       30,
		FeatureDims:       5,
		Channels:          []int{4, 4, 4},
		Noise:             0.1,
		Seed:              42,
	}
}

// EncodingDataGenerator generates features and responses
type EncodingDataGenerator struct {
	config EncodingGeneratorConfig
	rng    *rand.Rand
}

// NewEncodingDataGenerator creates a generator
func NewEncodingDataGenerator(config EncodingGeneratorConfig) *EncodingDataGenerator {
	return &EncodingDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Feature draws a standard normal feature set
func (g *EncodingDataGenerator) Feature(name core.FeatureName) *encoding.FeatureSet {
	f := &encoding.FeatureSet{
		Name:       name,
		Train:      g.gaussian(g.config.TrainSamples, g.config.FeatureDims),
		Validation: g.gaussian(g.config.ValidationSamples, g.config.FeatureDims),
	}
	if g.config.TestSamples > 0 {
		f.Test = g.gaussian(g.config.TestSamples, g.config.FeatureDims)
	}
	return f
}

// Responses draws one response set per configured timepoint
func (g *EncodingDataGenerator) Responses(f *encoding.FeatureSet) []encoding.ResponseSet {
	out := make([]encoding.ResponseSet, len(g.config.Channels))
	for t, channels := range g.config.Channels {
		weights := g.gaussian(g.config.FeatureDims, channels)
		out[t] = encoding.ResponseSet{
			Label:      fmt.Sprintf("%dms", t*20),
			Train:      g.respond(f.Train, weights),
			Validation: g.respond(f.Validation, weights),
		}
		if f.Test != nil {
			out[t].Test = g.respond(f.Test, weights)
		}
	}
	return out
}

func (g *EncodingDataGenerator) respond(x, weights *mat.Dense) *mat.Dense {
	var y mat.Dense
	y.Mul(x, weights)
	r, c := y.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			y.Set(i, j, y.At(i, j)+g.config.Noise*g.rng.NormFloat64())
		}
	}
	return &y
}

func (g *EncodingDataGenerator) gaussian(r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = g.rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// PeakedScores returns subjects × timepoints accuracies with a Gaussian bump
// of the given height centred on timepoint peak, plus noise.
func PeakedScores(rng *rand.Rand, subjects, timepoints, peak int, height, noise float64) *mat.Dense {
	m := mat.NewDense(subjects, timepoints, nil)
	for s := 0; s < subjects; s++ {
		for t := 0; t < timepoints; t++ {
			d := float64(t - peak)
			m.Set(s, t, height*math.Exp(-d*d/8)+noise*rng.NormFloat64())
		}
	}
	return m
}

// ConstantScores returns a subjects × timepoints matrix filled with v
func ConstantScores(subjects, timepoints int, v float64) *mat.Dense {
	data := make([]float64, subjects*timepoints)
	for i := range data {
		data[i] = v
	}
	return mat.NewDense(subjects, timepoints, data)
}
