package encoding

import (
	"fmt"

	"goencode/domain/core"

	"gonum.org/v1/gonum/mat"
)

// FeatureSet holds one named feature's design matrices per split.
// Rows are samples (images or videos), columns are feature dimensions.
type FeatureSet struct {
	Name       core.FeatureName
	Train      *mat.Dense
	Validation *mat.Dense
	Test       *mat.Dense // optional
}

// Validate checks that all present splits share the feature dimension
func (f *FeatureSet) Validate() error {
	if f == nil || f.Train == nil || f.Validation == nil {
		return core.NewShapeError("feature set", "train and validation splits are required")
	}
	_, c := f.Train.Dims()
	if _, cv := f.Validation.Dims(); cv != c {
		return core.NewShapeError(string(f.Name), "validation has %d columns, train has %d", cv, c)
	}
	if f.Test != nil {
		if _, ct := f.Test.Dims(); ct != c {
			return core.NewShapeError(string(f.Name), "test has %d columns, train has %d", ct, c)
		}
	}
	return nil
}

// ResponseSet holds the response matrices of one timepoint (EEG) or one
// network layer (DNN activations). Rows are samples, columns are channels.
type ResponseSet struct {
	Label      string
	Train      *mat.Dense
	Validation *mat.Dense
	Test       *mat.Dense // optional
}

// Channels returns the channel count shared by every split
func (r ResponseSet) Channels() int {
	_, c := r.Train.Dims()
	return c
}

// Validate checks channel counts agree across splits and sample counts
// agree with the feature set.
func (r ResponseSet) Validate(f *FeatureSet) error {
	if r.Train == nil || r.Validation == nil {
		return core.NewShapeError(r.Label, "train and validation responses are required")
	}
	rt, ct := r.Train.Dims()
	rv, cv := r.Validation.Dims()
	if ct != cv {
		return core.NewShapeError(r.Label, "validation has %d channels, train has %d", cv, ct)
	}
	if f != nil {
		if xr, _ := f.Train.Dims(); xr != rt {
			return core.NewShapeError(r.Label, "train responses have %d samples, features have %d", rt, xr)
		}
		if xr, _ := f.Validation.Dims(); xr != rv {
			return core.NewShapeError(r.Label, "validation responses have %d samples, features have %d", rv, xr)
		}
	}
	if r.Test != nil {
		rs, cs := r.Test.Dims()
		if cs != ct {
			return core.NewShapeError(r.Label, "test has %d channels, train has %d", cs, ct)
		}
		if f != nil && f.Test != nil {
			if xr, _ := f.Test.Dims(); xr != rs {
				return core.NewShapeError(r.Label, "test responses have %d samples, features have %d", rs, xr)
			}
		}
	}
	return nil
}

// SplitTimepoints slices a per-split stack of samples × channels ×
// timepoints, given as one matrix per timepoint, into ResponseSets.
func SplitTimepoints(train, validation, test []*mat.Dense, labels []string) ([]ResponseSet, error) {
	if len(train) != len(validation) {
		return nil, core.NewShapeError("responses", "%d train timepoints vs %d validation timepoints", len(train), len(validation))
	}
	if test != nil && len(test) != len(train) {
		return nil, core.NewShapeError("responses", "%d test timepoints vs %d train timepoints", len(test), len(train))
	}
	sets := make([]ResponseSet, len(train))
	for i := range train {
		label := fmt.Sprintf("t%03d", i)
		if i < len(labels) {
			label = labels[i]
		}
		sets[i] = ResponseSet{Label: label, Train: train[i], Validation: validation[i]}
		if test != nil {
			sets[i].Test = test[i]
		}
	}
	return sets, nil
}
