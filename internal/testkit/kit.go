package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"goencode/adapters/memory"
	"goencode/adapters/rng"
	"goencode/domain/core"
	"goencode/domain/encoding"
	"goencode/ports"

	"gonum.org/v1/gonum/mat"
)

// TestKit bundles an in-memory ledger, a seeded RNG and in-memory data
// sources for service tests.
type TestKit struct {
	ledger    *memory.LedgerAdapter
	rng       *rng.SeededAdapter
	features  *FeatureStore
	responses *ResponseStore
	scores    *ScoreStore
}

// NewTestKit creates an empty test kit
func NewTestKit() *TestKit {
	return &TestKit{
		ledger:    memory.NewLedgerAdapter(),
		rng:       rng.NewSeededAdapter(false),
		features:  &FeatureStore{sets: make(map[core.FeatureName]*encoding.FeatureSet)},
		responses: &ResponseStore{sets: make(map[string][]encoding.ResponseSet)},
		scores:    &ScoreStore{matrices: make(map[string]*mat.Dense)},
	}
}

// Ledger returns the shared ledger
func (k *TestKit) Ledger() *memory.LedgerAdapter { return k.ledger }

// RNG returns the seeded RNG adapter
func (k *TestKit) RNG() ports.RNGPort { return k.rng }

// Features returns the feature store
func (k *TestKit) Features() *FeatureStore { return k.features }

// Responses returns the response store
func (k *TestKit) Responses() *ResponseStore { return k.responses }

// Scores returns the score store
func (k *TestKit) Scores() *ScoreStore { return k.scores }

// Populate generates the named features and one subject's responses to the
// first of them.
func (k *TestKit) Populate(g *EncodingDataGenerator, subject string, names ...core.FeatureName) {
	for i, name := range names {
		f := g.Feature(name)
		k.features.Add(f)
		if i == 0 {
			k.responses.Add(subject, g.Responses(f))
		}
	}
}

// FeatureStore implements ports.FeatureSource over a map
type FeatureStore struct {
	mu   sync.RWMutex
	sets map[core.FeatureName]*encoding.FeatureSet
}

// Add registers a feature set under its name
func (s *FeatureStore) Add(f *encoding.FeatureSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[f.Name] = f
}

func (s *FeatureStore) ListFeatures(ctx context.Context) ([]core.FeatureName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]core.FeatureName, 0, len(s.sets))
	for name := range s.sets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, nil
}

func (s *FeatureStore) LoadFeature(ctx context.Context, name core.FeatureName) (*encoding.FeatureSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.sets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrFeatureNotFound, name)
	}
	return f, nil
}

// ResponseStore implements ports.ResponseSource over a map
type ResponseStore struct {
	mu   sync.RWMutex
	sets map[string][]encoding.ResponseSet
}

// Add registers the responses of a subject
func (s *ResponseStore) Add(subject string, responses []encoding.ResponseSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[subject] = responses
}

func (s *ResponseStore) LoadResponses(ctx context.Context, subject string) ([]encoding.ResponseSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.sets[subject]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrResponseNotFound, subject)
	}
	return r, nil
}

// ScoreStore implements ports.ScoreSource over a map keyed by group and feature
type ScoreStore struct {
	mu       sync.RWMutex
	matrices map[string]*mat.Dense
}

func scoreKey(group string, feature core.FeatureName) string { return group + "/" + string(feature) }

// Add registers the score matrix of a group and feature
func (s *ScoreStore) Add(group string, feature core.FeatureName, scores *mat.Dense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matrices[scoreKey(group, feature)] = scores
}

func (s *ScoreStore) LoadScores(ctx context.Context, group string, feature core.FeatureName) (*mat.Dense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matrices[scoreKey(group, feature)]
	if !ok {
		return nil, core.NewNotFoundError("scores", scoreKey(group, feature))
	}
	return m, nil
}

var (
	_ ports.FeatureSource  = (*FeatureStore)(nil)
	_ ports.ResponseSource = (*ResponseStore)(nil)
	_ ports.ScoreSource    = (*ScoreStore)(nil)
)
