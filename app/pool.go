package app

import (
	"context"
	"sync"

	"goencode/domain/core"
	"goencode/internal/errors"
	"goencode/ports"

	"golang.org/x/sync/semaphore"
)

// forEachFeature runs fn for indices 0..n-1 with at most workers in flight.
// The first error cancels the remaining work and is returned.
func forEachFeature(ctx context.Context, workers int, n int, fn func(ctx context.Context, i int) error) error {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for i := 0; i < n; i++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(err)
			break
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			if err := fn(ctx, i); err != nil {
				fail(err)
			}
		}(i)
	}
	wg.Wait()
	return firstErr
}

// featureStrings converts feature names for manifests and pairwise keys
func featureStrings[T ~string](names []T) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}

// storeArtifact appends one result artifact of a run
func storeArtifact(ctx context.Context, ledger ports.LedgerWriterPort, runID core.RunID, kind core.ArtifactKind, feature core.FeatureName, payload interface{}) error {
	artifact := core.Artifact{
		ID:        core.ArtifactID(core.NewID()),
		RunID:     runID,
		Kind:      kind,
		Feature:   feature,
		Payload:   payload,
		CreatedAt: core.Now(),
	}
	if err := ledger.StoreArtifact(ctx, runID.String(), artifact); err != nil {
		return errors.Wrapf(err, "failed to store %s artifact", kind)
	}
	return nil
}
