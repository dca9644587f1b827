package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/ctgov-client/pkg/client"
	"github.com/rs/zerolog/log"
)

// BatchConfig holds batch fetcher configuration.
type BatchConfig struct {
	// MaxConcurrency is the maximum number of parallel study lookups
	MaxConcurrency int
	// Timeout per study lookup, retries included
	Timeout time.Duration
}

// DefaultBatchConfig returns a conservative configuration for the public API.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrency: 5,
		Timeout:        90 * time.Second,
	}
}

// StudyFetcher looks up a single study. *client.Client implements it.
type StudyFetcher interface {
	Study(ctx context.Context, nctID string, fields []string) (client.Study, error)
}

// StudyResult is the outcome of one lookup. Exactly one of Study and Err
// is set.
type StudyResult struct {
	NCTID string
	Study client.Study
	Err   error
}

// BatchFetcher fetches many studies by identifier with a worker pool.
type BatchFetcher struct {
	fetcher StudyFetcher
	config  BatchConfig
}

// NewBatchFetcher creates a new batch fetcher.
func NewBatchFetcher(fetcher StudyFetcher, config BatchConfig) *BatchFetcher {
	defaults := DefaultBatchConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	return &BatchFetcher{
		fetcher: fetcher,
		config:  config,
	}
}

type job struct {
	index int
	nctID string
}

// FetchStudies looks up every id and returns one result per id in input
// order. Failures of individual lookups are reported in their result and
// do not stop the others. The error is non-nil only when ctx ended before
// every lookup ran.
func (bf *BatchFetcher) FetchStudies(ctx context.Context, ids []string, fields []string) ([]StudyResult, error) {
	start := time.Now()
	results := make([]StudyResult, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	workers := min(bf.config.MaxConcurrency, len(ids))
	queue := make(chan job)

	// Feed the queue until all ids are handed out or ctx ends
	go func() {
		defer close(queue)
		for i, id := range ids {
			select {
			case queue <- job{index: i, nctID: id}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go bf.worker(ctx, queue, fields, results, &wg, i)
	}
	wg.Wait()

	failed := 0
	for i := range results {
		if results[i].Study == nil && results[i].Err == nil {
			// never dispatched
			results[i] = StudyResult{NCTID: ids[i], Err: fmt.Errorf("%w: %w", client.ErrContextCancelled, ctx.Err())}
		}
		if results[i].Err != nil {
			failed++
		}
	}

	log.Info().
		Int("studies", len(ids)).
		Int("failed", failed).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("batch fetch interrupted (%d/%d failed): %w", failed, len(ids), err)
	}
	return results, nil
}

// worker processes ids from the queue. Each writes only the result slots
// of the jobs it receives.
func (bf *BatchFetcher) worker(ctx context.Context, queue <-chan job, fields []string, results []StudyResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for j := range queue {
		studyCtx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
		study, err := bf.fetcher.Study(studyCtx, j.nctID, fields)
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("nct_id", j.nctID).
				Msg("Study fetch failed")
		}
		results[j.index] = StudyResult{NCTID: j.nctID, Study: study, Err: err}
		processed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("studies_processed", processed).
		Msg("Worker completed")
}
