package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/core/ports"
)

// projectionValueCap bounds how many distinct values a projected field keeps.
const projectionValueCap = 10

// truncationMarker terminates an oversized evidence entry. The payload stops
// being valid JSON after truncation; the synthesizer consumes it as text.
const truncationMarker = `...[TRUNCADO]`

// FetchBudget bounds one fetch run. Counters are owned by the engine for the
// duration of the run and never shared across runs.
type FetchBudget struct {
	MaxTotalBytes int
	MaxItemBytes  int
}

// FetchEngine downloads candidate documents concurrently, projects them
// down to the requested keys and enforces per-item and global byte budgets.
type FetchEngine struct {
	store       ports.ContentStore
	workers     int
	itemTimeout time.Duration
	logger      *slog.Logger
}

func NewFetchEngine(store ports.ContentStore, workers int, itemTimeout time.Duration, logger *slog.Logger) *FetchEngine {
	if workers <= 0 {
		workers = 10
	}
	if itemTimeout <= 0 {
		itemTimeout = 15 * time.Second
	}
	return &FetchEngine{
		store:       store,
		workers:     workers,
		itemTimeout: itemTimeout,
		logger:      logger,
	}
}

type fetchResult struct {
	hash      string
	payload   []byte
	truncated bool
	err       error
}

// Fetch downloads every candidate on a bounded worker pool and admits
// results in completion order. The first result that would push the running
// total past the global budget triggers cancellation: queued work is
// skipped, in-flight results arriving afterwards are discarded. Per-item
// failures are counted, never raised. The returned bundle never exceeds
// MaxTotalBytes.
func (e *FetchEngine) Fetch(ctx context.Context, candidates domain.CandidateSet, keys []string, budget FetchBudget) (domain.EvidenceBundle, domain.FetchReport) {
	report := domain.FetchReport{Requested: len(candidates)}
	bundle := make(domain.EvidenceBundle, len(candidates))
	if len(candidates) == 0 {
		return bundle, report
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var skipped, late atomic.Int64
	results := make(chan fetchResult)

	go func() {
		defer close(results)
		var group errgroup.Group
		group.SetLimit(e.workers)
		for _, hash := range candidates {
			hash := hash
			if fetchCtx.Err() != nil {
				skipped.Add(1)
				continue
			}
			group.Go(func() error {
				res := e.fetchOne(fetchCtx, hash, keys, budget.MaxItemBytes)
				select {
				case results <- res:
				case <-fetchCtx.Done():
					// Already dispatched, so this is an in-flight result
					// overtaken by the cutover, not skipped work.
					late.Add(1)
				}
				return nil
			})
		}
		_ = group.Wait()
	}()

	exhausted := false
	for res := range results {
		if exhausted {
			// Everything arriving after cutover is dropped, including
			// cancellation errors from in-flight calls.
			report.Discarded++
			continue
		}
		if res.err != nil {
			report.Failed++
			e.logger.Debug("document fetch failed", "hash", res.hash, "error", res.err)
			continue
		}
		if budget.MaxTotalBytes > 0 && report.BytesUsed+len(res.payload) > budget.MaxTotalBytes {
			report.Discarded++
			exhausted = true
			cancel()
			continue
		}
		if _, exists := bundle[res.hash]; exists {
			continue
		}
		bundle[res.hash] = json.RawMessage(res.payload)
		report.BytesUsed += len(res.payload)
		report.Succeeded++
		if res.truncated {
			report.Truncated++
		}
	}

	report.SkippedBudget = int(skipped.Load())
	report.Discarded += int(late.Load())
	return bundle, report
}

// fetchOne downloads and serializes a single candidate: the full document
// when keys is nil, otherwise a projection down to the requested fields.
func (e *FetchEngine) fetchOne(ctx context.Context, hash string, keys []string, maxItemBytes int) fetchResult {
	itemCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	doc, err := e.store.Fetch(itemCtx, hash)
	if err != nil {
		return fetchResult{hash: hash, err: err}
	}

	var payload []byte
	if keys == nil {
		payload, err = json.Marshal(doc)
	} else {
		payload, err = json.Marshal(domain.Project(doc, keys, projectionValueCap, projectionValueCap))
	}
	if err != nil {
		return fetchResult{hash: hash, err: err}
	}

	truncated := false
	if maxItemBytes > 0 && len(payload) > maxItemBytes {
		payload = append(payload[:maxItemBytes], []byte(truncationMarker)...)
		truncated = true
	}
	return fetchResult{hash: hash, payload: payload, truncated: truncated}
}
