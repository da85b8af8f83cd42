// Package purge orchestrates message deletion for a single target through
// one of two backends: the per-message mail API (batched deletes with
// retry/backoff) or the asynchronous bulk search-and-purge API.
package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/joshsymonds/mailreaper/internal/filter"
	"github.com/joshsymonds/mailreaper/internal/graph"
	"github.com/joshsymonds/mailreaper/internal/rate"
)

const (
	maxAttempts     = 3
	interBatchPause = 200 * time.Millisecond

	// fetch pages are a multiple of the caller's base size, capped hard
	fetchPageFactor  = 4
	fetchPageCap     = 200
	defaultBasePage  = 50
	pageCeilingSlack = 8

	defaultPollInterval = 30 * time.Second
	defaultSearchWait   = 10 * time.Minute
	extendedSearchWait  = 120 * time.Minute
)

// Spec describes one processing target. The filter is immutable and shared
// read-only by both backends.
type Spec struct {
	Mailbox    string
	Folder     graph.FolderID
	FolderName string
	Filter     filter.Filter

	PageSize     int // base fetch size; actual page limit is min(4*PageSize, 200)
	DryRun       bool
	CheckOnly    bool
	ExtendedWait bool
	MaxPages     int // 0 = derived from the match count
}

// Tally is the running counters for one target. For the bulk backend,
// Deleted means accepted for purge, not confirmed deleted.
type Tally struct {
	Matched int
	Deleted int
	Failed  int
}

// Engine runs one deletion pass against a single target.
type Engine interface {
	Run(ctx context.Context, spec Spec) (Tally, error)
}

// RunContext aggregates outcomes across targets for one invocation. It is
// constructed once at process start and threaded through explicitly; there
// is no ambient run state.
type RunContext struct {
	StartedAt time.Time
	Total     Tally
}

// Add folds one target's tally into the run totals.
func (r *RunContext) Add(t Tally) {
	r.Total.Matched += t.Matched
	r.Total.Deleted += t.Deleted
	r.Total.Failed += t.Failed
}

// Elapsed reports wall time since the run began.
func (r *RunContext) Elapsed(now time.Time) time.Duration {
	return now.Sub(r.StartedAt)
}

func pageLimit(base int) int {
	if base <= 0 {
		base = defaultBasePage
	}
	limit := base * fetchPageFactor
	if limit > fetchPageCap {
		limit = fetchPageCap
	}
	return limit
}

// searchWait picks the poll ceiling for the bulk backend.
func searchWait(extended bool) time.Duration {
	if extended {
		return extendedSearchWait
	}
	return defaultSearchWait
}

func waitLimiter(ctx context.Context, l rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}
