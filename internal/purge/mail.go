package purge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"github.com/joshsymonds/mailreaper/internal/auditlog"
	"github.com/joshsymonds/mailreaper/internal/confirm"
	"github.com/joshsymonds/mailreaper/internal/graph"
	"github.com/joshsymonds/mailreaper/internal/rate"
)

// MailEngine deletes matching messages through the per-message mail API in
// bounded batches, pacing and retrying around throttling.
type MailEngine struct {
	Client  graph.Client
	Limiter rate.Limiter
	Log     *slog.Logger
	Audit   *auditlog.Log
	Gate    confirm.Gate
	Clock   func() time.Time
	Sleep   func(time.Duration)
}

// NewMailEngine wires an engine with wall-clock defaults.
func NewMailEngine(client graph.Client, limiter rate.Limiter, logger *slog.Logger, audit *auditlog.Log, gate confirm.Gate) *MailEngine {
	return &MailEngine{
		Client:  client,
		Limiter: limiter,
		Log:     logger,
		Audit:   audit,
		Gate:    gate,
		Clock:   time.Now,
		Sleep:   time.Sleep,
	}
}

// Run counts matches, gates on operator confirmation, then deletes in
// batches until the match count is reached or the server stops returning
// ids. A declined confirmation is a no-op, not an error.
func (e *MailEngine) Run(ctx context.Context, spec Spec) (Tally, error) {
	target := spec.FolderName
	if target == "" {
		target = string(spec.Folder)
	}
	q := graph.Query{Raw: spec.Filter.GraphQuery()}

	if err := waitLimiter(ctx, e.Limiter); err != nil {
		return Tally{}, err
	}
	count, err := e.Client.CountMessages(ctx, spec.Folder, q)
	if err != nil {
		e.Audit.Error("%s: count failed: %v", target, err)
		return Tally{}, fmt.Errorf("count messages in %s: %w", target, err)
	}
	tally := Tally{Matched: count}
	e.Audit.Info("%s: %d messages match filter (%s)", target, count, spec.Filter)

	if count == 0 {
		e.Audit.Info("%s: nothing to delete", target)
		return tally, nil
	}
	if spec.CheckOnly {
		e.Audit.Info("%s: check-only, no deletion attempted", target)
		return tally, nil
	}
	if spec.DryRun {
		e.Audit.Info("%s: dry-run, would delete %d messages", target, count)
		return tally, nil
	}

	msg := fmt.Sprintf("Delete %d messages from %s? Type %s to continue:", count, target, confirm.TokenYes)
	ok, err := confirm.Ask(e.Gate, msg, confirm.TokenYes)
	if err != nil {
		e.Audit.Error("%s: confirmation failed: %v", target, err)
		return tally, fmt.Errorf("confirm deletion: %w", err)
	}
	if !ok {
		e.Audit.Warning("%s: deletion declined by operator", target)
		return tally, nil
	}
	e.Audit.Info("%s: deletion of %d messages confirmed", target, count)

	limit := pageLimit(spec.PageSize)
	ceiling := spec.MaxPages
	if ceiling <= 0 {
		// the loop normally ends because the re-evaluated query shrinks;
		// the ceiling bounds it if the server ever serves stale matches
		ceiling = 2*((count+limit-1)/limit) + pageCeilingSlack
	}

	pages := 0
	for tally.Deleted+tally.Failed < count {
		if pages >= ceiling {
			e.Audit.Warning("%s: stopping after %d pages with %d of %d accounted for", target, pages, tally.Deleted+tally.Failed, count)
			break
		}
		pages++

		if err := waitLimiter(ctx, e.Limiter); err != nil {
			return tally, err
		}
		ids, err := e.Client.ListMessageIDs(ctx, spec.Folder, q, limit)
		if err != nil {
			// transient fetch failures abort this target only, tally kept
			e.Audit.Error("%s: page fetch failed, keeping tally so far: %v", target, err)
			e.Log.ErrorContext(ctx, "page fetch failed", "folder", target, "error", err)
			break
		}
		if len(ids) == 0 {
			break
		}

		aborted := false
		for start := 0; start < len(ids); start += graph.BatchLimit {
			end := start + graph.BatchLimit
			if end > len(ids) {
				end = len(ids)
			}
			out, err := e.deleteBatch(ctx, target, ids[start:end])
			if err != nil {
				e.Audit.Error("%s: batch submit failed, keeping tally so far: %v", target, err)
				aborted = true
				break
			}
			tally.Deleted += out.Succeeded
			tally.Failed += out.Failed
			e.Sleep(interBatchPause)
		}
		if aborted {
			break
		}

		done := tally.Deleted + tally.Failed
		e.Audit.Info("%s: %d%% complete (%d deleted, %d failed of %d)", target, done*100/count, tally.Deleted, tally.Failed, count)
	}

	e.Audit.Success("%s: finished, %d deleted, %d failed", target, tally.Deleted, tally.Failed)
	return tally, nil
}

// deleteBatch submits one batch with up to maxAttempts tries. Only a
// throttled outcome is retried; permission or quota rejections are final for
// the batch. A transport error is returned to the caller, which aborts the
// target loop.
func (e *MailEngine) deleteBatch(ctx context.Context, target string, ids []graph.MessageID) (graph.BatchOutcome, error) {
	bo := &backoff.Backoff{Min: 4 * time.Second, Max: 8 * time.Second, Factor: 2}
	for attempt := 1; ; attempt++ {
		if err := waitLimiter(ctx, e.Limiter); err != nil {
			return graph.BatchOutcome{}, err
		}
		out, err := e.Client.DeleteBatch(ctx, ids)
		if err != nil {
			return graph.BatchOutcome{}, err
		}
		if out.Denied {
			// retrying will not help; the bulk backend bypasses per-message limits
			e.Audit.Warning("%s: batch rejected (permission/quota), %d counted failed; consider -backend compliance", target, out.Failed)
			return out, nil
		}
		if !out.Throttled {
			return out, nil
		}
		if attempt == maxAttempts {
			// partial successes from the last attempt are kept; only the
			// still-throttled remainder counts as failed
			out.Failed = len(ids) - out.Succeeded
			e.Audit.Warning("%s: batch still throttled after %d attempts, %d counted failed", target, maxAttempts, out.Failed)
			return out, nil
		}
		wait := bo.Duration()
		e.Audit.Warning("%s: throttled, retrying batch in %s", target, wait)
		e.Sleep(wait)
	}
}

var _ Engine = (*MailEngine)(nil)
