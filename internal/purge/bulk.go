package purge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joshsymonds/mailreaper/internal/auditlog"
	"github.com/joshsymonds/mailreaper/internal/compliance"
	"github.com/joshsymonds/mailreaper/internal/confirm"
	"github.com/joshsymonds/mailreaper/internal/rate"
)

// BulkEngine submits a server-side search over the whole mailbox, polls it
// to completion, and purges the results after confirmation. The search job
// is discarded on every exit path; nothing is left dangling remotely.
type BulkEngine struct {
	Client       compliance.Client
	Limiter      rate.Limiter
	Log          *slog.Logger
	Audit        *auditlog.Log
	Gate         confirm.Gate
	Clock        func() time.Time
	Sleep        func(time.Duration)
	PollInterval time.Duration
}

// NewBulkEngine wires an engine with wall-clock defaults.
func NewBulkEngine(client compliance.Client, limiter rate.Limiter, logger *slog.Logger, audit *auditlog.Log, gate confirm.Gate) *BulkEngine {
	return &BulkEngine{
		Client:       client,
		Limiter:      limiter,
		Log:          logger,
		Audit:        audit,
		Gate:         gate,
		Clock:        time.Now,
		Sleep:        time.Sleep,
		PollInterval: defaultPollInterval,
	}
}

// JobPrefix is the shared name prefix of every search job this tool creates
// for the given mailbox. An empty mailbox yields the tool-wide prefix.
func JobPrefix(mailbox string) string {
	if mailbox == "" {
		return "mailreaper-"
	}
	r := strings.NewReplacer("@", "-", ".", "-")
	return fmt.Sprintf("mailreaper-%s-", r.Replace(mailbox))
}

// JobName derives the unique per-run search name from the mailbox and the
// engine clock.
func JobName(mailbox string, at time.Time) string {
	return JobPrefix(mailbox) + at.UTC().Format("20060102-150405")
}

// Run drives one search/purge cycle. Timeouts and declines are deliberate
// no-ops, not errors.
func (e *BulkEngine) Run(ctx context.Context, spec Spec) (Tally, error) {
	name := JobName(spec.Mailbox, e.Clock())
	query := spec.Filter.SearchQuery()

	if err := waitLimiter(ctx, e.Limiter); err != nil {
		return Tally{}, err
	}
	job, err := e.Client.CreateSearch(ctx, name, spec.Mailbox, query)
	if err != nil {
		e.Audit.Error("create search %s failed: %v", name, err)
		return Tally{}, fmt.Errorf("create search %s: %w", name, err)
	}
	discarded := false
	discard := func() {
		if discarded {
			return
		}
		discarded = true
		// context.WithoutCancel: the job must be cleaned up even when the
		// run context is already canceled
		if delErr := e.Client.DeleteSearch(context.WithoutCancel(ctx), job.Name); delErr != nil {
			e.Audit.Error("discard search %s failed: %v", job.Name, delErr)
			e.Log.Error("discard search failed", "job", job.Name, "error", delErr)
			return
		}
		e.Audit.Info("search %s discarded", job.Name)
	}
	defer discard()

	if err := e.Client.StartSearch(ctx, job.Name); err != nil {
		e.Audit.Error("start search %s failed: %v", job.Name, err)
		return Tally{}, fmt.Errorf("start search %s: %w", job.Name, err)
	}
	e.Audit.Info("search %s started (%s)", job.Name, query)

	job = e.poll(ctx, job, searchWait(spec.ExtendedWait))
	if job.Status != compliance.StatusCompleted {
		e.Audit.Warning("search %s still %s at wait ceiling, treating as incomplete", job.Name, job.Status)
		return Tally{}, nil
	}
	tally := Tally{Matched: job.Items}
	e.Audit.Info("search %s completed: %d items, %d bytes", job.Name, job.Items, job.SizeBytes)

	if job.Items == 0 {
		e.Audit.Info("search %s matched nothing, no purge created", job.Name)
		return tally, nil
	}
	if spec.CheckOnly {
		e.Audit.Info("check-only: %d items match, no purge created", job.Items)
		return tally, nil
	}
	if spec.DryRun {
		e.Audit.Info("dry-run: would purge %d items (%d bytes)", job.Items, job.SizeBytes)
		return tally, nil
	}

	msg := fmt.Sprintf("Permanently purge %d items from %s? This cannot be undone. Type %s to continue:",
		job.Items, spec.Mailbox, confirm.TokenDelete)
	ok, err := confirm.Ask(e.Gate, msg, confirm.TokenDelete)
	if err != nil {
		e.Audit.Error("confirmation failed: %v", err)
		return tally, fmt.Errorf("confirm purge: %w", err)
	}
	if !ok {
		e.Audit.Warning("purge of %d items declined by operator", job.Items)
		return tally, nil
	}

	if err := e.Client.CreatePurge(ctx, job.Name); err != nil {
		e.Audit.Error("create purge for %s failed: %v", job.Name, err)
		return tally, fmt.Errorf("create purge %s: %w", job.Name, err)
	}
	tally.Deleted = job.Items
	e.Audit.Success("purge submitted for %d items; remote completion is asynchronous (up to 48h)", job.Items)
	return tally, nil
}

// poll re-reads the job until it completes or maxWait elapses. Timeouts are
// never an error: the job is returned in its last observed status and the
// caller decides.
func (e *BulkEngine) poll(ctx context.Context, job compliance.Job, maxWait time.Duration) compliance.Job {
	deadline := e.Clock().Add(maxWait)
	for {
		if ctx.Err() != nil {
			return job
		}
		if err := waitLimiter(ctx, e.Limiter); err != nil {
			return job
		}
		latest, err := e.Client.GetSearch(ctx, job.Name)
		if err != nil {
			e.Audit.Warning("poll of search %s failed: %v", job.Name, err)
			return job
		}
		job = latest
		if job.Status == compliance.StatusCompleted {
			return job
		}
		if !e.Clock().Add(e.PollInterval).Before(deadline) {
			return job
		}
		e.Sleep(e.PollInterval)
	}
}

var _ Engine = (*BulkEngine)(nil)
