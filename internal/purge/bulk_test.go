package purge

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/joshsymonds/mailreaper/internal/auditlog"
	"github.com/joshsymonds/mailreaper/internal/compliance"
	"github.com/joshsymonds/mailreaper/internal/filter"
)

type fakeBulkClient struct {
	createErr error
	startErr  error
	getErr    error
	purgeErr  error

	statuses []compliance.Job // served in order by GetSearch; last repeats

	created      []string
	started      []string
	purged       []string
	deleted      []string
	getCalls     int
	listedPrefix string
}

func (f *fakeBulkClient) CreateSearch(ctx context.Context, name, mailbox, query string) (compliance.Job, error) {
	_ = ctx
	_ = mailbox
	if f.createErr != nil {
		return compliance.Job{}, f.createErr
	}
	f.created = append(f.created, name)
	return compliance.Job{Name: name, Query: query, Status: compliance.StatusPending}, nil
}

func (f *fakeBulkClient) StartSearch(ctx context.Context, name string) error {
	_ = ctx
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, name)
	return nil
}

func (f *fakeBulkClient) GetSearch(ctx context.Context, name string) (compliance.Job, error) {
	_ = ctx
	f.getCalls++
	if f.getErr != nil {
		return compliance.Job{}, f.getErr
	}
	job := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	job.Name = name
	return job, nil
}

func (f *fakeBulkClient) CreatePurge(ctx context.Context, name string) error {
	_ = ctx
	if f.purgeErr != nil {
		return f.purgeErr
	}
	f.purged = append(f.purged, name)
	return nil
}

func (f *fakeBulkClient) DeleteSearch(ctx context.Context, name string) error {
	_ = ctx
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeBulkClient) ListSearches(ctx context.Context, prefix string) ([]compliance.Job, error) {
	_ = ctx
	f.listedPrefix = prefix
	return f.statuses, nil
}

func newTestBulkEngine(client *fakeBulkClient, gate *scriptGate) *BulkEngine {
	e := NewBulkEngine(client, nil, slogDiscard(), auditlog.New(io.Discard), gate)
	clock := time.Unix(1700000000, 0)
	e.Clock = func() time.Time { return clock }
	e.Sleep = func(d time.Duration) { clock = clock.Add(d) }
	return e
}

func cutoffSpec(t *testing.T) Spec {
	t.Helper()
	f, err := filter.New(filter.Options{
		OlderThanDays: 365,
		Now:           func() time.Time { return time.Unix(1700000000, 0) },
	})
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	return Spec{Mailbox: "ops@example.com", Filter: f}
}

func TestBulkZeroItemsDiscardsJob(t *testing.T) {
	client := &fakeBulkClient{statuses: []compliance.Job{{Status: compliance.StatusCompleted, Items: 0}}}
	gate := &scriptGate{response: "DELETE"}
	e := newTestBulkEngine(client, gate)

	tally, err := e.Run(context.Background(), cutoffSpec(t))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if tally.Matched != 0 || tally.Deleted != 0 {
		t.Fatalf("unexpected tally %+v", tally)
	}
	if len(gate.prompts) != 0 {
		t.Fatalf("zero matches must not prompt, got %d", len(gate.prompts))
	}
	if len(client.purged) != 0 {
		t.Fatalf("zero matches must not purge, got %v", client.purged)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("job not discarded exactly once: %v", client.deleted)
	}
}

func TestBulkPurgeAfterConfirmation(t *testing.T) {
	client := &fakeBulkClient{statuses: []compliance.Job{
		{Status: compliance.StatusRunning},
		{Status: compliance.StatusCompleted, Items: 45, SizeBytes: 1 << 20},
	}}
	gate := &scriptGate{response: "DELETE"}
	e := newTestBulkEngine(client, gate)

	tally, err := e.Run(context.Background(), cutoffSpec(t))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if tally.Matched != 45 || tally.Deleted != 45 {
		t.Fatalf("unexpected tally %+v", tally)
	}
	if len(client.purged) != 1 {
		t.Fatalf("expected one purge action, got %v", client.purged)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("job record must be discarded after purge submission: %v", client.deleted)
	}
	if len(client.started) != 1 || client.started[0] != client.created[0] {
		t.Fatalf("search not started: %v vs %v", client.started, client.created)
	}
}

func TestBulkDeclineDiscardsJob(t *testing.T) {
	client := &fakeBulkClient{statuses: []compliance.Job{{Status: compliance.StatusCompleted, Items: 45}}}
	gate := &scriptGate{response: "delete"} // wrong case declines
	e := newTestBulkEngine(client, gate)

	tally, err := e.Run(context.Background(), cutoffSpec(t))
	if err != nil {
		t.Fatalf("decline must not be an error: %v", err)
	}
	if len(client.purged) != 0 {
		t.Fatalf("declined run purged: %v", client.purged)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("declined run must discard the job: %v", client.deleted)
	}
	if tally.Deleted != 0 || tally.Matched != 45 {
		t.Fatalf("unexpected tally %+v", tally)
	}
}

func TestBulkDryRunDiscardsJob(t *testing.T) {
	client := &fakeBulkClient{statuses: []compliance.Job{{Status: compliance.StatusCompleted, Items: 45}}}
	gate := &scriptGate{response: "DELETE"}
	e := newTestBulkEngine(client, gate)

	spec := cutoffSpec(t)
	spec.DryRun = true
	tally, err := e.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(gate.prompts) != 0 || len(client.purged) != 0 {
		t.Fatalf("dry-run leaked work: prompts %d, purges %d", len(gate.prompts), len(client.purged))
	}
	if len(client.deleted) != 1 {
		t.Fatalf("dry-run must discard the job: %v", client.deleted)
	}
	if tally.Matched != 45 {
		t.Fatalf("unexpected tally %+v", tally)
	}
}

func TestBulkTimeoutReturnsLastStatus(t *testing.T) {
	client := &fakeBulkClient{statuses: []compliance.Job{{Status: compliance.StatusRunning}}}
	gate := &scriptGate{response: "DELETE"}
	e := newTestBulkEngine(client, gate)

	tally, err := e.Run(context.Background(), cutoffSpec(t))
	if err != nil {
		t.Fatalf("timeout is not an error: %v", err)
	}
	if tally != (Tally{}) {
		t.Fatalf("incomplete search must report nothing: %+v", tally)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("timed-out job must be discarded: %v", client.deleted)
	}
	// 10 minute ceiling at 30s per poll
	if client.getCalls < 18 || client.getCalls > 21 {
		t.Fatalf("unexpected poll count %d", client.getCalls)
	}
	if len(client.purged) != 0 {
		t.Fatalf("incomplete search must never purge: %v", client.purged)
	}
}

func TestBulkStartErrorStillDiscards(t *testing.T) {
	client := &fakeBulkClient{
		startErr: errors.New("403"),
		statuses: []compliance.Job{{Status: compliance.StatusRunning}},
	}
	gate := &scriptGate{response: "DELETE"}
	e := newTestBulkEngine(client, gate)

	if _, err := e.Run(context.Background(), cutoffSpec(t)); err == nil {
		t.Fatal("expected error from start failure")
	}
	if len(client.deleted) != 1 {
		t.Fatalf("failed start must still discard the job: %v", client.deleted)
	}
}

func TestBulkCreateErrorNoDiscard(t *testing.T) {
	client := &fakeBulkClient{createErr: errors.New("401")}
	gate := &scriptGate{response: "DELETE"}
	e := newTestBulkEngine(client, gate)

	if _, err := e.Run(context.Background(), cutoffSpec(t)); err == nil {
		t.Fatal("expected error from create failure")
	}
	if len(client.deleted) != 0 {
		t.Fatalf("nothing to discard when creation failed: %v", client.deleted)
	}
}

func TestJobNameUniquePerClock(t *testing.T) {
	a := JobName("ops@example.com", time.Unix(1700000000, 0))
	b := JobName("ops@example.com", time.Unix(1700000060, 0))
	if a == b {
		t.Fatalf("names must differ across runs: %s", a)
	}
	if a != "mailreaper-ops-example-com-20231114-221320" {
		t.Fatalf("unexpected job name %s", a)
	}
	if !strings.HasPrefix(a, JobPrefix("ops@example.com")) {
		t.Fatalf("job name %s does not carry its mailbox prefix", a)
	}
	if got := JobPrefix(""); got != "mailreaper-" {
		t.Fatalf("empty mailbox prefix = %s", got)
	}
}
