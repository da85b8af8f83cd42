package report

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/joshsymonds/mailreaper/internal/graph"
)

type fakeStatsClient struct {
	stats   graph.MailboxStats
	folders []graph.Folder
}

func (f *fakeStatsClient) ListFolders(ctx context.Context) ([]graph.Folder, error) {
	_ = ctx
	return f.folders, nil
}

func (f *fakeStatsClient) GetFolder(ctx context.Context, id graph.FolderID) (graph.Folder, error) {
	_ = ctx
	return graph.Folder{ID: id}, nil
}

func (f *fakeStatsClient) CountMessages(ctx context.Context, folder graph.FolderID, q graph.Query) (int, error) {
	_ = ctx
	_ = folder
	_ = q
	return 0, nil
}

func (f *fakeStatsClient) ListMessageIDs(ctx context.Context, folder graph.FolderID, q graph.Query, limit int) ([]graph.MessageID, error) {
	_ = ctx
	_ = folder
	_ = q
	_ = limit
	return nil, nil
}

func (f *fakeStatsClient) DeleteBatch(ctx context.Context, ids []graph.MessageID) (graph.BatchOutcome, error) {
	_ = ctx
	_ = ids
	return graph.BatchOutcome{}, nil
}

func (f *fakeStatsClient) GetMailboxStats(ctx context.Context) (graph.MailboxStats, error) {
	_ = ctx
	return f.stats, nil
}

func (f *fakeStatsClient) SetRetentionHold(ctx context.Context, enabled bool) error {
	_ = ctx
	_ = enabled
	return nil
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunRankingAndQuota(t *testing.T) {
	client := &fakeStatsClient{
		stats: graph.MailboxStats{
			Mailbox:       "ops@example.com",
			ItemCount:     150_000,
			TotalSizeRaw:  "46 GB (49,392,123,904 bytes)",
			QuotaRaw:      "50 GB (53,687,091,200 bytes)",
			RetentionHold: true,
		},
		folders: []graph.Folder{
			{ID: "a", DisplayName: "Inbox", TotalItems: 120_000, UnreadItems: 50, SizeRaw: "40 GB (42,949,672,960 bytes)"},
			{ID: "b", DisplayName: "Sent Items", TotalItems: 20_000, SizeRaw: "4 GB"},
			{ID: "c", DisplayName: "Drafts", TotalItems: 0},
			{ID: "d", DisplayName: "Archive", TotalItems: 10_000, SizeRaw: "weird-size"},
		},
	}
	svc := NewService(client, nil, slogDiscard())
	svc.Clock = func() time.Time { return time.Unix(1700000000, 0) }

	rep, err := svc.Run(context.Background(), Options{TopN: 2})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.UsagePercent != 92 {
		t.Fatalf("usage percent: got %d", rep.UsagePercent)
	}
	if len(rep.TopByCount) != 2 || rep.TopByCount[0].Name != "Inbox" || rep.TopByCount[1].Name != "Sent Items" {
		t.Fatalf("unexpected count ranking: %+v", rep.TopByCount)
	}
	if rep.TopBySize[0].Name != "Inbox" {
		t.Fatalf("unexpected size ranking: %+v", rep.TopBySize)
	}

	var sawBulk, sawHold, sawUnparseable bool
	for _, s := range rep.Suggestions {
		switch {
		case strings.Contains(s, "-backend compliance"):
			sawBulk = true
		case strings.Contains(s, "-remove-hold"):
			sawHold = true
		case strings.Contains(s, "unparseable size"):
			sawUnparseable = true
		}
	}
	if !sawBulk || !sawHold || !sawUnparseable {
		t.Fatalf("missing suggestions (bulk=%v hold=%v unparseable=%v): %v", sawBulk, sawHold, sawUnparseable, rep.Suggestions)
	}
}

func TestRunSkipsEmptyFolders(t *testing.T) {
	client := &fakeStatsClient{
		stats: graph.MailboxStats{Mailbox: "ops@example.com"},
		folders: []graph.Folder{
			{ID: "a", DisplayName: "Inbox", TotalItems: 10},
			{ID: "b", DisplayName: "Drafts", TotalItems: 0},
		},
	}
	svc := NewService(client, nil, slogDiscard())
	svc.Clock = func() time.Time { return time.Unix(1700000000, 0) }

	rep, err := svc.Run(context.Background(), Options{TopN: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(rep.TopByCount) != 1 {
		t.Fatalf("empty folder not skipped: %+v", rep.TopByCount)
	}

	rep, err = svc.Run(context.Background(), Options{TopN: 10, IncludeEmpty: true})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(rep.TopByCount) != 2 {
		t.Fatalf("include-empty ignored: %+v", rep.TopByCount)
	}
}

func TestPrintHuman(t *testing.T) {
	rep := Report{
		Mailbox:      "ops@example.com",
		TotalItems:   42,
		TotalSize:    Size{Bytes: 1 << 30, Known: true},
		Quota:        Size{Bytes: 2 << 30, Known: true},
		UsagePercent: 50,
		TopByCount:   []FolderStat{{Name: "Inbox", Items: 42, Unread: 3}},
		Suggestions:  []string{"nothing urgent"},
	}
	var sb strings.Builder
	if err := PrintHuman(rep, &sb); err != nil {
		t.Fatalf("print failed: %v", err)
	}
	out := sb.String()
	for _, want := range []string{"ops@example.com", "42 items", "50% used", "Inbox", "nothing urgent"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
