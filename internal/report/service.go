// Package report inventories a mailbox: per-folder statistics, quota usage,
// and suggestions for how to clean it out.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joshsymonds/mailreaper/internal/graph"
	"github.com/joshsymonds/mailreaper/internal/rate"
)

// Folders past this item count are better served by the bulk-search backend.
const bulkBackendThreshold = 100_000

// Quota usage at or above this percentage triggers diagnostics.
const quotaWarnPercent = 90

// Options controls the inventory run.
type Options struct {
	TopN         int
	IncludeEmpty bool
}

// FolderStat is one folder's inventory line.
type FolderStat struct {
	Name      string `json:"name"`
	Items     int    `json:"items"`
	Unread    int    `json:"unread"`
	SizeBytes int64  `json:"size_bytes"`
	SizeKnown bool   `json:"size_known"`
	SizeRaw   string `json:"size_raw,omitempty"`
}

// Report summarizes the mailbox.
type Report struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	Mailbox       string       `json:"mailbox"`
	TotalItems    int          `json:"total_items"`
	TotalSize     Size         `json:"total_size"`
	Quota         Size         `json:"quota"`
	UsagePercent  int          `json:"usage_percent"`
	RetentionHold bool         `json:"retention_hold"`
	TopByCount    []FolderStat `json:"top_by_count"`
	TopBySize     []FolderStat `json:"top_by_size"`
	Suggestions   []string     `json:"suggestions"`
}

// Service executes inventory runs against the mail API.
type Service struct {
	Client  graph.Client
	Limiter rate.Limiter
	Logger  *slog.Logger
	Clock   func() time.Time
}

// NewService constructs a Service with sane defaults.
func NewService(client graph.Client, limiter rate.Limiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{Client: client, Limiter: limiter, Logger: logger, Clock: time.Now}
}

// Run produces a full inventory report.
func (s *Service) Run(ctx context.Context, opts Options) (Report, error) {
	topN := opts.TopN
	if topN <= 0 {
		topN = 10
	}

	if err := s.wait(ctx); err != nil {
		return Report{}, err
	}
	stats, err := s.Client.GetMailboxStats(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("mailbox stats: %w", err)
	}
	if err := s.wait(ctx); err != nil {
		return Report{}, err
	}
	folders, err := s.Client.ListFolders(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list folders: %w", err)
	}

	rep := Report{
		GeneratedAt:   s.Clock(),
		Mailbox:       stats.Mailbox,
		TotalItems:    stats.ItemCount,
		TotalSize:     ParseSize(stats.TotalSizeRaw),
		Quota:         ParseSize(stats.QuotaRaw),
		RetentionHold: stats.RetentionHold,
	}
	if rep.TotalSize.Known && rep.Quota.Known && rep.Quota.Bytes > 0 {
		rep.UsagePercent = int(rep.TotalSize.Bytes * 100 / rep.Quota.Bytes)
	}

	lines := make([]FolderStat, 0, len(folders))
	for _, f := range folders {
		if f.TotalItems == 0 && !opts.IncludeEmpty {
			continue
		}
		size := ParseSize(f.SizeRaw)
		if !size.Known && f.SizeRaw != "" {
			rep.Suggestions = append(rep.Suggestions,
				fmt.Sprintf("folder %q reports unparseable size %q; its bytes are excluded from totals", f.DisplayName, f.SizeRaw))
		}
		lines = append(lines, FolderStat{
			Name:      f.DisplayName,
			Items:     f.TotalItems,
			Unread:    f.UnreadItems,
			SizeBytes: size.Bytes,
			SizeKnown: size.Known,
			SizeRaw:   f.SizeRaw,
		})
	}

	rep.TopByCount = topBy(lines, topN, func(a, b FolderStat) bool {
		if a.Items == b.Items {
			return a.Name < b.Name
		}
		return a.Items > b.Items
	})
	rep.TopBySize = topBy(lines, topN, func(a, b FolderStat) bool {
		if a.SizeBytes == b.SizeBytes {
			return a.Name < b.Name
		}
		return a.SizeBytes > b.SizeBytes
	})
	rep.Suggestions = append(rep.Suggestions, s.diagnose(lines, rep)...)

	s.Logger.InfoContext(ctx, "inventory complete",
		"mailbox", rep.Mailbox, "folders", len(lines), "items", rep.TotalItems)
	return rep, nil
}

func (s *Service) diagnose(lines []FolderStat, rep Report) []string {
	var out []string
	for _, f := range lines {
		if f.Items >= bulkBackendThreshold {
			out = append(out, fmt.Sprintf(
				"folder %q holds %d items; batched deletion will be slow, use -backend compliance", f.Name, f.Items))
		}
	}
	if rep.UsagePercent >= quotaWarnPercent {
		if rep.RetentionHold {
			out = append(out, fmt.Sprintf(
				"mailbox at %d%% of quota with retention hold enabled; deleted items are being retained, consider -remove-hold", rep.UsagePercent))
		} else {
			out = append(out, fmt.Sprintf("mailbox at %d%% of quota", rep.UsagePercent))
		}
	}
	return out
}

func topBy(lines []FolderStat, topN int, less func(a, b FolderStat) bool) []FolderStat {
	out := append([]FolderStat(nil), lines...)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if topN < len(out) {
		out = out[:topN]
	}
	return out
}

func (s *Service) wait(ctx context.Context) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// PrintHuman writes a readable report to the provided writer.
func PrintHuman(rep Report, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var b strings.Builder
	fmt.Fprintf(&b, "mailreaper inventory for %s (%d items", rep.Mailbox, rep.TotalItems)
	if rep.TotalSize.Known {
		fmt.Fprintf(&b, ", %s", FormatBytes(rep.TotalSize.Bytes))
	}
	b.WriteString(")\n")
	if rep.Quota.Known {
		fmt.Fprintf(&b, "quota: %s (%d%% used)", FormatBytes(rep.Quota.Bytes), rep.UsagePercent)
		if rep.RetentionHold {
			b.WriteString(", retention hold enabled")
		}
		b.WriteString("\n")
	}
	if len(rep.TopByCount) > 0 {
		b.WriteString("\nLargest folders by item count:\n")
		for _, f := range rep.TopByCount {
			fmt.Fprintf(&b, "  %-40s %8d items %6d unread\n", f.Name, f.Items, f.Unread)
		}
	}
	if len(rep.TopBySize) > 0 {
		b.WriteString("\nLargest folders by size:\n")
		for _, f := range rep.TopBySize {
			size := f.SizeRaw
			if f.SizeKnown {
				size = FormatBytes(f.SizeBytes)
			}
			fmt.Fprintf(&b, "  %-40s %10s\n", f.Name, size)
		}
	}
	if len(rep.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, sug := range rep.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", sug)
		}
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write human report: %w", err)
	}
	return nil
}

// WriteJSON serializes the report to disk.
func WriteJSON(rep Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(rep); encodeErr != nil {
		return fmt.Errorf("encode report: %w", encodeErr)
	}
	return nil
}
