package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joshsymonds/mailreaper/internal/auditlog"
	"github.com/joshsymonds/mailreaper/internal/confirm"
	"github.com/joshsymonds/mailreaper/internal/filter"
	"github.com/joshsymonds/mailreaper/internal/graph"
	"github.com/joshsymonds/mailreaper/internal/purge"
	"github.com/joshsymonds/mailreaper/internal/rate"
	"github.com/joshsymonds/mailreaper/internal/runtime"
)

type purgeConfig struct {
	mailbox      string
	folder       string
	olderThan    int
	before       string
	start        string
	end          string
	backend      string
	dryRun       bool
	checkOnly    bool
	extendedWait bool
	pageSize     int
	maxPages     int
	rps          int
	auditPath    string
}

func main() {
	cfg := parsePurgeFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailreaper-purge failed", "error", err)
		os.Exit(1)
	}
}

func parsePurgeFlags() purgeConfig {
	mailbox := flag.String("mailbox", "", "target mailbox (required)")
	folder := flag.String("folder", "", "limit deletion to this folder (mail backend; empty = all folders)")
	olderThan := flag.Int("older-than", 0, "delete messages older than this many days")
	before := flag.String("before", "", "delete messages received before this date (YYYY-MM-DD)")
	start := flag.String("start", "", "range start date (YYYY-MM-DD, inclusive)")
	end := flag.String("end", "", "range end date (YYYY-MM-DD, inclusive)")
	backend := flag.String("backend", "graph", "deletion backend: graph or compliance")
	dryRun := flag.Bool("dry-run", false, "report the match count; delete nothing")
	checkOnly := flag.Bool("check-only", false, "count matches only; no confirmation, no deletion")
	extendedWait := flag.Bool("extended-wait", false, "wait up to 120 minutes for the bulk search")
	pageSize := flag.Int("page-size", 50, "base id-fetch size (pages are 4x this, capped at 200)")
	maxPages := flag.Int("max-pages", 0, "hard page-fetch ceiling (0 = derived from match count)")
	rps := flag.Int("rps", 4, "max requests per second")
	auditPath := flag.String("audit-log", "mailreaper-audit.log", "audit trail file")
	flag.Parse()

	return purgeConfig{
		mailbox:      *mailbox,
		folder:       *folder,
		olderThan:    *olderThan,
		before:       *before,
		start:        *start,
		end:          *end,
		backend:      *backend,
		dryRun:       *dryRun,
		checkOnly:    *checkOnly,
		extendedWait: *extendedWait,
		pageSize:     *pageSize,
		maxPages:     *maxPages,
		rps:          *rps,
		auditPath:    *auditPath,
	}
}

func run(cfg purgeConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	// everything below validates before the first remote call
	if cfg.mailbox == "" {
		return fmt.Errorf("-mailbox is required")
	}
	if cfg.backend != "graph" && cfg.backend != "compliance" {
		return fmt.Errorf("unknown backend %q (expected graph or compliance)", cfg.backend)
	}
	f, err := buildFilter(cfg)
	if err != nil {
		return fmt.Errorf("invalid filter (supply -older-than N, -before DATE, or -start/-end DATE pair): %w", err)
	}
	envCfg, err := runtime.LoadConfig()
	if err != nil {
		return err
	}

	audit := auditlog.Open(cfg.auditPath)
	defer func() { _ = audit.Close() }()
	audit.Info("run started: mailbox=%s backend=%s filter=%s dry-run=%v check-only=%v",
		cfg.mailbox, cfg.backend, f, cfg.dryRun, cfg.checkOnly)

	tokens, err := runtime.NewTokenSource(envCfg)
	if err != nil {
		return err
	}

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if cfg.rps > 0 {
		bucket = rate.NewTokenBucket(cfg.rps, 2)
		limiter = bucket
		defer bucket.Stop()
	}

	gate := &confirm.StdinGate{In: os.Stdin, Out: os.Stderr}
	runCtx := &purge.RunContext{StartedAt: time.Now()}

	spec := purge.Spec{
		Mailbox:      cfg.mailbox,
		Filter:       f,
		PageSize:     cfg.pageSize,
		DryRun:       cfg.dryRun,
		CheckOnly:    cfg.checkOnly,
		ExtendedWait: cfg.extendedWait,
		MaxPages:     cfg.maxPages,
	}

	if cfg.backend == "compliance" {
		engine := purge.NewBulkEngine(runtime.NewSearchClient(envCfg, tokens), limiter, logger, audit, gate)
		tally, runErr := engine.Run(ctx, spec)
		runCtx.Add(tally)
		summarize(logger, audit, runCtx)
		if runErr != nil {
			return fmt.Errorf("bulk purge: %w", runErr)
		}
		return nil
	}

	client := runtime.NewGraphClient(envCfg, cfg.mailbox, tokens)
	engine := purge.NewMailEngine(client, limiter, logger, audit, gate)

	targets, err := resolveTargets(ctx, client, cfg.folder)
	if err != nil {
		return err
	}

	var failed []string
	for _, folder := range targets {
		spec.Folder = folder.ID
		spec.FolderName = folder.DisplayName
		tally, runErr := engine.Run(ctx, spec)
		runCtx.Add(tally)
		if runErr == nil {
			continue
		}
		if errors.Is(runErr, graph.ErrAuth) {
			summarize(logger, audit, runCtx)
			return fmt.Errorf("process %s: %w", folder.DisplayName, runErr)
		}
		// one bad folder does not abort the rest of the run
		logger.ErrorContext(ctx, "folder failed", "folder", folder.DisplayName, "error", runErr)
		failed = append(failed, folder.DisplayName)
	}

	summarize(logger, audit, runCtx)
	if len(failed) > 0 {
		return fmt.Errorf("folders failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func buildFilter(cfg purgeConfig) (filter.Filter, error) {
	opts := filter.Options{OlderThanDays: cfg.olderThan}
	var err error
	if opts.Before, err = parseDate(cfg.before); err != nil {
		return filter.Filter{}, err
	}
	if opts.Start, err = parseDate(cfg.start); err != nil {
		return filter.Filter{}, err
	}
	if opts.End, err = parseDate(cfg.end); err != nil {
		return filter.Filter{}, err
	}
	return filter.New(opts)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func resolveTargets(ctx context.Context, client graph.Client, name string) ([]graph.Folder, error) {
	folders, err := client.ListFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	if name == "" {
		return folders, nil
	}
	for _, f := range folders {
		if strings.EqualFold(f.DisplayName, name) {
			return []graph.Folder{f}, nil
		}
	}
	return nil, fmt.Errorf("folder %q not found", name)
}

func summarize(logger *slog.Logger, audit *auditlog.Log, runCtx *purge.RunContext) {
	elapsed := runCtx.Elapsed(time.Now()).Round(time.Second)
	audit.Info("run complete: %d matched, %d deleted, %d failed in %s",
		runCtx.Total.Matched, runCtx.Total.Deleted, runCtx.Total.Failed, elapsed)
	logger.Info("run complete",
		"matched", runCtx.Total.Matched,
		"deleted", runCtx.Total.Deleted,
		"failed", runCtx.Total.Failed,
		"elapsed", elapsed)
}
