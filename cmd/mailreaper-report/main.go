package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshsymonds/mailreaper/internal/auditlog"
	"github.com/joshsymonds/mailreaper/internal/confirm"
	"github.com/joshsymonds/mailreaper/internal/graph"
	"github.com/joshsymonds/mailreaper/internal/rate"
	"github.com/joshsymonds/mailreaper/internal/report"
	"github.com/joshsymonds/mailreaper/internal/runtime"
)

type reportConfig struct {
	mailbox      string
	topN         int
	jsonPath     string
	includeEmpty bool
	removeHold   bool
	rps          int
	auditPath    string
}

func main() {
	cfg := parseReportFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailreaper-report failed", "error", err)
		os.Exit(1)
	}
}

func parseReportFlags() reportConfig {
	mailbox := flag.String("mailbox", "", "target mailbox (required)")
	topN := flag.Int("top", 10, "folders to show in each ranking")
	jsonPath := flag.String("json", "", "also write the report to this relative path as JSON")
	includeEmpty := flag.Bool("include-empty", false, "include folders with zero items")
	removeHold := flag.Bool("remove-hold", false, "disable the mailbox retention hold after reporting")
	rps := flag.Int("rps", 4, "max requests per second")
	auditPath := flag.String("audit-log", "mailreaper-audit.log", "audit trail file")
	flag.Parse()

	return reportConfig{
		mailbox:      *mailbox,
		topN:         *topN,
		jsonPath:     *jsonPath,
		includeEmpty: *includeEmpty,
		removeHold:   *removeHold,
		rps:          *rps,
		auditPath:    *auditPath,
	}
}

func run(cfg reportConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	if cfg.mailbox == "" {
		return fmt.Errorf("-mailbox is required")
	}
	envCfg, err := runtime.LoadConfig()
	if err != nil {
		return err
	}
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

	client := runtime.NewGraphClient(envCfg, cfg.mailbox, tokens)
	svc := report.NewService(client, limiter, logger)

	rep, err := svc.Run(ctx, report.Options{TopN: cfg.topN, IncludeEmpty: cfg.includeEmpty})
	if err != nil {
		return fmt.Errorf("inventory %s: %w", cfg.mailbox, err)
	}
	if err := report.PrintHuman(rep, os.Stdout); err != nil {
		return err
	}
	if cfg.jsonPath != "" {
		if err := report.WriteJSON(rep, cfg.jsonPath); err != nil {
			return err
		}
		logger.Info("report written", "path", cfg.jsonPath)
	}

	if !cfg.removeHold {
		return nil
	}
	return disableHold(ctx, cfg, client, rep.RetentionHold)
}

// disableHold turns off the mailbox retention hold behind its own
// confirmation token. A declined prompt leaves the hold in place and exits
// cleanly.
func disableHold(ctx context.Context, cfg reportConfig, client graph.Client, holdEnabled bool) error {
	logger := runtime.DefaultLogger()
	if !holdEnabled {
		logger.Info("retention hold already disabled", "mailbox", cfg.mailbox)
		return nil
	}

	audit := auditlog.Open(cfg.auditPath)
	defer func() { _ = audit.Close() }()

	gate := &confirm.StdinGate{In: os.Stdin, Out: os.Stderr}
	msg := fmt.Sprintf("Disable retention hold on %s? Deleted items will stop being retained. Type %s to continue:",
		cfg.mailbox, confirm.TokenRemove)
	ok, err := confirm.Ask(gate, msg, confirm.TokenRemove)
	if err != nil {
		return fmt.Errorf("confirm hold removal: %w", err)
	}
	if !ok {
		audit.Warning("%s: retention hold removal declined by operator", cfg.mailbox)
		return nil
	}
	if err := client.SetRetentionHold(ctx, false); err != nil {
		audit.Error("%s: retention hold removal failed: %v", cfg.mailbox, err)
		return fmt.Errorf("remove retention hold: %w", err)
	}
	audit.Success("%s: retention hold disabled", cfg.mailbox)
	logger.Info("retention hold disabled", "mailbox", cfg.mailbox)
	return nil
}
