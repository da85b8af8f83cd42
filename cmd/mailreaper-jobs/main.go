package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joshsymonds/mailreaper/internal/auditlog"
	"github.com/joshsymonds/mailreaper/internal/compliance"
	"github.com/joshsymonds/mailreaper/internal/confirm"
	"github.com/joshsymonds/mailreaper/internal/purge"
	"github.com/joshsymonds/mailreaper/internal/rate"
	"github.com/joshsymonds/mailreaper/internal/report"
	"github.com/joshsymonds/mailreaper/internal/runtime"
)

type jobsConfig struct {
	mailbox   string
	prefix    string
	discard   bool
	rps       int
	auditPath string
}

func main() {
	cfg := parseJobsFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("mailreaper-jobs failed", "error", err)
		os.Exit(1)
	}
}

func parseJobsFlags() jobsConfig {
	mailbox := flag.String("mailbox", "", "limit the listing to one mailbox's jobs")
	prefix := flag.String("prefix", "", "override the job name prefix to list (default derived from -mailbox)")
	discard := flag.Bool("discard", false, "delete the listed job records after confirmation")
	rps := flag.Int("rps", 4, "max requests per second")
	auditPath := flag.String("audit-log", "mailreaper-audit.log", "audit trail file")
	flag.Parse()

	return jobsConfig{
		mailbox:   *mailbox,
		prefix:    *prefix,
		discard:   *discard,
		rps:       *rps,
		auditPath: *auditPath,
	}
}

func run(cfg jobsConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := runtime.DefaultLogger()

	if cfg.prefix == "" {
		cfg.prefix = purge.JobPrefix(cfg.mailbox)
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

	client := runtime.NewSearchClient(envCfg, tokens)
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}
	jobs, err := client.ListSearches(ctx, cfg.prefix)
	if err != nil {
		return fmt.Errorf("list search jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Printf("no search jobs with prefix %q\n", cfg.prefix)
		return nil
	}
	printJobs(jobs)

	if !cfg.discard {
		return nil
	}
	return discardJobs(ctx, cfg, client, limiter, jobs, logger)
}

func printJobs(jobs []compliance.Job) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tITEMS\tSIZE")
	for _, j := range jobs {
		size := "-"
		if j.SizeBytes > 0 {
			size = report.FormatBytes(j.SizeBytes)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", j.Name, j.Status, j.Items, size)
	}
	_ = tw.Flush()
}

func discardJobs(ctx context.Context, cfg jobsConfig, client compliance.Client, limiter rate.Limiter, jobs []compliance.Job, logger *slog.Logger) error {
	audit := auditlog.Open(cfg.auditPath)
	defer func() { _ = audit.Close() }()

	gate := &confirm.StdinGate{In: os.Stdin, Out: os.Stderr}
	msg := fmt.Sprintf("Discard %d search job records? The searches and any pending purges are removed. Type %s to continue:",
		len(jobs), confirm.TokenYes)
	ok, err := confirm.Ask(gate, msg, confirm.TokenYes)
	if err != nil {
		return fmt.Errorf("confirm discard: %w", err)
	}
	if !ok {
		audit.Warning("discard of %d job records declined by operator", len(jobs))
		return nil
	}

	var failed int
	for _, j := range jobs {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := client.DeleteSearch(ctx, j.Name); err != nil {
			audit.Error("discard job %s failed: %v", j.Name, err)
			failed++
			continue
		}
		audit.Info("job %s discarded", j.Name)
	}
	logger.Info("jobs discarded", "requested", len(jobs), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d job records could not be discarded", failed, len(jobs))
	}
	audit.Success("%d job records discarded", len(jobs))
	return nil
}
