package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"kvbench/internal/bench"
	"kvbench/internal/endpoint"
	"kvbench/internal/report"
	"kvbench/internal/stats"
	"kvbench/internal/storage"
	"kvbench/internal/store"
)

// Options selects what one kvbench invocation runs.
type Options struct {
	Workload  string // one of the named workloads, or "all"
	Out       string // report path; empty picks a timestamped default
	NoHistory bool
}

// Run executes the selected workload(s) against the target cluster,
// writes the JSON report and prints a summary. A run whose individual
// operations failed still succeeds; only configuration and endpoint
// resolution errors come back as errors.
func Run(ctx context.Context, cfg bench.Config, opts Options, log *slog.Logger) error {
	cfg.Normalize()
	workloads := []string{opts.Workload}
	if opts.Workload == "all" {
		workloads = bench.WorkloadNames
	}

	printHeader(cfg, workloads)

	resolver := &endpoint.Resolver{
		Probe:    store.ProbeEtcd,
		Discover: store.DiscoverEtcd,
		Log:      log,
	}

	now := time.Now()
	doc := &report.Document{
		RunID:     uuid.NewString(),
		Timestamp: now,
		Results:   make(map[string]report.WorkloadResult, len(workloads)),
	}

	for _, name := range workloads {
		wcfg, err := cfg.ForWorkload(name)
		if err != nil {
			return err
		}

		fmt.Printf("\n%s\n", styleSection.Render("▶ "+name))
		coord := bench.NewCoordinator(wcfg, resolver, store.OpenEtcd, log)
		res, err := runWithProgress(ctx, coord, wcfg)
		if err != nil {
			return err
		}

		doc.Results[name] = report.FromSummary(res.Summary, res.Started, res.Ended)
		if len(doc.Config.Endpoints) == 0 {
			doc.Config = echoConfig(cfg, endpoint.Addresses(res.Endpoints))
		}
		printWorkloadSummary(name, res.Summary)
	}

	out := opts.Out
	if out == "" {
		out = report.DefaultPath(now)
	}
	if err := doc.Write(out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Printf("\n%s %s\n", styleSubtle.Render("Report saved to"), styleValue.Render(out))

	if !opts.NoHistory {
		if err := saveHistory(doc); err != nil {
			// History is a convenience; losing it never fails the run.
			log.Warn("could not save run history", "err", err)
		}
	}
	return nil
}

func runWithProgress(ctx context.Context, coord *bench.Coordinator, cfg bench.Config) (*bench.Result, error) {
	progressCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go progressLoop(progressCtx, coord, cfg.Warmup+cfg.Duration)

	res, err := coord.Run(ctx)
	cancel()
	fmt.Print("\r" + strings.Repeat(" ", 100) + "\r")
	return res, err
}

// progressLoop redraws one status line until the run finishes.
func progressLoop(ctx context.Context, coord *bench.Coordinator, total time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(start)
			pct := elapsed.Seconds() / total.Seconds()
			if pct > 1.0 {
				pct = 1.0
			}
			col := coord.Collector()
			fmt.Printf("\r%s %3.0f%% | %-11s | Ops: %d | OK: %d | Err: %d",
				progressBar(pct, 20), pct*100,
				coord.Phase(),
				col.Attempted(),
				col.Succeeded(),
				col.Failed(),
			)
		}
	}
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}

func printHeader(cfg bench.Config, workloads []string) {
	fmt.Println(styleTitle.Render("KVBENCH — distributed KV store benchmark"))
	fmt.Printf("%s\n", styleSubtle.Render(strings.Repeat("─", 50)))
	target := strings.Join(cfg.Endpoints, ", ")
	if target == "" {
		target = "discover via " + cfg.DiscoverFrom
	}
	fmt.Printf("Target      : %s\n", target)
	fmt.Printf("Workloads   : %s\n", strings.Join(workloads, ", "))
	fmt.Printf("Clients     : %d\n", cfg.Clients)
	fmt.Printf("Duration    : %s (+%s warmup)\n", cfg.Duration, cfg.Warmup)
	fmt.Printf("Write ratio : %.0f%%\n", cfg.WriteRatio*100)
	fmt.Printf("Key/Value   : %d / %d bytes\n", cfg.KeySize, cfg.ValueSize)
	fmt.Printf("%s\n", styleSubtle.Render(strings.Repeat("─", 50)))
}

func printWorkloadSummary(name string, s *stats.Summary) {
	fmt.Printf("  Operations : %s attempted, %s ok, %s failed\n",
		styleValue.Render(fmt.Sprint(s.Attempted)),
		styleValue.Render(fmt.Sprint(s.Succeeded)),
		errStyle(s.Failed).Render(fmt.Sprint(s.Failed)),
	)
	fmt.Printf("  Throughput : %s ops/sec\n", styleValue.Render(fmt.Sprintf("%.1f", s.Throughput)))
	fmt.Printf("  Latency    : avg %.2fms | p50 %.2fms | p90 %.2fms | p99 %.2fms\n",
		s.AvgMs, s.P50Ms, s.P90Ms, s.P99Ms)

	if len(s.PerEndpoint) > 1 {
		addrs := make([]string, 0, len(s.PerEndpoint))
		for a := range s.PerEndpoint {
			addrs = append(addrs, a)
		}
		sort.Strings(addrs)
		var parts []string
		for _, a := range addrs {
			parts = append(parts, fmt.Sprintf("%s=%d", a, s.PerEndpoint[a]))
		}
		fmt.Printf("  Endpoints  : %s\n", strings.Join(parts, "  "))
	}
	if len(s.Errors) > 0 {
		var parts []string
		for cat, n := range s.Errors {
			parts = append(parts, fmt.Sprintf("%d × %s", n, cat))
		}
		sort.Strings(parts)
		fmt.Printf("  %s %s\n", styleError.Render("Errors     :"), strings.Join(parts, ", "))
	}
	if s.Incomplete {
		fmt.Printf("  %s\n", styleWarn.Render("⚠ aggregation incomplete (workers abandoned past drain grace)"))
	}
}

func errStyle(failed uint64) lipgloss.Style {
	if failed > 0 {
		return styleError
	}
	return styleValue
}

func echoConfig(cfg bench.Config, endpoints []string) report.ConfigEcho {
	return report.ConfigEcho{
		Clients:         cfg.Clients,
		DurationSeconds: cfg.Duration.Seconds(),
		WriteRatio:      cfg.WriteRatio,
		KeySize:         cfg.KeySize,
		ValueSize:       cfg.ValueSize,
		KeyPrefix:       cfg.KeyPrefix,
		WarmupSeconds:   cfg.Warmup.Seconds(),
		Endpoints:       endpoints,
		Seed:            cfg.Seed,
	}
}

func saveHistory(doc *report.Document) error {
	hs, err := storage.NewStore()
	if err != nil {
		return err
	}
	defer hs.Close()
	return hs.Save(storage.NewHistoryItem(doc))
}

// History prints the stored run history, newest first.
func History() error {
	hs, err := storage.NewStore()
	if err != nil {
		return err
	}
	defer hs.Close()

	items := hs.List()
	if len(items) == 0 {
		fmt.Println(styleSubtle.Render("No runs recorded yet."))
		return nil
	}

	fmt.Println(styleTitle.Render("Run history"))
	for _, it := range items {
		fmt.Printf("%s  %s  clients=%d  ops=%d  ok=%d  p99=%.2fms  [%s]\n",
			styleSubtle.Render(it.Timestamp.Format(time.DateTime)),
			it.ID[:8],
			it.Clients,
			it.Summary.Attempted,
			it.Summary.Succeeded,
			it.Summary.P99LatencyMs,
			strings.Join(it.Workloads, ","),
		)
	}
	return nil
}

// ExitCode maps a run error onto the process exit status: configuration
// problems and unreachable clusters are distinct from everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, bench.ErrConfig):
		return 2
	case errors.Is(err, endpoint.ErrNoEndpoints):
		return 3
	default:
		return 1
	}
}
