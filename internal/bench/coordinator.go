package bench

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kvbench/internal/endpoint"
	"kvbench/internal/stats"
	"kvbench/internal/store"
	"kvbench/internal/workload"
)

// Run phases.
type Phase int32

const (
	PhaseConfiguring Phase = iota
	PhaseResolving
	PhaseWarmup
	PhaseMeasuring
	PhaseFinalizing
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseConfiguring:
		return "configuring"
	case PhaseResolving:
		return "resolving"
	case PhaseWarmup:
		return "warmup"
	case PhaseMeasuring:
		return "measuring"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Result is the outcome of one coordinated run.
type Result struct {
	Summary   *stats.Summary
	Endpoints []endpoint.Endpoint
	Started   time.Time // measurement window start
	Ended     time.Time // measurement window end
}

// Coordinator owns the benchmark lifecycle for one workload run:
// warmup, the timed measurement window, graceful shutdown and final
// aggregation. Total wall time is bounded by warmup + duration + the
// drain grace, regardless of per-operation latency spikes.
type Coordinator struct {
	cfg      Config
	resolver *endpoint.Resolver
	open     store.OpenFunc
	col      *stats.Collector
	log      *slog.Logger

	phase atomic.Int32
}

func NewCoordinator(cfg Config, resolver *endpoint.Resolver, open store.OpenFunc, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		cfg:      cfg,
		resolver: resolver,
		open:     open,
		col:      stats.NewCollector(),
		log:      log,
	}
}

// Phase reports the coordinator's current phase.
func (c *Coordinator) Phase() Phase { return Phase(c.phase.Load()) }

// Collector exposes the live counters for progress reporting.
func (c *Coordinator) Collector() *stats.Collector { return c.col }

func (c *Coordinator) fail(err error) (*Result, error) {
	c.phase.Store(int32(PhaseFailed))
	return nil, err
}

// Run executes one benchmark run end to end.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	c.phase.Store(int32(PhaseConfiguring))
	c.cfg.Normalize()
	if err := c.cfg.Validate(); err != nil {
		return c.fail(err)
	}

	c.phase.Store(int32(PhaseResolving))
	eps, err := c.resolver.Resolve(ctx, c.cfg.Endpoints, c.cfg.DiscoverFrom)
	if err != nil {
		return c.fail(err)
	}

	clients, order, err := c.dial(ctx, eps)
	if err != nil {
		return c.fail(err)
	}
	defer func() {
		for _, kv := range clients {
			kv.Close()
		}
	}()

	gen := workload.New(c.cfg.generatorConfig())
	if err := c.prepopulate(ctx, gen, clients[order[0]]); err != nil {
		return c.fail(err)
	}

	start := make(chan struct{})
	stop := make(chan struct{})
	workers := make([]*Worker, c.cfg.Clients)
	var wg sync.WaitGroup
	for i := range workers {
		w := NewWorker(i, gen, c.col, clients, rotate(order, i), c.cfg.OpTimeout)
		workers[i] = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx, start, stop)
		}()
	}

	c.phase.Store(int32(PhaseWarmup))
	c.log.Info("warming up", "duration", c.cfg.Warmup, "clients", c.cfg.Clients)
	if err := sleepCtx(ctx, c.cfg.Warmup); err != nil {
		close(stop)
		c.drain(workers, &wg)
		return c.fail(err)
	}

	// Measurement start broadcast, emitted exactly once.
	measureStart := time.Now()
	close(start)
	c.phase.Store(int32(PhaseMeasuring))
	c.log.Info("measurement window open", "duration", c.cfg.Duration)

	interrupted := sleepCtx(ctx, c.cfg.Duration) != nil
	measureEnd := time.Now()
	close(stop)

	c.phase.Store(int32(PhaseFinalizing))
	complete := c.drain(workers, &wg)

	window := measureEnd.Sub(measureStart)
	summary, err := c.col.Finalize(window, complete)
	if err != nil {
		return c.fail(err)
	}
	if interrupted {
		summary.Incomplete = true
	}

	c.phase.Store(int32(PhaseDone))
	c.log.Info("run complete",
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"throughput", summary.Throughput,
		"incomplete", summary.Incomplete)

	return &Result{
		Summary:   summary,
		Endpoints: eps,
		Started:   measureStart,
		Ended:     measureEnd,
	}, nil
}

// dial opens one store client per resolved endpoint. An endpoint that
// probed fine but refuses the dial is excluded like a failed probe.
func (c *Coordinator) dial(ctx context.Context, eps []endpoint.Endpoint) (map[string]store.KV, []string, error) {
	clients := make(map[string]store.KV, len(eps))
	var order []string
	for _, ep := range eps {
		kv, err := c.open(ctx, ep.Address)
		if err != nil {
			c.log.Warn("dial failed, excluding endpoint", "addr", ep.Address, "err", err)
			continue
		}
		clients[ep.Address] = kv
		order = append(order, ep.Address)
	}
	if len(order) == 0 {
		return nil, nil, fmt.Errorf("%w: all %d resolved endpoints refused the dial", endpoint.ErrNoEndpoints, len(eps))
	}
	return clients, order, nil
}

// prepopulate writes seed keys so a read-only workload never reads a
// nonexistent key. Individual failures are logged, not fatal.
func (c *Coordinator) prepopulate(ctx context.Context, gen *workload.Generator, kv store.KV) error {
	for i := 0; i < c.cfg.Prepopulate; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		op := gen.NextWrite()
		opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
		err := kv.Put(opCtx, op.Key, op.Value)
		cancel()
		if err != nil {
			c.log.Warn("prepopulate write failed", "key", op.Key, "err", err)
		}
	}
	return nil
}

// drain waits for the workers to finish their in-flight operations,
// bounded by the drain grace. Stragglers are abandoned: their in-flight
// operation is claimed and recorded as a timeout failure so the run
// never blocks on a stalled store call. Reports true when every worker
// stopped in time.
func (c *Coordinator) drain(workers []*Worker, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(c.cfg.DrainGrace):
	}

	now := time.Now()
	abandoned := 0
	for _, w := range workers {
		if out, ok := w.AbandonInFlight(now); ok {
			c.col.Submit(out)
			abandoned++
		}
	}
	c.log.Warn("drain grace expired, abandoned stragglers", "grace", c.cfg.DrainGrace, "abandoned", abandoned)
	return false
}

// rotate returns order shifted by n, so worker n starts its round-robin
// at a different endpoint.
func rotate(order []string, n int) []string {
	if len(order) == 0 {
		return order
	}
	n %= len(order)
	out := make([]string, 0, len(order))
	out = append(out, order[n:]...)
	out = append(out, order[:n]...)
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
