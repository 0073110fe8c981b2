package bench

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"kvbench/internal/endpoint"
	"kvbench/internal/store"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func memResolver() *endpoint.Resolver {
	return &endpoint.Resolver{
		Probe: func(ctx context.Context, addr string) error { return nil },
		Log:   quietLogger(),
	}
}

func memOpen(backends map[string]store.KV) store.OpenFunc {
	return func(ctx context.Context, addr string) (store.KV, error) {
		return backends[addr], nil
	}
}

func shortConfig() Config {
	return Config{
		Clients:    4,
		Duration:   120 * time.Millisecond,
		WriteRatio: 0.5,
		KeySize:    24,
		ValueSize:  16,
		KeyPrefix:  "bench",
		Warmup:     20 * time.Millisecond,
		Endpoints:  []string{"a", "b"},
		Seed:       1,
		OpTimeout:  time.Second,
		DrainGrace: 300 * time.Millisecond,
	}
}

func TestCoordinatorFullRun(t *testing.T) {
	backends := map[string]store.KV{
		"a": store.NewMemory(),
		"b": store.NewMemory(),
	}
	c := NewCoordinator(shortConfig(), memResolver(), memOpen(backends), quietLogger())

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if c.Phase() != PhaseDone {
		t.Errorf("phase = %s, want done", c.Phase())
	}

	s := res.Summary
	if s.Attempted == 0 {
		t.Fatal("no operations recorded")
	}
	if s.Attempted != s.Succeeded+s.Failed {
		t.Errorf("attempted %d != succeeded %d + failed %d", s.Attempted, s.Succeeded, s.Failed)
	}
	if s.Incomplete {
		t.Error("clean run flagged incomplete")
	}
	if s.Throughput <= 0 {
		t.Errorf("throughput = %g, want > 0", s.Throughput)
	}
	if len(s.PerEndpoint) != 2 {
		t.Errorf("per-endpoint entries = %d, want 2", len(s.PerEndpoint))
	}
	if !res.Ended.After(res.Started) {
		t.Error("measurement window end not after start")
	}
}

func TestCoordinatorWriteOnlyHasNoReads(t *testing.T) {
	cfg := shortConfig()
	cfg.WriteRatio = 1.0
	cfg.Clients = 10
	backends := map[string]store.KV{"a": store.NewMemory(), "b": store.NewMemory()}
	c := NewCoordinator(cfg, memResolver(), memOpen(backends), quietLogger())

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Summary.Reads.Attempted != 0 {
		t.Errorf("read count = %d with write ratio 1.0, want 0", res.Summary.Reads.Attempted)
	}
	if res.Summary.Writes.Attempted == 0 {
		t.Error("no writes recorded")
	}
}

func TestCoordinatorRejectsConfigBeforeDialing(t *testing.T) {
	cfg := shortConfig()
	cfg.WriteRatio = 1.5

	var dials atomic.Int32
	open := func(ctx context.Context, addr string) (store.KV, error) {
		dials.Add(1)
		return store.NewMemory(), nil
	}
	c := NewCoordinator(cfg, memResolver(), open, quietLogger())

	_, err := c.Run(context.Background())
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
	if c.Phase() != PhaseFailed {
		t.Errorf("phase = %s, want failed", c.Phase())
	}
	if dials.Load() != 0 {
		t.Errorf("%d store clients dialed despite invalid config", dials.Load())
	}
}

func TestCoordinatorFailsWithoutEndpoints(t *testing.T) {
	cfg := shortConfig()
	resolver := &endpoint.Resolver{
		Probe: func(ctx context.Context, addr string) error {
			return errors.New("connection refused")
		},
		Log: quietLogger(),
	}
	c := NewCoordinator(cfg, resolver, memOpen(nil), quietLogger())

	_, err := c.Run(context.Background())
	if !errors.Is(err, endpoint.ErrNoEndpoints) {
		t.Fatalf("err = %v, want ErrNoEndpoints", err)
	}
}

func TestCoordinatorPrepopulates(t *testing.T) {
	cfg := shortConfig()
	cfg.Endpoints = []string{"a"}
	cfg.Clients = 1
	cfg.WriteRatio = 0.0
	cfg.Prepopulate = 50
	mem := store.NewMemory()
	c := NewCoordinator(cfg, memResolver(), memOpen(map[string]store.KV{"a": mem}), quietLogger())

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if mem.Len() < 50 {
		t.Errorf("store holds %d keys, want >= 50 prepopulated", mem.Len())
	}
	// With keys prepopulated the read-only workload really reads.
	if res.Summary.Reads.Attempted == 0 {
		t.Error("no reads recorded in read-only workload")
	}
}

// stalledKV blocks every operation until released.
type stalledKV struct {
	release chan struct{}
}

func (s *stalledKV) Put(ctx context.Context, key, value string) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
func (s *stalledKV) Get(ctx context.Context, key string) (string, error) {
	return "", s.Put(ctx, key, "")
}
func (s *stalledKV) Close() error { return nil }

// A store call stalled past the drain grace must not block the run:
// the worker is abandoned, its in-flight operation is recorded as a
// timeout, and the report is flagged incomplete.
func TestCoordinatorBoundedRuntimeWithStalledStore(t *testing.T) {
	stalled := &stalledKV{release: make(chan struct{})}
	defer close(stalled.release)

	cfg := shortConfig()
	cfg.Clients = 2
	cfg.Warmup = 0
	cfg.Duration = 80 * time.Millisecond
	cfg.OpTimeout = 30 * time.Second // the op itself will not time out in-test
	cfg.DrainGrace = 100 * time.Millisecond
	cfg.Endpoints = []string{"good", "stall"}

	backends := map[string]store.KV{
		"good":  store.NewMemory(),
		"stall": stalled,
	}
	c := NewCoordinator(cfg, memResolver(), memOpen(backends), quietLogger())

	began := time.Now()
	res, err := c.Run(context.Background())
	elapsed := time.Since(began)

	if err != nil {
		t.Fatal(err)
	}
	// warmup + duration + grace plus scheduling slack
	if limit := 2 * time.Second; elapsed > limit {
		t.Fatalf("run took %s, want bounded well under %s", elapsed, limit)
	}
	if !res.Summary.Incomplete {
		t.Error("report not flagged incomplete after abandoning workers")
	}
	if res.Summary.Errors[CategoryTimeout] == 0 {
		t.Error("abandoned in-flight operations not recorded as timeouts")
	}
}

func TestCoordinatorSurvivesEndpointFailingMidRun(t *testing.T) {
	flaky := &fakeKV{}
	cfg := shortConfig()
	cfg.Duration = 150 * time.Millisecond
	backends := map[string]store.KV{
		"a": store.NewMemory(),
		"b": flaky,
	}
	c := NewCoordinator(cfg, memResolver(), memOpen(backends), quietLogger())

	go func() {
		time.Sleep(cfg.Warmup + 40*time.Millisecond)
		flaky.failing.Store(true)
	}()

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	s := res.Summary
	if s.Failed == 0 {
		t.Error("no failures recorded from the failing endpoint")
	}
	if s.Succeeded == 0 {
		t.Error("healthy endpoint made no progress")
	}
	if s.PerEndpoint["b"] == 0 {
		t.Error("failing endpoint missing from per-endpoint counts")
	}
}

func TestRotate(t *testing.T) {
	order := []string{"a", "b", "c"}
	got := rotate(order, 1)
	want := []string{"b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotate(1) = %v, want %v", got, want)
		}
	}
	if r := rotate(order, 3); r[0] != "a" {
		t.Errorf("rotate by len = %v, want original order", r)
	}
}
