package stats

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"kvbench/internal/workload"
)

// ErrAlreadyFinalized is returned when Finalize is called twice.
var ErrAlreadyFinalized = errors.New("collector already finalized")

// Outcome is the result of executing one operation. It is owned by the
// worker that produced it until handed to the collector.
type Outcome struct {
	Kind     workload.Kind
	Success  bool
	Category string // error category, empty on success
	Start    time.Time
	Elapsed  time.Duration
	Endpoint string
}

// Collector is the shared aggregation sink for all workers. Submit is
// O(1): the totals are atomic counters and the map/histogram updates
// hold a short mutex, so a worker is never blocked for more than a
// bounded critical section.
type Collector struct {
	attempted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64

	all    *SafeHistogram
	reads  *SafeHistogram
	writes *SafeHistogram

	mu          sync.Mutex
	kinds       map[workload.Kind]*kindCounts
	errors      map[string]uint64
	perEndpoint map[string]uint64

	finalized atomic.Bool
}

type kindCounts struct {
	attempted uint64
	succeeded uint64
}

func NewCollector() *Collector {
	return &Collector{
		all:    NewSafeHistogram(),
		reads:  NewSafeHistogram(),
		writes: NewSafeHistogram(),
		kinds: map[workload.Kind]*kindCounts{
			workload.Read:  {},
			workload.Write: {},
		},
		errors:      make(map[string]uint64),
		perEndpoint: make(map[string]uint64),
	}
}

// Submit ingests one outcome. Latency goes into the histograms only for
// successful operations; failures land in the error buckets instead.
// Submissions after Finalize belong to abandoned workers and are
// dropped, their in-flight outcome was already recorded for them.
func (c *Collector) Submit(o Outcome) {
	if c.finalized.Load() {
		return
	}

	c.attempted.Add(1)
	if o.Success {
		c.succeeded.Add(1)
		us := o.Elapsed.Microseconds()
		c.all.Record(us)
		if o.Kind == workload.Read {
			c.reads.Record(us)
		} else {
			c.writes.Record(us)
		}
	} else {
		c.failed.Add(1)
	}

	c.mu.Lock()
	kc := c.kinds[o.Kind]
	kc.attempted++
	if o.Success {
		kc.succeeded++
	} else {
		c.errors[o.Category]++
	}
	c.perEndpoint[o.Endpoint]++
	c.mu.Unlock()
}

// Live accessors for progress reporting.

func (c *Collector) Attempted() uint64 { return c.attempted.Load() }
func (c *Collector) Succeeded() uint64 { return c.succeeded.Load() }
func (c *Collector) Failed() uint64    { return c.failed.Load() }

// KindStats summarizes one operation kind.
type KindStats struct {
	Attempted uint64  `json:"operations_attempted"`
	Succeeded uint64  `json:"operations_succeeded"`
	AvgMs     float64 `json:"avg_latency_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P90Ms     float64 `json:"p90_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// Summary is the terminal aggregate of one measurement window.
type Summary struct {
	Attempted  uint64
	Succeeded  uint64
	Failed     uint64
	Throughput float64 // successful ops/sec over the window

	AvgMs float64
	P50Ms float64
	P90Ms float64
	P99Ms float64
	MaxMs float64

	Reads  KindStats
	Writes KindStats

	Errors      map[string]uint64
	PerEndpoint map[string]uint64

	Window     time.Duration
	Incomplete bool
}

// Finalize computes the summary over the given measurement window.
// complete=false marks the summary incomplete instead of silently
// reporting partial numbers. It may be called exactly once.
func (c *Collector) Finalize(window time.Duration, complete bool) (*Summary, error) {
	if !c.finalized.CompareAndSwap(false, true) {
		return nil, ErrAlreadyFinalized
	}

	s := &Summary{
		Attempted:  c.attempted.Load(),
		Succeeded:  c.succeeded.Load(),
		Failed:     c.failed.Load(),
		AvgMs:      c.all.MeanMs(),
		P50Ms:      c.all.QuantileMs(50),
		P90Ms:      c.all.QuantileMs(90),
		P99Ms:      c.all.QuantileMs(99),
		MaxMs:      c.all.MaxMs(),
		Window:     window,
		Incomplete: !complete,
	}
	if window > 0 {
		s.Throughput = float64(s.Succeeded) / window.Seconds()
	}

	c.mu.Lock()
	s.Errors = make(map[string]uint64, len(c.errors))
	for k, v := range c.errors {
		s.Errors[k] = v
	}
	s.PerEndpoint = make(map[string]uint64, len(c.perEndpoint))
	for k, v := range c.perEndpoint {
		s.PerEndpoint[k] = v
	}
	s.Reads = c.kindStatsLocked(workload.Read, c.reads)
	s.Writes = c.kindStatsLocked(workload.Write, c.writes)
	c.mu.Unlock()

	return s, nil
}

func (c *Collector) kindStatsLocked(kind workload.Kind, h *SafeHistogram) KindStats {
	kc := c.kinds[kind]
	return KindStats{
		Attempted: kc.attempted,
		Succeeded: kc.succeeded,
		AvgMs:     h.MeanMs(),
		P50Ms:     h.QuantileMs(50),
		P90Ms:     h.QuantileMs(90),
		P99Ms:     h.QuantileMs(99),
	}
}
