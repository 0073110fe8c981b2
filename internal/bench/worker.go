package bench

import (
	"context"
	"sync/atomic"
	"time"

	"kvbench/internal/stats"
	"kvbench/internal/store"
	"kvbench/internal/workload"
)

// Worker lifecycle states.
const (
	StateIdle int32 = iota
	StateWarming
	StateMeasuring
	StateDraining
	StateStopped
)

// demoteAfter is the consecutive-failure count after which an endpoint
// is served at half frequency. It is never excluded outright; a single
// success restores it.
const demoteAfter = 3

type inflightOp struct {
	kind     workload.Kind
	endpoint string
	start    time.Time
}

// Worker is one simulated client. It pulls operations from the shared
// generator, issues them round-robin across the resolved endpoints and
// submits outcomes to the shared collector once measurement starts.
type Worker struct {
	id        int
	gen       *workload.Generator
	col       *stats.Collector
	clients   map[string]store.KV
	order     []string
	opTimeout time.Duration

	state    atomic.Int32
	inflight atomic.Pointer[inflightOp]

	// endpoint selection state, worker-local so no locking needed
	rr      int
	consec  map[string]int
	demoted map[string]bool
	skip    map[string]bool
}

// NewWorker builds a worker. order is the endpoint rotation; giving
// each worker a rotated copy avoids every client hammering the same
// node in lockstep.
func NewWorker(id int, gen *workload.Generator, col *stats.Collector, clients map[string]store.KV, order []string, opTimeout time.Duration) *Worker {
	return &Worker{
		id:        id,
		gen:       gen,
		col:       col,
		clients:   clients,
		order:     order,
		opTimeout: opTimeout,
		consec:    make(map[string]int, len(order)),
		demoted:   make(map[string]bool, len(order)),
		skip:      make(map[string]bool, len(order)),
	}
}

// State reports the worker's current lifecycle state.
func (w *Worker) State() int32 { return w.state.Load() }

// Run drives the worker until the stop broadcast. Operations executed
// before the start broadcast are warmup: they run against the store but
// their outcomes are discarded. After stop is observed no new operation
// begins; the in-flight one finishes under its own timeout and its
// outcome is still submitted.
func (w *Worker) Run(ctx context.Context, start, stop <-chan struct{}) {
	defer w.state.Store(StateStopped)

	w.state.Store(StateWarming)
warmup:
	for {
		select {
		case <-start:
			break warmup
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}
		w.execute(ctx, false)
	}

	w.state.Store(StateMeasuring)
	for {
		select {
		case <-stop:
			w.state.Store(StateDraining)
			return
		case <-ctx.Done():
			w.state.Store(StateDraining)
			return
		default:
		}
		w.execute(ctx, true)
	}
}

// execute issues one operation. A failure is recorded, never fatal:
// the worker keeps going no matter what the store did.
func (w *Worker) execute(ctx context.Context, record bool) {
	op := w.gen.Next()
	addr := w.pickEndpoint()
	kv := w.clients[addr]

	in := &inflightOp{kind: op.Kind, endpoint: addr, start: time.Now()}
	w.inflight.Store(in)

	opCtx, cancel := context.WithTimeout(ctx, w.opTimeout)
	var err error
	if op.Kind == workload.Write {
		err = kv.Put(opCtx, op.Key, op.Value)
	} else {
		_, err = kv.Get(opCtx, op.Key)
	}
	cancel()
	elapsed := time.Since(in.start)

	if err == nil {
		w.consec[addr] = 0
		w.demoted[addr] = false
	} else {
		w.consec[addr]++
		if w.consec[addr] >= demoteAfter {
			w.demoted[addr] = true
		}
	}

	// The coordinator may have claimed this operation as abandoned while
	// it was in flight; whoever swaps the pointer out submits.
	if w.inflight.Swap(nil) == nil {
		return
	}
	if !record {
		return
	}
	out := stats.Outcome{
		Kind:     op.Kind,
		Success:  err == nil,
		Start:    in.start,
		Elapsed:  elapsed,
		Endpoint: addr,
	}
	if err != nil {
		out.Category = Categorize(err)
	}
	w.col.Submit(out)
}

// pickEndpoint rotates round-robin over the endpoints. Demoted
// endpoints are served every other pass, the soft backpressure that
// keeps a struggling node in rotation without hammering it.
func (w *Worker) pickEndpoint() string {
	for range 2 * len(w.order) {
		addr := w.order[w.rr%len(w.order)]
		w.rr++
		if w.demoted[addr] {
			w.skip[addr] = !w.skip[addr]
			if w.skip[addr] {
				continue
			}
		}
		return addr
	}
	return w.order[0]
}

// AbandonInFlight claims the worker's in-flight operation, if any, so
// the coordinator can record it as timed out instead of waiting on a
// stalled store call. Returns false when nothing was in flight or the
// worker already submitted it.
func (w *Worker) AbandonInFlight(now time.Time) (stats.Outcome, bool) {
	in := w.inflight.Swap(nil)
	if in == nil {
		return stats.Outcome{}, false
	}
	return stats.Outcome{
		Kind:     in.kind,
		Success:  false,
		Category: CategoryTimeout,
		Start:    in.start,
		Elapsed:  now.Sub(in.start),
		Endpoint: in.endpoint,
	}, true
}
