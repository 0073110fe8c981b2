package workload

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Kind distinguishes read and write operations.
type Kind string

const (
	Read  Kind = "read"
	Write Kind = "write"
)

// SeqWidth is the zero-padded width of the uniqueness counter embedded in
// every write key. Key size validation depends on it.
const SeqWidth = 12

const padChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// OperationSpec is one planned unit of work. Value is empty for reads.
type OperationSpec struct {
	Kind  Kind
	Key   string
	Value string
}

type Config struct {
	KeyPrefix  string
	KeySize    int
	ValueSize  int
	WriteRatio float64
	Seed       int64 // 0 seeds from wall clock
}

// Generator produces the randomized operation stream shared by all
// workers. One mutex guards the RNG, the sequence counter and the
// written-key set, so no two workers can observe the same counter value
// and every write key is unique for the lifetime of the generator.
type Generator struct {
	cfg Config

	mu      sync.Mutex
	rng     *rand.Rand
	seq     uint64
	written []string
}

// New creates a generator. A zero seed picks one from the wall clock;
// any other seed makes the operation stream reproducible.
func New(cfg Config) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		written: make([]string, 0, 1024),
	}
}

// Next draws the next operation. A uniform draw under the write ratio
// emits a write with a fresh unique key; otherwise it emits a read for
// a key already written by this generator. Before the first write has
// happened there is nothing to read, so it falls back to a write.
func (g *Generator) Next() OperationSpec {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.rng.Float64() < g.cfg.WriteRatio || len(g.written) == 0 {
		return g.nextWriteLocked()
	}
	key := g.written[g.rng.Intn(len(g.written))]
	return OperationSpec{Kind: Read, Key: key}
}

// NextWrite emits a write regardless of the configured ratio. The
// coordinator uses it to pre-populate keys before read-heavy workloads.
func (g *Generator) NextWrite() OperationSpec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextWriteLocked()
}

func (g *Generator) nextWriteLocked() OperationSpec {
	g.seq++
	key := fmt.Sprintf("%s_%0*d", g.cfg.KeyPrefix, SeqWidth, g.seq)
	if pad := g.cfg.KeySize - len(key); pad > 0 {
		key += g.randStringLocked(pad)
	}
	g.written = append(g.written, key)
	return OperationSpec{
		Kind:  Write,
		Key:   key,
		Value: g.randStringLocked(g.cfg.ValueSize),
	}
}

func (g *Generator) randStringLocked(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = padChars[g.rng.Intn(len(padChars))]
	}
	return string(b)
}

// WrittenCount returns how many distinct keys have been written so far.
func (g *Generator) WrittenCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.written)
}
