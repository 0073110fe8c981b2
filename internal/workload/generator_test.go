package workload

import (
	"sync"
	"testing"
)

func testConfig() Config {
	return Config{
		KeyPrefix:  "bench",
		KeySize:    32,
		ValueSize:  64,
		WriteRatio: 0.5,
		Seed:       42,
	}
}

func TestWriteKeyAndValueSizes(t *testing.T) {
	cfg := testConfig()
	g := New(cfg)

	for range 500 {
		op := g.NextWrite()
		if len(op.Key) != cfg.KeySize {
			t.Fatalf("key size = %d, want %d (key %q)", len(op.Key), cfg.KeySize, op.Key)
		}
		if len(op.Value) != cfg.ValueSize {
			t.Fatalf("value size = %d, want %d", len(op.Value), cfg.ValueSize)
		}
	}
}

func TestSeededReproducibility(t *testing.T) {
	g1 := New(testConfig())
	g2 := New(testConfig())

	for i := range 1000 {
		a, b := g1.Next(), g2.Next()
		if a != b {
			t.Fatalf("op %d diverged with identical seeds: %+v vs %+v", i, a, b)
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	cfg1 := testConfig()
	cfg2 := testConfig()
	cfg2.Seed = 43
	g1, g2 := New(cfg1), New(cfg2)

	same := 0
	for range 100 {
		if g1.Next() == g2.Next() {
			same++
		}
	}
	if same == 100 {
		t.Fatal("different seeds produced identical streams")
	}
}

func TestReadOnlyRatioFallsBackToWrite(t *testing.T) {
	cfg := testConfig()
	cfg.WriteRatio = 0.0
	g := New(cfg)

	first := g.Next()
	if first.Kind != Write {
		t.Fatalf("first op with no written keys = %s, want write fallback", first.Kind)
	}

	// From now on every op must be a read of the one written key.
	for range 200 {
		op := g.Next()
		if op.Kind != Read {
			t.Fatalf("op kind = %s, want read", op.Kind)
		}
		if op.Key != first.Key {
			t.Fatalf("read key %q was never written", op.Key)
		}
	}
}

func TestWriteOnlyRatioNeverReads(t *testing.T) {
	cfg := testConfig()
	cfg.WriteRatio = 1.0
	g := New(cfg)

	for range 500 {
		if op := g.Next(); op.Kind != Write {
			t.Fatalf("op kind = %s, want write", op.Kind)
		}
	}
}

func TestReadsOnlySampleWrittenKeys(t *testing.T) {
	g := New(testConfig())

	written := make(map[string]bool)
	for range 2000 {
		op := g.Next()
		if op.Kind == Write {
			written[op.Key] = true
			continue
		}
		if !written[op.Key] {
			t.Fatalf("read of key %q that was never written", op.Key)
		}
	}
}

// Key uniqueness is the core correctness invariant of key generation:
// no two writes across the run may produce the same key, no matter how
// many workers pull from the generator at once.
func TestConcurrentWriteKeysUnique(t *testing.T) {
	cfg := testConfig()
	cfg.WriteRatio = 1.0
	g := New(cfg)

	const workers = 16
	const perWorker = 2000

	keys := make([][]string, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for range perWorker {
				local = append(local, g.Next().Key)
			}
			keys[i] = local
		}()
	}
	wg.Wait()

	seen := make(map[string]int, workers*perWorker)
	for i, ks := range keys {
		for _, k := range ks {
			if prev, dup := seen[k]; dup {
				t.Fatalf("duplicate key %q produced by workers %d and %d", k, prev, i)
			}
			seen[k] = i
		}
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("got %d unique keys, want %d", len(seen), workers*perWorker)
	}
}

func TestWrittenCount(t *testing.T) {
	cfg := testConfig()
	cfg.WriteRatio = 1.0
	g := New(cfg)

	for range 10 {
		g.Next()
	}
	if n := g.WrittenCount(); n != 10 {
		t.Errorf("WrittenCount = %d, want 10", n)
	}
}
