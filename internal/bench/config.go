package bench

import (
	"fmt"
	"time"

	"kvbench/internal/workload"
)

// Named workloads, matching the keys of the report document.
const (
	WorkloadSequentialWrite = "sequential_write"
	WorkloadSequentialRead  = "sequential_read"
	WorkloadConcurrentWrite = "concurrent_write"
	WorkloadMixed           = "mixed"
)

// WorkloadNames lists the named workloads in suite order.
var WorkloadNames = []string{
	WorkloadSequentialWrite,
	WorkloadSequentialRead,
	WorkloadConcurrentWrite,
	WorkloadMixed,
}

// readPrepopulate is how many keys are written up front so a read-only
// workload has something to read.
const readPrepopulate = 100

// Config is the configuration of one benchmark run.
type Config struct {
	Clients    int
	Duration   time.Duration
	WriteRatio float64
	KeySize    int
	ValueSize  int
	KeyPrefix  string
	Warmup     time.Duration

	// Endpoints is the explicit list; when empty, DiscoverFrom is
	// queried for cluster membership.
	Endpoints    []string
	DiscoverFrom string

	Seed        int64
	OpTimeout   time.Duration
	DrainGrace  time.Duration
	Prepopulate int
}

// Normalize fills defaults for optional fields left at zero.
func (c *Config) Normalize() {
	if c.KeySize == 0 {
		c.KeySize = 64
	}
	if c.ValueSize == 0 {
		c.ValueSize = 1024
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "benchmark"
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = 10 * time.Second
	}
	if c.DrainGrace == 0 {
		c.DrainGrace = 5 * time.Second
	}
}

// Validate rejects invalid configuration before any client starts.
func (c *Config) Validate() error {
	if c.Clients < 1 {
		return fmt.Errorf("%w: clients must be >= 1, got %d", ErrConfig, c.Clients)
	}
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be > 0, got %s", ErrConfig, c.Duration)
	}
	if c.WriteRatio < 0 || c.WriteRatio > 1 {
		return fmt.Errorf("%w: write ratio must be within [0,1], got %g", ErrConfig, c.WriteRatio)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("%w: warmup must be >= 0, got %s", ErrConfig, c.Warmup)
	}
	if min := len(c.KeyPrefix) + 1 + workload.SeqWidth; c.KeySize < min {
		return fmt.Errorf("%w: key size %d too small for prefix %q (minimum %d)", ErrConfig, c.KeySize, c.KeyPrefix, min)
	}
	if c.ValueSize < 1 {
		return fmt.Errorf("%w: value size must be >= 1, got %d", ErrConfig, c.ValueSize)
	}
	if c.OpTimeout <= 0 {
		return fmt.Errorf("%w: operation timeout must be > 0, got %s", ErrConfig, c.OpTimeout)
	}
	return nil
}

// ForWorkload derives the configuration of one named workload from the
// base config, following the classic suite shape: single-client
// sequential passes, an all-writes concurrency pass and the mixed
// read/write pass. Each workload writes under its own key prefix so
// suite runs never collide.
func (c Config) ForWorkload(name string) (Config, error) {
	out := c
	out.KeyPrefix = c.KeyPrefix + "_" + name
	switch name {
	case WorkloadSequentialWrite:
		out.Clients = 1
		out.WriteRatio = 1.0
	case WorkloadSequentialRead:
		out.Clients = 1
		out.WriteRatio = 0.0
		out.Prepopulate = readPrepopulate
	case WorkloadConcurrentWrite:
		out.WriteRatio = 1.0
	case WorkloadMixed:
		// as configured
	default:
		return Config{}, fmt.Errorf("%w: unknown workload %q", ErrConfig, name)
	}
	out.Normalize()
	if err := out.Validate(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (c Config) generatorConfig() workload.Config {
	return workload.Config{
		KeyPrefix:  c.KeyPrefix,
		KeySize:    c.KeySize,
		ValueSize:  c.ValueSize,
		WriteRatio: c.WriteRatio,
		Seed:       c.Seed,
	}
}
