package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"kvbench/internal/stats"
)

// KindResult is the per-kind latency breakdown inside one workload
// result.
type KindResult struct {
	OperationsAttempted uint64  `json:"operations_attempted"`
	OperationsSucceeded uint64  `json:"operations_succeeded"`
	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	P50Ms               float64 `json:"p50_ms"`
	P90Ms               float64 `json:"p90_ms"`
	P99Ms               float64 `json:"p99_ms"`
}

// WorkloadResult is one named workload's entry in the report document.
type WorkloadResult struct {
	OperationsAttempted uint64             `json:"operations_attempted"`
	OperationsSucceeded uint64             `json:"operations_succeeded"`
	ThroughputOpsPerSec float64            `json:"throughput_ops_per_sec"`
	AvgLatencyMs        float64            `json:"avg_latency_ms"`
	P50Ms               float64            `json:"p50_ms"`
	P90Ms               float64            `json:"p90_ms"`
	P99Ms               float64            `json:"p99_ms"`
	MaxLatencyMs        float64            `json:"max_latency_ms"`
	Errors              map[string]uint64  `json:"errors"`
	PerEndpoint         map[string]uint64  `json:"per_endpoint"`
	Reads               KindResult         `json:"reads"`
	Writes              KindResult         `json:"writes"`
	DurationSeconds     float64            `json:"duration_seconds"`
	StartedAt           time.Time          `json:"started_at"`
	EndedAt             time.Time          `json:"ended_at"`
	Incomplete          bool               `json:"incomplete,omitempty"`
}

// ConfigEcho mirrors the run configuration into the report so results
// stay interpretable on their own.
type ConfigEcho struct {
	Clients         int      `json:"clients"`
	DurationSeconds float64  `json:"duration_seconds"`
	WriteRatio      float64  `json:"write_ratio"`
	KeySize         int      `json:"key_size"`
	ValueSize       int      `json:"value_size"`
	KeyPrefix       string   `json:"key_prefix"`
	WarmupSeconds   float64  `json:"warmup_seconds"`
	Endpoints       []string `json:"endpoints"`
	Seed            int64    `json:"seed,omitempty"`
}

// Document is the terminal JSON report consumed by the plotting tools.
type Document struct {
	RunID     string                    `json:"run_id"`
	Timestamp time.Time                 `json:"timestamp"`
	Config    ConfigEcho                `json:"config"`
	Results   map[string]WorkloadResult `json:"results"`
}

// FromSummary converts a finalized collector summary into a workload
// result entry.
func FromSummary(s *stats.Summary, started, ended time.Time) WorkloadResult {
	return WorkloadResult{
		OperationsAttempted: s.Attempted,
		OperationsSucceeded: s.Succeeded,
		ThroughputOpsPerSec: s.Throughput,
		AvgLatencyMs:        s.AvgMs,
		P50Ms:               s.P50Ms,
		P90Ms:               s.P90Ms,
		P99Ms:               s.P99Ms,
		MaxLatencyMs:        s.MaxMs,
		Errors:              s.Errors,
		PerEndpoint:         s.PerEndpoint,
		Reads:               kindResult(s.Reads),
		Writes:              kindResult(s.Writes),
		DurationSeconds:     s.Window.Seconds(),
		StartedAt:           started,
		EndedAt:             ended,
		Incomplete:          s.Incomplete,
	}
}

func kindResult(k stats.KindStats) KindResult {
	return KindResult{
		OperationsAttempted: k.Attempted,
		OperationsSucceeded: k.Succeeded,
		AvgLatencyMs:        k.AvgMs,
		P50Ms:               k.P50Ms,
		P90Ms:               k.P90Ms,
		P99Ms:               k.P99Ms,
	}
}

// Incomplete reports whether any workload entry was flagged incomplete.
func (d *Document) Incomplete() bool {
	for _, r := range d.Results {
		if r.Incomplete {
			return true
		}
	}
	return false
}

// Write serializes the document to path, pretty-printed for the humans
// who open these files more often than the plotting scripts do.
func (d *Document) Write(path string) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultPath mirrors the historical result file naming.
func DefaultPath(now time.Time) string {
	return fmt.Sprintf("benchmark_results_%s.json", now.Format("20060102_150405"))
}
