package storage

import (
	"sort"
	"time"

	"kvbench/internal/report"
)

// HistoryItem is one persisted run in the local history database.
type HistoryItem struct {
	ID        string           `json:"id"`
	Timestamp time.Time        `json:"timestamp"`
	Endpoints []string         `json:"endpoints"`
	Clients   int              `json:"clients"`
	Workloads []string         `json:"workloads"`
	Summary   RunSummary       `json:"summary"`
	Report    *report.Document `json:"report"`
}

// RunSummary is the headline row shown by the history listing, summed
// across the run's workloads.
type RunSummary struct {
	Attempted    uint64  `json:"operations_attempted"`
	Succeeded    uint64  `json:"operations_succeeded"`
	Failed       uint64  `json:"operations_failed"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
}

// NewHistoryItem condenses a report document into a history record.
func NewHistoryItem(doc *report.Document) HistoryItem {
	item := HistoryItem{
		ID:        doc.RunID,
		Timestamp: doc.Timestamp,
		Endpoints: doc.Config.Endpoints,
		Clients:   doc.Config.Clients,
		Report:    doc,
	}
	var worstP99 float64
	var latSum float64
	for name, r := range doc.Results {
		item.Workloads = append(item.Workloads, name)
		item.Summary.Attempted += r.OperationsAttempted
		item.Summary.Succeeded += r.OperationsSucceeded
		item.Summary.Failed += r.OperationsAttempted - r.OperationsSucceeded
		latSum += r.AvgLatencyMs
		if r.P99Ms > worstP99 {
			worstP99 = r.P99Ms
		}
	}
	sort.Strings(item.Workloads)
	if n := len(doc.Results); n > 0 {
		item.Summary.AvgLatencyMs = latSum / float64(n)
	}
	item.Summary.P99LatencyMs = worstP99
	return item
}
