package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"kvbench/internal/report"
)

func testDoc(id string, ts time.Time) *report.Document {
	return &report.Document{
		RunID:     id,
		Timestamp: ts,
		Config: report.ConfigEcho{
			Clients:   5,
			Endpoints: []string{"http://n1:2379"},
		},
		Results: map[string]report.WorkloadResult{
			"mixed": {
				OperationsAttempted: 200,
				OperationsSucceeded: 190,
				AvgLatencyMs:        3.0,
				P99Ms:               9.0,
			},
			"sequential_write": {
				OperationsAttempted: 100,
				OperationsSucceeded: 100,
				AvgLatencyMs:        1.0,
				P99Ms:               2.0,
			},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewHistoryItem(t *testing.T) {
	item := NewHistoryItem(testDoc("run-1", time.Now()))

	if item.Summary.Attempted != 300 || item.Summary.Succeeded != 290 {
		t.Errorf("summed counts = %+v", item.Summary)
	}
	if item.Summary.Failed != 10 {
		t.Errorf("failed = %d, want 10", item.Summary.Failed)
	}
	if item.Summary.P99LatencyMs != 9.0 {
		t.Errorf("p99 = %g, want worst across workloads (9.0)", item.Summary.P99LatencyMs)
	}
	if len(item.Workloads) != 2 {
		t.Errorf("workloads = %v", item.Workloads)
	}
}

func TestSaveAndGet(t *testing.T) {
	s := openTestStore(t)

	item := NewHistoryItem(testDoc("run-1", time.Now()))
	if err := s.Save(item); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Summary.Attempted != 300 {
		t.Errorf("loaded summary = %+v", got.Summary)
	}
	if got.Report == nil || got.Report.RunID != "run-1" {
		t.Error("full report not round-tripped")
	}

	if _, err := s.Get("missing"); err == nil {
		t.Error("Get(missing) did not fail")
	}
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Now()
	for i := range 3 {
		item := NewHistoryItem(testDoc(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute)))
		if err := s.Save(item); err != nil {
			t.Fatal(err)
		}
	}

	items := s.List()
	if len(items) != 3 {
		t.Fatalf("listed %d items, want 3", len(items))
	}
	if items[0].ID != "run-2" || items[2].ID != "run-0" {
		t.Errorf("order = [%s %s %s], want newest first", items[0].ID, items[1].ID, items[2].ID)
	}
}

func TestHistoryPruned(t *testing.T) {
	s := openTestStore(t)

	base := time.Now()
	for i := range maxHistory + 10 {
		item := NewHistoryItem(testDoc(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Second)))
		if err := s.Save(item); err != nil {
			t.Fatal(err)
		}
	}

	items := s.List()
	if len(items) != maxHistory {
		t.Fatalf("listed %d items, want capped at %d", len(items), maxHistory)
	}
	// The oldest runs are the ones pruned.
	if items[0].ID != fmt.Sprintf("run-%d", maxHistory+9) {
		t.Errorf("newest = %s", items[0].ID)
	}
}
