package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/montanaflynn/stats"
	"go.uber.org/atomic"
)

// typeStat accumulates outcomes for one transaction type. Commit and abort
// counts are atomics; the latency vector has its own mutex.
type typeStat struct {
	commits atomic.Uint64
	aborts  atomic.Uint64
	retries atomic.Uint64

	latencyMu   sync.Mutex
	latenciesUs []float64
}

func (s *typeStat) abortPercentage() float64 {
	c := s.commits.Load()
	a := s.aborts.Load()
	if c+a == 0 {
		return 0
	}
	return 100 * float64(a) / float64(c+a)
}

// Collector aggregates per-type commit/abort counts and end-to-end commit
// latencies. All methods are safe for concurrent use by the worker threads.
type Collector struct {
	mu    sync.Mutex
	stats map[string]*typeStat
}

func NewCollector() *Collector {
	return &Collector{stats: make(map[string]*typeStat)}
}

func (c *Collector) getStat(typeName string) *typeStat {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.stats[typeName]
	if !ok {
		s = &typeStat{}
		c.stats[typeName] = s
	}
	return s
}

// RecordCommit counts one commit of the given type and records its
// end-to-end latency (including every retry and backoff sleep).
func (c *Collector) RecordCommit(typeName string, latencyUs float64) {
	s := c.getStat(typeName)
	s.commits.Inc()
	s.latencyMu.Lock()
	s.latenciesUs = append(s.latenciesUs, latencyUs)
	s.latencyMu.Unlock()
	txnCommitCounter.WithLabelValues(typeName).Inc()
}

// RecordAbort counts one aborted attempt of the given type.
func (c *Collector) RecordAbort(typeName string) {
	c.getStat(typeName).aborts.Inc()
	txnAbortCounter.WithLabelValues(typeName).Inc()
}

// RecordRetries adds the retries one committed transaction needed (lock
// acquisition retries under 2PL, re-begins under OCC).
func (c *Collector) RecordRetries(typeName string, n int) {
	if n <= 0 {
		return
	}
	c.getStat(typeName).retries.Add(uint64(n))
	txnRetryCounter.WithLabelValues(typeName).Add(float64(n))
}

func (c *Collector) TotalCommits() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total uint64
	for _, s := range c.stats {
		total += s.commits.Load()
	}
	return total
}

func (c *Collector) TotalAborts() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total uint64
	for _, s := range c.stats {
		total += s.aborts.Load()
	}
	return total
}

func (c *Collector) Commits(typeName string) uint64 {
	return c.getStat(typeName).commits.Load()
}

func (c *Collector) Aborts(typeName string) uint64 {
	return c.getStat(typeName).aborts.Load()
}

func (c *Collector) AbortPercentage(typeName string) float64 {
	return c.getStat(typeName).abortPercentage()
}

// Throughput is committed transactions per second over the run.
func (c *Collector) Throughput(elapsedS float64) float64 {
	if elapsedS <= 0 {
		return 0
	}
	return float64(c.TotalCommits()) / elapsedS
}

func (c *Collector) latencySnapshot(typeName string) []float64 {
	s := c.getStat(typeName)
	s.latencyMu.Lock()
	defer s.latencyMu.Unlock()
	return append([]float64(nil), s.latenciesUs...)
}

// Percentile returns the p-th latency percentile for the type, interpolated
// over the sorted latency vector. Returns 0 with no samples.
func (c *Collector) Percentile(typeName string, p float64) float64 {
	lat := c.latencySnapshot(typeName)
	if len(lat) == 0 {
		return 0
	}
	v, err := stats.Percentile(lat, p)
	if err != nil {
		// A single sample trips the library's bounds check; the sample is
		// every percentile of itself.
		return lat[0]
	}
	return v
}

func (c *Collector) AvgLatencyUs(typeName string) float64 {
	lat := c.latencySnapshot(typeName)
	if len(lat) == 0 {
		return 0
	}
	v, _ := stats.Mean(lat)
	return v
}

func (c *Collector) typeNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.stats))
	for name := range c.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report formats the end-of-run summary. A run with no finished transactions
// yields only the totals header.
func (c *Collector) Report(elapsedS float64) string {
	totalCommits := c.TotalCommits()
	totalAborts := c.TotalAborts()

	out := "\n========== Performance Report ==========\n"
	out += fmt.Sprintf("Elapsed time:    %.2f s\n", elapsedS)
	out += fmt.Sprintf("Total commits:   %d\n", totalCommits)
	out += fmt.Sprintf("Total aborts:    %d\n", totalAborts)
	out += fmt.Sprintf("Throughput:      %.2f txn/s\n", c.Throughput(elapsedS))
	if totalCommits+totalAborts > 0 {
		overall := 100 * float64(totalAborts) / float64(totalCommits+totalAborts)
		out += fmt.Sprintf("Overall abort %%: %.2f%%\n", overall)
	}

	for _, name := range c.typeNames() {
		s := c.getStat(name)
		out += fmt.Sprintf("\n  [%s]\n", name)
		out += fmt.Sprintf("    Commits:       %d\n", s.commits.Load())
		out += fmt.Sprintf("    Aborts:        %d\n", s.aborts.Load())
		out += fmt.Sprintf("    Retries:       %d\n", s.retries.Load())
		out += fmt.Sprintf("    Abort %%:       %.2f%%\n", s.abortPercentage())
		out += fmt.Sprintf("    Avg latency:   %.2f us\n", c.AvgLatencyUs(name))
		out += fmt.Sprintf("    P50 latency:   %.2f us\n", c.Percentile(name, 50))
		out += fmt.Sprintf("    P90 latency:   %.2f us\n", c.Percentile(name, 90))
		out += fmt.Sprintf("    P99 latency:   %.2f us\n", c.Percentile(name, 99))
	}
	out += "========================================\n"
	return out
}
