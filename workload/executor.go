package workload

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ngaut/log"

	"github.com/pingcap-incubator/tinytxn/kv/txn"
	"github.com/pingcap-incubator/tinytxn/metrics"
)

const backoffRetryCap = 10

// ExecutorConfig drives one benchmark run.
type ExecutorConfig struct {
	NumThreads    int
	TxnsPerThread int
	Contention    ContentionConfig
	Templates     []Template

	// Base microseconds for the retry loop's exponential backoff.
	RetryBackoffBaseUs int
}

func (c *ExecutorConfig) Validate() error {
	if c.NumThreads <= 0 {
		return fmt.Errorf("executor needs at least one thread")
	}
	if len(c.Templates) == 0 {
		return fmt.Errorf("executor needs at least one template")
	}
	for _, tmpl := range c.Templates {
		if tmpl.NumInputKeys > c.Contention.TotalKeys {
			// The selector would loop forever trying to find distinct keys.
			return fmt.Errorf("template %s needs %d distinct keys but only %d exist",
				tmpl.Name, tmpl.NumInputKeys, c.Contention.TotalKeys)
		}
	}
	return nil
}

// Executor fans the workload out over worker goroutines. Every worker runs
// TxnsPerThread logical transactions; a logical transaction retries its
// template until it commits, so the run always finishes with exactly
// NumThreads * TxnsPerThread commits.
type Executor struct {
	mgr     txn.Manager
	metrics *metrics.Collector
	conf    ExecutorConfig

	elapsedS float64
}

func NewExecutor(mgr txn.Manager, collector *metrics.Collector, conf ExecutorConfig) *Executor {
	return &Executor{mgr: mgr, metrics: collector, conf: conf}
}

// Run blocks until every worker has drained its transaction count. Wall time
// is measured from before the first spawn to after the last join.
func (e *Executor) Run() {
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < e.conf.NumThreads; i++ {
		wg.Add(1)
		go func(threadID int) {
			defer wg.Done()
			e.worker(threadID)
		}(i)
	}
	wg.Wait()

	e.elapsedS = time.Since(start).Seconds()
	log.Infof("%s run finished: %d commits in %.2fs",
		e.mgr.ProtocolName(), e.metrics.TotalCommits(), e.elapsedS)
}

func (e *Executor) ElapsedSeconds() float64 {
	return e.elapsedS
}

func (e *Executor) worker(threadID int) {
	r := rand.New(rand.NewSource(int64(threadID) + time.Now().UnixNano()))
	selector := NewKeySelector(e.conf.Contention, r)

	for i := 0; i < e.conf.TxnsPerThread; i++ {
		tmpl := e.conf.Templates[r.Intn(len(e.conf.Templates))]
		keys := selector.SelectDistinctKeys(tmpl.NumInputKeys)

		wallStart := time.Now()
		retries := 0
		for {
			result, err := tmpl.Execute(e.mgr, keys)
			if err != nil {
				// Misuse of the manager contract by a template; not a
				// recoverable conflict.
				log.Fatalf("template %s failed: %v", tmpl.Name, err)
			}
			if result.OK {
				latencyUs := float64(time.Since(wallStart)) / float64(time.Microsecond)
				e.metrics.RecordCommit(tmpl.Name, latencyUs)
				e.metrics.RecordRetries(tmpl.Name, retries+result.Retries)
				break
			}

			e.metrics.RecordAbort(tmpl.Name)
			retries++
			backoffUs := e.conf.RetryBackoffBaseUs * (1 << uint(min(retries, backoffRetryCap)))
			sleepUs := backoffUs + r.Intn(backoffUs+1)
			time.Sleep(time.Duration(sleepUs) * time.Microsecond)
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
