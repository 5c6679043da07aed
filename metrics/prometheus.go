package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	txnCommitCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinytxn",
			Subsystem: "workload",
			Name:      "commit_total",
			Help:      "Counter of committed transactions.",
		}, []string{"type"})

	txnAbortCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinytxn",
			Subsystem: "workload",
			Name:      "abort_total",
			Help:      "Counter of aborted transactions.",
		}, []string{"type"})

	txnRetryCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinytxn",
			Subsystem: "workload",
			Name:      "retry_total",
			Help:      "Counter of transaction retries.",
		}, []string{"type"})
)

func init() {
	prometheus.MustRegister(txnCommitCounter)
	prometheus.MustRegister(txnAbortCounter)
	prometheus.MustRegister(txnRetryCounter)
}
