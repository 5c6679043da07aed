package workload

import (
	"strconv"

	"github.com/pingcap-incubator/tinytxn/kv/txn"
)

// Template is one transaction shape the executor can run. Execute owns the
// whole begin-to-commit span, including Begin on every retry; under 2PL the
// keys it receives are the declared lock set, under OCC they only drive which
// keys the body touches.
type Template struct {
	Name string
	// NumInputKeys is how many distinct keys the selector must provide.
	NumInputKeys int
	Execute      func(mgr txn.Manager, keys []string) (txn.CommitResult, error)
}

// Values are string-encoded decimal integers; a missing key counts as zero.
func parseBalance(val string, ok bool) int {
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return n
}

const transferAmount = 10

// NewTransferTemplate moves a fixed amount between two accounts. Zero-sum:
// any schedule of commits preserves the total balance.
func NewTransferTemplate() Template {
	return Template{
		Name:         "transfer",
		NumInputKeys: 2,
		Execute: func(mgr txn.Manager, keys []string) (txn.CommitResult, error) {
			t := mgr.Begin("transfer", keys)

			valA, okA, err := mgr.Read(t, keys[0])
			if err != nil {
				return txn.CommitResult{}, err
			}
			valB, okB, err := mgr.Read(t, keys[1])
			if err != nil {
				return txn.CommitResult{}, err
			}

			balanceA := parseBalance(valA, okA) - transferAmount
			balanceB := parseBalance(valB, okB) + transferAmount

			if err := mgr.Write(t, keys[0], strconv.Itoa(balanceA)); err != nil {
				return txn.CommitResult{}, err
			}
			if err := mgr.Write(t, keys[1], strconv.Itoa(balanceB)); err != nil {
				return txn.CommitResult{}, err
			}
			return mgr.Commit(t)
		},
	}
}

// NewBalanceCheckTemplate reads a single account. Read-only, but still goes
// through commit so OCC validates the read.
func NewBalanceCheckTemplate() Template {
	return Template{
		Name:         "balance_check",
		NumInputKeys: 1,
		Execute: func(mgr txn.Manager, keys []string) (txn.CommitResult, error) {
			t := mgr.Begin("balance_check", keys)
			if _, _, err := mgr.Read(t, keys[0]); err != nil {
				return txn.CommitResult{}, err
			}
			return mgr.Commit(t)
		},
	}
}

// NewWriteHeavyTemplate increments n accounts; each commit adds exactly n to
// the aggregate balance.
func NewWriteHeavyTemplate(n int) Template {
	return Template{
		Name:         "write_heavy",
		NumInputKeys: n,
		Execute: func(mgr txn.Manager, keys []string) (txn.CommitResult, error) {
			t := mgr.Begin("write_heavy", keys)
			for _, key := range keys {
				val, ok, err := mgr.Read(t, key)
				if err != nil {
					return txn.CommitResult{}, err
				}
				current := parseBalance(val, ok)
				if err := mgr.Write(t, key, strconv.Itoa(current+1)); err != nil {
					return txn.CommitResult{}, err
				}
			}
			return mgr.Commit(t)
		},
	}
}
