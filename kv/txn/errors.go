package txn

import (
	"fmt"
)

// ErrTxnFinished is returned when an operation touches a transaction whose
// status is no longer ACTIVE. The transaction object must be discarded and a
// new one begun.
type ErrTxnFinished struct {
	TxnID  uint64
	Status Status
}

func (e ErrTxnFinished) Error() string {
	return fmt.Sprintf("txn %d is %s, no further operations permitted", e.TxnID, e.Status)
}
