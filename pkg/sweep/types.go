// Package sweep drives the batched sweep-all and close-all workflows:
// fan-out quoting, one batched signing step, fan-out execution, and
// per-item reconciliation. Items succeed or fail independently.
package sweep

import (
	"github.com/gagliardetto/solana-go"

	"sweeper/pkg/sol"
	"sweeper/pkg/ultra"
)

// OutcomeStatus classifies what happened to one batch item.
type OutcomeStatus string

const (
	// StatusPending marks an item not yet executed.
	StatusPending OutcomeStatus = "pending"
	// StatusSucceeded marks a confirmed provider/node success with a signature.
	StatusSucceeded OutcomeStatus = "succeeded"
	// StatusFailed marks a definitive failure (quote refused, provider
	// Failure response, node rejection).
	StatusFailed OutcomeStatus = "failed"
	// StatusUnknown marks a transport failure after submission: the
	// order may or may not have landed. Reported distinctly and never
	// retried automatically.
	StatusUnknown OutcomeStatus = "unknown"
)

// Outcome is the terminal state of one item.
type Outcome struct {
	Status    OutcomeStatus
	Signature string
	Err       error
}

// Item binds one token to its quote, its signed transaction, and its
// eventual outcome. Index is immutable and is the sole linkage across
// the quote, sign, and execute stages; the item slice is never
// reordered or compacted.
type Item struct {
	Index        int
	Mint         string
	TokenAccount string
	RawAmount    string

	Order *ultra.Order
	Tx    *solana.Transaction

	Outcome Outcome
}

func (it *Item) fail(err error) {
	it.Outcome = Outcome{Status: StatusFailed, Err: err}
}

func (it *Item) pending() bool {
	return it.Outcome.Status == StatusPending
}

// Report is the aggregate result of one batch. A batch with failed
// items is not an error: the report carries per-item outcomes plus a
// representative user-facing reason.
type Report struct {
	Items []*Item

	Succeeded int
	Failed    int
	Unknown   int

	// Reason is a user-facing message: why nothing ran, or the first
	// representative failure.
	Reason string

	// Balances is the post-batch wallet state, re-read unconditionally.
	Balances map[string]sol.Balance
}

// NothingToDo reports whether the batch had no candidates.
func (r *Report) NothingToDo() bool {
	return len(r.Items) == 0
}
