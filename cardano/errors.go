package cardano

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors comprises the failure taxonomy of the construction engine. Every
// attempt surfaces exactly one of these to the caller, usually wrapped with
// the amounts or hashes involved. Nothing here is retried internally.
var (
	// ErrNoUtxosAvailable means the wallet had no spendable coins at all.
	ErrNoUtxosAvailable = errors.New("no spendable utxos available")

	// ErrInsufficientFunds means coins exist but no permitted subset covers
	// the selection target.
	ErrInsufficientFunds = errors.New("insufficient funds for selection target")

	// ErrUnbalancedTransaction means outputs plus fee plus deposits exceed
	// the selected inputs.
	ErrUnbalancedTransaction = errors.New("operations do not balance")

	// ErrFeeTooLow means the endpoint's suggested fee exceeds the fee the
	// plan declared. The attempt stops instead of silently rebalancing.
	ErrFeeTooLow = errors.New("declared fee below suggested fee")

	ErrSigningFailed = errors.New("signing failed")

	// ErrSubmissionRejected is a definite rejection: the endpoint returned an
	// error body for the submit call. Transport failures during submit are
	// reported as a ProtocolError instead since the outcome is unknown.
	ErrSubmissionRejected = errors.New("transaction rejected on submit")

	// ErrConfirmationTimeout means the transaction was not seen in any block
	// before the confirmation deadline. It may still confirm later.
	ErrConfirmationTimeout = errors.New("transaction not confirmed before deadline")
)

// ProtocolError marks a failed call against the Rosetta endpoint. State names
// the step that failed (preprocess, metadata, payloads, parse, combine, hash,
// submit, account_coins, network_status, block, block_transaction) so a
// mid-sequence failure can be located from the error alone.
type ProtocolError struct {
	State string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rosetta %s call failed: %v", e.State, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// NewProtocolError wraps err as a ProtocolError for the given state.
func NewProtocolError(state string, err error) *ProtocolError {
	return &ProtocolError{State: state, Err: err}
}
