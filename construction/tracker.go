package construction

import (
	"context"
	"strings"
	"time"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/coinbase/rosetta-sdk-go/utils"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
	"github.com/cardano-community/rosetta-cardano-check/rosetta"
)

// Confirmation is the on-chain record of a submitted transaction.
type Confirmation struct {
	Block       *types.BlockIdentifier
	Transaction *types.Transaction
}

// Tracker owns the submit step and the confirmation poll. The clock and the
// sleep are injectable so the loop can be driven in tests without waiting.
type Tracker struct {
	client       *rosetta.Client
	pollInterval time.Duration
	timeout      time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewTracker(client *rosetta.Client, pollInterval, timeout time.Duration) *Tracker {
	return &Tracker{
		client:       client,
		pollInterval: pollInterval,
		timeout:      timeout,
		sleep:        utils.ContextSleep,
		now:          time.Now,
	}
}

// Submit broadcasts the signed transaction exactly once. A rejection or an
// ambiguous transport failure both end the attempt; nothing is retried,
// since a second submit of the same transaction could double-spend against
// a first one that actually went through.
func (t *Tracker) Submit(ctx context.Context, signedTransaction string) (*types.TransactionIdentifier, error) {
	return t.client.Submit(ctx, signedTransaction)
}

// AwaitConfirmation polls the chain until the transaction appears in a block
// or the timeout elapses. sinceIndex is the tip observed before the
// transaction was submitted; every block above it up to the current tip gets
// checked, so a transaction cannot slip through between two polls. Pass -1
// when no pre-submit tip is known and scanning starts at the first observed
// tip. Transient poll failures are logged and retried; only the deadline is
// fatal.
func (t *Tracker) AwaitConfirmation(ctx context.Context, transactionHash string, sinceIndex int64) (*Confirmation, error) {
	deadline := t.now().Add(t.timeout)
	lastScanned := sinceIndex

	for t.now().Before(deadline) {
		confirmation, scanned, err := t.scanOnce(ctx, transactionHash, lastScanned)
		if err != nil {
			glog.V(1).Infof("Confirmation poll failed, will retry: %v", err)
		} else if confirmation != nil {
			return confirmation, nil
		}
		if scanned > lastScanned {
			lastScanned = scanned
		}

		if err := t.sleep(ctx, t.pollInterval); err != nil {
			return nil, errors.Wrap(err, "confirmation poll interrupted")
		}
	}

	return nil, errors.Wrapf(cardano.ErrConfirmationTimeout,
		"transaction %s not seen within %s", transactionHash, t.timeout)
}

// scanOnce checks every block above lastScanned up to the current tip. It
// returns the confirmation if found, together with the highest index it got
// through, so the next poll resumes where this one stopped.
func (t *Tracker) scanOnce(ctx context.Context, transactionHash string, lastScanned int64) (*Confirmation, int64, error) {
	status, err := t.client.NetworkStatus(ctx)
	if err != nil {
		return nil, lastScanned, err
	}
	if status.CurrentBlockIdentifier == nil {
		return nil, lastScanned, errors.New("network status has no current block")
	}

	tip := status.CurrentBlockIdentifier.Index
	if lastScanned >= tip {
		// Tip has not moved.
		return nil, lastScanned, nil
	}

	from := tip
	if lastScanned >= 0 {
		from = lastScanned + 1
	}

	for index := from; index <= tip; index++ {
		confirmation, err := t.checkBlock(ctx, index, transactionHash)
		if err != nil {
			return nil, index - 1, err
		}
		if confirmation != nil {
			return confirmation, index, nil
		}
	}

	return nil, tip, nil
}

func (t *Tracker) checkBlock(ctx context.Context, index int64, transactionHash string) (*Confirmation, error) {
	response, err := t.client.Block(ctx, index)
	if err != nil {
		return nil, err
	}
	if response.Block == nil {
		return nil, nil
	}
	block := response.Block

	for _, transaction := range block.Transactions {
		if strings.EqualFold(transaction.TransactionIdentifier.Hash, transactionHash) {
			glog.Infof("Transaction %s confirmed in block %d (%s)",
				transactionHash, block.BlockIdentifier.Index, block.BlockIdentifier.Hash)
			return &Confirmation{Block: block.BlockIdentifier, Transaction: transaction}, nil
		}
	}

	// Some endpoints return only identifiers in the block body and expect a
	// follow-up /block/transaction call for the rest.
	for _, transactionID := range response.OtherTransactions {
		if !strings.EqualFold(transactionID.Hash, transactionHash) {
			continue
		}

		transaction, err := t.client.BlockTransaction(ctx, block.BlockIdentifier, transactionID)
		if err != nil {
			return nil, err
		}
		glog.Infof("Transaction %s confirmed in block %d (%s)",
			transactionHash, block.BlockIdentifier.Index, block.BlockIdentifier.Hash)
		return &Confirmation{Block: block.BlockIdentifier, Transaction: transaction}, nil
	}

	return nil, nil
}
