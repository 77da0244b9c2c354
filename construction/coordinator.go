package construction

import (
	"bytes"
	"context"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
	"github.com/cardano-community/rosetta-cardano-check/rosetta"
)

// Signer turns signing payloads into signatures. Keys never cross this
// boundary; the coordinator only sees payloads going in and signatures
// coming out.
type Signer interface {
	SignPayloads(payloads []*types.SigningPayload) ([]*types.Signature, error)
}

// Result carries the artifacts of one completed construction sequence.
type Result struct {
	UnsignedTransaction string
	SignedTransaction   string
	TransactionHash     string
	SuggestedFee        int64
	Metadata            map[string]interface{}
	Payloads            []*types.SigningPayload
}

// Coordinator drives the construction sequence for one plan: preprocess,
// metadata, payloads, sign, combine, hash. It never retries and never
// resumes mid-sequence; any failure aborts the whole attempt.
type Coordinator struct {
	client    *rosetta.Client
	signer    Signer
	skipParse bool
}

func NewCoordinator(client *rosetta.Client, signer Signer, skipParse bool) *Coordinator {
	return &Coordinator{
		client:    client,
		signer:    signer,
		skipParse: skipParse,
	}
}

// Construct runs the plan through the endpoint and the signer and returns
// the signed transaction with its hash. The plan's declared fee is a hard
// floor: if the endpoint suggests more, the attempt fails with ErrFeeTooLow
// rather than silently rebalancing a transaction that was already laid out.
func (c *Coordinator) Construct(ctx context.Context, plan *Plan) (*Result, error) {
	glog.V(1).Infof("Preprocessing %d operations", len(plan.Operations))
	options, err := c.client.Preprocess(ctx, plan.Operations)
	if err != nil {
		return nil, err
	}

	metadataResponse, err := c.client.Metadata(ctx, options)
	if err != nil {
		return nil, err
	}

	suggested, err := parseSuggestedFee(metadataResponse.SuggestedFee)
	if err != nil {
		return nil, err
	}
	if suggested > plan.Fee {
		return nil, errors.Wrapf(cardano.ErrFeeTooLow,
			"declared %d lovelace, endpoint suggests %d", plan.Fee, suggested)
	}
	glog.V(1).Infof("Declared fee %d lovelace covers suggested %d", plan.Fee, suggested)

	payloadsResponse, err := c.client.Payloads(ctx, plan.Operations, metadataResponse.Metadata)
	if err != nil {
		return nil, err
	}
	if len(payloadsResponse.Payloads) == 0 {
		return nil, cardano.NewProtocolError("payloads", errors.New("no signing payloads returned"))
	}

	if err := c.verifyParse(ctx, false, payloadsResponse.UnsignedTransaction, plan); err != nil {
		return nil, err
	}

	signatures, err := c.signer.SignPayloads(payloadsResponse.Payloads)
	if err != nil {
		return nil, errors.Wrapf(cardano.ErrSigningFailed, "%v", err)
	}
	if len(signatures) != len(payloadsResponse.Payloads) {
		return nil, errors.Wrapf(cardano.ErrSigningFailed,
			"%d signatures for %d payloads", len(signatures), len(payloadsResponse.Payloads))
	}
	// Combine pairs signatures with payloads positionally, so a signer that
	// reordered the batch would witness the wrong inputs.
	for i, signature := range signatures {
		if signature.SigningPayload == nil ||
			!bytes.Equal(signature.SigningPayload.Bytes, payloadsResponse.Payloads[i].Bytes) {
			return nil, errors.Wrapf(cardano.ErrSigningFailed,
				"signature %d was not produced for payload %d", i, i)
		}
	}

	signedTransaction, err := c.client.Combine(ctx, payloadsResponse.UnsignedTransaction, signatures)
	if err != nil {
		return nil, err
	}

	if err := c.verifyParse(ctx, true, signedTransaction, plan); err != nil {
		return nil, err
	}

	transactionID, err := c.client.Hash(ctx, signedTransaction)
	if err != nil {
		return nil, err
	}

	return &Result{
		UnsignedTransaction: payloadsResponse.UnsignedTransaction,
		SignedTransaction:   signedTransaction,
		TransactionHash:     transactionID.Hash,
		SuggestedFee:        suggested,
		Metadata:            metadataResponse.Metadata,
		Payloads:            payloadsResponse.Payloads,
	}, nil
}

// parseSuggestedFee extracts the ADA suggested fee from the metadata
// response. No suggestion means no floor applies.
func parseSuggestedFee(amounts []*types.Amount) (int64, error) {
	for _, amount := range amounts {
		if amount.Currency == nil || amount.Currency.Symbol != cardano.Currency.Symbol {
			continue
		}

		value, err := types.AmountValue(amount)
		if err != nil {
			return 0, cardano.NewProtocolError("metadata", errors.Wrap(err, "unable to parse suggested fee"))
		}
		if !value.IsInt64() {
			return 0, cardano.NewProtocolError("metadata", errors.Errorf("suggested fee %s out of range", value))
		}
		return value.Int64(), nil
	}

	return 0, nil
}

// verifyParse asks the endpoint to parse the transaction back and checks the
// operation mix still matches the plan, before anything is signed and again
// before anything is submitted. Disabled with skipParse for endpoints whose
// parse support is unreliable.
func (c *Coordinator) verifyParse(ctx context.Context, signed bool, transaction string, plan *Plan) error {
	if c.skipParse {
		return nil
	}

	parseResponse, err := c.client.Parse(ctx, signed, transaction)
	if err != nil {
		return err
	}

	want := countOperationTypes(plan.Operations)
	got := countOperationTypes(parseResponse.Operations)
	for opType, wantCount := range want {
		if got[opType] != wantCount {
			return cardano.NewProtocolError("parse", errors.Errorf(
				"parsed transaction has %d %s operations, plan has %d", got[opType], opType, wantCount))
		}
	}
	for opType := range got {
		if _, ok := want[opType]; !ok {
			return cardano.NewProtocolError("parse",
				errors.Errorf("parsed transaction has unexpected %s operations", opType))
		}
	}

	if signed && len(parseResponse.AccountIdentifierSigners) == 0 {
		return cardano.NewProtocolError("parse", errors.New("signed transaction reports no signers"))
	}

	return nil
}

func countOperationTypes(operations []*types.Operation) map[string]int {
	counts := make(map[string]int, 4)
	for _, operation := range operations {
		counts[operation.Type]++
	}
	return counts
}
