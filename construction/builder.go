package construction

import (
	"encoding/hex"
	"strconv"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/pkg/errors"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
)

// Destination is one requested output.
type Destination struct {
	Address string
	Amount  int64
}

// BuildParams carries everything Build needs to lay out the operations of
// one transaction.
type BuildParams struct {
	Utxos         []*cardano.Utxo
	Destinations  []Destination
	ChangeAddress string
	Fee           int64
	Params        *cardano.Params

	// Certificate operations, applied after the value transfer. The stake
	// credential and reward address are required whenever StakeOps is
	// non-empty; the pool key hash only for delegations.
	StakeOps        []string
	StakeCredential *types.PublicKey
	StakeAddress    string
	PoolKeyHash     string
}

// Plan is a fully balanced operation list ready for the construction
// sequence, together with the arithmetic that produced it. The invariant is
// TotalInput == TotalOutput + Fee + Deposit - Refund.
type Plan struct {
	Operations  []*types.Operation
	TotalInput  int64
	TotalOutput int64
	Change      int64
	Fee         int64
	Deposit     int64
	Refund      int64
}

// Build lays out input, output and certificate operations for one
// transaction and balances them with a change output back to ChangeAddress.
// Indices are dense and inputs always precede outputs. Build never adjusts
// the fee; if the inputs cannot cover everything it fails with
// ErrUnbalancedTransaction and the caller decides whether to reselect.
func Build(p BuildParams) (*Plan, error) {
	if len(p.Utxos) == 0 {
		return nil, errors.Wrap(cardano.ErrNoUtxosAvailable, "build with no inputs")
	}
	if p.Fee < 0 {
		return nil, errors.Errorf("negative fee %d", p.Fee)
	}
	if p.ChangeAddress == "" {
		return nil, errors.New("change address is required")
	}
	if p.Params == nil {
		return nil, errors.New("network parameters are required")
	}

	deposit, refund, err := certificateValue(p)
	if err != nil {
		return nil, err
	}

	operations := make([]*types.Operation, 0, len(p.Utxos)+len(p.Destinations)+len(p.StakeOps)+1)

	totalInput := int64(0)
	for _, utxo := range p.Utxos {
		operations = append(operations, inputOperation(int64(len(operations)), utxo))
		totalInput += utxo.Amount
	}

	totalOutput := int64(0)
	for _, destination := range p.Destinations {
		if destination.Amount <= 0 {
			return nil, errors.Errorf("destination %s amount %d must be positive",
				destination.Address, destination.Amount)
		}
		operations = append(operations, outputOperation(int64(len(operations)), destination.Address, destination.Amount))
		totalOutput += destination.Amount
	}

	change := totalInput - totalOutput - p.Fee - deposit + refund
	if change < 0 {
		return nil, errors.Wrapf(cardano.ErrUnbalancedTransaction,
			"inputs %d cannot cover outputs %d + fee %d + deposit %d - refund %d",
			totalInput, totalOutput, p.Fee, deposit, refund)
	}
	if change > 0 {
		operations = append(operations, outputOperation(int64(len(operations)), p.ChangeAddress, change))
		totalOutput += change
	}

	registrationIndex := int64(-1)
	for _, opType := range p.StakeOps {
		operation, err := certificateOperation(int64(len(operations)), opType, p)
		if err != nil {
			return nil, err
		}

		// A delegation built alongside its registration references it so the
		// endpoint serializes the certificates in a valid order.
		switch opType {
		case cardano.StakeKeyRegistrationOpType:
			registrationIndex = operation.OperationIdentifier.Index
		case cardano.StakeDelegationOpType:
			if registrationIndex >= 0 {
				operation.RelatedOperations = []*types.OperationIdentifier{{Index: registrationIndex}}
			}
		}

		operations = append(operations, operation)
	}

	return &Plan{
		Operations:  operations,
		TotalInput:  totalInput,
		TotalOutput: totalOutput,
		Change:      change,
		Fee:         p.Fee,
		Deposit:     deposit,
		Refund:      refund,
	}, nil
}

func certificateValue(p BuildParams) (int64, int64, error) {
	deposit := int64(0)
	refund := int64(0)

	for _, opType := range p.StakeOps {
		switch opType {
		case cardano.StakeKeyRegistrationOpType:
			deposit += p.Params.StakeKeyDeposit
		case cardano.StakeKeyDeregistrationOpType:
			refund += p.Params.StakeKeyDeposit
		case cardano.StakeDelegationOpType:
			if p.PoolKeyHash == "" {
				return 0, 0, errors.New("stake delegation requires a pool key hash")
			}
		default:
			return 0, 0, errors.Errorf("unknown stake operation type %q", opType)
		}
	}

	if len(p.StakeOps) > 0 && (p.StakeCredential == nil || p.StakeAddress == "") {
		return 0, 0, errors.New("stake operations require the stake credential and reward address")
	}

	return deposit, refund, nil
}

func inputOperation(index int64, utxo *cardano.Utxo) *types.Operation {
	return &types.Operation{
		OperationIdentifier: &types.OperationIdentifier{Index: index},
		Type:                cardano.InputOpType,
		Account:             &types.AccountIdentifier{Address: utxo.Address},
		Amount: &types.Amount{
			Value:    strconv.FormatInt(-utxo.Amount, 10),
			Currency: &cardano.Currency,
		},
		CoinChange: &types.CoinChange{
			CoinIdentifier: &types.CoinIdentifier{Identifier: utxo.CoinIdentifier()},
			CoinAction:     types.CoinSpent,
		},
	}
}

func outputOperation(index int64, address string, amount int64) *types.Operation {
	return &types.Operation{
		OperationIdentifier: &types.OperationIdentifier{Index: index},
		Type:                cardano.OutputOpType,
		Account:             &types.AccountIdentifier{Address: address},
		Amount: &types.Amount{
			Value:    strconv.FormatInt(amount, 10),
			Currency: &cardano.Currency,
		},
	}
}

type stakingCredential struct {
	HexBytes  string `json:"hex_bytes"`
	CurveType string `json:"curve_type"`
}

type certificateMetadata struct {
	StakingCredential *stakingCredential `json:"staking_credential"`
	PoolKeyHash       string             `json:"pool_key_hash,omitempty"`
}

// certificateOperation renders a stake certificate the way cardano-rosetta
// expects it: no amount, the reward account as the operation account, and
// the staking credential in metadata.
func certificateOperation(index int64, opType string, p BuildParams) (*types.Operation, error) {
	metadata := &certificateMetadata{
		StakingCredential: &stakingCredential{
			HexBytes:  hex.EncodeToString(p.StakeCredential.Bytes),
			CurveType: string(p.StakeCredential.CurveType),
		},
	}
	if opType == cardano.StakeDelegationOpType {
		metadata.PoolKeyHash = p.PoolKeyHash
	}

	metadataMap, err := types.MarshalMap(metadata)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to marshal %s metadata", opType)
	}

	return &types.Operation{
		OperationIdentifier: &types.OperationIdentifier{Index: index},
		Type:                opType,
		Account:             &types.AccountIdentifier{Address: p.StakeAddress},
		Metadata:            metadataMap,
	}, nil
}
