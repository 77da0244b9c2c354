package cardano

import (
	"time"

	"github.com/coinbase/rosetta-sdk-go/types"
)

type Network string

const (
	InputOpType                  = "input"
	OutputOpType                 = "output"
	StakeKeyRegistrationOpType   = "stakeKeyRegistration"
	StakeKeyDeregistrationOpType = "stakeKeyDeregistration"
	StakeDelegationOpType        = "stakeDelegation"

	Mainnet Network = "MAINNET"
	Preprod Network = "PREPROD"
	Preview Network = "PREVIEW"

	Blockchain = "cardano"

	LovelacePerAda = int64(1_000_000)

	// DefaultFeeEstimate is the flat amount reserved for the fee when a
	// scenario does not override it. The suggested fee returned by the
	// metadata round stays the binding floor for every attempt.
	DefaultFeeEstimate = int64(200_000)

	// MinOutputLovelace is the practical floor for a single output. Outputs
	// below the min-utxo rule are rejected by the chain, so selection targets
	// always leave at least this much for change.
	MinOutputLovelace = int64(1_000_000)

	DefaultRequestTimeout = 30 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultConfirmTimeout = 10 * time.Minute
)

var (
	Currency = types.Currency{
		Symbol:   "ADA",
		Decimals: 6,
	}

	OperationTypes = []string{
		InputOpType,
		OutputOpType,
		StakeKeyRegistrationOpType,
		StakeKeyDeregistrationOpType,
		StakeDelegationOpType,
	}

	SuccessStatus = "success"
)

// Params bundles the per-network constants the engine needs: the CIP-19
// address encoding pieces and the stake key deposit locked by a
// stakeKeyRegistration certificate (refunded on deregistration).
type Params struct {
	Network         Network
	AddressHRP      string
	RewardHRP       string
	NetworkTag      byte
	StakeKeyDeposit int64
}

var (
	MainnetParams = Params{
		Network:         Mainnet,
		AddressHRP:      "addr",
		RewardHRP:       "stake",
		NetworkTag:      0x01,
		StakeKeyDeposit: 2 * LovelacePerAda,
	}

	PreprodParams = Params{
		Network:         Preprod,
		AddressHRP:      "addr_test",
		RewardHRP:       "stake_test",
		NetworkTag:      0x00,
		StakeKeyDeposit: 2 * LovelacePerAda,
	}

	PreviewParams = Params{
		Network:         Preview,
		AddressHRP:      "addr_test",
		RewardHRP:       "stake_test",
		NetworkTag:      0x00,
		StakeKeyDeposit: 2 * LovelacePerAda,
	}
)
