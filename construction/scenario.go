package construction

import (
	"context"
	"strings"
	"time"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
	"github.com/cardano-community/rosetta-cardano-check/journal"
	"github.com/cardano-community/rosetta-cardano-check/rosetta"
)

// Wallet is the engine's view of the key holder: the two addresses, the
// stake credential for certificate metadata, and signing.
type Wallet interface {
	Address() string
	RewardAddress() string
	StakePublicKey() *types.PublicKey
	Signer
}

// Scenario declares one transaction shape to exercise end to end.
type Scenario struct {
	Name           string
	Strategy       Strategy
	InputCount     int
	OutputCount    int
	TransferAmount int64
	FeeEstimate    int64
	StakeOps       []string

	// Exclude lists coin identifiers the selector must not touch, for
	// running scenarios back to back before earlier change lands.
	Exclude map[string]bool
}

// ScenarioNames lists the canonical scenarios in their usual run order.
var ScenarioNames = []string{
	"basic",
	"consolidation",
	"fan-out",
	"complex",
	"stake-registration",
	"stake-delegation",
	"stake-deregistration",
	"stake-registration-delegation",
}

// ScenarioByName resolves a name to its canonical definition, with the
// config's fee estimate applied.
func ScenarioByName(name string, config *cardano.Config) (Scenario, error) {
	scenario := Scenario{
		Name:           name,
		Strategy:       StrategySingle,
		TransferAmount: 2 * cardano.LovelacePerAda,
		FeeEstimate:    config.FeeEstimate,
	}

	switch name {
	case "basic":
		scenario.OutputCount = 1
	case "consolidation":
		scenario.Strategy = StrategyConsolidate
	case "fan-out":
		scenario.Strategy = StrategyFanOut
		scenario.OutputCount = 3
	case "complex":
		scenario.Strategy = StrategyComplex
		scenario.OutputCount = 2
	case "stake-registration":
		scenario.StakeOps = []string{cardano.StakeKeyRegistrationOpType}
	case "stake-delegation":
		scenario.StakeOps = []string{cardano.StakeDelegationOpType}
	case "stake-deregistration":
		scenario.StakeOps = []string{cardano.StakeKeyDeregistrationOpType}
	case "stake-registration-delegation":
		scenario.StakeOps = []string{
			cardano.StakeKeyRegistrationOpType,
			cardano.StakeDelegationOpType,
		}
	default:
		return Scenario{}, errors.Errorf("unknown scenario %q", name)
	}

	if scenario.needsPool() && config.PoolKeyHash == "" {
		return Scenario{}, errors.Errorf("scenario %s requires --pool-hash", name)
	}

	return scenario, nil
}

func (s *Scenario) needsPool() bool {
	for _, opType := range s.StakeOps {
		if opType == cardano.StakeDelegationOpType {
			return true
		}
	}
	return false
}

// Outcome summarizes a confirmed attempt.
type Outcome struct {
	Scenario         string
	TransactionHash  string
	Fee              int64
	Block            *types.BlockIdentifier
	ConstructionTime time.Duration
	ConfirmationTime time.Duration
}

// Runner drives one scenario end to end: fetch coins, select, build, run the
// construction sequence, submit, await confirmation, validate what landed on
// chain, and record the attempt.
type Runner struct {
	config  *cardano.Config
	client  *rosetta.Client
	wallet  Wallet
	tracker *Tracker
	metrics *Metrics
	journal *journal.Journal
}

// NewRunner wires a runner. The journal may be nil for dry setups; the
// metrics must not be (use NewMetrics("") for a no-op).
func NewRunner(
	config *cardano.Config,
	client *rosetta.Client,
	wallet Wallet,
	tracker *Tracker,
	metrics *Metrics,
	attemptJournal *journal.Journal,
) *Runner {
	return &Runner{
		config:  config,
		client:  client,
		wallet:  wallet,
		tracker: tracker,
		metrics: metrics,
		journal: attemptJournal,
	}
}

func (r *Runner) Run(ctx context.Context, scenario Scenario) (*Outcome, error) {
	r.metrics.ScenarioStarted(scenario.Name)

	outcome, err := r.run(ctx, scenario)
	if err != nil {
		r.metrics.ScenarioFailed(scenario.Name, err)
		return nil, errors.Wrapf(err, "scenario %s", scenario.Name)
	}

	r.metrics.ScenarioConfirmed(scenario.Name, outcome.ConstructionTime, outcome.ConfirmationTime)
	return outcome, nil
}

func (r *Runner) run(ctx context.Context, scenario Scenario) (*Outcome, error) {
	glog.Infof("Running scenario %s against %s", scenario.Name, r.config.Network.Network)
	constructionStart := time.Now()

	utxos, sinceIndex, err := r.fetchUtxos(ctx, scenario.Exclude)
	if err != nil {
		return nil, err
	}
	r.logRewardAccount(ctx, scenario)

	plan, err := r.plan(scenario, utxos)
	if err != nil {
		return nil, err
	}

	coordinator := NewCoordinator(r.client, r.wallet, r.config.SkipParseCheck)
	result, err := coordinator.Construct(ctx, plan)
	if err != nil {
		return nil, err
	}

	transactionID, err := r.tracker.Submit(ctx, result.SignedTransaction)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(transactionID.Hash, result.TransactionHash) {
		return nil, errors.Errorf("submit returned hash %s but construction hashed %s",
			transactionID.Hash, result.TransactionHash)
	}
	constructionTime := time.Since(constructionStart)

	if err := r.recordSubmitted(scenario, plan, transactionID.Hash); err != nil {
		return nil, err
	}

	confirmationStart := time.Now()
	confirmation, err := r.tracker.AwaitConfirmation(ctx, transactionID.Hash, sinceIndex)
	if err != nil {
		return nil, err
	}
	confirmationTime := time.Since(confirmationStart)

	if err := validateConfirmed(plan, confirmation.Transaction); err != nil {
		return nil, errors.Wrapf(err, "transaction %s", transactionID.Hash)
	}

	if err := r.recordConfirmed(transactionID.Hash, confirmation.Block); err != nil {
		return nil, err
	}

	return &Outcome{
		Scenario:         scenario.Name,
		TransactionHash:  transactionID.Hash,
		Fee:              plan.Fee,
		Block:            confirmation.Block,
		ConstructionTime: constructionTime,
		ConfirmationTime: confirmationTime,
	}, nil
}

// fetchUtxos lists the wallet's spendable coins. The returned index is the
// tip the coin set was read at (-1 if the endpoint omitted it), which later
// bounds the confirmation scan.
func (r *Runner) fetchUtxos(ctx context.Context, exclude map[string]bool) ([]*cardano.Utxo, int64, error) {
	coins, tip, err := r.client.AccountCoins(ctx, r.wallet.Address(), r.config.IncludeMempool)
	if err != nil {
		return nil, -1, err
	}

	utxos := make([]*cardano.Utxo, 0, len(coins))
	for _, coin := range coins {
		utxo, err := cardano.CoinToUtxo(coin, r.wallet.Address())
		if err != nil {
			glog.V(1).Infof("Skipping coin: %v", err)
			continue
		}
		if exclude[utxo.CoinIdentifier()] {
			continue
		}
		utxos = append(utxos, utxo)
	}

	sinceIndex := int64(-1)
	if tip != nil {
		sinceIndex = tip.Index
		glog.V(1).Infof("Fetched %d spendable utxos at block %d", len(utxos), tip.Index)
	}
	if glog.V(2) {
		glog.Info("Spendable utxos:\n" + spew.Sdump(utxos))
	}

	return utxos, sinceIndex, nil
}

// logRewardAccount reports the endpoint's view of the reward account before
// a stake scenario. Informational only: a missing account is normal before
// the first registration.
func (r *Runner) logRewardAccount(ctx context.Context, scenario Scenario) {
	if len(scenario.StakeOps) == 0 || !bool(glog.V(1)) {
		return
	}

	balance, err := r.client.AccountBalance(ctx, r.wallet.RewardAddress())
	if err != nil {
		glog.V(1).Infof("Reward account %s not queryable: %v", r.wallet.RewardAddress(), err)
		return
	}
	for _, amount := range balance.Balances {
		glog.V(1).Infof("Reward account %s holds %s %s",
			r.wallet.RewardAddress(), amount.Value, amount.Currency.Symbol)
	}
}

// plan turns the scenario into selected inputs and a balanced operation
// list. The selection target covers outputs, fee and deposit up front so a
// successful selection cannot produce an unbalanced build.
func (r *Runner) plan(scenario Scenario, utxos []*cardano.Utxo) (*Plan, error) {
	fee := scenario.FeeEstimate
	if fee <= 0 {
		fee = r.config.FeeEstimate
	}

	deposit, refund := r.certificateValue(scenario)
	destinations, target := r.destinations(scenario, fee, deposit, refund)

	selection, err := Select(utxos, scenario.Strategy, target, scenario.InputCount)
	if err != nil {
		return nil, err
	}

	// Consolidation folds everything selected into a single output back to
	// the wallet, so the destination amount depends on the selection.
	if scenario.Strategy == StrategyConsolidate {
		destinations = []Destination{{Address: r.wallet.Address(), Amount: selection.Total - fee}}
	}

	return Build(BuildParams{
		Utxos:           selection.Utxos,
		Destinations:    destinations,
		ChangeAddress:   r.wallet.Address(),
		Fee:             fee,
		Params:          r.config.Params,
		StakeOps:        scenario.StakeOps,
		StakeCredential: r.stakeCredential(scenario),
		StakeAddress:    r.wallet.RewardAddress(),
		PoolKeyHash:     r.config.PoolKeyHash,
	})
}

func (r *Runner) certificateValue(scenario Scenario) (int64, int64) {
	deposit := int64(0)
	refund := int64(0)
	for _, opType := range scenario.StakeOps {
		switch opType {
		case cardano.StakeKeyRegistrationOpType:
			deposit += r.config.Params.StakeKeyDeposit
		case cardano.StakeKeyDeregistrationOpType:
			refund += r.config.Params.StakeKeyDeposit
		}
	}
	return deposit, refund
}

func (r *Runner) destinations(scenario Scenario, fee, deposit, refund int64) ([]Destination, int64) {
	destinations := make([]Destination, 0, scenario.OutputCount)
	for i := 0; i < scenario.OutputCount; i++ {
		destinations = append(destinations, Destination{
			Address: r.destinationAddress(),
			Amount:  scenario.TransferAmount,
		})
	}

	target := fee + deposit - refund
	for _, destination := range destinations {
		target += destination.Amount
	}

	// Certificate-only and consolidation shapes have no fixed outputs; the
	// selection still needs room for a change output above the min-utxo
	// floor.
	if len(destinations) == 0 {
		target += cardano.MinOutputLovelace
	}
	if target < 1 {
		target = 1
	}

	return destinations, target
}

func (r *Runner) destinationAddress() string {
	if r.config.Destination != "" {
		return r.config.Destination
	}
	return r.wallet.Address()
}

func (r *Runner) stakeCredential(scenario Scenario) *types.PublicKey {
	if len(scenario.StakeOps) == 0 {
		return nil
	}
	return r.wallet.StakePublicKey()
}

func (r *Runner) recordSubmitted(scenario Scenario, plan *Plan, hash string) error {
	if r.journal == nil {
		return nil
	}
	return r.journal.PutAttempt(&journal.Attempt{
		Hash:        hash,
		Scenario:    scenario.Name,
		Network:     r.config.Network.Network,
		Fee:         plan.Fee,
		Status:      journal.StatusSubmitted,
		SubmittedAt: time.Now(),
	})
}

func (r *Runner) recordConfirmed(hash string, block *types.BlockIdentifier) error {
	if r.journal == nil {
		return nil
	}
	return r.journal.MarkConfirmed(hash, block, time.Now())
}

// validateConfirmed checks the on-chain rendering of the transaction against
// the plan: the operation mix, the sign of every amount, and the fee implied
// by the value flow.
func validateConfirmed(plan *Plan, transaction *types.Transaction) error {
	if transaction == nil {
		return errors.New("confirmation carried no transaction")
	}

	want := countOperationTypes(plan.Operations)
	got := countOperationTypes(transaction.Operations)
	for opType, wantCount := range want {
		if got[opType] != wantCount {
			return errors.Errorf("confirmed transaction has %d %s operations, expected %d",
				got[opType], opType, wantCount)
		}
	}

	sum := int64(0)
	for _, operation := range transaction.Operations {
		if operation.Amount == nil {
			continue
		}

		value, err := types.AmountValue(operation.Amount)
		if err != nil {
			return errors.Wrapf(err, "operation %d has a bad amount", operation.OperationIdentifier.Index)
		}
		if !value.IsInt64() {
			return errors.Errorf("operation %d amount out of range", operation.OperationIdentifier.Index)
		}
		amount := value.Int64()

		switch operation.Type {
		case cardano.InputOpType:
			if amount >= 0 {
				return errors.Errorf("confirmed input %d has non-negative value %d",
					operation.OperationIdentifier.Index, amount)
			}
		case cardano.OutputOpType:
			if amount <= 0 {
				return errors.Errorf("confirmed output %d has non-positive value %d",
					operation.OperationIdentifier.Index, amount)
			}
		}
		sum += amount
	}

	impliedFee := -sum - plan.Deposit + plan.Refund
	if impliedFee != plan.Fee {
		return errors.Errorf("confirmed transaction implies fee %d, plan declared %d", impliedFee, plan.Fee)
	}

	return nil
}
