package construction

import (
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
)

// Strategy names a utxo selection shape.
type Strategy string

const (
	// StrategySingle spends the smallest single utxo covering the target,
	// leaving larger coins intact.
	StrategySingle Strategy = "single"

	// StrategyConsolidate spends many utxos at once, largest first.
	StrategyConsolidate Strategy = "consolidate"

	// StrategyFanOut spends one utxo large enough to split across several
	// outputs.
	StrategyFanOut Strategy = "fan-out"

	// StrategyComplex accumulates utxos largest first until the target is
	// covered, always spending at least two.
	StrategyComplex Strategy = "complex"
)

// Selection is the subset of coins an attempt will spend.
type Selection struct {
	Utxos []*cardano.Utxo
	Total int64
}

// Select picks the utxos to spend. The target must already include the fee
// estimate and any certificate deposit; the returned total always covers it.
// inputCount caps consolidation (0 means spend everything available).
func Select(available []*cardano.Utxo, strategy Strategy, target int64, inputCount int) (*Selection, error) {
	candidates := spendable(available)
	if len(candidates) == 0 {
		return nil, errors.Wrapf(cardano.ErrNoUtxosAvailable, "selection with strategy %s", strategy)
	}

	switch strategy {
	case StrategySingle, StrategyFanOut:
		return selectSingle(candidates, target)
	case StrategyConsolidate:
		return selectConsolidate(candidates, target, inputCount)
	case StrategyComplex:
		return selectAccumulate(candidates, target)
	}

	return nil, errors.Errorf("unknown selection strategy %q", strategy)
}

func spendable(available []*cardano.Utxo) []*cardano.Utxo {
	candidates := make([]*cardano.Utxo, 0, len(available))
	for _, utxo := range available {
		if utxo.Amount > 0 {
			candidates = append(candidates, utxo)
		}
	}
	return candidates
}

// sortUtxos orders candidates by amount with the coin identifier as the tie
// break, so selection is deterministic for a given coin set.
func sortUtxos(utxos []*cardano.Utxo, descending bool) {
	sort.Slice(utxos, func(i, j int) bool {
		if utxos[i].Amount != utxos[j].Amount {
			if descending {
				return utxos[i].Amount > utxos[j].Amount
			}
			return utxos[i].Amount < utxos[j].Amount
		}
		return utxos[i].CoinIdentifier() < utxos[j].CoinIdentifier()
	})
}

func selectSingle(candidates []*cardano.Utxo, target int64) (*Selection, error) {
	sortUtxos(candidates, false)

	for _, utxo := range candidates {
		if utxo.Amount >= target {
			glog.V(1).Infof("Selected %s (%d lovelace) for target %d", utxo.CoinIdentifier(), utxo.Amount, target)
			return &Selection{Utxos: []*cardano.Utxo{utxo}, Total: utxo.Amount}, nil
		}
	}

	return nil, errors.Wrapf(cardano.ErrInsufficientFunds, "no single utxo covers %d lovelace", target)
}

func selectConsolidate(candidates []*cardano.Utxo, target int64, inputCount int) (*Selection, error) {
	sortUtxos(candidates, true)
	if inputCount >= 2 && inputCount < len(candidates) {
		candidates = candidates[:inputCount]
	}

	total := int64(0)
	for _, utxo := range candidates {
		total += utxo.Amount
	}
	if total < target {
		return nil, errors.Wrapf(cardano.ErrInsufficientFunds,
			"%d utxos total %d lovelace, need %d", len(candidates), total, target)
	}

	glog.V(1).Infof("Consolidating %d utxos totalling %d lovelace", len(candidates), total)
	return &Selection{Utxos: candidates, Total: total}, nil
}

func selectAccumulate(candidates []*cardano.Utxo, target int64) (*Selection, error) {
	sortUtxos(candidates, true)

	selected := make([]*cardano.Utxo, 0, 2)
	total := int64(0)
	for _, utxo := range candidates {
		selected = append(selected, utxo)
		total += utxo.Amount
		if total >= target && len(selected) >= 2 {
			return &Selection{Utxos: selected, Total: total}, nil
		}
	}

	if total < target {
		return nil, errors.Wrapf(cardano.ErrInsufficientFunds,
			"all %d utxos total %d lovelace, need %d", len(candidates), total, target)
	}

	return nil, errors.Wrapf(cardano.ErrInsufficientFunds,
		"strategy needs at least two utxos, have %d", len(candidates))
}
