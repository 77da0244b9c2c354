package cardano

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/pkg/errors"
)

const txHashLen = 32

// Utxo is one unspent output as reported by /account/coins. The pair
// (TransactionHash, Index) identifies it; Amount is in lovelace.
type Utxo struct {
	TransactionHash string
	Index           uint32
	Address         string
	Amount          int64
}

// CoinIdentifier renders the utxo in the "<txhash>:<index>" form used by
// Rosetta coin identifiers.
func (u *Utxo) CoinIdentifier() string {
	return fmt.Sprintf("%s:%d", u.TransactionHash, u.Index)
}

// ParseCoinIdentifier splits a "<txhash>:<index>" coin identifier into its
// transaction hash and output index.
func ParseCoinIdentifier(coinIdentifier *types.CoinIdentifier) (string, uint32, error) {
	utxoSpent := strings.Split(coinIdentifier.Identifier, ":")
	if len(utxoSpent) != 2 {
		return "", 0, errors.Errorf("malformed coin identifier %q", coinIdentifier.Identifier)
	}

	hashBytes, err := hex.DecodeString(utxoSpent[0])
	if err != nil {
		return "", 0, errors.Wrapf(err, "unable to parse transaction hash %q", utxoSpent[0])
	}
	if len(hashBytes) != txHashLen {
		return "", 0, errors.Errorf("transaction hash %q is %d bytes, want %d", utxoSpent[0], len(hashBytes), txHashLen)
	}

	outpointIndex, err := strconv.ParseUint(utxoSpent[1], 10, 32)
	if err != nil {
		return "", 0, errors.Wrap(err, "unable to parse outpoint index")
	}

	return utxoSpent[0], uint32(outpointIndex), nil
}

// CoinToUtxo converts a Rosetta coin owned by address into a Utxo. Coins
// denominated in anything but ADA are rejected so native-asset bundles never
// enter selection.
func CoinToUtxo(coin *types.Coin, address string) (*Utxo, error) {
	hash, index, err := ParseCoinIdentifier(coin.CoinIdentifier)
	if err != nil {
		return nil, err
	}

	if coin.Amount == nil || coin.Amount.Currency == nil {
		return nil, errors.Errorf("coin %s has no amount", coin.CoinIdentifier.Identifier)
	}
	if coin.Amount.Currency.Symbol != Currency.Symbol || coin.Amount.Currency.Decimals != Currency.Decimals {
		return nil, errors.Errorf("coin %s is not denominated in %s", coin.CoinIdentifier.Identifier, Currency.Symbol)
	}

	amount, err := types.AmountValue(coin.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to parse amount for coin %s", coin.CoinIdentifier.Identifier)
	}
	if !amount.IsInt64() {
		return nil, errors.Errorf("coin %s amount %s out of range", coin.CoinIdentifier.Identifier, amount)
	}

	return &Utxo{
		TransactionHash: hash,
		Index:           index,
		Address:         address,
		Amount:          amount.Int64(),
	}, nil
}
