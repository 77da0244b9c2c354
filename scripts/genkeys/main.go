package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/tyler-smith/go-bip39"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
	"github.com/cardano-community/rosetta-cardano-check/wallet"
)

// Prints the addresses the engine will derive from a mnemonic, so a wallet
// can be funded before the first run. With no arguments a fresh 24-word
// mnemonic is generated.
func main() {
	var mnemonic string

	if len(os.Args) > 1 {
		mnemonic = strings.Join(os.Args[1:], " ")
	} else {
		entropy, err := bip39.NewEntropy(256)
		if err != nil {
			panic(err)
		}
		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			panic(err)
		}
	}

	fmt.Printf("Mnemonic: %s\n\n", mnemonic)

	// Preview shares the testnet encoding, so preprod addresses serve both.
	for _, params := range []*cardano.Params{
		&cardano.MainnetParams,
		&cardano.PreprodParams,
	} {
		w, err := wallet.NewWallet(mnemonic, params)
		if err != nil {
			panic(err)
		}

		fmt.Printf("%s\n", params.Network)
		fmt.Printf("  address:        %s\n", w.Address())
		fmt.Printf("  reward address: %s\n\n", w.RewardAddress())
	}
}
