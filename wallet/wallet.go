package wallet

import (
	"encoding/hex"

	"github.com/coinbase/rosetta-sdk-go/keys"
	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip39"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
)

// Wallet holds the probe's payment and stake keys and answers signing
// requests for payloads addressed to either of its two addresses.
type Wallet struct {
	params        *cardano.Params
	paymentPair   *keys.KeyPair
	stakePair     *keys.KeyPair
	paymentSigner keys.Signer
	stakeSigner   keys.Signer
	address       string
	rewardAddress string
}

// NewWallet derives the probe wallet from a BIP39 mnemonic. Derivation is
// deliberately simple: the first 32 bytes of the BIP39 seed become the
// payment ed25519 seed and the next 32 the stake seed. This is not the
// CIP-1852 hierarchy, so the wallet only controls funds sent to the exact
// addresses it reports.
func NewWallet(mnemonic string, params *cardano.Params) (*Wallet, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid bip39 mnemonic")
	}

	seed := bip39.NewSeed(mnemonic, "")

	paymentPair, err := keys.ImportPrivateKey(hex.EncodeToString(seed[:32]), types.Edwards25519)
	if err != nil {
		return nil, errors.Wrap(err, "unable to derive payment key")
	}

	stakePair, err := keys.ImportPrivateKey(hex.EncodeToString(seed[32:64]), types.Edwards25519)
	if err != nil {
		return nil, errors.Wrap(err, "unable to derive stake key")
	}

	paymentSigner, err := paymentPair.Signer()
	if err != nil {
		return nil, errors.Wrap(err, "unable to build payment signer")
	}

	stakeSigner, err := stakePair.Signer()
	if err != nil {
		return nil, errors.Wrap(err, "unable to build stake signer")
	}

	address, err := cardano.EncodeBaseAddress(paymentPair.PublicKey.Bytes, stakePair.PublicKey.Bytes, params)
	if err != nil {
		return nil, err
	}

	rewardAddress, err := cardano.EncodeRewardAddress(stakePair.PublicKey.Bytes, params)
	if err != nil {
		return nil, err
	}

	glog.V(1).Infof("Probe wallet address %s reward address %s", address, rewardAddress)

	return &Wallet{
		params:        params,
		paymentPair:   paymentPair,
		stakePair:     stakePair,
		paymentSigner: paymentSigner,
		stakeSigner:   stakeSigner,
		address:       address,
		rewardAddress: rewardAddress,
	}, nil
}

// Address returns the base address coins are fetched for and change returns to.
func (w *Wallet) Address() string {
	return w.address
}

// RewardAddress returns the stake address certificate payloads are attributed to.
func (w *Wallet) RewardAddress() string {
	return w.rewardAddress
}

func (w *Wallet) PaymentPublicKey() *types.PublicKey {
	return w.paymentPair.PublicKey
}

// StakePublicKey returns the credential used in stake certificate metadata.
func (w *Wallet) StakePublicKey() *types.PublicKey {
	return w.stakePair.PublicKey
}

// SignPayloads signs every payload with the key matching its account
// identifier, preserving order. A payload for an address the wallet does not
// control fails the whole batch.
func (w *Wallet) SignPayloads(payloads []*types.SigningPayload) ([]*types.Signature, error) {
	signatures := make([]*types.Signature, len(payloads))
	for i, payload := range payloads {
		signer, err := w.signerFor(payload)
		if err != nil {
			return nil, err
		}

		signature, err := signer.Sign(payload, types.Ed25519)
		if err != nil {
			return nil, errors.Wrapf(err, "unable to sign payload %d", i)
		}

		signatures[i] = signature
	}

	return signatures, nil
}

func (w *Wallet) signerFor(payload *types.SigningPayload) (keys.Signer, error) {
	if payload.AccountIdentifier == nil {
		return nil, errors.New("signing payload has no account identifier")
	}

	switch payload.AccountIdentifier.Address {
	case w.address:
		return w.paymentSigner, nil
	case w.rewardAddress:
		return w.stakeSigner, nil
	}

	return nil, errors.Errorf("no key for payload address %q", payload.AccountIdentifier.Address)
}
