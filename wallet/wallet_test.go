package wallet

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/coinbase/rosetta-sdk-go/types"
	"github.com/stretchr/testify/require"

	"github.com/cardano-community/rosetta-cardano-check/cardano"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewWallet(t *testing.T) {
	require := require.New(t)

	w, err := NewWallet(testMnemonic, &cardano.PreprodParams)
	require.NoError(err)
	require.True(strings.HasPrefix(w.Address(), "addr_test1"))
	require.True(strings.HasPrefix(w.RewardAddress(), "stake_test1"))
	require.Len(w.PaymentPublicKey().Bytes, ed25519.PublicKeySize)
	require.Len(w.StakePublicKey().Bytes, ed25519.PublicKeySize)
	require.Equal(types.Edwards25519, w.StakePublicKey().CurveType)
	require.NotEqual(w.PaymentPublicKey().Bytes, w.StakePublicKey().Bytes)

	// Derivation is deterministic.
	again, err := NewWallet(testMnemonic, &cardano.PreprodParams)
	require.NoError(err)
	require.Equal(w.Address(), again.Address())
	require.Equal(w.RewardAddress(), again.RewardAddress())

	mainnet, err := NewWallet(testMnemonic, &cardano.MainnetParams)
	require.NoError(err)
	require.True(strings.HasPrefix(mainnet.Address(), "addr1"))
	require.NotEqual(w.Address(), mainnet.Address())
}

func TestNewWalletRejectsBadMnemonic(t *testing.T) {
	require := require.New(t)

	_, err := NewWallet("not a mnemonic", &cardano.PreprodParams)
	require.Error(err)
}

func TestSignPayloads(t *testing.T) {
	require := require.New(t)

	w, err := NewWallet(testMnemonic, &cardano.PreprodParams)
	require.NoError(err)

	payloads := []*types.SigningPayload{
		{
			AccountIdentifier: &types.AccountIdentifier{Address: w.Address()},
			Bytes:             []byte("payment payload"),
			SignatureType:     types.Ed25519,
		},
		{
			AccountIdentifier: &types.AccountIdentifier{Address: w.RewardAddress()},
			Bytes:             []byte("stake payload"),
			SignatureType:     types.Ed25519,
		},
	}

	signatures, err := w.SignPayloads(payloads)
	require.NoError(err)
	require.Len(signatures, 2)

	require.Equal(w.PaymentPublicKey().Bytes, signatures[0].PublicKey.Bytes)
	require.Equal(w.StakePublicKey().Bytes, signatures[1].PublicKey.Bytes)

	for i, signature := range signatures {
		require.Equal(types.Ed25519, signature.SignatureType)
		require.Equal(payloads[i], signature.SigningPayload)
		require.True(ed25519.Verify(
			ed25519.PublicKey(signature.PublicKey.Bytes),
			payloads[i].Bytes,
			signature.Bytes,
		))
	}
}

func TestSignPayloadsUnknownAddress(t *testing.T) {
	require := require.New(t)

	w, err := NewWallet(testMnemonic, &cardano.PreprodParams)
	require.NoError(err)

	_, err = w.SignPayloads([]*types.SigningPayload{
		{
			AccountIdentifier: &types.AccountIdentifier{Address: "addr_test1notmine"},
			Bytes:             []byte("payload"),
		},
	})
	require.Error(err)

	_, err = w.SignPayloads([]*types.SigningPayload{
		{Bytes: []byte("payload")},
	})
	require.Error(err)
}
