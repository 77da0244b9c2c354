package cardano

import (
	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

const keyHashLen = 28

// Address headers per CIP-19. The low nibble carries the network tag, the
// high nibble the address type: 0 for a key/key base address, 14 for a key
// reward address.
const (
	baseAddressHeader   = byte(0x00)
	rewardAddressHeader = byte(0xE0)
)

// KeyHash returns the blake2b-224 digest of a public key, the credential
// form addresses are built from.
func KeyHash(publicKey []byte) []byte {
	h, _ := blake2b.New(keyHashLen, nil)
	h.Write(publicKey)
	return h.Sum(nil)
}

// EncodeBaseAddress builds the bech32 base address that pays to the payment
// key and carries the stake key's credential for delegation.
func EncodeBaseAddress(paymentPublicKey []byte, stakePublicKey []byte, params *Params) (string, error) {
	data := make([]byte, 0, 1+2*keyHashLen)
	data = append(data, baseAddressHeader|params.NetworkTag)
	data = append(data, KeyHash(paymentPublicKey)...)
	data = append(data, KeyHash(stakePublicKey)...)
	return encodeAddress(params.AddressHRP, data)
}

// EncodeRewardAddress builds the bech32 reward (stake) address for the stake
// key. Stake certificate operations are attributed to this address.
func EncodeRewardAddress(stakePublicKey []byte, params *Params) (string, error) {
	data := make([]byte, 0, 1+keyHashLen)
	data = append(data, rewardAddressHeader|params.NetworkTag)
	data = append(data, KeyHash(stakePublicKey)...)
	return encodeAddress(params.RewardHRP, data)
}

func encodeAddress(hrp string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "unable to regroup address bytes")
	}

	encoded, err := bech32.Encode(hrp, converted)
	if err != nil {
		return "", errors.Wrapf(err, "unable to encode %s address", hrp)
	}

	return encoded, nil
}

// DecodeAddress is the inverse of the encoders. Cardano addresses exceed the
// 90 character bech32 limit, so decoding goes through DecodeNoLimit.
func DecodeAddress(address string) (string, []byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(address)
	if err != nil {
		return "", nil, errors.Wrapf(err, "unable to decode address %q", address)
	}

	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, errors.Wrap(err, "unable to regroup address bytes")
	}

	return hrp, converted, nil
}
