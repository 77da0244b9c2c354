package cardano

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyHash(t *testing.T) {
	require := require.New(t)

	publicKey := bytes.Repeat([]byte{0x01}, 32)

	hash := KeyHash(publicKey)
	require.Len(hash, keyHashLen)
	require.Equal(hash, KeyHash(publicKey))
	require.NotEqual(hash, KeyHash(bytes.Repeat([]byte{0x02}, 32)))
}

func TestEncodeBaseAddress(t *testing.T) {
	require := require.New(t)

	paymentKey := bytes.Repeat([]byte{0x01}, 32)
	stakeKey := bytes.Repeat([]byte{0x02}, 32)

	address, err := EncodeBaseAddress(paymentKey, stakeKey, &PreprodParams)
	require.NoError(err)
	require.True(strings.HasPrefix(address, "addr_test1"))

	hrp, data, err := DecodeAddress(address)
	require.NoError(err)
	require.Equal("addr_test", hrp)
	require.Len(data, 1+2*keyHashLen)
	require.Equal(baseAddressHeader|PreprodParams.NetworkTag, data[0])
	require.Equal(KeyHash(paymentKey), data[1:1+keyHashLen])
	require.Equal(KeyHash(stakeKey), data[1+keyHashLen:])

	mainnet, err := EncodeBaseAddress(paymentKey, stakeKey, &MainnetParams)
	require.NoError(err)
	require.True(strings.HasPrefix(mainnet, "addr1"))
	require.NotEqual(address, mainnet)

	_, mainnetData, err := DecodeAddress(mainnet)
	require.NoError(err)
	require.Equal(baseAddressHeader|MainnetParams.NetworkTag, mainnetData[0])
}

func TestEncodeRewardAddress(t *testing.T) {
	require := require.New(t)

	stakeKey := bytes.Repeat([]byte{0x02}, 32)

	address, err := EncodeRewardAddress(stakeKey, &PreprodParams)
	require.NoError(err)
	require.True(strings.HasPrefix(address, "stake_test1"))

	hrp, data, err := DecodeAddress(address)
	require.NoError(err)
	require.Equal("stake_test", hrp)
	require.Len(data, 1+keyHashLen)
	require.Equal(rewardAddressHeader|PreprodParams.NetworkTag, data[0])
	require.Equal(KeyHash(stakeKey), data[1:])

	mainnet, err := EncodeRewardAddress(stakeKey, &MainnetParams)
	require.NoError(err)
	require.True(strings.HasPrefix(mainnet, "stake1"))
}
