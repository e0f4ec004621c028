package validatorpk

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	pk := FromECDSA(&key.PublicKey)
	require.Equal(t, Types.Secp256k1, pk.Type)

	decoded, err := FromBytes(pk.Bytes())
	require.NoError(t, err)
	assert.Equal(t, pk, decoded)
}

func TestAddressMatchesCrypto(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	pk := FromECDSA(&key.PublicKey)
	addr, err := pk.Address()
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestAddressRejectsUnknownType(t *testing.T) {
	pk := PubKey{Type: 0x01, Raw: []byte{0x02}}
	_, err := pk.Address()
	assert.Equal(t, ErrUnknownType, err)
}

func TestTextRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	pk := FromECDSA(&key.PublicKey)
	txt, err := pk.MarshalText()
	require.NoError(t, err)

	var decoded PubKey
	require.NoError(t, decoded.UnmarshalText(txt))
	assert.Equal(t, pk, decoded)
}
