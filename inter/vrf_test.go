package inter

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedChainIsDeterministic(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var genesis VrfSeed
	s1, err := NextSeed(genesis, key)
	require.NoError(t, err)
	s2, err := NextSeed(genesis, key)
	require.NoError(t, err)

	// RFC 6979 nonces make the seed chain reproducible.
	assert.Equal(t, s1, s2)
	assert.Equal(t, s1.Entropy(), s2.Entropy())
}

func TestSeedVerifiesProducer(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	var genesis VrfSeed
	seed, err := NextSeed(genesis, key)
	require.NoError(t, err)

	addr := crypto.PubkeyToAddress(key.PublicKey)
	assert.True(t, seed.Verify(genesis, addr))
	assert.False(t, seed.Verify(genesis, crypto.PubkeyToAddress(other.PublicKey)))

	// A seed over a different predecessor must not verify.
	next, err := NextSeed(seed, key)
	require.NoError(t, err)
	assert.False(t, next.Verify(genesis, addr))
}
