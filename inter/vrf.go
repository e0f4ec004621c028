package inter

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SeedSize is the byte length of a VRF seed.
const SeedSize = SigSize

// VrfSeed is the verifiable random seed chained block to block. Each
// seed is the producer's deterministic (RFC 6979) signature over a
// digest of the previous seed, so the chain is unbiasable by anyone but
// the assigned producer and verifiable by everyone.
type VrfSeed [SeedSize]byte

var vrfDomain = []byte("peregrine/vrf/v1")

func seedDigest(prev VrfSeed) common.Hash {
	return crypto.Keccak256Hash(vrfDomain, prev[:])
}

// Entropy collapses the seed into the 32-byte randomness used for slot
// sampling and producer selection.
func (s VrfSeed) Entropy() common.Hash {
	return crypto.Keccak256Hash(s[:])
}

// NextSeed derives the seed following prev, signed with the producer key.
func NextSeed(prev VrfSeed, key *ecdsa.PrivateKey) (VrfSeed, error) {
	sig, err := crypto.Sign(seedDigest(prev).Bytes(), key)
	if err != nil {
		return VrfSeed{}, err
	}
	var seed VrfSeed
	copy(seed[:], sig)
	return seed, nil
}

// Verify checks that s was derived from prev by the key controlling
// producer's address.
func (s VrfSeed) Verify(prev VrfSeed, producer common.Address) bool {
	pub, err := crypto.SigToPub(seedDigest(prev).Bytes(), s[:])
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == producer
}

func (s VrfSeed) Bytes() []byte {
	return s[:]
}

func (s VrfSeed) String() string {
	return common.Bytes2Hex(s[:8]) + ".."
}

func (s VrfSeed) MarshalText() ([]byte, error) {
	return []byte(hexutil.Encode(s[:])), nil
}

func (s *VrfSeed) UnmarshalText(input []byte) error {
	b, err := hexutil.Decode(string(input))
	if err != nil {
		return err
	}
	if len(b) != SeedSize {
		return errors.New("wrong vrf seed length")
	}
	copy(s[:], b)
	return nil
}
