package election

import (
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/peregrinenet/go-peregrine/inter"
)

func testCandidates(stakes ...inter.Coin) []Candidate {
	out := make([]Candidate, len(stakes))
	for i, stake := range stakes {
		out[i] = Candidate{ID: idx.ValidatorID(i + 1), Stake: stake}
	}
	return out
}

func TestSelectValidatorsDeterminism(t *testing.T) {
	require := require.New(t)

	entropy := crypto.Keccak256Hash([]byte("epoch-1"))
	candidates := testCandidates(100, 300, 600)

	a, err := SelectValidators(entropy, candidates, 512)
	require.NoError(err)
	b, err := SelectValidators(entropy, candidates, 512)
	require.NoError(err)
	require.Equal(a, b)

	other, err := SelectValidators(crypto.Keccak256Hash([]byte("epoch-2")), candidates, 512)
	require.NoError(err)
	require.NotEqual(a, other)
}

func TestSelectValidatorsSlotCount(t *testing.T) {
	require := require.New(t)

	entropy := crypto.Keccak256Hash([]byte("count"))
	slots, err := SelectValidators(entropy, testCandidates(1, 1, 1, 1), 512)
	require.NoError(err)

	var total uint32
	var prev idx.ValidatorID
	for _, s := range slots {
		require.Greater(s.ID, prev, "validators must come out in ascending ID order")
		prev = s.ID
		total += uint32(s.Slots)
	}
	require.Equal(uint32(512), total)
}

func TestSelectValidatorsWeighting(t *testing.T) {
	require := require.New(t)

	// One validator holds 99% of the stake; it must dominate the slots.
	entropy := crypto.Keccak256Hash([]byte("weights"))
	slots, err := SelectValidators(entropy, testCandidates(990, 10), 512)
	require.NoError(err)

	var heavy uint16
	for _, s := range slots {
		if s.ID == 1 {
			heavy = s.Slots
		}
	}
	require.Greater(heavy, uint16(450))
}

func TestSelectValidatorsErrors(t *testing.T) {
	entropy := crypto.Keccak256Hash([]byte("err"))
	_, err := SelectValidators(entropy, nil, 512)
	require.Equal(t, ErrNoCandidates, err)

	_, err = SelectValidators(entropy, testCandidates(0, 0), 512)
	require.Equal(t, ErrZeroStake, err)
}

func TestAssignmentOwnerAt(t *testing.T) {
	require := require.New(t)

	entropy := crypto.Keccak256Hash([]byte("owners"))
	slots, err := SelectValidators(entropy, testCandidates(100, 100, 100), 16)
	require.NoError(err)
	a := NewAssignment(entropy, slots)

	// Deterministic and within the validator set.
	for n := idx.Block(1); n <= 32; n++ {
		for view := uint32(0); view < 3; view++ {
			owner := a.OwnerAt(n, view)
			require.Equal(owner, a.OwnerAt(n, view))
			require.NotNil(a.Slot(owner))
		}
	}

	// A view change moves the slot for at least one height.
	moved := false
	for n := idx.Block(1); n <= 32 && !moved; n++ {
		moved = a.OwnerAt(n, 0) != a.OwnerAt(n, 1)
	}
	require.True(moved)
}

func TestPosValidatorsQuorum(t *testing.T) {
	require := require.New(t)

	entropy := crypto.Keccak256Hash([]byte("quorum"))
	slots, err := SelectValidators(entropy, testCandidates(100, 100), 16)
	require.NoError(err)
	v := NewAssignment(entropy, slots).PosValidators()
	require.Equal(uint32(16), uint32(v.TotalWeight()))
	require.Equal(uint32(11), uint32(v.Quorum()))
}
