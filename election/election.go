// Package election implements stake-weighted validator selection. An
// election macro block's VRF entropy drives a deterministic sampling of
// the fixed slot count over the active validators; every honest node
// must derive the identical assignment or the chain forks.
package election

import (
	"encoding/binary"
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/inter/validatorpk"
	"github.com/peregrinenet/go-peregrine/ledger"
)

var (
	ErrNoCandidates = errors.New("no eligible validators for election")
	ErrZeroStake    = errors.New("eligible validators carry no stake")
)

// Candidate is one eligible validator with its total election stake:
// the deposit plus all delegated staker balances.
type Candidate struct {
	ID            idx.ValidatorID
	PubKey        validatorpk.PubKey
	RewardAddress common.Address
	Stake         inter.Coin
}

// Candidates collects the eligible validators from ledger state for an
// election held at the given height, in ascending ID order.
func Candidates(s *ledger.State, height idx.Block) ([]Candidate, error) {
	validators, err := s.Validators()
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, v := range validators {
		if !v.ActiveAt(height) {
			continue
		}
		out = append(out, Candidate{
			ID:            v.ID,
			PubKey:        v.PubKey,
			RewardAddress: v.RewardAddress,
			Stake:         v.Deposit,
		})
	}
	byID := make(map[idx.ValidatorID]int, len(out))
	for i := range out {
		byID[out[i].ID] = i
	}
	stakers, err := s.Stakers()
	if err != nil {
		return nil, err
	}
	for _, st := range stakers {
		i, ok := byID[st.Delegation]
		if !ok {
			continue
		}
		if stake, ok := out[i].Stake.SafeAdd(st.Bal); ok {
			out[i].Stake = stake
		}
	}
	return out, nil
}

// SelectValidators samples the slot assignment for the next epoch. Each
// of the slots lands on a candidate with probability proportional to
// its stake; the result is aggregated per validator in ascending ID
// order, which is also the canonical band order of the assignment.
func SelectValidators(entropy common.Hash, candidates []Candidate, slots uint32) ([]inter.ValidatorSlot, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	cumulative := make([]uint64, len(candidates))
	var total uint64
	for i, c := range candidates {
		total += uint64(c.Stake)
		cumulative[i] = total
	}
	if total == 0 {
		return nil, ErrZeroStake
	}

	counts := make(map[idx.ValidatorID]uint16, len(candidates))
	var buf [4]byte
	for slot := uint32(0); slot < slots; slot++ {
		binary.BigEndian.PutUint32(buf[:], slot)
		h := crypto.Keccak256(entropy[:], buf[:])
		point := binary.BigEndian.Uint64(h[:8]) % total
		// First candidate whose cumulative stake exceeds the sampled
		// point; candidates are in ID order, so ties resolve by ID.
		i := search(cumulative, point)
		counts[candidates[i].ID]++
	}

	out := make([]inter.ValidatorSlot, 0, len(counts))
	for _, c := range candidates {
		if n := counts[c.ID]; n > 0 {
			out = append(out, inter.ValidatorSlot{
				ID:            c.ID,
				PubKey:        c.PubKey,
				RewardAddress: c.RewardAddress,
				Slots:         n,
			})
		}
	}
	return out, nil
}

func search(cumulative []uint64, point uint64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cumulative[mid] <= point {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Assignment is the slot layout of one epoch: the aggregated validator
// slots in ID order, interpreted as contiguous slot bands, plus the
// election entropy that seeds per-block producer selection.
type Assignment struct {
	Entropy    common.Hash
	Validators []inter.ValidatorSlot

	bands []uint32 // cumulative slot counts, aligned with Validators
	total uint32
}

// NewAssignment builds the epoch assignment from an election macro
// body's validator set and the election block's seed entropy.
func NewAssignment(entropy common.Hash, validators []inter.ValidatorSlot) *Assignment {
	a := &Assignment{
		Entropy:    entropy,
		Validators: validators,
		bands:      make([]uint32, len(validators)),
	}
	for i, v := range validators {
		a.total += uint32(v.Slots)
		a.bands[i] = a.total
	}
	return a
}

// OwnerAt returns the validator owning the producer slot of
// (number, view). The slot index is drawn from the epoch entropy, so it
// reshuffles every block and every view change.
func (a *Assignment) OwnerAt(number idx.Block, view uint32) idx.ValidatorID {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(number))
	binary.BigEndian.PutUint32(buf[8:], view)
	h := crypto.Keccak256(a.Entropy[:], buf[:])
	slot := uint32(binary.BigEndian.Uint64(h[:8]) % uint64(a.total))
	for i, band := range a.bands {
		if slot < band {
			return a.Validators[i].ID
		}
	}
	return a.Validators[len(a.Validators)-1].ID
}

// Slot returns the aggregated slot entry of a validator, or nil if it
// holds no slots this epoch.
func (a *Assignment) Slot(id idx.ValidatorID) *inter.ValidatorSlot {
	for i := range a.Validators {
		if a.Validators[i].ID == id {
			return &a.Validators[i]
		}
	}
	return nil
}

// PosValidators exposes the assignment as a lachesis weighted validator
// set, with one unit of weight per slot, for quorum arithmetic.
func (a *Assignment) PosValidators() *pos.Validators {
	builder := pos.NewBuilder()
	for _, v := range a.Validators {
		builder.Set(v.ID, pos.Weight(v.Slots))
	}
	return builder.Build()
}
