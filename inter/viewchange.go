package inter

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ViewChange is the message validators sign to advance the view at a
// given height. PrevSeed binds the message to one specific chain: a
// proof collected on a different branch carries a different seed and
// fails verification here.
type ViewChange struct {
	Number   idx.Block
	NewView  uint32
	PrevSeed VrfSeed
}

// SigningDigest is the message digest each view-change signer commits to.
func (vc *ViewChange) SigningDigest() common.Hash {
	var scratch [16]byte
	n := uint64(vc.Number)
	for i := 7; i >= 0; i-- {
		scratch[i] = byte(n)
		n >>= 8
	}
	v := vc.NewView
	for i := 11; i >= 8; i-- {
		scratch[i] = byte(v)
		v >>= 8
	}
	return crypto.Keccak256Hash(
		[]byte("peregrine/viewchange/v1"),
		scratch[:12],
		vc.PrevSeed[:],
	)
}

// ViewChangeProof is the output of the external aggregation protocol: a
// set of validator signatures over one ViewChange message. Signers and
// Signatures are aligned; Signers must be strictly ascending. The push
// pipeline re-checks every signature and the quorum weight locally.
type ViewChangeProof struct {
	Signers    []idx.ValidatorID
	Signatures []Signature
}

// WellFormed reports structural sanity: aligned, non-empty, strictly
// ascending signers.
func (p *ViewChangeProof) WellFormed() bool {
	if p == nil || len(p.Signers) == 0 || len(p.Signers) != len(p.Signatures) {
		return false
	}
	for i := 1; i < len(p.Signers); i++ {
		if p.Signers[i] <= p.Signers[i-1] {
			return false
		}
	}
	return true
}
