package inter

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ForkProof is evidence that one producer signed two conflicting headers
// for the same (number, view) slot. PrevSeed is the seed of the block
// preceding the forked height; it lets a verifier re-derive which
// validator owned the slot at the time.
type ForkProof struct {
	Header1        Header
	Header2        Header
	Justification1 Signature
	Justification2 Signature
	PrevSeed       VrfSeed
}

// Hash identifies the proof independently of header order, so the same
// equivocation can never be registered twice under swapped headers.
func (p *ForkProof) Hash() common.Hash {
	h1 := p.Header1.Hash()
	h2 := p.Header2.Hash()
	if bytes.Compare(h1.Bytes(), h2.Bytes()) > 0 {
		h1, h2 = h2, h1
	}
	return crypto.Keccak256Hash(h1.Bytes(), h2.Bytes())
}

// Size is used for block body budgeting; headers dominate.
func (p *ForkProof) Size() int {
	raw1, err := p.Header1.MarshalBinary()
	if err != nil {
		panic(err)
	}
	raw2, err := p.Header2.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return len(raw1) + len(raw2) + 2*SigSize + SeedSize
}

// Verify checks the structural validity of the proof: two distinct
// headers at the same (number, view), both signed by producer.
// Whether producer actually owned that slot is decided by the caller
// against the slot assignment.
func (p *ForkProof) Verify(producer common.Address) bool {
	if p.Header1.Number != p.Header2.Number || p.Header1.View != p.Header2.View {
		return false
	}
	if p.Header1.Hash() == p.Header2.Hash() {
		return false
	}
	return signedBy(p.Header1.Hash(), p.Justification1, producer) &&
		signedBy(p.Header2.Hash(), p.Justification2, producer)
}

func signedBy(digest common.Hash, sig Signature, signer common.Address) bool {
	return VerifySignature(digest, sig, signer)
}

// VerifySignature reports whether sig is the signer's recoverable
// signature over digest.
func VerifySignature(digest common.Hash, sig Signature, signer common.Address) bool {
	pub, err := crypto.SigToPub(digest.Bytes(), sig[:])
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == signer
}
