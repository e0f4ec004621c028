package blockchain

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/ethereum/go-ethereum/common"

	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/election"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// verifyBlock runs all checks that need no ledger state: structure,
// linkage, seed, justification, view change and fork proofs. It is
// called for every pushed block, whichever branch it lands on.
func (bc *Blockchain) verifyBlock(cs *chainstore.Store, b inter.Block, parent inter.Block, a *election.Assignment) error {
	header := headerOf(b)
	if header == nil {
		return ErrInvalidBlock
	}

	if header.Version != peregrine.BlockVersion {
		return ErrInvalidBlock
	}
	if b.Number() != parent.Number()+1 {
		return ErrInvalidSuccessor
	}
	wantMacro := bc.rules.IsMacroBlockAt(b.Number())
	if (b.BlockType() == inter.BlockTypeMacro) != wantMacro {
		return ErrInvalidBlock
	}
	if len(header.ExtraData) > inter.MaxExtraDataSize {
		return ErrInvalidBlock
	}
	if b.Time() < parent.Time() || b.Time() > bc.now()+bc.rules.Blocks.MaxTimeDrift {
		return ErrInvalidBlock
	}
	if b.HistoryRoot() != inter.NextHistoryRoot(parent) {
		return ErrInvalidHistoryRoot
	}

	switch block := b.(type) {
	case *inter.MicroBlock:
		return bc.verifyMicro(cs, block, parent, a)
	case *inter.MacroBlock:
		return bc.verifyMacro(block, parent, a)
	default:
		return ErrInvalidBlock
	}
}

func (bc *Blockchain) verifyMicro(cs *chainstore.Store, b *inter.MicroBlock, parent inter.Block, a *election.Assignment) error {
	if b.Justification == nil || b.Body == nil {
		return ErrInvalidBlock
	}

	owner := a.OwnerAt(b.Number(), b.View())
	producer, err := slotAddress(a, owner)
	if err != nil {
		return err
	}

	seed := b.Seed()
	if !seed.Verify(parent.Seed(), producer) {
		return ErrInvalidSeed
	}
	if !inter.VerifySignature(b.Header.Hash(), b.Justification.Signature, producer) {
		return ErrInvalidJustification
	}

	if b.View() > 0 {
		if err := bc.verifyViewChange(b, parent, a); err != nil {
			return err
		}
	} else if b.Justification.ViewChangeProof != nil {
		return ErrInvalidBlock
	}

	if b.Body.Root() != b.BodyRoot() {
		return ErrInvalidBlock
	}
	if b.Body.Size() > bc.rules.Blocks.MaxBodySize {
		return ErrInvalidBlock
	}
	for _, tx := range b.Body.Transactions {
		if err := tx.Verify(bc.rules.NetworkID); err != nil {
			return err
		}
		if !tx.IsValidAt(b.Number(), bc.rules.Economy.TxValidityWindow) {
			return inter.ErrOutsideValidity
		}
	}

	return bc.verifyForkProofs(cs, b, a)
}

func (bc *Blockchain) verifyViewChange(b *inter.MicroBlock, parent inter.Block, a *election.Assignment) error {
	proof := b.Justification.ViewChangeProof
	if !proof.WellFormed() {
		return ErrInvalidViewChangeProof
	}
	vc := &inter.ViewChange{
		Number:   b.Number(),
		NewView:  b.View(),
		PrevSeed: parent.Seed(),
	}
	digest := vc.SigningDigest()

	validators := a.PosValidators()
	var weight pos.Weight
	for i, signer := range proof.Signers {
		slot := a.Slot(signer)
		if slot == nil {
			return ErrInvalidViewChangeProof
		}
		addr, err := slot.PubKey.Address()
		if err != nil {
			return ErrInvalidViewChangeProof
		}
		if !inter.VerifySignature(digest, proof.Signatures[i], addr) {
			return ErrInvalidViewChangeProof
		}
		weight += pos.Weight(slot.Slots)
	}
	if weight < validators.Quorum() {
		return ErrInvalidViewChangeProof
	}
	return nil
}

// verifyForkProofs checks every embedded fork proof against the slot
// assignment and rejects proofs already included on this chain.
func (bc *Blockchain) verifyForkProofs(cs *chainstore.Store, b *inter.MicroBlock, a *election.Assignment) error {
	epoch := bc.rules.EpochAt(b.Number())
	for _, fp := range b.Body.ForkProofs {
		// Offenses are only punishable while the offender's assignment
		// is still current.
		if bc.rules.EpochAt(fp.Header1.Number) != epoch || fp.Header1.Number >= b.Number() {
			return ErrInvalidForkProof
		}
		offender := a.OwnerAt(fp.Header1.Number, fp.Header1.View)
		addr, err := slotAddress(a, offender)
		if err != nil {
			return err
		}
		if !fp.Verify(addr) {
			return ErrInvalidForkProof
		}
		if cs.HasForkProof(fp.Hash()) {
			return ErrInvalidForkProof
		}
	}
	return nil
}

func (bc *Blockchain) verifyMacro(b *inter.MacroBlock, parent inter.Block, a *election.Assignment) error {
	if b.Justification == nil || b.Body == nil {
		return ErrInvalidBlock
	}
	if b.IsElection != bc.rules.IsElectionBlockAt(b.Number()) {
		return ErrInvalidBlock
	}
	if b.View() != 0 {
		return ErrInvalidBlock
	}

	j := b.Justification
	proposer := a.OwnerAt(b.Number(), j.Round)
	proposerAddr, err := slotAddress(a, proposer)
	if err != nil {
		return err
	}
	seed := b.Seed()
	if !seed.Verify(parent.Seed(), proposerAddr) {
		return ErrInvalidSeed
	}

	if b.Body.Root() != b.BodyRoot() {
		return ErrInvalidBlock
	}

	if len(j.Signers) == 0 || len(j.Signers) != len(j.Signatures) {
		return ErrInvalidJustification
	}
	for i := 1; i < len(j.Signers); i++ {
		if j.Signers[i] <= j.Signers[i-1] {
			return ErrInvalidJustification
		}
	}
	digest := inter.MacroSigningDigest(b.Header.Hash(), j.Round)
	validators := a.PosValidators()
	var weight pos.Weight
	for i, signer := range j.Signers {
		slot := a.Slot(signer)
		if slot == nil {
			return ErrInvalidJustification
		}
		addr, err := slot.PubKey.Address()
		if err != nil {
			return ErrInvalidJustification
		}
		if !inter.VerifySignature(digest, j.Signatures[i], addr) {
			return ErrInvalidJustification
		}
		weight += pos.Weight(slot.Slots)
	}
	if weight < validators.Quorum() {
		return ErrInvalidJustification
	}
	return nil
}

func slotAddress(a *election.Assignment, id idx.ValidatorID) (common.Address, error) {
	slot := a.Slot(id)
	if slot == nil {
		return common.Address{}, ErrInvalidJustification
	}
	return slot.PubKey.Address()
}

func headerOf(b inter.Block) *inter.Header {
	switch block := b.(type) {
	case *inter.MicroBlock:
		return &block.Header
	case *inter.MacroBlock:
		return &block.Header
	}
	return nil
}
