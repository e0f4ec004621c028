package blockchain

import (
	"reflect"
	"time"

	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/log"

	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/election"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/ledger"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// PushResult tells the caller where an accepted block landed.
type PushResult int

const (
	PushIgnored PushResult = iota
	PushExtended
	PushForked
	PushRebranched
)

func (r PushResult) String() string {
	switch r {
	case PushIgnored:
		return "ignored"
	case PushExtended:
		return "extended"
	case PushForked:
		return "forked"
	case PushRebranched:
		return "rebranched"
	}
	return "unknown"
}

// PushBlock validates and places a candidate block. The whole push,
// rebranching included, runs in one bolt write transaction: any
// rejection rolls everything back and the store is never partially
// updated.
func (bc *Blockchain) PushBlock(b inter.Block) (PushResult, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	start := time.Now()

	result := PushIgnored
	var newHead *chainstore.ChainInfo
	bc.pendingCerts = nil

	err := bc.store.Update(func(tx *bolt.Tx) error {
		cs := chainstore.New(tx)
		st := ledger.New(tx, bc.rules)

		if existing, err := cs.ChainInfo(b.Hash()); err != nil {
			return err
		} else if existing != nil {
			result = PushIgnored
			return nil
		}

		parentInfo, err := cs.ChainInfo(b.ParentHash())
		if err != nil {
			return err
		}
		if parentInfo == nil {
			return ErrUnknownParent
		}

		a, err := bc.assignmentFor(cs, parentInfo.Block, b.Number())
		if err != nil {
			return err
		}
		if err := bc.verifyBlock(cs, b, parentInfo.Block, a); err != nil {
			return err
		}

		info := &chainstore.ChainInfo{
			Block:      b,
			TotalMacro: parentInfo.TotalMacro,
			TotalViews: parentInfo.TotalViews + uint64(b.View()),
		}
		if b.BlockType() == inter.BlockTypeMacro {
			info.TotalMacro++
		}
		if err := cs.PutBlock(info); err != nil {
			return err
		}

		switch {
		case b.ParentHash() == bc.headInfo.Block.Hash():
			if err := bc.applyOnMain(cs, st, info, a); err != nil {
				return err
			}
			newHead = info
			result = PushExtended

		case bc.outweighsHead(info):
			if err := bc.rebranch(cs, st, info); err != nil {
				return err
			}
			newHead = info
			result = PushRebranched

		default:
			result = PushForked
		}
		return nil
	})

	pushTimer.UpdateSince(start)
	if err != nil {
		bc.pendingCerts = nil
		blockRejectedMeter.Mark(1)
		log.Warn("Block rejected", "block", b.String(), "err", err)
		return PushIgnored, err
	}

	if newHead != nil {
		bc.headInfo = newHead
		headGauge.Update(int64(newHead.Block.Number()))
	}
	bc.emitCertificates()
	switch result {
	case PushExtended:
		blockExtendedMeter.Mark(1)
		log.Info("Chain extended", "block", b.String())
	case PushForked:
		blockForkedMeter.Mark(1)
		log.Info("Fork retained", "block", b.String())
	case PushRebranched:
		blockRebranchedMeter.Mark(1)
		log.Info("Chain rebranched", "head", b.String())
	case PushIgnored:
		blockIgnoredMeter.Mark(1)
	}
	return result, nil
}

// outweighsHead is the chain-selection rule: the longest macro chain
// wins, ties go to the lower cumulative view sum, then the lower hash.
func (bc *Blockchain) outweighsHead(info *chainstore.ChainInfo) bool {
	head := bc.headInfo
	if info.TotalMacro != head.TotalMacro {
		return info.TotalMacro > head.TotalMacro
	}
	if info.TotalViews != head.TotalViews {
		return info.TotalViews < head.TotalViews
	}
	a, b := info.Block.Hash(), head.Block.Hash()
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// DeriveInherents rebuilds the protocol operations of a micro block
// exactly as its producer must have: one penalize per fork proof in
// body order, then the block reward (coinbase plus fees) to the
// producing slot's reward address. Macro blocks carry none.
func (bc *Blockchain) DeriveInherents(b inter.Block, a *election.Assignment) []*inter.Inherent {
	micro, ok := b.(*inter.MicroBlock)
	if !ok {
		return nil
	}
	var out []*inter.Inherent
	for _, fp := range micro.Body.ForkProofs {
		offender := a.OwnerAt(fp.Header1.Number, fp.Header1.View)
		out = append(out, &inter.Inherent{
			Type:   inter.InherentPenalize,
			Target: peregrine.StakingContractAddress,
			Data:   ledger.ValidatorInherentData(offender),
		})
	}

	reward := bc.rules.Economy.BlockReward
	for _, tx := range micro.Body.Transactions {
		if v, ok := reward.SafeAdd(tx.Fee); ok {
			reward = v
		}
	}
	owner := a.OwnerAt(micro.Number(), micro.View())
	if slot := a.Slot(owner); slot != nil {
		out = append(out, &inter.Inherent{
			Type:   inter.InherentReward,
			Target: slot.RewardAddress,
			Value:  reward,
		})
	}
	return out
}

// applyOnMain commits a verified block to the ledger and marks it as
// the new main-chain tip. For macro blocks it leaves the ledger alone
// but checks the election result against state.
func (bc *Blockchain) applyOnMain(cs *chainstore.Store, st *ledger.State, info *chainstore.ChainInfo, a *election.Assignment) error {
	b := info.Block

	switch block := b.(type) {
	case *inter.MicroBlock:
		inherents := bc.DeriveInherents(block, a)
		receipts, err := st.Commit(block.Body.Transactions, inherents, b.Number(), b.Time())
		if err != nil {
			return err
		}
		if st.Root() != b.StateRoot() {
			return ErrInvalidStateRoot
		}
		raw, err := ledger.MarshalReceipts(receipts)
		if err != nil {
			return err
		}
		if err := cs.PutReceipts(b.Hash(), raw); err != nil {
			return err
		}
		for _, fp := range block.Body.ForkProofs {
			if err := cs.RegisterForkProof(fp.Hash()); err != nil {
				return err
			}
		}

	case *inter.MacroBlock:
		// Macro blocks never touch account state.
		if st.Root() != b.StateRoot() {
			return ErrInvalidStateRoot
		}
		if block.IsElection {
			if err := bc.verifyElection(st, block); err != nil {
				return err
			}
		}
		if _, err := cs.Prune(b.Number(), bc.rules.Blocks.PruneDepth); err != nil {
			return err
		}
		bc.pendingCerts = append(bc.pendingCerts, macroCertificate(block))
	}

	if err := cs.SetMain(b.Hash()); err != nil {
		return err
	}
	return cs.SetHead(b.Hash())
}

// verifyElection recomputes the slot assignment from ledger state and
// the election block's own seed, and requires the body to match.
func (bc *Blockchain) verifyElection(st *ledger.State, b *inter.MacroBlock) error {
	candidates, err := election.Candidates(st, b.Number())
	if err != nil {
		return err
	}
	seed := b.Seed()
	want, err := election.SelectValidators(seed.Entropy(), candidates, bc.rules.Epochs.Slots)
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(want, b.Body.Validators) {
		return ErrInvalidBlock
	}
	return nil
}
