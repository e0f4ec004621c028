package blockchain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/ledger"
)

// backtrackToCurrentPath walks a side branch backwards until it meets a
// main-chain block and returns the branch blocks in apply order.
func backtrackToCurrentPath(cs *chainstore.Store, tip *chainstore.ChainInfo) ([]*chainstore.ChainInfo, *chainstore.ChainInfo, error) {
	var path []*chainstore.ChainInfo
	cursor := tip
	for {
		path = append([]*chainstore.ChainInfo{cursor}, path...)
		parent, err := cs.ChainInfo(cursor.Block.ParentHash())
		if err != nil {
			return nil, nil, err
		}
		if parent == nil {
			return nil, nil, ErrUnknownParent
		}
		if parent.OnMain {
			return path, parent, nil
		}
		cursor = parent
	}
}

// rebranch adopts a side branch that outweighs the head: it reverts the
// main chain down to the common ancestor, then applies the branch
// forward. It runs inside the push's bolt transaction, so a failure
// mid-way (an invalid state root deep in the branch, say) discards the
// whole rebranch and the old chain stays in place.
func (bc *Blockchain) rebranch(cs *chainstore.Store, st *ledger.State, tip *chainstore.ChainInfo) error {
	path, ancestor, err := backtrackToCurrentPath(cs, tip)
	if err != nil {
		return err
	}

	// Revert the current main chain head-first down to the ancestor.
	for h := bc.headInfo.Block.Number(); h > ancestor.Block.Number(); h-- {
		hash, ok := cs.HashAt(h)
		if !ok {
			return chainstore.ErrUnknownBlock
		}
		if err := bc.revertBlock(cs, st, hash); err != nil {
			return err
		}
	}

	log.Info("Rebranching", "ancestor", ancestor.Block.String(), "blocks", len(path))

	for _, info := range path {
		parent, err := cs.Block(info.Block.ParentHash())
		if err != nil {
			return err
		}
		a, err := bc.assignmentFor(cs, parent, info.Block.Number())
		if err != nil {
			return err
		}
		if err := bc.applyOnMain(cs, st, info, a); err != nil {
			return err
		}
	}
	return nil
}

// revertBlock undoes the head main-chain block at the given hash:
// ledger revert via its stored receipts, then detachment into a side
// branch entry.
func (bc *Blockchain) revertBlock(cs *chainstore.Store, st *ledger.State, hash common.Hash) error {
	b, err := cs.Block(hash)
	if err != nil {
		return err
	}

	if micro, ok := b.(*inter.MicroBlock); ok {
		parent, err := cs.Block(b.ParentHash())
		if err != nil {
			return err
		}
		a, err := bc.assignmentFor(cs, parent, b.Number())
		if err != nil {
			return err
		}
		raw := cs.Receipts(hash)
		if raw == nil {
			return chainstore.ErrUnknownBlock
		}
		receipts, err := ledger.UnmarshalReceipts(raw)
		if err != nil {
			return err
		}
		inherents := bc.DeriveInherents(micro, a)
		if err := st.Revert(micro.Body.Transactions, inherents, b.Number(), b.Time(), receipts); err != nil {
			return err
		}
		if st.Root() != parent.StateRoot() {
			return ErrInvalidStateRoot
		}
		for _, fp := range micro.Body.ForkProofs {
			if err := cs.UnregisterForkProof(fp.Hash()); err != nil {
				return err
			}
		}
	}

	return cs.UnsetMain(hash)
}
