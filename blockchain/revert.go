package blockchain

import (
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/log"

	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/ledger"
)

// RevertBlocks detaches the top count micro blocks of the main chain,
// restoring ledger state to the resulting head. It refuses to cross a
// macro block: those are final. The whole revert is one bolt write
// transaction.
func (bc *Blockchain) RevertBlocks(count int) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	var newHead *chainstore.ChainInfo
	err := bc.store.Update(func(tx *bolt.Tx) error {
		cs := chainstore.New(tx)
		st := ledger.New(tx, bc.rules)

		cursor := bc.headInfo
		for i := 0; i < count; i++ {
			if cursor.Block.BlockType() == inter.BlockTypeMacro {
				return ErrFinalizedBlock
			}
			if err := bc.revertBlock(cs, st, cursor.Block.Hash()); err != nil {
				return err
			}
			parent, err := cs.ChainInfo(cursor.Block.ParentHash())
			if err != nil {
				return err
			}
			if parent == nil {
				return ErrUnknownParent
			}
			cursor = parent
		}
		newHead = cursor
		return cs.SetHead(cursor.Block.Hash())
	})
	if err != nil {
		return err
	}

	bc.headInfo = newHead
	headGauge.Update(int64(newHead.Block.Number()))
	log.Info("Chain reverted", "head", newHead.Block.String(), "blocks", count)
	return nil
}
