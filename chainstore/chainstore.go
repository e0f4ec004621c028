// Package chainstore is the hash-indexed block tree: parent-linked
// chain info records, the main-chain height index and the head pointer.
// It stores and looks up, nothing more; validation and chain selection
// live in the blockchain package.
package chainstore

import (
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/common"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/utils/fast"
)

var (
	ErrUnknownBlock = errors.New("block not in store")
	ErrNoHead       = errors.New("head not set")
)

var fieldHead = []byte("Head")

// ChainInfo is one stored block plus the per-branch totals the
// chain-selection rule compares: the number of macro blocks on the
// branch and the cumulative view-number sum.
type ChainInfo struct {
	Block      inter.Block
	TotalMacro uint64
	TotalViews uint64
	OnMain     bool
}

// Direction selects the walk order of Blocks.
type Direction int

const (
	Backward Direction = iota // towards genesis, following parent links
	Forward                   // towards the head, along the main chain
)

// Store is chain access bound to one bolt transaction.
type Store struct {
	tx *bolt.Tx
}

func New(tx *bolt.Tx) *Store {
	return &Store{tx: tx}
}

func marshalChainInfo(info *ChainInfo) ([]byte, error) {
	record, err := inter.MarshalBlock(info.Block)
	if err != nil {
		return nil, err
	}
	w := fast.NewWriter(make([]byte, 0, 17+len(record)))
	var num [8]byte
	putU64(num[:], info.TotalMacro)
	w.Write(num[:])
	putU64(num[:], info.TotalViews)
	w.Write(num[:])
	if info.OnMain {
		w.WriteByte(1)
	} else {
		w.WriteByte(0)
	}
	w.Write(record)
	return w.Bytes(), nil
}

func unmarshalChainInfo(raw []byte) (*ChainInfo, error) {
	if len(raw) < 17 {
		return nil, inter.ErrCorruptedRecord
	}
	info := &ChainInfo{
		TotalMacro: getU64(raw[0:8]),
		TotalViews: getU64(raw[8:16]),
		OnMain:     raw[16] == 1,
	}
	block, err := inter.UnmarshalBlock(raw[17:])
	if err != nil {
		return nil, err
	}
	info.Block = block
	return info, nil
}

// PutBlock stores a chain info record under its block hash.
func (cs *Store) PutBlock(info *ChainInfo) error {
	raw, err := marshalChainInfo(info)
	if err != nil {
		return err
	}
	hash := info.Block.Hash()
	return cs.tx.Bucket(kvstore.BucketBlocks).Put(hash[:], raw)
}

// ChainInfo loads a record, or nil if the hash is unknown.
func (cs *Store) ChainInfo(hash common.Hash) (*ChainInfo, error) {
	raw := cs.tx.Bucket(kvstore.BucketBlocks).Get(hash[:])
	if raw == nil {
		return nil, nil
	}
	return unmarshalChainInfo(raw)
}

// Block loads just the block, erroring on unknown hashes.
func (cs *Store) Block(hash common.Hash) (inter.Block, error) {
	info, err := cs.ChainInfo(hash)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, ErrUnknownBlock
	}
	return info.Block, nil
}

// Blocks walks up to count blocks starting at from. Backward follows
// parent links through any branch; Forward climbs the main-chain height
// index, so it only works from a main-chain block.
func (cs *Store) Blocks(from common.Hash, count int, dir Direction) ([]inter.Block, error) {
	out := make([]inter.Block, 0, count)
	hash := from
	for len(out) < count {
		info, err := cs.ChainInfo(hash)
		if err != nil {
			return nil, err
		}
		if info == nil {
			if len(out) == 0 {
				return nil, ErrUnknownBlock
			}
			break
		}
		out = append(out, info.Block)
		switch dir {
		case Backward:
			if info.Block.Number() == 0 {
				return out, nil
			}
			hash = info.Block.ParentHash()
		case Forward:
			next, ok := cs.HashAt(info.Block.Number() + 1)
			if !ok {
				return out, nil
			}
			hash = next
		}
	}
	return out, nil
}

// SetHead moves the main-chain head pointer.
func (cs *Store) SetHead(hash common.Hash) error {
	return cs.tx.Bucket(kvstore.BucketMeta).Put(fieldHead, hash[:])
}

// HeadHash returns the current head pointer.
func (cs *Store) HeadHash() (common.Hash, error) {
	raw := cs.tx.Bucket(kvstore.BucketMeta).Get(fieldHead)
	if raw == nil {
		return common.Hash{}, ErrNoHead
	}
	return common.BytesToHash(raw), nil
}

// Head returns the main-chain head block.
func (cs *Store) Head() (inter.Block, error) {
	hash, err := cs.HeadHash()
	if err != nil {
		return nil, err
	}
	return cs.Block(hash)
}

// HashAt returns the main-chain block hash at a height.
func (cs *Store) HashAt(height idx.Block) (common.Hash, bool) {
	var key [8]byte
	putU64(key[:], uint64(height))
	raw := cs.tx.Bucket(kvstore.BucketHeights).Get(key[:])
	if raw == nil {
		return common.Hash{}, false
	}
	return common.BytesToHash(raw), true
}

// SetMain marks a stored block as on the main chain and indexes its
// height.
func (cs *Store) SetMain(hash common.Hash) error {
	info, err := cs.ChainInfo(hash)
	if err != nil {
		return err
	}
	if info == nil {
		return ErrUnknownBlock
	}
	info.OnMain = true
	if err := cs.PutBlock(info); err != nil {
		return err
	}
	var key [8]byte
	putU64(key[:], uint64(info.Block.Number()))
	return cs.tx.Bucket(kvstore.BucketHeights).Put(key[:], hash[:])
}

// UnsetMain detaches a block from the main chain, keeping it as a side
// branch entry.
func (cs *Store) UnsetMain(hash common.Hash) error {
	info, err := cs.ChainInfo(hash)
	if err != nil {
		return err
	}
	if info == nil {
		return ErrUnknownBlock
	}
	info.OnMain = false
	if err := cs.PutBlock(info); err != nil {
		return err
	}
	var key [8]byte
	putU64(key[:], uint64(info.Block.Number()))
	if existing := cs.tx.Bucket(kvstore.BucketHeights).Get(key[:]); common.BytesToHash(existing) == hash {
		return cs.tx.Bucket(kvstore.BucketHeights).Delete(key[:])
	}
	return nil
}

// PutReceipts stores a block's receipt log blob.
func (cs *Store) PutReceipts(hash common.Hash, raw []byte) error {
	return cs.tx.Bucket(kvstore.BucketReceipts).Put(hash[:], raw)
}

// Receipts loads a block's receipt log blob, or nil.
func (cs *Store) Receipts(hash common.Hash) []byte {
	raw := cs.tx.Bucket(kvstore.BucketReceipts).Get(hash[:])
	if raw == nil {
		return nil
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return cp
}

// HasForkProof reports whether a fork proof hash was already included
// on the main chain.
func (cs *Store) HasForkProof(hash common.Hash) bool {
	return cs.tx.Bucket(kvstore.BucketForkProofs).Get(hash[:]) != nil
}

// RegisterForkProof marks a fork proof as included, so the offense is
// penalized exactly once.
func (cs *Store) RegisterForkProof(hash common.Hash) error {
	return cs.tx.Bucket(kvstore.BucketForkProofs).Put(hash[:], []byte{1})
}

// UnregisterForkProof drops the inclusion mark, used when the including
// block is reverted off the main chain.
func (cs *Store) UnregisterForkProof(hash common.Hash) error {
	return cs.tx.Bucket(kvstore.BucketForkProofs).Delete(hash[:])
}

// Prune discards side-branch entries deeper than depth below the head
// and the receipt logs of main-chain blocks below the same horizon.
// Returns the number of records dropped.
func (cs *Store) Prune(head idx.Block, depth idx.Block) (int, error) {
	if head <= depth {
		return 0, nil
	}
	horizon := head - depth
	dropped := 0

	blocks := cs.tx.Bucket(kvstore.BucketBlocks)
	var stale [][]byte
	c := blocks.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		info, err := unmarshalChainInfo(v)
		if err != nil {
			return dropped, err
		}
		if !info.OnMain && info.Block.Number() < horizon {
			stale = append(stale, append([]byte{}, k...))
		}
	}
	for _, k := range stale {
		if err := blocks.Delete(k); err != nil {
			return dropped, err
		}
		if err := cs.tx.Bucket(kvstore.BucketReceipts).Delete(k); err != nil {
			return dropped, err
		}
		dropped++
	}

	// Receipts of settled main-chain blocks are no longer needed for
	// revert.
	receipts := cs.tx.Bucket(kvstore.BucketReceipts)
	stale = stale[:0]
	rc := receipts.Cursor()
	for k, _ := rc.First(); k != nil; k, _ = rc.Next() {
		info, err := cs.ChainInfo(common.BytesToHash(k))
		if err != nil {
			return dropped, err
		}
		if info == nil || info.Block.Number() < horizon {
			stale = append(stale, append([]byte{}, k...))
		}
	}
	for _, k := range stale {
		if err := receipts.Delete(k); err != nil {
			return dropped, err
		}
		dropped++
	}
	return dropped, nil
}

func putU64(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}

func getU64(b []byte) uint64 {
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 | uint64(b[3])<<32 |
		uint64(b[4])<<24 | uint64(b[5])<<16 | uint64(b[6])<<8 | uint64(b[7])
}
