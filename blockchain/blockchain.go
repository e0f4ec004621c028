// Package blockchain is the push pipeline: it validates candidate
// blocks, places them as extension, fork or rebranch, applies them to
// the ledger and moves the main-chain head. One RWMutex serializes
// pushes against reads; each push commits as a single bolt write
// transaction, so a crash can never leave the chain store ahead of the
// ledger.
package blockchain

import (
	"sync"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/election"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/ledger"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// Blockchain guards the ledger and chain store jointly. Pushes take the
// write lock; queries and speculative production take the read lock.
type Blockchain struct {
	mu    sync.RWMutex
	store *kvstore.Store
	rules peregrine.Rules

	headInfo *chainstore.ChainInfo

	// assignments caches the slot assignment per election block hash.
	assignments map[common.Hash]*election.Assignment

	certConsumers []CertificateConsumer
	// pendingCerts accumulates within a push and is dropped on rollback.
	pendingCerts []MacroCertificate

	// now is the wall clock for timestamp drift checks.
	now func() inter.Timestamp
}

// New opens the blockchain over an initialized store. The store must
// carry a genesis block (see the genesis package) or ErrNotInitialized
// is returned.
func New(store *kvstore.Store, rules peregrine.Rules) (*Blockchain, error) {
	bc := &Blockchain{
		store:       store,
		rules:       rules,
		assignments: make(map[common.Hash]*election.Assignment),
		now: func() inter.Timestamp {
			return inter.Timestamp(time.Now().UnixNano() / int64(time.Millisecond))
		},
	}
	err := store.View(func(tx *bolt.Tx) error {
		cs := chainstore.New(tx)
		hash, err := cs.HeadHash()
		if err == chainstore.ErrNoHead {
			return ErrNotInitialized
		}
		if err != nil {
			return err
		}
		bc.headInfo, err = cs.ChainInfo(hash)
		if err != nil {
			return err
		}
		if bc.headInfo == nil {
			return ErrNotInitialized
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("Chain opened", "head", bc.headInfo.Block.String())
	headGauge.Update(int64(bc.headInfo.Block.Number()))
	return bc, nil
}

// Rules returns the network rules the chain runs under.
func (bc *Blockchain) Rules() peregrine.Rules {
	return bc.rules
}

// Head returns the current main-chain head.
func (bc *Blockchain) Head() inter.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.headInfo.Block
}

// GetBlock looks a block up by hash on any branch.
func (bc *Blockchain) GetBlock(hash common.Hash) (inter.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	var b inter.Block
	err := bc.store.View(func(tx *bolt.Tx) error {
		var err error
		b, err = chainstore.New(tx).Block(hash)
		return err
	})
	return b, err
}

// GetBlocks walks count blocks from a hash in the given direction.
func (bc *Blockchain) GetBlocks(from common.Hash, count int, dir chainstore.Direction) ([]inter.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	var out []inter.Block
	err := bc.store.View(func(tx *bolt.Tx) error {
		var err error
		out, err = chainstore.New(tx).Blocks(from, count, dir)
		return err
	})
	return out, err
}

// GetAccount returns the account at addr on the main chain head state.
func (bc *Blockchain) GetAccount(addr common.Address) (ledger.Account, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	var acc ledger.Account
	err := bc.store.View(func(tx *bolt.Tx) error {
		var err error
		acc, err = ledger.New(tx, bc.rules).GetAccount(addr)
		return err
	})
	return acc, err
}

// Snapshot runs fn over a consistent read-only view of the ledger and
// chain store, holding the read lock for the duration.
func (bc *Blockchain) Snapshot(fn func(s *ledger.State, cs *chainstore.Store) error) error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.View(func(tx *bolt.Tx) error {
		return fn(ledger.New(tx, bc.rules), chainstore.New(tx))
	})
}

// Speculate runs fn against a write transaction that is always rolled
// back. The read lock is held, so the head cannot move underneath fn;
// the rollback guarantees nothing fn does becomes durable.
func (bc *Blockchain) Speculate(fn func(s *ledger.State, cs *chainstore.Store) error) error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.store.Speculate(func(tx *bolt.Tx) error {
		return fn(ledger.New(tx, bc.rules), chainstore.New(tx))
	})
}

// Assignment returns the slot assignment governing the given height on
// the main chain.
func (bc *Blockchain) Assignment(height idx.Block) (*election.Assignment, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	var a *election.Assignment
	err := bc.store.View(func(tx *bolt.Tx) error {
		cs := chainstore.New(tx)
		electionHash, ok := cs.HashAt(bc.rules.ElectionBlockBefore(height))
		if !ok {
			return ErrNotInitialized
		}
		var err error
		a, err = bc.assignmentByHash(cs, electionHash)
		return err
	})
	return a, err
}

// assignmentFor resolves the slot assignment governing block number
// `height` on the branch ending at parent. The governing election block
// may sit off the main chain, so the walk follows parent links.
func (bc *Blockchain) assignmentFor(cs *chainstore.Store, parent inter.Block, height idx.Block) (*election.Assignment, error) {
	electionHeight := bc.rules.ElectionBlockBefore(height)
	cursor := parent
	for cursor.Number() > electionHeight {
		b, err := cs.Block(cursor.ParentHash())
		if err != nil {
			return nil, err
		}
		cursor = b
	}
	if cursor.Number() != electionHeight {
		return nil, ErrUnknownParent
	}
	return bc.assignmentByHash(cs, cursor.Hash())
}

func (bc *Blockchain) assignmentByHash(cs *chainstore.Store, electionHash common.Hash) (*election.Assignment, error) {
	if a, ok := bc.assignments[electionHash]; ok {
		return a, nil
	}
	b, err := cs.Block(electionHash)
	if err != nil {
		return nil, err
	}
	macro, ok := b.(*inter.MacroBlock)
	if !ok || !macro.IsElection {
		return nil, ErrInvalidBlock
	}
	seed := macro.Seed()
	a := election.NewAssignment(seed.Entropy(), macro.Body.Validators)
	bc.assignments[electionHash] = a
	return a, nil
}
