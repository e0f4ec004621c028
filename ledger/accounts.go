package ledger

import (
	"bytes"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/common"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// State is the ledger bound to one bolt transaction. A State built on a
// read-only transaction serves queries; Commit and Revert require a
// write transaction. The zero value is not usable.
type State struct {
	tree  *tree
	rules peregrine.Rules
}

// New binds a ledger state to a bolt transaction.
func New(tx *bolt.Tx, rules peregrine.Rules) *State {
	return &State{tree: newTree(tx), rules: rules}
}

// Root returns the merkle root over the whole account state.
func (s *State) Root() common.Hash {
	return s.tree.Root()
}

// GetAccount returns the account at addr, or nil if none exists.
func (s *State) GetAccount(addr common.Address) (Account, error) {
	raw := s.tree.get(accountKey(addr))
	if raw == nil {
		return nil, nil
	}
	return deserializeAccount(raw)
}

// GetValidator returns the validator record, or nil if not registered.
func (s *State) GetValidator(id idx.ValidatorID) (*ValidatorRecord, error) {
	raw := s.tree.get(validatorKey(id))
	if raw == nil {
		return nil, nil
	}
	return deserializeValidator(raw)
}

// GetStaker returns the staker record, or nil if not staking.
func (s *State) GetStaker(addr common.Address) (*StakerRecord, error) {
	raw := s.tree.get(stakerKey(addr))
	if raw == nil {
		return nil, nil
	}
	return deserializeStaker(raw)
}

// Validators returns all validator records in ascending ID order.
func (s *State) Validators() ([]*ValidatorRecord, error) {
	prefix := append(append([]byte{}, peregrine.StakingContractAddress[:]...), keyTagValidator)
	var out []*ValidatorRecord
	c := s.tree.bucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		rec, err := deserializeValidator(v)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Stakers returns all staker records in bolt key order.
func (s *State) Stakers() ([]*StakerRecord, error) {
	prefix := append(append([]byte{}, peregrine.StakingContractAddress[:]...), keyTagStaker)
	var out []*StakerRecord
	c := s.tree.bucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		rec, err := deserializeStaker(v)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Commit applies a block's transactions in order, then its inherents in
// order, and returns the receipt log needed to undo it. Any error
// leaves the bolt transaction dirty; the caller must discard it.
func (s *State) Commit(txs []*inter.Transaction, inherents []*inter.Inherent, height idx.Block, time inter.Timestamp) (ReceiptLog, error) {
	log := make(ReceiptLog, 0, len(txs)+len(inherents))
	for i, tx := range txs {
		op := &session{t: s.tree}
		if err := s.applyTransaction(op, tx, height, time); err != nil {
			return nil, err
		}
		log = append(log, &Receipt{Kind: OpTransaction, Index: uint32(i), Entries: op.entries})
	}
	for i, inh := range inherents {
		op := &session{t: s.tree}
		if err := s.applyInherent(op, inh, height, time); err != nil {
			return nil, err
		}
		log = append(log, &Receipt{Kind: OpInherent, Index: uint32(i), Entries: op.entries})
	}
	return log, nil
}

// Revert undoes a previously committed block, strictly LIFO over the
// receipt log. The transaction and inherent slices must be the ones the
// log was produced for; mismatches return ErrInvalidReceipt.
func (s *State) Revert(txs []*inter.Transaction, inherents []*inter.Inherent, height idx.Block, time inter.Timestamp, log ReceiptLog) error {
	if len(log) != len(txs)+len(inherents) {
		return peregrine.ErrInvalidReceipt
	}
	for i := len(log) - 1; i >= 0; i-- {
		r := log[i]
		if i < len(txs) {
			if r.Kind != OpTransaction || r.Index != uint32(i) {
				return peregrine.ErrInvalidReceipt
			}
		} else {
			if r.Kind != OpInherent || r.Index != uint32(i-len(txs)) {
				return peregrine.ErrInvalidReceipt
			}
		}
		for j := len(r.Entries) - 1; j >= 0; j-- {
			e := &r.Entries[j]
			if e.Existed {
				if err := s.tree.put(e.Key, e.Prev); err != nil {
					return err
				}
			} else {
				if err := s.tree.delete(e.Key); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// InitAccount writes an account directly, without receipts. Genesis
// only.
func (s *State) InitAccount(addr common.Address, acc Account) error {
	return s.tree.put(accountKey(addr), serializeAccount(acc))
}

// InitValidator writes a validator record directly. Genesis only.
func (s *State) InitValidator(v *ValidatorRecord) error {
	return s.tree.put(validatorKey(v.ID), serializeValidator(v))
}

// InitStaker writes a staker record directly. Genesis only.
func (s *State) InitStaker(st *StakerRecord) error {
	return s.tree.put(stakerKey(st.Address), serializeStaker(st))
}

// session collects the undo entries of a single operation. Writes go
// through it so the prior value of every touched key is captured.
type session struct {
	t       *tree
	entries []undoEntry
}

func (op *session) put(key, value []byte) error {
	op.snapshot(key)
	return op.t.put(key, value)
}

func (op *session) delete(key []byte) error {
	op.snapshot(key)
	return op.t.delete(key)
}

func (op *session) snapshot(key []byte) {
	prev := op.t.get(key)
	k := make([]byte, len(key))
	copy(k, key)
	op.entries = append(op.entries, undoEntry{Key: k, Existed: prev != nil, Prev: prev})
}
