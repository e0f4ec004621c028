// Package producer constructs candidate blocks. It never persists
// anything: state roots come from a speculative ledger run that is
// always rolled back, and the push pipeline remains the only writer.
package producer

import (
	"crypto/ecdsa"
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/peregrinenet/go-peregrine/blockchain"
	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/election"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/ledger"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

var (
	ErrWrongHeight  = errors.New("head height does not match requested block kind")
	ErrNotSlotOwner = errors.New("local key does not own the producer slot")
)

// Producer builds blocks for one validator key on top of a chain.
type Producer struct {
	chain *blockchain.Blockchain
	key   *ecdsa.PrivateKey
}

func New(chain *blockchain.Blockchain, key *ecdsa.PrivateKey) *Producer {
	return &Producer{chain: chain, key: key}
}

func (p *Producer) address() common.Address {
	return crypto.PubkeyToAddress(p.key.PublicKey)
}

// checkSlot verifies the local key owns the producer slot of
// (number, view) under the given assignment.
func (p *Producer) checkSlot(a *election.Assignment, number idx.Block, view uint32) error {
	slot := a.Slot(a.OwnerAt(number, view))
	if slot == nil {
		return ErrNotSlotOwner
	}
	addr, err := slot.PubKey.Address()
	if err != nil {
		return err
	}
	if addr != p.address() {
		return ErrNotSlotOwner
	}
	return nil
}

// NextMicroBlock builds and signs the next micro block on the current
// head. Transactions that fail to apply or would overflow the body
// budget are dropped, never fatal; the state root is computed by a
// speculative ledger run over exactly the included operations.
func (p *Producer) NextMicroBlock(
	timestamp inter.Timestamp,
	view uint32,
	viewChangeProof *inter.ViewChangeProof,
	forkProofs []*inter.ForkProof,
	transactions []*inter.Transaction,
	extraData []byte,
) (*inter.MicroBlock, error) {
	rules := p.chain.Rules()
	head := p.chain.Head()
	number := head.Number() + 1
	if rules.IsMacroBlockAt(number) {
		return nil, ErrWrongHeight
	}
	a, err := p.chain.Assignment(number)
	if err != nil {
		return nil, err
	}
	if err := p.checkSlot(a, number, view); err != nil {
		return nil, err
	}

	body := &inter.MicroBody{ForkProofs: forkProofs}
	budget := rules.Blocks.MaxBodySize
	for _, fp := range forkProofs {
		budget -= fp.Size()
	}

	var stateRoot common.Hash
	err = p.chain.Speculate(func(st *ledger.State, cs *chainstore.Store) error {
		// Filter one transaction at a time so a single bad transaction
		// cannot poison the whole block.
		for _, tx := range transactions {
			if budget < tx.Size() {
				continue
			}
			if err := tx.Verify(rules.NetworkID); err != nil {
				continue
			}
			if !tx.IsValidAt(number, rules.Economy.TxValidityWindow) {
				continue
			}
			if _, err := st.Commit([]*inter.Transaction{tx}, nil, number, timestamp); err != nil {
				log.Debug("Excluding transaction", "tx", tx.Hash(), "err", err)
				continue
			}
			body.Transactions = append(body.Transactions, tx)
			budget -= tx.Size()
		}

		// The inherents depend on the final transaction set (fees), so
		// they go in last, in pipeline order.
		draft := &inter.MicroBlock{
			Header: inter.Header{Number: number, View: view},
			Body:   body,
		}
		inherents := p.chain.DeriveInherents(draft, a)
		if _, err := st.Commit(nil, inherents, number, timestamp); err != nil {
			return err
		}
		stateRoot = st.Root()
		return nil
	})
	if err != nil {
		return nil, err
	}

	seed, err := inter.NextSeed(head.Seed(), p.key)
	if err != nil {
		return nil, err
	}
	block := &inter.MicroBlock{
		Header: inter.Header{
			Version:     peregrine.BlockVersion,
			Number:      number,
			View:        view,
			Time:        timestamp,
			ParentHash:  head.Hash(),
			Seed:        seed,
			ExtraData:   extraData,
			StateRoot:   stateRoot,
			BodyRoot:    body.Root(),
			HistoryRoot: inter.NextHistoryRoot(head),
		},
		Body: body,
	}

	sig, err := crypto.Sign(block.Header.Hash().Bytes(), p.key)
	if err != nil {
		return nil, err
	}
	justification := &inter.MicroJustification{ViewChangeProof: viewChangeProof}
	copy(justification.Signature[:], sig)
	block.Justification = justification
	return block, nil
}

// NextMacroBlockProposal builds the unsigned macro block proposal for
// the current height. Signature aggregation happens outside; the
// returned justification carries only the round.
func (p *Producer) NextMacroBlockProposal(
	timestamp inter.Timestamp,
	round uint32,
	extraData []byte,
) (*inter.MacroBlock, error) {
	rules := p.chain.Rules()
	head := p.chain.Head()
	number := head.Number() + 1
	if !rules.IsMacroBlockAt(number) {
		return nil, ErrWrongHeight
	}
	a, err := p.chain.Assignment(number)
	if err != nil {
		return nil, err
	}
	if err := p.checkSlot(a, number, round); err != nil {
		return nil, err
	}

	seed, err := inter.NextSeed(head.Seed(), p.key)
	if err != nil {
		return nil, err
	}

	isElection := rules.IsElectionBlockAt(number)
	body := &inter.MacroBody{}
	var stateRoot common.Hash
	err = p.chain.Snapshot(func(st *ledger.State, cs *chainstore.Store) error {
		// Macro blocks leave the ledger untouched.
		stateRoot = st.Root()
		if !isElection {
			return nil
		}
		candidates, err := election.Candidates(st, number)
		if err != nil {
			return err
		}
		body.Validators, err = election.SelectValidators(seed.Entropy(), candidates, rules.Epochs.Slots)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &inter.MacroBlock{
		Header: inter.Header{
			Version:     peregrine.BlockVersion,
			Number:      number,
			View:        0,
			Time:        timestamp,
			ParentHash:  head.Hash(),
			Seed:        seed,
			ExtraData:   extraData,
			StateRoot:   stateRoot,
			BodyRoot:    body.Root(),
			HistoryRoot: inter.NextHistoryRoot(head),
		},
		IsElection:    isElection,
		Justification: &inter.MacroJustification{Round: round},
		Body:          body,
	}, nil
}
