// Package testutil spins up single-validator fake chains for tests:
// a genesis-applied store, a blockchain and a producer wired to the
// deterministic fake validator key, plus signing helpers for view
// changes and macro justifications.
package testutil

import (
	"crypto/ecdsa"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/peregrinenet/go-peregrine/blockchain"
	"github.com/peregrinenet/go-peregrine/genesis"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/peregrine"
	"github.com/peregrinenet/go-peregrine/producer"
)

// Env is a running single-validator fake chain.
type Env struct {
	Rules    peregrine.Rules
	Store    *kvstore.Store
	Chain    *blockchain.Blockchain
	Producer *producer.Producer
	Key      *ecdsa.PrivateKey
	Genesis  *inter.MacroBlock
}

// NewEnv opens a fresh fake chain with one validator holding all slots.
func NewEnv(t testing.TB) *Env {
	t.Helper()
	rules := peregrine.FakeNetRules()

	store, err := kvstore.Open(filepath.Join(t.TempDir(), "chain.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	g := genesis.FakeGenesis(1, rules)
	genesisBlock, err := g.Apply(store)
	require.NoError(t, err)

	chain, err := blockchain.New(store, rules)
	require.NoError(t, err)

	key := genesis.FakeKey(1)
	return &Env{
		Rules:    rules,
		Store:    store,
		Chain:    chain,
		Producer: producer.New(chain, key),
		Key:      key,
		Genesis:  genesisBlock,
	}
}

// BlockTime returns a timestamp safely after the current head.
func (e *Env) BlockTime() inter.Timestamp {
	return e.Chain.Head().Time() + 1000
}

// SignViewChange builds a quorum view-change proof for (number, view)
// on top of prevSeed, signed by the single fake validator.
func (e *Env) SignViewChange(t testing.TB, number idx.Block, view uint32, prevSeed inter.VrfSeed) *inter.ViewChangeProof {
	t.Helper()
	vc := &inter.ViewChange{Number: number, NewView: view, PrevSeed: prevSeed}
	sig, err := crypto.Sign(vc.SigningDigest().Bytes(), e.Key)
	require.NoError(t, err)
	proof := &inter.ViewChangeProof{
		Signers:    []idx.ValidatorID{1},
		Signatures: []inter.Signature{inter.BytesToSignature(sig)},
	}
	return proof
}

// SignMacroBlock fills a proposal's justification with a quorum
// aggregate from the single fake validator.
func (e *Env) SignMacroBlock(t testing.TB, b *inter.MacroBlock) {
	t.Helper()
	digest := inter.MacroSigningDigest(b.Header.Hash(), b.Justification.Round)
	sig, err := crypto.Sign(digest.Bytes(), e.Key)
	require.NoError(t, err)
	b.Justification.Signers = []idx.ValidatorID{1}
	b.Justification.Signatures = []inter.Signature{inter.BytesToSignature(sig)}
}

// ProduceMicro builds, signs and pushes one micro block carrying the
// given payload, requiring the expected push result.
func (e *Env) ProduceMicro(t testing.TB, txs []*inter.Transaction) *inter.MicroBlock {
	t.Helper()
	b, err := e.Producer.NextMicroBlock(e.BlockTime(), 0, nil, nil, txs, nil)
	require.NoError(t, err)
	res, err := e.Chain.PushBlock(b)
	require.NoError(t, err)
	require.Equal(t, blockchain.PushExtended, res)
	return b
}

// ProduceMacro builds, signs and pushes the macro block closing the
// current batch.
func (e *Env) ProduceMacro(t testing.TB) *inter.MacroBlock {
	t.Helper()
	b, err := e.Producer.NextMacroBlockProposal(e.BlockTime(), 0, nil)
	require.NoError(t, err)
	e.SignMacroBlock(t, b)
	res, err := e.Chain.PushBlock(b)
	require.NoError(t, err)
	require.Equal(t, blockchain.PushExtended, res)
	return b
}

// FillBatch produces micro blocks up to the next macro height and then
// the macro block itself.
func (e *Env) FillBatch(t testing.TB) {
	t.Helper()
	for {
		next := e.Chain.Head().Number() + 1
		if e.Rules.IsMacroBlockAt(next) {
			e.ProduceMacro(t)
			return
		}
		e.ProduceMicro(t, nil)
	}
}

// SignedTransfer builds a basic signed transfer on this network.
func (e *Env) SignedTransfer(t testing.TB, key *ecdsa.PrivateKey, to common.Address, value, fee inter.Coin, validityStart idx.Block) *inter.Transaction {
	t.Helper()
	tx := &inter.Transaction{
		Sender:              crypto.PubkeyToAddress(key.PublicKey),
		Recipient:           to,
		Value:               value,
		Fee:                 fee,
		ValidityStartHeight: validityStart,
		NetworkID:           e.Rules.NetworkID,
	}
	require.NoError(t, tx.Sign(key))
	return tx
}
