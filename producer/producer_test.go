package producer_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/peregrinenet/go-peregrine/blockchain"
	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/genesis"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/ledger"
	"github.com/peregrinenet/go-peregrine/producer"
	"github.com/peregrinenet/go-peregrine/testutil"
)

func chainRoot(t *testing.T, env *testutil.Env) common.Hash {
	t.Helper()
	var root common.Hash
	require.NoError(t, env.Chain.Snapshot(func(s *ledger.State, cs *chainstore.Store) error {
		root = s.Root()
		return nil
	}))
	return root
}

func TestProductionIsSpeculative(t *testing.T) {
	require := require.New(t)
	env := testutil.NewEnv(t)

	key := genesis.FakeKey(1)
	to := crypto.PubkeyToAddress(genesis.FakeKey(9).PublicKey)
	tx := env.SignedTransfer(t, key, to, 500, 5, 0)

	before := chainRoot(t, env)
	b, err := env.Producer.NextMicroBlock(env.BlockTime(), 0, nil, nil, []*inter.Transaction{tx}, nil)
	require.NoError(err)
	require.Len(b.Body.Transactions, 1)

	// Building the block must not have touched persistent state.
	require.Equal(before, chainRoot(t, env))

	// The computed state root becomes real only through a push.
	res, err := env.Chain.PushBlock(b)
	require.NoError(err)
	require.Equal(blockchain.PushExtended, res)
	require.Equal(b.StateRoot(), chainRoot(t, env))
}

func TestFailingTransactionsExcluded(t *testing.T) {
	require := require.New(t)
	env := testutil.NewEnv(t)

	funded := genesis.FakeKey(1)
	broke := genesis.FakeKey(42)
	to := crypto.PubkeyToAddress(genesis.FakeKey(9).PublicKey)

	good := env.SignedTransfer(t, funded, to, 100, 1, 0)
	bad := env.SignedTransfer(t, broke, to, 100, 1, 0)

	b, err := env.Producer.NextMicroBlock(env.BlockTime(), 0, nil, nil, []*inter.Transaction{bad, good}, nil)
	require.NoError(err)
	require.Len(b.Body.Transactions, 1)
	require.Equal(good.Hash(), b.Body.Transactions[0].Hash())

	res, err := env.Chain.PushBlock(b)
	require.NoError(err)
	require.Equal(blockchain.PushExtended, res)
}

func TestOversizedBodyTruncated(t *testing.T) {
	require := require.New(t)
	env := testutil.NewEnv(t)

	key := genesis.FakeKey(1)
	to := crypto.PubkeyToAddress(genesis.FakeKey(9).PublicKey)

	// Each transaction drags ~40KB of payload; only two fit the body
	// budget.
	var txs []*inter.Transaction
	for i := 0; i < 4; i++ {
		tx := env.SignedTransfer(t, key, to, 10, 0, 0)
		tx.Data = make([]byte, 40*1024)
		tx.Data[0] = byte(i + 1)
		require.NoError(tx.Sign(key))
		txs = append(txs, tx)
	}

	b, err := env.Producer.NextMicroBlock(env.BlockTime(), 0, nil, nil, txs, nil)
	require.NoError(err)
	require.Len(b.Body.Transactions, 2)
	require.LessOrEqual(b.Body.Size(), env.Rules.Blocks.MaxBodySize)

	res, err := env.Chain.PushBlock(b)
	require.NoError(err)
	require.Equal(blockchain.PushExtended, res)
}

func TestWrongHeightRejected(t *testing.T) {
	require := require.New(t)
	env := testutil.NewEnv(t)

	// Head at 7: next height is a macro height on the fake net.
	for i := 0; i < 7; i++ {
		env.ProduceMicro(t, nil)
	}

	_, err := env.Producer.NextMicroBlock(env.BlockTime(), 0, nil, nil, nil, nil)
	require.Equal(producer.ErrWrongHeight, err)

	proposal, err := env.Producer.NextMacroBlockProposal(env.BlockTime(), 0, nil)
	require.NoError(err)
	require.False(proposal.IsElection)
	require.Empty(proposal.Body.Validators)
	require.Equal(env.Chain.Head().StateRoot(), proposal.StateRoot())

	// And the other way around at a micro height.
	env.SignMacroBlock(t, proposal)
	res, err := env.Chain.PushBlock(proposal)
	require.NoError(err)
	require.Equal(blockchain.PushExtended, res)

	_, err = env.Producer.NextMacroBlockProposal(env.BlockTime(), 0, nil)
	require.Equal(producer.ErrWrongHeight, err)
}

func TestElectionProposalCarriesValidators(t *testing.T) {
	require := require.New(t)
	env := testutil.NewEnv(t)

	for batch := 0; batch < 3; batch++ {
		env.FillBatch(t)
	}
	for env.Chain.Head().Number() < 31 {
		env.ProduceMicro(t, nil)
	}

	proposal, err := env.Producer.NextMacroBlockProposal(env.BlockTime(), 0, nil)
	require.NoError(err)
	require.True(proposal.IsElection)
	require.NotEmpty(proposal.Body.Validators)

	var total uint32
	for _, v := range proposal.Body.Validators {
		total += uint32(v.Slots)
	}
	require.Equal(env.Rules.Epochs.Slots, total)
}
