package genesis_test

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/genesis"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/ledger"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

func openStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "chain.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestFakeKeyDeterminism(t *testing.T) {
	require := require.New(t)
	require.Equal(genesis.FakeKey(1).D, genesis.FakeKey(1).D)
	require.NotEqual(genesis.FakeKey(1).D, genesis.FakeKey(2).D)
}

func TestApply(t *testing.T) {
	require := require.New(t)
	store := openStore(t)

	rules := peregrine.FakeNetRules()
	g := genesis.FakeGenesis(3, rules)
	b, err := g.Apply(store)
	require.NoError(err)

	require.EqualValues(0, b.Number())
	require.True(b.IsElection)
	require.Equal(g.Seed, b.Seed())
	require.Equal(b.Body.Root(), b.BodyRoot())

	var total uint32
	for _, slot := range b.Body.Validators {
		total += uint32(slot.Slots)
	}
	require.Equal(rules.Epochs.Slots, total)

	require.NoError(store.View(func(tx *bolt.Tx) error {
		cs := chainstore.New(tx)
		head, err := cs.Head()
		require.NoError(err)
		require.Equal(b.Hash(), head.Block.Hash())
		require.EqualValues(1, head.TotalMacro)
		require.True(head.OnMain)

		st := ledger.New(tx, rules)
		require.Equal(b.StateRoot(), st.Root())

		addr := crypto.PubkeyToAddress(genesis.FakeKey(1).PublicKey)
		acc, err := st.GetAccount(addr)
		require.NoError(err)
		require.EqualValues(1_000_000_000_000, acc.Balance())

		contract, err := st.GetAccount(peregrine.StakingContractAddress)
		require.NoError(err)
		require.Equal(3*rules.Economy.MinValidatorDeposit, contract.Balance())

		for id := idx.ValidatorID(1); id <= 3; id++ {
			v, err := st.GetValidator(id)
			require.NoError(err)
			require.Equal(rules.Economy.MinValidatorDeposit, v.Deposit)
		}
		return nil
	}))
}

func TestApplyTwiceRejected(t *testing.T) {
	require := require.New(t)
	store := openStore(t)

	g := genesis.FakeGenesis(1, peregrine.FakeNetRules())
	_, err := g.Apply(store)
	require.NoError(err)
	_, err = g.Apply(store)
	require.Equal(genesis.ErrAlreadyInitialized, err)
}

func TestLoadJSON(t *testing.T) {
	require := require.New(t)

	g := genesis.FakeGenesis(2, peregrine.FakeNetRules())
	raw, err := json.Marshal(g)
	require.NoError(err)

	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(ioutil.WriteFile(path, raw, 0644))

	loaded, err := genesis.LoadJSON(path)
	require.NoError(err)
	require.Equal(g, loaded)

	_, err = genesis.LoadJSON(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(err)
}
