// Package genesis builds and applies the chain's initial state: funded
// accounts, the staking contract with its validator set, and the
// genesis election macro block everything else hangs off.
package genesis

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"io/ioutil"
	"math/rand"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/peregrinenet/go-peregrine/chainstore"
	"github.com/peregrinenet/go-peregrine/election"
	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/inter/validatorpk"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/ledger"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

var ErrAlreadyInitialized = errors.New("store already carries a chain")

// Account is one pre-funded basic account.
type Account struct {
	Address common.Address `json:"address"`
	Balance inter.Coin     `json:"balance"`
}

// Validator is one genesis validator of the staking contract.
type Validator struct {
	ID            idx.ValidatorID    `json:"id"`
	PubKey        validatorpk.PubKey `json:"pubkey"`
	RewardAddress common.Address     `json:"rewardAddress"`
	Deposit       inter.Coin         `json:"deposit"`
}

// Genesis fully describes a new chain.
type Genesis struct {
	Rules      peregrine.Rules `json:"rules"`
	Time       inter.Timestamp `json:"time"`
	Seed       inter.VrfSeed   `json:"seed"`
	Accounts   []Account       `json:"accounts"`
	Validators []Validator     `json:"validators"`
}

// LoadJSON reads a genesis description from a JSON file.
func LoadJSON(path string) (*Genesis, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g := new(Genesis)
	if err := json.Unmarshal(raw, g); err != nil {
		return nil, err
	}
	return g, nil
}

// Apply writes the genesis state and the genesis election block into an
// empty store and returns the genesis block.
func (g *Genesis) Apply(store *kvstore.Store) (*inter.MacroBlock, error) {
	var genesis *inter.MacroBlock
	err := store.Update(func(tx *bolt.Tx) error {
		cs := chainstore.New(tx)
		if _, err := cs.HeadHash(); err != chainstore.ErrNoHead {
			return ErrAlreadyInitialized
		}

		st := ledger.New(tx, g.Rules)
		for _, acc := range g.Accounts {
			if err := st.InitAccount(acc.Address, &ledger.BasicAccount{Bal: acc.Balance}); err != nil {
				return err
			}
		}
		var deposits inter.Coin
		for _, v := range g.Validators {
			if err := st.InitValidator(&ledger.ValidatorRecord{
				ID:            v.ID,
				PubKey:        v.PubKey,
				RewardAddress: v.RewardAddress,
				Deposit:       v.Deposit,
			}); err != nil {
				return err
			}
			deposits += v.Deposit
		}
		if err := st.InitAccount(peregrine.StakingContractAddress, &ledger.StakingAccount{Bal: deposits}); err != nil {
			return err
		}

		candidates, err := election.Candidates(st, 0)
		if err != nil {
			return err
		}
		slots, err := election.SelectValidators(g.Seed.Entropy(), candidates, g.Rules.Epochs.Slots)
		if err != nil {
			return err
		}
		body := &inter.MacroBody{Validators: slots}

		genesis = &inter.MacroBlock{
			Header: inter.Header{
				Version:   peregrine.BlockVersion,
				Number:    0,
				View:      0,
				Time:      g.Time,
				Seed:      g.Seed,
				StateRoot: st.Root(),
				BodyRoot:  body.Root(),
			},
			IsElection:    true,
			Justification: &inter.MacroJustification{},
			Body:          body,
		}

		if err := cs.PutBlock(&chainstore.ChainInfo{Block: genesis, TotalMacro: 1}); err != nil {
			return err
		}
		if err := cs.SetMain(genesis.Hash()); err != nil {
			return err
		}
		return cs.SetHead(genesis.Hash())
	})
	if err != nil {
		return nil, err
	}
	return genesis, nil
}

// FakeKey returns the deterministic private key of fake-network
// validator n.
func FakeKey(n int) *ecdsa.PrivateKey {
	reader := rand.New(rand.NewSource(int64(n)))
	key, err := ecdsa.GenerateKey(crypto.S256(), reader)
	if err != nil {
		panic(err)
	}
	return key
}

// FakeGenesis builds a ready-to-apply fake network with n deterministic
// validators, each funded and registered with the minimum deposit.
func FakeGenesis(n int, rules peregrine.Rules) *Genesis {
	g := &Genesis{
		Rules: rules,
		Time:  0,
	}
	copy(g.Seed[:], crypto.Keccak256([]byte("peregrine/fake/seed"), []byte{rules.NetworkID}))
	for i := 1; i <= n; i++ {
		key := FakeKey(i)
		addr := crypto.PubkeyToAddress(key.PublicKey)
		g.Accounts = append(g.Accounts, Account{
			Address: addr,
			Balance: 1_000_000_000_000,
		})
		g.Validators = append(g.Validators, Validator{
			ID:            idx.ValidatorID(i),
			PubKey:        validatorpk.FromECDSA(&key.PublicKey),
			RewardAddress: addr,
			Deposit:       rules.Economy.MinValidatorDeposit,
		})
	}
	return g
}
