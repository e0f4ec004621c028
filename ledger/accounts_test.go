package ledger

import (
	"crypto/ecdsa"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/inter/validatorpk"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

type ledgerTest struct {
	store *kvstore.Store
	rules peregrine.Rules

	senderKey    *ecdsa.PrivateKey
	validatorKey *ecdsa.PrivateKey
}

func newLedgerTest(t *testing.T) *ledgerTest {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	lt := &ledgerTest{
		store:        store,
		rules:        peregrine.FakeNetRules(),
		senderKey:    newKey(t, 1),
		validatorKey: newKey(t, 2),
	}

	// Genesis: a funded sender, the staking contract and one validator.
	err = store.Update(func(tx *bolt.Tx) error {
		s := New(tx, lt.rules)
		if err := s.InitAccount(lt.senderAddr(), &BasicAccount{Bal: 1_000_000_000}); err != nil {
			return err
		}
		deposit := lt.rules.Economy.MinValidatorDeposit
		if err := s.InitAccount(peregrine.StakingContractAddress, &StakingAccount{Bal: deposit}); err != nil {
			return err
		}
		return s.InitValidator(&ValidatorRecord{
			ID:            1,
			PubKey:        validatorpk.FromECDSA(&lt.validatorKey.PublicKey),
			RewardAddress: crypto.PubkeyToAddress(lt.validatorKey.PublicKey),
			Deposit:       deposit,
		})
	})
	require.NoError(t, err)
	return lt
}

func newKey(t *testing.T, seed byte) *ecdsa.PrivateKey {
	t.Helper()
	b := make([]byte, 32)
	b[31] = seed
	key, err := crypto.ToECDSA(b)
	require.NoError(t, err)
	return key
}

func (lt *ledgerTest) senderAddr() common.Address {
	return crypto.PubkeyToAddress(lt.senderKey.PublicKey)
}

func (lt *ledgerTest) signedTx(t *testing.T, tx *inter.Transaction, key *ecdsa.PrivateKey) *inter.Transaction {
	t.Helper()
	tx.NetworkID = lt.rules.NetworkID
	require.NoError(t, tx.Sign(key))
	return tx
}

// update runs fn in a write transaction and commits it.
func (lt *ledgerTest) update(t *testing.T, fn func(s *State) error) {
	t.Helper()
	require.NoError(t, lt.store.Update(func(tx *bolt.Tx) error {
		return fn(New(tx, lt.rules))
	}))
}

func (lt *ledgerTest) root(t *testing.T) common.Hash {
	t.Helper()
	var root common.Hash
	require.NoError(t, lt.store.View(func(tx *bolt.Tx) error {
		root = New(tx, lt.rules).Root()
		return nil
	}))
	return root
}

func TestBasicTransferApplyRevert(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	recipient := crypto.PubkeyToAddress(newKey(t, 3).PublicKey)
	tx := lt.signedTx(t, &inter.Transaction{
		Sender:    lt.senderAddr(),
		Recipient: recipient,
		Value:     500,
		Fee:       10,
	}, lt.senderKey)

	before := lt.root(t)
	var log ReceiptLog
	lt.update(t, func(s *State) error {
		var err error
		log, err = s.Commit([]*inter.Transaction{tx}, nil, 5, 0)
		return err
	})
	require.Len(log, 1)

	lt.update(t, func(s *State) error {
		sender, err := s.GetAccount(lt.senderAddr())
		require.NoError(err)
		require.Equal(inter.Coin(1_000_000_000-510), sender.Balance())
		rcpt, err := s.GetAccount(recipient)
		require.NoError(err)
		require.Equal(inter.Coin(500), rcpt.Balance())
		return nil
	})
	require.NotEqual(before, lt.root(t))

	lt.update(t, func(s *State) error {
		return s.Revert([]*inter.Transaction{tx}, nil, 5, 0, log)
	})
	require.Equal(before, lt.root(t))
}

func TestInsufficientFunds(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	tx := lt.signedTx(t, &inter.Transaction{
		Sender:    lt.senderAddr(),
		Recipient: crypto.PubkeyToAddress(newKey(t, 3).PublicKey),
		Value:     2_000_000_000,
		Fee:       1,
	}, lt.senderKey)

	err := lt.store.Update(func(btx *bolt.Tx) error {
		_, err := New(btx, lt.rules).Commit([]*inter.Transaction{tx}, nil, 5, 0)
		return err
	})
	var funds *peregrine.InsufficientFundsError
	require.ErrorAs(err, &funds)
	require.Equal(inter.Coin(1_000_000_000), funds.Balance)
	require.Equal(inter.Coin(2_000_000_001), funds.Needed)
}

func TestUnknownSenderRejected(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	stranger := newKey(t, 9)
	tx := lt.signedTx(t, &inter.Transaction{
		Sender:    crypto.PubkeyToAddress(stranger.PublicKey),
		Recipient: lt.senderAddr(),
		Value:     1,
	}, stranger)

	err := lt.store.Update(func(btx *bolt.Tx) error {
		_, err := New(btx, lt.rules).Commit([]*inter.Transaction{tx}, nil, 5, 0)
		return err
	})
	var missing *peregrine.NonExistentAddressError
	require.ErrorAs(err, &missing)
	require.Equal(crypto.PubkeyToAddress(stranger.PublicKey), missing.Address)
}

func TestCreateStakerApplyRevert(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	tx := lt.signedTx(t, &inter.Transaction{
		Sender:        lt.senderAddr(),
		Recipient:     peregrine.StakingContractAddress,
		RecipientType: inter.AccountTypeStaking,
		Value:         100_000_000,
		Fee:           0,
		Data:          StakingData(StakeOpCreateStaker, &CreateStakerData{Delegation: 1}),
	}, lt.senderKey)

	before := lt.root(t)
	var log ReceiptLog
	lt.update(t, func(s *State) error {
		var err error
		log, err = s.Commit([]*inter.Transaction{tx}, nil, 5, 0)
		return err
	})

	lt.update(t, func(s *State) error {
		staker, err := s.GetStaker(lt.senderAddr())
		require.NoError(err)
		require.NotNil(staker)
		require.Equal(inter.Coin(100_000_000), staker.Bal)
		require.Equal(idx.ValidatorID(1), staker.Delegation)

		contract, err := s.GetAccount(peregrine.StakingContractAddress)
		require.NoError(err)
		require.Equal(lt.rules.Economy.MinValidatorDeposit+100_000_000, contract.Balance())
		return nil
	})

	lt.update(t, func(s *State) error {
		return s.Revert([]*inter.Transaction{tx}, nil, 5, 0, log)
	})
	require.Equal(before, lt.root(t))

	lt.update(t, func(s *State) error {
		staker, err := s.GetStaker(lt.senderAddr())
		require.NoError(err)
		require.Nil(staker)
		return nil
	})
}

func TestUnparkApplyRevert(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	// Park validator 1 via a penalize inherent first.
	penalize := &inter.Inherent{
		Type:   inter.InherentPenalize,
		Target: peregrine.StakingContractAddress,
		Data:   ValidatorInherentData(1),
	}
	lt.update(t, func(s *State) error {
		_, err := s.Commit(nil, []*inter.Inherent{penalize}, 5, 0)
		return err
	})

	// Fund the validator's own basic account to pay the unpark fee.
	valAddr := crypto.PubkeyToAddress(lt.validatorKey.PublicKey)
	reward := &inter.Inherent{Type: inter.InherentReward, Target: valAddr, Value: 1000}
	lt.update(t, func(s *State) error {
		_, err := s.Commit(nil, []*inter.Inherent{reward}, 5, 0)
		return err
	})

	unpark := lt.signedTx(t, &inter.Transaction{
		Sender:        valAddr,
		Recipient:     peregrine.StakingContractAddress,
		RecipientType: inter.AccountTypeStaking,
		Value:         0,
		Fee:           10,
		Data:          StakingData(StakeOpUnpark, &UnparkData{ID: 1}),
	}, lt.validatorKey)

	before := lt.root(t)
	var log ReceiptLog
	lt.update(t, func(s *State) error {
		var err error
		log, err = s.Commit([]*inter.Transaction{unpark}, nil, 6, 0)
		return err
	})

	lt.update(t, func(s *State) error {
		v, err := s.GetValidator(1)
		require.NoError(err)
		require.False(v.Parked)
		return nil
	})

	lt.update(t, func(s *State) error {
		return s.Revert([]*inter.Transaction{unpark}, nil, 6, 0, log)
	})
	require.Equal(before, lt.root(t))

	lt.update(t, func(s *State) error {
		v, err := s.GetValidator(1)
		require.NoError(err)
		require.True(v.Parked)
		return nil
	})
}

func TestVestingLockedFunds(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	create := lt.signedTx(t, &inter.Transaction{
		Sender:        lt.senderAddr(),
		RecipientType: inter.AccountTypeVesting,
		Value:         1000,
		Data: mustRLP(t, &VestingCreationData{
			Owner:       lt.senderAddr(),
			Start:       10,
			StepBlocks:  10,
			StepAmount:  100,
			TotalAmount: 1000,
		}),
	}, lt.senderKey)
	create.Recipient = create.ContractCreationAddress()
	// Recipient is part of the signed content, so re-sign.
	require.NoError(create.Sign(lt.senderKey))

	lt.update(t, func(s *State) error {
		_, err := s.Commit([]*inter.Transaction{create}, nil, 5, 0)
		return err
	})

	spend := func(height idx.Block, value inter.Coin) error {
		tx := lt.signedTx(t, &inter.Transaction{
			Sender:     create.Recipient,
			SenderType: inter.AccountTypeVesting,
			Recipient:  lt.senderAddr(),
			Value:      value,
		}, lt.senderKey)
		return lt.store.Update(func(btx *bolt.Tx) error {
			_, err := New(btx, lt.rules).Commit([]*inter.Transaction{tx}, nil, height, 0)
			return err
		})
	}

	// Fully locked before the first step has elapsed.
	var funds *peregrine.InsufficientFundsError
	require.ErrorAs(spend(10, 1), &funds)
	require.Equal(inter.Coin(0), funds.Balance)

	// One step vested at height 20.
	require.NoError(spend(20, 100))
	require.ErrorAs(spend(20, 1), &funds)

	// Everything vested after the last step.
	require.NoError(spend(120, 900))
}

func TestHTLCResolution(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	recipientKey := newKey(t, 4)
	recipient := crypto.PubkeyToAddress(recipientKey.PublicKey)
	preimage := crypto.Keccak256Hash([]byte("secret"))
	root := crypto.Keccak256Hash(preimage[:])

	create := lt.signedTx(t, &inter.Transaction{
		Sender:        lt.senderAddr(),
		RecipientType: inter.AccountTypeHTLC,
		Value:         700,
		Data: mustRLP(t, &HTLCCreationData{
			Sender:    lt.senderAddr(),
			Recipient: recipient,
			HashAlgo:  HashAlgoKeccak,
			HashRoot:  root,
			HashCount: 1,
			Timeout:   100,
		}),
	}, lt.senderKey)
	create.Recipient = create.ContractCreationAddress()
	require.NoError(create.Sign(lt.senderKey))

	lt.update(t, func(s *State) error {
		_, err := s.Commit([]*inter.Transaction{create}, nil, 5, 0)
		return err
	})

	// Timeout resolution is rejected before the timeout.
	early := lt.signedTx(t, &inter.Transaction{
		Sender:     create.Recipient,
		SenderType: inter.AccountTypeHTLC,
		Recipient:  lt.senderAddr(),
		Value:      700,
		Data:       []byte{HTLCResolveTimeout},
	}, lt.senderKey)
	err := lt.store.Update(func(btx *bolt.Tx) error {
		_, err := New(btx, lt.rules).Commit([]*inter.Transaction{early}, nil, 50, 0)
		return err
	})
	require.ErrorIs(err, peregrine.ErrInvalidForSender)

	// Regular resolution with the preimage, signed by the recipient.
	claim := lt.signedTx(t, &inter.Transaction{
		Sender:     create.Recipient,
		SenderType: inter.AccountTypeHTLC,
		Recipient:  recipient,
		Value:      700,
		Data:       append([]byte{HTLCResolveRegular}, preimage[:]...),
	}, recipientKey)
	lt.update(t, func(s *State) error {
		_, err := s.Commit([]*inter.Transaction{claim}, nil, 50, 0)
		return err
	})

	// The drained contract is pruned.
	lt.update(t, func(s *State) error {
		acc, err := s.GetAccount(create.Recipient)
		require.NoError(err)
		require.Nil(acc)
		got, err := s.GetAccount(recipient)
		require.NoError(err)
		require.Equal(inter.Coin(700), got.Balance())
		return nil
	})
}

func TestReceiptLogRoundTrip(t *testing.T) {
	require := require.New(t)
	lt := newLedgerTest(t)

	tx := lt.signedTx(t, &inter.Transaction{
		Sender:    lt.senderAddr(),
		Recipient: crypto.PubkeyToAddress(newKey(t, 3).PublicKey),
		Value:     500,
	}, lt.senderKey)
	reward := &inter.Inherent{Type: inter.InherentReward, Target: lt.senderAddr(), Value: 42}

	var log ReceiptLog
	lt.update(t, func(s *State) error {
		var err error
		log, err = s.Commit([]*inter.Transaction{tx}, []*inter.Inherent{reward}, 5, 0)
		return err
	})

	b, err := MarshalReceipts(log)
	require.NoError(err)
	got, err := UnmarshalReceipts(b)
	require.NoError(err)
	require.Equal(log, got)

	_, err = UnmarshalReceipts(b[:len(b)-1])
	require.Error(err)
}

func mustRLP(t *testing.T, v interface{}) []byte {
	t.Helper()
	b, err := rlp.EncodeToBytes(v)
	require.NoError(t, err)
	return b
}
