// Package ledger implements the account state machine: typed accounts
// in a merkle-ized bolt bucket, a polymorphic transaction/inherent
// applier, and receipt-based exact revert. All mutations happen inside
// a Commit or Revert call bound to one bolt write transaction; the
// caller owns commit/discard of that transaction.
package ledger

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/inter/validatorpk"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// Account is one entry of the state tree. Concrete types are closed:
// Basic, Vesting, HTLC and the staking contract.
type Account interface {
	Type() inter.AccountType
	Balance() inter.Coin
}

// BasicAccount is a plain balance under a user key.
type BasicAccount struct {
	Bal inter.Coin
}

func (a *BasicAccount) Type() inter.AccountType { return inter.AccountTypeBasic }
func (a *BasicAccount) Balance() inter.Coin     { return a.Bal }

// VestingAccount releases its funds to the owner in fixed steps.
type VestingAccount struct {
	Bal         inter.Coin
	Owner       common.Address
	Start       idx.Block
	StepBlocks  idx.Block
	StepAmount  inter.Coin
	TotalAmount inter.Coin
}

func (a *VestingAccount) Type() inter.AccountType { return inter.AccountTypeVesting }
func (a *VestingAccount) Balance() inter.Coin     { return a.Bal }

// lockedAt returns the portion of TotalAmount still locked at height.
func (a *VestingAccount) lockedAt(height idx.Block) inter.Coin {
	if height < a.Start {
		return a.TotalAmount
	}
	if a.StepBlocks == 0 {
		return 0
	}
	steps := uint64((height - a.Start) / a.StepBlocks)
	if steps == 0 {
		return a.TotalAmount
	}
	vested := uint64(a.StepAmount) * steps
	if vested >= uint64(a.TotalAmount) || vested/steps != uint64(a.StepAmount) {
		return 0
	}
	return a.TotalAmount - inter.Coin(vested)
}

// Hash algorithms accepted by HTLC contracts.
const (
	HashAlgoKeccak uint8 = 1
	HashAlgoSha256 uint8 = 2
)

// HTLCAccount is a hashed time-locked contract. The recipient claims
// with the hash preimage before the timeout, the sender reclaims after.
type HTLCAccount struct {
	Bal         inter.Coin
	Sender      common.Address
	Recipient   common.Address
	HashAlgo    uint8
	HashRoot    common.Hash
	HashCount   uint8
	Timeout     idx.Block
	TotalAmount inter.Coin
}

func (a *HTLCAccount) Type() inter.AccountType { return inter.AccountTypeHTLC }
func (a *HTLCAccount) Balance() inter.Coin     { return a.Bal }

// StakingAccount is the singleton staking contract. Its balance covers
// all validator deposits and staker balances; the individual records
// live under prefixed keys next to it.
type StakingAccount struct {
	Bal inter.Coin
}

func (a *StakingAccount) Type() inter.AccountType { return inter.AccountTypeStaking }
func (a *StakingAccount) Balance() inter.Coin     { return a.Bal }

// ValidatorRecord is one registered validator inside the staking
// contract. Parked validators are excluded from the next election until
// unparked; jailed ones stay out until JailedUntil.
type ValidatorRecord struct {
	ID            idx.ValidatorID
	PubKey        validatorpk.PubKey
	RewardAddress common.Address
	Deposit       inter.Coin
	Parked        bool
	JailedUntil   idx.Block
}

// ActiveAt reports whether the validator is eligible for an election
// held at the given height.
func (v *ValidatorRecord) ActiveAt(height idx.Block) bool {
	return !v.Parked && height >= v.JailedUntil
}

// StakerRecord is delegated stake bound to one validator.
type StakerRecord struct {
	Address    common.Address
	Delegation idx.ValidatorID
	Bal        inter.Coin
}

// Serialization envelope: one type byte followed by the RLP encoding of
// the concrete struct. The type byte doubles as the dispatch tag when
// loading.
func serializeAccount(acc Account) []byte {
	payload, err := rlp.EncodeToBytes(acc)
	if err != nil {
		panic(err) // account structs are always encodable
	}
	return append([]byte{uint8(acc.Type())}, payload...)
}

func deserializeAccount(b []byte) (Account, error) {
	if len(b) < 1 {
		return nil, peregrine.ErrInvalidReceipt
	}
	var acc Account
	switch inter.AccountType(b[0]) {
	case inter.AccountTypeBasic:
		acc = new(BasicAccount)
	case inter.AccountTypeVesting:
		acc = new(VestingAccount)
	case inter.AccountTypeHTLC:
		acc = new(HTLCAccount)
	case inter.AccountTypeStaking:
		acc = new(StakingAccount)
	default:
		return nil, peregrine.ErrInvalidForRecipient
	}
	if err := rlp.DecodeBytes(b[1:], acc); err != nil {
		return nil, err
	}
	return acc, nil
}

func serializeValidator(v *ValidatorRecord) []byte {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic(err)
	}
	return b
}

func deserializeValidator(b []byte) (*ValidatorRecord, error) {
	v := new(ValidatorRecord)
	if err := rlp.DecodeBytes(b, v); err != nil {
		return nil, err
	}
	return v, nil
}

func serializeStaker(s *StakerRecord) []byte {
	b, err := rlp.EncodeToBytes(s)
	if err != nil {
		panic(err)
	}
	return b
}

func deserializeStaker(b []byte) (*StakerRecord, error) {
	s := new(StakerRecord)
	if err := rlp.DecodeBytes(b, s); err != nil {
		return nil, err
	}
	return s, nil
}
