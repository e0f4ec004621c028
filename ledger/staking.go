package ledger

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/inter/validatorpk"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// StakingOp selects a staking contract sub-operation. It is the first
// byte of the transaction data; the rest is the RLP payload.
type StakingOp uint8

const (
	StakeOpCreateValidator StakingOp = 1
	StakeOpCreateStaker    StakingOp = 2
	StakeOpStake           StakingOp = 3
	StakeOpUnstake         StakingOp = 4
	StakeOpUnpark          StakingOp = 5
)

type CreateValidatorData struct {
	ID            idx.ValidatorID
	PubKey        validatorpk.PubKey
	RewardAddress common.Address
}

type CreateStakerData struct {
	Delegation idx.ValidatorID
}

type StakeData struct {
	Staker common.Address
}

type UnparkData struct {
	ID idx.ValidatorID
}

// StakingData builds the wire form of a staking sub-operation: the op
// byte followed by the RLP payload. A nil payload yields just the op
// byte.
func StakingData(opcode StakingOp, payload interface{}) []byte {
	out := []byte{uint8(opcode)}
	if payload == nil {
		return out
	}
	b, err := rlp.EncodeToBytes(payload)
	if err != nil {
		panic(err)
	}
	return append(out, b...)
}

func (s *State) loadStakingContract(op *session) (*StakingAccount, error) {
	raw := op.t.get(accountKey(peregrine.StakingContractAddress))
	if raw == nil {
		return nil, &peregrine.NonExistentAddressError{Address: peregrine.StakingContractAddress}
	}
	acc, err := deserializeAccount(raw)
	if err != nil {
		return nil, err
	}
	contract, ok := acc.(*StakingAccount)
	if !ok {
		return nil, peregrine.ErrInvalidForRecipient
	}
	return contract, nil
}

func (s *State) putStakingContract(op *session, contract *StakingAccount) error {
	return op.put(accountKey(peregrine.StakingContractAddress), serializeAccount(contract))
}

func (s *State) applyStakingIncoming(op *session, tx *inter.Transaction, height idx.Block, time inter.Timestamp) error {
	if tx.Recipient != peregrine.StakingContractAddress {
		return peregrine.ErrInvalidForRecipient
	}
	contract, err := s.loadStakingContract(op)
	if err != nil {
		return err
	}
	if len(tx.Data) < 1 {
		return peregrine.ErrInvalidForRecipient
	}
	signer, err := tx.Signer()
	if err != nil {
		return err
	}
	payload := tx.Data[1:]

	switch StakingOp(tx.Data[0]) {
	case StakeOpCreateValidator:
		var data CreateValidatorData
		if err := rlp.DecodeBytes(payload, &data); err != nil {
			return peregrine.ErrInvalidForRecipient
		}
		addr, err := data.PubKey.Address()
		if err != nil {
			return peregrine.ErrInvalidForRecipient
		}
		if signer != addr {
			return peregrine.ErrInvalidForRecipient
		}
		if tx.Value < s.rules.Economy.MinValidatorDeposit {
			return peregrine.ErrInvalidCoinValue
		}
		if op.t.get(validatorKey(data.ID)) != nil {
			return peregrine.ErrAccountAlreadyExists
		}
		rec := &ValidatorRecord{
			ID:            data.ID,
			PubKey:        data.PubKey,
			RewardAddress: data.RewardAddress,
			Deposit:       tx.Value,
		}
		if err := op.put(validatorKey(data.ID), serializeValidator(rec)); err != nil {
			return err
		}
		return s.creditContract(op, contract, tx.Value)

	case StakeOpCreateStaker:
		var data CreateStakerData
		if err := rlp.DecodeBytes(payload, &data); err != nil {
			return peregrine.ErrInvalidForRecipient
		}
		if tx.Value < s.rules.Economy.MinStake {
			return peregrine.ErrInvalidCoinValue
		}
		if op.t.get(stakerKey(signer)) != nil {
			return peregrine.ErrAccountAlreadyExists
		}
		if op.t.get(validatorKey(data.Delegation)) == nil {
			return peregrine.ErrInvalidForRecipient
		}
		rec := &StakerRecord{Address: signer, Delegation: data.Delegation, Bal: tx.Value}
		if err := op.put(stakerKey(signer), serializeStaker(rec)); err != nil {
			return err
		}
		return s.creditContract(op, contract, tx.Value)

	case StakeOpStake:
		var data StakeData
		if err := rlp.DecodeBytes(payload, &data); err != nil {
			return peregrine.ErrInvalidForRecipient
		}
		raw := op.t.get(stakerKey(data.Staker))
		if raw == nil {
			return peregrine.ErrInvalidForRecipient
		}
		rec, err := deserializeStaker(raw)
		if err != nil {
			return err
		}
		bal, ok := rec.Bal.SafeAdd(tx.Value)
		if !ok {
			return peregrine.ErrInvalidCoinValue
		}
		rec.Bal = bal
		if err := op.put(stakerKey(data.Staker), serializeStaker(rec)); err != nil {
			return err
		}
		return s.creditContract(op, contract, tx.Value)

	case StakeOpUnpark:
		var data UnparkData
		if err := rlp.DecodeBytes(payload, &data); err != nil {
			return peregrine.ErrInvalidForRecipient
		}
		if tx.Value != 0 {
			return peregrine.ErrInvalidCoinValue
		}
		raw := op.t.get(validatorKey(data.ID))
		if raw == nil {
			return peregrine.ErrInvalidForRecipient
		}
		rec, err := deserializeValidator(raw)
		if err != nil {
			return err
		}
		addr, err := rec.PubKey.Address()
		if err != nil {
			return err
		}
		if signer != addr || !rec.Parked {
			return peregrine.ErrInvalidForRecipient
		}
		rec.Parked = false
		return op.put(validatorKey(data.ID), serializeValidator(rec))

	default:
		return peregrine.ErrInvalidForRecipient
	}
}

// applyStakingOutgoing handles unstake: value plus fee leave the
// signer's staker record and the contract balance together.
func (s *State) applyStakingOutgoing(op *session, tx *inter.Transaction) error {
	if tx.Sender != peregrine.StakingContractAddress {
		return peregrine.ErrInvalidForSender
	}
	if len(tx.Data) < 1 || StakingOp(tx.Data[0]) != StakeOpUnstake {
		return peregrine.ErrInvalidForSender
	}
	contract, err := s.loadStakingContract(op)
	if err != nil {
		return err
	}
	signer, err := tx.Signer()
	if err != nil {
		return err
	}
	raw := op.t.get(stakerKey(signer))
	if raw == nil {
		return &peregrine.NonExistentAddressError{Address: signer}
	}
	rec, err := deserializeStaker(raw)
	if err != nil {
		return err
	}
	need, ok := tx.Value.SafeAdd(tx.Fee)
	if !ok {
		return peregrine.ErrInvalidCoinValue
	}
	rest, ok := rec.Bal.SafeSub(need)
	if !ok {
		return &peregrine.InsufficientFundsError{Balance: rec.Bal, Needed: need}
	}
	if rest != 0 && rest < s.rules.Economy.MinStake {
		return peregrine.ErrInvalidCoinValue
	}
	if rest == 0 {
		if err := op.delete(stakerKey(signer)); err != nil {
			return err
		}
	} else {
		rec.Bal = rest
		if err := op.put(stakerKey(signer), serializeStaker(rec)); err != nil {
			return err
		}
	}
	contractBal, ok := contract.Bal.SafeSub(need)
	if !ok {
		return peregrine.ErrInvalidCoinValue
	}
	contract.Bal = contractBal
	return s.putStakingContract(op, contract)
}

func (s *State) creditContract(op *session, contract *StakingAccount, v inter.Coin) error {
	bal, ok := contract.Bal.SafeAdd(v)
	if !ok {
		return peregrine.ErrInvalidCoinValue
	}
	contract.Bal = bal
	return s.putStakingContract(op, contract)
}
