package ledger

import (
	"crypto/sha256"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// applyTransaction moves value out of the sender and into the
// recipient. Dispatch runs on the type tags carried by the transaction,
// not on the accounts' current types: a creation transaction targets an
// address that does not exist yet.
func (s *State) applyTransaction(op *session, tx *inter.Transaction, height idx.Block, time inter.Timestamp) error {
	if err := s.applyOutgoing(op, tx, height); err != nil {
		return err
	}
	return s.applyIncoming(op, tx, height, time)
}

func (s *State) applyOutgoing(op *session, tx *inter.Transaction, height idx.Block) error {
	if tx.SenderType == inter.AccountTypeStaking {
		return s.applyStakingOutgoing(op, tx)
	}

	raw := op.t.get(accountKey(tx.Sender))
	if raw == nil {
		return &peregrine.NonExistentAddressError{Address: tx.Sender}
	}
	acc, err := deserializeAccount(raw)
	if err != nil {
		return err
	}
	if acc.Type() != tx.SenderType {
		return peregrine.ErrInvalidForSender
	}

	need, ok := tx.Value.SafeAdd(tx.Fee)
	if !ok {
		return peregrine.ErrInvalidCoinValue
	}

	switch a := acc.(type) {
	case *BasicAccount:
		rest, ok := a.Bal.SafeSub(need)
		if !ok {
			return &peregrine.InsufficientFundsError{Balance: a.Bal, Needed: need}
		}
		if rest == 0 {
			return op.delete(accountKey(tx.Sender))
		}
		a.Bal = rest
		return op.put(accountKey(tx.Sender), serializeAccount(a))

	case *VestingAccount:
		signer, err := tx.Signer()
		if err != nil {
			return err
		}
		if signer != a.Owner {
			return peregrine.ErrInvalidForSender
		}
		rest, ok := a.Bal.SafeSub(need)
		if !ok {
			return &peregrine.InsufficientFundsError{Balance: a.Bal, Needed: need}
		}
		if locked := a.lockedAt(height); rest < locked {
			spendable, _ := a.Bal.SafeSub(locked)
			return &peregrine.InsufficientFundsError{Balance: spendable, Needed: need}
		}
		if rest == 0 {
			return op.delete(accountKey(tx.Sender))
		}
		a.Bal = rest
		return op.put(accountKey(tx.Sender), serializeAccount(a))

	case *HTLCAccount:
		if err := s.checkHTLCResolution(a, tx, height); err != nil {
			return err
		}
		rest, ok := a.Bal.SafeSub(need)
		if !ok {
			return &peregrine.InsufficientFundsError{Balance: a.Bal, Needed: need}
		}
		if rest == 0 {
			return op.delete(accountKey(tx.Sender))
		}
		a.Bal = rest
		return op.put(accountKey(tx.Sender), serializeAccount(a))

	default:
		return peregrine.ErrInvalidForSender
	}
}

func (s *State) applyIncoming(op *session, tx *inter.Transaction, height idx.Block, time inter.Timestamp) error {
	switch tx.RecipientType {
	case inter.AccountTypeBasic:
		raw := op.t.get(accountKey(tx.Recipient))
		var acc *BasicAccount
		if raw == nil {
			acc = new(BasicAccount)
		} else {
			existing, err := deserializeAccount(raw)
			if err != nil {
				return err
			}
			basic, ok := existing.(*BasicAccount)
			if !ok {
				return peregrine.ErrInvalidForRecipient
			}
			acc = basic
		}
		bal, ok := acc.Bal.SafeAdd(tx.Value)
		if !ok {
			return peregrine.ErrInvalidCoinValue
		}
		acc.Bal = bal
		return op.put(accountKey(tx.Recipient), serializeAccount(acc))

	case inter.AccountTypeVesting:
		return s.createVesting(op, tx, height)

	case inter.AccountTypeHTLC:
		return s.createHTLC(op, tx, height)

	case inter.AccountTypeStaking:
		return s.applyStakingIncoming(op, tx, height, time)

	default:
		return peregrine.ErrInvalidForRecipient
	}
}

// VestingCreationData is carried by a vesting contract creation
// transaction.
type VestingCreationData struct {
	Owner       common.Address
	Start       idx.Block
	StepBlocks  idx.Block
	StepAmount  inter.Coin
	TotalAmount inter.Coin
}

func (s *State) createVesting(op *session, tx *inter.Transaction, height idx.Block) error {
	if tx.Recipient != tx.ContractCreationAddress() {
		return peregrine.ErrInvalidForRecipient
	}
	if op.t.get(accountKey(tx.Recipient)) != nil {
		return peregrine.ErrAccountAlreadyExists
	}
	var data VestingCreationData
	if err := rlp.DecodeBytes(tx.Data, &data); err != nil {
		return peregrine.ErrInvalidForRecipient
	}
	if tx.Value == 0 {
		return peregrine.ErrInvalidCoinValue
	}
	acc := &VestingAccount{
		Bal:         tx.Value,
		Owner:       data.Owner,
		Start:       data.Start,
		StepBlocks:  data.StepBlocks,
		StepAmount:  data.StepAmount,
		TotalAmount: data.TotalAmount,
	}
	return op.put(accountKey(tx.Recipient), serializeAccount(acc))
}

// HTLCCreationData is carried by an HTLC creation transaction.
type HTLCCreationData struct {
	Sender    common.Address
	Recipient common.Address
	HashAlgo  uint8
	HashRoot  common.Hash
	HashCount uint8
	Timeout   idx.Block
}

func (s *State) createHTLC(op *session, tx *inter.Transaction, height idx.Block) error {
	if tx.Recipient != tx.ContractCreationAddress() {
		return peregrine.ErrInvalidForRecipient
	}
	if op.t.get(accountKey(tx.Recipient)) != nil {
		return peregrine.ErrAccountAlreadyExists
	}
	var data HTLCCreationData
	if err := rlp.DecodeBytes(tx.Data, &data); err != nil {
		return peregrine.ErrInvalidForRecipient
	}
	if data.HashAlgo != HashAlgoKeccak && data.HashAlgo != HashAlgoSha256 {
		return peregrine.ErrInvalidForRecipient
	}
	if data.HashCount == 0 || data.Timeout <= height {
		return peregrine.ErrInvalidForRecipient
	}
	if tx.Value == 0 {
		return peregrine.ErrInvalidCoinValue
	}
	acc := &HTLCAccount{
		Bal:         tx.Value,
		Sender:      data.Sender,
		Recipient:   data.Recipient,
		HashAlgo:    data.HashAlgo,
		HashRoot:    data.HashRoot,
		HashCount:   data.HashCount,
		Timeout:     data.Timeout,
		TotalAmount: tx.Value,
	}
	return op.put(accountKey(tx.Recipient), serializeAccount(acc))
}

// HTLC resolution modes, carried as the first byte of the outgoing
// transaction's data.
const (
	HTLCResolveRegular uint8 = 1
	HTLCResolveTimeout uint8 = 2
)

// checkHTLCResolution authorizes an outgoing transfer from an HTLC.
// Regular resolution needs the full preimage chain and the recipient's
// signature; timeout resolution needs the timeout passed and the
// original sender's signature.
func (s *State) checkHTLCResolution(a *HTLCAccount, tx *inter.Transaction, height idx.Block) error {
	signer, err := tx.Signer()
	if err != nil {
		return err
	}
	if len(tx.Data) < 1 {
		return peregrine.ErrInvalidForSender
	}
	switch tx.Data[0] {
	case HTLCResolveRegular:
		if signer != a.Recipient {
			return peregrine.ErrInvalidForSender
		}
		if len(tx.Data) != 1+common.HashLength {
			return peregrine.ErrInvalidForSender
		}
		digest := tx.Data[1:]
		for i := uint8(0); i < a.HashCount; i++ {
			switch a.HashAlgo {
			case HashAlgoKeccak:
				digest = crypto.Keccak256(digest)
			case HashAlgoSha256:
				sum := sha256.Sum256(digest)
				digest = sum[:]
			}
		}
		if common.BytesToHash(digest) != a.HashRoot {
			return peregrine.ErrInvalidForSender
		}
		return nil

	case HTLCResolveTimeout:
		if signer != a.Sender {
			return peregrine.ErrInvalidForSender
		}
		if height < a.Timeout {
			return peregrine.ErrInvalidForSender
		}
		return nil

	default:
		return peregrine.ErrInvalidForSender
	}
}
