package ledger

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// jailEpochs is how many epochs a jailed validator stays out of
// elections.
const jailEpochs = 8

// ValidatorInherentData encodes the target validator of a penalize or
// jail inherent as 4 big-endian bytes.
func ValidatorInherentData(id idx.ValidatorID) []byte {
	return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
}

func parseValidatorInherentData(b []byte) (idx.ValidatorID, error) {
	if len(b) != 4 {
		return 0, peregrine.ErrInvalidInherent
	}
	return idx.ValidatorID(b[0])<<24 | idx.ValidatorID(b[1])<<16 | idx.ValidatorID(b[2])<<8 | idx.ValidatorID(b[3]), nil
}

// applyInherent handles protocol-generated operations. Rewards credit a
// basic account; penalize parks a validator until it unparks itself;
// jail locks it out for a fixed number of epochs.
func (s *State) applyInherent(op *session, inh *inter.Inherent, height idx.Block, time inter.Timestamp) error {
	switch inh.Type {
	case inter.InherentReward:
		raw := op.t.get(accountKey(inh.Target))
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
				return peregrine.ErrInvalidInherent
			}
			acc = basic
		}
		bal, ok := acc.Bal.SafeAdd(inh.Value)
		if !ok {
			return peregrine.ErrInvalidCoinValue
		}
		acc.Bal = bal
		return op.put(accountKey(inh.Target), serializeAccount(acc))

	case inter.InherentPenalize:
		rec, err := s.inherentValidator(op, inh)
		if err != nil {
			return err
		}
		rec.Parked = true
		return op.put(validatorKey(rec.ID), serializeValidator(rec))

	case inter.InherentJail:
		rec, err := s.inherentValidator(op, inh)
		if err != nil {
			return err
		}
		rec.Parked = true
		rec.JailedUntil = height + jailEpochs*s.rules.EpochLength()
		return op.put(validatorKey(rec.ID), serializeValidator(rec))

	default:
		return peregrine.ErrInvalidInherent
	}
}

func (s *State) inherentValidator(op *session, inh *inter.Inherent) (*ValidatorRecord, error) {
	if inh.Target != peregrine.StakingContractAddress || inh.Value != 0 {
		return nil, peregrine.ErrInvalidInherent
	}
	id, err := parseValidatorInherentData(inh.Data)
	if err != nil {
		return nil, err
	}
	raw := op.t.get(validatorKey(id))
	if raw == nil {
		return nil, peregrine.ErrInvalidInherent
	}
	return deserializeValidator(raw)
}
