package inter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// InherentType identifies a protocol-generated operation.
type InherentType uint8

const (
	InherentReward   InherentType = 1
	InherentPenalize InherentType = 2
	InherentJail     InherentType = 3
)

func (t InherentType) String() string {
	switch t {
	case InherentReward:
		return "reward"
	case InherentPenalize:
		return "penalize"
	case InherentJail:
		return "jail"
	}
	return "unknown"
}

// Inherent is an unsigned pseudo-transaction constructed by the block
// producer (and re-derived by the push pipeline): rewards, penalties and
// jailing. It never originates from the network.
type Inherent struct {
	Type   InherentType
	Target common.Address
	Value  Coin
	Data   []byte
}

func (in *Inherent) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(in)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(data)
}
