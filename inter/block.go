// Package inter defines the core chain data structures: blocks and
// their headers, transactions, inherents, fork proofs, view-change
// proofs and the VRF seed chain. The types here carry no validation
// policy; the blockchain package decides what is acceptable.
package inter

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BlockType distinguishes the two block kinds.
type BlockType uint8

const (
	BlockTypeMicro BlockType = 1
	BlockTypeMacro BlockType = 2
)

// MaxExtraDataSize bounds the free-form header field.
const MaxExtraDataSize = 32

// Header is the common header of micro and macro blocks. Its hash is
// computed over the canonical on-disk encoding (see MarshalBinary), so
// header identity and wire identity never diverge.
type Header struct {
	Version     uint16
	Number      idx.Block
	View        uint32
	Time        Timestamp
	ParentHash  common.Hash
	Seed        VrfSeed
	ExtraData   []byte
	StateRoot   common.Hash
	BodyRoot    common.Hash
	HistoryRoot common.Hash
}

// Hash returns the header digest used as the block's identity.
func (h *Header) Hash() common.Hash {
	raw, err := h.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("header not serializable: %v", err))
	}
	return crypto.Keccak256Hash(raw)
}

// Block is the closed sum of MicroBlock and MacroBlock.
type Block interface {
	BlockType() BlockType
	Number() idx.Block
	View() uint32
	Time() Timestamp
	ParentHash() common.Hash
	Seed() VrfSeed
	StateRoot() common.Hash
	BodyRoot() common.Hash
	HistoryRoot() common.Hash
	Hash() common.Hash
	Transactions() []*Transaction
	String() string
}

// NextHistoryRoot chains the history accumulator: every block commits
// to its parent's accumulator extended by the parent's own hash.
func NextHistoryRoot(parent Block) common.Hash {
	parentRoot := parent.HistoryRoot()
	parentHash := parent.Hash()
	return crypto.Keccak256Hash(parentRoot[:], parentHash[:])
}
