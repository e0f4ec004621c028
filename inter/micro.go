package inter

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
)

// MicroBlock is a regular transaction-carrying block within an epoch,
// produced by the validator owning the slot at (number, view).
type MicroBlock struct {
	Header        Header
	Justification *MicroJustification
	Body          *MicroBody
}

// MicroJustification proves the header was signed by the assigned
// producer. ViewChangeProof is present iff the header's view is > 0.
type MicroJustification struct {
	Signature       Signature
	ViewChangeProof *ViewChangeProof `rlp:"nil"`
}

// MicroBody carries the block's fork proofs and transactions.
type MicroBody struct {
	ForkProofs   []*ForkProof
	Transactions []*Transaction
}

// Root commits to the body contents: fork proof hashes followed by
// transaction hashes.
func (b *MicroBody) Root() common.Hash {
	leaves := make([][]byte, 0, len(b.ForkProofs)+len(b.Transactions))
	for _, fp := range b.ForkProofs {
		leaves = append(leaves, fp.Hash().Bytes())
	}
	for _, tx := range b.Transactions {
		leaves = append(leaves, tx.Hash().Bytes())
	}
	return MerkleRoot(leaves)
}

// Size returns the serialized body size for block budgeting.
func (b *MicroBody) Size() int {
	size := 0
	for _, fp := range b.ForkProofs {
		size += fp.Size()
	}
	for _, tx := range b.Transactions {
		size += tx.Size()
	}
	return size
}

func (b *MicroBlock) BlockType() BlockType {
	return BlockTypeMicro
}

func (b *MicroBlock) Number() idx.Block {
	return b.Header.Number
}

func (b *MicroBlock) View() uint32 {
	return b.Header.View
}

func (b *MicroBlock) Time() Timestamp {
	return b.Header.Time
}

func (b *MicroBlock) ParentHash() common.Hash {
	return b.Header.ParentHash
}

func (b *MicroBlock) Seed() VrfSeed {
	return b.Header.Seed
}

func (b *MicroBlock) StateRoot() common.Hash {
	return b.Header.StateRoot
}

func (b *MicroBlock) BodyRoot() common.Hash {
	return b.Header.BodyRoot
}

func (b *MicroBlock) HistoryRoot() common.Hash {
	return b.Header.HistoryRoot
}

func (b *MicroBlock) Hash() common.Hash {
	return b.Header.Hash()
}

func (b *MicroBlock) Transactions() []*Transaction {
	if b.Body == nil {
		return nil
	}
	return b.Body.Transactions
}

func (b *MicroBlock) String() string {
	return fmt.Sprintf("#%d.%d:MI:%s", b.Header.Number, b.Header.View, b.Hash().TerminalString())
}
