package inter

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/peregrinenet/go-peregrine/inter/validatorpk"
)

// MacroBlock is an epoch-structure block carrying no transactions. An
// election macro block additionally finalizes the next epoch's slot
// assignment in its body.
type MacroBlock struct {
	Header        Header
	IsElection    bool
	Justification *MacroJustification
	Body          *MacroBody
}

// MacroJustification is the weighted aggregate over the header produced
// by the external aggregation protocol. The pipeline re-checks quorum
// weight and message binding locally; it never trusts the aggregator.
type MacroJustification struct {
	Round      uint32
	Signers    []idx.ValidatorID
	Signatures []Signature
}

// SigningDigest is the message every signer of a macro justification
// commits to.
func MacroSigningDigest(headerHash common.Hash, round uint32) common.Hash {
	return crypto.Keccak256Hash(
		[]byte("peregrine/macro/v1"),
		headerHash.Bytes(),
		[]byte{byte(round >> 24), byte(round >> 16), byte(round >> 8), byte(round)},
	)
}

// ValidatorSlot describes one elected validator and the number of slots
// it holds in the epoch.
type ValidatorSlot struct {
	ID            idx.ValidatorID
	PubKey        validatorpk.PubKey
	RewardAddress common.Address
	Slots         uint16
}

// MacroBody holds the elected validator set. It is empty on non-election
// macro blocks.
type MacroBody struct {
	Validators []ValidatorSlot
}

// Root commits to the elected set, one leaf per validator slot entry.
func (b *MacroBody) Root() common.Hash {
	leaves := make([][]byte, len(b.Validators))
	for i := range b.Validators {
		data, err := rlp.EncodeToBytes(&b.Validators[i])
		if err != nil {
			panic(err)
		}
		leaves[i] = data
	}
	return MerkleRoot(leaves)
}

func (b *MacroBlock) BlockType() BlockType {
	return BlockTypeMacro
}

func (b *MacroBlock) Number() idx.Block {
	return b.Header.Number
}

func (b *MacroBlock) View() uint32 {
	return b.Header.View
}

func (b *MacroBlock) Time() Timestamp {
	return b.Header.Time
}

func (b *MacroBlock) ParentHash() common.Hash {
	return b.Header.ParentHash
}

func (b *MacroBlock) Seed() VrfSeed {
	return b.Header.Seed
}

func (b *MacroBlock) StateRoot() common.Hash {
	return b.Header.StateRoot
}

func (b *MacroBlock) BodyRoot() common.Hash {
	return b.Header.BodyRoot
}

func (b *MacroBlock) HistoryRoot() common.Hash {
	return b.Header.HistoryRoot
}

func (b *MacroBlock) Hash() common.Hash {
	return b.Header.Hash()
}

func (b *MacroBlock) Transactions() []*Transaction {
	return nil
}

func (b *MacroBlock) String() string {
	kind := "MA"
	if b.IsElection {
		kind = "EL"
	}
	return fmt.Sprintf("#%d.%d:%s:%s", b.Header.Number, b.Header.View, kind, b.Hash().TerminalString())
}
