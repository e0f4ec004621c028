// Package peregrine defines the network rules and consensus-critical
// policy for the Peregrine chain: network identities, epoch and batch
// cadence, slot counts, economic parameters, and the error taxonomy of
// the ledger. The Rules value is the single configuration object passed
// into the blockchain and producer; nothing here reads global state.
package peregrine

import (
	"encoding/json"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/peregrinenet/go-peregrine/inter"
)

// Network identification constants.
const (
	MainNetworkID uint8 = 0x50
	TestNetworkID uint8 = 0x51
	FakeNetworkID uint8 = 0x52
)

// BlockVersion is the header version produced and accepted. Changing it
// is a hard fork.
const BlockVersion uint16 = 1

// StakingContractAddress is the fixed address of the staking system
// account. It exists from genesis and cannot be pruned.
var StakingContractAddress = common.HexToAddress("0x0000000000000000000000000000000000000001")

// Rules describes a network deployment. All fields are consensus
// critical: two nodes with different rules are on different networks.
type Rules struct {
	Name      string `json:"name"`
	NetworkID uint8  `json:"networkId"`

	Blocks  BlocksRules  `json:"blocks"`
	Epochs  EpochsRules  `json:"epochs"`
	Economy EconomyRules `json:"economy"`
}

type BlocksRules struct {
	// MaxBodySize bounds the serialized micro block body; producers
	// truncate transactions to fit, validators reject bigger bodies.
	MaxBodySize int `json:"maxBodySize"`
	// MaxTimeDrift is how far (ms) a header timestamp may run ahead of
	// the local clock.
	MaxTimeDrift inter.Timestamp `json:"maxTimeDrift"`
	// PruneDepth is how far below the main head side branches are kept.
	PruneDepth idx.Block `json:"pruneDepth"`
}

type EpochsRules struct {
	// BatchLength is the number of blocks between macro blocks.
	BatchLength idx.Block `json:"batchLength"`
	// BatchesPerEpoch is the number of batches closed by one election.
	BatchesPerEpoch idx.Block `json:"batchesPerEpoch"`
	// Slots is the fixed number of stake-weighted validator slots.
	Slots uint32 `json:"slots"`
}

type EconomyRules struct {
	// BlockReward is the fixed coinbase per micro block, paid through a
	// producer-supplied reward inherent on top of the block's fees.
	BlockReward inter.Coin `json:"blockReward"`
	// MinValidatorDeposit is the deposit bound to a new validator.
	MinValidatorDeposit inter.Coin `json:"minValidatorDeposit"`
	// MinStake is the smallest accepted staker balance.
	MinStake inter.Coin `json:"minStake"`
	// TxValidityWindow is the number of blocks a transaction stays
	// includable after its validity start height.
	TxValidityWindow idx.Block `json:"txValidityWindow"`
}

// EpochLength is the number of blocks in one epoch.
func (r Rules) EpochLength() idx.Block {
	return r.Epochs.BatchLength * r.Epochs.BatchesPerEpoch
}

// IsMacroBlockAt reports whether height n carries a macro block.
// Genesis (block 0) is an election macro block.
func (r Rules) IsMacroBlockAt(n idx.Block) bool {
	return n%r.Epochs.BatchLength == 0
}

// IsElectionBlockAt reports whether the macro block at n is an election.
func (r Rules) IsElectionBlockAt(n idx.Block) bool {
	return n%r.EpochLength() == 0
}

// EpochAt returns the epoch the block at height n belongs to. The
// election block itself closes its epoch, so EpochAt(electionHeight)
// is the ending epoch.
func (r Rules) EpochAt(n idx.Block) idx.Epoch {
	l := r.EpochLength()
	return idx.Epoch((n + l - 1) / l)
}

// ElectionBlockBefore returns the height of the election block whose
// slot assignment governs block n. n must be >= 1.
func (r Rules) ElectionBlockBefore(n idx.Block) idx.Block {
	return (n - 1) / r.EpochLength() * r.EpochLength()
}

// MacroBlockBefore returns the height of the last macro block strictly
// before n. n must be >= 1.
func (r Rules) MacroBlockBefore(n idx.Block) idx.Block {
	return (n - 1) / r.Epochs.BatchLength * r.Epochs.BatchLength
}

// TwoThirdsSlots is the 2f+1 slot-weight quorum.
func (r Rules) TwoThirdsSlots() uint32 {
	return r.Epochs.Slots*2/3 + 1
}

func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}

// MainNetRules returns the production network rules.
func MainNetRules() Rules {
	return Rules{
		Name:      "main",
		NetworkID: MainNetworkID,
		Blocks: BlocksRules{
			MaxBodySize:  100_000,
			MaxTimeDrift: 600_000,
			PruneDepth:   512,
		},
		Epochs: EpochsRules{
			BatchLength:     60,
			BatchesPerEpoch: 720,
			Slots:           512,
		},
		Economy: EconomyRules{
			BlockReward:         2_500_000,
			MinValidatorDeposit: 100_000_000_000,
			MinStake:            100_000,
			TxValidityWindow:    120,
		},
	}
}

// TestNetRules returns the public test network rules.
func TestNetRules() Rules {
	r := MainNetRules()
	r.Name = "test"
	r.NetworkID = TestNetworkID
	return r
}

// FakeNetRules returns rules for local fake networks: short batches and
// few slots so epochs turn over quickly in tests.
func FakeNetRules() Rules {
	return Rules{
		Name:      "fake",
		NetworkID: FakeNetworkID,
		Blocks: BlocksRules{
			MaxBodySize:  100_000,
			MaxTimeDrift: 600_000,
			PruneDepth:   64,
		},
		Epochs: EpochsRules{
			BatchLength:     8,
			BatchesPerEpoch: 4,
			Slots:           16,
		},
		Economy: EconomyRules{
			BlockReward:         10_000,
			MinValidatorDeposit: 100_000_000,
			MinStake:            100_000,
			TxValidityWindow:    120,
		},
	}
}
