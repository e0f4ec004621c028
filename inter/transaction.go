package inter

import (
	"crypto/ecdsa"
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// AccountType tags the ledger account kind a transaction side addresses.
// Dispatch in the ledger is driven by these tags, not by the runtime
// type of the stored account, so a basic account can become a contract
// through a creation transaction.
type AccountType uint8

const (
	AccountTypeBasic   AccountType = 0
	AccountTypeVesting AccountType = 1
	AccountTypeHTLC    AccountType = 2
	AccountTypeStaking AccountType = 3
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeBasic:
		return "basic"
	case AccountTypeVesting:
		return "vesting"
	case AccountTypeHTLC:
		return "htlc"
	case AccountTypeStaking:
		return "staking"
	}
	return "unknown"
}

var (
	ErrInvalidProof     = errors.New("invalid transaction signature proof")
	ErrWrongNetwork     = errors.New("transaction for a different network")
	ErrOutsideValidity  = errors.New("transaction outside its validity window")
	ErrZeroValueAndData = errors.New("transaction carries neither value nor data")
)

// Transaction is a signed value transfer or contract interaction.
// Data carries the recipient payload: contract-creation parameters or a
// staking operation. Proof is the sender's recoverable signature over
// ContentHash.
type Transaction struct {
	Sender              common.Address
	SenderType          AccountType
	Recipient           common.Address
	RecipientType       AccountType
	Value               Coin
	Fee                 Coin
	ValidityStartHeight idx.Block
	NetworkID           uint8
	Data                []byte
	Proof               []byte
}

// ContentHash is the digest the sender signs; it omits the proof itself.
func (tx *Transaction) ContentHash() common.Hash {
	cpy := *tx
	cpy.Proof = nil
	data, err := rlp.EncodeToBytes(&cpy)
	if err != nil {
		panic(err) // all field types are RLP-encodable
	}
	return crypto.Keccak256Hash(data)
}

// Hash identifies the full signed transaction.
func (tx *Transaction) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(tx)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(data)
}

// Size returns the serialized byte size, used for block body budgeting.
func (tx *Transaction) Size() int {
	data, err := rlp.EncodeToBytes(tx)
	if err != nil {
		panic(err)
	}
	return len(data)
}

// Sign attaches a signature proof produced with key. The key must
// control the sender address unless the sender side is a contract, in
// which case the contract-specific rules decide who may sign.
func (tx *Transaction) Sign(key *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(tx.ContentHash().Bytes(), key)
	if err != nil {
		return err
	}
	tx.Proof = sig
	return nil
}

// Signer recovers the address that produced the proof.
func (tx *Transaction) Signer() (common.Address, error) {
	if len(tx.Proof) != SigSize {
		return common.Address{}, ErrInvalidProof
	}
	pub, err := crypto.SigToPub(tx.ContentHash().Bytes(), tx.Proof)
	if err != nil {
		return common.Address{}, ErrInvalidProof
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks intrinsic validity: network binding and, for
// basic-sender transactions, that the proof was made by the sender.
// Contract-sender proofs are checked by the contract's apply rules.
func (tx *Transaction) Verify(networkID uint8) error {
	if tx.NetworkID != networkID {
		return ErrWrongNetwork
	}
	if tx.Value == 0 && len(tx.Data) == 0 {
		return ErrZeroValueAndData
	}
	signer, err := tx.Signer()
	if err != nil {
		return err
	}
	if tx.SenderType == AccountTypeBasic && signer != tx.Sender {
		return ErrInvalidProof
	}
	return nil
}

// IsValidAt reports whether the transaction may be included at height,
// given the network's validity window length.
func (tx *Transaction) IsValidAt(height idx.Block, window idx.Block) bool {
	if height < tx.ValidityStartHeight {
		return false
	}
	return height-tx.ValidityStartHeight < window
}

// ContractCreationAddress derives the deterministic address of a
// contract created by this transaction.
func (tx *Transaction) ContractCreationAddress() common.Address {
	digest := crypto.Keccak256(
		tx.Sender.Bytes(),
		[]byte{uint8(tx.RecipientType)},
		tx.Data,
		bigEndian8(uint64(tx.ValidityStartHeight)),
	)
	return common.BytesToAddress(digest[12:])
}

func bigEndian8(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
