package inter

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedBasicTx(t *testing.T, networkID uint8) *Transaction {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx := &Transaction{
		Sender:              crypto.PubkeyToAddress(key.PublicKey),
		SenderType:          AccountTypeBasic,
		Recipient:           common.HexToAddress("0x2222222222222222222222222222222222222222"),
		RecipientType:       AccountTypeBasic,
		Value:               10,
		Fee:                 1,
		ValidityStartHeight: 1,
		NetworkID:           networkID,
	}
	require.NoError(t, tx.Sign(key))
	return tx
}

func TestTransactionVerify(t *testing.T) {
	tx := signedBasicTx(t, 42)

	require.NoError(t, tx.Verify(42))
	assert.Equal(t, ErrWrongNetwork, tx.Verify(7))

	// Tampering with the content invalidates the proof.
	tx.Value++
	assert.Equal(t, ErrInvalidProof, tx.Verify(42))
}

func TestTransactionProofDoesNotChangeContentHash(t *testing.T) {
	tx := signedBasicTx(t, 1)
	withProof := tx.ContentHash()
	tx.Proof = nil
	assert.Equal(t, withProof, tx.ContentHash())
}

func TestValidityWindow(t *testing.T) {
	tx := &Transaction{ValidityStartHeight: 100}

	assert.False(t, tx.IsValidAt(99, 120))
	assert.True(t, tx.IsValidAt(100, 120))
	assert.True(t, tx.IsValidAt(219, 120))
	assert.False(t, tx.IsValidAt(220, 120))
}

func TestContractCreationAddressIsStable(t *testing.T) {
	tx := signedBasicTx(t, 1)
	tx.RecipientType = AccountTypeVesting
	tx.Data = []byte{1, 2, 3}

	a := tx.ContractCreationAddress()
	b := tx.ContractCreationAddress()
	assert.Equal(t, a, b)
	assert.NotEqual(t, common.Address{}, a)
}
