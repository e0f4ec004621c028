package ledger

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	bolt "github.com/coreos/bbolt"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/peregrinenet/go-peregrine/inter"
	"github.com/peregrinenet/go-peregrine/kvstore"
	"github.com/peregrinenet/go-peregrine/peregrine"
)

// State key layout inside the accounts bucket. Plain accounts are keyed
// by their bare address; the staking contract's validator and staker
// records use composite keys under the contract address so a prefix
// scan enumerates them in deterministic (bolt key) order.
const (
	keyTagValidator byte = 0x01
	keyTagStaker    byte = 0x02
)

func accountKey(addr common.Address) []byte {
	k := make([]byte, common.AddressLength)
	copy(k, addr[:])
	return k
}

func validatorKey(id idx.ValidatorID) []byte {
	k := make([]byte, 0, common.AddressLength+5)
	k = append(k, peregrine.StakingContractAddress[:]...)
	k = append(k, keyTagValidator)
	k = append(k, byte(id>>24), byte(id>>16), byte(id>>8), byte(id))
	return k
}

func stakerKey(addr common.Address) []byte {
	k := make([]byte, 0, 2*common.AddressLength+1)
	k = append(k, peregrine.StakingContractAddress[:]...)
	k = append(k, keyTagStaker)
	k = append(k, addr[:]...)
	return k
}

// tree is raw keyed access to the accounts bucket of one bolt
// transaction.
type tree struct {
	bucket *bolt.Bucket
}

func newTree(tx *bolt.Tx) *tree {
	return &tree{bucket: tx.Bucket(kvstore.BucketAccounts)}
}

func (t *tree) get(key []byte) []byte {
	v := t.bucket.Get(key)
	if v == nil {
		return nil
	}
	// bolt values are only valid for the life of the transaction and
	// may be remapped after writes, so copy out.
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp
}

func (t *tree) put(key, value []byte) error {
	return t.bucket.Put(key, value)
}

func (t *tree) delete(key []byte) error {
	return t.bucket.Delete(key)
}

// Root hashes the whole accounts bucket into the state root: one
// keccak leaf per entry over key and value, merkle-ized in bolt's
// sorted key order.
func (t *tree) Root() common.Hash {
	var leaves [][]byte
	c := t.bucket.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		leaves = append(leaves, crypto.Keccak256(k, v))
	}
	return inter.MerkleRoot(leaves)
}
