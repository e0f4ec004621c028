package inter

import (
	"github.com/NebulousLabs/merkletree"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// MerkleRoot computes the Merkle root over the given leaves using
// keccak256. An empty leaf set hashes to keccak of the empty string, so
// an empty body still commits to a well-defined root.
func MerkleRoot(leaves [][]byte) common.Hash {
	tree := merkletree.New(crypto.NewKeccakState())
	for _, leaf := range leaves {
		tree.Push(leaf)
	}
	root := tree.Root()
	if root == nil {
		return crypto.Keccak256Hash()
	}
	return common.BytesToHash(root)
}
