package inter

import (
	"github.com/ethereum/go-ethereum/common"
)

// SigSize is the length of a recoverable secp256k1 signature [R || S || V].
const SigSize = 65

// Signature is a single producer or signer signature.
type Signature [SigSize]byte

func BytesToSignature(b []byte) Signature {
	var sig Signature
	copy(sig[:], b)
	return sig
}

func (s Signature) Bytes() []byte {
	return s[:]
}

func (s Signature) String() string {
	return common.Bytes2Hex(s[:])
}
