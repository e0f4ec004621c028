package blockchain

import "errors"

// Push rejection reasons. Structural problems surface before any ledger
// access; state problems only after the block was placed.
var (
	ErrUnknownParent          = errors.New("parent block not in store")
	ErrInvalidBlock           = errors.New("invalid block")
	ErrInvalidSuccessor       = errors.New("block does not follow its parent")
	ErrInvalidSeed            = errors.New("invalid vrf seed")
	ErrInvalidJustification   = errors.New("invalid block justification")
	ErrInvalidViewChangeProof = errors.New("invalid view change proof")
	ErrInvalidForkProof       = errors.New("invalid fork proof")
	ErrInvalidStateRoot       = errors.New("state root mismatch")
	ErrInvalidHistoryRoot     = errors.New("history root mismatch")
	ErrFinalizedBlock         = errors.New("cannot revert past a macro block")
	ErrNotInitialized         = errors.New("chain not initialized")
)
