package peregrine

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/peregrinenet/go-peregrine/inter"
)

// Ledger errors. Any of these returned from a state transition aborts
// the whole block; partially applied changes are rolled back.
var (
	ErrInvalidCoinValue     = errors.New("coin value out of range")
	ErrInvalidForSender     = errors.New("transaction invalid for sender account")
	ErrInvalidForRecipient  = errors.New("transaction invalid for recipient account")
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrInvalidInherent      = errors.New("inherent not applicable to target account")
	ErrInvalidReceipt       = errors.New("receipt does not match account state")
)

// InsufficientFundsError reports an outgoing transfer exceeding the
// account's spendable balance.
type InsufficientFundsError struct {
	Balance inter.Coin
	Needed  inter.Coin
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, needed %d", e.Balance, e.Needed)
}

// NonExistentAddressError reports an operation against an address with
// no account in the state tree.
type NonExistentAddressError struct {
	Address common.Address
}

func (e *NonExistentAddressError) Error() string {
	return fmt.Sprintf("account %s does not exist", e.Address.String())
}
