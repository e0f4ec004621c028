package inter

import (
	"fmt"
	"math"
)

// Coin is an amount of the native currency in its smallest unit.
// All balance arithmetic goes through the checked helpers; a silent
// wraparound here would corrupt the ledger.
type Coin uint64

const MaxCoin = Coin(math.MaxUint64)

// SafeAdd returns c+v, reporting false on overflow.
func (c Coin) SafeAdd(v Coin) (Coin, bool) {
	if c > MaxCoin-v {
		return 0, false
	}
	return c + v, true
}

// SafeSub returns c-v, reporting false if v exceeds c.
func (c Coin) SafeSub(v Coin) (Coin, bool) {
	if v > c {
		return 0, false
	}
	return c - v, true
}

func (c Coin) String() string {
	return fmt.Sprintf("%d", uint64(c))
}

// Timestamp is a Unix time in milliseconds.
type Timestamp uint64
