package ledger

import (
	"fmt"
	"math"
)

// Arithmetic errors. Silent wraparound in a monetary ledger is a correctness
// violation, so every balance update goes through these checked operations
// and aborts the surrounding transaction when the result is unrepresentable.
var (
	ErrArithmeticOverflow  = fmt.Errorf("ledger balance would overflow")
	ErrArithmeticUnderflow = fmt.Errorf("ledger balance would underflow")
)

// checkedAdd returns a+b, or an error if the sum leaves the int64 range.
func checkedAdd(a, b int64) (int64, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, ErrArithmeticOverflow
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, ErrArithmeticUnderflow
	}
	return a + b, nil
}

// checkedSub returns a-b, or an error if the difference leaves the int64 range.
func checkedSub(a, b int64) (int64, error) {
	if b < 0 && a > math.MaxInt64+b {
		return 0, ErrArithmeticOverflow
	}
	if b > 0 && a < math.MinInt64+b {
		return 0, ErrArithmeticUnderflow
	}
	return a - b, nil
}
