package synth

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrNilState signals the engine was used before its persistence layer
	// was wired.
	ErrNilState = errors.New("synth engine: state not configured")
	// ErrNilOracle signals the engine was used before its oracle adapter was
	// wired.
	ErrNilOracle = errors.New("synth engine: oracle not configured")
	// ErrInvalidAmount rejects zero or negative amounts before any mutation.
	ErrInvalidAmount = errors.New("synth engine: amount must be positive")
	// ErrKindNotRegistered rejects collateral kinds outside the allow list.
	ErrKindNotRegistered = errors.New("synth engine: collateral kind not registered")
	// ErrConfigMismatch is raised at construction when the collateral kind and
	// price feed lists differ in length.
	ErrConfigMismatch = errors.New("synth engine: collateral kinds must match price feeds")
	// ErrTransferFailed surfaces a refused external token movement. The
	// action aborts with no ledger change.
	ErrTransferFailed = errors.New("synth engine: token transfer failed")
	// ErrHealthFactorTooLow is the solvency violation: a mutation would leave
	// the position below the minimum health factor.
	ErrHealthFactorTooLow = errors.New("synth engine: health factor below minimum")
	// ErrHealthyUser rejects liquidation of a position at or above the
	// minimum health factor.
	ErrHealthyUser = errors.New("synth engine: cannot liquidate healthy user")
	// ErrHealthFactorNotImproved rejects a liquidation that did not strictly
	// improve the target's health factor.
	ErrHealthFactorNotImproved = errors.New("synth engine: liquidation did not improve health factor")
	// ErrBurnExceedsDebt rejects burning more debt than is outstanding.
	ErrBurnExceedsDebt = errors.New("synth engine: burn amount exceeds outstanding debt")
	// ErrInsufficientCollateral rejects decrements below a zero position.
	ErrInsufficientCollateral = errors.New("synth engine: insufficient collateral deposited")
	// ErrArithmeticOverflow signals a valuation product exceeded 256 bits.
	// This is a fatal fault, never silently truncated.
	ErrArithmeticOverflow = errors.New("synth engine: arithmetic overflow")
	// ErrDivisionByZero signals a zero denominator reached ledger arithmetic.
	ErrDivisionByZero = errors.New("synth engine: division by zero")
	// ErrCustodyAccount rejects actions initiated on behalf of the protocol
	// custody address; custody holds pooled collateral, never a position.
	ErrCustodyAccount = errors.New("synth engine: custody address cannot hold a position")
)

// HealthFactorTooLowError carries the computed health factor and the precision
// base so a failed action can be reproduced off-line.
type HealthFactorTooLowError struct {
	HealthFactor *big.Int
	MinRequired  *big.Int
}

func (e *HealthFactorTooLowError) Error() string {
	return fmt.Sprintf("synth engine: health factor %s below minimum %s", e.HealthFactor, e.MinRequired)
}

// Unwrap lets callers match the sentinel with errors.Is.
func (e *HealthFactorTooLowError) Unwrap() error { return ErrHealthFactorTooLow }

func healthFactorTooLow(hf *big.Int) error {
	return &HealthFactorTooLowError{
		HealthFactor: new(big.Int).Set(hf),
		MinRequired:  new(big.Int).Set(MinHealthFactor),
	}
}
