package synth

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Fixed-point scales. Ledger amounts and USD values are 18-decimal integers;
// price feeds report 8 decimals and are rescaled up before multiplying.
var (
	// Precision is the 1e18 fixed-point base shared by amounts, USD values
	// and the health factor.
	Precision = mustBigInt("1000000000000000000")
	// AdditionalFeedPrecision lifts 8-decimal feed prices to 18 decimals.
	AdditionalFeedPrecision = mustBigInt("10000000000")
	// MinHealthFactor is 1.0 at the health-factor scale.
	MinHealthFactor = new(big.Int).Set(Precision)
	// MaxHealthFactor stands in for an unbounded health factor when a user
	// carries no debt.
	MaxHealthFactor = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Risk constants. Only half of nominal collateral value counts toward debt
// capacity, and liquidators earn a 10% bonus on seized collateral.
const (
	LiquidationThreshold = 50
	LiquidationPrecision = 100
	LiquidationBonus     = 10
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// mulDiv computes a*b/den with an overflow-checked 256-bit product and floor
// division. Floor is deliberate: conversions never round in the caller's
// favor.
func mulDiv(a, b, den *big.Int) (*big.Int, error) {
	if a == nil || b == nil {
		return big.NewInt(0), nil
	}
	if den == nil || den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if a.Sign() < 0 || b.Sign() < 0 || den.Sign() < 0 {
		return nil, ErrArithmeticOverflow
	}
	ua, overflow := uint256.FromBig(a)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	ub, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	uden, overflow := uint256.FromBig(den)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	product, overflow := new(uint256.Int).MulOverflow(ua, ub)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return new(uint256.Int).Div(product, uden).ToBig(), nil
}

// mulDiv3 computes a*b*c/den, checking each 256-bit product.
func mulDiv3(a, b, c, den *big.Int) (*big.Int, error) {
	inner, err := mulDiv(a, b, big.NewInt(1))
	if err != nil {
		return nil, err
	}
	return mulDiv(inner, c, den)
}
