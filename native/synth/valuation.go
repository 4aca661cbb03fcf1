package synth

import (
	"fmt"
	"math/big"
)

// price returns the current 8-decimal feed price for the kind, enforcing the
// staleness window. An unregistered kind is a precondition violation, not a
// runtime lookup miss.
func (e *Engine) price(kind string) (*big.Int, error) {
	feedID, ok := e.feeds[normalizeKind(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindNotRegistered, kind)
	}
	if e.oracle == nil {
		return nil, ErrNilOracle
	}
	quote, err := e.oracle.Latest(feedID)
	if err != nil {
		return nil, err
	}
	return quote.Price, nil
}

// UsdValue converts an 18-decimal collateral amount into its 18-decimal USD
// value at the current feed price.
func (e *Engine) UsdValue(kind string, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	price, err := e.price(kind)
	if err != nil {
		return nil, err
	}
	// usd = amount * price * 1e10 / 1e18
	return mulDiv3(amount, price, AdditionalFeedPrecision, Precision)
}

// CollateralFromUsd converts an 18-decimal USD amount into collateral units at
// the current feed price. Division floors, so conversions never round in the
// caller's favor.
func (e *Engine) CollateralFromUsd(kind string, usd *big.Int) (*big.Int, error) {
	if usd == nil || usd.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	price, err := e.price(kind)
	if err != nil {
		return nil, err
	}
	scaledPrice, err := mulDiv(price, AdditionalFeedPrecision, big.NewInt(1))
	if err != nil {
		return nil, err
	}
	// amount = usd * 1e18 / (price * 1e10)
	return mulDiv(usd, Precision, scaledPrice)
}

// DebtCapacityFromUsd converts raw collateral value into the debt it can
// safely back. Only the liquidation-threshold share of nominal value counts.
func DebtCapacityFromUsd(usd *big.Int) (*big.Int, error) {
	if usd == nil || usd.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return mulDiv(usd, big.NewInt(LiquidationThreshold), big.NewInt(LiquidationPrecision))
}
