package synth

import (
	"math/big"

	"xusd/crypto"
)

// totalCollateralUsd sums the USD value of the user's deposits over every
// registered kind, reading positions through the provided state view. The
// kind set is small and fixed, so the linear scan is fine.
func (e *Engine) totalCollateralUsd(state engineState, addr crypto.Address) (*big.Int, error) {
	total := big.NewInt(0)
	for _, kind := range e.kinds {
		amount, err := state.GetPosition(addr, kind.Symbol)
		if err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			continue
		}
		usd, err := e.UsdValue(kind.Symbol, amount)
		if err != nil {
			return nil, err
		}
		total.Add(total, usd)
	}
	return total, nil
}

// healthFactorOn computes the user's health factor against the given state
// view, so staged mutations are reflected before they are persisted.
func (e *Engine) healthFactorOn(state engineState, addr crypto.Address) (*big.Int, error) {
	debt, err := state.GetDebt(addr)
	if err != nil {
		return nil, err
	}
	collateralUsd, err := e.totalCollateralUsd(state, addr)
	if err != nil {
		return nil, err
	}
	return HealthFactorFor(collateralUsd, debt)
}

// HealthFactorFor recomputes the health factor from arbitrary collateral and
// debt values without touching state. Zero debt yields the maximum
// representable value, standing in for an unbounded ratio.
func HealthFactorFor(collateralUsd, debt *big.Int) (*big.Int, error) {
	if debt == nil || debt.Sign() == 0 {
		return new(big.Int).Set(MaxHealthFactor), nil
	}
	if collateralUsd == nil || collateralUsd.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	capacity, err := DebtCapacityFromUsd(collateralUsd)
	if err != nil {
		return nil, err
	}
	hf := new(big.Int).Mul(capacity, Precision)
	hf.Quo(hf, debt)
	if hf.Cmp(MaxHealthFactor) > 0 {
		hf.Set(MaxHealthFactor)
	}
	return hf, nil
}

// requireHealthy fails with the solvency error when the user's health factor
// on the given state view is below the minimum. The inclusive boundary is
// load-bearing: exactly MinHealthFactor is healthy.
func (e *Engine) requireHealthy(state engineState, addr crypto.Address) error {
	hf, err := e.healthFactorOn(state, addr)
	if err != nil {
		return err
	}
	if hf.Cmp(MinHealthFactor) < 0 {
		return healthFactorTooLow(hf)
	}
	return nil
}

// HealthFactor returns the user's current health factor.
func (e *Engine) HealthFactor(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.healthFactorOn(e.state, addr)
}

// HealthStatus reports the two-valued diagnostic status. Enforcement never
// consults this string; it exists for operators and test harnesses.
func (e *Engine) HealthStatus(addr crypto.Address) (string, error) {
	hf, err := e.HealthFactor(addr)
	if err != nil {
		return "", err
	}
	if hf.Cmp(MinHealthFactor) < 0 {
		return StatusUnhealthy, nil
	}
	return StatusHealthy, nil
}

// MaxMintCapacity reports how much additional debt the user's collateral can
// back right now. Advisory only: mint re-derives the health factor itself.
func (e *Engine) MaxMintCapacity(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	collateralUsd, err := e.totalCollateralUsd(e.state, addr)
	if err != nil {
		return nil, err
	}
	capacity, err := DebtCapacityFromUsd(collateralUsd)
	if err != nil {
		return nil, err
	}
	debt, err := e.state.GetDebt(addr)
	if err != nil {
		return nil, err
	}
	headroom := new(big.Int).Sub(capacity, debt)
	if headroom.Sign() < 0 {
		return big.NewInt(0), nil
	}
	return headroom, nil
}
