package synth

import (
	"errors"
	"math/big"
	"testing"
)

func TestMulDivFloors(t *testing.T) {
	got, err := mulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if err != nil {
		t.Fatalf("muldiv: %v", err)
	}
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected floor division, got %s", got)
	}
}

func TestMulDivRejectsNegativeInputs(t *testing.T) {
	if _, err := mulDiv(big.NewInt(-1), big.NewInt(2), big.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow error for negative operand, got %v", err)
	}
	if _, err := mulDiv(big.NewInt(1), big.NewInt(2), big.NewInt(-1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow error for negative denominator, got %v", err)
	}
}

func TestMulDivRejectsZeroDenominator(t *testing.T) {
	if _, err := mulDiv(big.NewInt(1), big.NewInt(2), big.NewInt(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division-by-zero error, got %v", err)
	}
	if _, err := mulDiv(big.NewInt(1), big.NewInt(2), nil); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division-by-zero error for nil denominator, got %v", err)
	}
}

func TestMulDivOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	if _, err := mulDiv(huge, huge, big.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected product overflow, got %v", err)
	}
	if _, err := mulDiv(new(big.Int).Lsh(big.NewInt(1), 257), big.NewInt(1), big.NewInt(1)); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected operand overflow, got %v", err)
	}
}

func TestHealthFactorForZeroDebt(t *testing.T) {
	hf, err := HealthFactorFor(big.NewInt(0), big.NewInt(0))
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if hf.Cmp(MaxHealthFactor) != 0 {
		t.Fatalf("zero debt must map to the maximum, got %s", hf)
	}
}

func TestHealthFactorForKnownValues(t *testing.T) {
	// $20000 of collateral backing 100 XUSD of debt: capacity 10000, so the
	// health factor is 100 at the 1e18 scale.
	collateral := new(big.Int).Mul(big.NewInt(20_000), Precision)
	debt := new(big.Int).Mul(big.NewInt(100), Precision)
	hf, err := HealthFactorFor(collateral, debt)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(100), Precision)
	if hf.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, hf)
	}
}

func TestHealthFactorForRejectsNegativeCollateral(t *testing.T) {
	if _, err := HealthFactorFor(big.NewInt(-1), big.NewInt(1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestDebtCapacityFromUsd(t *testing.T) {
	capacity, err := DebtCapacityFromUsd(new(big.Int).Mul(big.NewInt(2000), Precision))
	if err != nil {
		t.Fatalf("capacity: %v", err)
	}
	want := new(big.Int).Mul(big.NewInt(1000), Precision)
	if capacity.Cmp(want) != 0 {
		t.Fatalf("expected %s, got %s", want, capacity)
	}
}
