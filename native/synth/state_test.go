package synth

import (
	"math/big"
	"testing"

	"xusd/crypto"
	"xusd/storage"
)

func TestLedgerStateRoundTrip(t *testing.T) {
	state := NewLedgerState(storage.NewMemDB())
	user := makeAddress(crypto.UserPrefix, 0x10)

	amount, err := state.GetPosition(user, "WETH")
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if amount.Sign() != 0 {
		t.Fatalf("fresh position must be zero, got %s", amount)
	}

	if err := state.PutPosition(user, "weth", big.NewInt(42)); err != nil {
		t.Fatalf("put position: %v", err)
	}
	amount, err = state.GetPosition(user, "WETH")
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if amount.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("kind casing must not split positions, got %s", amount)
	}

	if err := state.PutDebt(user, big.NewInt(7)); err != nil {
		t.Fatalf("put debt: %v", err)
	}
	debt, err := state.GetDebt(user)
	if err != nil {
		t.Fatalf("get debt: %v", err)
	}
	if debt.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("unexpected debt: %s", debt)
	}

	// Zero is written back, not deleted: a closed position stays readable.
	if err := state.PutPosition(user, "WETH", big.NewInt(0)); err != nil {
		t.Fatalf("put zero: %v", err)
	}
	amount, err = state.GetPosition(user, "WETH")
	if err != nil {
		t.Fatalf("get zeroed position: %v", err)
	}
	if amount.Sign() != 0 {
		t.Fatalf("expected zero position, got %s", amount)
	}
}

func TestStagedLedgerIsolation(t *testing.T) {
	base := NewLedgerState(storage.NewMemDB())
	user := makeAddress(crypto.UserPrefix, 0x10)
	if err := base.PutPosition(user, "WETH", big.NewInt(100)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	staged := newStagedLedger(base)
	if err := staged.PutPosition(user, "WETH", big.NewInt(40)); err != nil {
		t.Fatalf("stage position: %v", err)
	}
	if err := staged.PutDebt(user, big.NewInt(9)); err != nil {
		t.Fatalf("stage debt: %v", err)
	}

	// Staged reads see the overlay, base reads do not.
	overlay, err := staged.GetPosition(user, "WETH")
	if err != nil {
		t.Fatalf("staged read: %v", err)
	}
	if overlay.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("staged read must see overlay, got %s", overlay)
	}
	persisted, err := base.GetPosition(user, "WETH")
	if err != nil {
		t.Fatalf("base read: %v", err)
	}
	if persisted.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("abandoned stage must not leak, got %s", persisted)
	}

	if err := staged.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	persisted, err = base.GetPosition(user, "WETH")
	if err != nil {
		t.Fatalf("base read: %v", err)
	}
	if persisted.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("commit must flush overlay, got %s", persisted)
	}
	debt, err := base.GetDebt(user)
	if err != nil {
		t.Fatalf("debt read: %v", err)
	}
	if debt.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("commit must flush debt, got %s", debt)
	}
}
