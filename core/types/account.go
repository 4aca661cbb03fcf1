package types

import "math/big"

// Account holds the token balances tracked by the protocol ledgers. BalanceXUSD
// is the synthetic-dollar balance; collateral balances are kept per registered
// kind so the same account record serves every configured collateral asset.
type Account struct {
	Nonce       uint64              `json:"nonce"`
	BalanceXUSD *big.Int            `json:"balanceXUSD"`
	Collateral  map[string]*big.Int `json:"collateral,omitempty"`
}

// EnsureDefaults replaces nil balance fields with zero values so callers can
// operate on loaded accounts without nil checks.
func (a *Account) EnsureDefaults() {
	if a.BalanceXUSD == nil {
		a.BalanceXUSD = big.NewInt(0)
	}
	if a.Collateral == nil {
		a.Collateral = make(map[string]*big.Int)
	}
}

// CollateralBalance returns the balance for the given collateral kind,
// treating missing entries as zero.
func (a *Account) CollateralBalance(kind string) *big.Int {
	if a == nil || a.Collateral == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Collateral[kind]; ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// SetCollateralBalance records the balance for the given collateral kind.
func (a *Account) SetCollateralBalance(kind string, amount *big.Int) {
	if a.Collateral == nil {
		a.Collateral = make(map[string]*big.Int)
	}
	a.Collateral[kind] = new(big.Int).Set(amount)
}
