package token

import (
	"math/big"
	"strings"

	"xusd/crypto"
)

// SyntheticLedger tracks the USD-pegged synthetic token. Mint and burn are
// gated on the owner recorded at construction; after deployment the issuance
// engine holds that role exclusively.
type SyntheticLedger struct {
	state  *State
	symbol string
	owner  crypto.Address
}

// NewSyntheticLedger constructs the synthetic token ledger owned by the
// provided address.
func NewSyntheticLedger(state *State, symbol string, owner crypto.Address) *SyntheticLedger {
	return &SyntheticLedger{state: state, symbol: strings.ToUpper(strings.TrimSpace(symbol)), owner: owner}
}

// WithState returns a view of the ledger bound to the provided state, keeping
// the symbol and owner. Actions use it to stage token mutations in an
// overlay-backed state and flush them with the rest of their write set.
func (l *SyntheticLedger) WithState(state *State) *SyntheticLedger {
	if l == nil {
		return nil
	}
	return &SyntheticLedger{state: state, symbol: l.symbol, owner: l.owner}
}

// Symbol returns the synthetic token symbol.
func (l *SyntheticLedger) Symbol() string {
	if l == nil {
		return ""
	}
	return l.symbol
}

// Owner returns the address permitted to mint.
func (l *SyntheticLedger) Owner() crypto.Address {
	if l == nil {
		return crypto.Address{}
	}
	return l.owner
}

// TotalSupply returns the outstanding synthetic supply.
func (l *SyntheticLedger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Supply(l.symbol)
}

// BalanceOf returns the holder's synthetic balance.
func (l *SyntheticLedger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.BalanceXUSD), nil
}

// Mint issues amount to the recipient. Only the owner may mint.
func (l *SyntheticLedger) Mint(caller, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if !caller.Equal(l.owner) {
		return errNotOwner
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	acc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	supply, err := l.state.Supply(l.symbol)
	if err != nil {
		return err
	}
	acc.BalanceXUSD = new(big.Int).Add(acc.BalanceXUSD, amount)
	if err := l.state.PutAccount(to, acc); err != nil {
		return err
	}
	return l.state.SetSupply(l.symbol, new(big.Int).Add(supply, amount))
}

// Burn destroys amount from the caller's own balance.
func (l *SyntheticLedger) Burn(caller crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	acc, err := l.state.GetAccount(caller)
	if err != nil {
		return err
	}
	if acc.BalanceXUSD.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	supply, err := l.state.Supply(l.symbol)
	if err != nil {
		return err
	}
	if supply.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	acc.BalanceXUSD = new(big.Int).Sub(acc.BalanceXUSD, amount)
	if err := l.state.PutAccount(caller, acc); err != nil {
		return err
	}
	return l.state.SetSupply(l.symbol, new(big.Int).Sub(supply, amount))
}

// Transfer moves amount between holders.
func (l *SyntheticLedger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	fromAcc, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.BalanceXUSD.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	if from.Equal(to) {
		// Loading the account twice would credit the stale balance and
		// create tokens; a self-transfer leaves balances untouched.
		return nil
	}
	toAcc, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	fromAcc.BalanceXUSD = new(big.Int).Sub(fromAcc.BalanceXUSD, amount)
	toAcc.BalanceXUSD = new(big.Int).Add(toAcc.BalanceXUSD, amount)
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}

// TransferFrom moves amount from the owner to the recipient, consuming the
// spender's allowance on the synthetic symbol.
func (l *SyntheticLedger) TransferFrom(spender, owner, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	allowance, err := l.state.Allowance(l.symbol, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return errInsufficientAllowance
	}
	if err := l.Transfer(owner, to, amount); err != nil {
		return err
	}
	return l.state.SetAllowance(l.symbol, owner, spender, new(big.Int).Sub(allowance, amount))
}

// Approve records the spender's allowance over the owner's synthetic balance.
func (l *SyntheticLedger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	return l.state.SetAllowance(l.symbol, owner, spender, amount)
}
