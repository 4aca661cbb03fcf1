package token

import (
	"errors"
	"math/big"
	"strings"

	"xusd/crypto"
)

var (
	errInvalidAmount         = errors.New("token ledger: amount must be positive")
	errInsufficientBalance   = errors.New("token ledger: insufficient balance")
	errInsufficientAllowance = errors.New("token ledger: insufficient allowance")
	errNotOwner              = errors.New("token ledger: caller is not the token owner")
	errNilState              = errors.New("token ledger: state not configured")
)

// Sentinel accessors so callers can match ledger failures without importing
// package internals.
var (
	ErrInvalidAmount         = errInvalidAmount
	ErrInsufficientBalance   = errInsufficientBalance
	ErrInsufficientAllowance = errInsufficientAllowance
	ErrNotOwner              = errNotOwner
)

// Ledger tracks balances for one collateral asset kind. Transfers report
// failures as explicit errors which callers must check; a failed movement
// never silently succeeds.
type Ledger struct {
	state  *State
	symbol string
}

// NewLedger constructs a ledger for the collateral symbol.
func NewLedger(state *State, symbol string) *Ledger {
	return &Ledger{state: state, symbol: strings.ToUpper(strings.TrimSpace(symbol))}
}

// WithState returns a view of the ledger bound to the provided state. Actions
// use it to stage token mutations in an overlay-backed state and flush them
// with the rest of their write set.
func (l *Ledger) WithState(state *State) *Ledger {
	if l == nil {
		return nil
	}
	return &Ledger{state: state, symbol: l.symbol}
}

// Symbol returns the asset symbol the ledger tracks.
func (l *Ledger) Symbol() string {
	if l == nil {
		return ""
	}
	return l.symbol
}

// BalanceOf returns the holder's balance.
func (l *Ledger) BalanceOf(addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return acc.CollateralBalance(l.symbol), nil
}

// Credit adds newly issued units to the holder. Used by deployment/test
// fixtures to fund accounts; the protocol itself never creates collateral.
func (l *Ledger) Credit(addr crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return err
	}
	acc.SetCollateralBalance(l.symbol, new(big.Int).Add(acc.CollateralBalance(l.symbol), amount))
	return l.state.PutAccount(addr, acc)
}

// Transfer moves amount from the caller to the recipient.
func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	return l.move(from, to, amount)
}

// Approve records the spender's allowance over the owner's balance.
func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	return l.state.SetAllowance(l.symbol, owner, spender, amount)
}

// Allowance returns the spender's remaining allowance over the owner's
// balance.
func (l *Ledger) Allowance(owner, spender crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.Allowance(l.symbol, owner, spender)
}

// TransferFrom moves amount from the owner to the recipient, consuming the
// spender's allowance.
func (l *Ledger) TransferFrom(spender, owner, to crypto.Address, amount *big.Int) error {
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
	if err := l.move(owner, to, amount); err != nil {
		return err
	}
	return l.state.SetAllowance(l.symbol, owner, spender, new(big.Int).Sub(allowance, amount))
}

func (l *Ledger) move(from, to crypto.Address, amount *big.Int) error {
	fromAcc, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	fromBal := fromAcc.CollateralBalance(l.symbol)
	if fromBal.Cmp(amount) < 0 {
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
	fromAcc.SetCollateralBalance(l.symbol, new(big.Int).Sub(fromBal, amount))
	toAcc.SetCollateralBalance(l.symbol, new(big.Int).Add(toAcc.CollateralBalance(l.symbol), amount))
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}
