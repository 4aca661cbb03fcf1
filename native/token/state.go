package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"xusd/core/types"
	"xusd/crypto"
	"xusd/storage"
)

var (
	accountKeyPrefix   = []byte("token/account/")
	allowanceKeyPrefix = []byte("token/allowance/")
	supplyKeyPrefix    = []byte("token/supply/")
)

// State persists token accounts, allowances and supplies in the key-value
// store. Both ledgers share one account record per address so collateral and
// synthetic balances travel together.
type State struct {
	db storage.Database
}

// NewState wires the token state to the provided database.
func NewState(db storage.Database) *State {
	return &State{db: db}
}

func accountKey(addr crypto.Address) []byte {
	key := append([]byte(nil), accountKeyPrefix...)
	key = append(key, addr.Bytes()...)
	return key
}

func allowanceKey(symbol string, owner, spender crypto.Address) []byte {
	key := append([]byte(nil), allowanceKeyPrefix...)
	key = append(key, []byte(strings.ToUpper(symbol))...)
	key = append(key, '/')
	key = append(key, owner.Bytes()...)
	key = append(key, '/')
	key = append(key, spender.Bytes()...)
	return key
}

func supplyKey(symbol string) []byte {
	return append(append([]byte(nil), supplyKeyPrefix...), []byte(strings.ToUpper(symbol))...)
}

// GetAccount loads the account record for the address, returning a zeroed
// record when none exists yet.
func (s *State) GetAccount(addr crypto.Address) (*types.Account, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("token state not configured")
	}
	raw, err := s.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrNotFound) {
		acc := &types.Account{}
		acc.EnsureDefaults()
		return acc, nil
	}
	if err != nil {
		return nil, err
	}
	acc := &types.Account{}
	if err := json.Unmarshal(raw, acc); err != nil {
		return nil, fmt.Errorf("token state: decode account: %w", err)
	}
	acc.EnsureDefaults()
	return acc, nil
}

// PutAccount persists the account record for the address.
func (s *State) PutAccount(addr crypto.Address, acc *types.Account) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("token state not configured")
	}
	if acc == nil {
		return fmt.Errorf("token state: nil account")
	}
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("token state: encode account: %w", err)
	}
	return s.db.Put(accountKey(addr), raw)
}

// Allowance returns the approved spending amount, zero when unset.
func (s *State) Allowance(symbol string, owner, spender crypto.Address) (*big.Int, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("token state not configured")
	}
	raw, err := s.db.Get(allowanceKey(symbol, owner, spender))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("token state: corrupt allowance record")
	}
	return amount, nil
}

// SetAllowance persists the approved spending amount.
func (s *State) SetAllowance(symbol string, owner, spender crypto.Address, amount *big.Int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("token state not configured")
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token state: allowance must be non-negative")
	}
	return s.db.Put(allowanceKey(symbol, owner, spender), []byte(amount.String()))
}

// Supply returns the recorded total supply for the symbol, zero when unset.
func (s *State) Supply(symbol string) (*big.Int, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("token state not configured")
	}
	raw, err := s.db.Get(supplyKey(symbol))
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	supply, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("token state: corrupt supply record")
	}
	return supply, nil
}

// SetSupply persists the total supply for the symbol.
func (s *State) SetSupply(symbol string, supply *big.Int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("token state not configured")
	}
	if supply == nil || supply.Sign() < 0 {
		return fmt.Errorf("token state: supply must be non-negative")
	}
	return s.db.Put(supplyKey(symbol), []byte(supply.String()))
}
