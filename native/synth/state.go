package synth

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"xusd/crypto"
	"xusd/storage"
)

// engineState is the persistence surface the engine mutates. Position entries
// are keyed (user, kind); debt is aggregated per user.
type engineState interface {
	GetPosition(addr crypto.Address, kind string) (*big.Int, error)
	PutPosition(addr crypto.Address, kind string, amount *big.Int) error
	GetDebt(addr crypto.Address) (*big.Int, error)
	PutDebt(addr crypto.Address, amount *big.Int) error
}

var (
	positionKeyPrefix = []byte("synth/position/")
	debtKeyPrefix     = []byte("synth/debt/")
)

// LedgerState persists positions and debt in the key-value store. Zero-valued
// entries are written back rather than deleted: zero is the terminal state of
// a closed position.
type LedgerState struct {
	db storage.Database
}

// NewLedgerState wires the ledger to the provided database.
func NewLedgerState(db storage.Database) *LedgerState {
	return &LedgerState{db: db}
}

func positionKey(addr crypto.Address, kind string) []byte {
	key := append([]byte(nil), positionKeyPrefix...)
	key = append(key, []byte(strings.ToUpper(kind))...)
	key = append(key, '/')
	key = append(key, addr.Bytes()...)
	return key
}

func debtKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), debtKeyPrefix...), addr.Bytes()...)
}

func (s *LedgerState) GetPosition(addr crypto.Address, kind string) (*big.Int, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilState
	}
	return s.loadAmount(positionKey(addr, kind))
}

func (s *LedgerState) PutPosition(addr crypto.Address, kind string, amount *big.Int) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	return s.storeAmount(positionKey(addr, kind), amount)
}

func (s *LedgerState) GetDebt(addr crypto.Address) (*big.Int, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilState
	}
	return s.loadAmount(debtKey(addr))
}

func (s *LedgerState) PutDebt(addr crypto.Address, amount *big.Int) error {
	if s == nil || s.db == nil {
		return ErrNilState
	}
	return s.storeAmount(debtKey(addr), amount)
}

func (s *LedgerState) loadAmount(key []byte) (*big.Int, error) {
	raw, err := s.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	amount, ok := new(big.Int).SetString(string(raw), 10)
	if !ok {
		return nil, fmt.Errorf("synth state: corrupt ledger record")
	}
	return amount, nil
}

func (s *LedgerState) storeAmount(key []byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("synth state: ledger amounts must be non-negative")
	}
	return s.db.Put(key, []byte(amount.String()))
}

// stagedLedger overlays pending mutations on top of the backing state so an
// action can be validated end to end before anything is persisted. Commit
// flushes the staged writes; dropping the overlay discards them, which is the
// rollback path.
type stagedLedger struct {
	base      engineState
	positions map[string]*big.Int
	debts     map[string]*big.Int
}

func newStagedLedger(base engineState) *stagedLedger {
	return &stagedLedger{
		base:      base,
		positions: make(map[string]*big.Int),
		debts:     make(map[string]*big.Int),
	}
}

func stagedPositionKey(addr crypto.Address, kind string) string {
	return strings.ToUpper(kind) + "/" + string(addr.Bytes())
}

func (s *stagedLedger) GetPosition(addr crypto.Address, kind string) (*big.Int, error) {
	if staged, ok := s.positions[stagedPositionKey(addr, kind)]; ok {
		return new(big.Int).Set(staged), nil
	}
	return s.base.GetPosition(addr, kind)
}

func (s *stagedLedger) PutPosition(addr crypto.Address, kind string, amount *big.Int) error {
	s.positions[stagedPositionKey(addr, kind)] = new(big.Int).Set(amount)
	return nil
}

func (s *stagedLedger) GetDebt(addr crypto.Address) (*big.Int, error) {
	if staged, ok := s.debts[string(addr.Bytes())]; ok {
		return new(big.Int).Set(staged), nil
	}
	return s.base.GetDebt(addr)
}

func (s *stagedLedger) PutDebt(addr crypto.Address, amount *big.Int) error {
	s.debts[string(addr.Bytes())] = new(big.Int).Set(amount)
	return nil
}

// Commit flushes every staged mutation to the backing state.
func (s *stagedLedger) Commit() error {
	return s.CommitTo(s.base)
}

// CommitTo flushes every staged mutation to target. The target may differ
// from the read base when the caller batches the action's writes through a
// storage overlay.
func (s *stagedLedger) CommitTo(target engineState) error {
	for key, amount := range s.positions {
		idx := strings.IndexByte(key, '/')
		kind := key[:idx]
		addr := crypto.NewAddress(crypto.UserPrefix, []byte(key[idx+1:]))
		if err := target.PutPosition(addr, kind, amount); err != nil {
			return err
		}
	}
	for key, amount := range s.debts {
		addr := crypto.NewAddress(crypto.UserPrefix, []byte(key))
		if err := target.PutDebt(addr, amount); err != nil {
			return err
		}
	}
	return nil
}
