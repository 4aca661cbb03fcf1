package modules

import (
	"errors"
	"math/big"
	"net/http"
	"strings"
	"time"

	"xusd/core/events"
	"xusd/crypto"
	nativecommon "xusd/native/common"
	"xusd/native/oracle"
	"xusd/native/synth"
	"xusd/native/token"
	"xusd/observability"
)

// SynthModule adapts the synth engine to the JSON-RPC surface. It owns the
// translation from engine errors to wire errors; the transport layer never
// inspects engine sentinels directly.
type SynthModule struct {
	engine    *synth.Engine
	synthetic *token.SyntheticLedger
	recorder  *events.Recorder
}

func NewSynthModule(engine *synth.Engine, synthetic *token.SyntheticLedger, recorder *events.Recorder) *SynthModule {
	return &SynthModule{engine: engine, synthetic: synthetic, recorder: recorder}
}

func (m *SynthModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "synth module not available"}
}

func (m *SynthModule) available() bool {
	return m != nil && m.engine != nil
}

// --- mutating operations ---

// observe runs one engine action and records its outcome, latency and, on
// failure, the error kind.
func (m *SynthModule) observe(action string, fn func() error) *ModuleError {
	started := time.Now()
	err := fn()
	observability.Engine().ObserveAction(action, err, time.Since(started))
	if err != nil {
		observability.Engine().ObserveFailure(action, errorKind(err))
		return m.wrapError(err)
	}
	return nil
}

func (m *SynthModule) DepositCollateral(user crypto.Address, kind string, amount *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	return m.observe("deposit", func() error {
		return m.engine.DepositCollateral(user, kind, amount)
	})
}

func (m *SynthModule) Mint(user crypto.Address, amount *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	return m.observe("mint", func() error {
		return m.engine.Mint(user, amount)
	})
}

func (m *SynthModule) DepositAndMint(user crypto.Address, kind string, collateralAmount, mintAmount *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	return m.observe("deposit_and_mint", func() error {
		return m.engine.DepositAndMint(user, kind, collateralAmount, mintAmount)
	})
}

func (m *SynthModule) RedeemCollateral(user crypto.Address, kind string, amount *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	return m.observe("redeem", func() error {
		return m.engine.RedeemCollateral(user, kind, amount)
	})
}

func (m *SynthModule) RedeemForSynth(user crypto.Address, kind string, collateralAmount, burnAmount *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	return m.observe("redeem_for_synth", func() error {
		return m.engine.RedeemForSynth(user, kind, collateralAmount, burnAmount)
	})
}

func (m *SynthModule) Burn(user crypto.Address, amount *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	return m.observe("burn", func() error {
		return m.engine.Burn(user, amount)
	})
}

func (m *SynthModule) Liquidate(liquidator crypto.Address, kind string, target crypto.Address, debtToCover *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	modErr := m.observe("liquidate", func() error {
		return m.engine.Liquidate(liquidator, kind, target, debtToCover)
	})
	if modErr == nil {
		observability.Engine().ObserveLiquidation()
	}
	return modErr
}

// ApproveCollateral grants the engine's custody address spending rights over a
// user's collateral tokens, a prerequisite for deposits.
func (m *SynthModule) ApproveCollateral(owner crypto.Address, kind string, amount *big.Int) *ModuleError {
	if !m.available() {
		return m.moduleUnavailable()
	}
	ledger, err := m.engine.CollateralLedger(kind)
	if err != nil {
		return m.wrapError(err)
	}
	return m.wrapError(ledger.Approve(owner, m.engine.ModuleAddress(), amount))
}

// --- queries ---

func (m *SynthModule) Position(addr crypto.Address) (*synth.PositionView, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	view, err := m.engine.View(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return view, nil
}

func (m *SynthModule) HealthFactor(addr crypto.Address) (*big.Int, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	hf, err := m.engine.HealthFactor(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return hf, nil
}

func (m *SynthModule) TotalCollateralUsd(addr crypto.Address) (*big.Int, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	usd, err := m.engine.TotalCollateralUsd(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return usd, nil
}

func (m *SynthModule) Debt(addr crypto.Address) (*big.Int, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	debt, err := m.engine.Debt(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return debt, nil
}

func (m *SynthModule) CollateralBalance(addr crypto.Address, kind string) (*big.Int, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	amount, err := m.engine.Position(addr, kind)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return amount, nil
}

func (m *SynthModule) MaxMintCapacity(addr crypto.Address) (*big.Int, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	capacity, err := m.engine.MaxMintCapacity(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return capacity, nil
}

func (m *SynthModule) UsdValue(kind string, amount *big.Int) (*big.Int, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	usd, err := m.engine.UsdValue(kind, amount)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return usd, nil
}

func (m *SynthModule) CollateralFromUsd(kind string, usd *big.Int) (*big.Int, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	amount, err := m.engine.CollateralFromUsd(kind, usd)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return amount, nil
}

func (m *SynthModule) CollateralKinds() ([]synth.CollateralKind, *ModuleError) {
	if !m.available() {
		return nil, m.moduleUnavailable()
	}
	return m.engine.RegisteredKinds(), nil
}

func (m *SynthModule) Constants() (synth.Constants, *ModuleError) {
	if !m.available() {
		return synth.Constants{}, m.moduleUnavailable()
	}
	return m.engine.EngineConstants(), nil
}

func (m *SynthModule) SyntheticBalance(addr crypto.Address) (*big.Int, *ModuleError) {
	if m == nil || m.synthetic == nil {
		return nil, m.moduleUnavailable()
	}
	balance, err := m.synthetic.BalanceOf(addr)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return balance, nil
}

// SyntheticSymbol returns the token symbol the synthetic ledger tracks.
func (m *SynthModule) SyntheticSymbol() (string, *ModuleError) {
	if m == nil || m.synthetic == nil {
		return "", m.moduleUnavailable()
	}
	return m.synthetic.Symbol(), nil
}

func (m *SynthModule) SyntheticSupply() (*big.Int, *ModuleError) {
	if m == nil || m.synthetic == nil {
		return nil, m.moduleUnavailable()
	}
	supply, err := m.synthetic.TotalSupply()
	if err != nil {
		return nil, m.wrapError(err)
	}
	return supply, nil
}

func (m *SynthModule) RecentEvents(limit int) ([]events.Recorded, *ModuleError) {
	if m == nil || m.recorder == nil {
		return nil, m.moduleUnavailable()
	}
	return m.recorder.Recent(limit), nil
}

func (m *SynthModule) wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	code := codeServerError
	message := err.Error()
	var data interface{}
	switch {
	case errors.Is(err, nativecommon.ErrReentrantCall):
		status = http.StatusConflict
	case errors.Is(err, oracle.ErrStalePrice), errors.Is(err, oracle.ErrFeedNotFound), errors.Is(err, oracle.ErrInvalidPrice):
		status = http.StatusServiceUnavailable
	case errors.Is(err, nativecommon.ErrModulePaused):
		status = http.StatusServiceUnavailable
	case strings.HasPrefix(message, "synth engine:"), strings.HasPrefix(message, "token ledger:"):
		status = http.StatusBadRequest
		code = codeInvalidParams
	}
	var tooLow *synth.HealthFactorTooLowError
	if errors.As(err, &tooLow) {
		data = map[string]string{
			"healthFactor": tooLow.HealthFactor.String(),
			"minRequired":  tooLow.MinRequired.String(),
		}
	}
	return &ModuleError{HTTPStatus: status, Code: code, Message: message, Data: data}
}

// errorKind buckets engine errors into low-cardinality labels for metrics.
func errorKind(err error) string {
	switch {
	case errors.Is(err, synth.ErrHealthFactorTooLow):
		return "health_factor"
	case errors.Is(err, synth.ErrHealthFactorNotImproved):
		return "not_improved"
	case errors.Is(err, synth.ErrHealthyUser):
		return "healthy_user"
	case errors.Is(err, synth.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, synth.ErrBurnExceedsDebt):
		return "burn_exceeds_debt"
	case errors.Is(err, synth.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, synth.ErrKindNotRegistered):
		return "unknown_kind"
	case errors.Is(err, synth.ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, synth.ErrCustodyAccount):
		return "custody_account"
	case errors.Is(err, oracle.ErrStalePrice):
		return "stale_price"
	case errors.Is(err, oracle.ErrFeedNotFound), errors.Is(err, oracle.ErrInvalidPrice):
		return "bad_quote"
	case errors.Is(err, nativecommon.ErrReentrantCall):
		return "reentrant"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return "paused"
	default:
		return "internal"
	}
}
