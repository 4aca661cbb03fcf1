package synth

import (
	"fmt"
	"math/big"
	"strings"

	"xusd/core/events"
	"xusd/crypto"
	nativecommon "xusd/native/common"
	"xusd/native/oracle"
	"xusd/native/token"
	"xusd/storage"
)

const moduleName = "synth"

// Engine owns the solvency-accounting ledger: per-user collateral positions,
// per-user minted debt, and the guarded actions that mutate them. Every
// mutating action validates postconditions against a staged view, applies
// token movements on a storage overlay, and flushes the whole write set in
// one atomic batch. A failure at any step leaves no observable change.
type Engine struct {
	db            storage.Database
	state         engineState
	oracle        *oracle.Adapter
	synthetic     *token.SyntheticLedger
	collateral    map[string]*token.Ledger
	kinds         []CollateralKind
	feeds         map[string]string
	moduleAddress crypto.Address
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	latch         nativecommon.Latch
}

func normalizeKind(kind string) string {
	return strings.ToUpper(strings.TrimSpace(kind))
}

// NewEngine constructs the issuance engine. Collateral kinds and price feeds
// are parallel lists fixed for the engine's lifetime; a length mismatch is a
// construction failure.
func NewEngine(moduleAddr crypto.Address, kinds, feedIDs []string, synthetic *token.SyntheticLedger) (*Engine, error) {
	if len(kinds) != len(feedIDs) {
		return nil, ErrConfigMismatch
	}
	if synthetic == nil {
		return nil, fmt.Errorf("synth engine: synthetic ledger required")
	}
	engine := &Engine{
		moduleAddress: moduleAddr,
		synthetic:     synthetic,
		collateral:    make(map[string]*token.Ledger, len(kinds)),
		feeds:         make(map[string]string, len(kinds)),
	}
	for i, kind := range kinds {
		symbol := normalizeKind(kind)
		feedID := strings.TrimSpace(feedIDs[i])
		if symbol == "" || feedID == "" {
			return nil, fmt.Errorf("synth engine: empty collateral kind or feed at index %d", i)
		}
		if _, exists := engine.feeds[symbol]; exists {
			return nil, fmt.Errorf("synth engine: duplicate collateral kind %s", symbol)
		}
		engine.feeds[symbol] = feedID
		engine.kinds = append(engine.kinds, CollateralKind{Symbol: symbol, FeedID: feedID})
	}
	return engine, nil
}

// SetState wires the engine to the shared key-value store. The engine writes
// positions, debt and token movements for one action through a single overlay
// on this store so the whole write set lands atomically.
func (e *Engine) SetState(db storage.Database) {
	if e == nil {
		return
	}
	e.db = db
	e.state = NewLedgerState(db)
}

// SetOracle wires the staleness-enforcing price adapter.
func (e *Engine) SetOracle(adapter *oracle.Adapter) {
	if e == nil {
		return
	}
	e.oracle = adapter
}

// SetCollateralLedger wires the token ledger backing a registered kind.
func (e *Engine) SetCollateralLedger(kind string, ledger *token.Ledger) error {
	if e == nil {
		return ErrNilState
	}
	symbol := normalizeKind(kind)
	if _, ok := e.feeds[symbol]; !ok {
		return fmt.Errorf("%w: %s", ErrKindNotRegistered, kind)
	}
	e.collateral[symbol] = ledger
	return nil
}

// SetEmitter wires the event sink. A nil emitter disables emission.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// ModuleAddress returns the custody address collateral is held under.
func (e *Engine) ModuleAddress() crypto.Address {
	if e == nil {
		return crypto.Address{}
	}
	return e.moduleAddress
}

// begin runs the shared entry guards for a mutating action and returns the
// release for the reentrancy latch. A second guarded call while one is in
// flight fails immediately with ErrReentrantCall.
func (e *Engine) begin() (func(), error) {
	if e == nil || e.state == nil || e.db == nil {
		return nil, ErrNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if err := e.latch.Acquire(); err != nil {
		return nil, err
	}
	return e.latch.Release, nil
}

// actionFrame groups the overlay-bound views for one mutating action. Token
// movements and ledger writes share the overlay, so Flush persists the whole
// write set in one atomic batch and an abandoned frame leaves no trace.
type actionFrame struct {
	overlay   *storage.Overlay
	tokens    *token.State
	ledger    *LedgerState
	synthetic *token.SyntheticLedger
}

func (e *Engine) newFrame() *actionFrame {
	overlay := storage.NewOverlay(e.db)
	tokens := token.NewState(overlay)
	return &actionFrame{
		overlay:   overlay,
		tokens:    tokens,
		ledger:    NewLedgerState(overlay),
		synthetic: e.synthetic.WithState(tokens),
	}
}

// collateral rebinds a wired collateral ledger to the frame's overlay.
func (f *actionFrame) collateral(base *token.Ledger) *token.Ledger {
	return base.WithState(f.tokens)
}

// commit flushes the staged ledger mutations into the frame and the frame
// into the backing store.
func (f *actionFrame) commit(staged *stagedLedger) error {
	if err := staged.CommitTo(f.ledger); err != nil {
		return err
	}
	return f.overlay.Flush()
}

// requireAccount rejects ledger actions on behalf of the custody address.
func (e *Engine) requireAccount(addr crypto.Address) error {
	if addr.Equal(e.moduleAddress) {
		return ErrCustodyAccount
	}
	return nil
}

func (e *Engine) collateralLedger(kind string) (*token.Ledger, error) {
	symbol := normalizeKind(kind)
	if _, ok := e.feeds[symbol]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindNotRegistered, kind)
	}
	ledger, ok := e.collateral[symbol]
	if !ok || ledger == nil {
		return nil, fmt.Errorf("%w: %s has no token ledger", ErrKindNotRegistered, kind)
	}
	return ledger, nil
}

// CollateralLedger returns the token ledger backing a registered kind. Callers
// use it for approvals and balance queries outside the engine's guarded paths.
func (e *Engine) CollateralLedger(kind string) (*token.Ledger, error) {
	if e == nil {
		return nil, ErrNilState
	}
	return e.collateralLedger(kind)
}

func (e *Engine) emit(evt events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

// DepositCollateral pulls collateral from the user into protocol custody and
// increments their position. Depositing alone never harms solvency, so no
// health check runs.
func (e *Engine) DepositCollateral(user crypto.Address, kind string, amount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.requireAccount(user); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.collateralLedger(kind)
	if err != nil {
		return err
	}

	staged := newStagedLedger(e.state)
	position, err := staged.GetPosition(user, kind)
	if err != nil {
		return err
	}
	if err := staged.PutPosition(user, kind, new(big.Int).Add(position, amount)); err != nil {
		return err
	}

	frame := e.newFrame()
	if err := frame.collateral(ledger).TransferFrom(e.moduleAddress, user, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.commit(staged); err != nil {
		return err
	}
	e.emit(WrapEvent(collateralDepositedEvent(user.String(), normalizeKind(kind), amount.String())))
	return nil
}

// Mint issues synthetic debt against the user's collateral. The health factor
// is re-derived with the tentative debt applied; a violation aborts with
// nothing persisted.
func (e *Engine) Mint(user crypto.Address, amount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.requireAccount(user); err != nil {
		return err
	}
	return e.mintStaged(newStagedLedger(e.state), e.newFrame(), user, amount)
}

func (e *Engine) mintStaged(staged *stagedLedger, frame *actionFrame, user crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	debt, err := staged.GetDebt(user)
	if err != nil {
		return err
	}
	if err := staged.PutDebt(user, new(big.Int).Add(debt, amount)); err != nil {
		return err
	}
	if err := e.requireHealthy(staged, user); err != nil {
		return err
	}
	if err := frame.synthetic.Mint(e.moduleAddress, user, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.commit(staged); err != nil {
		return err
	}
	e.emit(WrapEvent(mintedEvent(user.String(), amount.String())))
	return nil
}

// DepositAndMint composes deposit and mint into one atomic action. The health
// check runs against the fully staged outcome before any token moves, so a
// failing mint leaves the deposit unapplied too.
func (e *Engine) DepositAndMint(user crypto.Address, kind string, collateralAmount, mintAmount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.requireAccount(user); err != nil {
		return err
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if mintAmount == nil || mintAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.collateralLedger(kind)
	if err != nil {
		return err
	}

	staged := newStagedLedger(e.state)
	position, err := staged.GetPosition(user, kind)
	if err != nil {
		return err
	}
	if err := staged.PutPosition(user, kind, new(big.Int).Add(position, collateralAmount)); err != nil {
		return err
	}
	debt, err := staged.GetDebt(user)
	if err != nil {
		return err
	}
	if err := staged.PutDebt(user, new(big.Int).Add(debt, mintAmount)); err != nil {
		return err
	}
	if err := e.requireHealthy(staged, user); err != nil {
		return err
	}

	frame := e.newFrame()
	if err := frame.collateral(ledger).TransferFrom(e.moduleAddress, user, e.moduleAddress, collateralAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.synthetic.Mint(e.moduleAddress, user, mintAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.commit(staged); err != nil {
		return err
	}
	e.emit(WrapEvent(collateralDepositedEvent(user.String(), normalizeKind(kind), collateralAmount.String())))
	e.emit(WrapEvent(mintedEvent(user.String(), mintAmount.String())))
	return nil
}

// RedeemCollateral releases collateral back to the user. The post-mutation
// health check rejects a redemption that would break solvency, and the whole
// action rolls back.
func (e *Engine) RedeemCollateral(user crypto.Address, kind string, amount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.requireAccount(user); err != nil {
		return err
	}
	return e.redeemStaged(newStagedLedger(e.state), e.newFrame(), user, kind, amount)
}

func (e *Engine) redeemStaged(staged *stagedLedger, frame *actionFrame, user crypto.Address, kind string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.collateralLedger(kind)
	if err != nil {
		return err
	}
	position, err := staged.GetPosition(user, kind)
	if err != nil {
		return err
	}
	if position.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	if err := staged.PutPosition(user, kind, new(big.Int).Sub(position, amount)); err != nil {
		return err
	}
	if err := e.requireHealthy(staged, user); err != nil {
		return err
	}
	if err := frame.collateral(ledger).Transfer(e.moduleAddress, user, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.commit(staged); err != nil {
		return err
	}
	e.emit(WrapEvent(collateralRedeemedEvent(user.String(), normalizeKind(kind), amount.String())))
	return nil
}

// RedeemForSynth burns debt and redeems collateral in one atomic action, with
// a single health check over the combined outcome.
func (e *Engine) RedeemForSynth(user crypto.Address, kind string, collateralAmount, burnAmount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.requireAccount(user); err != nil {
		return err
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if burnAmount == nil || burnAmount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.collateralLedger(kind)
	if err != nil {
		return err
	}

	staged := newStagedLedger(e.state)
	debt, err := staged.GetDebt(user)
	if err != nil {
		return err
	}
	if burnAmount.Cmp(debt) > 0 {
		return ErrBurnExceedsDebt
	}
	if err := staged.PutDebt(user, new(big.Int).Sub(debt, burnAmount)); err != nil {
		return err
	}
	position, err := staged.GetPosition(user, kind)
	if err != nil {
		return err
	}
	if position.Cmp(collateralAmount) < 0 {
		return ErrInsufficientCollateral
	}
	if err := staged.PutPosition(user, kind, new(big.Int).Sub(position, collateralAmount)); err != nil {
		return err
	}
	if err := e.requireHealthy(staged, user); err != nil {
		return err
	}

	frame := e.newFrame()
	if err := e.retireSynthetic(frame, user, burnAmount); err != nil {
		return err
	}
	if err := frame.collateral(ledger).Transfer(e.moduleAddress, user, collateralAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.commit(staged); err != nil {
		return err
	}
	e.emit(WrapEvent(burnedEvent(user.String(), burnAmount.String())))
	e.emit(WrapEvent(collateralRedeemedEvent(user.String(), normalizeKind(kind), collateralAmount.String())))
	return nil
}

// Burn retires synthetic debt. Burning can only improve health, but the
// re-check stays as defense in depth.
func (e *Engine) Burn(user crypto.Address, amount *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.requireAccount(user); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	staged := newStagedLedger(e.state)
	debt, err := staged.GetDebt(user)
	if err != nil {
		return err
	}
	if amount.Cmp(debt) > 0 {
		return ErrBurnExceedsDebt
	}
	if err := staged.PutDebt(user, new(big.Int).Sub(debt, amount)); err != nil {
		return err
	}
	if err := e.requireHealthy(staged, user); err != nil {
		return err
	}
	frame := e.newFrame()
	if err := e.retireSynthetic(frame, user, amount); err != nil {
		return err
	}
	if err := frame.commit(staged); err != nil {
		return err
	}
	e.emit(WrapEvent(burnedEvent(user.String(), amount.String())))
	return nil
}

// retireSynthetic pulls amount of the synthetic token from the holder into
// custody and destroys it, staged on the frame's overlay.
func (e *Engine) retireSynthetic(frame *actionFrame, holder crypto.Address, amount *big.Int) error {
	if err := frame.synthetic.TransferFrom(e.moduleAddress, holder, e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.synthetic.Burn(e.moduleAddress, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// Liquidate lets a third party repay part of an unhealthy target's debt in
// exchange for the equivalent collateral plus the liquidation bonus. Both
// postconditions are mandatory: the target's health factor must strictly
// improve, and the liquidator must remain healthy.
func (e *Engine) Liquidate(liquidator crypto.Address, kind string, target crypto.Address, debtToCover *big.Int) error {
	release, err := e.begin()
	if err != nil {
		return err
	}
	defer release()
	if err := e.requireAccount(liquidator); err != nil {
		return err
	}
	if err := e.requireAccount(target); err != nil {
		return err
	}
	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return ErrInvalidAmount
	}
	ledger, err := e.collateralLedger(kind)
	if err != nil {
		return err
	}

	staged := newStagedLedger(e.state)
	hfBefore, err := e.healthFactorOn(staged, target)
	if err != nil {
		return err
	}
	if hfBefore.Cmp(MinHealthFactor) >= 0 {
		return ErrHealthyUser
	}

	targetDebt, err := staged.GetDebt(target)
	if err != nil {
		return err
	}
	if debtToCover.Cmp(targetDebt) > 0 {
		return ErrBurnExceedsDebt
	}

	seized, err := e.CollateralFromUsd(kind, debtToCover)
	if err != nil {
		return err
	}
	bonus, err := mulDiv(seized, big.NewInt(LiquidationBonus), big.NewInt(LiquidationPrecision))
	if err != nil {
		return err
	}
	seized = new(big.Int).Add(seized, bonus)

	position, err := staged.GetPosition(target, kind)
	if err != nil {
		return err
	}
	if seized.Cmp(position) > 0 {
		return ErrInsufficientCollateral
	}
	if err := staged.PutPosition(target, kind, new(big.Int).Sub(position, seized)); err != nil {
		return err
	}
	if err := staged.PutDebt(target, new(big.Int).Sub(targetDebt, debtToCover)); err != nil {
		return err
	}

	hfAfter, err := e.healthFactorOn(staged, target)
	if err != nil {
		return err
	}
	if hfAfter.Cmp(hfBefore) <= 0 {
		return ErrHealthFactorNotImproved
	}
	if err := e.requireHealthy(staged, liquidator); err != nil {
		return err
	}

	// Debt repayment is funded from the liquidator's synthetic balance.
	frame := e.newFrame()
	if err := e.retireSynthetic(frame, liquidator, debtToCover); err != nil {
		return err
	}
	if err := frame.collateral(ledger).Transfer(e.moduleAddress, liquidator, seized); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := frame.commit(staged); err != nil {
		return err
	}
	e.emit(WrapEvent(liquidatedEvent(liquidator.String(), target.String(), normalizeKind(kind), debtToCover.String(), seized.String())))
	return nil
}

// --- Read-only query surface ---

// TotalCollateralUsd returns the USD value of everything the user has in
// custody.
func (e *Engine) TotalCollateralUsd(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.totalCollateralUsd(e.state, addr)
}

// Debt returns the user's outstanding minted amount.
func (e *Engine) Debt(addr crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.GetDebt(addr)
}

// Position returns the user's deposited amount for the kind.
func (e *Engine) Position(addr crypto.Address, kind string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if _, ok := e.feeds[normalizeKind(kind)]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrKindNotRegistered, kind)
	}
	return e.state.GetPosition(addr, kind)
}

// RegisteredKinds returns the immutable collateral allow list in registration
// order.
func (e *Engine) RegisteredKinds() []CollateralKind {
	if e == nil {
		return nil
	}
	return append([]CollateralKind(nil), e.kinds...)
}

// FeedIDForKind returns the price feed backing a registered kind.
func (e *Engine) FeedIDForKind(kind string) (string, error) {
	if e == nil {
		return "", ErrNilState
	}
	feedID, ok := e.feeds[normalizeKind(kind)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKindNotRegistered, kind)
	}
	return feedID, nil
}

// SyntheticSymbol returns the synthetic token identifier.
func (e *Engine) SyntheticSymbol() string {
	if e == nil || e.synthetic == nil {
		return ""
	}
	return e.synthetic.Symbol()
}

// EngineConstants reports every tunable the engine runs with.
func (e *Engine) EngineConstants() Constants {
	return Constants{
		Precision:               new(big.Int).Set(Precision),
		AdditionalFeedPrecision: new(big.Int).Set(AdditionalFeedPrecision),
		LiquidationThreshold:    LiquidationThreshold,
		LiquidationPrecision:    LiquidationPrecision,
		LiquidationBonus:        LiquidationBonus,
		MinHealthFactor:         new(big.Int).Set(MinHealthFactor),
	}
}

// View assembles the full read-model for one user.
func (e *Engine) View(addr crypto.Address) (*PositionView, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	view := &PositionView{Address: addr, Collateral: make(map[string]*big.Int, len(e.kinds))}
	for _, kind := range e.kinds {
		amount, err := e.state.GetPosition(addr, kind.Symbol)
		if err != nil {
			return nil, err
		}
		view.Collateral[kind.Symbol] = amount
	}
	debt, err := e.state.GetDebt(addr)
	if err != nil {
		return nil, err
	}
	view.Debt = debt
	totalUsd, err := e.totalCollateralUsd(e.state, addr)
	if err != nil {
		return nil, err
	}
	view.TotalCollateralUsd = totalUsd
	hf, err := HealthFactorFor(totalUsd, debt)
	if err != nil {
		return nil, err
	}
	view.HealthFactor = hf
	if hf.Cmp(MinHealthFactor) < 0 {
		view.Status = StatusUnhealthy
	} else {
		view.Status = StatusHealthy
	}
	return view, nil
}
