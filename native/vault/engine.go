package vault

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync/atomic"
	"time"

	"refvault/events"
	"refvault/observability/metrics"
	"refvault/storage"
)

// Engine composes the ledger, oracle validator, conversion engine and role
// registry into the public money-movement operations. Every state-mutating
// entry point runs under the reentrancy guard and stages its ledger writes
// against an overlay that only commits once the whole operation has
// succeeded.
type Engine struct {
	db        storage.Database
	params    InitParams
	validator *PriceValidator
	converter *Converter
	bank      AssetBank
	emitter   events.Emitter
	logger    *slog.Logger
	met       *metrics.VaultMetrics
	nowFn     func() time.Time
	busy      atomic.Bool
}

// NewEngine validates the initialization parameters and binds the engine to
// the supplied database. A fresh database is initialised with the configured
// capacity and slippage and the admin role is granted; reopening an already
// initialised database leaves persisted state untouched.
func NewEngine(db storage.Database, params InitParams) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database required", ErrInvalidParameters)
	}
	normalized := params.Normalise()
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	engine := &Engine{
		db:      db,
		params:  normalized,
		emitter: events.NoopEmitter{},
		met:     metrics.Vault(),
		nowFn:   time.Now,
	}
	kv := storage.NewKV(db)
	ledger := NewLedger(kv)
	ok, err := kv.KVGet(globalStateKey, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := ledger.Initialize(normalized.CapacityLimit, normalized.SlippageBps); err != nil {
			return nil, err
		}
		if err := NewRoles(kv).Grant(RoleAdmin, normalized.Admin); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// SetOracle wires the price feed consumed by ValidatedPrice.
func (e *Engine) SetOracle(feed PriceFeed) {
	if e == nil {
		return
	}
	e.validator = NewPriceValidator(feed)
	if e.nowFn != nil {
		e.validator.SetClock(e.nowFn)
	}
}

// SetRouter wires the exchange router consumed by the conversion paths.
func (e *Engine) SetRouter(router Router) {
	if e == nil {
		return
	}
	e.converter = NewConverter(router)
	if e.nowFn != nil {
		e.converter.SetClock(e.nowFn)
	}
}

// SetBank wires the external asset transfer protocol.
func (e *Engine) SetBank(bank AssetBank) {
	if e == nil {
		return
	}
	e.bank = bank
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures the audit logger used by admin and lifecycle
// operations.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil {
		return
	}
	e.logger = logger
}

// SetNowFunc overrides the time source used for deadlines and staleness
// checks. Primarily intended for deterministic tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
	if e.validator != nil {
		e.validator.SetClock(now)
	}
	if e.converter != nil {
		e.converter.SetClock(now)
	}
}

// Params returns a copy of the immutable configuration.
func (e *Engine) Params() InitParams {
	return e.params.Normalise()
}

func (e *Engine) enter() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	return nil
}

func (e *Engine) exit() {
	e.busy.Store(false)
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) logInfo(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Info(msg, args...)
}

func (e *Engine) logWarn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

// compensate hands units back to the caller after an aborted operation. A
// refund that itself fails strands value with the vault, so it is surfaced
// through the transfer-failure metric and the audit log; the primary error
// of the aborted operation still propagates to the caller.
func (e *Engine) compensate(asset string, to Account, amount *big.Int) {
	if err := e.bank.Push(asset, to, amount); err != nil {
		e.met.ObserveTransferFailure()
		e.logWarn("vault refund failed",
			"asset", asset,
			"account", to.String(),
			"amount", amount.String(),
			"error", err.Error(),
		)
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

type opContext struct {
	staged *storage.Staged
	kv     *storage.KV
	ledger *Ledger
	state  *GlobalState
}

// beginOp stages an overlay over the base store and loads the global state.
// It rejects the operation while paused unless allowPaused is set.
func (e *Engine) beginOp(allowPaused bool) (*opContext, error) {
	staged := storage.NewStaged(e.db)
	kv := storage.NewKV(staged)
	ledger := NewLedger(kv)
	state, err := ledger.Global()
	if err != nil {
		return nil, err
	}
	if state.Paused && !allowPaused {
		e.met.ObserveRejection("paused")
		return nil, ErrOperationsSuspended
	}
	return &opContext{staged: staged, kv: kv, ledger: ledger, state: state}, nil
}

// commit flushes the staged writes and refreshes the outstanding gauge.
func (e *Engine) commit(op *opContext) error {
	if err := op.staged.Commit(); err != nil {
		return err
	}
	state, err := op.ledger.Global()
	if err == nil {
		e.met.SetOutstanding(state.TotalOutstanding)
	}
	return nil
}

func (e *Engine) requireBank() error {
	if e.bank == nil {
		return fmt.Errorf("vault: asset bank not configured")
	}
	return nil
}

func (e *Engine) requireConverter() error {
	if e.converter == nil {
		return fmt.Errorf("vault: router not configured")
	}
	return nil
}

// DepositNative converts the attached native value to reference units and
// credits the caller. Only the protocol slippage floor applies on this path.
func (e *Engine) DepositNative(caller Account, value *big.Int) (*DepositReceipt, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.requireBank(); err != nil {
		return nil, err
	}
	if err := e.requireConverter(); err != nil {
		return nil, err
	}
	if value == nil || value.Sign() <= 0 {
		e.met.ObserveRejection("zero_amount")
		return nil, ErrZeroAmount
	}
	op, err := e.beginOp(false)
	if err != nil {
		return nil, err
	}
	if err := op.state.CheckDepositCounter(); err != nil {
		return nil, err
	}
	if err := op.state.CheckSwapCounter(); err != nil {
		return nil, err
	}
	if e.validator != nil {
		if _, _, err := e.validator.ValidatedPrice(); err != nil {
			e.met.ObserveRejection("oracle")
			return nil, err
		}
	}
	path := []string{e.params.WrappedNative, e.params.ReferenceAsset}
	minOut, err := e.converter.MinimumOutput(value, path, op.state.SlippageBps)
	if err != nil {
		e.met.ObserveSwapFailure()
		return nil, err
	}
	actual, err := e.converter.Execute(value, minOut, path, e.params.Vault)
	if err != nil {
		e.met.ObserveSwapFailure()
		return nil, err
	}
	receipt, err := e.settleDeposit(op, caller, e.params.WrappedNative, value, actual, true)
	if err != nil {
		// The conversion already ran and cannot be unwound; return the
		// proceeds in reference units so the caller is made whole.
		e.compensate(e.params.ReferenceAsset, caller, actual)
		return nil, err
	}
	return receipt, nil
}

// DepositReference pulls reference-currency units from the caller and credits
// them 1:1, no conversion.
func (e *Engine) DepositReference(caller Account, amount *big.Int) (*DepositReceipt, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.requireBank(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		e.met.ObserveRejection("zero_amount")
		return nil, ErrZeroAmount
	}
	op, err := e.beginOp(false)
	if err != nil {
		return nil, err
	}
	if err := op.state.CheckDepositCounter(); err != nil {
		return nil, err
	}
	reference := e.params.ReferenceAsset
	if err := e.bank.Pull(reference, caller, amount); err != nil {
		e.met.ObserveTransferFailure()
		return nil, fmt.Errorf("%w: pull: %v", ErrTransferFailed, err)
	}
	receipt, err := e.settleDeposit(op, caller, reference, amount, amount, false)
	if err != nil {
		// The pull completed but the credit cannot: hand the units back
		// before surfacing the failure.
		e.compensate(reference, caller, amount)
		return nil, err
	}
	return receipt, nil
}

// DepositAsset pulls an arbitrary asset from the caller, converts it to
// reference units enforcing the stricter of the caller-supplied and
// protocol-computed minimum outputs, and credits the actual conversion
// output.
func (e *Engine) DepositAsset(caller Account, asset string, amount *big.Int, callerMinOut *big.Int) (*DepositReceipt, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.requireBank(); err != nil {
		return nil, err
	}
	if err := e.requireConverter(); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		e.met.ObserveRejection("zero_amount")
		return nil, ErrZeroAmount
	}
	symbol := normaliseAsset(asset)
	if symbol == "" || symbol == e.params.ReferenceAsset {
		e.met.ObserveRejection("unsupported_asset")
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
	op, err := e.beginOp(false)
	if err != nil {
		return nil, err
	}
	if err := op.state.CheckDepositCounter(); err != nil {
		return nil, err
	}
	if err := op.state.CheckSwapCounter(); err != nil {
		return nil, err
	}
	if err := e.bank.Pull(symbol, caller, amount); err != nil {
		e.met.ObserveTransferFailure()
		return nil, fmt.Errorf("%w: pull: %v", ErrTransferFailed, err)
	}
	if err := e.bank.Authorize(symbol, e.params.RouterID, amount); err != nil {
		e.compensate(symbol, caller, amount)
		e.met.ObserveTransferFailure()
		return nil, fmt.Errorf("%w: authorize: %v", ErrTransferFailed, err)
	}
	path := []string{symbol, e.params.ReferenceAsset}
	protocolMin, err := e.converter.MinimumOutput(amount, path, op.state.SlippageBps)
	if err != nil {
		e.compensate(symbol, caller, amount)
		e.met.ObserveSwapFailure()
		return nil, err
	}
	finalMin := StricterMinimum(callerMinOut, protocolMin)
	actual, err := e.converter.Execute(amount, finalMin, path, e.params.Vault)
	if err != nil {
		e.compensate(symbol, caller, amount)
		e.met.ObserveSwapFailure()
		return nil, err
	}
	receipt, err := e.settleDeposit(op, caller, symbol, amount, actual, true)
	if err != nil {
		// The swap already ran and cannot be unwound; return the proceeds in
		// reference units so the caller is made whole.
		e.compensate(e.params.ReferenceAsset, caller, actual)
		return nil, err
	}
	return receipt, nil
}

// settleDeposit applies the ledger credit, counter increments and journal
// entry against the staged overlay, then commits. The capacity check inside
// Credit runs against the actual credited amount.
func (e *Engine) settleDeposit(op *opContext, caller Account, asset string, amountIn, credited *big.Int, swapped bool) (*DepositReceipt, error) {
	if err := op.ledger.Credit(caller, credited); err != nil {
		e.met.ObserveRejection("cap_exceeded")
		return nil, err
	}
	state, err := op.ledger.Global()
	if err != nil {
		return nil, err
	}
	if err := state.BumpDeposit(); err != nil {
		return nil, err
	}
	if swapped {
		if err := state.BumpSwap(); err != nil {
			return nil, err
		}
	}
	if err := op.ledger.PutGlobal(state); err != nil {
		return nil, err
	}
	journal := NewJournal(op.kv)
	journal.SetClock(e.now)
	if _, err := journal.Append(&JournalEntry{
		Kind:      JournalKindDeposit,
		Account:   caller,
		Asset:     asset,
		AmountIn:  amountIn,
		AmountOut: credited,
	}); err != nil {
		return nil, err
	}
	if err := e.commit(op); err != nil {
		return nil, err
	}
	e.met.ObserveDeposit(asset)
	e.emit(events.DepositRecorded{
		Account:        caller,
		Asset:          asset,
		AmountIn:       cloneBigInt(amountIn),
		AmountCredited: cloneBigInt(credited),
	})
	return &DepositReceipt{
		Account:        caller,
		Asset:          asset,
		AmountIn:       cloneBigInt(amountIn),
		AmountCredited: cloneBigInt(credited),
	}, nil
}

// WithdrawReference debits the caller and pushes reference units out. The
// debit and counter increment are staged strictly before the external push;
// a failed push discards the stage, leaving persisted state untouched.
func (e *Engine) WithdrawReference(caller Account, amount *big.Int) (*WithdrawalReceipt, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.requireBank(); err != nil {
		return nil, err
	}
	op, err := e.beginOp(false)
	if err != nil {
		return nil, err
	}
	if err := op.state.CheckWithdrawalCounter(); err != nil {
		return nil, err
	}
	if err := e.stageWithdrawal(op, caller, amount); err != nil {
		return nil, err
	}
	reference := e.params.ReferenceAsset
	if err := e.bank.Push(reference, caller, amount); err != nil {
		e.met.ObserveTransferFailure()
		return nil, fmt.Errorf("%w: push: %v", ErrTransferFailed, err)
	}
	if err := e.finishWithdrawal(op, caller, reference, amount, amount); err != nil {
		return nil, err
	}
	return &WithdrawalReceipt{
		Account:       caller,
		Asset:         reference,
		AmountDebited: cloneBigInt(amount),
		AmountSent:    cloneBigInt(amount),
	}, nil
}

// WithdrawNative debits the caller in reference units and converts them to
// the wrapped-native asset, sending the proceeds directly to the caller. The
// protocol slippage floor applies to this conversion exactly as it does to
// deposits.
func (e *Engine) WithdrawNative(caller Account, amount *big.Int) (*WithdrawalReceipt, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	if err := e.requireBank(); err != nil {
		return nil, err
	}
	if err := e.requireConverter(); err != nil {
		return nil, err
	}
	op, err := e.beginOp(false)
	if err != nil {
		return nil, err
	}
	if err := op.state.CheckWithdrawalCounter(); err != nil {
		return nil, err
	}
	if err := e.stageWithdrawal(op, caller, amount); err != nil {
		return nil, err
	}
	reference := e.params.ReferenceAsset
	if err := e.bank.Authorize(reference, e.params.RouterID, amount); err != nil {
		e.met.ObserveTransferFailure()
		return nil, fmt.Errorf("%w: authorize: %v", ErrTransferFailed, err)
	}
	path := []string{reference, e.params.WrappedNative}
	minOut, err := e.converter.MinimumOutput(amount, path, op.state.SlippageBps)
	if err != nil {
		e.met.ObserveSwapFailure()
		return nil, err
	}
	sent, err := e.converter.Execute(amount, minOut, path, caller)
	if err != nil {
		e.met.ObserveSwapFailure()
		return nil, err
	}
	if err := e.finishWithdrawal(op, caller, e.params.WrappedNative, amount, sent); err != nil {
		return nil, err
	}
	return &WithdrawalReceipt{
		Account:       caller,
		Asset:         e.params.WrappedNative,
		AmountDebited: cloneBigInt(amount),
		AmountSent:    sent,
	}, nil
}

// stageWithdrawal applies the debit and counter increment to the staged
// overlay.
func (e *Engine) stageWithdrawal(op *opContext, caller Account, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		e.met.ObserveRejection("zero_amount")
		return ErrZeroAmount
	}
	if err := op.ledger.Debit(caller, amount, e.params.WithdrawalCeiling); err != nil {
		e.met.ObserveRejection("debit")
		return err
	}
	state, err := op.ledger.Global()
	if err != nil {
		return err
	}
	if err := state.BumpWithdrawal(); err != nil {
		return err
	}
	return op.ledger.PutGlobal(state)
}

func (e *Engine) finishWithdrawal(op *opContext, caller Account, asset string, debited, sent *big.Int) error {
	journal := NewJournal(op.kv)
	journal.SetClock(e.now)
	if _, err := journal.Append(&JournalEntry{
		Kind:      JournalKindWithdrawal,
		Account:   caller,
		Asset:     asset,
		AmountIn:  debited,
		AmountOut: sent,
	}); err != nil {
		return err
	}
	if err := e.commit(op); err != nil {
		return err
	}
	e.met.ObserveWithdrawal(asset)
	e.emit(events.WithdrawalRecorded{
		Account:       caller,
		Asset:         asset,
		AmountDebited: cloneBigInt(debited),
		AmountSent:    cloneBigInt(sent),
	})
	return nil
}

// Balance returns the caller-visible balance for an account.
func (e *Engine) Balance(account Account) (*big.Int, error) {
	return NewLedger(storage.NewKV(e.db)).Balance(account)
}

// Outstanding returns the recorded outstanding total.
func (e *Engine) Outstanding() (*big.Int, error) {
	state, err := NewLedger(storage.NewKV(e.db)).Global()
	if err != nil {
		return nil, err
	}
	return state.TotalOutstanding, nil
}

// ValidatedPrice surfaces the oracle validator as a read-only query.
func (e *Engine) ValidatedPrice() (*big.Int, uint8, error) {
	if e.validator == nil {
		return nil, 0, fmt.Errorf("vault: price feed not configured")
	}
	return e.validator.ValidatedPrice()
}

// Journal returns a read view over the committed operation journal.
func (e *Engine) Journal() *Journal {
	journal := NewJournal(storage.NewKV(e.db))
	journal.SetClock(e.now)
	return journal
}

// SetCapacity updates the global capacity limit. Lowering it below the
// current outstanding total is permitted: the cap is soft, it only blocks new
// deposits and never forces withdrawals.
func (e *Engine) SetCapacity(caller Account, newCap *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.hasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if newCap == nil || newCap.Sign() <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidParameters)
	}
	op, err := e.beginOp(true)
	if err != nil {
		return err
	}
	op.state.CapacityLimit = cloneBigInt(newCap)
	if err := op.ledger.PutGlobal(op.state); err != nil {
		return err
	}
	if err := e.commit(op); err != nil {
		return err
	}
	e.logInfo("vault capacity changed", "by", caller.String(), "newCapacity", newCap.String())
	e.emit(events.CapacityChanged{NewCapacity: cloneBigInt(newCap)})
	return nil
}

// SetDefaultSlippage updates the default slippage tolerance in basis points.
func (e *Engine) SetDefaultSlippage(caller Account, bps uint64) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.hasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	if err := ValidateSlippageBps(bps); err != nil {
		return err
	}
	op, err := e.beginOp(true)
	if err != nil {
		return err
	}
	op.state.SlippageBps = bps
	if err := op.ledger.PutGlobal(op.state); err != nil {
		return err
	}
	if err := e.commit(op); err != nil {
		return err
	}
	e.logInfo("vault slippage changed", "by", caller.String(), "newBps", bps)
	e.emit(events.SlippageChanged{NewBps: bps})
	return nil
}

// Pause suspends the money-movement operations. Admin configuration, role
// management, Rescue and read-only queries stay callable.
func (e *Engine) Pause(caller Account) error {
	return e.setPaused(caller, true)
}

// Resume reactivates the money-movement operations.
func (e *Engine) Resume(caller Account) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller Account, paused bool) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.hasRole(RolePauser, caller) && !e.hasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	op, err := e.beginOp(true)
	if err != nil {
		return err
	}
	if op.state.Paused == paused {
		return nil
	}
	op.state.Paused = paused
	if err := op.ledger.PutGlobal(op.state); err != nil {
		return err
	}
	if err := e.commit(op); err != nil {
		return err
	}
	if paused {
		e.logInfo("vault paused", "by", caller.String())
		e.emit(events.Paused{By: caller})
	} else {
		e.logInfo("vault resumed", "by", caller.String())
		e.emit(events.Resumed{By: caller})
	}
	return nil
}

// Paused reports whether money operations are currently suspended.
func (e *Engine) Paused() (bool, error) {
	state, err := NewLedger(storage.NewKV(e.db)).Global()
	if err != nil {
		return false, err
	}
	return state.Paused, nil
}

// Rescue sweeps holdings the vault carries but no account balance reflects
// (stray transfers). It touches neither balances nor the outstanding total
// and remains callable while paused.
func (e *Engine) Rescue(caller Account, asset string, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if err := e.requireBank(); err != nil {
		return err
	}
	if !e.hasRole(RoleTreasurer, caller) {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	symbol := normaliseAsset(asset)
	if symbol == "" {
		return fmt.Errorf("%w: asset required", ErrUnsupportedAsset)
	}
	if err := e.bank.Push(symbol, caller, amount); err != nil {
		e.met.ObserveTransferFailure()
		return fmt.Errorf("%w: push: %v", ErrTransferFailed, err)
	}
	journal := NewJournal(storage.NewKV(e.db))
	journal.SetClock(e.now)
	if _, err := journal.Append(&JournalEntry{
		Kind:      JournalKindRescue,
		Account:   caller,
		Asset:     symbol,
		AmountIn:  amount,
		AmountOut: amount,
	}); err != nil {
		return err
	}
	e.logInfo("vault asset rescued", "by", caller.String(), "asset", symbol, "amount", amount.String())
	e.emit(events.AssetRescued{Treasurer: caller, Asset: symbol, Amount: cloneBigInt(amount)})
	return nil
}

// GrantRole assigns a role to an account. Admin-gated.
func (e *Engine) GrantRole(caller Account, role string, account Account) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.hasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	return NewRoles(storage.NewKV(e.db)).Grant(role, account)
}

// RevokeRole removes a role from an account. Admin-gated.
func (e *Engine) RevokeRole(caller Account, role string, account Account) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	if !e.hasRole(RoleAdmin, caller) {
		return ErrUnauthorized
	}
	return NewRoles(storage.NewKV(e.db)).Revoke(role, account)
}

// HasRole reports whether the account currently holds the role.
func (e *Engine) HasRole(role string, account Account) bool {
	return e.hasRole(role, account)
}

func (e *Engine) hasRole(role string, account Account) bool {
	return NewRoles(storage.NewKV(e.db)).Has(role, account)
}
