package exchange

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"synthex/decimal"
	nativecommon "synthex/native/common"
)

const moduleName = "exchange"

type engineState interface {
	GetState() (*State, error)
	GetAssetsList() (*AssetsList, error)
	// GetExchangeAccount returns nil without error when no account exists.
	GetExchangeAccount(owner common.Address) (*ExchangeAccount, error)
	Commit(cs *Changeset) error
}

// Changeset is the set of records an operation writes. It is applied
// atomically or not at all.
type Changeset struct {
	State      *State
	AssetsList *AssetsList
	Accounts   []*ExchangeAccount
}

// Engine executes exchange operations against its persistence layer. Callers
// must serialise calls; the engine performs no locking of its own.
type Engine struct {
	state  engineState
	clock  Clock
	pauses nativecommon.PauseView
	newID  func() uuid.UUID
}

// NewEngine constructs an exchange engine. SetState must be called before
// any operation.
func NewEngine() *Engine {
	return &Engine{newID: uuid.New}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetClock records the slot and unix timestamp used by subsequent
// operations. Neither may move backwards.
func (e *Engine) SetClock(clock Clock) error {
	if e == nil {
		return ErrNotConfigured
	}
	if clock.Slot < e.clock.Slot || clock.Timestamp < e.clock.Timestamp {
		return ErrClockRegression.with("slot %d/%d timestamp %d/%d", clock.Slot, e.clock.Slot, clock.Timestamp, e.clock.Timestamp)
	}
	e.clock = clock
	return nil
}

// Clock returns the clock of the next operation.
func (e *Engine) Clock() Clock {
	if e == nil {
		return Clock{}
	}
	return e.clock
}

// txn is the working set of one operation. All mutation happens on clones
// so an aborted operation leaves the store untouched.
type txn struct {
	clock    Clock
	state    *State
	list     *AssetsList
	accounts map[common.Address]*ExchangeAccount
	touched  []common.Address
	load     func(common.Address) (*ExchangeAccount, error)
	commitFn func(*Changeset) error
	receipt  *Receipt
}

func (e *Engine) begin(op Operation, owner common.Address, userFacing bool) (*txn, error) {
	if e == nil || e.state == nil {
		return nil, ErrNotConfigured.with("state not configured")
	}
	if err := nativecommon.Guard(e.pauses, moduleName, string(op)); err != nil {
		return nil, ErrHalted.with("%s paused: %v", op, err)
	}
	t, err := e.snapshot(op, owner)
	if err != nil {
		return nil, err
	}
	if userFacing && t.state.Halted {
		return nil, ErrHalted
	}
	return t, nil
}

// snapshot loads clones of the global records without any pause or halt
// checks; read-only queries use it directly.
func (e *Engine) snapshot(op Operation, owner common.Address) (*txn, error) {
	if e == nil || e.state == nil {
		return nil, ErrNotConfigured.with("state not configured")
	}
	stored, err := e.state.GetState()
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrNotConfigured.with("exchange state missing")
	}
	list, err := e.state.GetAssetsList()
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrNotConfigured.with("assets list missing")
	}
	if stored.AssetsList != list.ID {
		return nil, ErrInvalidAssetsList.with("state references %s, store holds %s", stored.AssetsList.Hex(), list.ID.Hex())
	}
	state := *stored
	newID := e.newID
	if newID == nil {
		newID = uuid.New
	}
	return &txn{
		clock:    e.clock,
		state:    &state,
		list:     list.Clone(),
		accounts: make(map[common.Address]*ExchangeAccount),
		load:     e.state.GetExchangeAccount,
		commitFn: e.state.Commit,
		receipt: &Receipt{
			ID:        newID(),
			Operation: op,
			Slot:      e.clock.Slot,
			Timestamp: e.clock.Timestamp,
			Owner:     owner,
		},
	}, nil
}

// account returns a mutable clone of owner's position.
func (t *txn) account(owner common.Address) (*ExchangeAccount, error) {
	if acc, ok := t.accounts[owner]; ok {
		return acc, nil
	}
	stored, err := t.load(owner)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrAccountNotFound.with("owner %s", owner.Hex())
	}
	if stored.Version != AccountVersion {
		return nil, ErrAccountVersion.with("account version %d, expected %d", stored.Version, AccountVersion)
	}
	if stored.Owner != owner {
		return nil, ErrInvalidSigner.with("account owner %s", stored.Owner.Hex())
	}
	acc := stored.Clone()
	t.accounts[owner] = acc
	t.touched = append(t.touched, owner)
	return acc, nil
}

// optionalAccount is account without the not-found failure.
func (t *txn) optionalAccount(owner common.Address) (*ExchangeAccount, error) {
	acc, err := t.account(owner)
	if err == nil {
		return acc, nil
	}
	if CodeOf(err) == ErrAccountNotFound.Code {
		return nil, nil
	}
	return nil, err
}

// refresh advances staking rounds and accrues debt interest up to the clock.
func (t *txn) refresh() error {
	t.state.Staking.AdvanceRounds(t.clock.Slot, t.state.DebtShares)
	return t.accrueInterest()
}

func (t *txn) sync(acc *ExchangeAccount) {
	t.state.Staking.SyncAccount(acc, t.clock.Slot)
}

// accrueInterest compounds the debt interest for every whole period elapsed
// since the last adjustment. Interest is realised as USD synthetic supply;
// the unconsumed remainder of the interval carries over.
func (t *txn) accrueInterest() error {
	if t.state.LastDebtAdjustment == 0 {
		t.state.LastDebtAdjustment = t.clock.Timestamp
		return nil
	}
	elapsed := t.clock.Timestamp - t.state.LastDebtAdjustment
	periods := elapsed / InterestPeriodSeconds
	if periods < 1 {
		return nil
	}
	t.state.LastDebtAdjustment += periods * InterestPeriodSeconds
	if t.state.DebtInterestRate.IsZero() {
		return nil
	}
	total, err := totalDebt(t.list, t.clock.Slot, t.state.MaxDelay, false)
	if err != nil {
		return err
	}
	rate, err := MinuteRate(t.state.DebtInterestRate)
	if err != nil {
		return err
	}
	interest, err := CompoundedInterest(total, rate, uint64(periods))
	if err != nil {
		return err
	}
	if interest.IsZero() {
		return nil
	}
	usd, err := t.list.USD()
	if err != nil {
		return err
	}
	minted, err := interest.ToScaleUp(usd.Decimals())
	if err != nil {
		return arith(err)
	}
	if usd.Supply, err = usd.Supply.Add(minted); err != nil {
		return arith(err)
	}
	if t.state.AccumulatedDebtInterest, err = t.state.AccumulatedDebtInterest.Add(interest); err != nil {
		return arith(err)
	}
	return nil
}

// debt returns total protocol debt and the account's share of it.
func (t *txn) debt(acc *ExchangeAccount) (total, user decimal.Decimal, err error) {
	total, err = TotalDebt(t.list, t.clock.Slot, t.state.MaxDelay)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	if acc == nil {
		return total, decimal.Zero(total.Scale()), nil
	}
	user, err = UserDebt(acc.DebtShares, t.state.DebtShares, total)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return total, user, nil
}

func (t *txn) maxDebt(acc *ExchangeAccount) (decimal.Decimal, error) {
	return MaxDebt(acc, t.list, t.clock.Slot, t.state.MaxDelay)
}

// commit writes every touched record atomically and returns the receipt.
func (t *txn) commit() (*Receipt, error) {
	cs := &Changeset{State: t.state, AssetsList: t.list}
	for _, owner := range t.touched {
		cs.Accounts = append(cs.Accounts, t.accounts[owner])
	}
	if err := t.commitFn(cs); err != nil {
		return nil, err
	}
	return t.receipt, nil
}

func addShares(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow.with("debt shares overflow")
	}
	return sum, nil
}

func requireSigner(signer common.Address) error {
	if signer == (common.Address{}) {
		return ErrInvalidSigner.with("empty signer")
	}
	return nil
}

// withinMax checks value <= limit, reporting failure as err.
func withinMax(value, limit decimal.Decimal, err *Error, what string) error {
	over, cmpErr := value.Gt(limit)
	if cmpErr != nil {
		return arith(cmpErr)
	}
	if over {
		return err.with("%s %s exceeds %s", what, value, limit)
	}
	return nil
}
