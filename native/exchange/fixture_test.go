package exchange

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"synthex/decimal"
	"synthex/storage"
)

var (
	adminAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	oracleAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	userAddr       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	liquidatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")

	usdToken = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	btcToken = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	snyToken = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	snyFeed = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	btcFeed = common.HexToAddress("0x00000000000000000000000000000000000000d2")

	snyReserve  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	snyLiqFund  = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	stakingFund = common.HexToAddress("0x00000000000000000000000000000000000000e3")
)

const (
	genesisSlot      uint64 = 1_000
	genesisTimestamp int64  = 1_700_000_000

	oneSNY uint64 = 1_000_000
	oneUSD uint64 = 1_000_000
)

func testGenesis() Genesis {
	return Genesis{
		Admin:               adminAddr,
		Oracle:              oracleAddr,
		Slot:                genesisSlot,
		Timestamp:           genesisTimestamp,
		HealthFactor:        decimal.FromPercent(50),
		Fee:                 decimal.New(300, decimal.PercentScale),
		SwapTaxRatio:        decimal.FromPercent(20),
		LiquidationRate:     decimal.FromPercent(20),
		PenaltyToLiquidator: decimal.FromPercent(5),
		PenaltyToExchange:   decimal.FromPercent(5),
		DebtInterestRate:    decimal.FromPercent(1),
		LiquidationBuffer:   100,
		MaxDelay:            10,
		MinSwapValue:        decimal.FromUSD(oneUSD),
		DiscountCollateral:  snyToken,
		USDToken:            usdToken,
		USDMaxSupply:        decimal.FromUSD(1_000_000_000 * oneUSD),
		Staking: StakingGenesis{
			FundAccount:    stakingFund,
			RewardToken:    snyToken,
			RoundLength:    100,
			AmountPerRound: decimal.New(100*oneSNY, 6),
		},
		Feeds: []common.Address{snyFeed, btcFeed},
		Collaterals: []CollateralParams{{
			Feed:            snyFeed,
			Token:           snyToken,
			Reserve:         snyReserve,
			LiquidationFund: snyLiqFund,
			Decimals:        6,
			CollateralRatio: decimal.FromPercent(50),
			MaxCollateral:   decimal.New(10_000_000*oneSNY, 6),
		}},
		Synthetics: []SyntheticParams{{
			Feed:      btcFeed,
			Token:     btcToken,
			Decimals:  8,
			MaxSupply: decimal.New(21_000_000*100_000_000, 8),
		}},
	}
}

type fixture struct {
	t      *testing.T
	db     *storage.MemDB
	store  *Store
	engine *Engine
	clock  Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	store := NewStore(db)
	if _, _, err := store.WriteGenesis(testGenesis()); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	engine := NewEngine()
	engine.SetState(store)
	f := &fixture{t: t, db: db, store: store, engine: engine}
	f.setClock(Clock{Slot: genesisSlot, Timestamp: genesisTimestamp})
	f.setPrices(200_000_000, 5_000_000_000_000)
	return f
}

func (f *fixture) setClock(clock Clock) {
	f.t.Helper()
	if err := f.engine.SetClock(clock); err != nil {
		f.t.Fatalf("set clock: %v", err)
	}
	f.clock = clock
}

// advance moves the clock forward and refreshes both oracle prices.
func (f *fixture) advance(slots uint64, seconds int64, snyPrice, btcPrice uint64) {
	f.t.Helper()
	f.setClock(Clock{Slot: f.clock.Slot + slots, Timestamp: f.clock.Timestamp + seconds})
	f.setPrices(snyPrice, btcPrice)
}

func (f *fixture) setPrices(snyPrice, btcPrice uint64) {
	f.t.Helper()
	_, err := f.engine.UpdatePrices(oracleAddr, []PriceUpdate{
		{Feed: snyFeed, Price: decimal.FromPrice(snyPrice), Confidence: decimal.Zero(decimal.PriceScale), Twap: decimal.FromPrice(snyPrice)},
		{Feed: btcFeed, Price: decimal.FromPrice(btcPrice), Confidence: decimal.Zero(decimal.PriceScale), Twap: decimal.FromPrice(btcPrice)},
	})
	if err != nil {
		f.t.Fatalf("update prices: %v", err)
	}
}

func (f *fixture) state() *State {
	f.t.Helper()
	state, err := f.store.GetState()
	if err != nil || state == nil {
		f.t.Fatalf("load state: %v", err)
	}
	return state
}

func (f *fixture) list() *AssetsList {
	f.t.Helper()
	list, err := f.store.GetAssetsList()
	if err != nil || list == nil {
		f.t.Fatalf("load assets list: %v", err)
	}
	return list
}

func (f *fixture) account(owner common.Address) *ExchangeAccount {
	f.t.Helper()
	acc, err := f.store.GetExchangeAccount(owner)
	if err != nil || acc == nil {
		f.t.Fatalf("load account %s: %v", owner.Hex(), err)
	}
	return acc
}

// openPosition creates the user's account, deposits snyAmount and mints
// usdAmount.
func (f *fixture) openPosition(snyAmount, usdAmount uint64) {
	f.t.Helper()
	if _, err := f.engine.CreateExchangeAccount(userAddr); err != nil {
		f.t.Fatalf("create account: %v", err)
	}
	if _, err := f.engine.Deposit(userAddr, snyToken, snyAmount); err != nil {
		f.t.Fatalf("deposit: %v", err)
	}
	if usdAmount > 0 {
		if _, err := f.engine.Mint(userAddr, usdAmount); err != nil {
			f.t.Fatalf("mint: %v", err)
		}
	}
}

func rawOf(t *testing.T, d decimal.Decimal) uint64 {
	t.Helper()
	v, ok := d.Uint64()
	if !ok {
		t.Fatalf("value %s exceeds uint64", d)
	}
	return v
}

func fixedIDs() func() uuid.UUID {
	var n byte
	return func() uuid.UUID {
		n++
		return uuid.UUID{15: n}
	}
}
