package dex

import (
	"github.com/holiman/uint256"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/types"
)

// clmm is a concentrated-liquidity pool adapter (Kriya CLMM, Turbos). It
// models a single active tick's liquidity rather than walking the full
// tick bitmap: within one tick range the CLMM swap formula degenerates to
// the same x*y=k shape as cpmm, just expressed in sqrt-price terms, which
// is an adequate approximation for sizing a candidate trade before the
// real on-chain swap call (which does walk the tick map) settles the
// exact output.
type clmm struct {
	pool         types.Pool
	a2b          bool
	sqrtPriceX64 *uint256.Int
	liquidity    uint64
	feeBps       uint32
}

func newCLMM(pool types.Pool) *clmm {
	feeBps := pool.Extra.FeeBps
	if feeBps == 0 {
		feeBps = 30
	}
	sp := pool.Extra.SqrtPriceX64
	if sp == nil {
		sp = uint256.NewInt(0)
	}
	return &clmm{pool: pool, a2b: true, sqrtPriceX64: sp, feeBps: feeBps}
}

// SetLiquidity installs the pool's currently-active-tick liquidity, as
// read from the tick-map object referenced by pool.Extra.TickMapRef.
func (c *clmm) SetLiquidity(liquidity uint64) { c.liquidity = liquidity }

func (c *clmm) CoinInType() types.TypeTag {
	if c.a2b {
		return c.pool.Tokens[0].Type
	}
	return c.pool.Tokens[1].Type
}

func (c *clmm) CoinOutType() types.TypeTag {
	if c.a2b {
		return c.pool.Tokens[1].Type
	}
	return c.pool.Tokens[0].Type
}

func (c *clmm) Protocol() types.ProtocolTag { return c.pool.Protocol }
func (c *clmm) ObjectID() types.ObjectId    { return c.pool.ID }
func (c *clmm) Liquidity() uint64           { return c.liquidity }
func (c *clmm) IsA2B() bool                 { return c.a2b }

func (c *clmm) Flip() Dex {
	flipped := *c
	flipped.a2b = !c.a2b
	return &flipped
}

func (c *clmm) SupportFlashloan() bool { return c.pool.Extra.SupportsFlash }

func (c *clmm) PoolSnapshot() types.Pool { return c.pool }

// RepayAmount returns the amount owed to repay a flash loan of amount from
// this pool, inclusive of its swap fee, mirroring lendingVenue's formula.
func (c *clmm) RepayAmount(amount uint64) uint64 {
	return amount + amount*uint64(c.feeBps)/10_000
}

// Q64 is the fixed-point denominator sqrt prices are expressed in.
var q64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

// quote approximates the output for a swap within the active tick's
// liquidity using the constant-virtual-reserves identity virtualX =
// L/sqrtP, virtualY = L*sqrtP, which holds exactly for a CLMM pool as
// long as the trade doesn't cross a tick boundary.
func (c *clmm) quote(amountIn uint64) (uint64, error) {
	if c.liquidity == 0 || c.sqrtPriceX64.IsZero() {
		return 0, arberr.ErrInsufficientLiq
	}
	if amountIn == 0 {
		return 0, nil
	}

	fee := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(uint64(c.feeBps)))
	fee.Div(fee, uint256.NewInt(10_000))
	netIn := new(uint256.Int).Sub(uint256.NewInt(amountIn), fee)

	l := uint256.NewInt(c.liquidity)
	// virtualIn/virtualOut depend on direction: a2b trades token A
	// (virtualX = L*Q64/sqrtP) into token B (virtualY = L*sqrtP/Q64).
	virtualX := new(uint256.Int).Mul(l, q64)
	virtualX.Div(virtualX, c.sqrtPriceX64)
	virtualY := new(uint256.Int).Mul(l, c.sqrtPriceX64)
	virtualY.Div(virtualY, q64)

	var resIn, resOut *uint256.Int
	if c.a2b {
		resIn, resOut = virtualX, virtualY
	} else {
		resIn, resOut = virtualY, virtualX
	}

	k := new(uint256.Int).Mul(resIn, resOut)
	newResIn := new(uint256.Int).Add(resIn, netIn)
	if newResIn.IsZero() {
		return 0, arberr.ErrInsufficientLiq
	}
	quotient := new(uint256.Int).Div(k, newResIn)
	if quotient.Gt(resOut) {
		return 0, arberr.ErrInsufficientLiq
	}
	out := new(uint256.Int).Sub(resOut, quotient)
	if !out.IsUint64() {
		return 0, arberr.ErrInsufficientLiq
	}
	return out.Uint64(), nil
}

func (c *clmm) SwapTx(sm sim.Simulator, amountIn uint64, _ sim.SimulateCtx) (uint64, error) {
	return c.quote(amountIn)
}

func (c *clmm) ExtendTradeTx(tb TxBuilder, amountIn uint64, minOut uint64, inputCoin any) (any, error) {
	out, err := c.quote(amountIn)
	if err != nil {
		return nil, err
	}
	if out < minOut {
		return nil, arberr.ErrInsufficientLiq
	}
	module := "clmm"
	if c.pool.Protocol == types.ProtocolTurbosCLMM {
		module = "pool"
	}
	return tb.MoveCall("0x2", module, "swap", []string{string(c.CoinInType()), string(c.CoinOutType())},
		[]any{string(c.pool.ID), inputCoin, minOut, string(c.pool.Extra.TickMapRef)}), nil
}

func (c *clmm) ExtendFlashloanTx(tb TxBuilder, amount uint64) (any, any, error) {
	if !c.SupportFlashloan() {
		return nil, nil, arberr.ErrNoFlashVenue
	}
	borrowed := tb.MoveCall("0x2", "clmm", "flash_swap", []string{string(c.CoinInType())}, []any{string(c.pool.ID), amount})
	receipt := tb.MoveCall("0x2", "clmm", "flash_receipt", nil, []any{string(c.pool.ID)})
	return borrowed, receipt, nil
}

func (c *clmm) ExtendRepayTx(tb TxBuilder, receipt any, repayCoin any) error {
	tb.MoveCall("0x2", "clmm", "repay_flash_swap", []string{string(c.CoinInType())}, []any{string(c.pool.ID), receipt, repayCoin})
	return nil
}
