package dex

import (
	"github.com/holiman/uint256"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/types"
)

// cpmm is a constant-product (x*y=k) pool adapter, covering both Cetus's
// and Kriya's CPMM pool types: they differ only in package/module names at
// the move-call layer, which ExtendTradeTx picks from the pool's protocol.
//
// Reserve math runs in uint256 rather than uint64 because the
// intermediate product resIn*resOut can overflow 64 bits for pools holding
// large-decimals coins; only the final swap output, which is bounded by
// resOut, is narrowed back to uint64.
type cpmm struct {
	pool   types.Pool
	a2b    bool // true: coin A is input, coin B is output
	resA   uint64
	resB   uint64
	feeBps uint32
}

func newCPMM(pool types.Pool) *cpmm {
	feeBps := pool.Extra.FeeBps
	if feeBps == 0 {
		feeBps = 30
	}
	return &cpmm{pool: pool, a2b: true, feeBps: feeBps}
}

// SetReserves installs the pool's current reserves, as observed from the
// simulator's object snapshot. Adapters are rebuilt per strategy tick from
// fresh catalog reads, so there is no mutation race with concurrent Swap
// evaluation elsewhere.
func (c *cpmm) SetReserves(resA, resB uint64) {
	c.resA, c.resB = resA, resB
}

func (c *cpmm) CoinInType() types.TypeTag {
	if c.a2b {
		return c.pool.Tokens[0].Type
	}
	return c.pool.Tokens[1].Type
}

func (c *cpmm) CoinOutType() types.TypeTag {
	if c.a2b {
		return c.pool.Tokens[1].Type
	}
	return c.pool.Tokens[0].Type
}

func (c *cpmm) Protocol() types.ProtocolTag { return c.pool.Protocol }
func (c *cpmm) ObjectID() types.ObjectId    { return c.pool.ID }

func (c *cpmm) Liquidity() uint64 {
	if c.a2b {
		return c.resB
	}
	return c.resA
}

func (c *cpmm) IsA2B() bool { return c.a2b }

func (c *cpmm) Flip() Dex {
	flipped := *c
	flipped.a2b = !c.a2b
	return &flipped
}

func (c *cpmm) SupportFlashloan() bool { return c.pool.Extra.SupportsFlash }

func (c *cpmm) PoolSnapshot() types.Pool { return c.pool }

// RepayAmount returns the amount owed to repay a flash loan of amount from
// this pool, inclusive of its swap fee, mirroring lendingVenue's formula.
func (c *cpmm) RepayAmount(amount uint64) uint64 {
	return amount + amount*uint64(c.feeBps)/10_000
}

// quote computes the constant-product swap output for amountIn, net of
// feeBps, following the same fee-then-invariant order as the source's
// Swap: fee is deducted from the input before the x*y=k invariant is
// applied, so the fee accrues entirely to the pool's reserves rather than
// being taken from the trader's output.
func (c *cpmm) quote(amountIn uint64) (amountOut uint64, err error) {
	resIn, resOut := c.resA, c.resB
	if !c.a2b {
		resIn, resOut = c.resB, c.resA
	}
	if resIn == 0 || resOut == 0 {
		return 0, arberr.ErrInsufficientLiq
	}
	if amountIn == 0 {
		return 0, nil
	}

	fee := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(uint64(c.feeBps)))
	fee.Div(fee, uint256.NewInt(10_000))
	amountInMinusFee := new(uint256.Int).Sub(uint256.NewInt(amountIn), fee)

	newResIn := new(uint256.Int).Add(uint256.NewInt(resIn), amountInMinusFee)
	k := new(uint256.Int).Mul(uint256.NewInt(resIn), uint256.NewInt(resOut))

	quotient := new(uint256.Int).Div(k, newResIn)
	if quotient.Gt(uint256.NewInt(resOut)) {
		// newResIn shrank below resIn's original value only if
		// amountInMinusFee underflowed, which can't happen given the
		// Sub above; guard kept for defensive symmetry with the
		// uint64 source.
		return 0, arberr.ErrInsufficientLiq
	}
	out := new(uint256.Int).Sub(uint256.NewInt(resOut), quotient)
	if !out.IsUint64() {
		return 0, arberr.ErrInsufficientLiq
	}
	return out.Uint64(), nil
}

func (c *cpmm) SwapTx(sm sim.Simulator, amountIn uint64, _ sim.SimulateCtx) (uint64, error) {
	return c.quote(amountIn)
}

func (c *cpmm) ExtendTradeTx(tb TxBuilder, amountIn uint64, minOut uint64, inputCoin any) (any, error) {
	out, err := c.quote(amountIn)
	if err != nil {
		return nil, err
	}
	if out < minOut {
		return nil, arberr.ErrInsufficientLiq
	}
	module := "cpmm"
	if c.pool.Protocol == types.ProtocolKriyaCPMM {
		module = "spot_dex"
	}
	return tb.MoveCall("0x2", module, "swap", []string{string(c.CoinInType()), string(c.CoinOutType())},
		[]any{string(c.pool.ID), inputCoin, minOut}), nil
}

func (c *cpmm) ExtendFlashloanTx(tb TxBuilder, amount uint64) (any, any, error) {
	if !c.SupportFlashloan() {
		return nil, nil, arberr.ErrNoFlashVenue
	}
	borrowed := tb.MoveCall("0x2", "cpmm", "flash_swap", []string{string(c.CoinInType())}, []any{string(c.pool.ID), amount})
	receipt := tb.MoveCall("0x2", "cpmm", "flash_receipt", nil, []any{string(c.pool.ID)})
	return borrowed, receipt, nil
}

func (c *cpmm) ExtendRepayTx(tb TxBuilder, receipt any, repayCoin any) error {
	tb.MoveCall("0x2", "cpmm", "repay_flash_swap", []string{string(c.CoinInType())}, []any{string(c.pool.ID), receipt, repayCoin})
	return nil
}
