// Package dex adapts each supported Sui DEX protocol's pool state and
// move-call shapes behind one uniform capability, Dex, so the trade and
// search packages never need to know which protocol a given Pool belongs
// to beyond dispatching to the right constructor.
package dex

import (
	"context"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/types"
)

// TxBuilder accumulates programmable-transaction-block fragments. Adapters
// append Move calls to it rather than returning raw bytes directly, so a
// single trade can chain several pools' swap calls into one PTB before the
// trade package finalises it into a sim.TxData.
type TxBuilder interface {
	// MoveCall appends a Move call fragment; args and typeArgs are
	// opaque from this package's point of view, left for the concrete
	// builder (internal/trade) to interpret when it flattens the PTB.
	MoveCall(pkg, module, function string, typeArgs []string, args []any) (result any)
}

// Dex is the uniform capability every protocol adapter implements. A and B
// refer to the pool's two coin slots as stored, not to any input/output
// ordering; IsA2B and Flip let a caller express directionality without the
// adapter needing to expose its internal coin ordering.
type Dex interface {
	CoinInType() types.TypeTag
	CoinOutType() types.TypeTag
	Protocol() types.ProtocolTag
	ObjectID() types.ObjectId

	// Liquidity returns the pool's current reserve of CoinOutType,
	// used by search as an upper bound on profitable input size.
	Liquidity() uint64

	// IsA2B reports whether this adapter currently swaps token A into
	// token B (as opposed to B into A).
	IsA2B() bool

	// Flip returns an adapter for the same pool swapping in the
	// opposite direction. Flip(Flip(d)) must be equivalent to d.
	Flip() Dex

	// SupportFlashloan reports whether this pool can originate a flash
	// loan of CoinInType.
	SupportFlashloan() bool

	// ExtendTradeTx appends this pool's swap call to tb, consuming
	// amountIn of CoinInType and producing at least minOut of
	// CoinOutType. It returns the handle to the output coin for
	// chaining into the next pool's ExtendTradeTx call.
	ExtendTradeTx(tb TxBuilder, amountIn uint64, minOut uint64, inputCoin any) (outputCoin any, err error)

	// ExtendFlashloanTx appends a flash-borrow call for amount of
	// CoinInType, returning the borrowed-coin handle and a receipt
	// handle that must be passed to ExtendRepayTx.
	ExtendFlashloanTx(tb TxBuilder, amount uint64) (borrowed any, receipt any, err error)

	// ExtendRepayTx appends the flash-loan repayment call.
	ExtendRepayTx(tb TxBuilder, receipt any, repayCoin any) error

	// SwapTx simulates this single pool's swap against sctx via sm,
	// returning the amount of CoinOutType produced. Used by search to
	// probe a candidate input size without constructing a full
	// multi-hop PTB.
	SwapTx(sm sim.Simulator, amountIn uint64, sctx sim.SimulateCtx) (amountOut uint64, err error)

	// PoolSnapshot returns the catalog Pool this adapter was built from,
	// letting a caller that only holds a Dex (e.g. the trade package's
	// PTB replay executor) recover enough context to re-price a hop
	// without threading the original Pool value through separately.
	PoolSnapshot() types.Pool
}

// New constructs the concrete adapter for pool, reading its current
// on-chain state through sm and dispatching on its protocol tag. The
// protocol set is closed (see internal/types.ProtocolTag), so the switch
// below is exhaustive by construction rather than an open registry.
// coinIn determines the adapter's initial swap direction; it must match one
// of pool's two token slots, or, for a lending pool, its single token slot.
func New(ctx context.Context, sm sim.Simulator, pool types.Pool, coinIn types.TypeTag) (Dex, error) {
	var a2b bool
	if pool.Protocol == types.ProtocolNaviLending {
		if len(pool.Tokens) != 1 || pool.Tokens[0].Type != coinIn {
			return nil, arberr.Wrapf(arberr.ErrUnsupportedProto, "lending pool %s does not lend %s", pool.ID, coinIn)
		}
	} else {
		if len(pool.Tokens) != 2 {
			return nil, arberr.Wrapf(arberr.ErrUnsupportedProto, "pool %s has %d token slots, want 2", pool.ID, len(pool.Tokens))
		}
		var err error
		if a2b, err = directionFor(pool, coinIn); err != nil {
			return nil, err
		}
	}
	obj, err := sm.GetObject(ctx, pool.ID)
	if err != nil {
		return nil, arberr.Wrapf(err, "read pool object %s", pool.ID)
	}
	switch pool.Protocol {
	case types.ProtocolCetusCPMM, types.ProtocolKriyaCPMM:
		resA, resB, err := decodeReserves(*obj)
		if err != nil {
			return nil, err
		}
		c := newCPMM(pool)
		c.SetReserves(resA, resB)
		c.a2b = a2b
		return c, nil
	case types.ProtocolKriyaCLMM, types.ProtocolTurbosCLMM:
		liquidity, err := decodeLiquidity(*obj)
		if err != nil {
			return nil, err
		}
		c := newCLMM(pool)
		c.SetLiquidity(liquidity)
		c.a2b = a2b
		return c, nil
	case types.ProtocolDeepbookV2:
		asks, bids, err := decodeOrderbookSides(*obj)
		if err != nil {
			return nil, err
		}
		o := newOrderbook(pool)
		o.SetLevels(asks, bids)
		o.a2b = a2b
		return o, nil
	case types.ProtocolNaviLending:
		// Navi pools reuse the reserve-slot convention: slot A holds the
		// venue's available flash-loan supply.
		resA, _, err := decodeReserves(*obj)
		if err != nil {
			return nil, err
		}
		l := newLendingVenue(pool)
		l.SetLiquidity(resA)
		return l, nil
	default:
		return nil, arberr.Wrapf(arberr.ErrUnsupportedProto, "protocol %s", pool.Protocol)
	}
}

// directionFor reports whether coinIn is pool's first token slot (a2b=true)
// or second (a2b=false), failing if coinIn names neither.
func directionFor(pool types.Pool, coinIn types.TypeTag) (bool, error) {
	if len(pool.Tokens) != 2 {
		return false, arberr.Wrapf(arberr.ErrUnsupportedProto, "pool %s has %d token slots, want 2", pool.ID, len(pool.Tokens))
	}
	switch coinIn {
	case pool.Tokens[0].Type:
		return true, nil
	case pool.Tokens[1].Type:
		return false, nil
	default:
		return false, arberr.Wrapf(arberr.ErrPathMismatch, "coin %s not in pool %s", coinIn, pool.ID)
	}
}

// QuoteAgainstObject re-derives amountOut for pool given a freshly-read
// object snapshot, without constructing a full Dex adapter or round-
// tripping through a Simulator. It is how the trade package's PTB replay
// executor re-prices each hop against up-to-date reserves during a dry
// run, since by that point it already has the object in hand.
func QuoteAgainstObject(pool types.Pool, coinIn types.TypeTag, obj types.Object, amountIn uint64) (uint64, error) {
	a2b, err := directionFor(pool, coinIn)
	if err != nil {
		return 0, err
	}
	switch pool.Protocol {
	case types.ProtocolCetusCPMM, types.ProtocolKriyaCPMM:
		resA, resB, err := decodeReserves(obj)
		if err != nil {
			return 0, err
		}
		c := newCPMM(pool)
		c.SetReserves(resA, resB)
		c.a2b = a2b
		return c.quote(amountIn)
	case types.ProtocolKriyaCLMM, types.ProtocolTurbosCLMM:
		liquidity, err := decodeLiquidity(obj)
		if err != nil {
			return 0, err
		}
		c := newCLMM(pool)
		c.SetLiquidity(liquidity)
		c.a2b = a2b
		return c.quote(amountIn)
	case types.ProtocolDeepbookV2:
		asks, bids, err := decodeOrderbookSides(obj)
		if err != nil {
			return 0, err
		}
		o := newOrderbook(pool)
		o.SetLevels(asks, bids)
		o.a2b = a2b
		return o.quote(amountIn)
	default:
		return 0, arberr.Wrapf(arberr.ErrUnsupportedProto, "protocol %s", pool.Protocol)
	}
}
