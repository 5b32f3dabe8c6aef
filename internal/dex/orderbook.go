package dex

import (
	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/types"
)

// Level is one price/size rung of an order book.
type Level struct {
	Price uint64 // quote amount per unit of base, fixed-point per pool decimals
	Size  uint64 // base-asset size available at Price
}

// orderbook adapts a Deepbook-v2-style central limit order book behind the
// Dex capability, quoting a market-taker fill by walking resting levels
// rather than an x*y=k curve. It never originates flash loans.
type orderbook struct {
	pool types.Pool
	a2b  bool
	asks []Level // consumed when buying CoinOutType with CoinInType
	bids []Level // consumed when selling CoinInType for CoinOutType
}

func newOrderbook(pool types.Pool) *orderbook {
	return &orderbook{pool: pool, a2b: true}
}

// SetLevels installs the current top-of-book snapshot for both sides, as
// read from the indexer's periodic book refresh.
func (o *orderbook) SetLevels(asks, bids []Level) {
	o.asks, o.bids = asks, bids
}

func (o *orderbook) CoinInType() types.TypeTag {
	if o.a2b {
		return o.pool.Tokens[0].Type
	}
	return o.pool.Tokens[1].Type
}

func (o *orderbook) CoinOutType() types.TypeTag {
	if o.a2b {
		return o.pool.Tokens[1].Type
	}
	return o.pool.Tokens[0].Type
}

func (o *orderbook) Protocol() types.ProtocolTag { return o.pool.Protocol }
func (o *orderbook) ObjectID() types.ObjectId    { return o.pool.ID }

func (o *orderbook) Liquidity() uint64 {
	var total uint64
	levels := o.asks
	if !o.a2b {
		levels = o.bids
	}
	for _, l := range levels {
		if o.a2b {
			total += l.Size
		} else {
			total += l.Size * l.Price
		}
	}
	return total
}

func (o *orderbook) IsA2B() bool { return o.a2b }

func (o *orderbook) Flip() Dex {
	flipped := *o
	flipped.a2b = !o.a2b
	return &flipped
}

func (o *orderbook) SupportFlashloan() bool { return false }

func (o *orderbook) PoolSnapshot() types.Pool { return o.pool }

// walk consumes levels in order, each priced in quote-per-base, converting
// amountIn of quote into the base it buys (the ask side).
func (o *orderbook) walk(levels []Level, amountIn uint64) uint64 {
	var remaining = amountIn
	var out uint64
	for _, l := range levels {
		if remaining == 0 {
			break
		}
		cost := l.Size * l.Price
		if cost <= remaining {
			out += l.Size
			remaining -= cost
			continue
		}
		filled := remaining / l.Price
		out += filled
		remaining -= filled * l.Price
		break
	}
	return out
}

func (o *orderbook) quote(amountIn uint64) (uint64, error) {
	levels := o.asks
	if !o.a2b {
		levels = o.bids
	}
	if len(levels) == 0 {
		return 0, arberr.ErrInsufficientLiq
	}
	if o.a2b {
		return o.walk(levels, amountIn), nil
	}
	// Selling base into the bids: each level absorbs up to Size base and
	// pays Price quote per unit.
	remaining := amountIn
	var out uint64
	for _, l := range levels {
		if remaining == 0 {
			break
		}
		fill := min(remaining, l.Size)
		out += fill * l.Price
		remaining -= fill
	}
	return out, nil
}

func (o *orderbook) SwapTx(sm sim.Simulator, amountIn uint64, _ sim.SimulateCtx) (uint64, error) {
	return o.quote(amountIn)
}

func (o *orderbook) ExtendTradeTx(tb TxBuilder, amountIn uint64, minOut uint64, inputCoin any) (any, error) {
	out, err := o.quote(amountIn)
	if err != nil {
		return nil, err
	}
	if out < minOut {
		return nil, arberr.ErrInsufficientLiq
	}
	return tb.MoveCall("0x2", "clob_v2", "place_market_order", []string{string(o.CoinInType()), string(o.CoinOutType())},
		[]any{string(o.pool.ID), inputCoin, minOut}), nil
}

func (o *orderbook) ExtendFlashloanTx(TxBuilder, uint64) (any, any, error) {
	return nil, nil, arberr.ErrNoFlashVenue
}

func (o *orderbook) ExtendRepayTx(TxBuilder, any, any) error {
	return arberr.ErrNoFlashVenue
}
