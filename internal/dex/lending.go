package dex

import (
	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/types"
)

// lendingVenue adapts a Navi-style lending pool purely as a flash-loan
// origination point; it never prices a swap since a lending pool has no
// CoinIn/CoinOut exchange rate of its own; CoinInType and CoinOutType
// therefore report the same coin, and SwapTx/ExtendTradeTx always fail.
type lendingVenue struct {
	pool       types.Pool
	liquidity  uint64
	feeBps     uint32
}

func newLendingVenue(pool types.Pool) *lendingVenue {
	feeBps := pool.Extra.FeeBps
	if feeBps == 0 {
		feeBps = 9 // Navi's flash-loan fee, 0.09%
	}
	return &lendingVenue{pool: pool, feeBps: feeBps}
}

// SetLiquidity installs the venue's currently available flash-loan supply.
func (l *lendingVenue) SetLiquidity(liquidity uint64) { l.liquidity = liquidity }

func (l *lendingVenue) CoinInType() types.TypeTag  { return l.pool.Tokens[0].Type }
func (l *lendingVenue) CoinOutType() types.TypeTag { return l.pool.Tokens[0].Type }
func (l *lendingVenue) Protocol() types.ProtocolTag { return l.pool.Protocol }
func (l *lendingVenue) ObjectID() types.ObjectId    { return l.pool.ID }
func (l *lendingVenue) Liquidity() uint64           { return l.liquidity }
func (l *lendingVenue) IsA2B() bool                 { return true }
func (l *lendingVenue) Flip() Dex                   { return l }
func (l *lendingVenue) SupportFlashloan() bool      { return true }
func (l *lendingVenue) PoolSnapshot() types.Pool     { return l.pool }

// RepayAmount returns the amount owed to repay a flash loan of amount,
// inclusive of the venue's flash-loan fee.
func (l *lendingVenue) RepayAmount(amount uint64) uint64 {
	return amount + amount*uint64(l.feeBps)/10_000
}

func (l *lendingVenue) SwapTx(sim.Simulator, uint64, sim.SimulateCtx) (uint64, error) {
	return 0, arberr.ErrUnsupportedProto
}

func (l *lendingVenue) ExtendTradeTx(TxBuilder, uint64, uint64, any) (any, error) {
	return nil, arberr.ErrUnsupportedProto
}

func (l *lendingVenue) ExtendFlashloanTx(tb TxBuilder, amount uint64) (any, any, error) {
	if amount > l.liquidity {
		return nil, nil, arberr.ErrInsufficientLiq
	}
	borrowed := tb.MoveCall("0x2", "lending", "flash_loan", []string{string(l.CoinInType())}, []any{string(l.pool.ID), amount})
	receipt := tb.MoveCall("0x2", "lending", "flash_receipt", nil, []any{string(l.pool.ID)})
	return borrowed, receipt, nil
}

func (l *lendingVenue) ExtendRepayTx(tb TxBuilder, receipt any, repayCoin any) error {
	tb.MoveCall("0x2", "lending", "flash_repay", []string{string(l.CoinInType())}, []any{string(l.pool.ID), receipt, repayCoin})
	return nil
}
