package dex

import (
	"encoding/binary"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/types"
)

// The decode* helpers below read an adapter's reserve/liquidity/order-book
// state directly out of an Object's opaque BCS bytes, following one fixed
// internal layout per pool shape (this engine never links a Move VM, so it
// defines its own little-endian field layout rather than a genuine Move
// BCS schema).

// decodeReserves unpacks a cpmm (or lending-venue liquidity) pool's two
// reserve fields, stored as two consecutive little-endian uint64 values at
// the start of the object.
func decodeReserves(obj types.Object) (resA, resB uint64, err error) {
	if len(obj.BCS) < 16 {
		return 0, 0, arberr.Wrapf(arberr.ErrPoolMissing, "object %s too short for reserves (%d bytes)", obj.Ref.ID, len(obj.BCS))
	}
	resA = binary.LittleEndian.Uint64(obj.BCS[0:8])
	resB = binary.LittleEndian.Uint64(obj.BCS[8:16])
	return resA, resB, nil
}

// decodeLiquidity unpacks a clmm pool's active-tick liquidity, a single
// little-endian uint64 at the start of the object.
func decodeLiquidity(obj types.Object) (uint64, error) {
	if len(obj.BCS) < 8 {
		return 0, arberr.Wrapf(arberr.ErrPoolMissing, "object %s too short for liquidity (%d bytes)", obj.Ref.ID, len(obj.BCS))
	}
	return binary.LittleEndian.Uint64(obj.BCS[0:8]), nil
}

// decodeLevels unpacks one order-book side from b: a little-endian uint32
// level count followed by that many (price uint64, size uint64) pairs.
func decodeLevels(b []byte) ([]Level, error) {
	if len(b) < 4 {
		return nil, arberr.Wrapf(arberr.ErrPoolMissing, "order book levels truncated (%d bytes)", len(b))
	}
	count := binary.LittleEndian.Uint32(b[0:4])
	offset := 4
	levels := make([]Level, 0, count)
	for i := uint32(0); i < count; i++ {
		if offset+16 > len(b) {
			return nil, arberr.Wrapf(arberr.ErrPoolMissing, "order book level %d truncated", i)
		}
		levels = append(levels, Level{
			Price: binary.LittleEndian.Uint64(b[offset : offset+8]),
			Size:  binary.LittleEndian.Uint64(b[offset+8 : offset+16]),
		})
		offset += 16
	}
	return levels, nil
}

// decodeOrderbookSides splits an order book object's BCS into its ask and
// bid sides: the ask side (with its own count prefix) comes first,
// immediately followed by the bid side.
func decodeOrderbookSides(obj types.Object) (asks, bids []Level, err error) {
	if len(obj.BCS) < 4 {
		return nil, nil, arberr.Wrapf(arberr.ErrPoolMissing, "object %s too short for order book", obj.Ref.ID)
	}
	askCount := binary.LittleEndian.Uint32(obj.BCS[0:4])
	askBytesLen := 4 + int(askCount)*16
	if askBytesLen > len(obj.BCS) {
		return nil, nil, arberr.Wrapf(arberr.ErrPoolMissing, "object %s truncated ask side", obj.Ref.ID)
	}
	asks, err = decodeLevels(obj.BCS[:askBytesLen])
	if err != nil {
		return nil, nil, err
	}
	bids, err = decodeLevels(obj.BCS[askBytesLen:])
	if err != nil {
		return nil, nil, err
	}
	return asks, bids, nil
}

// encodeReserves is the inverse of decodeReserves, used by tests and by the
// indexer's catalog preload path to synthesise fixture objects.
func encodeReserves(resA, resB uint64) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], resA)
	binary.LittleEndian.PutUint64(b[8:16], resB)
	return b
}

// encodeLiquidity is the inverse of decodeLiquidity.
func encodeLiquidity(liquidity uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, liquidity)
	return b
}

// encodeLevels is the inverse of decodeLevels.
func encodeLevels(levels []Level) []byte {
	b := make([]byte, 4+len(levels)*16)
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(levels)))
	offset := 4
	for _, l := range levels {
		binary.LittleEndian.PutUint64(b[offset:offset+8], l.Price)
		binary.LittleEndian.PutUint64(b[offset+8:offset+16], l.Size)
		offset += 16
	}
	return b
}

// EncodeOrderbook assembles an order book object's BCS payload from its two
// sides, for use by tests and catalog preload fixtures.
func EncodeOrderbook(asks, bids []Level) []byte {
	return append(encodeLevels(asks), encodeLevels(bids)...)
}

// EncodeReserves exposes encodeReserves to callers outside this package
// (tests, indexer fixture loading) that need to synthesise a cpmm/lending
// object's BCS bytes.
func EncodeReserves(resA, resB uint64) []byte { return encodeReserves(resA, resB) }

// EncodeLiquidity exposes encodeLiquidity to callers outside this package.
func EncodeLiquidity(liquidity uint64) []byte { return encodeLiquidity(liquidity) }
