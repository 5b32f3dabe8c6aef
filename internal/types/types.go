// Package types holds the protocol-agnostic data model shared by every
// layer of the arbitrage engine: tokens, pools, object references and the
// transaction/simulation envelopes that flow between the simulator, the
// dex adapters and the trade builder.
package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// ObjectId is a Sui object identifier. It is kept as a plain hex string
// rather than a fixed-size byte array because pool catalogs and the wire
// formats around them treat it as an opaque, comparable token.
type ObjectId string

// TypeTag is a canonical, normalised Move type string, e.g. "0x2::sui::SUI".
type TypeTag string

// NativeCoinType is the single canonical spelling of the Sui native coin.
// Every catalog insertion and lookup must normalise through Normalize so
// the native coin never appears under two different spellings as a map key.
const NativeCoinType TypeTag = "0x2::sui::SUI"

// Normalize canonicalises a raw type string, folding any known alias of the
// native coin onto NativeCoinType. Callers must apply this at every catalog
// boundary (insert, lookup, map key construction).
func Normalize(raw string) TypeTag {
	switch raw {
	case "0x2::sui::SUI", "0x2::SUI::SUI", "SUI", "sui":
		return NativeCoinType
	default:
		return TypeTag(raw)
	}
}

// Token describes a coin type alongside its decimal precision.
type Token struct {
	Type     TypeTag
	Decimals uint8
}

// ProtocolTag names the closed set of DEX protocols this engine understands.
// The protocol set is closed by design (see DESIGN NOTES: "enum form is
// preferred where the protocol set is closed and performance matters"), so
// adapter dispatch switches on this tag rather than relying on open-ended
// dynamic registration.
type ProtocolTag uint8

const (
	ProtocolUnknown ProtocolTag = iota
	ProtocolCetusCPMM
	ProtocolKriyaCPMM
	ProtocolKriyaCLMM
	ProtocolTurbosCLMM
	ProtocolDeepbookV2
	ProtocolNaviLending
	ProtocolAggregator
)

func (p ProtocolTag) String() string {
	switch p {
	case ProtocolCetusCPMM:
		return "cetus_cpmm"
	case ProtocolKriyaCPMM:
		return "kriya_cpmm"
	case ProtocolKriyaCLMM:
		return "kriya_clmm"
	case ProtocolTurbosCLMM:
		return "turbos_clmm"
	case ProtocolDeepbookV2:
		return "deepbook_v2"
	case ProtocolNaviLending:
		return "navi_lending"
	case ProtocolAggregator:
		return "aggregator"
	default:
		return "unknown"
	}
}

// ProtocolExtra carries the fields a specific protocol needs beyond the
// common Pool envelope. Only the fields relevant to Protocol are populated;
// this mirrors the source's per-protocol struct variants without requiring
// a Go sum type.
type ProtocolExtra struct {
	FeeBps        uint32        // constant-product / stable-swap fee, in basis points
	SqrtPriceX64  *uint256.Int  // current sqrt-price for CLMM pools (nil for non-CLMM)
	TickSpacing   uint32        // CLMM tick spacing
	TickMapRef    ObjectId      // reference to the on-chain tick bitmap object
	LPSupply      *uint256.Int  // outstanding LP token supply, stable-swap pools
	SupportsFlash bool          // true if this pool offers flash_swap/repay_flash_swap
}

// Pool is the protocol-agnostic catalog entry. Pool ids are unique; Tokens
// is stable under repeated reads; Protocol and Tokens together determine
// which adapter constructor applies.
type Pool struct {
	ID       ObjectId
	Protocol ProtocolTag
	Tokens   []Token
	Extra    ProtocolExtra
}

func (p Pool) String() string {
	return fmt.Sprintf("Pool{id=%s proto=%s tokens=%d}", p.ID, p.Protocol, len(p.Tokens))
}

// ObjectRef pins a specific version of an on-chain object, the unit the
// simulator's override mechanism and the transaction builder both operate
// on.
type ObjectRef struct {
	ID      ObjectId
	Version uint64
	Digest  string
}

// Object is a minimal representation of on-chain object state as observed
// through the simulator; BCS is kept as an opaque blob since this engine
// never needs to interpret Move struct fields beyond what each adapter
// already knows how to parse for its own pool type.
type Object struct {
	Ref     ObjectRef
	Type    TypeTag
	Owner   string
	BCS     []byte
}

// Layout describes an object's Move struct shape well enough for a caller
// to know what it's looking at without decoding its BCS bytes; Simulator's
// GetObjectLayout returns nil when the backing store cannot resolve the
// type (e.g. a replay fixture that only recorded raw bytes).
type Layout struct {
	Type   TypeTag
	Fields []string
}

// Source tags where an ArbItem originated, which in turn determines the
// single submission path a worker takes (see worker package).
type Source uint8

const (
	SourcePublic Source = iota
	SourcePrivate
	SourceAuction
)

func (s Source) String() string {
	switch s {
	case SourcePublic:
		return "public"
	case SourcePrivate:
		return "private"
	case SourceAuction:
		return "auction"
	default:
		return "unknown"
	}
}
