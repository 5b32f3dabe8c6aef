package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"

	"sui-arb-engine/internal/arberr"
)

// ShioBid is the wire envelope submitted to a Shio-style bid auction: the
// opportunity transaction's digest (base58), the transaction's BCS bytes
// (base64) and its signature (base58), plus the bid offered to the relay
// as an absolute amount carved out of the opportunity's profit.
type ShioBid struct {
	OppTxDigest string `json:"oppTxDigest"`
	TxData      string `json:"txData"`
	Signature   string `json:"sig"`
	BidAmount   uint64 `json:"bidAmount"`
	GasBudget   uint64 `json:"gas_budget"`
}

// AuctionSink submits bids over a long-lived websocket connection to an
// auction relay, falling back to establishing a new connection lazily on
// first use or after a disconnect.
type AuctionSink struct {
	relayURL    string
	bidShareBps int

	conn *websocket.Conn
}

// NewAuctionSink returns an AuctionSink that encodes each bid as a ShioBid
// and writes it to the relay's websocket endpoint. bidShareBps is the
// fraction of profit offered as the bid, out of 10,000.
func NewAuctionSink(relayURL string, bidShareBps int) *AuctionSink {
	return &AuctionSink{relayURL: relayURL, bidShareBps: bidShareBps}
}

func (a *AuctionSink) dial(ctx context.Context) error {
	if a.conn != nil {
		return nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, a.relayURL, nil)
	if err != nil {
		return arberr.Wrap(err, "dial auction relay")
	}
	a.conn = conn
	return nil
}

// SubmitBid encodes digest and sig as base58 and txData as base64, and
// sends a bid of bidShareBps/10000 of profit to the relay.
func (a *AuctionSink) SubmitBid(ctx context.Context, digest, txData, sig []byte, profit uint64, gasBudget uint64) error {
	if err := a.dial(ctx); err != nil {
		return err
	}
	bid := ShioBid{
		OppTxDigest: base58.Encode(digest),
		TxData:      base64.StdEncoding.EncodeToString(txData),
		Signature:   base58.Encode(sig),
		BidAmount:   profit * uint64(a.bidShareBps) / 10_000,
		GasBudget:   gasBudget,
	}
	payload, err := json.Marshal(bid)
	if err != nil {
		return arberr.Wrap(err, "marshal shio bid")
	}
	if err := a.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		a.conn = nil // force redial on next call
		return arberr.Wrap(err, "write shio bid")
	}
	return nil
}

// Close releases the underlying websocket connection, if any.
func (a *AuctionSink) Close() error {
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}
