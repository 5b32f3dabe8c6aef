package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
)

func TestAuctionSinkSubmitBidEncodesBidOverWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan ShioBid, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Errorf("read message: %v", err)
			return
		}
		var bid ShioBid
		if err := json.Unmarshal(msg, &bid); err != nil {
			t.Errorf("unmarshal bid: %v", err)
			return
		}
		received <- bid
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	sink := NewAuctionSink(wsURL, 5000)

	digest := []byte{0x01, 0x02, 0x03}
	txData := []byte{0xaa, 0xbb}
	sig := []byte{0xcc, 0xdd}
	if err := sink.SubmitBid(context.Background(), digest, txData, sig, 1_000_000, 50_000); err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}

	bid := <-received
	if bid.OppTxDigest != base58.Encode(digest) {
		t.Fatalf("OppTxDigest = %q, want base58(digest)", bid.OppTxDigest)
	}
	if bid.TxData != base64.StdEncoding.EncodeToString(txData) {
		t.Fatalf("TxData = %q, want base64(txData)", bid.TxData)
	}
	if bid.Signature != base58.Encode(sig) {
		t.Fatalf("Signature = %q, want base58(sig)", bid.Signature)
	}
	if bid.BidAmount != 500_000 {
		t.Fatalf("BidAmount = %d, want 500000 (50%% of profit)", bid.BidAmount)
	}
	if bid.GasBudget != 50_000 {
		t.Fatalf("GasBudget = %d, want 50000", bid.GasBudget)
	}

	sink.Close()
}
