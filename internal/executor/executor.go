// Package executor submits a finalised transaction to one of three
// destinations depending on its originating Source: the public mempool, a
// private full-node relay, or a Shio-style bid auction.
package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/types"
)

// Submission is the finalised payload an executor sends onward; BCS is the
// unsigned transaction bytes, Signature is the signer's signature over the
// transaction digest, and Digest is that digest (used as the auction sink's
// bid identity).
type Submission struct {
	Source    types.Source
	BCS       []byte
	Digest    string
	Signature []byte
}

// Sink submits a finalised transaction to its destination.
type Sink interface {
	Submit(ctx context.Context, s Submission) error
}

type jsonRPCSink struct {
	client *http.Client
	url    string
	method string
}

// NewPublicSink submits via the standard sui_executeTransactionBlock
// JSON-RPC call against a public full-node.
func NewPublicSink(rpcURL string) Sink {
	return &jsonRPCSink{client: http.DefaultClient, url: rpcURL, method: "sui_executeTransactionBlock"}
}

// NewPrivateSink submits the same call shape against a private relay URL,
// which typically front-runs the public mempool in exchange for bypassing
// public propagation.
func NewPrivateSink(relayURL string) Sink {
	return &jsonRPCSink{client: http.DefaultClient, url: relayURL, method: "sui_executeTransactionBlock"}
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (s *jsonRPCSink) Submit(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0", ID: 1, Method: s.method,
		Params: []any{base64.StdEncoding.EncodeToString(sub.BCS), base64.StdEncoding.EncodeToString(sub.Signature)},
	})
	if err != nil {
		return arberr.Wrap(err, "marshal submission")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return arberr.Wrap(err, "build submission request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return arberr.Wrap(err, "submit transaction")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return arberr.Wrapf(arberr.ErrSimulationFailed, "submission rejected with status %d", resp.StatusCode)
	}
	return nil
}
