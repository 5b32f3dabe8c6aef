package executor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sui-arb-engine/internal/types"
)

func TestPublicSinkSubmitsJSONRPC(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotMethod = req.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"digest":"0xabc"}}`))
	}))
	defer srv.Close()

	sink := NewPublicSink(srv.URL)
	err := sink.Submit(context.Background(), Submission{Source: types.SourcePublic, BCS: []byte("tx-bytes"), Digest: "0xabc"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if gotMethod != "sui_executeTransactionBlock" {
		t.Fatalf("method = %s, want sui_executeTransactionBlock", gotMethod)
	}
}

func TestPublicSinkBase64EncodesBCSAndSignature(t *testing.T) {
	var gotParams []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req jsonRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, p := range req.Params {
			gotParams = append(gotParams, p.(string))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"digest":"0xabc"}}`))
	}))
	defer srv.Close()

	sink := NewPublicSink(srv.URL)
	bcs := []byte{0x01, 0x02, 0xff}
	sig := []byte{0xde, 0xad, 0xbe, 0xef}
	if err := sink.Submit(context.Background(), Submission{BCS: bcs, Signature: sig}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(gotParams) != 2 {
		t.Fatalf("got %d params, want 2 (bcs, signature)", len(gotParams))
	}
	if gotParams[0] != base64.StdEncoding.EncodeToString(bcs) {
		t.Fatalf("params[0] = %q, want base64(bcs)", gotParams[0])
	}
	if gotParams[1] != base64.StdEncoding.EncodeToString(sig) {
		t.Fatalf("params[1] = %q, want base64(signature)", gotParams[1])
	}
}

func TestPublicSinkSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewPublicSink(srv.URL)
	if err := sink.Submit(context.Background(), Submission{BCS: []byte("x")}); err == nil {
		t.Fatal("expected error on 5xx response")
	}
}
