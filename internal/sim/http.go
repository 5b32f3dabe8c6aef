package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/types"
)

// HttpSimulator forwards every call to a full-node's dry-run JSON-RPC
// endpoint (sui_dryRunTransactionBlock/sui_getObject). It trades the
// DBSimulator's speed for never going stale, and is the fallback path when
// Simulator.Kind is "http" in configuration.
type HttpSimulator struct {
	client  *http.Client
	rpcURL  string
}

// NewHttpSimulator returns an HttpSimulator talking to rpcURL with the
// given request timeout.
func NewHttpSimulator(rpcURL string, timeout time.Duration) *HttpSimulator {
	return &HttpSimulator{
		client: &http.Client{Timeout: timeout},
		rpcURL: rpcURL,
	}
}

func (h *HttpSimulator) Name() string { return "http" }

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonRPCResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *HttpSimulator) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return arberr.Wrap(err, "marshal rpc request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.rpcURL, bytes.NewReader(body))
	if err != nil {
		return arberr.Wrap(err, "build rpc request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return arberr.Wrap(err, "rpc request failed")
	}
	defer resp.Body.Close()

	var rpcResp jsonRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return arberr.Wrap(err, "decode rpc response")
	}
	if rpcResp.Error != nil {
		return arberr.Wrapf(arberr.ErrSimulationFailed, "rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return arberr.Wrap(err, "unmarshal rpc result")
	}
	return nil
}

func (h *HttpSimulator) GetObject(ctx context.Context, id types.ObjectId) (*types.Object, error) {
	var raw struct {
		Data struct {
			ObjectId string `json:"objectId"`
			Version  string `json:"version"`
			Digest   string `json:"digest"`
			Owner    any    `json:"owner"`
			Type     string `json:"type"`
			Bcs      struct {
				BcsBytes string `json:"bcsBytes"`
			} `json:"bcs"`
		} `json:"data"`
	}
	if err := h.call(ctx, "sui_getObject", []any{string(id), map[string]any{"showBcs": true, "showOwner": true, "showType": true}}, &raw); err != nil {
		return nil, err
	}
	if raw.Data.ObjectId == "" {
		return nil, arberr.ErrPoolMissing
	}
	var version uint64
	fmt.Sscanf(raw.Data.Version, "%d", &version)
	return &types.Object{
		Ref: types.ObjectRef{ID: types.ObjectId(raw.Data.ObjectId), Version: version, Digest: raw.Data.Digest},
		Type: types.TypeTag(raw.Data.Type),
		BCS:  []byte(raw.Data.Bcs.BcsBytes),
	}, nil
}

// GetObjectLayout calls sui_getNormalizedMoveStructByType to resolve id's
// struct definition. A failed struct lookup yields a nil layout rather than
// an error, since layout resolution is a best-effort convenience, not
// required for simulation; a failure to read the object itself is returned
// as an error.
func (h *HttpSimulator) GetObjectLayout(ctx context.Context, id types.ObjectId) (*types.Layout, error) {
	obj, err := h.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Fields map[string]any `json:"fields"`
	}
	if err := h.call(ctx, "sui_getNormalizedMoveStructByType", []any{string(obj.Type)}, &raw); err != nil {
		return nil, nil
	}
	fields := make([]string, 0, len(raw.Fields))
	for name := range raw.Fields {
		fields = append(fields, name)
	}
	return &types.Layout{Type: obj.Type, Fields: fields}, nil
}

// Simulate calls sui_dryRunTransactionBlock. The full-node already applies
// its own view of the world, so sctx.OverrideObjects cannot be honoured by
// this backend (see DESIGN NOTES); it is the caller's responsibility to
// prefer DBSimulator whenever overrides are required.
func (h *HttpSimulator) Simulate(ctx context.Context, tx TxData, sctx SimulateCtx) (SimulateResult, error) {
	var raw struct {
		Effects struct {
			Status struct {
				Status string `json:"status"`
			} `json:"status"`
			GasUsed struct {
				ComputationCost string `json:"computationCost"`
				StorageCost     string `json:"storageCost"`
				StorageRebate   string `json:"storageRebate"`
			} `json:"gasUsed"`
		} `json:"effects"`
	}
	if err := h.call(ctx, "sui_dryRunTransactionBlock", []any{fmt.Sprintf("%x", tx.BCS)}, &raw); err != nil {
		return SimulateResult{}, err
	}
	status := raw.Effects.Status.Status
	if status != "success" {
		return SimulateResult{}, arberr.Wrapf(arberr.ErrSimulationFailed, "dry run status %q", status)
	}
	var gas uint64
	fmt.Sscanf(raw.Effects.GasUsed.ComputationCost, "%d", &gas)
	return SimulateResult{Effects: Effects{Status: status, GasUsed: gas}}, nil
}
