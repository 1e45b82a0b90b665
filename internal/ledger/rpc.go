package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync/atomic"
)

// httpClient speaks JSON-RPC to a node-side signing proxy that holds
// the contract ABI and the unlocked accounts. It is the default Client
// wiring for deployments; tests substitute their own Client.
type httpClient struct {
	endpoint string
	contract string
	hc       *http.Client
	nextID   atomic.Uint64
}

func NewHTTPClient(endpoint, contractAddress string) Client {
	return &httpClient{
		endpoint: endpoint,
		contract: contractAddress,
		hc:       http.DefaultClient,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *httpClient) Call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return c.do(ctx, result, "contract_call", map[string]interface{}{
		"to":     c.contract,
		"method": method,
		"args":   args,
	})
}

func (c *httpClient) Send(ctx context.Context, opts SendOpts, method string, args ...interface{}) (*Receipt, error) {
	params := map[string]interface{}{
		"from":   opts.From,
		"to":     c.contract,
		"method": method,
		"args":   args,
	}
	if opts.Value != nil {
		params["value"] = opts.Value.String()
	}
	var receipt Receipt
	if err := c.do(ctx, &receipt, "contract_send", params); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *httpClient) BalanceAt(ctx context.Context, address string) (*big.Int, error) {
	var raw string
	if err := c.do(ctx, &raw, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return nil, fmt.Errorf("malformed balance %q", raw)
	}
	return balance, nil
}

func (c *httpClient) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *httpClient) do(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("malformed rpc response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("malformed rpc result: %w", err)
		}
	}
	return nil
}
