// Package rpcclient provides a JSON-RPC 2.0 client for escrowd.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/rpc"
)

// Client is a JSON-RPC 2.0 HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
}

// New creates a new RPC client targeting the given endpoint URL.
func New(endpoint string) *Client {
	return NewWithTimeout(endpoint, 10*time.Minute)
}

// NewWithTimeout creates a new RPC client with a custom HTTP timeout.
// Settlement calls block on chain confirmation, so the default is generous.
func NewWithTimeout(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      int         `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      int             `json:"id"`
}

// rpcError is a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Call invokes a JSON-RPC method and unmarshals the result into the provided pointer.
// If result is nil, the response result is discarded.
func (c *Client) Call(method string, params, result interface{}) error {
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.http.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if rpcResp.Error != nil {
		return &RPCError{
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// ── Typed helpers ───────────────────────────────────────────────────────

// CreateSession creates a new escrow session.
func (c *Client) CreateSession(stakePerPlayer uint64, capacity int) (*rpc.SessionResult, error) {
	var out rpc.SessionResult
	err := c.Call("escrow_createSession", rpc.CreateSessionParams{
		StakePerPlayer: stakePerPlayer,
		Capacity:       capacity,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// JoinSession adds a player to a session.
func (c *Client) JoinSession(sessionID, address string) (*rpc.JoinResult, error) {
	var out rpc.JoinResult
	err := c.Call("escrow_joinSession", rpc.JoinSessionParams{
		SessionID: sessionID,
		Address:   address,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PollSession refreshes a session's deposit state.
func (c *Client) PollSession(sessionID string) (*rpc.SessionResult, error) {
	var out rpc.SessionResult
	err := c.Call("escrow_pollSession", rpc.SessionParam{SessionID: sessionID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SettleSession pays out a funded session to the winner.
func (c *Client) SettleSession(sessionID, winnerAddress string) (*rpc.SettleResult, error) {
	var out rpc.SettleResult
	err := c.Call("escrow_settleSession", rpc.SettleSessionParams{
		SessionID:     sessionID,
		WinnerAddress: winnerAddress,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RefundSession returns stakes for a session that never funded.
func (c *Client) RefundSession(sessionID string) (*rpc.RefundResult, error) {
	var out rpc.RefundResult
	err := c.Call("escrow_refundSession", rpc.SessionParam{SessionID: sessionID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches a session by id.
func (c *Client) GetSession(sessionID string) (*rpc.SessionResult, error) {
	var out rpc.SessionResult
	err := c.Call("escrow_getSession", rpc.SessionParam{SessionID: sessionID}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions fetches sessions, optionally filtered by status.
func (c *Client) ListSessions(status string) ([]*rpc.SessionResult, error) {
	var out []*rpc.SessionResult
	err := c.Call("escrow_listSessions", rpc.ListSessionsParams{Status: status}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetInfo fetches engine info.
func (c *Client) GetInfo() (*rpc.InfoResult, error) {
	var out rpc.InfoResult
	err := c.Call("escrow_getInfo", nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
