package rpc

import (
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/session"
)

// JSON-RPC 2.0 error codes. Standard codes first, then engine-specific
// codes in the implementation-defined range.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeNotFound            = -32000
	CodeValidation          = -32001
	CodeInvalidTransition   = -32002
	CodeNotFunded           = -32003
	CodeInsufficientFunds   = -32004
	CodeConfirmationTimeout = -32005
	CodeUnresolvableAlias   = -32006
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// CreateSessionParams is used by escrow_createSession.
type CreateSessionParams struct {
	StakePerPlayer uint64 `json:"stake_per_player"`
	Capacity       int    `json:"capacity,omitempty"`
}

// SessionParam is used by endpoints that take only a session id.
type SessionParam struct {
	SessionID string `json:"session_id"`
}

// JoinSessionParams is used by escrow_joinSession.
type JoinSessionParams struct {
	SessionID string `json:"session_id"`
	Address   string `json:"address"`
}

// SettleSessionParams is used by escrow_settleSession.
type SettleSessionParams struct {
	SessionID     string `json:"session_id"`
	WinnerAddress string `json:"winner_address"`
}

// ListSessionsParams is used by escrow_listSessions.
type ListSessionsParams struct {
	Status string `json:"status,omitempty"`
}

// ── Result types ────────────────────────────────────────────────────────

// PlayerResult is the wire form of a joined player.
type PlayerResult struct {
	ID               string    `json:"id"`
	Address          string    `json:"address"`
	JoinedAt         time.Time `json:"joined_at"`
	DepositConfirmed bool      `json:"deposit_confirmed"`
}

// SessionResult is the wire form of a session. The encrypted escrow key is
// deliberately absent: key material, sealed or not, never leaves the engine.
type SessionResult struct {
	ID              string         `json:"id"`
	EscrowAddress   string         `json:"escrow_address"`
	StakePerPlayer  uint64         `json:"stake_per_player"`
	Capacity        int            `json:"capacity"`
	Players         []PlayerResult `json:"players"`
	Status          string         `json:"status"`
	ExpectedPot     uint64         `json:"expected_pot"`
	ObservedBalance uint64         `json:"observed_balance"`
	PayoutTxRef     string         `json:"payout_tx_ref,omitempty"`
	WinnerAddress   string         `json:"winner_address,omitempty"`
	RefundTxRefs    []string       `json:"refund_tx_refs,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewSessionResult converts a session to its wire form.
func NewSessionResult(s *session.Session) *SessionResult {
	players := make([]PlayerResult, len(s.Players))
	for i, p := range s.Players {
		players[i] = PlayerResult{
			ID:               p.ID,
			Address:          p.Address,
			JoinedAt:         p.JoinedAt,
			DepositConfirmed: p.DepositConfirmed,
		}
	}
	return &SessionResult{
		ID:              s.ID,
		EscrowAddress:   s.EscrowAddress,
		StakePerPlayer:  s.StakePerPlayer,
		Capacity:        s.Capacity,
		Players:         players,
		Status:          string(s.Status),
		ExpectedPot:     s.ExpectedPot(),
		ObservedBalance: s.ObservedBalance,
		PayoutTxRef:     s.PayoutTxRef,
		WinnerAddress:   s.WinnerAddress,
		RefundTxRefs:    s.RefundTxRefs,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// JoinResult is returned by escrow_joinSession.
type JoinResult struct {
	SessionID     string `json:"session_id"`
	PlayerID      string `json:"player_id"`
	EscrowAddress string `json:"escrow_address"`
}

// SettleResult is returned by escrow_settleSession.
type SettleResult struct {
	SessionID string `json:"session_id"`
	TxRef     string `json:"tx_ref"`
}

// RefundResult is returned by escrow_refundSession.
type RefundResult struct {
	SessionID string   `json:"session_id"`
	TxRefs    []string `json:"tx_refs"`
}

// InfoResult is returned by escrow_getInfo.
type InfoResult struct {
	Network  string `json:"network"`
	Backend  string `json:"backend"`
	Sessions int    `json:"sessions"`
	Version  string `json:"version"`
}
