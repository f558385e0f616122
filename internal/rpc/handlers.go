package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-escrow/internal/resolver"
	"github.com/Klingon-tech/klingnet-escrow/internal/session"
	"github.com/Klingon-tech/klingnet-escrow/internal/vault"
)

// Version is the engine release string reported by escrow_getInfo.
const Version = "0.3.1"

// parseParams unmarshals request params into the given struct.
func parseParams(req *Request, out interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params are required"}
	}
	raw, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}

// engineError maps engine failures to JSON-RPC error objects. The error
// message keeps the session and operation context for reconciliation.
func engineError(err error) *Error {
	code := CodeInternalError
	switch {
	case errors.Is(err, session.ErrNotFound):
		code = CodeNotFound
	case errors.Is(err, session.ErrValidation), errors.Is(err, resolver.ErrInvalidAddress):
		code = CodeValidation
	case errors.Is(err, session.ErrInvalidTransition):
		code = CodeInvalidTransition
	case errors.Is(err, session.ErrNotFunded):
		code = CodeNotFunded
	case errors.Is(err, session.ErrInsufficientFunds):
		code = CodeInsufficientFunds
	case errors.Is(err, session.ErrConfirmationTimeout):
		code = CodeConfirmationTimeout
	case errors.Is(err, resolver.ErrUnresolvableAlias):
		code = CodeUnresolvableAlias
	case errors.Is(err, vault.ErrAuthentication):
		// Key material problems stay opaque to callers.
		return &Error{Code: CodeInternalError, Message: "escrow key unavailable"}
	}
	return &Error{Code: code, Message: err.Error()}
}

func (s *Server) handleCreateSession(ctx context.Context, req *Request) (interface{}, *Error) {
	var params CreateSessionParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.StakePerPlayer == 0 {
		return nil, &Error{Code: CodeInvalidParams, Message: "stake_per_player must be positive"}
	}

	sess, err := s.engine.CreateSession(ctx, params.StakePerPlayer, params.Capacity)
	if err != nil {
		return nil, engineError(err)
	}
	return NewSessionResult(sess), nil
}

func (s *Server) handleJoinSession(ctx context.Context, req *Request) (interface{}, *Error) {
	var params JoinSessionParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.SessionID == "" || params.Address == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "session_id and address are required"}
	}

	join, err := s.engine.JoinSession(ctx, params.SessionID, params.Address)
	if err != nil {
		return nil, engineError(err)
	}
	return &JoinResult{
		SessionID:     join.SessionID,
		PlayerID:      join.PlayerID,
		EscrowAddress: join.EscrowAddress,
	}, nil
}

func (s *Server) handlePollSession(ctx context.Context, req *Request) (interface{}, *Error) {
	var params SessionParam
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.SessionID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "session_id is required"}
	}

	sess, err := s.engine.PollSession(ctx, params.SessionID)
	if err != nil {
		return nil, engineError(err)
	}
	return NewSessionResult(sess), nil
}

func (s *Server) handleSettleSession(ctx context.Context, req *Request) (interface{}, *Error) {
	var params SettleSessionParams
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.SessionID == "" || params.WinnerAddress == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "session_id and winner_address are required"}
	}

	txRef, err := s.engine.SettleSession(ctx, params.SessionID, params.WinnerAddress)
	if err != nil {
		return nil, engineError(err)
	}
	return &SettleResult{SessionID: params.SessionID, TxRef: txRef}, nil
}

func (s *Server) handleRefundSession(ctx context.Context, req *Request) (interface{}, *Error) {
	var params SessionParam
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.SessionID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "session_id is required"}
	}

	txRefs, err := s.engine.RefundSession(ctx, params.SessionID)
	if err != nil {
		return nil, engineError(err)
	}
	return &RefundResult{SessionID: params.SessionID, TxRefs: txRefs}, nil
}

func (s *Server) handleGetSession(req *Request) (interface{}, *Error) {
	var params SessionParam
	if rpcErr := parseParams(req, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if params.SessionID == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "session_id is required"}
	}

	sess, err := s.engine.GetSession(params.SessionID)
	if err != nil {
		return nil, engineError(err)
	}
	return NewSessionResult(sess), nil
}

func (s *Server) handleListSessions(req *Request) (interface{}, *Error) {
	var params ListSessionsParams
	if req.Params != nil {
		if rpcErr := parseParams(req, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}

	sessions, err := s.engine.ListSessions(session.Status(params.Status))
	if err != nil {
		return nil, engineError(err)
	}
	results := make([]*SessionResult, len(sessions))
	for i, sess := range sessions {
		results[i] = NewSessionResult(sess)
	}
	return results, nil
}

func (s *Server) handleGetInfo(_ *Request) (interface{}, *Error) {
	sessions, err := s.engine.ListSessions("")
	if err != nil {
		return nil, engineError(err)
	}
	return &InfoResult{
		Network:  s.network,
		Backend:  s.backend,
		Sessions: len(sessions),
		Version:  Version,
	}, nil
}
