package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/log"
	"github.com/Klingon-tech/klingnet-escrow/internal/session"
)

// PollSession refreshes a session's observed escrow balance from the chain
// and, when the balance covers the expected pot, advances AwaitingDeposits
// to Funded. The chain balance is the only funding evidence the engine
// accepts. Safe to call repeatedly; on an already-Funded or terminal
// session only the observed balance changes.
func (e *Engine) PollSession(ctx context.Context, sessionID string) (*session.Session, error) {
	s, err := e.store.Get(sessionID)
	if err != nil {
		return nil, err
	}

	// Balance query runs outside the session lock; the chain call can be
	// slow and must not block concurrent joins or settles.
	balance, err := e.adapter.GetBalance(ctx, s.EscrowAddress)
	if err != nil {
		return nil, fmt.Errorf("poll session %s: balance query: %w", sessionID, err)
	}

	var out *session.Session
	err = e.store.WithLock(sessionID, func() error {
		s, err := e.store.Get(sessionID)
		if err != nil {
			return err
		}

		s.ObservedBalance = balance
		s.UpdatedAt = time.Now().UTC()

		if s.Status == session.StatusAwaitingDeposits && balance >= s.ExpectedPot() {
			if err := s.Transition(session.StatusFunded); err != nil {
				return err
			}
			for i := range s.Players {
				s.Players[i].DepositConfirmed = true
			}
			log.Monitor.Info().
				Str("session_id", s.ID).
				Uint64("balance", balance).
				Uint64("expected_pot", s.ExpectedPot()).
				Msg("session funded")
		}

		if err := e.store.Update(s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RunMonitor polls every session awaiting deposits on a fixed interval
// until the context is canceled. Poll failures are logged and retried on
// the next tick; backoff beyond the tick interval is not needed because
// polls are read-only.
func (e *Engine) RunMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	log.Monitor.Info().Dur("interval", interval).Msg("deposit monitor started")
	defer log.Monitor.Info().Msg("deposit monitor stopped")

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			e.pollPending(ctx)
		}
	}
}

// pollPending runs one monitor tick over all sessions awaiting deposits.
func (e *Engine) pollPending(ctx context.Context) {
	pending, err := e.ListSessions(session.StatusAwaitingDeposits)
	if err != nil {
		log.Monitor.Error().Err(err).Msg("list pending sessions")
		return
	}
	for _, s := range pending {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.PollSession(ctx, s.ID); err != nil {
			log.Monitor.Warn().
				Str("session_id", s.ID).
				Err(err).
				Msg("poll failed")
		}
	}
}
