package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Klingon-tech/klingnet-escrow/internal/log"
	"github.com/Klingon-tech/klingnet-escrow/internal/session"
)

// SettleSession pays the escrow balance (minus the retained minimum and fee
// reserve) to the winner, exactly once.
//
// The whole operation runs under the session's lock: a concurrent Settle
// waits, observes Settled, and gets the stored reference instead of
// broadcasting a second payment. A Settle against an already-Settled
// session is the one permitted "replay" and succeeds with the original
// txRef without touching the chain.
//
// On confirmation timeout the session stays Funded with no payout
// reference recorded; the transaction may still land, so the operator must
// check the chain by txRef (logged) before retrying.
func (e *Engine) SettleSession(ctx context.Context, sessionID, winnerInput string) (string, error) {
	winner, err := e.resolver.Resolve(ctx, winnerInput)
	if err != nil {
		return "", fmt.Errorf("%w: settle session %s: %v", session.ErrValidation, sessionID, err)
	}

	var txRef string
	err = e.store.WithLock(sessionID, func() error {
		s, err := e.store.Get(sessionID)
		if err != nil {
			return err
		}

		switch s.Status {
		case session.StatusSettled:
			// Idempotent replay.
			txRef = s.PayoutTxRef
			log.Payout.Info().
				Str("session_id", s.ID).
				Str("tx_ref", txRef).
				Msg("settle replay, returning prior payout")
			return nil
		case session.StatusFunded:
			// Proceed.
		case session.StatusCreated, session.StatusAwaitingDeposits:
			return fmt.Errorf("%w: session %s in status %s", session.ErrNotFunded, s.ID, s.Status)
		default:
			return fmt.Errorf("%w: session %s: cannot settle in status %s", session.ErrInvalidTransition, s.ID, s.Status)
		}

		if !s.HasPlayer(winner) {
			return fmt.Errorf("%w: settle session %s: winner %s is not a player", session.ErrValidation, s.ID, winner)
		}

		ref, err := e.disburse(ctx, s, winner)
		if err != nil {
			return err
		}

		if err := s.Transition(session.StatusSettled); err != nil {
			return err
		}
		s.PayoutTxRef = ref
		s.WinnerAddress = winner
		if err := e.store.Update(s); err != nil {
			return err
		}
		txRef = ref

		log.Payout.Info().
			Str("session_id", s.ID).
			Str("winner", winner).
			Str("tx_ref", ref).
			Msg("session settled")
		return nil
	})
	if err != nil {
		return "", err
	}
	return txRef, nil
}

// disburse performs the chain-facing half of settlement: decrypt the escrow
// key, compute the payout from the authoritative on-chain balance, sign and
// broadcast, and wait for confirmation. The decrypted key exists only
// inside this call and is scrubbed before it returns.
func (e *Engine) disburse(ctx context.Context, s *session.Session, winner string) (string, error) {
	secret, err := e.vault.Decrypt(s.EncryptedKey)
	if err != nil {
		return "", fmt.Errorf("settle session %s: unseal escrow key: %w", s.ID, err)
	}
	defer zeroBytes(secret)

	balance, err := e.adapter.GetBalance(ctx, s.EscrowAddress)
	if err != nil {
		return "", fmt.Errorf("settle session %s: balance query: %w", s.ID, err)
	}

	reserve := s.MinRetained + s.FeeReserve
	if balance <= reserve {
		return "", fmt.Errorf("%w: session %s: balance %d does not exceed reserve %d",
			session.ErrInsufficientFunds, s.ID, balance, reserve)
	}
	amount := balance - reserve

	ref, err := e.adapter.BuildSignBroadcast(ctx, secret, winner, amount)
	if err != nil {
		return "", fmt.Errorf("settle session %s: broadcast: %w", s.ID, err)
	}

	confirmed, err := e.adapter.WaitForConfirmation(ctx, ref, e.cfg.ConfirmAttempts)
	if err != nil {
		return "", fmt.Errorf("settle session %s: confirmation wait for %s: %w", s.ID, ref, err)
	}
	if !confirmed {
		// The broadcast went out; only the confirmation budget ran dry.
		// No settlement fields are recorded, and the engine never retries a
		// signed-and-sent payment on its own.
		log.Payout.Warn().
			Str("session_id", s.ID).
			Str("tx_ref", ref).
			Int("attempts", e.cfg.ConfirmAttempts).
			Msg("payout unconfirmed within budget, check chain before retrying")
		return "", fmt.Errorf("%w: session %s: tx %s", session.ErrConfirmationTimeout, s.ID, ref)
	}

	return ref, nil
}

// RefundSession returns stakes to joined players and closes a session that
// never reached Funded. Refunds share the settlement machinery: the whole
// operation holds the session lock, a replay against Refunded returns the
// recorded references, and a Funded or Settled session cannot be refunded.
func (e *Engine) RefundSession(ctx context.Context, sessionID string) ([]string, error) {
	var refs []string
	err := e.store.WithLock(sessionID, func() error {
		s, err := e.store.Get(sessionID)
		if err != nil {
			return err
		}

		switch s.Status {
		case session.StatusRefunded:
			refs = s.RefundTxRefs
			return nil
		case session.StatusCreated, session.StatusAwaitingDeposits:
			// Proceed.
		default:
			return fmt.Errorf("%w: session %s: cannot refund in status %s", session.ErrInvalidTransition, s.ID, s.Status)
		}

		if err := e.refundPlayers(ctx, s); err != nil {
			return err
		}

		if err := s.Transition(session.StatusRefunded); err != nil {
			return err
		}
		if err := e.store.Update(s); err != nil {
			return err
		}
		refs = s.RefundTxRefs

		log.Payout.Info().
			Str("session_id", s.ID).
			Int("refunds", len(refs)).
			Msg("session refunded")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// refundPlayers pays each joined player their stake back, while the escrow
// balance allows. Players whose deposit never arrived get nothing; the
// reserve stays behind to cover fees.
//
// Each confirmed refund is appended to s.RefundTxRefs and persisted before
// the next broadcast. Refunds follow join order, so a retry after a partial
// failure resumes at len(RefundTxRefs) instead of paying anyone twice.
func (e *Engine) refundPlayers(ctx context.Context, s *session.Session) error {
	if len(s.Players) == 0 {
		return nil
	}

	secret, err := e.vault.Decrypt(s.EncryptedKey)
	if err != nil {
		return fmt.Errorf("refund session %s: unseal escrow key: %w", s.ID, err)
	}
	defer zeroBytes(secret)

	balance, err := e.adapter.GetBalance(ctx, s.EscrowAddress)
	if err != nil {
		return fmt.Errorf("refund session %s: balance query: %w", s.ID, err)
	}

	reserve := s.MinRetained + s.FeeReserve
	available := uint64(0)
	if balance > reserve {
		available = balance - reserve
	}

	for i := len(s.RefundTxRefs); i < len(s.Players); i++ {
		if available < s.StakePerPlayer {
			break
		}
		p := s.Players[i]
		ref, err := e.adapter.BuildSignBroadcast(ctx, secret, p.Address, s.StakePerPlayer)
		if err != nil {
			return fmt.Errorf("refund session %s: broadcast to %s: %w", s.ID, p.Address, err)
		}
		confirmed, err := e.adapter.WaitForConfirmation(ctx, ref, e.cfg.ConfirmAttempts)
		if err != nil {
			return fmt.Errorf("refund session %s: confirmation wait for %s: %w", s.ID, ref, err)
		}
		if !confirmed {
			return fmt.Errorf("%w: session %s: refund tx %s", session.ErrConfirmationTimeout, s.ID, ref)
		}

		s.RefundTxRefs = append(s.RefundTxRefs, ref)
		s.UpdatedAt = time.Now().UTC()
		if err := e.store.Update(s); err != nil {
			return fmt.Errorf("refund session %s: persist refund %s: %w", s.ID, ref, err)
		}
		available -= s.StakePerPlayer
	}
	return nil
}
