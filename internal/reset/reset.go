// Package reset implements the password reset flow: single-use tokens with a
// 1-hour window, delivered by email.
package reset

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashboard/hashboard/internal/auth"
	"github.com/hashboard/hashboard/internal/store"
)

var (
	// ErrInvalidToken covers unknown, malformed, and already-used tokens.
	ErrInvalidToken = errors.New("invalid reset token")
	// ErrExpiredToken means the token existed but its window has passed.
	ErrExpiredToken = errors.New("reset token expired")
)

// Sender dispatches a reset link to an email address.
type Sender interface {
	Configured() bool
	SendPasswordReset(toEmail, token string) error
}

type Service struct {
	accounts *store.AccountStore
	tokens   *store.ResetTokenStore
	sessions *store.SessionStore
	sender   Sender
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(accounts *store.AccountStore, tokens *store.ResetTokenStore, sessions *store.SessionStore, sender Sender, logger *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}
}

// Request issues a reset token for the account behind the email and sends the
// reset link. Always returns nil to the caller: whether the email exists is
// never revealed, and dispatch failures are logged rather than surfaced.
func (s *Service) Request(emailAddr string) error {
	account, err := s.accounts.GetByEmail(emailAddr)
	if err != nil {
		s.logger.Error("reset request lookup", "error", err)
		return nil
	}
	if account == nil {
		return nil
	}

	token, err := s.tokens.Create(account.ID)
	if err != nil {
		s.logger.Error("create reset token", "error", err)
		return nil
	}

	if s.sender != nil && s.sender.Configured() {
		if err := s.sender.SendPasswordReset(emailAddr, token); err != nil {
			s.logger.Error("send reset email", "error", err)
		}
	} else {
		s.logger.Info("reset token generated", "email", emailAddr)
	}
	return nil
}

// Redeem consumes a reset token and stores the new password. The token is
// single-use: a successful lookup burns it no matter how redemption ends.
func (s *Service) Redeem(token, newPassword string) error {
	rt, err := s.tokens.GetByToken(token)
	if err != nil {
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if rt == nil {
		return ErrInvalidToken
	}

	if err := s.tokens.MarkUsed(rt.ID); err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}

	if !s.now().UTC().Before(rt.ExpiresAt) {
		return ErrExpiredToken
	}

	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.accounts.UpdatePassword(rt.AccountID, hash); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	// Whoever requested the reset may not hold the old sessions.
	if err := s.sessions.DeleteByAccountID(rt.AccountID); err != nil {
		s.logger.Error("invalidate sessions after reset", "error", err)
	}
	return nil
}
