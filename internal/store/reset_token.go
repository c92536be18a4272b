package store

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashboard/hashboard/internal/model"
)

const resetTokenTTL = time.Hour

type ResetTokenStore struct {
	db *sql.DB
}

func NewResetTokenStore(db *sql.DB) *ResetTokenStore {
	return &ResetTokenStore{db: db}
}

func scanResetToken(scanner interface{ Scan(...any) error }) (*model.ResetToken, error) {
	var rt model.ResetToken
	var usedAt sql.NullTime

	err := scanner.Scan(&rt.ID, &rt.TokenHash, &rt.AccountID, &rt.ExpiresAt, &usedAt, &rt.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		rt.UsedAt = &usedAt.Time
	}
	return &rt, nil
}

const resetTokenCols = `id, token_hash, account_id, expires_at, used_at, created_at`

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create issues a reset token for the account with a 1-hour expiry and
// returns the plaintext token. Only the sha256 of the token is stored, so
// redemption is a hash-keyed lookup rather than a comparison over secret
// material. Any previous pending tokens for the account are invalidated.
func (s *ResetTokenStore) Create(accountID int64) (string, error) {
	_, err := s.db.Exec(
		`UPDATE reset_tokens SET used_at = datetime('now') WHERE account_id = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		accountID,
	)
	if err != nil {
		return "", fmt.Errorf("invalidate previous tokens: %w", err)
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)
	expiresAt := time.Now().UTC().Add(resetTokenTTL)

	_, err = s.db.Exec(
		`INSERT INTO reset_tokens (token_hash, account_id, expires_at) VALUES (?, ?, ?)`,
		hashToken(token), accountID, expiresAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert reset token: %w", err)
	}
	return token, nil
}

// GetByToken returns the unused reset token matching the plaintext token, or
// nil if no such token exists. Expiry is the caller's concern so that expired
// and unknown tokens can be reported differently.
func (s *ResetTokenStore) GetByToken(token string) (*model.ResetToken, error) {
	row := s.db.QueryRow(
		`SELECT `+resetTokenCols+` FROM reset_tokens WHERE token_hash = ? AND used_at IS NULL`,
		hashToken(token),
	)
	rt, err := scanResetToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reset token: %w", err)
	}
	return rt, nil
}

func (s *ResetTokenStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(
		`UPDATE reset_tokens SET used_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	return nil
}

func (s *ResetTokenStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM reset_tokens WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
