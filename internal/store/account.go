package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashboard/hashboard/internal/model"
)

// ErrDuplicateAccount is returned when a username or email is already taken.
var ErrDuplicateAccount = errors.New("username or email already registered")

// ErrAccountNotFound is returned by mutations that target a missing account.
var ErrAccountNotFound = errors.New("account not found")

type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(scanner interface{ Scan(...any) error }) (*model.Account, error) {
	var a model.Account
	var isPremium int
	var expiresAt sql.NullTime
	var subscriptionRef sql.NullString
	err := scanner.Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Name,
		&isPremium, &expiresAt, &subscriptionRef, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.IsPremium = isPremium != 0
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		a.ExpiresAt = &t
	}
	if subscriptionRef.Valid {
		a.SubscriptionRef = &subscriptionRef.String
	}
	return &a, nil
}

const accountCols = `id, username, email, password_hash, name, is_premium, expires_at, subscription_ref, created_at, updated_at`

// Create inserts a new account. The caller supplies an already-hashed
// password; plaintext never reaches this layer.
func (s *AccountStore) Create(username, email, passwordHash, name string) (*model.Account, error) {
	result, err := s.db.Exec(
		`INSERT INTO accounts (username, email, password_hash, name) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, name,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AccountStore) GetByID(id int64) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByUsername(username string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by username: %w", err)
	}
	return a, nil
}

func (s *AccountStore) GetByEmail(email string) (*model.Account, error) {
	row := s.db.QueryRow(`SELECT `+accountCols+` FROM accounts WHERE email = ?`, email)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// SetEntitlement overwrites the full entitlement triple for an account.
// There are no merge semantics; callers supply the complete new state.
func (s *AccountStore) SetEntitlement(username string, isPremium bool, expiresAt *time.Time, subscriptionRef *string) error {
	var premium int
	if isPremium {
		premium = 1
	}
	var exp sql.NullTime
	if expiresAt != nil {
		exp = sql.NullTime{Time: expiresAt.UTC(), Valid: true}
	}
	var ref sql.NullString
	if subscriptionRef != nil {
		ref = sql.NullString{String: *subscriptionRef, Valid: true}
	}
	result, err := s.db.Exec(
		`UPDATE accounts SET is_premium = ?, expires_at = ?, subscription_ref = ?, updated_at = datetime('now') WHERE username = ?`,
		premium, exp, ref, username,
	)
	if err != nil {
		return fmt.Errorf("set entitlement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// GrantSubscription records a paid period for an account inside one
// transaction. If the account already carries the same subscription ref with
// an expiry at or beyond the computed one, the stored expiry wins and is
// returned unchanged, so replayed completions never stack periods.
func (s *AccountStore) GrantSubscription(username, subscriptionRef string, expiresAt time.Time) (time.Time, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return time.Time{}, fmt.Errorf("begin grant: %w", err)
	}
	defer tx.Rollback()

	var curRef sql.NullString
	var curExp sql.NullTime
	err = tx.QueryRow(
		`SELECT subscription_ref, expires_at FROM accounts WHERE username = ?`,
		username,
	).Scan(&curRef, &curExp)
	if err == sql.ErrNoRows {
		return time.Time{}, ErrAccountNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read entitlement: %w", err)
	}

	if curRef.Valid && curRef.String == subscriptionRef && curExp.Valid && !curExp.Time.Before(expiresAt) {
		if err := tx.Commit(); err != nil {
			return time.Time{}, fmt.Errorf("commit grant: %w", err)
		}
		return curExp.Time.UTC(), nil
	}

	_, err = tx.Exec(
		`UPDATE accounts SET is_premium = 1, expires_at = ?, subscription_ref = ?, updated_at = datetime('now') WHERE username = ?`,
		expiresAt.UTC(), subscriptionRef, username,
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("write entitlement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return time.Time{}, fmt.Errorf("commit grant: %w", err)
	}
	return expiresAt.UTC(), nil
}

// UpdatePassword replaces the stored password hash for an account.
func (s *AccountStore) UpdatePassword(id int64, passwordHash string) error {
	result, err := s.db.Exec(
		`UPDATE accounts SET password_hash = ?, updated_at = datetime('now') WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}
