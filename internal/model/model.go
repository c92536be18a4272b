package model

import "time"

// Account is one registered user. The stored entitlement columns are raw
// material only: whether the account currently has premium access is decided
// at read time by the entitlement package, never by trusting IsPremium alone.
type Account struct {
	ID              int64      `json:"id"`
	Username        string     `json:"username"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	PasswordHash    string     `json:"-"`
	IsPremium       bool       `json:"is_premium"`
	ExpiresAt       *time.Time `json:"expires_at"`
	SubscriptionRef *string    `json:"subscription_ref"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ResetToken stores only the sha256 of the issued token; the plaintext is
// returned once at creation and never persisted.
type ResetToken struct {
	ID        int64      `json:"id"`
	TokenHash string     `json:"-"`
	AccountID int64      `json:"account_id"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	CreatedAt time.Time  `json:"created_at"`
}
