package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/hashboard/hashboard/internal/model"
	"github.com/hashboard/hashboard/internal/store"
)

const (
	bcryptCost = 12

	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8
)

// ErrWeakPassword is returned when a new password fails the length policy.
var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// dummyHash is compared against when the username does not exist, so the
// unknown-username path costs one bcrypt verification like the known path.
// Precomputed at the working cost; the input it encodes is never accepted
// as a password.
var dummyHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

// HashPassword generates a bcrypt hash from a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ValidatePassword checks the password policy. Length only; users choose the
// rest.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}

// CheckPassword compares a plaintext password against a stored bcrypt hash.
func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Verifier checks credentials against the account store.
type Verifier struct {
	accounts *store.AccountStore
}

func NewVerifier(accounts *store.AccountStore) *Verifier {
	return &Verifier{accounts: accounts}
}

// Authenticate returns the account and true when the username exists and the
// password matches its stored hash. Unknown usernames and wrong passwords are
// indistinguishable in the returned signal.
func (v *Verifier) Authenticate(username, password string) (*model.Account, bool) {
	account, err := v.accounts.GetByUsername(username)
	if err != nil || account == nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, false
	}
	if err := CheckPassword(account.PasswordHash, password); err != nil {
		return nil, false
	}
	return account, true
}
