// Package authn verifies user credentials, either locally against bcrypt
// hashes stored in Postgres or through a remote identity service.
package authn

import (
	"context"
	"errors"

	"github.com/Clark-Hu/store-ratings/internal/domain"
)

// ErrInvalidCredentials is returned when the email/password pair is rejected.
var ErrInvalidCredentials = errors.New("authn: invalid credentials")

// Identity is what a successful verification vouches for.
type Identity struct {
	Email string
	Role  domain.Role
}

// Verifier defines the contract for checking a user's credentials.
type Verifier interface {
	Verify(ctx context.Context, email, password string) (Identity, error)
}
