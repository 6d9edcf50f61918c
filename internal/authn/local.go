package authn

import (
	"context"
	"errors"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/repository"
)

// UserLookup finds a stored user by email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// LocalVerifier checks credentials against the users table.
type LocalVerifier struct {
	users  UserLookup
	hasher *Hasher
}

var _ Verifier = (*LocalVerifier)(nil)

// NewLocalVerifier constructs a verifier backed by users.
func NewLocalVerifier(users UserLookup, hasher *Hasher) *LocalVerifier {
	return &LocalVerifier{users: users, hasher: hasher}
}

// Verify loads the user by email and compares the stored hash. Unknown emails
// and wrong passwords are indistinguishable to the caller.
func (v *LocalVerifier) Verify(ctx context.Context, email, password string) (Identity, error) {
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if err := v.hasher.Compare(user.PasswordHash, password); err != nil {
		return Identity{}, err
	}
	return Identity{Email: user.Email, Role: user.Role}, nil
}
