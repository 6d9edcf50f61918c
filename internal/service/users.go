package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Clark-Hu/store-ratings/internal/authn"
	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/repository"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

const invalidCredentials = "invalid email or password"

var passwordTooLong = fmt.Sprintf("password must be at most %d bytes", authn.MaxPasswordBytes)

// RegisterParams is the input of Users.Register.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Address  string
	// Role defaults to USER when empty.
	Role domain.Role
}

// Users manages accounts. Returned users never carry a password hash.
type Users struct {
	base
}

// Register creates a user account.
func (s *Users) Register(ctx context.Context, params RegisterParams) (domain.User, error) {
	const op = "Users.Register"
	ctx, span := s.start(ctx, op)

	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.TrimSpace(params.Email)
	if params.Role == "" {
		params.Role = domain.RoleUser
	}
	switch {
	case params.Name == "":
		return domain.User{}, finish(span, domain.ValidationError(op, "name is required"))
	case !validEmail(params.Email):
		return domain.User{}, finish(span, domain.ValidationError(op, "email is invalid"))
	case params.Password == "":
		return domain.User{}, finish(span, domain.ValidationError(op, "password is required"))
	case len(params.Password) > authn.MaxPasswordBytes:
		return domain.User{}, finish(span, domain.ValidationError(op, passwordTooLong))
	case !params.Role.Valid():
		return domain.User{}, finish(span, domain.ValidationError(op, "role is invalid"))
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return domain.User{}, finish(span, domain.Wrap(domain.CodeInternal, op, err))
	}

	user, err := s.read().Users.Create(ctx, repository.UserCreateParams{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: hash,
		Address:      params.Address,
		Role:         params.Role,
	})
	if err != nil {
		return domain.User{}, finish(span, store.MapError(op, err))
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	s.log.Info("user registered", "user_id", user.ID, "role", user.Role)
	return sanitize(user), finish(span, nil)
}

// Authenticate verifies credentials with the configured verifier and returns
// the matching local account.
func (s *Users) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	const op = "Users.Authenticate"
	ctx, span := s.start(ctx, op)

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, finish(span, domain.ValidationError(op, "email and password are required"))
	}
	if s.verifier == nil {
		return domain.User{}, finish(span, domain.NewError(domain.CodeInternal, op, "no credential verifier configured", nil))
	}

	identity, err := s.verifier.Verify(ctx, email, password)
	if err != nil {
		if errors.Is(err, authn.ErrInvalidCredentials) {
			return domain.User{}, finish(span, domain.NewError(domain.CodeUnauthenticated, op, invalidCredentials, err))
		}
		return domain.User{}, finish(span, store.MapError(op, err))
	}

	user, err := s.read().Users.GetByEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, finish(span, domain.NewError(domain.CodeUnauthenticated, op, invalidCredentials, err))
		}
		return domain.User{}, finish(span, store.MapError(op, err))
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return sanitize(user), finish(span, nil)
}

// Get returns a user by id.
func (s *Users) Get(ctx context.Context, userID int64) (domain.User, error) {
	const op = "Users.Get"
	ctx, span := s.start(ctx, op, attribute.Int64("user.id", userID))

	user, err := s.read().Users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, finish(span, notFound(op, err, "user not found"))
	}
	return sanitize(user), finish(span, nil)
}

// List returns all users, or only those with role when it is non-nil.
func (s *Users) List(ctx context.Context, role *domain.Role) ([]domain.User, error) {
	const op = "Users.List"
	ctx, span := s.start(ctx, op)

	if role != nil && !role.Valid() {
		return nil, finish(span, domain.ValidationError(op, "role is invalid"))
	}
	users, err := s.read().Users.List(ctx, role)
	if err != nil {
		return nil, finish(span, store.MapError(op, err))
	}
	for i := range users {
		users[i] = sanitize(users[i])
	}
	return users, finish(span, nil)
}

// UpdatePassword replaces a user's password after checking the current one.
func (s *Users) UpdatePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	const op = "Users.UpdatePassword"
	ctx, span := s.start(ctx, op, attribute.Int64("user.id", userID))

	if newPassword == "" {
		return finish(span, domain.ValidationError(op, "new password is required"))
	}
	if len(newPassword) > authn.MaxPasswordBytes {
		return finish(span, domain.ValidationError(op, "new "+passwordTooLong))
	}

	repos := s.read()
	user, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		return finish(span, notFound(op, err, "user not found"))
	}
	if err := s.hasher.Compare(user.PasswordHash, oldPassword); err != nil {
		if errors.Is(err, authn.ErrInvalidCredentials) {
			return finish(span, domain.NewError(domain.CodeUnauthenticated, op, "current password is incorrect", err))
		}
		return finish(span, domain.Wrap(domain.CodeInternal, op, err))
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return finish(span, domain.Wrap(domain.CodeInternal, op, err))
	}
	if err := repos.Users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return finish(span, notFound(op, err, "user not found"))
	}
	s.log.Info("password updated", "user_id", userID)
	return finish(span, nil)
}
