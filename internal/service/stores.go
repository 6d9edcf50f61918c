package service

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Clark-Hu/store-ratings/internal/authn"
	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/repository"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

// OwnerParams describes the user account created alongside a store.
type OwnerParams struct {
	Name     string
	Email    string
	Password string
	Address  string
	// Role defaults to STORE_OWNER when empty.
	Role domain.Role
}

// CreateStoreParams is the input of Stores.Create.
type CreateStoreParams struct {
	StoreName string
	Address   string
	Owner     OwnerParams
}

// Stores provisions stores together with their owners.
type Stores struct {
	base
}

// Create inserts the owner and the store in one transaction. If either insert
// fails neither row exists afterwards.
func (s *Stores) Create(ctx context.Context, params CreateStoreParams) (domain.Store, error) {
	const op = "Stores.Create"
	ctx, span := s.start(ctx, op)

	params.StoreName = strings.TrimSpace(params.StoreName)
	params.Owner.Email = strings.TrimSpace(params.Owner.Email)
	params.Owner.Name = strings.TrimSpace(params.Owner.Name)
	if params.Owner.Role == "" {
		params.Owner.Role = domain.RoleStoreOwner
	}
	if err := validateCreateStore(op, params); err != nil {
		return domain.Store{}, finish(span, err)
	}

	hash, err := s.hasher.Hash(params.Owner.Password)
	if err != nil {
		return domain.Store{}, finish(span, domain.Wrap(domain.CodeInternal, op, err))
	}

	var created domain.Store
	err = s.tx.InTx(ctx, op, func(ctx context.Context, q store.Querier) error {
		repos := s.bind(q)
		owner, err := repos.Users.Create(ctx, repository.UserCreateParams{
			Name:         params.Owner.Name,
			Email:        params.Owner.Email,
			PasswordHash: hash,
			Address:      params.Owner.Address,
			Role:         params.Owner.Role,
		})
		if err != nil {
			return err
		}
		created, err = repos.Stores.Create(ctx, repository.StoreCreateParams{
			Name:    params.StoreName,
			Address: params.Address,
			OwnerID: owner.ID,
		})
		return err
	})
	if err != nil {
		return domain.Store{}, finish(span, err)
	}

	span.SetAttributes(attribute.Int64("store.id", created.ID), attribute.Int64("owner.id", created.OwnerID))
	s.log.Info("store created", "store_id", created.ID, "owner_id", created.OwnerID, "email", params.Owner.Email)
	return created, finish(span, nil)
}

// GetByOwner returns the store owned by ownerID.
func (s *Stores) GetByOwner(ctx context.Context, ownerID int64) (domain.Store, error) {
	const op = "Stores.GetByOwner"
	ctx, span := s.start(ctx, op, attribute.Int64("owner.id", ownerID))

	st, err := s.read().Stores.GetByOwner(ctx, ownerID)
	if err != nil {
		return domain.Store{}, finish(span, notFound(op, err, "no store found for owner"))
	}
	return st, finish(span, nil)
}

func validateCreateStore(op string, params CreateStoreParams) error {
	switch {
	case params.StoreName == "":
		return domain.ValidationError(op, "storeName is required")
	case params.Owner.Name == "":
		return domain.ValidationError(op, "owner name is required")
	case !validEmail(params.Owner.Email):
		return domain.ValidationError(op, "owner email is invalid")
	case params.Owner.Password == "":
		return domain.ValidationError(op, "owner password is required")
	case len(params.Owner.Password) > authn.MaxPasswordBytes:
		return domain.ValidationError(op, "owner "+passwordTooLong)
	case !params.Owner.Role.Valid():
		return domain.ValidationError(op, "owner role is invalid")
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
