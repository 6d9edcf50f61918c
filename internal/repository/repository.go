package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/store-ratings/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// Repository aggregates all domain-specific repositories.
type Repository struct {
	Users   *UsersRepository
	Stores  *StoresRepository
	Ratings *RatingsRepository
}

// New constructs a Repository backed by the provided store's pool.
func New(st *store.Store) *Repository {
	return NewWithQuerier(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return NewWithQuerier(pool)
}

// NewWithQuerier binds every repository to q, which may be a pool or an open
// transaction.
func NewWithQuerier(q store.Querier) *Repository {
	return &Repository{
		Users:   &UsersRepository{q: q},
		Stores:  &StoresRepository{q: q},
		Ratings: &RatingsRepository{q: q},
	}
}
