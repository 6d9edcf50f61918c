package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

// StoresRepository provides persistence helpers for stores.
type StoresRepository struct {
	q store.Querier
}

const storeColumns = `store_id, store_name, address, overall_rating, owner_id`

// StoreCreateParams bundles the fields required to create a store.
type StoreCreateParams struct {
	Name    string
	Address string
	OwnerID int64
}

// Create inserts a store with an overall rating of zero.
func (r *StoresRepository) Create(ctx context.Context, params StoreCreateParams) (domain.Store, error) {
	query := fmt.Sprintf(`
        INSERT INTO stores (store_name, address, overall_rating, owner_id)
        VALUES ($1, $2, 0, $3)
        RETURNING %s
    `, storeColumns)

	st, err := scanStore(r.q.QueryRow(ctx, query, params.Name, params.Address, params.OwnerID))
	if err != nil {
		return domain.Store{}, fmt.Errorf("insert store: %w", err)
	}
	return st, nil
}

// GetByID fetches a store by identifier.
func (r *StoresRepository) GetByID(ctx context.Context, id int64) (domain.Store, error) {
	query := fmt.Sprintf(`SELECT %s FROM stores WHERE store_id = $1`, storeColumns)
	return r.getOne(ctx, query, id)
}

// GetByOwner fetches the oldest store owned by ownerID.
func (r *StoresRepository) GetByOwner(ctx context.Context, ownerID int64) (domain.Store, error) {
	query := fmt.Sprintf(`SELECT %s FROM stores WHERE owner_id = $1 ORDER BY store_id LIMIT 1`, storeColumns)
	return r.getOne(ctx, query, ownerID)
}

// LockForUpdate reads a store while taking its row lock for the rest of the
// enclosing transaction. Every writer of a store's ratings goes through here.
func (r *StoresRepository) LockForUpdate(ctx context.Context, id int64) (domain.Store, error) {
	query := fmt.Sprintf(`SELECT %s FROM stores WHERE store_id = $1 FOR UPDATE`, storeColumns)
	return r.getOne(ctx, query, id)
}

// SetOverallRating persists the derived overall rating of a store.
func (r *StoresRepository) SetOverallRating(ctx context.Context, id int64, value int) error {
	tag, err := r.q.Exec(ctx, `UPDATE stores SET overall_rating = $2 WHERE store_id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("set overall rating: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every store ordered by id.
func (r *StoresRepository) List(ctx context.Context) ([]domain.Store, error) {
	query := fmt.Sprintf(`SELECT %s FROM stores ORDER BY store_id`, storeColumns)
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]domain.Store, 0)
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stores, nil
}

// ListIDs returns every store id in ascending order.
func (r *StoresRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT store_id FROM stores ORDER BY store_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *StoresRepository) getOne(ctx context.Context, query string, args ...any) (domain.Store, error) {
	st, err := scanStore(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Store{}, ErrNotFound
		}
		return domain.Store{}, err
	}
	return st, nil
}

func scanStore(row pgx.Row) (domain.Store, error) {
	var st domain.Store
	err := row.Scan(&st.ID, &st.Name, &st.Address, &st.OverallRating, &st.OwnerID)
	if err != nil {
		return domain.Store{}, err
	}
	return st, nil
}
