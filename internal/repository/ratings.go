package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

// RatingsRepository provides helpers for store ratings.
type RatingsRepository struct {
	q store.Querier
}

const ratingColumns = `rating_id, user_id, store_id, rating`

// RatingCreateParams captures the payload required to insert a rating.
type RatingCreateParams struct {
	UserID  int64
	StoreID int64
	Value   int
}

// Create inserts a rating. A second rating by the same user for the same
// store violates ratings_user_store_key.
func (r *RatingsRepository) Create(ctx context.Context, params RatingCreateParams) (domain.Rating, error) {
	query := fmt.Sprintf(`
        INSERT INTO ratings (user_id, store_id, rating)
        VALUES ($1, $2, $3)
        RETURNING %s
    `, ratingColumns)

	rating, err := scanRating(r.q.QueryRow(ctx, query, params.UserID, params.StoreID, params.Value))
	if err != nil {
		return domain.Rating{}, fmt.Errorf("insert rating: %w", err)
	}
	return rating, nil
}

// UpdateValue changes the value of an existing rating.
func (r *RatingsRepository) UpdateValue(ctx context.Context, id int64, value int) (domain.Rating, error) {
	query := fmt.Sprintf(`
        UPDATE ratings SET rating = $2
        WHERE rating_id = $1
        RETURNING %s
    `, ratingColumns)

	rating, err := scanRating(r.q.QueryRow(ctx, query, id, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, fmt.Errorf("update rating: %w", err)
	}
	return rating, nil
}

// GetStoreID resolves which store a rating belongs to.
func (r *RatingsRepository) GetStoreID(ctx context.Context, id int64) (int64, error) {
	var storeID int64
	err := r.q.QueryRow(ctx, `SELECT store_id FROM ratings WHERE rating_id = $1`, id).Scan(&storeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return storeID, nil
}

// Aggregate returns the sum and count of a store's ratings.
func (r *RatingsRepository) Aggregate(ctx context.Context, storeID int64) (domain.RatingAggregate, error) {
	const query = `
        SELECT COALESCE(SUM(rating), 0)::int8 AS sum,
               COUNT(*)::int8 AS count
        FROM ratings
        WHERE store_id = $1
    `

	var agg domain.RatingAggregate
	err := r.q.QueryRow(ctx, query, storeID).Scan(&agg.Sum, &agg.Count)
	if err != nil {
		return domain.RatingAggregate{}, fmt.Errorf("aggregate ratings: %w", err)
	}
	return agg, nil
}

// GetByStoreAndUser retrieves the rating a user gave a store. The boolean is
// false when there is none; the lowest id wins if several exist.
func (r *RatingsRepository) GetByStoreAndUser(ctx context.Context, storeID, userID int64) (domain.Rating, bool, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM ratings
        WHERE store_id = $1 AND user_id = $2
        ORDER BY rating_id
        LIMIT 1
    `, ratingColumns)

	rating, err := scanRating(r.q.QueryRow(ctx, query, storeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, false, nil
		}
		return domain.Rating{}, false, err
	}
	return rating, true, nil
}

// ListByStore returns a store's ratings ordered by id.
func (r *RatingsRepository) ListByStore(ctx context.Context, storeID int64) ([]domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings WHERE store_id = $1 ORDER BY rating_id`, ratingColumns)
	return r.list(ctx, query, storeID)
}

// ListAll returns every rating ordered by id.
func (r *RatingsRepository) ListAll(ctx context.Context) ([]domain.Rating, error) {
	query := fmt.Sprintf(`SELECT %s FROM ratings ORDER BY rating_id`, ratingColumns)
	return r.list(ctx, query)
}

func (r *RatingsRepository) list(ctx context.Context, query string, args ...any) ([]domain.Rating, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ratings, nil
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var rating domain.Rating
	if err := row.Scan(&rating.ID, &rating.UserID, &rating.StoreID, &rating.Value); err != nil {
		return domain.Rating{}, err
	}
	return rating, nil
}
