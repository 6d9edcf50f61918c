package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/events"
	"github.com/Clark-Hu/store-ratings/internal/repository"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

var ratingRangeMessage = fmt.Sprintf("rating must be between %d and %d", domain.MinRatingValue, domain.MaxRatingValue)

// Ratings writes ratings and keeps each store's overall rating equal to the
// rounded mean of its ratings.
type Ratings struct {
	base
}

// AddRating records userID's rating of storeID and recomputes the store's
// overall rating in the same transaction.
func (s *Ratings) AddRating(ctx context.Context, userID, storeID int64, value int) (domain.Rating, error) {
	const op = "Ratings.AddRating"
	ctx, span := s.start(ctx, op,
		attribute.Int64("store.id", storeID),
		attribute.Int64("user.id", userID),
		attribute.Int("rating.value", value))

	if !domain.ValidRatingValue(value) {
		return domain.Rating{}, finish(span, domain.ValidationError(op, ratingRangeMessage))
	}

	var (
		created domain.Rating
		overall int
	)
	err := s.tx.InTx(ctx, op, func(ctx context.Context, q store.Querier) error {
		repos := s.bind(q)
		if _, err := repos.Stores.LockForUpdate(ctx, storeID); err != nil {
			return notFound(op, err, "store not found")
		}
		exists, err := repos.Users.Exists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NotFoundError(op, "user not found")
		}
		created, err = repos.Ratings.Create(ctx, repository.RatingCreateParams{
			UserID:  userID,
			StoreID: storeID,
			Value:   value,
		})
		if err != nil {
			return err
		}
		overall, err = recompute(ctx, op, repos, storeID)
		return err
	})
	if err != nil {
		return domain.Rating{}, finish(span, err)
	}

	span.SetAttributes(attribute.Int64("rating.id", created.ID), attribute.Int("store.overall_rating", overall))
	s.log.Info("rating added", "rating_id", created.ID, "store_id", storeID, "user_id", userID, "overall_rating", overall)
	s.publish(ctx, events.TypeRatingAdded, created, overall)
	return created, finish(span, nil)
}

// UpdateRating changes the value of ratingID and recomputes its store's
// overall rating in the same transaction.
func (s *Ratings) UpdateRating(ctx context.Context, ratingID int64, value int) (domain.Rating, error) {
	const op = "Ratings.UpdateRating"
	ctx, span := s.start(ctx, op,
		attribute.Int64("rating.id", ratingID),
		attribute.Int("rating.value", value))

	if !domain.ValidRatingValue(value) {
		return domain.Rating{}, finish(span, domain.ValidationError(op, ratingRangeMessage))
	}

	var (
		updated domain.Rating
		overall int
	)
	err := s.tx.InTx(ctx, op, func(ctx context.Context, q store.Querier) error {
		repos := s.bind(q)
		storeID, err := repos.Ratings.GetStoreID(ctx, ratingID)
		if err != nil {
			return notFound(op, err, "rating not found")
		}
		// Lock before writing so concurrent writers of the same store queue up.
		if _, err := repos.Stores.LockForUpdate(ctx, storeID); err != nil {
			return notFound(op, err, "store not found")
		}
		updated, err = repos.Ratings.UpdateValue(ctx, ratingID, value)
		if err != nil {
			return notFound(op, err, "rating not found")
		}
		overall, err = recompute(ctx, op, repos, storeID)
		return err
	})
	if err != nil {
		return domain.Rating{}, finish(span, err)
	}

	span.SetAttributes(attribute.Int64("store.id", updated.StoreID), attribute.Int("store.overall_rating", overall))
	s.log.Info("rating updated", "rating_id", ratingID, "store_id", updated.StoreID, "overall_rating", overall)
	s.publish(ctx, events.TypeRatingUpdated, updated, overall)
	return updated, finish(span, nil)
}

// RecomputeStore rebuilds one store's overall rating from its ratings.
func (s *Ratings) RecomputeStore(ctx context.Context, storeID int64) (int, error) {
	const op = "Ratings.RecomputeStore"
	ctx, span := s.start(ctx, op, attribute.Int64("store.id", storeID))

	var overall int
	err := s.tx.InTx(ctx, op, func(ctx context.Context, q store.Querier) error {
		repos := s.bind(q)
		if _, err := repos.Stores.LockForUpdate(ctx, storeID); err != nil {
			return notFound(op, err, "store not found")
		}
		var err error
		overall, err = recompute(ctx, op, repos, storeID)
		return err
	})
	if err != nil {
		return 0, finish(span, err)
	}
	return overall, finish(span, nil)
}

// RecomputeAll rebuilds every store's overall rating, one transaction per
// store, and returns how many stores were processed.
func (s *Ratings) RecomputeAll(ctx context.Context) (int, error) {
	const op = "Ratings.RecomputeAll"
	ctx, span := s.start(ctx, op)

	ids, err := s.read().Stores.ListIDs(ctx)
	if err != nil {
		return 0, finish(span, store.MapError(op, err))
	}

	processed := 0
	for _, id := range ids {
		if _, err := s.RecomputeStore(ctx, id); err != nil {
			s.log.Error("recompute failed", "store_id", id, "error", err)
			span.SetAttributes(attribute.Int("stores.processed", processed))
			return processed, finish(span, err)
		}
		processed++
	}
	span.SetAttributes(attribute.Int("stores.processed", processed))
	s.log.Info("overall ratings recomputed", "stores", processed)
	return processed, finish(span, nil)
}

// recompute must run while the store row is locked.
func recompute(ctx context.Context, op string, repos Repositories, storeID int64) (int, error) {
	agg, err := repos.Ratings.Aggregate(ctx, storeID)
	if err != nil {
		return 0, err
	}
	overall := agg.Overall()
	if err := repos.Stores.SetOverallRating(ctx, storeID, overall); err != nil {
		return 0, notFound(op, err, "store not found")
	}
	return overall, nil
}
