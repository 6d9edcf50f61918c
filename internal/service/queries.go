package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

// Queries serves read-only views. Single-statement reads go straight to the
// pool; multi-statement views read from one snapshot.
type Queries struct {
	base
}

// GetRating returns userID's rating of storeID. found is false, with a nil
// error, when the user has not rated the store.
func (s *Queries) GetRating(ctx context.Context, storeID, userID int64) (rating domain.Rating, found bool, err error) {
	const op = "Queries.GetRating"
	ctx, span := s.start(ctx, op, attribute.Int64("store.id", storeID), attribute.Int64("user.id", userID))

	rating, found, err = s.read().Ratings.GetByStoreAndUser(ctx, storeID, userID)
	if err != nil {
		return domain.Rating{}, false, finish(span, store.MapError(op, err))
	}
	span.SetAttributes(attribute.Bool("rating.found", found))
	return rating, found, finish(span, nil)
}

// GetRatingsForStore returns a store's ratings, or an empty slice.
func (s *Queries) GetRatingsForStore(ctx context.Context, storeID int64) ([]domain.Rating, error) {
	const op = "Queries.GetRatingsForStore"
	ctx, span := s.start(ctx, op, attribute.Int64("store.id", storeID))

	ratings, err := s.read().Ratings.ListByStore(ctx, storeID)
	if err != nil {
		return nil, finish(span, store.MapError(op, err))
	}
	return ratings, finish(span, nil)
}

// GetAllRatings returns every rating, or an empty slice.
func (s *Queries) GetAllRatings(ctx context.Context) ([]domain.Rating, error) {
	const op = "Queries.GetAllRatings"
	ctx, span := s.start(ctx, op)

	ratings, err := s.read().Ratings.ListAll(ctx)
	if err != nil {
		return nil, finish(span, store.MapError(op, err))
	}
	return ratings, finish(span, nil)
}

// GetStore returns a store with its owner and ratings, read from one snapshot
// so the overall rating always matches the ratings returned with it.
func (s *Queries) GetStore(ctx context.Context, storeID int64) (domain.StoreDetails, error) {
	const op = "Queries.GetStore"
	ctx, span := s.start(ctx, op, attribute.Int64("store.id", storeID))

	var details domain.StoreDetails
	err := s.snapshot(ctx, op, func(ctx context.Context, repos Repositories) error {
		st, err := repos.Stores.GetByID(ctx, storeID)
		if err != nil {
			return notFound(op, err, "store not found")
		}
		owner, err := repos.Users.GetByID(ctx, st.OwnerID)
		if err != nil {
			return notFound(op, err, "store owner not found")
		}
		ratings, err := repos.Ratings.ListByStore(ctx, storeID)
		if err != nil {
			return err
		}
		details = domain.StoreDetails{Store: st, Owner: sanitize(owner), Ratings: ratings}
		return nil
	})
	if err != nil {
		return domain.StoreDetails{}, finish(span, err)
	}
	return details, finish(span, nil)
}

// GetAllStores returns every store with owner and ratings. The three reads
// share one snapshot, and ratings and owners are each loaded with a single query.
func (s *Queries) GetAllStores(ctx context.Context) ([]domain.StoreDetails, error) {
	const op = "Queries.GetAllStores"
	ctx, span := s.start(ctx, op)

	var details []domain.StoreDetails
	err := s.snapshot(ctx, op, func(ctx context.Context, repos Repositories) error {
		stores, err := repos.Stores.List(ctx)
		if err != nil {
			return err
		}
		ratings, err := repos.Ratings.ListAll(ctx)
		if err != nil {
			return err
		}

		byStore := make(map[int64][]domain.Rating, len(stores))
		for _, r := range ratings {
			byStore[r.StoreID] = append(byStore[r.StoreID], r)
		}

		ownerIDs := make([]int64, 0, len(stores))
		for _, st := range stores {
			ownerIDs = append(ownerIDs, st.OwnerID)
		}
		owners, err := repos.Users.GetByIDs(ctx, ownerIDs)
		if err != nil {
			return err
		}

		details = make([]domain.StoreDetails, 0, len(stores))
		for _, st := range stores {
			storeRatings := byStore[st.ID]
			if storeRatings == nil {
				storeRatings = []domain.Rating{}
			}
			details = append(details, domain.StoreDetails{
				Store:   st,
				Owner:   sanitize(owners[st.OwnerID]),
				Ratings: storeRatings,
			})
		}
		return nil
	})
	if err != nil {
		return nil, finish(span, err)
	}
	span.SetAttributes(attribute.Int("stores.count", len(details)))
	return details, finish(span, nil)
}
