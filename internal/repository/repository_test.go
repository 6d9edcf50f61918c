package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/store"
	"github.com/Clark-Hu/store-ratings/internal/store/storetest"
)

type testEnv struct {
	ctx        context.Context
	pool       *pgxpool.Pool
	repository *Repository
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	env := storetest.New(t, 40000)
	return &testEnv{
		ctx:        env.Ctx,
		pool:       env.Pool,
		repository: NewWithPool(env.Pool),
	}
}

func mustCreateUser(t testing.TB, env *testEnv, email string, role domain.Role) domain.User {
	t.Helper()
	user, err := env.repository.Users.Create(env.ctx, UserCreateParams{
		Name:         "User " + email,
		Email:        email,
		PasswordHash: "hash",
		Address:      "1 Main Street",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("create user %q: %v", email, err)
	}
	return user
}

func mustCreateStore(t testing.TB, env *testEnv, name string) domain.Store {
	t.Helper()
	owner := mustCreateUser(t, env, name+"@owner.test", domain.RoleStoreOwner)
	st, err := env.repository.Stores.Create(env.ctx, StoreCreateParams{
		Name:    name,
		Address: "2 Market Road",
		OwnerID: owner.ID,
	})
	if err != nil {
		t.Fatalf("create store %q: %v", name, err)
	}
	return st
}

func TestUsersRepository_CreateGetList(t *testing.T) {
	env := newTestEnv(t)

	admin := mustCreateUser(t, env, "admin@example.test", domain.RoleSystemAdministrator)
	user := mustCreateUser(t, env, "user@example.test", domain.RoleUser)

	if admin.Role != domain.RoleSystemAdministrator {
		t.Fatalf("role = %s, want %s", admin.Role, domain.RoleSystemAdministrator)
	}

	got, err := env.repository.Users.GetByEmail(env.ctx, "user@example.test")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.ID != user.ID || got.PasswordHash != "hash" {
		t.Fatalf("GetByEmail = %+v, want %+v", got, user)
	}

	if _, err := env.repository.Users.GetByID(env.ctx, 999_999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ID, got %v", err)
	}

	_, err = env.repository.Users.Create(env.ctx, UserCreateParams{
		Name: "dup", Email: "user@example.test", PasswordHash: "x", Role: domain.RoleUser,
	})
	if !domain.IsCode(store.MapError("create", err), domain.CodeConflict) {
		t.Fatalf("duplicate email err = %v, want conflict", err)
	}

	all, err := env.repository.Users.List(env.ctx, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List len = %d, want 2", len(all))
	}

	role := domain.RoleUser
	filtered, err := env.repository.Users.List(env.ctx, &role)
	if err != nil {
		t.Fatalf("List by role: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != user.ID {
		t.Fatalf("List by role = %+v, want only %d", filtered, user.ID)
	}

	byID, err := env.repository.Users.GetByIDs(env.ctx, []int64{admin.ID, 424242})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(byID) != 1 || byID[admin.ID].Email != admin.Email {
		t.Fatalf("GetByIDs = %+v", byID)
	}

	if err := env.repository.Users.UpdatePasswordHash(env.ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
	if err := env.repository.Users.UpdatePasswordHash(env.ctx, 999_999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdatePasswordHash unknown user err = %v", err)
	}

	exists, err := env.repository.Users.Exists(env.ctx, user.ID)
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v", exists, err)
	}
}

func TestStoresRepository_CreateGetSet(t *testing.T) {
	env := newTestEnv(t)

	st := mustCreateStore(t, env, "Corner Shop")
	if st.OverallRating != 0 {
		t.Fatalf("new store overall = %d, want 0", st.OverallRating)
	}

	if err := env.repository.Stores.SetOverallRating(env.ctx, st.ID, 4); err != nil {
		t.Fatalf("SetOverallRating: %v", err)
	}
	got, err := env.repository.Stores.GetByID(env.ctx, st.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.OverallRating != 4 {
		t.Fatalf("overall = %d, want 4", got.OverallRating)
	}

	byOwner, err := env.repository.Stores.GetByOwner(env.ctx, st.OwnerID)
	if err != nil {
		t.Fatalf("GetByOwner: %v", err)
	}
	if byOwner.ID != st.ID {
		t.Fatalf("GetByOwner id = %d, want %d", byOwner.ID, st.ID)
	}

	err = env.repository.Stores.SetOverallRating(env.ctx, st.ID, 6)
	if !domain.IsCode(store.MapError("set", err), domain.CodeValidation) {
		t.Fatalf("out of range overall err = %v, want validation", err)
	}

	if _, err := env.repository.Stores.Create(env.ctx, StoreCreateParams{Name: "Orphan", OwnerID: 999_999}); !domain.IsCode(store.MapError("create", err), domain.CodeNotFound) {
		t.Fatalf("missing owner err = %v, want not found", err)
	}

	mustCreateStore(t, env, "Second Shop")
	ids, err := env.repository.Stores.ListIDs(env.ctx)
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != st.ID {
		t.Fatalf("ListIDs = %v", ids)
	}
	list, err := env.repository.Stores.List(env.ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List len = %d, want 2", len(list))
	}

	if _, err := env.repository.Stores.GetByID(env.ctx, 999_999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRatingsRepository_CreateUpdateAggregate(t *testing.T) {
	env := newTestEnv(t)

	st := mustCreateStore(t, env, "Rated Shop")
	alice := mustCreateUser(t, env, "alice@example.test", domain.RoleUser)
	bob := mustCreateUser(t, env, "bob@example.test", domain.RoleUser)

	first, err := env.repository.Ratings.Create(env.ctx, RatingCreateParams{UserID: alice.ID, StoreID: st.ID, Value: 4})
	if err != nil {
		t.Fatalf("create rating: %v", err)
	}
	if _, err := env.repository.Ratings.Create(env.ctx, RatingCreateParams{UserID: bob.ID, StoreID: st.ID, Value: 5}); err != nil {
		t.Fatalf("create second rating: %v", err)
	}

	agg, err := env.repository.Ratings.Aggregate(env.ctx, st.ID)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.Sum != 9 || agg.Count != 2 {
		t.Fatalf("aggregate = %+v, want sum 9 count 2", agg)
	}

	_, err = env.repository.Ratings.Create(env.ctx, RatingCreateParams{UserID: alice.ID, StoreID: st.ID, Value: 1})
	if !domain.IsCode(store.MapError("create", err), domain.CodeConflict) {
		t.Fatalf("duplicate rating err = %v, want conflict", err)
	}

	updated, err := env.repository.Ratings.UpdateValue(env.ctx, first.ID, 2)
	if err != nil {
		t.Fatalf("UpdateValue: %v", err)
	}
	if updated.Value != 2 || updated.StoreID != st.ID {
		t.Fatalf("updated = %+v", updated)
	}
	if _, err := env.repository.Ratings.UpdateValue(env.ctx, 999_999, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateValue unknown id err = %v", err)
	}

	storeID, err := env.repository.Ratings.GetStoreID(env.ctx, first.ID)
	if err != nil || storeID != st.ID {
		t.Fatalf("GetStoreID = %d, %v", storeID, err)
	}

	got, found, err := env.repository.Ratings.GetByStoreAndUser(env.ctx, st.ID, alice.ID)
	if err != nil || !found {
		t.Fatalf("GetByStoreAndUser = %v, %v", found, err)
	}
	if got.Value != 2 {
		t.Fatalf("fetched rating = %d, want 2", got.Value)
	}

	_, found, err = env.repository.Ratings.GetByStoreAndUser(env.ctx, st.ID, 999_999)
	if err != nil || found {
		t.Fatalf("missing rating found=%v err=%v", found, err)
	}

	byStore, err := env.repository.Ratings.ListByStore(env.ctx, st.ID)
	if err != nil {
		t.Fatalf("ListByStore: %v", err)
	}
	if len(byStore) != 2 || byStore[0].ID != first.ID {
		t.Fatalf("ListByStore = %+v", byStore)
	}
}

func TestRatingsRepository_EmptyStore(t *testing.T) {
	env := newTestEnv(t)

	st := mustCreateStore(t, env, "Quiet Shop")

	agg, err := env.repository.Ratings.Aggregate(env.ctx, st.ID)
	if err != nil {
		t.Fatalf("aggregate without ratings: %v", err)
	}
	if agg.Count != 0 || agg.Sum != 0 {
		t.Fatalf("aggregate = %+v, want zero", agg)
	}

	ratings, err := env.repository.Ratings.ListByStore(env.ctx, st.ID)
	if err != nil {
		t.Fatalf("ListByStore: %v", err)
	}
	if ratings == nil || len(ratings) != 0 {
		t.Fatalf("ListByStore = %#v, want empty non-nil slice", ratings)
	}

	all, err := env.repository.Ratings.ListAll(env.ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("ListAll len = %d, want 0", len(all))
	}
}

func TestRatingsRepository_ConcurrentCreates(t *testing.T) {
	env := newTestEnv(t)

	st := mustCreateStore(t, env, "Busy Shop")
	const workers = 10
	users := make([]domain.User, workers)
	for i := range users {
		users[i] = mustCreateUser(t, env, fmt.Sprintf("user-%d@example.test", i), domain.RoleUser)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(user domain.User) {
			defer wg.Done()
			params := RatingCreateParams{UserID: user.ID, StoreID: st.ID, Value: 4}
			if _, err := env.repository.Ratings.Create(env.ctx, params); err != nil {
				t.Errorf("create failed for %d: %v", user.ID, err)
			}
		}(users[i])
	}
	wg.Wait()

	agg, err := env.repository.Ratings.Aggregate(env.ctx, st.ID)
	if err != nil {
		t.Fatalf("aggregate after concurrent creates: %v", err)
	}
	if agg.Count != workers {
		t.Fatalf("agg.Count = %d, want %d", agg.Count, workers)
	}
}

func BenchmarkRatingsRepositoryAggregate(b *testing.B) {
	env := newTestEnv(b)

	st := mustCreateStore(b, env, "Bench Shop")
	for i := 0; i < 50; i++ {
		user := mustCreateUser(b, env, fmt.Sprintf("bench-%d@example.test", i), domain.RoleUser)
		if _, err := env.repository.Ratings.Create(env.ctx, RatingCreateParams{UserID: user.ID, StoreID: st.ID, Value: i%5 + 1}); err != nil {
			b.Fatalf("create rating: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.repository.Ratings.Aggregate(env.ctx, st.ID); err != nil {
			b.Fatalf("aggregate: %v", err)
		}
	}
}
