// Package service holds the application's use cases. Writes that touch a
// store's derived overall rating run inside a single transaction that holds
// the store's row lock; reads go straight to the pool.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Clark-Hu/store-ratings/internal/authn"
	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/events"
	"github.com/Clark-Hu/store-ratings/internal/logger"
	"github.com/Clark-Hu/store-ratings/internal/observability"
	"github.com/Clark-Hu/store-ratings/internal/repository"
	"github.com/Clark-Hu/store-ratings/internal/store"
)

const publishTimeout = 2 * time.Second

// UserRepository is the user persistence the services depend on.
type UserRepository interface {
	Create(ctx context.Context, params repository.UserCreateParams) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.User, error)
	Exists(ctx context.Context, id int64) (bool, error)
	List(ctx context.Context, role *domain.Role) ([]domain.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// StoreRepository is the store persistence the services depend on.
type StoreRepository interface {
	Create(ctx context.Context, params repository.StoreCreateParams) (domain.Store, error)
	GetByID(ctx context.Context, id int64) (domain.Store, error)
	GetByOwner(ctx context.Context, ownerID int64) (domain.Store, error)
	LockForUpdate(ctx context.Context, id int64) (domain.Store, error)
	SetOverallRating(ctx context.Context, id int64, value int) error
	List(ctx context.Context) ([]domain.Store, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// RatingRepository is the rating persistence the services depend on.
type RatingRepository interface {
	Create(ctx context.Context, params repository.RatingCreateParams) (domain.Rating, error)
	UpdateValue(ctx context.Context, id int64, value int) (domain.Rating, error)
	GetStoreID(ctx context.Context, id int64) (int64, error)
	Aggregate(ctx context.Context, storeID int64) (domain.RatingAggregate, error)
	GetByStoreAndUser(ctx context.Context, storeID, userID int64) (domain.Rating, bool, error)
	ListByStore(ctx context.Context, storeID int64) ([]domain.Rating, error)
	ListAll(ctx context.Context) ([]domain.Rating, error)
}

// Repositories groups the repositories bound to one querier.
type Repositories struct {
	Users   UserRepository
	Stores  StoreRepository
	Ratings RatingRepository
}

// Binder returns repositories that run their statements on q.
type Binder func(q store.Querier) Repositories

// PostgresBinder binds the pgx repositories.
func PostgresBinder(q store.Querier) Repositories {
	r := repository.NewWithQuerier(q)
	return Repositories{Users: r.Users, Stores: r.Stores, Ratings: r.Ratings}
}

// Deps are the collaborators shared by every service.
type Deps struct {
	Tx       store.TxRunner
	Reader   store.Querier
	Bind     Binder
	Hasher   *authn.Hasher
	Verifier authn.Verifier
	Events   events.Publisher
	Logger   *logger.Logger
	Tracer   trace.Tracer
}

// Service bundles the use cases exposed to transports.
type Service struct {
	Ratings *Ratings
	Stores  *Stores
	Queries *Queries
	Users   *Users
}

// New wires every service from deps, filling in no-op defaults.
func New(deps Deps) *Service {
	b := newBase(deps)
	return &Service{
		Ratings: &Ratings{base: b},
		Stores:  &Stores{base: b},
		Queries: &Queries{base: b},
		Users:   &Users{base: b},
	}
}

type base struct {
	tx       store.TxRunner
	reader   store.Querier
	bind     Binder
	hasher   *authn.Hasher
	verifier authn.Verifier
	events   events.Publisher
	log      *logger.Logger
	tracer   trace.Tracer
}

func newBase(deps Deps) base {
	b := base{
		tx:       deps.Tx,
		reader:   deps.Reader,
		bind:     deps.Bind,
		hasher:   deps.Hasher,
		verifier: deps.Verifier,
		events:   deps.Events,
		log:      deps.Logger,
		tracer:   deps.Tracer,
	}
	if b.bind == nil {
		b.bind = PostgresBinder
	}
	if b.hasher == nil {
		b.hasher = authn.NewHasher(0)
	}
	if b.events == nil {
		b.events = events.Noop{}
	}
	if b.log == nil {
		b.log = logger.NewNop()
	}
	b.log = b.log.With("component", "service")
	if b.tracer == nil {
		b.tracer = otel.Tracer(observability.TracerName)
	}
	return b
}

// read returns repositories bound to the pool.
func (b base) read() Repositories {
	return b.bind(b.reader)
}

// snapshot runs fn with repositories that all read from one database
// snapshot. Without a transaction runner it falls back to plain pool reads.
func (b base) snapshot(ctx context.Context, op string, fn func(ctx context.Context, repos Repositories) error) error {
	if b.tx == nil {
		return store.MapError(op, fn(ctx, b.read()))
	}
	return b.tx.InSnapshot(ctx, op, func(ctx context.Context, q store.Querier) error {
		return fn(ctx, b.bind(q))
	})
}

func (b base) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
}

// publish delivers event after commit. Failures are logged only.
func (b base) publish(ctx context.Context, t events.Type, rating domain.Rating, overall int) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	event := events.NewRatingChanged(t, rating, overall)
	if err := b.events.Publish(pubCtx, event); err != nil {
		b.log.Warn("publish event failed", "type", t, "event_id", event.ID, "store_id", rating.StoreID, "error", err)
	}
}

// finish records err on span and returns it.
func finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.CodeOf(err)))
	}
	span.End()
	return err
}

// notFound turns repository.ErrNotFound into a coded error with msg and maps
// anything else through store.MapError.
func notFound(op string, err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.NotFoundError(op, msg)
	}
	return store.MapError(op, err)
}

func sanitize(u domain.User) domain.User {
	u.PasswordHash = ""
	return u
}
