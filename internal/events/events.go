// Package events publishes rating changes after they have been committed.
// Delivery is best effort: publishers report errors, callers log and move on.
package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/logger"
)

// Type names a rating event; it doubles as the AMQP routing key.
type Type string

const (
	TypeRatingAdded   Type = "rating.added"
	TypeRatingUpdated Type = "rating.updated"
)

// RatingChanged is emitted once per committed AddRating or UpdateRating.
type RatingChanged struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	StoreID       int64     `json:"storeId"`
	RatingID      int64     `json:"ratingId"`
	UserID        int64     `json:"userId"`
	Rating        int       `json:"rating"`
	OverallRating int       `json:"overallRating"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NewRatingChanged builds an event for rating with a fresh id.
func NewRatingChanged(t Type, rating domain.Rating, overall int) RatingChanged {
	return RatingChanged{
		ID:            uuid.NewString(),
		Type:          t,
		StoreID:       rating.StoreID,
		RatingID:      rating.ID,
		UserID:        rating.UserID,
		Rating:        rating.Value,
		OverallRating: overall,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event RatingChanged) error
	Close() error
}

// Options selects and configures a publisher backend.
type Options struct {
	Backend      string
	RedisAddr    string
	RedisChannel string
	AMQPURL      string
	AMQPExchange string
}

// New builds the publisher named by opts.Backend: none, redis or amqp.
func New(ctx context.Context, opts Options, log *logger.Logger) (Publisher, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "none":
		return Noop{}, nil
	case "redis":
		return NewRedisPublisher(ctx, opts.RedisAddr, opts.RedisChannel, log)
	case "amqp":
		return NewAMQPPublisher(opts.AMQPURL, opts.AMQPExchange, log)
	default:
		return nil, fmt.Errorf("unknown events backend %q", opts.Backend)
	}
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, RatingChanged) error { return nil }
func (Noop) Close() error                                 { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []RatingChanged
	Err    error
}

// Publish records event, or returns r.Err when set.
func (r *Recorder) Publish(_ context.Context, event RatingChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []RatingChanged {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RatingChanged, len(r.events))
	copy(out, r.events)
	return out
}
