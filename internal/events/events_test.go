package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Clark-Hu/store-ratings/internal/domain"
	"github.com/Clark-Hu/store-ratings/internal/logger"
)

func TestNewRatingChanged(t *testing.T) {
	c := qt.New(t)

	event := NewRatingChanged(TypeRatingAdded, domain.Rating{ID: 11, UserID: 3, StoreID: 5, Value: 4}, 5)
	_, err := uuid.Parse(event.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(event.OccurredAt.IsZero(), qt.IsFalse)

	raw, err := json.Marshal(event)
	c.Assert(err, qt.IsNil)

	var decoded map[string]any
	c.Assert(json.Unmarshal(raw, &decoded), qt.IsNil)
	c.Assert(decoded["type"], qt.Equals, "rating.added")
	c.Assert(decoded["storeId"], qt.Equals, float64(5))
	c.Assert(decoded["ratingId"], qt.Equals, float64(11))
	c.Assert(decoded["userId"], qt.Equals, float64(3))
	c.Assert(decoded["rating"], qt.Equals, float64(4))
	c.Assert(decoded["overallRating"], qt.Equals, float64(5))
}

func TestNewSelectsBackend(t *testing.T) {
	c := qt.New(t)

	p, err := New(context.Background(), Options{Backend: "none"}, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(p, qt.Equals, Publisher(Noop{}))

	_, err = New(context.Background(), Options{Backend: "kafka"}, nil)
	c.Assert(err, qt.ErrorMatches, `unknown events backend "kafka"`)

	_, err = New(context.Background(), Options{Backend: "redis"}, nil)
	c.Assert(err, qt.ErrorMatches, `REDIS_ADDR is required.*`)

	_, err = New(context.Background(), Options{Backend: "amqp"}, nil)
	c.Assert(err, qt.ErrorMatches, `AMQP_URL is required.*`)
}

func TestRecorder(t *testing.T) {
	c := qt.New(t)

	r := &Recorder{}
	c.Assert(r.Publish(context.Background(), RatingChanged{ID: "a"}), qt.IsNil)
	c.Assert(r.Events(), qt.HasLen, 1)

	r.Err = errors.New("broker down")
	c.Assert(r.Publish(context.Background(), RatingChanged{ID: "b"}), qt.ErrorMatches, "broker down")
	c.Assert(r.Events(), qt.HasLen, 1)
}

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	closed   bool
	err      error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherRoutesByType(t *testing.T) {
	c := qt.New(t)

	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "ratings", log: logger.NewNop()}

	event := NewRatingChanged(TypeRatingUpdated, domain.Rating{ID: 1, UserID: 2, StoreID: 3, Value: 2}, 3)
	c.Assert(p.Publish(context.Background(), event), qt.IsNil)
	c.Assert(ch.exchange, qt.Equals, "ratings")
	c.Assert(ch.key, qt.Equals, "rating.updated")
	c.Assert(ch.msg.ContentType, qt.Equals, "application/json")
	c.Assert(ch.msg.MessageId, qt.Equals, event.ID)

	var decoded RatingChanged
	c.Assert(json.Unmarshal(ch.msg.Body, &decoded), qt.IsNil)
	c.Assert(decoded.OverallRating, qt.Equals, 3)

	c.Assert(p.Close(), qt.IsNil)
	c.Assert(ch.closed, qt.IsTrue)
}

func TestAMQPPublisherRedialsClosedChannel(t *testing.T) {
	c := qt.New(t)

	dropped := &fakeChannel{err: amqp.ErrClosed}
	fresh := &fakeChannel{}
	var dials int
	var dialErr error
	p := &AMQPPublisher{
		ch:       dropped,
		exchange: "ratings",
		log:      logger.NewNop(),
		dial: func() (io.Closer, amqpChannel, error) {
			dials++
			if dialErr != nil {
				return nil, nil, dialErr
			}
			return io.NopCloser(nil), fresh, nil
		},
	}

	event := NewRatingChanged(TypeRatingAdded, domain.Rating{ID: 4, UserID: 5, StoreID: 6, Value: 5}, 5)
	c.Assert(p.Publish(context.Background(), event), qt.IsNil)
	c.Assert(dials, qt.Equals, 1)
	c.Assert(dropped.closed, qt.IsTrue)
	c.Assert(fresh.key, qt.Equals, "rating.added")
	c.Assert(fresh.msg.MessageId, qt.Equals, event.ID)

	fresh.err = amqp.ErrClosed
	dialErr = errors.New("connection refused")
	err := p.Publish(context.Background(), event)
	c.Assert(err, qt.ErrorMatches, `redial rabbitmq: connection refused`)
	c.Assert(dials, qt.Equals, 2)

	dialErr = nil
	fresh.err = nil
	c.Assert(p.Publish(context.Background(), event), qt.IsNil)
	c.Assert(dials, qt.Equals, 3)

	other := errors.New("flow control")
	fresh.err = other
	c.Assert(p.Publish(context.Background(), event), qt.ErrorIs, other)
	c.Assert(dials, qt.Equals, 3)
}

// TestRedisPublisherRoundTrip needs a reachable Redis in REDIS_ADDR.
func TestRedisPublisherRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not provided")
	}
	c := qt.New(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p, err := NewRedisPublisher(ctx, addr, "store-ratings.test", logger.NewNop())
	c.Assert(err, qt.IsNil)
	defer p.Close()

	received := make(chan RatingChanged, 1)
	go func() {
		_ = p.Subscribe(ctx, func(e RatingChanged) { received <- e })
	}()

	event := NewRatingChanged(TypeRatingAdded, domain.Rating{ID: 9, UserID: 1, StoreID: 2, Value: 5}, 5)
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case got := <-received:
			c.Assert(got.ID, qt.Equals, event.ID)
			return
		case <-tick.C:
			c.Assert(p.Publish(ctx, event), qt.IsNil)
		case <-deadline:
			t.Fatal("event not received")
		}
	}
}
