package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/storage"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
	published chan events.CartUpdatedEvent
}

func (m *mockPublisher) Publish(ctx context.Context, event messaging.Event) error {
	args := m.Called(ctx, event)
	if e, ok := event.(events.CartUpdatedEvent); ok {
		m.published <- e
	}
	return args.Error(0)
}

func newPublisher(err error) *mockPublisher {
	p := &mockPublisher{published: make(chan events.CartUpdatedEvent, 16)}
	p.On("Publish", mock.Anything, mock.AnythingOfType("events.CartUpdatedEvent")).Return(err)
	return p
}

func next(t *testing.T, p *mockPublisher) events.CartUpdatedEvent {
	t.Helper()
	select {
	case e := <-p.published:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return events.CartUpdatedEvent{}
	}
}

func Test_Notifier_PublishesSnapshots(t *testing.T) {
	// given
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	c := cart.New(ctx, cart.NewPersistence(storage.NewMemoryStore()), logger)
	publisher := newPublisher(nil)
	n := New(c, publisher, logger)
	fixed := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	// when
	initial := next(t, publisher)
	c.AddMany(ctx, cart.Product{ID: 7, Title: "Ring", Price: 9.99}, 2)
	updated := next(t, publisher)
	cancel()

	// then
	assert.Zero(t, initial.TotalItems)
	assert.Empty(t, initial.LineItems)
	assert.Equal(t, messaging.CartUpdatedSubject, updated.Subject())
	assert.Equal(t, 2, updated.TotalItems)
	assert.InDelta(t, 19.98, updated.TotalPrice, 1e-9)
	require.Len(t, updated.LineItems, 1)
	assert.Equal(t, events.CartLine{ProductID: 7, Title: "Ring", Quantity: 2, Price: 9.99, Position: 0}, updated.LineItems[0])
	assert.Equal(t, fixed, updated.UpdatedAt)
	assert.ErrorIs(t, <-done, context.Canceled)
	publisher.AssertExpectations(t)
}

func Test_Notifier_KeepsRunningAfterPublishFailure(t *testing.T) {
	// given
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := cart.New(ctx, cart.NewPersistence(storage.NewMemoryStore()), logger)
	publisher := newPublisher(errors.New("nats: no responders available"))
	n := New(c, publisher, logger)
	go func() { _ = n.Run(ctx) }()

	// when
	next(t, publisher)
	c.Add(ctx, cart.Product{ID: 1, Title: "Backpack", Price: 109.95})

	// then
	e := next(t, publisher)
	assert.Equal(t, 1, e.TotalItems)
}
