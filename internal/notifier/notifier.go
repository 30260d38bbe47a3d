// Package notifier publishes cart snapshots as CartUpdated events.
package notifier

import (
	"context"
	"log/slog"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/pkg/messaging"
	"github.com/abgdnv/storefront/pkg/messaging/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Source streams cart states.
type Source interface {
	Subscribe() (<-chan cart.State, func())
}

// Notifier forwards every cart state it observes to a Publisher.
// Intermediate states may be skipped when mutations outpace publishing,
// the newest state is always sent.
type Notifier struct {
	source    Source
	publisher messaging.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func New(source Source, publisher messaging.Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		source:    source,
		publisher: publisher,
		logger:    logger.With("component", "notifier"),
		now:       time.Now,
	}
}

// Run publishes the current state and then every following one until ctx is done.
// Publish failures are logged and do not stop the loop.
func (n *Notifier) Run(ctx context.Context) error {
	updates, cancel := n.source.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-updates:
			if !ok {
				return nil
			}
			if err := n.publisher.Publish(ctx, n.toEvent(ctx, st)); err != nil {
				n.logger.ErrorContext(ctx, "Failed to publish CartUpdatedEvent", "error", err)
				continue
			}
			n.logger.DebugContext(ctx, "CartUpdatedEvent published", "total_items", st.TotalItems)
		}
	}
}

func (n *Notifier) toEvent(ctx context.Context, st cart.State) events.CartUpdatedEvent {
	carrier := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	view := cart.Consolidate(st.Items)
	lines := make([]events.CartLine, 0, len(view))
	for _, it := range view {
		lines = append(lines, events.CartLine{
			ProductID: it.ID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Position:  it.Position,
		})
	}
	return events.CartUpdatedEvent{
		Carrier:    carrier,
		TotalItems: st.TotalItems,
		TotalPrice: st.TotalPrice,
		LineItems:  lines,
		UpdatedAt:  n.now().UTC(),
	}
}
