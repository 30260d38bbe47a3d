// Package cart holds the shopping cart aggregate: ordered line items, derived
// totals and the rules that keep them consistent across mutations and restarts.
package cart

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/abgdnv/storefront/internal/storage"
)

// Cart is the authoritative in-memory cart. All methods are safe for concurrent
// use and mutations are applied one at a time in call order.
//
// Every effective mutation recomputes totals, writes the snapshot through the
// Store and then notifies subscribers. The write is not cancelled with the
// caller's context. A failed write is logged and the in-memory state stays
// authoritative.
type Cart struct {
	mu     sync.Mutex
	state  State
	store  Store
	logger *slog.Logger

	subs    map[uint64]chan State
	nextSub uint64
}

// New loads the persisted snapshot. A missing, unreadable or malformed snapshot
// yields an empty cart. A loaded snapshot is normalized: duplicate ids are
// merged, quantities are bounded to [1, MaxQuantity], positions are restamped in
// stored order and totals are recomputed.
func New(ctx context.Context, store Store, logger *slog.Logger) *Cart {
	c := &Cart{
		store:  store,
		logger: logger.With("component", "cart"),
		subs:   make(map[uint64]chan State),
	}
	s, found, err := store.Load(ctx)
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "Failed to load cart snapshot, starting empty", "error", err)
		c.state = Empty()
	case !found:
		c.state = Empty()
	default:
		c.state = withTotals(State{Items: Consolidate(s.Items)})
		c.logger.DebugContext(ctx, "Cart restored", "items", len(c.state.Items), "total_items", c.state.TotalItems)
	}
	return c
}

// Snapshot returns the current state.
func (c *Cart) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// View returns the current items consolidated by product id.
func (c *Cart) View() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Consolidate(c.state.Items)
}

// Add puts one unit of p in the cart. An existing line for p.ID gets its
// quantity incremented, otherwise a new line is appended at the end.
func (c *Cart) Add(ctx context.Context, p Product) State {
	return c.AddMany(ctx, p, 1)
}

// AddMany is n consecutive calls to Add applied as a single mutation.
// n below 1 is treated as 1 and the resulting quantity saturates at MaxQuantity.
func (c *Cart) AddMany(ctx context.Context, p Product, n int) State {
	n = clampQuantity(n)
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.clone()
	if i := next.indexOf(p.ID); i >= 0 {
		next.Items[i].Quantity = addQuantity(next.Items[i].Quantity, n)
	} else {
		next.Items = append(next.Items, LineItem{Product: p, Quantity: n, Position: len(next.Items)})
	}
	return c.commitLocked(ctx, next)
}

// Remove deletes the line for id. It reports false and writes nothing if id is not in the cart.
func (c *Cart) Remove(ctx context.Context, id int) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.state.indexOf(id)
	if i < 0 {
		return c.state.clone(), false
	}
	next := c.state.clone()
	next.Items = slices.Delete(next.Items, i, i+1)
	return c.commitLocked(ctx, next), true
}

// SetQuantity sets the quantity of id to q bounded to [1, MaxQuantity].
// It reports false and writes nothing if id is not in the cart.
func (c *Cart) SetQuantity(ctx context.Context, id, q int) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.state.indexOf(id)
	if i < 0 {
		return c.state.clone(), false
	}
	next := c.state.clone()
	next.Items[i].Quantity = clampQuantity(q)
	return c.commitLocked(ctx, next), true
}

// Reorder arranges the lines in the order of items. The input must be a
// permutation of the current lines, otherwise nothing changes and it reports
// false. Only the ids of items are read: line contents stay as they are and
// positions are restamped.
func (c *Cart) Reorder(ctx context.Context, items []LineItem) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reorderLocked(ctx, items)
}

// Move applies a drag gesture: activeID is dropped onto overID in the
// consolidated view. A nil overID (cancelled drag), a drop onto itself or an
// unknown id leaves the cart untouched and reports false.
func (c *Cart) Move(ctx context.Context, activeID int, overID *int) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved, ok := Rearrange(Consolidate(c.state.Items), activeID, overID)
	if !ok {
		return c.state.clone(), false
	}
	return c.reorderLocked(ctx, moved)
}

// Clear empties the cart and removes its snapshot from storage.
func (c *Cart) Clear(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Empty()
	wctx, cancel := storage.WriteContext(ctx)
	defer cancel()
	if err := c.store.Clear(wctx); err != nil {
		c.logger.ErrorContext(ctx, "Failed to remove cart snapshot", "error", err)
	}
	c.publishLocked()
	return c.state.clone()
}

// Subscribe returns a channel that immediately receives the current state and
// then the state after every effective mutation. Delivery is latest-wins: a
// subscriber that falls behind only ever sees the newest state. The returned
// func unsubscribes and closes the channel.
func (c *Cart) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan State, 1)
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.state.clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Cart) reorderLocked(ctx context.Context, items []LineItem) (State, bool) {
	if !isPermutation(c.state.Items, items) {
		c.logger.DebugContext(ctx, "Ignoring reorder that is not a permutation of the cart", "items", len(items))
		return c.state.clone(), false
	}
	byID := make(map[int]LineItem, len(c.state.Items))
	for _, it := range c.state.Items {
		byID[it.ID] = it
	}
	next := State{Items: make([]LineItem, 0, len(items))}
	for _, it := range items {
		next.Items = append(next.Items, byID[it.ID])
	}
	return c.commitLocked(ctx, next), true
}

// commitLocked recomputes derived fields, persists and publishes next.
func (c *Cart) commitLocked(ctx context.Context, next State) State {
	c.state = withTotals(next)
	wctx, cancel := storage.WriteContext(ctx)
	defer cancel()
	if err := c.store.Save(wctx, c.state); err != nil {
		c.logger.ErrorContext(ctx, "Failed to persist cart", "error", err)
	}
	c.publishLocked()
	return c.state.clone()
}

func (c *Cart) publishLocked() {
	for _, ch := range c.subs {
		// drop a stale undelivered state so the send below never blocks
		select {
		case <-ch:
		default:
		}
		ch <- c.state.clone()
	}
}
