package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/storage"
)

// SnapshotKey is the storage key of the serialized cart.
const SnapshotKey = "cart"

// Store loads and saves cart snapshots.
type Store interface {
	// Load returns the persisted state and whether one was found.
	// Returns ErrMalformedSnapshot if the stored value cannot be decoded.
	Load(ctx context.Context) (State, bool, error)

	// Save replaces the persisted state.
	Save(ctx context.Context, s State) error

	// Clear removes the persisted state entirely.
	Clear(ctx context.Context) error
}

// Persistence stores the cart as JSON under SnapshotKey of a key-value backend.
type Persistence struct {
	kv storage.KV
}

var _ Store = (*Persistence)(nil)

func NewPersistence(kv storage.KV) *Persistence {
	return &Persistence{kv: kv}
}

func (p *Persistence) Load(ctx context.Context) (State, bool, error) {
	raw, err := p.kv.Get(ctx, SnapshotKey)
	if err != nil {
		if errors.Is(err, storeerrors.ErrKeyNotFound) {
			return Empty(), false, nil
		}
		return Empty(), false, err
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return Empty(), false, fmt.Errorf("%w: %w", storeerrors.ErrMalformedSnapshot, err)
	}
	if s.Items == nil {
		s.Items = []LineItem{}
	}
	return s, true, nil
}

func (p *Persistence) Save(ctx context.Context, s State) error {
	if s.Items == nil {
		s.Items = []LineItem{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	return p.kv.Set(ctx, SnapshotKey, raw)
}

func (p *Persistence) Clear(ctx context.Context) error {
	return p.kv.Remove(ctx, SnapshotKey)
}
