package cart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	productA = Product{ID: 1, Title: "A", Price: 10.00, Category: "misc"}
	productB = Product{ID: 2, Title: "B", Price: 15.50, Category: "misc"}
	productC = Product{ID: 3, Title: "C", Price: 4.25, Category: "misc"}
)

// mockStore is a Store that records writes and can be told to fail them.
type mockStore struct {
	mu       sync.Mutex
	state    State
	found    bool
	loadErr  error
	saveErr  error
	saves    int
	clears   int
	lastSave State
}

func (m *mockStore) Load(context.Context) (State, bool, error) {
	if m.loadErr != nil {
		return Empty(), false, m.loadErr
	}
	return m.state, m.found, nil
}

func (m *mockStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.lastSave = s.clone()
	return nil
}

func (m *mockStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCart(t *testing.T, items ...Product) (*Cart, *mockStore) {
	t.Helper()
	store := &mockStore{}
	c := New(context.Background(), store, discardLogger())
	for _, p := range items {
		c.Add(context.Background(), p)
	}
	store.saves = 0
	return c, store
}

func ids(items []LineItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func intPtr(v int) *int { return &v }

// assertInvariants checks the rules every observable state must satisfy.
func assertInvariants(t *testing.T, s State) {
	t.Helper()
	require.NotNil(t, s.Items)
	seen := map[int]bool{}
	count := 0
	price := 0.0
	for i, it := range s.Items {
		assert.Equal(t, i, it.Position, "positions must be dense and ordered")
		assert.GreaterOrEqual(t, it.Quantity, 1, "quantity floor")
		assert.LessOrEqual(t, it.Quantity, MaxQuantity, "quantity ceiling")
		assert.False(t, seen[it.ID], "duplicate id %d", it.ID)
		seen[it.ID] = true
		count += it.Quantity
		price += it.Price * float64(it.Quantity)
	}
	assert.Equal(t, count, s.TotalItems)
	assert.InDelta(t, price, s.TotalPrice, 1e-6)
}

func Test_Cart_AddSameProductTwice(t *testing.T) {
	// given
	c, store := newTestCart(t)
	ctx := context.Background()

	// when
	c.Add(ctx, productA)
	c.Add(ctx, productA)
	s := c.Add(ctx, productB)

	// then
	require.Len(t, s.Items, 2)
	assert.Equal(t, []int{1, 2}, ids(s.Items))
	assert.Equal(t, 2, s.Items[0].Quantity)
	assert.Equal(t, 0, s.Items[0].Position)
	assert.Equal(t, 1, s.Items[1].Quantity)
	assert.Equal(t, 1, s.Items[1].Position)
	assert.Equal(t, 3, s.TotalItems)
	assert.Equal(t, 35.50, s.TotalPrice)
	assert.Equal(t, 3, store.saves)
	assert.Equal(t, s, store.lastSave)
}

func Test_Cart_RemoveReassignsPositions(t *testing.T) {
	c, _ := newTestCart(t, productA, productA, productB)

	s, ok := c.Remove(context.Background(), productA.ID)

	require.True(t, ok)
	require.Len(t, s.Items, 1)
	assert.Equal(t, productB.ID, s.Items[0].ID)
	assert.Equal(t, 0, s.Items[0].Position)
	assert.Equal(t, 1, s.TotalItems)
	assert.Equal(t, 15.50, s.TotalPrice)
}

func Test_Cart_SetQuantityClamps(t *testing.T) {
	testCases := []struct {
		name string
		q    int
		want int
	}{
		{name: "zero", q: 0, want: 1},
		{name: "negative", q: -5, want: 1},
		{name: "one", q: 1, want: 1},
		{name: "many", q: 7, want: 7},
		{name: "max", q: MaxQuantity, want: MaxQuantity},
		{name: "above max", q: MaxQuantity + 1, want: MaxQuantity},
		{name: "max int", q: math.MaxInt, want: MaxQuantity},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			c, store := newTestCart(t, productB)

			// when
			s, ok := c.SetQuantity(context.Background(), productB.ID, tc.q)

			// then
			require.True(t, ok)
			assert.Equal(t, tc.want, s.Items[0].Quantity)
			assert.Equal(t, tc.want, s.TotalItems)
			assert.InDelta(t, 15.50*float64(tc.want), s.TotalPrice, 1e-9)
			assert.Equal(t, 1, store.saves)
		})
	}
}

func Test_Cart_AbsentIDIsNoop(t *testing.T) {
	c, store := newTestCart(t, productA)
	before := c.Snapshot()

	s, ok := c.Remove(context.Background(), 99)
	assert.False(t, ok)
	assert.Equal(t, before, s)

	s, ok = c.SetQuantity(context.Background(), 99, 4)
	assert.False(t, ok)
	assert.Equal(t, before, s)

	assert.Zero(t, store.saves, "no-op mutations must not write")
}

func Test_Cart_MoveLastOntoFirst(t *testing.T) {
	// given
	c, store := newTestCart(t, productA, productB, productC)
	before := c.Snapshot()

	// when
	s, ok := c.Move(context.Background(), productC.ID, intPtr(productA.ID))

	// then
	require.True(t, ok)
	assert.Equal(t, []int{3, 1, 2}, ids(s.Items))
	for i, it := range s.Items {
		assert.Equal(t, i, it.Position)
	}
	assert.Equal(t, before.TotalItems, s.TotalItems)
	assert.Equal(t, before.TotalPrice, s.TotalPrice)
	assert.Equal(t, 1, store.saves)
}

func Test_Cart_MoveNoops(t *testing.T) {
	testCases := []struct {
		name     string
		activeID int
		overID   *int
	}{
		{name: "cancelled drag", activeID: productA.ID, overID: nil},
		{name: "dropped onto itself", activeID: productA.ID, overID: intPtr(productA.ID)},
		{name: "unknown active", activeID: 99, overID: intPtr(productA.ID)},
		{name: "unknown over", activeID: productA.ID, overID: intPtr(99)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, store := newTestCart(t, productA, productB)
			before := c.Snapshot()

			s, ok := c.Move(context.Background(), tc.activeID, tc.overID)

			assert.False(t, ok)
			assert.Equal(t, before, s)
			assert.Zero(t, store.saves)
		})
	}
}

func Test_Cart_ReorderRejectsNonPermutation(t *testing.T) {
	testCases := []struct {
		name  string
		items []LineItem
	}{
		{name: "missing id", items: []LineItem{{Product: productA}}},
		{name: "foreign id", items: []LineItem{{Product: productA}, {Product: productC}}},
		{name: "duplicate id", items: []LineItem{{Product: productA}, {Product: productA}}},
		{name: "extra id", items: []LineItem{{Product: productA}, {Product: productB}, {Product: productC}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, store := newTestCart(t, productA, productB)
			before := c.Snapshot()

			s, ok := c.Reorder(context.Background(), tc.items)

			assert.False(t, ok)
			assert.Equal(t, before, s)
			assert.Zero(t, store.saves)
		})
	}
}

func Test_Cart_ReorderKeepsLineContents(t *testing.T) {
	c, _ := newTestCart(t, productA, productA, productB)

	// the caller's quantities and positions are not trusted
	s, ok := c.Reorder(context.Background(), []LineItem{
		{Product: productB, Quantity: 50, Position: 9},
		{Product: productA, Quantity: 50, Position: 9},
	})

	require.True(t, ok)
	assert.Equal(t, []int{2, 1}, ids(s.Items))
	assert.Equal(t, 1, s.Items[0].Quantity)
	assert.Equal(t, 2, s.Items[1].Quantity)
	assert.Equal(t, 3, s.TotalItems)
	assert.Equal(t, 35.50, s.TotalPrice)
	assertInvariants(t, s)
}

func Test_Cart_AddMany(t *testing.T) {
	c, store := newTestCart(t, productA)

	s := c.AddMany(context.Background(), productA, 3)
	s = c.AddMany(context.Background(), productB, 0)

	assert.Equal(t, 4, s.Items[0].Quantity)
	assert.Equal(t, 1, s.Items[1].Quantity)
	assert.Equal(t, 2, store.saves)
	assertInvariants(t, s)
}

func Test_Cart_AddSaturatesAtMaxQuantity(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(c *Cart)
		add   int
	}{
		{
			name:  "add onto a line set to max int",
			setup: func(c *Cart) { c.SetQuantity(context.Background(), productA.ID, math.MaxInt) },
			add:   1,
		},
		{
			name:  "add max int onto an existing line",
			setup: func(c *Cart) {},
			add:   math.MaxInt,
		},
		{
			name:  "add max int twice",
			setup: func(c *Cart) { c.AddMany(context.Background(), productA, math.MaxInt) },
			add:   math.MaxInt,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			c, _ := newTestCart(t, productA)
			tc.setup(c)

			// when
			s := c.AddMany(context.Background(), productA, tc.add)

			// then
			require.Len(t, s.Items, 1)
			assert.Equal(t, MaxQuantity, s.Items[0].Quantity)
			assert.Equal(t, MaxQuantity, s.TotalItems)
			assert.InDelta(t, 10.00*MaxQuantity, s.TotalPrice, 1e-9)
			assertInvariants(t, s)
		})
	}
}

func Test_Cart_TotalsStayPositiveAtMaxQuantity(t *testing.T) {
	// given
	c, _ := newTestCart(t)

	// when
	c.AddMany(context.Background(), productA, math.MaxInt)
	s := c.AddMany(context.Background(), productB, math.MaxInt)

	// then
	assert.Equal(t, 2*MaxQuantity, s.TotalItems)
	assert.InDelta(t, (10.00+15.50)*MaxQuantity, s.TotalPrice, 1e-6)
	assertInvariants(t, s)
}

func Test_Cart_ClearRemovesSnapshot(t *testing.T) {
	c, store := newTestCart(t, productA, productB)

	s := c.Clear(context.Background())

	assert.Equal(t, Empty(), s)
	assert.Equal(t, 1, store.clears)
	assert.Zero(t, store.saves)
}

func Test_Cart_SaveFailureKeepsMemoryState(t *testing.T) {
	// given
	var logs bytes.Buffer
	store := &mockStore{saveErr: errors.New("disk full")}
	c := New(context.Background(), store, slog.New(slog.NewTextHandler(&logs, nil)))

	// when
	s := c.Add(context.Background(), productA)

	// then
	assert.Equal(t, 1, s.TotalItems)
	assert.Equal(t, s, c.Snapshot())
	assert.Contains(t, logs.String(), "Failed to persist cart")
	assert.Contains(t, logs.String(), "disk full")
}

func Test_Cart_InitializeFallsBackToEmpty(t *testing.T) {
	testCases := []struct {
		name    string
		store   *mockStore
		wantLog bool
	}{
		{name: "absent", store: &mockStore{}},
		{name: "malformed", store: &mockStore{loadErr: storeerrors.ErrMalformedSnapshot}, wantLog: true},
		{name: "unreadable", store: &mockStore{loadErr: storeerrors.ErrStorageRead}, wantLog: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			c := New(context.Background(), tc.store, slog.New(slog.NewTextHandler(&logs, nil)))

			s := c.Snapshot()
			assert.Equal(t, Empty(), s)
			assert.Equal(t, tc.wantLog, bytes.Contains(logs.Bytes(), []byte("level=WARN")))
		})
	}
}

func Test_Cart_MalformedSnapshotOnDisk(t *testing.T) {
	// given
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	require.NoError(t, kv.Set(ctx, SnapshotKey, []byte("{not json")))

	// when
	c := New(ctx, NewPersistence(kv), discardLogger())

	// then
	s := c.Snapshot()
	assert.Empty(t, s.Items)
	assert.Zero(t, s.TotalItems)
	assert.Zero(t, s.TotalPrice)
}

func Test_Cart_NormalizesLoadedSnapshot(t *testing.T) {
	store := &mockStore{found: true, state: State{
		Items: []LineItem{
			{Product: productB, Quantity: 0, Position: 7},
			{Product: productA, Quantity: 2, Position: 3},
			{Product: productB, Quantity: 2, Position: 1},
		},
		TotalItems: 999,
		TotalPrice: -1,
	}}

	c := New(context.Background(), store, discardLogger())
	s := c.Snapshot()

	assert.Equal(t, []int{2, 1}, ids(s.Items))
	assert.Equal(t, 3, s.Items[0].Quantity)
	assert.Equal(t, 5, s.TotalItems)
	assertInvariants(t, s)
}

func Test_Cart_RoundTripThroughStorage(t *testing.T) {
	// given
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	first := New(ctx, NewPersistence(kv), discardLogger())
	first.Add(ctx, productA)
	first.Add(ctx, productB)
	first.SetQuantity(ctx, productB.ID, 4)
	first.Move(ctx, productB.ID, intPtr(productA.ID))
	want := first.Snapshot()

	// when
	second := New(ctx, NewPersistence(kv), discardLogger())

	// then
	assert.Equal(t, want, second.Snapshot())

	second.Clear(ctx)
	_, err := kv.Get(ctx, SnapshotKey)
	assert.ErrorIs(t, err, storeerrors.ErrKeyNotFound)
}

func Test_Cart_SnapshotsAreImmutable(t *testing.T) {
	c, _ := newTestCart(t, productA)

	s := c.Snapshot()
	s.Items[0].Quantity = 100

	assert.Equal(t, 1, c.Snapshot().Items[0].Quantity)
}

func Test_Cart_Subscribe(t *testing.T) {
	// given
	c, _ := newTestCart(t, productA)
	ch, cancel := c.Subscribe()

	// then the current state is delivered first
	initial := <-ch
	assert.Equal(t, 1, initial.TotalItems)

	// when several mutations happen without the subscriber reading
	c.Add(context.Background(), productA)
	c.Add(context.Background(), productB)
	c.Remove(context.Background(), 42)

	// then only the latest state is pending
	latest := <-ch
	assert.Equal(t, 3, latest.TotalItems)
	select {
	case s := <-ch:
		t.Fatalf("unexpected extra state: %+v", s)
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	c.Add(context.Background(), productC)
}

func Test_Cart_ConcurrentAdds(t *testing.T) {
	c, _ := newTestCart(t)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := productA
			if i%2 == 1 {
				p = productB
			}
			c.Add(context.Background(), p)
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	assert.Equal(t, 50, s.TotalItems)
	assert.Len(t, s.Items, 2)
	assertInvariants(t, s)
}

func Test_Cart_RandomOperationsKeepInvariants(t *testing.T) {
	ctx := context.Background()
	r := rand.New(rand.NewPCG(1, 2))
	catalog := []Product{productA, productB, productC, {ID: 4, Title: "D", Price: 0.1}, {ID: 5, Title: "E", Price: 0.2}}
	c, _ := newTestCart(t)

	for range 500 {
		p := catalog[r.IntN(len(catalog))]
		before := c.Snapshot()
		var s State
		switch r.IntN(5) {
		case 0, 1:
			s = c.Add(ctx, p)
		case 2:
			s, _ = c.Remove(ctx, p.ID)
		case 3:
			s, _ = c.SetQuantity(ctx, p.ID, r.IntN(6)-2)
		case 4:
			over := catalog[r.IntN(len(catalog))].ID
			s, _ = c.Move(ctx, p.ID, &over)
			assert.ElementsMatch(t, ids(before.Items), ids(s.Items), "move must permute")
			assert.Equal(t, before.TotalItems, s.TotalItems)
		}
		assertInvariants(t, s)
	}
}
