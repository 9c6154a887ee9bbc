package cart

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockKV struct {
	kv.Store
	m      sync.Mutex
	getErr error
	setErr error
	sets   int

	// set by holdNextGet
	entered chan struct{}
	release chan struct{}
}

func (m *mockKV) Get(ctx context.Context, key string) (string, error) {
	m.m.Lock()
	err := m.getErr
	entered, release := m.entered, m.release
	m.entered, m.release = nil, nil
	m.m.Unlock()
	if err != nil {
		return "", err
	}
	v, err := m.Store.Get(ctx, key)
	if entered != nil {
		close(entered)
		<-release
	}
	return v, err
}

// holdNextGet makes the next Get block after it has read the value, until
// release is closed.
func (m *mockKV) holdNextGet() (entered, release chan struct{}) {
	m.m.Lock()
	defer m.m.Unlock()
	m.entered = make(chan struct{})
	m.release = make(chan struct{})
	return m.entered, m.release
}

func (m *mockKV) Set(ctx context.Context, key, value string) error {
	m.m.Lock()
	m.sets++
	err := m.setErr
	m.m.Unlock()
	if err != nil {
		return err
	}
	return m.Store.Set(ctx, key, value)
}

func newMockKV() *mockKV {
	return &mockKV{Store: kv.NewMemoryStore()}
}

func shirt() domain.Product {
	return domain.Product{ID: 1, Name: "Shirt", Price: domain.PriceFromFloat(10), SalePrice: domain.PriceFromFloat(8)}
}

func socks() domain.Product {
	return domain.Product{ID: 2, Name: "Socks", Price: domain.PriceFromFloat(5)}
}

func TestAddItem_MergesSameVariant(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())

	sut.AddItem(ctx, shirt(), 1, "M", "red")
	sut.AddItem(ctx, shirt(), 2, "M", "red")
	sut.AddItem(ctx, shirt(), 4, "M", "red")

	items := sut.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
	assert.Equal(t, 7, sut.TotalItemCount())
}

func TestAddItem_DistinctVariantsAreSeparateLines(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())

	sut.AddItem(ctx, shirt(), 1, "M", "red")
	sut.AddItem(ctx, shirt(), 1, "M", "blue")
	sut.AddItem(ctx, shirt(), 1, "L", "red")
	sut.AddItem(ctx, socks(), 3, "", "")

	items := sut.Items()
	require.Len(t, items, 4)
	// insertion order is kept
	assert.Equal(t, "1-M-red", items[0].VariantKey())
	assert.Equal(t, "1-M-blue", items[1].VariantKey())
	assert.Equal(t, "1-L-red", items[2].VariantKey())
	assert.Equal(t, "2", items[3].VariantKey())
	assert.Equal(t, 6, sut.TotalItemCount())
}

func TestAddItem_NonPositiveQuantityAddsOne(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())

	sut.AddItem(ctx, socks(), 0, "", "")
	assert.Equal(t, 1, sut.TotalItemCount())
}

func TestAddItem_SnapshotsPrice(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())

	p := socks()
	sut.AddItem(ctx, p, 1, "", "")
	p.Price = domain.PriceFromFloat(50)
	sut.AddItem(ctx, p, 1, "", "")

	// merge keeps the first snapshot
	items := sut.Items()
	require.Len(t, items, 1)
	assert.True(t, decimal.NewFromInt(5).Equal(items[0].UnitPrice.Amount))
}

func TestUpdateQuantity_FloorIsNoop(t *testing.T) {
	ctx := context.Background()
	store := newMockKV()
	sut := NewStore(ctx, store, zerolog.Nop())
	sut.AddItem(ctx, shirt(), 2, "M", "")
	writes := store.sets

	sut.UpdateQuantity(ctx, 1, "M", 0)
	sut.UpdateQuantity(ctx, 1, "M", -3)

	assert.Equal(t, 2, sut.Items()[0].Quantity)
	assert.Equal(t, writes, store.sets, "rejected updates must not write")
}

func TestUpdateQuantity_SetsExactly(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())
	sut.AddItem(ctx, shirt(), 2, "M", "red")
	sut.AddItem(ctx, shirt(), 1, "M", "blue")
	sut.AddItem(ctx, shirt(), 1, "L", "")

	sut.UpdateQuantity(ctx, 1, "M", 5)

	items := sut.Items()
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 5, items[1].Quantity)
	assert.Equal(t, 1, items[2].Quantity)
}

func TestRemoveItem_IgnoresColorAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())
	sut.AddItem(ctx, shirt(), 1, "M", "red")
	sut.AddItem(ctx, shirt(), 1, "M", "blue")
	sut.AddItem(ctx, shirt(), 1, "L", "red")
	sut.AddItem(ctx, socks(), 1, "", "")

	sut.RemoveItem(ctx, 1, "M")
	once := sut.Items()
	sut.RemoveItem(ctx, 1, "M")
	twice := sut.Items()

	require.Len(t, once, 2)
	assert.Equal(t, once, twice)
	assert.Equal(t, "1-L-red", once[0].VariantKey())
	assert.Equal(t, "2", once[1].VariantKey())

	sut.RemoveItem(ctx, 42, "")
	assert.Len(t, sut.Items(), 2)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	sut := NewStore(ctx, store, zerolog.Nop())
	sut.AddItem(ctx, shirt(), 1, "", "")

	sut.Clear(ctx)

	assert.Empty(t, sut.Items())
	assert.Zero(t, sut.TotalItemCount())
	raw, err := store.Get(ctx, domain.KeyCart)
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestRemoveOrdered(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	sut := NewStore(ctx, store, zerolog.Nop())
	sut.AddItem(ctx, shirt(), 2, "M", "red")
	sut.AddItem(ctx, socks(), 1, "", "")
	ordered := sut.Items()

	sut.AddItem(ctx, shirt(), 3, "M", "red")
	sut.AddItem(ctx, shirt(), 1, "L", "")

	sut.RemoveOrdered(ctx, ordered)

	items := sut.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "1-M-red", items[0].VariantKey())
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "1-L", items[1].VariantKey())

	reloaded := NewStore(ctx, store, zerolog.Nop())
	assert.Equal(t, 4, reloaded.TotalItemCount())

	// lines already gone are ignored
	sut.RemoveOrdered(ctx, ordered[1:])
	assert.Equal(t, 4, sut.TotalItemCount())
}

func TestSubtotal(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())

	sut.AddItem(ctx, shirt(), 2, "", "")
	sut.AddItem(ctx, socks(), 3, "", "")

	// 8*2 + 5*3
	assert.True(t, decimal.NewFromInt(31).Equal(sut.Subtotal()), sut.Subtotal().String())
	assert.True(t, sut.Subtotal().Equal(sut.TotalPrice()))
}

func TestSubtotal_MalformedPricesCountAsZero(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, domain.KeyCart,
		`[{"id":1,"quantity":2,"price":"oops"},{"id":2,"quantity":1,"price":"4.50","sale_price":null},{"id":3,"quantity":1}]`))

	sut := NewStore(ctx, store, zerolog.Nop())

	require.Len(t, sut.Items(), 3)
	assert.True(t, decimal.RequireFromString("4.5").Equal(sut.Subtotal()))
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	sut := NewStore(ctx, store, zerolog.Nop())
	sut.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	sut.AddItem(ctx, shirt(), 2, "M", "red")
	sut.AddItem(ctx, socks(), 1, "", "")
	sut.UpdateQuantity(ctx, 2, "", 4)

	reloaded := NewStore(ctx, store, zerolog.Nop())
	assert.Equal(t, len(sut.Items()), len(reloaded.Items()))
	for i, item := range sut.Items() {
		got := reloaded.Items()[i]
		assert.Equal(t, item.VariantKey(), got.VariantKey())
		assert.Equal(t, item.Quantity, got.Quantity)
		assert.True(t, item.EffectivePrice().Equal(got.EffectivePrice()))
		assert.True(t, item.AddedAt.Equal(got.AddedAt))
	}
	assert.True(t, sut.Subtotal().Equal(reloaded.Subtotal()))
}

func TestNewStore_CorruptOrMissingDataIsEmpty(t *testing.T) {
	ctx := context.Background()

	empty := NewStore(ctx, kv.NewMemoryStore(), zerolog.Nop())
	assert.Empty(t, empty.Items())

	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, domain.KeyCart, `{not json`))
	corrupt := NewStore(ctx, store, zerolog.Nop())
	assert.Empty(t, corrupt.Items())

	// the first write replaces the corrupt value
	corrupt.AddItem(ctx, socks(), 1, "", "")
	raw, err := store.Get(ctx, domain.KeyCart)
	require.NoError(t, err)
	var items []domain.CartItem
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	assert.Len(t, items, 1)
}

func TestNewStore_ReadFailureIsEmpty(t *testing.T) {
	store := newMockKV()
	store.getErr = errors.New("disk on fire")

	sut := NewStore(context.Background(), store, zerolog.Nop())
	assert.Empty(t, sut.Items())
}

func TestWriteFailure_KeepsInMemoryCart(t *testing.T) {
	ctx := context.Background()
	sut := NewStore(ctx, kv.NewMemoryStoreWithQuota(64), zerolog.Nop())

	p := socks()
	p.Name = strings.Repeat("long name ", 20)
	sut.AddItem(ctx, p, 1, "", "")
	sut.AddItem(ctx, p, 1, "", "")

	assert.Equal(t, 2, sut.TotalItemCount())
}

func TestReload_KeepsCartOnReadFailure(t *testing.T) {
	ctx := context.Background()
	store := newMockKV()
	sut := NewStore(ctx, store, zerolog.Nop())
	sut.AddItem(ctx, socks(), 2, "", "")

	store.getErr = errors.New("timeout")
	sut.Reload(ctx)

	assert.Equal(t, 2, sut.TotalItemCount())
}

func TestReload_ConcurrentAddItemIsNotLost(t *testing.T) {
	ctx := context.Background()
	store := newMockKV()
	sut := NewStore(ctx, store, zerolog.Nop())
	entered, release := store.holdNextGet()

	reloaded := make(chan struct{})
	go func() {
		sut.Reload(ctx)
		close(reloaded)
	}()
	<-entered

	added := make(chan struct{})
	go func() {
		sut.AddItem(ctx, shirt(), 1, "M", "")
		close(added)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	<-reloaded
	<-added

	require.Len(t, sut.Items(), 1)
	raw, err := store.Store.Get(ctx, domain.KeyCart)
	require.NoError(t, err)
	var persisted []domain.CartItem
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, "1-M", persisted[0].VariantKey())
}

func TestListen_ReloadsOnOtherProcessWrite(t *testing.T) {
	ctx := context.Background()
	hub := notify.NewHub()
	busA, busB := hub.Connect(), hub.Connect()
	defer busA.Close()
	defer busB.Close()

	shared := kv.NewMemoryStore()
	tabA := NewStore(ctx, notify.NewNotifyingStore(shared, busA, zerolog.Nop()), zerolog.Nop())
	tabB := NewStore(ctx, notify.NewNotifyingStore(shared, busB, zerolog.Nop()), zerolog.Nop())

	stop := Listen(busB, tabB, time.Second)
	defer stop()

	tabA.AddItem(ctx, shirt(), 3, "M", "")

	require.Eventually(t, func() bool {
		return tabB.TotalItemCount() == 3
	}, time.Second, 5*time.Millisecond)

	stop()
	tabA.Clear(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, tabB.TotalItemCount())
}
