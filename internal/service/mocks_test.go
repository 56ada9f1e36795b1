package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fjod/go_cart/store-order/internal/cache"
	d "github.com/fjod/go_cart/store-order/internal/domain"
	"github.com/fjod/go_cart/store-order/internal/publisher"
)

type mockStore struct {
	m          sync.Mutex
	orders     map[string]d.Aggregate
	payments   map[string][]d.PaymentAttempt
	fetchCalls int
	saveCalls  int
	fetchErr   error
	saveErr    error
	// afterFetch runs once Fetch has read the order, outside the lock.
	afterFetch func()
}

func newMockStore() *mockStore {
	return &mockStore{
		orders:   make(map[string]d.Aggregate),
		payments: make(map[string][]d.PaymentAttempt),
	}
}

func (m *mockStore) Exists(_ context.Context, orderID string) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	_, ok := m.orders[orderID]
	return ok, nil
}

func (m *mockStore) Fetch(_ context.Context, orderID string) (*d.Aggregate, error) {
	m.m.Lock()
	m.fetchCalls++
	if m.fetchErr != nil {
		m.m.Unlock()
		return nil, m.fetchErr
	}
	agg, ok := m.orders[orderID]
	if !ok {
		m.m.Unlock()
		return nil, fmt.Errorf("order %w", d.ErrNotFound)
	}
	out := cloneAggregate(agg)
	hook := m.afterFetch
	m.m.Unlock()

	if hook != nil {
		hook()
	}
	return &out, nil
}

func (m *mockStore) Save(_ context.Context, agg *d.Aggregate) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	if stored, ok := m.orders[agg.Header.OrderID]; ok && len(stored.Items) != len(agg.Items) {
		return d.ErrItemsImmutable
	}
	m.orders[agg.Header.OrderID] = cloneAggregate(*agg)
	if agg.Payment != nil {
		m.payments[agg.Header.OrderID] = append(m.payments[agg.Header.OrderID], *agg.Payment)
	}
	return nil
}

type mockAllocator struct {
	ids  []string
	next int
	err  error
}

func (m *mockAllocator) NewOrderID(_ context.Context, length int) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	id := m.ids[m.next%len(m.ids)]
	m.next++
	return id[:length], nil
}

// mockCache versions entries the way RedisCache does: Delete bumps the
// version and Set refuses a version that is no longer current.
type mockCache struct {
	m          sync.Mutex
	entries    map[string]d.Aggregate
	versions   map[string]int
	getErr     error
	versionErr error
	gets       int
	sets       int
	staleSets  int
	deletes    []string
}

func newMockCache() *mockCache {
	return &mockCache{
		entries:  make(map[string]d.Aggregate),
		versions: make(map[string]int),
	}
}

func (m *mockCache) Get(_ context.Context, orderID string) (*d.Aggregate, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	agg, ok := m.entries[orderID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	out := cloneAggregate(agg)
	return &out, nil
}

func (m *mockCache) Version(_ context.Context, orderID string) (string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.versionErr != nil {
		return "", m.versionErr
	}
	return strconv.Itoa(m.versions[orderID]), nil
}

func (m *mockCache) Set(_ context.Context, agg *d.Aggregate, version string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if version != strconv.Itoa(m.versions[agg.Header.OrderID]) {
		m.staleSets++
		return cache.ErrStaleEntry
	}
	m.sets++
	m.entries[agg.Header.OrderID] = cloneAggregate(*agg)
	return nil
}

func (m *mockCache) Delete(_ context.Context, orderID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.deletes = append(m.deletes, orderID)
	m.versions[orderID]++
	delete(m.entries, orderID)
	return nil
}

type mockPublisher struct {
	m      sync.Mutex
	events []publisher.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, event publisher.Event) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Close() error {
	return nil
}

// fixedClock advances by one second per call so attempts stay ordered.
func fixedClock() d.Clock {
	var mu sync.Mutex
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEngine() *StatusEngine {
	return NewStatusEngine(NewPaymentClassifier(d.DefaultActionTaxonomy()))
}
