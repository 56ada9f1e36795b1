package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// MockStore implements Store in memory with per-call error injection.
type MockStore struct {
	Taken        map[string]bool
	ForcedHits   int // OrderExists reports true this many times before consulting Taken
	ExistsCalls  int
	ExistsErr    error
	InsertErr    error
	Headers      map[string]d.Header
	Items        map[string][]d.LineItem
	Customers    []d.Customer
	Payments     []d.PaymentAttempt
	MetaUpdates  int
	FetchItemErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		Taken:   make(map[string]bool),
		Headers: make(map[string]d.Header),
		Items:   make(map[string][]d.LineItem),
	}
}

func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) OrderExists(_ context.Context, orderID string) (bool, error) {
	m.ExistsCalls++
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	if m.ForcedHits > 0 {
		m.ForcedHits--
		return true, nil
	}
	if m.Taken[orderID] {
		return true, nil
	}
	_, ok := m.Headers[orderID]
	return ok, nil
}

func (m *MockStore) FetchHeader(_ context.Context, orderID string) (*d.Header, error) {
	h, ok := m.Headers[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &h, nil
}

func (m *MockStore) InsertHeader(_ context.Context, h d.Header) (string, error) {
	if m.InsertErr != nil {
		return "", m.InsertErr
	}
	m.Headers[h.OrderID] = h
	return h.OrderID, nil
}

func (m *MockStore) FetchItems(_ context.Context, orderID string) ([]d.LineItem, error) {
	if m.FetchItemErr != nil {
		return nil, m.FetchItemErr
	}
	items := m.Items[orderID]
	if len(items) == 0 {
		return nil, ErrItemsNotFound
	}
	return items, nil
}

func (m *MockStore) InsertItem(_ context.Context, item d.LineItem) (string, error) {
	m.Items[item.OrderID] = append(m.Items[item.OrderID], item)
	return item.SKU, nil
}

func (m *MockStore) CustomerExists(_ context.Context, c d.Customer) (bool, error) {
	for _, stored := range m.Customers {
		if stored.OrderID == c.OrderID && stored.EmailAddress == c.EmailAddress {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) FetchCustomer(_ context.Context, orderID string) (*d.Customer, error) {
	for i := len(m.Customers) - 1; i >= 0; i-- {
		if m.Customers[i].OrderID == orderID {
			c := m.Customers[i]
			return &c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (m *MockStore) InsertCustomer(_ context.Context, c d.Customer) (string, error) {
	m.Customers = append(m.Customers, c)
	return c.EmailAddress, nil
}

func samePayment(a, b d.PaymentAttempt) bool {
	return a.Created.Equal(b.Created) && a.OrderID == b.OrderID && a.ReferenceID == b.ReferenceID &&
		a.Processor == b.Processor && a.Amount.Equal(b.Amount) && a.Action == b.Action && a.Successful == b.Successful
}

func (m *MockStore) PaymentExists(_ context.Context, p d.PaymentAttempt) (bool, error) {
	for _, stored := range m.Payments {
		if samePayment(stored, p) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) FetchLatestPayment(_ context.Context, orderID string) (*d.PaymentAttempt, error) {
	var latest *d.PaymentAttempt
	for i := range m.Payments {
		p := m.Payments[i]
		if p.OrderID == orderID && (latest == nil || !p.Created.Before(latest.Created)) {
			latest = &p
		}
	}
	if latest == nil {
		return nil, ErrPaymentNotFound
	}
	return latest, nil
}

func (m *MockStore) InsertPayment(_ context.Context, p d.PaymentAttempt) (string, error) {
	m.Payments = append(m.Payments, p)
	return p.ReferenceID, nil
}

func (m *MockStore) UpdatePaymentMetadata(_ context.Context, p d.PaymentAttempt) (int64, error) {
	var n int64
	for i := range m.Payments {
		if samePayment(m.Payments[i], p) {
			m.Payments[i].Metadata = p.Metadata
			n++
		}
	}
	m.MetaUpdates++
	return n, nil
}

var testCreated = time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)

// newTestAggregate builds the two-item order used across the storage tests:
// 2 x item1 at 100.00 plus 1 x item2 at 50.00, captured in full.
func newTestAggregate(orderID string) *d.Aggregate {
	header := d.NewHeader(orderID, testCreated, "USD", "127.0.0.1")
	header.Description = "Test order"

	item1, err := d.NewLineItem(orderID, "item1", "Test Item", 2, decimal.RequireFromString("100.00"))
	if err != nil {
		panic(err)
	}
	item2, err := d.NewLineItem(orderID, "item2", "Test Item 2", 1, decimal.RequireFromString("50.00"))
	if err != nil {
		panic(err)
	}
	header.Amount = decimal.RequireFromString("250.00")

	customer, err := d.NewCustomer(d.Customer{
		OrderID:      orderID,
		FirstName:    "Jim",
		LastName:     "Doe",
		EmailAddress: "jimdoe@fake.com",
		Address1:     "1234 Fake Rd.",
		Address2:     "#3307",
		City:         "Las Vegas",
		State:        "NV",
		Postcode:     "89129",
		Country:      "US",
	})
	if err != nil {
		panic(err)
	}

	payment, err := d.NewPaymentAttempt(testCreated.Add(time.Minute), orderID, "test", "test",
		decimal.RequireFromString("250.00"), "capture", true, "test payment")
	if err != nil {
		panic(err)
	}

	return &d.Aggregate{
		Header:   header,
		Items:    []d.LineItem{item1, item2},
		Customer: &customer,
		Payment:  &payment,
	}
}
