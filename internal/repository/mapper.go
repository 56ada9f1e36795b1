package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// Mapper loads and stores whole order aggregates through the entity ports.
type Mapper struct {
	headers   HeaderStore
	items     ItemStore
	customers CustomerStore
	payments  PaymentStore
	tx        Transactor
}

func NewMapper(headers HeaderStore, items ItemStore, customers CustomerStore, payments PaymentStore) *Mapper {
	return &Mapper{
		headers:   headers,
		items:     items,
		customers: customers,
		payments:  payments,
	}
}

// NewStoreMapper builds a Mapper whose four ports are served by one store.
// New orders are inserted in one transaction when the store is a Transactor.
func NewStoreMapper(store Store) *Mapper {
	m := NewMapper(store, store, store, store)
	if tx, ok := store.(Transactor); ok {
		m.tx = tx
	}
	return m
}

func (m *Mapper) Exists(ctx context.Context, orderID string) (bool, error) {
	return m.headers.OrderExists(ctx, orderID)
}

// Fetch rebuilds the aggregate for orderID. The header and at least one item
// are required; customer and payment are optional.
func (m *Mapper) Fetch(ctx context.Context, orderID string) (*d.Aggregate, error) {
	header, err := m.headers.FetchHeader(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := m.items.FetchItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrItemsNotFound
	}

	customer, err := m.customers.FetchCustomer(ctx, orderID)
	if err != nil && !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	payment, err := m.payments.FetchLatestPayment(ctx, orderID)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return nil, err
	}

	return &d.Aggregate{
		Header:   *header,
		Items:    items,
		Customer: customer,
		Payment:  payment,
	}, nil
}

// Save inserts a new aggregate or, when the order id is already stored,
// updates its customer and payment. Header and items are never rewritten.
func (m *Mapper) Save(ctx context.Context, agg *d.Aggregate) error {
	orderID := agg.Header.OrderID
	if strings.TrimSpace(orderID) == "" {
		return ErrBlankOrderID
	}

	exists, err := m.headers.OrderExists(ctx, orderID)
	if err != nil {
		return err
	}
	if exists {
		return m.update(ctx, agg)
	}
	return m.insert(ctx, agg)
}

func (m *Mapper) insert(ctx context.Context, agg *d.Aggregate) error {
	if len(agg.Items) == 0 {
		return ErrNoItems
	}
	if err := checkOwnership(agg); err != nil {
		return err
	}

	if m.tx != nil {
		return m.tx.WithinTx(ctx, func(tx Store) error {
			return NewMapper(tx, tx, tx, tx).insertAll(ctx, agg)
		})
	}
	return m.insertAll(ctx, agg)
}

// insertAll writes the header, every item and the optional customer and
// payment of a new order.
func (m *Mapper) insertAll(ctx context.Context, agg *d.Aggregate) error {
	if _, err := m.headers.InsertHeader(ctx, agg.Header); err != nil {
		return err
	}
	for _, item := range agg.Items {
		if _, err := m.items.InsertItem(ctx, item); err != nil {
			return err
		}
	}
	if agg.Customer != nil {
		if err := m.saveCustomer(ctx, *agg.Customer); err != nil {
			return err
		}
	}
	if agg.Payment != nil {
		if err := m.savePayment(ctx, *agg.Payment); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mapper) update(ctx context.Context, agg *d.Aggregate) error {
	if err := checkOwnership(agg); err != nil {
		return err
	}

	stored, err := m.items.FetchItems(ctx, agg.Header.OrderID)
	if err != nil {
		return err
	}
	if len(stored) != len(agg.Items) {
		return fmt.Errorf("%w: order %s has %d stored items, aggregate carries %d",
			d.ErrItemsImmutable, agg.Header.OrderID, len(stored), len(agg.Items))
	}

	if agg.Customer != nil {
		if err := m.saveCustomer(ctx, *agg.Customer); err != nil {
			return err
		}
	}
	if agg.Payment != nil {
		if err := m.savePayment(ctx, *agg.Payment); err != nil {
			return err
		}
	}
	return nil
}

// saveCustomer inserts the customer unless the same order/email pair is stored.
func (m *Mapper) saveCustomer(ctx context.Context, customer d.Customer) error {
	exists, err := m.customers.CustomerExists(ctx, customer)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = m.customers.InsertCustomer(ctx, customer)
	return err
}

// savePayment updates metadata on an already stored attempt, else inserts it.
func (m *Mapper) savePayment(ctx context.Context, payment d.PaymentAttempt) error {
	exists, err := m.payments.PaymentExists(ctx, payment)
	if err != nil {
		return err
	}
	if exists {
		_, err = m.payments.UpdatePaymentMetadata(ctx, payment)
		return err
	}
	_, err = m.payments.InsertPayment(ctx, payment)
	return err
}

func checkOwnership(agg *d.Aggregate) error {
	orderID := agg.Header.OrderID
	for _, item := range agg.Items {
		if item.OrderID != orderID {
			return fmt.Errorf("%w: item %s belongs to order %q, not %q", d.ErrPreconditionViolation, item.SKU, item.OrderID, orderID)
		}
	}
	if agg.Customer != nil && agg.Customer.OrderID != orderID {
		return fmt.Errorf("%w: customer belongs to order %q, not %q", d.ErrPreconditionViolation, agg.Customer.OrderID, orderID)
	}
	if agg.Payment != nil && agg.Payment.OrderID != orderID {
		return fmt.Errorf("%w: payment belongs to order %q, not %q", d.ErrPreconditionViolation, agg.Payment.OrderID, orderID)
	}
	return nil
}
