package service

import (
	"context"
	"fmt"
	"slices"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// AggregateStore loads and saves whole orders. repository.Mapper implements it.
type AggregateStore interface {
	Exists(ctx context.Context, orderID string) (bool, error)
	Fetch(ctx context.Context, orderID string) (*d.Aggregate, error)
	Save(ctx context.Context, agg *d.Aggregate) error
}

// Order is a working copy of one order aggregate. Items, customer and payment
// change only through its methods, which keep the amount and status in step.
type Order struct {
	agg       d.Aggregate
	engine    *StatusEngine
	store     AggregateStore
	persisted bool
}

func newOrder(agg d.Aggregate, engine *StatusEngine, store AggregateStore, persisted bool) *Order {
	return &Order{agg: cloneAggregate(agg), engine: engine, store: store, persisted: persisted}
}

func (o *Order) ID() string {
	return o.agg.Header.OrderID
}

func (o *Order) Header() d.Header {
	return o.agg.Header
}

func (o *Order) Items() []d.LineItem {
	return slices.Clone(o.agg.Items)
}

func (o *Order) Customer() *d.Customer {
	if o.agg.Customer == nil {
		return nil
	}
	c := *o.agg.Customer
	return &c
}

// Payment returns the latest payment attempt, or nil.
func (o *Order) Payment() *d.PaymentAttempt {
	if o.agg.Payment == nil {
		return nil
	}
	p := *o.agg.Payment
	return &p
}

// Persisted reports whether the order has been saved or was loaded from storage.
func (o *Order) Persisted() bool {
	return o.persisted
}

func (o *Order) IsPaid() bool {
	return o.engine.IsOrderPaid(o.agg.Header, o.agg.Payment)
}

func (o *Order) IsClosed() bool {
	return o.engine.IsOrderClosed(o.agg.Payment)
}

// PutItem appends a line item and recalculates the amount. Items are fixed
// once the order is saved or closed.
func (o *Order) PutItem(item d.LineItem) error {
	if o.persisted {
		return d.ErrItemsImmutable
	}
	if o.IsClosed() {
		return d.ErrOrderClosed
	}
	if err := o.owns("item", item.OrderID); err != nil {
		return err
	}
	o.agg.Items = o.engine.PutItem(&o.agg.Header, o.agg.Items, item)
	return nil
}

func (o *Order) SetCustomer(customer d.Customer) error {
	if err := o.owns("customer", customer.OrderID); err != nil {
		return err
	}
	o.agg.Customer = &customer
	return nil
}

// SetPayment makes payment the latest attempt. Earlier attempts stay stored.
func (o *Order) SetPayment(payment d.PaymentAttempt) error {
	if err := o.owns("payment", payment.OrderID); err != nil {
		return err
	}
	o.agg.Payment = &payment
	return nil
}

func (o *Order) SetDescription(description string) error {
	if o.persisted {
		return d.ErrHeaderImmutable
	}
	o.agg.Header.Description = description
	return nil
}

// Save writes the order through the aggregate store.
func (o *Order) Save(ctx context.Context) error {
	if err := o.store.Save(ctx, &o.agg); err != nil {
		return err
	}
	o.persisted = true
	return nil
}

func (o *Order) owns(kind, orderID string) error {
	if orderID != o.agg.Header.OrderID {
		return fmt.Errorf("%w: %s belongs to order %q, not %q", d.ErrPreconditionViolation, kind, orderID, o.agg.Header.OrderID)
	}
	return nil
}

func cloneAggregate(agg d.Aggregate) d.Aggregate {
	out := d.Aggregate{
		Header: agg.Header,
		Items:  slices.Clone(agg.Items),
	}
	if agg.Customer != nil {
		c := *agg.Customer
		out.Customer = &c
	}
	if agg.Payment != nil {
		p := *agg.Payment
		out.Payment = &p
	}
	return out
}
