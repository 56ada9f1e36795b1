package repository

import (
	"context"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// HeaderStore persists order headers. Headers are written once.
type HeaderStore interface {
	OrderExists(ctx context.Context, orderID string) (bool, error)
	// FetchHeader returns ErrOrderNotFound when no header exists.
	FetchHeader(ctx context.Context, orderID string) (*d.Header, error)
	InsertHeader(ctx context.Context, header d.Header) (string, error)
}

// ItemStore persists line items. Items are written once, in insertion order.
type ItemStore interface {
	FetchItems(ctx context.Context, orderID string) ([]d.LineItem, error)
	InsertItem(ctx context.Context, item d.LineItem) (string, error)
}

type CustomerStore interface {
	// CustomerExists matches on order id and email address.
	CustomerExists(ctx context.Context, customer d.Customer) (bool, error)
	// FetchCustomer returns ErrCustomerNotFound when the order has no customer.
	FetchCustomer(ctx context.Context, orderID string) (*d.Customer, error)
	InsertCustomer(ctx context.Context, customer d.Customer) (string, error)
}

type PaymentStore interface {
	// PaymentExists matches on every field of the attempt except metadata.
	PaymentExists(ctx context.Context, payment d.PaymentAttempt) (bool, error)
	// FetchLatestPayment returns ErrPaymentNotFound when the order has no attempts.
	FetchLatestPayment(ctx context.Context, orderID string) (*d.PaymentAttempt, error)
	InsertPayment(ctx context.Context, payment d.PaymentAttempt) (string, error)
	// UpdatePaymentMetadata rewrites metadata on the matching attempt and
	// returns the number of rows touched.
	UpdatePaymentMetadata(ctx context.Context, payment d.PaymentAttempt) (int64, error)
}

// Transactor is implemented by stores that can apply several writes as one
// unit. The Mapper inserts new orders through it when the store offers it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// Store bundles the four entity ports. Both Repository and MongoRepository
// implement it.
type Store interface {
	HeaderStore
	ItemStore
	CustomerStore
	PaymentStore
	Close() error
}
