package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// rowCounter reports how many records of one entity kind exist for an order.
type rowCounter func(t *testing.T, kind, orderID string) int

// runStoreSuite exercises the Mapper against a concrete Store. Every backend
// test calls it with a fresh, migrated store.
func runStoreSuite(t *testing.T, store Store, count rowCounter) {
	ctx := context.Background()
	mapper := NewStoreMapper(store)

	t.Run("round trip", func(t *testing.T) {
		agg := newTestAggregate("ROUNDTRIP0001")
		require.NoError(t, mapper.Save(ctx, agg))

		exists, err := mapper.Exists(ctx, "ROUNDTRIP0001")
		require.NoError(t, err)
		assert.True(t, exists)

		got, err := mapper.Fetch(ctx, "ROUNDTRIP0001")
		require.NoError(t, err)
		assertAggregateEqual(t, agg, got)
	})

	t.Run("saving twice writes nothing new", func(t *testing.T) {
		agg := newTestAggregate("TWICE00000001")
		require.NoError(t, mapper.Save(ctx, agg))
		require.NoError(t, mapper.Save(ctx, agg))

		assert.Equal(t, 1, count(t, headerCollection, "TWICE00000001"))
		assert.Equal(t, 2, count(t, itemCollection, "TWICE00000001"))
		assert.Equal(t, 1, count(t, customerCollection, "TWICE00000001"))
		assert.Equal(t, 1, count(t, paymentCollection, "TWICE00000001"))
	})

	t.Run("fetched aggregate saves without changes", func(t *testing.T) {
		require.NoError(t, mapper.Save(ctx, newTestAggregate("REFETCH000001")))

		got, err := mapper.Fetch(ctx, "REFETCH000001")
		require.NoError(t, err)
		require.NoError(t, mapper.Save(ctx, got))

		assert.Equal(t, 1, count(t, paymentCollection, "REFETCH000001"))
		assert.Equal(t, 1, count(t, customerCollection, "REFETCH000001"))
	})

	t.Run("same attempt with new metadata updates in place", func(t *testing.T) {
		agg := newTestAggregate("METADATA00001")
		require.NoError(t, mapper.Save(ctx, agg))

		agg.Payment.Metadata = "settled by batch 42"
		require.NoError(t, mapper.Save(ctx, agg))

		got, err := mapper.Fetch(ctx, "METADATA00001")
		require.NoError(t, err)
		assert.Equal(t, "settled by batch 42", got.Payment.Metadata)
		assert.Equal(t, 1, count(t, paymentCollection, "METADATA00001"))
	})

	t.Run("later attempt becomes the latest payment", func(t *testing.T) {
		agg := newTestAggregate("LATEST0000001")
		require.NoError(t, mapper.Save(ctx, agg))

		refund, err := d.NewPaymentAttempt(agg.Payment.Created.Add(time.Hour), "LATEST0000001", "r-2", "test",
			decimal.RequireFromString("250.00"), "refund", true, "")
		require.NoError(t, err)
		agg.Payment = &refund
		require.NoError(t, mapper.Save(ctx, agg))

		got, err := mapper.Fetch(ctx, "LATEST0000001")
		require.NoError(t, err)
		assert.Equal(t, "refund", got.Payment.Action)
		assert.Equal(t, "r-2", got.Payment.ReferenceID)
		assert.Equal(t, 2, count(t, paymentCollection, "LATEST0000001"))
	})

	t.Run("new customer email is appended and wins", func(t *testing.T) {
		agg := newTestAggregate("CUSTOMER00001")
		require.NoError(t, mapper.Save(ctx, agg))

		changed := *agg.Customer
		changed.EmailAddress = "jim.doe@fake.com"
		agg.Customer = &changed
		require.NoError(t, mapper.Save(ctx, agg))

		got, err := mapper.Fetch(ctx, "CUSTOMER00001")
		require.NoError(t, err)
		assert.Equal(t, "jim.doe@fake.com", got.Customer.EmailAddress)
		assert.Equal(t, 2, count(t, customerCollection, "CUSTOMER00001"))
	})

	t.Run("customer and payment are optional", func(t *testing.T) {
		agg := newTestAggregate("BARE000000001")
		agg.Customer = nil
		agg.Payment = nil
		require.NoError(t, mapper.Save(ctx, agg))

		got, err := mapper.Fetch(ctx, "BARE000000001")
		require.NoError(t, err)
		assert.Nil(t, got.Customer)
		assert.Nil(t, got.Payment)
		assert.Len(t, got.Items, 2)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		exists, err := mapper.Exists(ctx, "DOESNOTEXIST1")
		require.NoError(t, err)
		assert.False(t, exists)

		_, err = mapper.Fetch(ctx, "DOESNOTEXIST1")
		assert.ErrorIs(t, err, ErrOrderNotFound)
		assert.ErrorIs(t, err, d.ErrNotFound)
	})

	t.Run("header without items is not found", func(t *testing.T) {
		header := d.NewHeader("NOITEMS000001", testCreated, "", "10.0.0.1")
		_, err := store.InsertHeader(ctx, header)
		require.NoError(t, err)

		_, err = mapper.Fetch(ctx, "NOITEMS000001")
		assert.ErrorIs(t, err, ErrItemsNotFound)
		assert.ErrorIs(t, err, d.ErrNotFound)
	})

	t.Run("items cannot be added after save", func(t *testing.T) {
		agg := newTestAggregate("IMMUTABLE0001")
		require.NoError(t, mapper.Save(ctx, agg))

		extra, err := d.NewLineItem("IMMUTABLE0001", "item3", "Late Item", 1, decimal.RequireFromString("1.00"))
		require.NoError(t, err)
		agg.Items = append(agg.Items, extra)

		err = mapper.Save(ctx, agg)
		assert.ErrorIs(t, err, d.ErrItemsImmutable)
		assert.Equal(t, 2, count(t, itemCollection, "IMMUTABLE0001"))
	})

	t.Run("blank order id is rejected", func(t *testing.T) {
		agg := newTestAggregate("")
		err := mapper.Save(ctx, agg)
		assert.ErrorIs(t, err, ErrBlankOrderID)
		assert.ErrorIs(t, err, d.ErrPreconditionViolation)
	})

	t.Run("order without items is rejected", func(t *testing.T) {
		agg := newTestAggregate("EMPTY00000001")
		agg.Items = nil

		err := mapper.Save(ctx, agg)
		assert.ErrorIs(t, err, ErrNoItems)

		exists, err := mapper.Exists(ctx, "EMPTY00000001")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("duplicate header insert", func(t *testing.T) {
		header := d.NewHeader("DUPLICATE0001", testCreated, "USD", "10.0.0.1")
		_, err := store.InsertHeader(ctx, header)
		require.NoError(t, err)

		_, err = store.InsertHeader(ctx, header)
		assert.ErrorIs(t, err, ErrDuplicateOrder)
	})

	t.Run("allocator skips stored ids", func(t *testing.T) {
		require.NoError(t, mapper.Save(ctx, newTestAggregate("0000000000000")))

		alloc := NewAllocator(store)
		alloc.random = &zeroThenRandom{zeros: 13}

		id, err := alloc.NewOrderID(ctx, 13)
		require.NoError(t, err)
		assert.NotEqual(t, "0000000000000", id)
		assert.Regexp(t, orderIDPattern, id)
	})
}

// zeroThenRandom yields zero bytes first, then a fixed non-zero pattern.
type zeroThenRandom struct {
	zeros int
}

func (z *zeroThenRandom) Read(p []byte) (int, error) {
	for i := range p {
		if z.zeros > 0 {
			p[i] = 0
			z.zeros--
			continue
		}
		p[i] = 0x5C
	}
	return len(p), nil
}

func assertAggregateEqual(t *testing.T, want, got *d.Aggregate) {
	t.Helper()

	assert.Equal(t, want.Header.OrderID, got.Header.OrderID)
	assert.True(t, want.Header.Created.Equal(got.Header.Created), "created %v != %v", want.Header.Created, got.Header.Created)
	assert.Equal(t, want.Header.Amount.StringFixed(2), got.Header.Amount.StringFixed(2))
	assert.Equal(t, want.Header.Currency, got.Header.Currency)
	assert.Equal(t, want.Header.Description, got.Header.Description)
	assert.Equal(t, want.Header.IPAddress, got.Header.IPAddress)

	require.Len(t, got.Items, len(want.Items))
	for i := range want.Items {
		assert.Equal(t, want.Items[i].SKU, got.Items[i].SKU)
		assert.Equal(t, want.Items[i].Name, got.Items[i].Name)
		assert.Equal(t, want.Items[i].Quantity, got.Items[i].Quantity)
		assert.Equal(t, want.Items[i].Price.StringFixed(2), got.Items[i].Price.StringFixed(2))
	}

	if want.Customer == nil {
		assert.Nil(t, got.Customer)
	} else {
		require.NotNil(t, got.Customer)
		assert.Equal(t, *want.Customer, *got.Customer)
	}

	if want.Payment == nil {
		assert.Nil(t, got.Payment)
		return
	}
	require.NotNil(t, got.Payment)
	assert.True(t, want.Payment.Created.Equal(got.Payment.Created))
	assert.Equal(t, want.Payment.ReferenceID, got.Payment.ReferenceID)
	assert.Equal(t, want.Payment.Processor, got.Payment.Processor)
	assert.Equal(t, want.Payment.Amount.StringFixed(2), got.Payment.Amount.StringFixed(2))
	assert.Equal(t, want.Payment.Action, got.Payment.Action)
	assert.Equal(t, want.Payment.Successful, got.Payment.Successful)
	assert.Equal(t, want.Payment.Metadata, got.Payment.Metadata)
}
