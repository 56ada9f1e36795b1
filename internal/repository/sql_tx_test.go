package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// runTransactionSuite covers the SQL-only guarantee that a new order is
// written completely or not at all.
func runTransactionSuite(t *testing.T, repo *Repository, count rowCounter) {
	ctx := context.Background()
	mapper := NewStoreMapper(repo)

	t.Run("failed item insert leaves no header behind", func(t *testing.T) {
		agg := newTestAggregate("PARTIAL000001")
		// zero quantity violates the item CHECK constraint after the first
		// item has been written
		agg.Items = append(agg.Items, d.LineItem{
			OrderID:  "PARTIAL000001",
			SKU:      "item3",
			Name:     "Broken Item",
			Quantity: 0,
			Price:    decimal.RequireFromString("1.00"),
		})

		err := mapper.Save(ctx, agg)
		require.Error(t, err)

		exists, err := mapper.Exists(ctx, "PARTIAL000001")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Zero(t, count(t, itemCollection, "PARTIAL000001"))
		assert.Zero(t, count(t, customerCollection, "PARTIAL000001"))

		agg.Items = agg.Items[:2]
		require.NoError(t, mapper.Save(ctx, agg))
		got, err := mapper.Fetch(ctx, "PARTIAL000001")
		require.NoError(t, err)
		assertAggregateEqual(t, agg, got)
	})

	t.Run("callback error rolls back", func(t *testing.T) {
		cbErr := errors.New("abort")
		err := repo.WithinTx(ctx, func(tx Store) error {
			_, err := tx.InsertHeader(ctx, d.NewHeader("ROLLBACK00001", testCreated, "USD", "10.0.0.1"))
			require.NoError(t, err)
			return cbErr
		})
		assert.ErrorIs(t, err, cbErr)

		exists, err := repo.OrderExists(ctx, "ROLLBACK00001")
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("commit makes writes visible", func(t *testing.T) {
		err := repo.WithinTx(ctx, func(tx Store) error {
			_, err := tx.InsertHeader(ctx, d.NewHeader("COMMIT0000001", testCreated, "USD", "10.0.0.1"))
			return err
		})
		require.NoError(t, err)

		exists, err := repo.OrderExists(ctx, "COMMIT0000001")
		require.NoError(t, err)
		assert.True(t, exists)
	})
}
