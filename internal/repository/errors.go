package repository

import (
	"errors"
	"fmt"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

var (
	ErrOrderNotFound    = fmt.Errorf("order %w", d.ErrNotFound)
	ErrItemsNotFound    = fmt.Errorf("order items %w", d.ErrNotFound)
	ErrCustomerNotFound = fmt.Errorf("order customer %w", d.ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("order payment %w", d.ErrNotFound)
	ErrEmptyItem        = fmt.Errorf("stored order item without sku: %w", d.ErrNotFound)

	ErrBlankOrderID = fmt.Errorf("%w: order id is blank", d.ErrPreconditionViolation)
	ErrNoItems      = fmt.Errorf("%w: order has no items", d.ErrPreconditionViolation)

	ErrDuplicateOrder = errors.New("order with this id already exists")
)
