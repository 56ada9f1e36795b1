package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrPreconditionViolation = errors.New("precondition violation")
	ErrOrderClosed           = errors.New("order is closed for modification")
	ErrItemsImmutable        = errors.New("order items cannot change after the order is saved")
	ErrHeaderImmutable       = errors.New("order header cannot change after the order is saved")
	ErrOrderPaid             = errors.New("order is already paid")
)
