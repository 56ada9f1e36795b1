package service

import (
	"github.com/shopspring/decimal"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// StatusEngine derives paid and closed flags and keeps the order amount in
// step with its items.
type StatusEngine struct {
	classifier PaymentClassifier
}

func NewStatusEngine(classifier PaymentClassifier) *StatusEngine {
	return &StatusEngine{classifier: classifier}
}

// RecalculateAmount sets the header amount to the sum of the item line totals.
func (e *StatusEngine) RecalculateAmount(header *d.Header, items []d.LineItem) {
	amount := decimal.Zero
	for _, item := range items {
		amount = amount.Add(item.Total()).Round(d.MoneyPlaces)
	}
	header.Amount = amount
}

// IsOrderPaid requires the latest attempt to be completed and to cover the
// current order amount.
func (e *StatusEngine) IsOrderPaid(header d.Header, latest *d.PaymentAttempt) bool {
	if latest == nil {
		return false
	}
	return e.classifier.IsCompleted(*latest) && latest.Amount.GreaterThanOrEqual(header.Amount)
}

func (e *StatusEngine) IsOrderClosed(latest *d.PaymentAttempt) bool {
	if latest == nil {
		return false
	}
	return e.classifier.IsFailed(*latest) || e.classifier.IsCompleted(*latest)
}

// PutItem appends the item and recalculates the amount. It is the only path
// that changes an order's items.
func (e *StatusEngine) PutItem(header *d.Header, items []d.LineItem, item d.LineItem) []d.LineItem {
	items = append(items, item)
	e.RecalculateAmount(header, items)
	return items
}
