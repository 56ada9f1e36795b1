package service

import d "github.com/fjod/go_cart/store-order/internal/domain"

// PaymentClassifier buckets payment attempts using the configured taxonomy.
type PaymentClassifier struct {
	actions d.ActionTaxonomy
}

func NewPaymentClassifier(actions d.ActionTaxonomy) PaymentClassifier {
	return PaymentClassifier{actions: actions}
}

// IsFailed reports a successful attempt whose action is a fail action.
// An unsuccessful attempt is never failed, whatever its action.
func (c PaymentClassifier) IsFailed(p d.PaymentAttempt) bool {
	return p.Successful && c.actions.IsFailAction(p.Action)
}

func (c PaymentClassifier) IsCompleted(p d.PaymentAttempt) bool {
	return p.Successful && c.actions.IsCompleteAction(p.Action)
}

// IsPending is the complement of failed and completed.
func (c PaymentClassifier) IsPending(p d.PaymentAttempt) bool {
	return !c.IsFailed(p) && !c.IsCompleted(p)
}
