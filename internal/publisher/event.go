package publisher

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated    = "order.created"
	EventPaymentRecorded = "order.payment_recorded"
	EventOrderCancelled  = "order.cancelled"
)

// Event is the status notification published after an order is saved.
type Event struct {
	EventID    string          `json:"event_id"`
	OrderID    string          `json:"order_id"`
	Type       string          `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Paid       bool            `json:"paid"`
	Closed     bool            `json:"closed"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEvent(eventType, orderID string, amount decimal.Decimal, currency string, paid, closed bool, at time.Time) Event {
	return Event{
		EventID:    uuid.NewString(),
		OrderID:    orderID,
		Type:       eventType,
		Amount:     amount,
		Currency:   currency,
		Paid:       paid,
		Closed:     closed,
		OccurredAt: at,
	}
}
