package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultOrderIDLength is the identifier length used when none is configured.
	DefaultOrderIDLength = 13
	DefaultCurrency      = "USD"

	// MoneyPlaces is the scale kept on every monetary amount.
	MoneyPlaces = 2
)

var skuPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Header struct {
	OrderID     string          `json:"order_id"`
	Created     time.Time       `json:"created"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	IPAddress   string          `json:"ip_address"`
}

type LineItem struct {
	OrderID  string          `json:"order_id"`
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Total is the line total, price times quantity at money scale.
func (i LineItem) Total() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(MoneyPlaces)
}

type Customer struct {
	OrderID      string `json:"order_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	EmailAddress string `json:"email_address"`
	Address1     string `json:"address_1"`
	Address2     string `json:"address_2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Postcode     string `json:"postcode"`
	Country      string `json:"country"`
	PhoneNumber  string `json:"phone_number,omitempty"`
}

// PaymentAttempt is one recorded payment action against an order.
type PaymentAttempt struct {
	Created     time.Time       `json:"created"`
	OrderID     string          `json:"order_id"`
	ReferenceID string          `json:"reference_id"`
	Processor   string          `json:"processor"`
	Amount      decimal.Decimal `json:"amount"`
	Action      string          `json:"action"`
	Successful  bool            `json:"successful"`
	Metadata    string          `json:"metadata,omitempty"`
}

// Aggregate is the unit the mapper persists: one header, its items, and at
// most one customer and one (latest) payment attempt.
type Aggregate struct {
	Header   Header          `json:"header"`
	Items    []LineItem      `json:"items"`
	Customer *Customer       `json:"customer,omitempty"`
	Payment  *PaymentAttempt `json:"payment,omitempty"`
}

func NewHeader(orderID string, created time.Time, currency, ipAddress string) Header {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Header{
		OrderID:   orderID,
		Created:   created,
		Amount:    decimal.Zero,
		Currency:  currency,
		IPAddress: ipAddress,
	}
}

func NewLineItem(orderID, sku, name string, quantity int, price decimal.Decimal) (LineItem, error) {
	if !skuPattern.MatchString(sku) {
		return LineItem{}, fmt.Errorf("%w: invalid sku %q", ErrPreconditionViolation, sku)
	}
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive, got %d", ErrPreconditionViolation, quantity)
	}
	if price.IsNegative() {
		return LineItem{}, fmt.Errorf("%w: price must not be negative, got %s", ErrPreconditionViolation, price)
	}
	return LineItem{
		OrderID:  orderID,
		SKU:      sku,
		Name:     name,
		Quantity: quantity,
		Price:    price.Round(MoneyPlaces),
	}, nil
}

func NewCustomer(c Customer) (Customer, error) {
	c.EmailAddress = strings.TrimSpace(c.EmailAddress)
	if c.EmailAddress == "" {
		return Customer{}, fmt.Errorf("%w: customer email is required", ErrPreconditionViolation)
	}
	return c, nil
}

func NewPaymentAttempt(created time.Time, orderID, referenceID, processor string, amount decimal.Decimal,
	action string, successful bool, metadata string) (PaymentAttempt, error) {
	if strings.TrimSpace(action) == "" {
		return PaymentAttempt{}, fmt.Errorf("%w: payment action is required", ErrPreconditionViolation)
	}
	if amount.IsNegative() {
		return PaymentAttempt{}, fmt.Errorf("%w: payment amount must not be negative, got %s", ErrPreconditionViolation, amount)
	}
	return PaymentAttempt{
		Created:     created,
		OrderID:     orderID,
		ReferenceID: referenceID,
		Processor:   processor,
		Amount:      amount.Round(MoneyPlaces),
		Action:      action,
		Successful:  successful,
		Metadata:    metadata,
	}, nil
}
