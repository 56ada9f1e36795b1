package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

func (r *Repository) OrderExists(ctx context.Context, orderID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM store_order WHERE order_id = $1)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, orderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check order exists: %w", err)
	}
	return exists, nil
}

func (r *Repository) FetchHeader(ctx context.Context, orderID string) (*d.Header, error) {
	query := `SELECT order_id, created, amount, currency, description, ip_address
	          FROM store_order WHERE order_id = $1`

	var h d.Header
	var description sql.NullString
	err := r.q.QueryRowContext(ctx, query, orderID).Scan(
		&h.OrderID,
		&h.Created,
		&h.Amount,
		&h.Currency,
		&description,
		&h.IPAddress,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order header: %w", err)
	}

	h.Created = h.Created.UTC()
	h.Description = description.String
	return &h, nil
}

func (r *Repository) InsertHeader(ctx context.Context, h d.Header) (string, error) {
	query := `INSERT INTO store_order (order_id, created, amount, currency, description, ip_address)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	var id int64
	err := r.q.QueryRowContext(ctx, query,
		h.OrderID,
		h.Created.UTC(),
		h.Amount.StringFixed(d.MoneyPlaces),
		h.Currency,
		nullableString(h.Description),
		h.IPAddress,
	).Scan(&id)
	if err != nil {
		if r.isUniqueViolation(err) {
			return "", ErrDuplicateOrder
		}
		return "", fmt.Errorf("insert order header: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) FetchItems(ctx context.Context, orderID string) ([]d.LineItem, error) {
	query := `SELECT order_id, sku, name, quantity, price
	          FROM store_order_item WHERE order_id = $1 ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []d.LineItem
	for rows.Next() {
		var item d.LineItem
		if err := rows.Scan(
			&item.OrderID,
			&item.SKU,
			&item.Name,
			&item.Quantity,
			&item.Price,
		); err != nil {
			return nil, fmt.Errorf("scan order item row: %w", err)
		}
		if item.SKU == "" {
			return nil, ErrEmptyItem
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if len(items) == 0 {
		return nil, ErrItemsNotFound
	}
	return items, nil
}

func (r *Repository) InsertItem(ctx context.Context, item d.LineItem) (string, error) {
	query := `INSERT INTO store_order_item (order_id, sku, name, quantity, price)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`

	var id int64
	err := r.q.QueryRowContext(ctx, query,
		item.OrderID,
		item.SKU,
		item.Name,
		item.Quantity,
		item.Price.StringFixed(d.MoneyPlaces),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert order item: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) CustomerExists(ctx context.Context, c d.Customer) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM store_order_customer WHERE order_id = $1 AND email_address = $2)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, c.OrderID, c.EmailAddress).Scan(&exists); err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return exists, nil
}

// FetchCustomer returns the most recently stored customer for the order.
func (r *Repository) FetchCustomer(ctx context.Context, orderID string) (*d.Customer, error) {
	query := `SELECT order_id, first_name, last_name, email_address, address_1, address_2,
	                 city, state, postcode, country, phone_number
	          FROM store_order_customer WHERE order_id = $1
	          ORDER BY id DESC LIMIT 1`

	var c d.Customer
	var address2, phone sql.NullString
	err := r.q.QueryRowContext(ctx, query, orderID).Scan(
		&c.OrderID,
		&c.FirstName,
		&c.LastName,
		&c.EmailAddress,
		&c.Address1,
		&address2,
		&c.City,
		&c.State,
		&c.Postcode,
		&c.Country,
		&phone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order customer: %w", err)
	}

	c.Address2 = address2.String
	c.PhoneNumber = phone.String
	return &c, nil
}

func (r *Repository) InsertCustomer(ctx context.Context, c d.Customer) (string, error) {
	query := `INSERT INTO store_order_customer (order_id, first_name, last_name, email_address, address_1,
	                                            address_2, city, state, postcode, country, phone_number)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`

	var id int64
	err := r.q.QueryRowContext(ctx, query,
		c.OrderID,
		c.FirstName,
		c.LastName,
		c.EmailAddress,
		c.Address1,
		nullableString(c.Address2),
		c.City,
		c.State,
		c.Postcode,
		c.Country,
		nullableString(c.PhoneNumber),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert order customer: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// paymentMatch is the WHERE clause identifying one payment attempt.
const paymentMatch = `created = $1 AND order_id = $2 AND reference_id = $3 AND processor = $4
	          AND amount = $5 AND action = $6 AND successful = $7`

func paymentMatchArgs(p d.PaymentAttempt) []any {
	return []any{
		p.Created.UTC(),
		p.OrderID,
		p.ReferenceID,
		p.Processor,
		p.Amount.StringFixed(d.MoneyPlaces),
		p.Action,
		p.Successful,
	}
}

func (r *Repository) PaymentExists(ctx context.Context, p d.PaymentAttempt) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM store_order_payment WHERE ` + paymentMatch + `)`

	var exists bool
	if err := r.q.QueryRowContext(ctx, query, paymentMatchArgs(p)...).Scan(&exists); err != nil {
		return false, fmt.Errorf("check payment exists: %w", err)
	}
	return exists, nil
}

// FetchLatestPayment returns the attempt with the newest creation time.
func (r *Repository) FetchLatestPayment(ctx context.Context, orderID string) (*d.PaymentAttempt, error) {
	query := `SELECT created, order_id, reference_id, processor, amount, action, successful, metadata
	          FROM store_order_payment WHERE order_id = $1
	          ORDER BY created DESC, id DESC LIMIT 1`

	var p d.PaymentAttempt
	var metadata sql.NullString
	err := r.q.QueryRowContext(ctx, query, orderID).Scan(
		&p.Created,
		&p.OrderID,
		&p.ReferenceID,
		&p.Processor,
		&p.Amount,
		&p.Action,
		&p.Successful,
		&metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest payment: %w", err)
	}

	p.Created = p.Created.UTC()
	p.Metadata = metadata.String
	return &p, nil
}

func (r *Repository) InsertPayment(ctx context.Context, p d.PaymentAttempt) (string, error) {
	query := `INSERT INTO store_order_payment (created, order_id, reference_id, processor, amount,
	                                           action, successful, metadata)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`

	args := append(paymentMatchArgs(p), nullableString(p.Metadata))

	var id int64
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("insert order payment: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *Repository) UpdatePaymentMetadata(ctx context.Context, p d.PaymentAttempt) (int64, error) {
	query := `UPDATE store_order_payment SET metadata = $8 WHERE ` + paymentMatch

	args := append(paymentMatchArgs(p), nullableString(p.Metadata))

	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update payment metadata: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("payment rows affected: %w", err)
	}
	return affected, nil
}
