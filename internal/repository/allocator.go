package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

// Allocator hands out order ids that are not yet present in storage.
type Allocator struct {
	headers HeaderStore
	random  io.Reader
}

func NewAllocator(headers HeaderStore) *Allocator {
	return &Allocator{headers: headers, random: rand.Reader}
}

// NewOrderID draws random uppercase hex ids of the given length until one is
// unused. There is no retry limit; it returns a free id or a storage error.
func (a *Allocator) NewOrderID(ctx context.Context, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("%w: order id length must be positive, got %d", d.ErrPreconditionViolation, length)
	}

	for {
		id, err := a.generate(length)
		if err != nil {
			return "", err
		}

		taken, err := a.headers.OrderExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
}

func (a *Allocator) generate(length int) (string, error) {
	// each byte yields two hex characters, so length bytes is always enough
	buf := make([]byte, length)
	if _, err := io.ReadFull(a.random, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf))[:length], nil
}
