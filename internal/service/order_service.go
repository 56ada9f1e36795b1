package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fjod/go_cart/store-order/internal/cache"
	d "github.com/fjod/go_cart/store-order/internal/domain"
	"github.com/fjod/go_cart/store-order/internal/observability"
	"github.com/fjod/go_cart/store-order/internal/publisher"
)

const cacheWriteTimeout = time.Second

var tracer = otel.Tracer("github.com/fjod/go_cart/store-order/internal/service")

type IDAllocator interface {
	NewOrderID(ctx context.Context, length int) (string, error)
}

type ItemInput struct {
	SKU      string
	Name     string
	Quantity int
	Price    decimal.Decimal
}

type PaymentInput struct {
	ReferenceID string
	Processor   string
	Amount      decimal.Decimal
	Action      string
	Successful  bool
	Metadata    string
}

type CreateOrderInput struct {
	IPAddress   string
	Description string
	Items       []ItemInput
	Customer    *d.Customer
}

type OrderService struct {
	store     AggregateStore
	allocator IDAllocator
	engine    *StatusEngine
	cache     cache.OrderCache
	events    publisher.Publisher
	logger    *zap.Logger
	clock     d.Clock
	currency  string
	idLength  int
	sfg       singleflight.Group // collapses concurrent fetches of one order
}

type Option func(*OrderService)

func WithClock(clock d.Clock) Option {
	return func(s *OrderService) {
		s.clock = clock
	}
}

func WithCurrency(currency string) Option {
	return func(s *OrderService) {
		s.currency = currency
	}
}

func WithIDLength(length int) Option {
	return func(s *OrderService) {
		s.idLength = length
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *OrderService) {
		s.logger = logger
	}
}

// NewOrderService wires the order workflow. A nil cache or publisher turns
// that concern off.
func NewOrderService(
	store AggregateStore,
	allocator IDAllocator,
	engine *StatusEngine,
	orderCache cache.OrderCache,
	events publisher.Publisher,
	opts ...Option) *OrderService {

	s := &OrderService{
		store:     store,
		allocator: allocator,
		engine:    engine,
		cache:     orderCache,
		events:    events,
		logger:    zap.NewNop(),
		clock:     d.SystemClock,
		currency:  d.DefaultCurrency,
		idLength:  d.DefaultOrderIDLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NopCache{}
	}
	if s.events == nil {
		s.events = publisher.NopPublisher{}
	}
	return s
}

// NewOrder starts an unsaved order with a fresh id and a zero amount.
func (s *OrderService) NewOrder(ctx context.Context, ipAddress string) (*Order, error) {
	orderID, err := s.allocator.NewOrderID(ctx, s.idLength)
	if err != nil {
		return nil, err
	}
	header := d.NewHeader(orderID, s.clock(), s.currency, ipAddress)
	return newOrder(d.Aggregate{Header: header}, s.engine, s.store, false), nil
}

func (s *OrderService) NewItem(orderID, sku, name string, quantity int, price decimal.Decimal) (d.LineItem, error) {
	return d.NewLineItem(orderID, sku, name, quantity, price)
}

func (s *OrderService) NewCustomer(orderID string, customer d.Customer) (d.Customer, error) {
	customer.OrderID = orderID
	return d.NewCustomer(customer)
}

// NewPayment stamps the attempt with the service clock.
func (s *OrderService) NewPayment(orderID string, in PaymentInput) (d.PaymentAttempt, error) {
	return d.NewPaymentAttempt(s.clock(), orderID, in.ReferenceID, in.Processor, in.Amount,
		in.Action, in.Successful, in.Metadata)
}

// CreateOrder builds a new order from in and saves it.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (_ *Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer func() { endSpan(span, err) }()

	order, err := s.NewOrder(ctx, in.IPAddress)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", order.ID()))

	if err := order.SetDescription(in.Description); err != nil {
		return nil, err
	}
	for _, it := range in.Items {
		item, err := s.NewItem(order.ID(), it.SKU, it.Name, it.Quantity, it.Price)
		if err != nil {
			return nil, err
		}
		if err := order.PutItem(item); err != nil {
			return nil, err
		}
	}
	if in.Customer != nil {
		customer, err := s.NewCustomer(order.ID(), *in.Customer)
		if err != nil {
			return nil, err
		}
		if err := order.SetCustomer(customer); err != nil {
			return nil, err
		}
	}

	if err := s.save(ctx, order, publisher.EventOrderCreated); err != nil {
		return nil, err
	}
	return order, nil
}

// FetchOrder loads an order through the cache. On a miss the cache version is
// read before the store, so a write that commits in between makes the cache
// refuse the older aggregate.
func (s *OrderService) FetchOrder(ctx context.Context, orderID string) (_ *Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.FetchOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	v, err, _ := s.sfg.Do(orderID, func() (interface{}, error) {
		agg, err := s.cache.Get(ctx, orderID)
		if err == nil {
			return agg, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			observability.WithTrace(ctx, s.logger).Warn("cache get failed",
				zap.String("order_id", orderID), zap.Error(err))
		}

		version, verr := s.cache.Version(ctx, orderID)
		if verr != nil {
			observability.WithTrace(ctx, s.logger).Warn("cache version read failed",
				zap.String("order_id", orderID), zap.Error(verr))
		}

		agg, err = s.store.Fetch(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if verr != nil {
			return agg, nil
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
		defer cancel()
		switch err := s.cache.Set(setCtx, agg, version); {
		case errors.Is(err, cache.ErrStaleEntry):
			observability.WithTrace(ctx, s.logger).Debug("order changed during fetch, not cached",
				zap.String("order_id", orderID))
		case err != nil:
			observability.WithTrace(ctx, s.logger).Warn("cache set failed",
				zap.String("order_id", orderID), zap.Error(err))
		}
		return agg, nil
	})
	if err != nil {
		return nil, err
	}

	return newOrder(*v.(*d.Aggregate), s.engine, s.store, true), nil
}

// RecordPayment stores a new latest payment attempt for the order.
func (s *OrderService) RecordPayment(ctx context.Context, orderID string, in PaymentInput) (_ *Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.RecordPayment",
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("payment.action", in.Action)))
	defer func() { endSpan(span, err) }()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payment, err := s.NewPayment(orderID, in)
	if err != nil {
		return nil, err
	}
	if err := order.SetPayment(payment); err != nil {
		return nil, err
	}

	if err := s.save(ctx, order, publisher.EventPaymentRecorded); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder records a system cancel attempt. Paid orders cannot be cancelled.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (_ *Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder",
		trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid() {
		return nil, d.ErrOrderPaid
	}

	payment, err := s.NewPayment(orderID, PaymentInput{
		ReferenceID: "system",
		Processor:   "system",
		Amount:      decimal.Zero,
		Action:      "cancel",
		Successful:  true,
	})
	if err != nil {
		return nil, err
	}
	if err := order.SetPayment(payment); err != nil {
		return nil, err
	}

	if err := s.save(ctx, order, publisher.EventOrderCancelled); err != nil {
		return nil, err
	}
	return order, nil
}

// load reads the order from storage, bypassing the cache, for a write.
func (s *OrderService) load(ctx context.Context, orderID string) (*Order, error) {
	agg, err := s.store.Fetch(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return newOrder(*agg, s.engine, s.store, true), nil
}

func (s *OrderService) save(ctx context.Context, order *Order, eventType string) error {
	logger := observability.WithTrace(ctx, s.logger).With(zap.String("order_id", order.ID()))

	if err := order.Save(ctx); err != nil {
		logger.Error("order save failed", zap.Error(err))
		return err
	}
	s.invalidateCache(ctx, order.ID(), logger)

	header := order.Header()
	event := publisher.NewEvent(eventType, order.ID(), header.Amount, header.Currency,
		order.IsPaid(), order.IsClosed(), s.clock())
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Warn("order event publish failed", zap.String("event_type", eventType), zap.Error(err))
	}

	logger.Info("order saved",
		zap.String("event_type", eventType),
		zap.String("amount", header.Amount.StringFixed(d.MoneyPlaces)),
		zap.Bool("paid", order.IsPaid()),
		zap.Bool("closed", order.IsClosed()))
	return nil
}

func (s *OrderService) invalidateCache(ctx context.Context, orderID string, logger *zap.Logger) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheWriteTimeout)
	defer cancel()
	if err := s.cache.Delete(delCtx, orderID); err != nil {
		logger.Warn("cache invalidate failed", zap.Error(err))
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
