package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	d "github.com/fjod/go_cart/store-order/internal/domain"
)

const (
	headerCollection   = "store_order"
	itemCollection     = "store_order_item"
	customerCollection = "store_order_customer"
	paymentCollection  = "store_order_payment"
)

// Amounts are stored as fixed two-place strings so equality filters match
// exactly what was written.
type headerDocument struct {
	OrderID     string    `bson:"order_id"`
	Created     time.Time `bson:"created"`
	Amount      string    `bson:"amount"`
	Currency    string    `bson:"currency"`
	Description string    `bson:"description,omitempty"`
	IPAddress   string    `bson:"ip_address"`
}

type itemDocument struct {
	OrderID  string `bson:"order_id"`
	SKU      string `bson:"sku"`
	Name     string `bson:"name"`
	Quantity int    `bson:"quantity"`
	Price    string `bson:"price"`
}

type customerDocument struct {
	OrderID      string `bson:"order_id"`
	FirstName    string `bson:"first_name"`
	LastName     string `bson:"last_name"`
	EmailAddress string `bson:"email_address"`
	Address1     string `bson:"address_1"`
	Address2     string `bson:"address_2,omitempty"`
	City         string `bson:"city"`
	State        string `bson:"state"`
	Postcode     string `bson:"postcode"`
	Country      string `bson:"country"`
	PhoneNumber  string `bson:"phone_number,omitempty"`
}

type paymentDocument struct {
	Created     time.Time `bson:"created"`
	OrderID     string    `bson:"order_id"`
	ReferenceID string    `bson:"reference_id"`
	Processor   string    `bson:"processor"`
	Amount      string    `bson:"amount"`
	Action      string    `bson:"action"`
	Successful  bool      `bson:"successful"`
	Metadata    string    `bson:"metadata,omitempty"`
}

// MongoRepository implements Store with one collection per entity kind.
type MongoRepository struct {
	db        *mongo.Database
	headers   *mongo.Collection
	items     *mongo.Collection
	customers *mongo.Collection
	payments  *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		db:        db,
		headers:   db.Collection(headerCollection),
		items:     db.Collection(itemCollection),
		customers: db.Collection(customerCollection),
		payments:  db.Collection(paymentCollection),
	}
}

// CreateIndexes adds the unique order id index and the lookup indexes.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	if _, err := m.headers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create order index: %w", err)
	}
	if _, err := m.items.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create item index: %w", err)
	}
	if _, err := m.customers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "email_address", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create customer index: %w", err)
	}
	if _, err := m.payments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "created", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create payment index: %w", err)
	}
	return nil
}

func (m *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.db.Client().Disconnect(ctx)
}

func (m *MongoRepository) OrderExists(ctx context.Context, orderID string) (bool, error) {
	n, err := m.headers.CountDocuments(ctx, bson.M{"order_id": orderID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check order exists: %w", err)
	}
	return n > 0, nil
}

func (m *MongoRepository) FetchHeader(ctx context.Context, orderID string) (*d.Header, error) {
	var doc headerDocument
	err := m.headers.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order header: %w", err)
	}

	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order amount %q: %w", doc.Amount, err)
	}
	return &d.Header{
		OrderID:     doc.OrderID,
		Created:     doc.Created.UTC(),
		Amount:      amount,
		Currency:    doc.Currency,
		Description: doc.Description,
		IPAddress:   doc.IPAddress,
	}, nil
}

func (m *MongoRepository) InsertHeader(ctx context.Context, h d.Header) (string, error) {
	res, err := m.headers.InsertOne(ctx, headerDocument{
		OrderID:     h.OrderID,
		Created:     h.Created.UTC(),
		Amount:      h.Amount.StringFixed(d.MoneyPlaces),
		Currency:    h.Currency,
		Description: h.Description,
		IPAddress:   h.IPAddress,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateOrder
		}
		return "", fmt.Errorf("failed to insert order header: %w", err)
	}
	return insertedID(res), nil
}

func (m *MongoRepository) FetchItems(ctx context.Context, orderID string) ([]d.LineItem, error) {
	cursor, err := m.items.Find(ctx, bson.M{"order_id": orderID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find order items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []d.LineItem
	for cursor.Next(ctx) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order item: %w", err)
		}
		if doc.SKU == "" {
			return nil, ErrEmptyItem
		}
		price, err := decimal.NewFromString(doc.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to parse item price %q: %w", doc.Price, err)
		}
		items = append(items, d.LineItem{
			OrderID:  doc.OrderID,
			SKU:      doc.SKU,
			Name:     doc.Name,
			Quantity: doc.Quantity,
			Price:    price,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("order item cursor error: %w", err)
	}

	if len(items) == 0 {
		return nil, ErrItemsNotFound
	}
	return items, nil
}

func (m *MongoRepository) InsertItem(ctx context.Context, item d.LineItem) (string, error) {
	res, err := m.items.InsertOne(ctx, itemDocument{
		OrderID:  item.OrderID,
		SKU:      item.SKU,
		Name:     item.Name,
		Quantity: item.Quantity,
		Price:    item.Price.StringFixed(d.MoneyPlaces),
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert order item: %w", err)
	}
	return insertedID(res), nil
}

func (m *MongoRepository) CustomerExists(ctx context.Context, c d.Customer) (bool, error) {
	filter := bson.M{"order_id": c.OrderID, "email_address": c.EmailAddress}
	n, err := m.customers.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check customer exists: %w", err)
	}
	return n > 0, nil
}

func (m *MongoRepository) FetchCustomer(ctx context.Context, orderID string) (*d.Customer, error) {
	var doc customerDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}})
	err := m.customers.FindOne(ctx, bson.M{"order_id": orderID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get order customer: %w", err)
	}

	c := d.Customer(doc)
	return &c, nil
}

func (m *MongoRepository) InsertCustomer(ctx context.Context, c d.Customer) (string, error) {
	res, err := m.customers.InsertOne(ctx, customerDocument(c))
	if err != nil {
		return "", fmt.Errorf("failed to insert order customer: %w", err)
	}
	return insertedID(res), nil
}

func paymentFilter(p d.PaymentAttempt) bson.M {
	return bson.M{
		"created":      p.Created.UTC(),
		"order_id":     p.OrderID,
		"reference_id": p.ReferenceID,
		"processor":    p.Processor,
		"amount":       p.Amount.StringFixed(d.MoneyPlaces),
		"action":       p.Action,
		"successful":   p.Successful,
	}
}

func (m *MongoRepository) PaymentExists(ctx context.Context, p d.PaymentAttempt) (bool, error) {
	n, err := m.payments.CountDocuments(ctx, paymentFilter(p), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check payment exists: %w", err)
	}
	return n > 0, nil
}

func (m *MongoRepository) FetchLatestPayment(ctx context.Context, orderID string) (*d.PaymentAttempt, error) {
	var doc paymentDocument
	opts := options.FindOne().SetSort(bson.D{{Key: "created", Value: -1}, {Key: "_id", Value: -1}})
	err := m.payments.FindOne(ctx, bson.M{"order_id": orderID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get latest payment: %w", err)
	}

	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse payment amount %q: %w", doc.Amount, err)
	}
	return &d.PaymentAttempt{
		Created:     doc.Created.UTC(),
		OrderID:     doc.OrderID,
		ReferenceID: doc.ReferenceID,
		Processor:   doc.Processor,
		Amount:      amount,
		Action:      doc.Action,
		Successful:  doc.Successful,
		Metadata:    doc.Metadata,
	}, nil
}

func (m *MongoRepository) InsertPayment(ctx context.Context, p d.PaymentAttempt) (string, error) {
	res, err := m.payments.InsertOne(ctx, paymentDocument{
		Created:     p.Created.UTC(),
		OrderID:     p.OrderID,
		ReferenceID: p.ReferenceID,
		Processor:   p.Processor,
		Amount:      p.Amount.StringFixed(d.MoneyPlaces),
		Action:      p.Action,
		Successful:  p.Successful,
		Metadata:    p.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert order payment: %w", err)
	}
	return insertedID(res), nil
}

func (m *MongoRepository) UpdatePaymentMetadata(ctx context.Context, p d.PaymentAttempt) (int64, error) {
	update := bson.M{"$set": bson.M{"metadata": p.Metadata}}
	if p.Metadata == "" {
		update = bson.M{"$unset": bson.M{"metadata": ""}}
	}

	res, err := m.payments.UpdateMany(ctx, paymentFilter(p), update)
	if err != nil {
		return 0, fmt.Errorf("failed to update payment metadata: %w", err)
	}
	return res.MatchedCount, nil
}

func insertedID(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(res.InsertedID)
}
