package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoAppName = "store-order"

// MongoSettings describes how to reach the order database and size its pool.
// Zero pool values leave the driver defaults in place.
type MongoSettings struct {
	URI            string
	Database       string
	MaxPoolSize    int
	MinPoolSize    int
	MaxConnIdle    time.Duration
	ConnectTimeout time.Duration
}

func (s MongoSettings) clientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(s.URI).
		SetAppName(mongoAppName).
		SetServerSelectionTimeout(5 * time.Second)

	if s.ConnectTimeout > 0 {
		opts.SetConnectTimeout(s.ConnectTimeout)
	}
	if s.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(s.MaxPoolSize))
	}
	if s.MinPoolSize > 0 {
		opts.SetMinPoolSize(uint64(s.MinPoolSize))
	}
	if s.MaxConnIdle > 0 {
		opts.SetMaxConnIdleTime(s.MaxConnIdle)
	}
	return opts
}

// ConnectMongoDB dials the configured server and returns the order database
// after a ping.
func ConnectMongoDB(ctx context.Context, settings MongoSettings) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, settings.clientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(settings.Database), nil
}
