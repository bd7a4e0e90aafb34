package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// NewMongo connects to MongoDB and pings the primary, retrying like NewPool.
func NewMongo(ctx context.Context, uri string, logger *slog.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(20).
		SetServerSelectionTimeout(5 * time.Second)

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		var client *mongo.Client
		client, err = mongo.Connect(ctx, opts)
		if err == nil {
			if err = client.Ping(ctx, readpref.Primary()); err == nil {
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}
		logger.Warn("mongo connect failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", connectAttempts),
			slog.String("error", err.Error()),
		)
		if attempt < connectAttempts {
			time.Sleep(2 * time.Second)
		}
	}
	return nil, fmt.Errorf("connect to mongo: %w", err)
}
