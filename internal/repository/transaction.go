package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Transactor runs a unit of work. Repository calls made with the ctx handed
// to fn take part in the same transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// Atomic reports whether fn's writes are rolled back when it fails.
	Atomic() bool
}

type mongoTransactor struct {
	client *mongo.Client
}

// NewMongoTransactor runs units of work inside a MongoDB session transaction.
// It needs a replica set or sharded cluster.
func NewMongoTransactor(client *mongo.Client) Transactor {
	return &mongoTransactor{client: client}
}

// WithTransaction commits when fn returns nil and aborts otherwise. The driver
// may call fn again on transient transaction errors.
func (t *mongoTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (t *mongoTransactor) Atomic() bool { return true }

type directTransactor struct{}

// NewDirectTransactor runs fn without a transaction, for standalone servers.
// Callers must compensate partial writes themselves.
func NewDirectTransactor() Transactor {
	return directTransactor{}
}

func (directTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (directTransactor) Atomic() bool { return false }
