package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "maskan/internal/errors"
	"maskan/internal/model"
)

// AgentRepository defines agent profile persistence operations.
type AgentRepository interface {
	Create(ctx context.Context, agent *model.Agent) error
	FindByEmail(ctx context.Context, email string) (*model.Agent, error)
}

type agentRepository struct {
	col *mongo.Collection
}

// NewAgentRepository creates a new agent repository.
func NewAgentRepository(db *mongo.Database) AgentRepository {
	return &agentRepository{col: db.Collection("agents")}
}

// EnsureAgentIndexes indexes agents by email.
func EnsureAgentIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("agents").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "agentEmail", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create agent indexes: %w", err)
	}
	return nil
}

func (r *agentRepository) Create(ctx context.Context, agent *model.Agent) error {
	now := time.Now().UTC()
	if agent.ID.IsZero() {
		agent.ID = primitive.NewObjectID()
	}
	agent.CreatedAt = now
	agent.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, agent); err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// FindByEmail returns the most recent profile registered under email.
func (r *agentRepository) FindByEmail(ctx context.Context, email string) (*model.Agent, error) {
	var agent model.Agent
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if err := r.col.FindOne(ctx, bson.M{"agentEmail": email}, opts).Decode(&agent); err != nil {
		return nil, notFound(err, apperrors.ErrAgentNotFound)
	}
	return &agent, nil
}

// BrokerRepository defines broker profile persistence operations.
type BrokerRepository interface {
	Create(ctx context.Context, broker *model.Broker) error
}

type brokerRepository struct {
	col *mongo.Collection
}

// NewBrokerRepository creates a new broker repository.
func NewBrokerRepository(db *mongo.Database) BrokerRepository {
	return &brokerRepository{col: db.Collection("brokers")}
}

func (r *brokerRepository) Create(ctx context.Context, broker *model.Broker) error {
	now := time.Now().UTC()
	if broker.ID.IsZero() {
		broker.ID = primitive.NewObjectID()
	}
	broker.CreatedAt = now
	broker.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, broker); err != nil {
		return fmt.Errorf("insert broker: %w", err)
	}
	return nil
}
