package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/axvier/blog/internal/models"
)

// AuditStore keeps the authentication audit trail in MongoDB.
type AuditStore struct {
	col *mongo.Collection
}

func NewAuditStore(db *mongo.Database) *AuditStore {
	return &AuditStore{col: db.Collection("auth_events")}
}

// Record appends one event. A zero At is set to now.
func (s *AuditStore) Record(ctx context.Context, ev models.AuthEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if _, err := s.col.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("mongo insert auth event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int64) ([]models.AuthEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(limit)
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find auth events: %w", err)
	}
	defer cur.Close(ctx)

	var events []models.AuthEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("mongo decode auth events: %w", err)
	}
	return events, nil
}
