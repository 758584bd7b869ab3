// Package mongodb provides the sessions and messages collections.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tradepost/deal-service/internal/core/docdb"
	"github.com/tradepost/deal-service/internal/domain/models"
)

const (
	// SessionsCollectionName is the name of the sessions collection.
	SessionsCollectionName = "sessions"
	// MessagesCollectionName is the name of the messages collection.
	MessagesCollectionName = "messages"
)

// SessionCollection implements the docdb.SessionStore interface for
// MongoDB. Message append runs in a multi-document transaction so the
// session summary and the log move together.
type SessionCollection struct {
	client   *mongo.Client
	sessions *mongo.Collection
	messages *mongo.Collection
}

// NewSessionCollection creates a new session collection wrapper.
func NewSessionCollection(client *mongo.Client, db *mongo.Database) *SessionCollection {
	return &SessionCollection{
		client:   client,
		sessions: db.Collection(SessionsCollectionName),
		messages: db.Collection(MessagesCollectionName),
	}
}

// Insert stores a new session.
func (c *SessionCollection) Insert(ctx context.Context, session *models.ChatSession) error {
	_, err := c.sessions.InsertOne(ctx, session)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return docdb.ErrDuplicateKey
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by id.
func (c *SessionCollection) Get(ctx context.Context, id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := c.sessions.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, docdb.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// GetByKey retrieves a session by its canonical participant key.
func (c *SessionCollection) GetByKey(ctx context.Context, participantKey string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := c.sessions.FindOne(ctx, bson.M{"participantKey": participantKey}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, docdb.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session by key: %w", err)
	}
	return &session, nil
}

// ListByParticipant returns the principal's sessions, most recently
// active first.
func (c *SessionCollection) ListByParticipant(ctx context.Context, userID string) ([]*models.ChatSession, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	cursor, err := c.sessions.Find(ctx, bson.M{"participants": userID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

// AppendMessage atomically assigns the next sequence number, inserts
// the message, and updates the session summary and the receiver's
// unread counter. Runs as a single transaction.
func (c *SessionCollection) AppendMessage(ctx context.Context, sessionID string, msg *models.ChatMessage) (*models.ChatSession, error) {
	sess, err := c.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	result, err := sess.WithTransaction(ctx, func(txCtx mongo.SessionContext) (interface{}, error) {
		updateOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		var session models.ChatSession
		err := c.sessions.FindOneAndUpdate(txCtx,
			bson.M{"_id": sessionID},
			bson.M{
				"$inc": bson.M{
					"seq":                      1,
					"unread." + msg.ReceiverID: 1,
				},
				"$set": bson.M{
					"lastMessage":   msg.Body,
					"lastMessageAt": msg.CreatedAt,
					"updatedAt":     msg.CreatedAt,
				},
			},
			updateOpts,
		).Decode(&session)
		if err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, docdb.ErrNotFound
			}
			return nil, fmt.Errorf("failed to update session summary: %w", err)
		}

		msg.Seq = session.Seq
		if _, err := c.messages.InsertOne(txCtx, msg); err != nil {
			return nil, fmt.Errorf("failed to insert message: %w", err)
		}

		return &session, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*models.ChatSession), nil
}

// Messages returns the session's log in ascending sequence order.
func (c *SessionCollection) Messages(ctx context.Context, sessionID string, limit int64) ([]*models.ChatMessage, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	if limit > 0 {
		findOpts.SetLimit(limit)
	}

	cursor, err := c.messages.Find(ctx, bson.M{"sessionId": sessionID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*models.ChatMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	return messages, nil
}

// MarkRead zeroes the reader's unread counter and flags their unread
// messages as read. Idempotent.
func (c *SessionCollection) MarkRead(ctx context.Context, sessionID, readerID string, at time.Time) error {
	result, err := c.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID},
		bson.M{"$set": bson.M{
			"unread." + readerID: 0,
			"updatedAt":          at.UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to reset unread counter: %w", err)
	}
	if result.MatchedCount == 0 {
		return docdb.ErrNotFound
	}

	_, err = c.messages.UpdateMany(ctx,
		bson.M{"sessionId": sessionID, "receiverId": readerID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}

	return nil
}

// MarkDelivered flips a message's delivered flag. No-op when already
// delivered.
func (c *SessionCollection) MarkDelivered(ctx context.Context, messageID string) error {
	_, err := c.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, "delivered": false},
		bson.M{"$set": bson.M{"delivered": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}
	return nil
}

// ListDueExpiry returns sessions past retention not yet marked expired.
func (c *SessionCollection) ListDueExpiry(ctx context.Context, now time.Time) ([]*models.ChatSession, error) {
	cursor, err := c.sessions.Find(ctx, bson.M{
		"expired":   false,
		"expiresAt": bson.M{"$lte": now.UTC()},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list due sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*models.ChatSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode due sessions: %w", err)
	}

	return sessions, nil
}

// MarkExpired flags a session as past retention.
func (c *SessionCollection) MarkExpired(ctx context.Context, sessionID string) (bool, error) {
	result, err := c.sessions.UpdateOne(ctx,
		bson.M{"_id": sessionID, "expired": false},
		bson.M{"$set": bson.M{"expired": true}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark session expired: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// EnsureIndexes creates necessary indexes for both collections.
func (c *SessionCollection) EnsureIndexes(ctx context.Context) error {
	sessionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "participantKey", Value: 1}},
			Options: options.Index().SetName("idx_participant_key").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "participants", Value: 1},
				{Key: "updatedAt", Value: -1},
			},
			Options: options.Index().SetName("idx_participants_updated"),
		},
		{
			Keys: bson.D{
				{Key: "expired", Value: 1},
				{Key: "expiresAt", Value: 1},
			},
			Options: options.Index().SetName("idx_expired_expires"),
		},
	}

	_, err := c.sessions.Indexes().CreateMany(ctx, sessionIndexes)
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	messageIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "sessionId", Value: 1},
				{Key: "seq", Value: 1},
			},
			Options: options.Index().SetName("idx_session_seq").SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "sessionId", Value: 1},
				{Key: "receiverId", Value: 1},
				{Key: "read", Value: 1},
			},
			Options: options.Index().SetName("idx_session_receiver_read"),
		},
	}

	_, err = c.messages.Indexes().CreateMany(ctx, messageIndexes)
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}
