package conversationRepo

import (
	"context"
	"time"

	"hellocity/database"
	"hellocity/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationRepository is the externally owned conversation store, keyed by
// session identifier. Turns never share mutable state through it; each turn
// reads a copy and appends its own messages.
type ConversationRepository interface {
	History(ctx context.Context, sessionID string) ([]models.Message, error)
	AppendTurn(ctx context.Context, sessionID string, messages []models.Message) error
}

type conversationDoc struct {
	SessionID string           `bson:"sessionId"`
	Messages  []models.Message `bson:"messages"`
	CreatedAt time.Time        `bson:"createdAt"`
	UpdatedAt time.Time        `bson:"updatedAt"`
}

type mongoConversationRepo struct {
	coll *mongo.Collection
}

// NewMongoConversationRepo returns a Mongo-backed conversation store.
func NewMongoConversationRepo() ConversationRepository {
	coll := database.MongoClient.Database("hellocity").Collection("conversations")
	return &mongoConversationRepo{coll: coll}
}

// History returns the stored message sequence for a session, oldest first.
// A session with no stored conversation yields an empty slice.
func (r *mongoConversationRepo) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	var doc conversationDoc
	err := r.coll.FindOne(ctx, bson.M{"sessionId": sessionID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Messages, nil
}

// AppendTurn appends the turn's messages to the session conversation,
// creating the document on first use.
func (r *mongoConversationRepo) AppendTurn(ctx context.Context, sessionID string, messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}
	now := time.Now().UTC()
	update := bson.M{
		"$push":        bson.M{"messages": bson.M{"$each": messages}},
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"sessionId": sessionID, "createdAt": now},
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"sessionId": sessionID}, update, options.Update().SetUpsert(true))
	return err
}
