package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/adityavishwakarma159/CampusConnect/internal/apperr"
	"github.com/adityavishwakarma159/CampusConnect/internal/directory"
	"github.com/adityavishwakarma159/CampusConnect/internal/models"
)

// NewMongoClient connects and pings with a short deadline.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

type mongoMessage struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	SenderID      int64              `bson:"sender_id"`
	ReceiverID    *int64             `bson:"receiver_id,omitempty"`
	ChatType      models.ChatType    `bson:"chat_type"`
	DepartmentID  int64              `bson:"department_id"`
	Body          string             `bson:"body"`
	AttachmentURL string             `bson:"attachment_url,omitempty"`
	Read          bool               `bson:"is_read"`
	CreatedAt     time.Time          `bson:"created_at"`
}

func (m *mongoMessage) model() *models.ChatMessage {
	return &models.ChatMessage{
		ID:            m.ID.Hex(),
		SenderID:      m.SenderID,
		ReceiverID:    m.ReceiverID,
		ChatType:      m.ChatType,
		DepartmentID:  m.DepartmentID,
		Body:          m.Body,
		AttachmentURL: m.AttachmentURL,
		Read:          m.Read,
		CreatedAt:     m.CreatedAt,
	}
}

// MongoMessageStore persists messages in a single collection, sorted on
// (created_at, _id) so timestamp ties order deterministically.
type MongoMessageStore struct {
	coll *mongo.Collection
	dir  directory.Directory
}

func NewMongoMessageStore(coll *mongo.Collection, dir directory.Directory) *MongoMessageStore {
	idx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "department_id", Value: 1}, {Key: "chat_type", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
	}
	_, _ = coll.Indexes().CreateMany(context.Background(), idx)
	return &MongoMessageStore{coll: coll, dir: dir}
}

func (s *MongoMessageStore) Append(ctx context.Context, draft MessageDraft) (*models.ChatMessage, error) {
	if err := validateDraft(ctx, s.dir, draft); err != nil {
		return nil, err
	}
	doc := &mongoMessage{
		SenderID:      draft.SenderID,
		ReceiverID:    draft.ReceiverID,
		ChatType:      draft.ChatType,
		DepartmentID:  draft.DepartmentID,
		Body:          draft.Body,
		AttachmentURL: draft.AttachmentURL,
		CreatedAt:     time.Now().UTC(),
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.model(), nil
}

func (s *MongoMessageStore) find(ctx context.Context, filter bson.M) ([]*models.ChatMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.ChatMessage
	for cur.Next(ctx) {
		var m mongoMessage
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, m.model())
	}
	return out, cur.Err()
}

func (s *MongoMessageStore) History(ctx context.Context, a, b int64) ([]*models.ChatMessage, error) {
	return s.find(ctx, bson.M{
		"chat_type": models.ChatTypeOneToOne,
		"$or": bson.A{
			bson.M{"sender_id": a, "receiver_id": b},
			bson.M{"sender_id": b, "receiver_id": a},
		},
	})
}

func (s *MongoMessageStore) GroupHistory(ctx context.Context, departmentID int64, chatType models.ChatType) ([]*models.ChatMessage, error) {
	return s.find(ctx, bson.M{"department_id": departmentID, "chat_type": chatType})
}

func (s *MongoMessageStore) MarkRead(ctx context.Context, ownerID, otherID int64) (int64, error) {
	res, err := s.coll.UpdateMany(ctx, bson.M{
		"chat_type":   models.ChatTypeOneToOne,
		"receiver_id": ownerID,
		"sender_id":   otherID,
		"is_read":     false,
	}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *MongoMessageStore) Discard(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return apperr.NotFoundf("message %s", id)
	}
	_, err = s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}

func (s *MongoMessageStore) Get(ctx context.Context, id string) (*models.ChatMessage, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFoundf("message %s", id)
	}
	var m mongoMessage
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&m); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperr.NotFoundf("message %s", id)
		}
		return nil, err
	}
	return m.model(), nil
}

// MongoConversationIndex keeps one document per (owner, other, chat_type)
// triple. Touch and ResetUnread are single document operations, so a
// concurrent pair on the same row serializes inside the server; there
// is no read-then-write anywhere.
type MongoConversationIndex struct {
	coll *mongo.Collection
}

func NewMongoConversationIndex(coll *mongo.Collection) *MongoConversationIndex {
	idx := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "other_user_id", Value: 1}, {Key: "chat_type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "updated_at", Value: -1}}},
	}
	_, _ = coll.Indexes().CreateMany(context.Background(), idx)
	return &MongoConversationIndex{coll: coll}
}

func rowFilter(ownerID, otherID int64, chatType models.ChatType) bson.M {
	return bson.M{"owner_id": ownerID, "other_user_id": otherID, "chat_type": chatType}
}

// TouchPair runs both upserts in one session transaction, so a failure
// between them cannot leave a single-sided send. Needs a replica set,
// as Mongo transactions do.
func (x *MongoConversationIndex) TouchPair(ctx context.Context, senderID, receiverID int64, chatType models.ChatType, messageID string) error {
	session, err := x.coll.Database().Client().StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := x.Touch(sc, senderID, receiverID, chatType, messageID, false); err != nil {
			return nil, err
		}
		if _, err := x.Touch(sc, receiverID, senderID, chatType, messageID, true); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (x *MongoConversationIndex) Touch(ctx context.Context, ownerID, otherID int64, chatType models.ChatType, messageID string, incoming bool) (*models.ConversationSummary, error) {
	inc := 0
	if incoming {
		inc = 1
	}
	update := bson.M{
		"$set": bson.M{"last_message_id": messageID, "updated_at": time.Now().UTC()},
		"$inc": bson.M{"unread_count": inc},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var row models.ConversationSummary
	if err := x.coll.FindOneAndUpdate(ctx, rowFilter(ownerID, otherID, chatType), update, opts).Decode(&row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (x *MongoConversationIndex) ResetUnread(ctx context.Context, ownerID, otherID int64, chatType models.ChatType) error {
	_, err := x.coll.UpdateOne(ctx, rowFilter(ownerID, otherID, chatType), bson.M{"$set": bson.M{"unread_count": 0}})
	return err
}

func (x *MongoConversationIndex) List(ctx context.Context, ownerID int64) ([]*models.ConversationSummary, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cur, err := x.coll.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*models.ConversationSummary
	for cur.Next(ctx) {
		var row models.ConversationSummary
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, &row)
	}
	return out, cur.Err()
}
