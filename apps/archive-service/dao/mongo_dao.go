package dao

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"goim-chat/apps/archive-service/model"
	"goim-chat/pkg/database"
)

type mongoDAO struct {
	coll *mongo.Collection
}

// NewMongoDAO 创建归档DAO并确保 (chat_id, timestamp) 索引
func NewMongoDAO(ctx context.Context, db *database.MongoDB) (ArchiveDAO, error) {
	coll := db.Collection(model.CollectionMessages)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("create archive index: %w", err)
	}
	return &mongoDAO{coll: coll}, nil
}

// Save $setOnInsert 保证重复投递不覆盖已有记录
func (d *mongoDAO) Save(ctx context.Context, msg *model.ArchivedMessage) (bool, error) {
	res, err := d.coll.UpdateOne(ctx,
		bson.M{"_id": msg.MessageID},
		bson.M{"$setOnInsert": bson.M{
			"chat_id":     msg.ChatID,
			"sender_id":   msg.SenderID,
			"receiver_id": msg.ReceiverID,
			"text":        msg.Text,
			"timestamp":   msg.TimestampMillis,
			"archived_at": msg.ArchivedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (d *mongoDAO) ListByChat(ctx context.Context, chatID string, beforeMillis int64, limit int64) ([]model.ArchivedMessage, error) {
	filter := bson.M{"chat_id": chatID}
	if beforeMillis > 0 {
		filter["timestamp"] = bson.M{"$lt": beforeMillis}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := d.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := make([]model.ArchivedMessage, 0, limit)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
