package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediashare/internal/domain"
)

type ChannelRepository struct {
	collection *mongo.Collection
}

type channelDoc struct {
	ChannelID int64  `bson:"channel_id"`
	Name      string `bson:"channel_name"`
}

func NewChannelRepository(client *mongo.Client, dbName string) *ChannelRepository {
	return &ChannelRepository{collection: client.Database(dbName).Collection(channelsCollection)}
}

func (r *ChannelRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "channel_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *ChannelRepository) List(ctx context.Context) ([]domain.Channel, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "channel_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []channelDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.Channel, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.Channel{ChannelID: d.ChannelID, Name: d.Name})
	}
	return out, nil
}

func (r *ChannelRepository) Add(ctx context.Context, c domain.Channel) error {
	if err := domain.Validate(c); err != nil {
		return err
	}
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"channel_id": c.ChannelID},
		bson.M{"$set": bson.M{"channel_id": c.ChannelID, "channel_name": c.Name}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *ChannelRepository) Remove(ctx context.Context, channelID int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"channel_id": channelID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
