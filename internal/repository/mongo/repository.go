package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediashare/internal/domain"
)

const (
	filesCollection    = "files"
	titlesCollection   = "tmdb"
	tokensCollection   = "tokens"
	usersCollection    = "users"
	channelsCollection = "allowed_channels"
)

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureAllIndexes creates the indexes of every catalog collection.
func EnsureAllIndexes(ctx context.Context, client *mongo.Client, dbName string) error {
	type indexer interface {
		EnsureIndexes(ctx context.Context) error
	}
	for _, repo := range []indexer{
		NewMediaRepository(client, dbName),
		NewTitleRepository(client, dbName),
		NewEntityRepository(client, dbName),
		NewTokenRepository(client, dbName),
		NewUserRepository(client, dbName),
		NewChannelRepository(client, dbName),
	} {
		if err := repo.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: bad id %q", domain.ErrNotFound, id)
	}
	return oid, nil
}

func parseObjectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func hexIDs(oids []primitive.ObjectID) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		out = append(out, oid.Hex())
	}
	return out
}
