package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediashare/internal/domain"
)

// TokenRepository relies on a TTL index on expiry to drop stale tokens;
// reads also filter on expiry because TTL removal is lazy.
type TokenRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

type tokenDoc struct {
	TokenID string    `bson:"token_id"`
	UserID  int64     `bson:"user_id"`
	Expiry  time.Time `bson:"expiry"`
}

func NewTokenRepository(client *mongo.Client, dbName string) *TokenRepository {
	return &TokenRepository{
		collection: client.Database(dbName).Collection(tokensCollection),
		now:        time.Now,
	}
}

func (r *TokenRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expiry", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *TokenRepository) Insert(ctx context.Context, t domain.AccessToken) error {
	if err := domain.Validate(t); err != nil {
		return err
	}
	_, err := r.collection.InsertOne(ctx, tokenDoc{TokenID: t.TokenID, UserID: t.UserID, Expiry: t.Expiry.UTC()})
	return err
}

func (r *TokenRepository) Get(ctx context.Context, tokenID string) (domain.AccessToken, error) {
	return r.findOne(ctx, bson.M{"token_id": tokenID})
}

func (r *TokenRepository) FindActive(ctx context.Context, userID int64) (domain.AccessToken, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "expiry": bson.M{"$gt": r.now().UTC()}})
}

func (r *TokenRepository) findOne(ctx context.Context, filter bson.M) (domain.AccessToken, error) {
	var doc tokenDoc
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.AccessToken{}, domain.ErrNotFound
		}
		return domain.AccessToken{}, err
	}
	return domain.AccessToken{TokenID: doc.TokenID, UserID: doc.UserID, Expiry: doc.Expiry}, nil
}
