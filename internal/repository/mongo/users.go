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

type UserRepository struct {
	collection *mongo.Collection
}

type userDoc struct {
	UserID     int64     `bson:"user_id"`
	FirstName  string    `bson:"first_name,omitempty"`
	Username   string    `bson:"username,omitempty"`
	Authorized bool      `bson:"authorized"`
	Blocked    bool      `bson:"blocked"`
	FileCount  int       `bson:"file_count"`
	CountDay   string    `bson:"count_day,omitempty"`
	Joined     time.Time `bson:"joined"`
}

func NewUserRepository(client *mongo.Client, dbName string) *UserRepository {
	return &UserRepository{collection: client.Database(dbName).Collection(usersCollection)}
}

func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *UserRepository) Register(ctx context.Context, u domain.User) (domain.User, bool, error) {
	if err := domain.Validate(u); err != nil {
		return domain.User{}, false, err
	}
	joined := u.Joined
	if joined.IsZero() {
		joined = time.Now().UTC()
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": u.UserID},
		bson.M{
			"$setOnInsert": bson.M{
				"user_id":    u.UserID,
				"authorized": false,
				"blocked":    false,
				"file_count": 0,
				"joined":     joined,
			},
			"$set": bson.M{"first_name": u.FirstName, "username": u.Username},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return domain.User{}, false, err
	}
	created := err == nil && res.UpsertedCount > 0
	stored, err := r.Get(ctx, u.UserID)
	if err != nil {
		return domain.User{}, false, err
	}
	return stored, created, nil
}

func (r *UserRepository) Get(ctx context.Context, userID int64) (domain.User, error) {
	var doc userDoc
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, err
	}
	return userFromDoc(doc), nil
}

func (r *UserRepository) Authorize(ctx context.Context, userID int64) error {
	return r.set(ctx, userID, bson.M{"authorized": true})
}

func (r *UserRepository) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	return r.set(ctx, userID, bson.M{"blocked": blocked})
}

func (r *UserRepository) set(ctx context.Context, userID int64, fields bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, userID int64) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListIDs(ctx context.Context) ([]int64, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 0, "user_id": 1}).SetSort(bson.D{{Key: "user_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.UserID)
	}
	return ids, nil
}

func (r *UserRepository) IncrementFileCount(ctx context.Context, userID int64, day string) (int, error) {
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDoc
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "count_day": day},
		bson.M{"$inc": bson.M{"file_count": 1}},
		after,
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		err = r.collection.FindOneAndUpdate(ctx,
			bson.M{"user_id": userID},
			bson.M{"$set": bson.M{"count_day": day, "file_count": 1}},
			after,
		).Decode(&doc)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return doc.FileCount, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, 0, err
	}
	authorized, err := r.collection.CountDocuments(ctx, bson.M{"authorized": true})
	if err != nil {
		return 0, 0, err
	}
	return total, authorized, nil
}

func userFromDoc(doc userDoc) domain.User {
	return domain.User{
		UserID:     doc.UserID,
		FirstName:  doc.FirstName,
		Username:   doc.Username,
		Authorized: doc.Authorized,
		Blocked:    doc.Blocked,
		FileCount:  doc.FileCount,
		CountDay:   doc.CountDay,
		Joined:     doc.Joined,
	}
}
