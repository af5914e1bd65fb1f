package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"mediashare/internal/domain"
)

// EntityRepository stores genres, stars, directors and languages, one
// collection per category. Names are indexed but not unique: concurrent
// get-or-create may leave a rare duplicate.
type EntityRepository struct {
	db *mongo.Database
}

type entityDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	ProfilePath string             `bson:"profile_path,omitempty"`
}

func NewEntityRepository(client *mongo.Client, dbName string) *EntityRepository {
	return &EntityRepository{db: client.Database(dbName)}
}

func (r *EntityRepository) EnsureIndexes(ctx context.Context) error {
	for _, c := range []domain.EntityCategory{domain.EntityGenre, domain.EntityStar, domain.EntityDirector, domain.EntityLanguage} {
		_, err := r.db.Collection(string(c)).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "name", Value: 1}},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *EntityRepository) collection(category domain.EntityCategory) (*mongo.Collection, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("unknown entity category %q", category)
	}
	return r.db.Collection(string(category)), nil
}

func (r *EntityRepository) FindByName(ctx context.Context, category domain.EntityCategory, name string) (domain.Entity, error) {
	coll, err := r.collection(category)
	if err != nil {
		return domain.Entity{}, err
	}
	var doc entityDoc
	if err := coll.FindOne(ctx, bson.M{"name": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Entity{}, domain.ErrNotFound
		}
		return domain.Entity{}, err
	}
	return entityFromDoc(doc), nil
}

func (r *EntityRepository) Insert(ctx context.Context, category domain.EntityCategory, e domain.Entity) (string, error) {
	if err := domain.Validate(e); err != nil {
		return "", err
	}
	coll, err := r.collection(category)
	if err != nil {
		return "", err
	}
	res, err := coll.InsertOne(ctx, entityDoc{Name: e.Name, ProfilePath: e.ProfilePath})
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (r *EntityRepository) Get(ctx context.Context, category domain.EntityCategory, id string) (domain.Entity, error) {
	coll, err := r.collection(category)
	if err != nil {
		return domain.Entity{}, err
	}
	oid, err := parseObjectID(id)
	if err != nil {
		return domain.Entity{}, err
	}
	var doc entityDoc
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Entity{}, domain.ErrNotFound
		}
		return domain.Entity{}, err
	}
	return entityFromDoc(doc), nil
}

func (r *EntityRepository) GetMany(ctx context.Context, category domain.EntityCategory, ids []string) ([]domain.Entity, error) {
	coll, err := r.collection(category)
	if err != nil {
		return nil, err
	}
	oids := parseObjectIDs(ids)
	if len(oids) == 0 {
		return []domain.Entity{}, nil
	}
	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var docs []entityDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return orderedEntities(oids, docs), nil
}

func entityFromDoc(doc entityDoc) domain.Entity {
	return domain.Entity{ID: doc.ID.Hex(), Name: doc.Name, ProfilePath: doc.ProfilePath}
}
