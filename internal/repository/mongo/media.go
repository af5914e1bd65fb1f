package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediashare/internal/domain"
)

type MediaRepository struct {
	collection *mongo.Collection
}

type mediaDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	ChannelID    int64              `bson:"channel_id"`
	MessageID    int64              `bson:"message_id"`
	FileName     string             `bson:"file_name"`
	FileSize     int64              `bson:"file_size"`
	Kind         string             `bson:"media_kind"`
	TMDBID       int64              `bson:"tmdb_id,omitempty"`
	TMDBType     string             `bson:"tmdb_type,omitempty"`
	SeasonNumber int                `bson:"season_number,omitempty"`
	PosterURL    string             `bson:"poster_url,omitempty"`
}

var subtitleFilter = bson.M{"$not": primitive.Regex{Pattern: `\.srt$`, Options: "i"}}

func NewMediaRepository(client *mongo.Client, dbName string) *MediaRepository {
	return &MediaRepository{collection: client.Database(dbName).Collection(filesCollection)}
}

func (r *MediaRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "channel_id", Value: 1}, {Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "file_name", Value: "text"}}},
		{Keys: bson.D{{Key: "file_name", Value: 1}}},
		{Keys: bson.D{{Key: "tmdb_id", Value: 1}, {Key: "tmdb_type", Value: 1}, {Key: "season_number", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *MediaRepository) Upsert(ctx context.Context, rec domain.MediaRecord) (bool, error) {
	if err := domain.Validate(rec); err != nil {
		return false, err
	}
	filter := bson.M{"channel_id": rec.ChannelID, "message_id": rec.MessageID}
	set := bson.M{
		"file_name":  rec.FileName,
		"file_size":  rec.FileSize,
		"media_kind": string(rec.Kind),
	}
	if rec.Linked() {
		set["tmdb_id"] = rec.TMDBID
		set["tmdb_type"] = string(rec.TMDBType)
	}
	if rec.SeasonNumber > 0 {
		set["season_number"] = rec.SeasonNumber
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set}, options.Update().SetUpsert(true))
	if err != nil {
		// Two upserts of a new pair can race on the unique index; the loser
		// finds the winner's document on retry.
		if mongo.IsDuplicateKeyError(err) {
			_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
			return false, err
		}
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *MediaRepository) Get(ctx context.Context, id string) (domain.MediaRecord, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return domain.MediaRecord{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *MediaRepository) GetByMessage(ctx context.Context, channelID, messageID int64) (domain.MediaRecord, error) {
	return r.findOne(ctx, bson.M{"channel_id": channelID, "message_id": messageID})
}

func (r *MediaRepository) FindByFileName(ctx context.Context, fileName string) (domain.MediaRecord, error) {
	return r.findOne(ctx, bson.M{"file_name": fileName})
}

func (r *MediaRepository) findOne(ctx context.Context, filter bson.M) (domain.MediaRecord, error) {
	var doc mediaDoc
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.MediaRecord{}, domain.ErrNotFound
		}
		return domain.MediaRecord{}, err
	}
	return mediaFromDoc(doc), nil
}

func (r *MediaRepository) SetTitle(ctx context.Context, channelID, messageID int64, link domain.TitleLink) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"channel_id": channelID, "message_id": messageID},
		bson.M{"$set": linkSet(link)},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MediaRepository) LinkFiles(ctx context.Context, ids []string, link domain.TitleLink) (int64, error) {
	oids := parseObjectIDs(ids)
	if len(oids) == 0 {
		return 0, nil
	}
	res, err := r.collection.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": oids}}, bson.M{"$set": linkSet(link)})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MediaRepository) SetPoster(ctx context.Context, id, posterURL string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"poster_url": posterURL}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func linkSet(link domain.TitleLink) bson.M {
	set := bson.M{"tmdb_id": link.TMDBID, "tmdb_type": string(link.TMDBType)}
	if link.SeasonNumber > 0 {
		set["season_number"] = link.SeasonNumber
	}
	return set
}

func (r *MediaRepository) UnlinkTitle(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"tmdb_id": tmdbID, "tmdb_type": string(tmdbType)},
		bson.M{"$unset": bson.M{"tmdb_id": "", "tmdb_type": "", "season_number": ""}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *MediaRepository) RebindByFileName(ctx context.Context, fileName string, channelID, messageID int64) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"file_name": fileName},
		bson.M{"$set": bson.M{"channel_id": channelID, "message_id": messageID}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	return r.deleteOne(ctx, bson.M{"_id": oid})
}

func (r *MediaRepository) DeleteByMessage(ctx context.Context, channelID, messageID int64) error {
	return r.deleteOne(ctx, bson.M{"channel_id": channelID, "message_id": messageID})
}

func (r *MediaRepository) deleteOne(ctx context.Context, filter bson.M) error {
	res, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MediaRepository) DeleteRange(ctx context.Context, channelID, fromID, toID int64) (int64, error) {
	if fromID > toID {
		fromID, toID = toID, fromID
	}
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"channel_id": channelID,
		"message_id": bson.M{"$gte": fromID, "$lte": toID},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MediaRepository) ListTitleFiles(ctx context.Context, q domain.TitleFilesQuery) ([]domain.MediaRecord, int64, error) {
	filter := bson.M{
		"tmdb_id":   q.TMDBID,
		"tmdb_type": string(q.TMDBType),
		"file_name": subtitleFilter,
	}
	if q.SeasonNumber > 0 {
		filter["season_number"] = q.SeasonNumber
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "file_name", Value: 1}}).
		SetSkip(q.Pagination.Skip()).
		SetLimit(q.Pagination.Limit())
	return r.findPage(ctx, filter, opts)
}

func (r *MediaRepository) List(ctx context.Context, filter domain.FileFilter, ascending bool, p domain.Pagination) ([]domain.MediaRecord, int64, error) {
	order := -1
	if ascending {
		order = 1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: order}}).
		SetSkip(p.Skip()).
		SetLimit(p.Limit())
	return r.findPage(ctx, fileFilterDoc(filter), opts)
}

func (r *MediaRepository) findPage(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.MediaRecord, int64, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []mediaDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return mediaFromDocs(docs), total, nil
}

// Search runs the ranked text query. An empty match yields no items and a
// zero total.
func (r *MediaRepository) Search(ctx context.Context, text string, filter domain.FileFilter, p domain.Pagination) ([]domain.MediaRecord, int64, error) {
	if text == "" {
		return r.List(ctx, filter, false, p)
	}
	cursor, err := r.collection.Aggregate(ctx, buildSearchPipeline(text, fileFilterDoc(filter), p.Skip(), p.Limit()))
	if err != nil {
		return nil, 0, err
	}
	var out []facetResult[mediaDoc]
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 {
		return []domain.MediaRecord{}, 0, nil
	}
	return mediaFromDocs(out[0].Results), out[0].total(), nil
}

func (r *MediaRepository) TotalSize(ctx context.Context) (int64, error) {
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.M{"$sum": "$file_size"}},
		}}},
	})
	if err != nil {
		return 0, err
	}
	var out []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, nil
	}
	return out[0].Total, nil
}

func (r *MediaRepository) CountByChannel(ctx context.Context) ([]domain.ChannelCount, error) {
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$channel_id"},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}}}},
	})
	if err != nil {
		return nil, err
	}
	var out []struct {
		ChannelID int64 `bson:"_id"`
		Count     int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	counts := make([]domain.ChannelCount, 0, len(out))
	for _, c := range out {
		counts = append(counts, domain.ChannelCount{ChannelID: c.ChannelID, Count: c.Count})
	}
	return counts, nil
}

func fileFilterDoc(f domain.FileFilter) bson.M {
	filter := bson.M{}
	channel := bson.M{}
	if len(f.ExcludeChannels) > 0 {
		channel["$nin"] = f.ExcludeChannels
	}
	if f.ChannelID != 0 {
		channel["$eq"] = f.ChannelID
	}
	if len(channel) > 0 {
		filter["channel_id"] = channel
	}
	if f.Unlinked {
		filter["tmdb_id"] = bson.M{"$exists": false}
	}
	return filter
}

func mediaFromDoc(doc mediaDoc) domain.MediaRecord {
	return domain.MediaRecord{
		ID:           doc.ID.Hex(),
		ChannelID:    doc.ChannelID,
		MessageID:    doc.MessageID,
		FileName:     doc.FileName,
		FileSize:     doc.FileSize,
		Kind:         domain.MediaKind(doc.Kind),
		TMDBID:       doc.TMDBID,
		TMDBType:     domain.TitleType(doc.TMDBType),
		SeasonNumber: doc.SeasonNumber,
		PosterURL:    doc.PosterURL,
	}
}

func mediaFromDocs(docs []mediaDoc) []domain.MediaRecord {
	out := make([]domain.MediaRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, mediaFromDoc(doc))
	}
	return out
}
