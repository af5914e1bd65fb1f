package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediashare/internal/domain"
)

type TitleRepository struct {
	collection *mongo.Collection
}

type seasonDoc struct {
	SeasonNumber int    `bson:"season_number"`
	PosterPath   string `bson:"poster_path,omitempty"`
	EpisodeCount int    `bson:"episode_count"`
}

type titleDoc struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty"`
	TMDBID     int64                `bson:"tmdb_id"`
	TMDBType   string               `bson:"tmdb_type"`
	Title      string               `bson:"title"`
	Year       string               `bson:"year,omitempty"`
	Rating     float64              `bson:"rating,omitempty"`
	Plot       string               `bson:"plot,omitempty"`
	PosterPath string               `bson:"poster_path,omitempty"`
	TrailerURL string               `bson:"trailer_url,omitempty"`
	IMDBID     string               `bson:"imdb_id,omitempty"`
	Runtime    int                  `bson:"runtime,omitempty"`
	Adult      bool                 `bson:"adult,omitempty"`
	Genres     []primitive.ObjectID `bson:"genres"`
	Cast       []primitive.ObjectID `bson:"cast"`
	Directors  []primitive.ObjectID `bson:"directors"`
	Languages  []primitive.ObjectID `bson:"spoken_languages"`
	Seasons    []seasonDoc          `bson:"seasons,omitempty"`
	UpdatedAt  time.Time            `bson:"updated_at"`
}

type titleDetailsDoc struct {
	Title     titleDoc    `bson:",inline"`
	GenreDocs []entityDoc `bson:"genre_docs"`
	CastDocs  []entityDoc `bson:"cast_docs"`
	DirDocs   []entityDoc `bson:"director_docs"`
	LangDocs  []entityDoc `bson:"language_docs"`
}

func NewTitleRepository(client *mongo.Client, dbName string) *TitleRepository {
	return &TitleRepository{collection: client.Database(dbName).Collection(titlesCollection)}
}

func (r *TitleRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tmdb_id", Value: 1}, {Key: "tmdb_type", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "year", Value: -1}}},
		{Keys: bson.D{{Key: "rating", Value: -1}}},
		{Keys: bson.D{{Key: "genres", Value: 1}}},
		{Keys: bson.D{{Key: "cast", Value: 1}}},
		{Keys: bson.D{{Key: "directors", Value: 1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *TitleRepository) Get(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (domain.TitleRecord, error) {
	var doc titleDoc
	err := r.collection.FindOne(ctx, bson.M{"tmdb_id": tmdbID, "tmdb_type": string(tmdbType)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.TitleRecord{}, domain.ErrNotFound
		}
		return domain.TitleRecord{}, err
	}
	return titleFromDoc(doc), nil
}

func (r *TitleRepository) Upsert(ctx context.Context, t domain.TitleRecord) (bool, error) {
	if err := domain.Validate(t); err != nil {
		return false, err
	}
	doc := toTitleDoc(t)
	doc.ID = primitive.NilObjectID
	doc.UpdatedAt = time.Now().UTC()
	filter := bson.M{"tmdb_id": t.TMDBID, "tmdb_type": string(t.TMDBType)}

	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$set": doc})
			return false, err
		}
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (r *TitleRepository) Update(ctx context.Context, tmdbID int64, tmdbType domain.TitleType, patch domain.TitlePatch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Year != nil {
		set["year"] = *patch.Year
	}
	if patch.Rating != nil {
		set["rating"] = *patch.Rating
	}
	if patch.Plot != nil {
		set["plot"] = *patch.Plot
	}
	if patch.PosterPath != nil {
		set["poster_path"] = *patch.PosterPath
	}
	if patch.TrailerURL != nil {
		set["trailer_url"] = *patch.TrailerURL
	}
	if patch.IMDBID != nil {
		set["imdb_id"] = *patch.IMDBID
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"tmdb_id": tmdbID, "tmdb_type": string(tmdbType)},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TitleRepository) Delete(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"tmdb_id": tmdbID, "tmdb_type": string(tmdbType)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *TitleRepository) List(ctx context.Context, q domain.TitleQuery) ([]domain.TitleRecord, int64, error) {
	filter, ok := titleFilterDoc(q)
	if !ok {
		return []domain.TitleRecord{}, 0, nil
	}
	opts := options.Find().
		SetSort(titleSort(q.Sort)).
		SetSkip(q.Pagination.Skip()).
		SetLimit(q.Pagination.Limit())

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var docs []titleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.TitleRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, titleFromDoc(doc))
	}
	return out, total, nil
}

// titleFilterDoc reports ok=false when an entity filter is not a valid id,
// in which case nothing can match.
func titleFilterDoc(q domain.TitleQuery) (bson.M, bool) {
	filter := bson.M{}
	if q.Search != "" {
		filter["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
	}
	if q.Category != "" {
		filter["tmdb_type"] = string(q.Category)
	}
	refs := []struct {
		field string
		id    string
	}{
		{"genres", q.Genre},
		{"cast", q.Cast},
		{"directors", q.Director},
	}
	for _, ref := range refs {
		if ref.id == "" {
			continue
		}
		oid, err := primitive.ObjectIDFromHex(ref.id)
		if err != nil {
			return nil, false
		}
		filter[ref.field] = oid
	}
	return filter, true
}

func titleSort(mode domain.SortMode) bson.D {
	switch mode {
	case domain.SortRating:
		return bson.D{{Key: "rating", Value: -1}, {Key: "_id", Value: -1}}
	case domain.SortRecent:
		return bson.D{{Key: "_id", Value: -1}}
	default:
		return bson.D{{Key: "year", Value: -1}, {Key: "_id", Value: -1}}
	}
}

func (r *TitleRepository) Details(ctx context.Context, tmdbID int64, tmdbType domain.TitleType) (domain.TitleDetails, error) {
	lookup := func(from, local, as string) bson.D {
		return bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: from},
			{Key: "localField", Value: local},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: as},
		}}}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tmdb_id": tmdbID, "tmdb_type": string(tmdbType)}}},
		{{Key: "$limit", Value: 1}},
		lookup(string(domain.EntityGenre), "genres", "genre_docs"),
		lookup(string(domain.EntityStar), "cast", "cast_docs"),
		lookup(string(domain.EntityDirector), "directors", "director_docs"),
		lookup(string(domain.EntityLanguage), "spoken_languages", "language_docs"),
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.TitleDetails{}, err
	}
	var out []titleDetailsDoc
	if err := cursor.All(ctx, &out); err != nil {
		return domain.TitleDetails{}, err
	}
	if len(out) == 0 {
		return domain.TitleDetails{}, domain.ErrNotFound
	}
	doc := out[0]
	return domain.TitleDetails{
		Title:     titleFromDoc(doc.Title),
		Genres:    orderedEntities(doc.Title.Genres, doc.GenreDocs),
		Cast:      orderedEntities(doc.Title.Cast, doc.CastDocs),
		Directors: orderedEntities(doc.Title.Directors, doc.DirDocs),
		Languages: orderedEntities(doc.Title.Languages, doc.LangDocs),
	}, nil
}

func (r *TitleRepository) Each(ctx context.Context, afterID string, fn func(domain.TitleRecord) error) error {
	filter := bson.M{}
	if afterID != "" {
		oid, err := parseObjectID(afterID)
		if err != nil {
			return err
		}
		filter["_id"] = bson.M{"$gt": oid}
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc titleDoc
		if err := cursor.Decode(&doc); err != nil {
			return err
		}
		if err := fn(titleFromDoc(doc)); err != nil {
			return err
		}
	}
	return cursor.Err()
}

func (r *TitleRepository) ListMissingRating(ctx context.Context) ([]domain.TitleRecord, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"rating": bson.M{"$exists": false}},
		bson.M{"rating": nil},
		bson.M{"rating": ""},
		bson.M{"rating": 0},
	}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []titleDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]domain.TitleRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, titleFromDoc(doc))
	}
	return out, nil
}

func toTitleDoc(t domain.TitleRecord) titleDoc {
	seasons := make([]seasonDoc, 0, len(t.Seasons))
	for _, s := range t.Seasons {
		seasons = append(seasons, seasonDoc(s))
	}
	if t.TMDBType != domain.TitleTV {
		seasons = nil
	}
	return titleDoc{
		TMDBID:     t.TMDBID,
		TMDBType:   string(t.TMDBType),
		Title:      t.Title,
		Year:       t.Year,
		Rating:     t.Rating,
		Plot:       t.Plot,
		PosterPath: t.PosterPath,
		TrailerURL: t.TrailerURL,
		IMDBID:     t.IMDBID,
		Runtime:    t.Runtime,
		Adult:      t.Adult,
		Genres:     parseObjectIDs(t.Genres),
		Cast:       parseObjectIDs(t.Cast),
		Directors:  parseObjectIDs(t.Directors),
		Languages:  parseObjectIDs(t.Languages),
		Seasons:    seasons,
		UpdatedAt:  t.UpdatedAt,
	}
}

func titleFromDoc(doc titleDoc) domain.TitleRecord {
	seasons := make([]domain.Season, 0, len(doc.Seasons))
	for _, s := range doc.Seasons {
		seasons = append(seasons, domain.Season(s))
	}
	return domain.TitleRecord{
		ID:         doc.ID.Hex(),
		TMDBID:     doc.TMDBID,
		TMDBType:   domain.TitleType(doc.TMDBType),
		Title:      doc.Title,
		Year:       doc.Year,
		Rating:     doc.Rating,
		Plot:       doc.Plot,
		PosterPath: doc.PosterPath,
		TrailerURL: doc.TrailerURL,
		IMDBID:     doc.IMDBID,
		Runtime:    doc.Runtime,
		Adult:      doc.Adult,
		Genres:     hexIDs(doc.Genres),
		Cast:       hexIDs(doc.Cast),
		Directors:  hexIDs(doc.Directors),
		Languages:  hexIDs(doc.Languages),
		Seasons:    seasons,
		UpdatedAt:  doc.UpdatedAt,
	}
}

// orderedEntities returns lookup results in the order of the stored references.
func orderedEntities(ids []primitive.ObjectID, docs []entityDoc) []domain.Entity {
	byID := make(map[primitive.ObjectID]entityDoc, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]domain.Entity, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, entityFromDoc(d))
		}
	}
	return out
}
