package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// buildSearchPipeline ranks documents matching base and the text query by
// text score and returns one page plus the total count from a single
// $facet stage.
func buildSearchPipeline(text string, base bson.M, skip, limit int64) mongo.Pipeline {
	match := bson.M{}
	for k, v := range base {
		match[k] = v
	}
	match["$text"] = bson.M{"$search": text}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{
			{Key: "score", Value: bson.M{"$meta": "textScore"}},
			{Key: "_id", Value: -1},
		}}},
		{{Key: "$facet", Value: bson.D{
			{Key: "results", Value: bson.A{
				bson.D{{Key: "$skip", Value: skip}},
				bson.D{{Key: "$limit", Value: limit}},
			}},
			{Key: "totalCount", Value: bson.A{
				bson.D{{Key: "$count", Value: "total"}},
			}},
		}}},
	}
}

type facetResult[T any] struct {
	Results    []T `bson:"results"`
	TotalCount []struct {
		Total int64 `bson:"total"`
	} `bson:"totalCount"`
}

func (f facetResult[T]) total() int64 {
	if len(f.TotalCount) == 0 {
		return 0
	}
	return f.TotalCount[0].Total
}
