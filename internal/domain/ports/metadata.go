package ports

import (
	"context"

	"mediashare/internal/domain"
)

type MetadataProvider interface {
	// SearchMovie returns the best movie match, or found=false.
	SearchMovie(ctx context.Context, title string, year int) (id int64, found bool, err error)
	SearchTV(ctx context.Context, title string, year int) (id int64, found bool, err error)
	Details(ctx context.Context, tmdbType domain.TitleType, id int64) (domain.TitleInfo, error)
}

type RatingProvider interface {
	Lookup(ctx context.Context, imdbID string) (domain.RatingInfo, error)
}
