package domain

import "time"

const PosterBaseURL = "https://image.tmdb.org/t/p/original"

type Season struct {
	SeasonNumber int    `json:"season_number"`
	PosterPath   string `json:"poster_path,omitempty"`
	EpisodeCount int    `json:"episode_count"`
}

// TitleRecord is one canonical work. Genres, Cast, Directors and Languages
// hold entity ids, never names.
type TitleRecord struct {
	ID         string    `json:"id"`
	TMDBID     int64     `json:"tmdb_id" validate:"required,gt=0"`
	TMDBType   TitleType `json:"tmdb_type" validate:"oneof=movie tv"`
	Title      string    `json:"title" validate:"required"`
	Year       string    `json:"year,omitempty"`
	Rating     float64   `json:"rating,omitempty" validate:"gte=0,lte=10"`
	Plot       string    `json:"plot,omitempty"`
	PosterPath string    `json:"poster_path,omitempty"`
	TrailerURL string    `json:"trailer_url,omitempty"`
	IMDBID     string    `json:"imdb_id,omitempty"`
	Runtime    int       `json:"runtime,omitempty"`
	Adult      bool      `json:"adult,omitempty"`
	Genres     []string  `json:"genres"`
	Cast       []string  `json:"cast"`
	Directors  []string  `json:"directors"`
	Languages  []string  `json:"spoken_languages"`
	Seasons    []Season  `json:"seasons,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (t TitleRecord) PosterURL() string {
	if t.PosterPath == "" {
		return ""
	}
	return PosterBaseURL + t.PosterPath
}

func (t TitleRecord) EpisodeCount() int {
	n := 0
	for _, s := range t.Seasons {
		n += s.EpisodeCount
	}
	return n
}

// TitleDetails is a TitleRecord with its entity references resolved.
type TitleDetails struct {
	Title     TitleRecord
	Genres    []Entity
	Cast      []Entity
	Directors []Entity
	Languages []Entity
}

// TitlePatch carries admin edits. Nil fields are left untouched.
type TitlePatch struct {
	Title      *string
	Year       *string
	Rating     *float64
	Plot       *string
	PosterPath *string
	TrailerURL *string
	IMDBID     *string
}

func (p TitlePatch) Empty() bool {
	return p.Title == nil && p.Year == nil && p.Rating == nil && p.Plot == nil &&
		p.PosterPath == nil && p.TrailerURL == nil && p.IMDBID == nil
}

// TitleInfo is what the metadata provider reports for a title, with names
// in place of entity ids.
type TitleInfo struct {
	TMDBID           int64
	TMDBType         TitleType
	Title            string
	Year             string
	Rating           float64
	Plot             string
	PosterPath       string
	TrailerURL       string
	IMDBID           string
	Runtime          int
	Adult            bool
	Genres           []string
	Cast             []Person
	Directors        []Person
	Languages        []string
	Seasons          []Season
	NumberOfSeasons  int
	NumberOfEpisodes int
}

type Person struct {
	Name        string
	ProfilePath string
}

// RatingInfo comes from the secondary rating source.
type RatingInfo struct {
	Rating float64
	Plot   string
}

type SortMode string

const (
	SortYear   SortMode = "year"
	SortRating SortMode = "rating"
	SortRecent SortMode = "recent"
)

func ParseSortMode(s string) SortMode {
	switch SortMode(s) {
	case SortRating:
		return SortRating
	case SortRecent:
		return SortRecent
	default:
		return SortYear
	}
}

// TitleQuery drives the catalog listing.
type TitleQuery struct {
	Search     string
	Category   TitleType
	Genre      string
	Cast       string
	Director   string
	Sort       SortMode
	Pagination Pagination
}
