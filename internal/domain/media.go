package domain

type MediaKind string

const (
	MediaDocument MediaKind = "document"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaPhoto    MediaKind = "photo"
)

type TitleType string

const (
	TitleMovie TitleType = "movie"
	TitleTV    TitleType = "tv"
)

func (t TitleType) Valid() bool {
	return t == TitleMovie || t == TitleTV
}

// MediaRecord is one stored file. (ChannelID, MessageID) identifies it.
type MediaRecord struct {
	ID           string    `json:"id"`
	ChannelID    int64     `json:"channel_id" validate:"required"`
	MessageID    int64     `json:"message_id" validate:"required,gt=0"`
	FileName     string    `json:"file_name" validate:"required"`
	FileSize     int64     `json:"file_size" validate:"gte=0"`
	Kind         MediaKind `json:"media_kind" validate:"oneof=document video audio photo"`
	TMDBID       int64     `json:"tmdb_id,omitempty" validate:"gte=0"`
	TMDBType     TitleType `json:"tmdb_type,omitempty" validate:"omitempty,oneof=movie tv"`
	SeasonNumber int       `json:"season_number,omitempty" validate:"gte=0"`
	PosterURL    string    `json:"poster_url,omitempty"`
	StreamURL    string    `json:"stream_url,omitempty"`
}

func (r MediaRecord) Linked() bool {
	return r.TMDBID != 0 && r.TMDBType != ""
}

// TitleLink attaches a MediaRecord to a TitleRecord.
type TitleLink struct {
	TMDBID       int64
	TMDBType     TitleType
	SeasonNumber int
}

// FileFilter is the hard predicate applied to file listings and searches.
type FileFilter struct {
	ExcludeChannels []int64
	ChannelID       int64
	Unlinked        bool
}

// TitleFilesQuery selects the files attached to one title (optionally one season).
type TitleFilesQuery struct {
	TMDBID       int64
	TMDBType     TitleType
	SeasonNumber int
	Pagination   Pagination
}
