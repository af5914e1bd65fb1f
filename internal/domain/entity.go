package domain

type EntityCategory string

const (
	EntityGenre    EntityCategory = "genres"
	EntityStar     EntityCategory = "stars"
	EntityDirector EntityCategory = "directors"
	EntityLanguage EntityCategory = "languages"
)

func (c EntityCategory) Valid() bool {
	switch c {
	case EntityGenre, EntityStar, EntityDirector, EntityLanguage:
		return true
	}
	return false
}

// Entity is a named genre, person or language, unique by name within its category.
type Entity struct {
	ID          string `json:"id"`
	Name        string `json:"name" validate:"required"`
	ProfilePath string `json:"profile_path,omitempty"`
}
