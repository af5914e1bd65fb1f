package usecase

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"mediashare/internal/domain"
)

const maxPlotLength = 600

var genreEmoji = map[string]string{
	"Action":         "🥊",
	"Adventure":      "🌋",
	"Animation":      "🎬",
	"Comedy":         "😂",
	"Crime":          "🕵️",
	"Documentary":    "🎥",
	"Drama":          "🎭",
	"Family":         "👨‍👩‍👧‍👦",
	"Fantasy":        "🧙",
	"History":        "📜",
	"Horror":         "👻",
	"Music":          "🎵",
	"Mystery":        "🕵️‍♂️",
	"Romance":        "❤️",
	"ScienceFiction": "🤖",
	"SciFi":          "🤖",
	"TVMovie":        "📺",
	"Thriller":       "🔪",
	"War":            "⚔️",
	"Western":        "🤠",
	"Sport":          "🏆",
	"Biography":      "📖",
}

var nonAlnumRe = regexp.MustCompile(`[^A-Za-z0-9]`)

// GenreTag renders a genre as a hashtag, with its emoji when one is known.
func GenreTag(genre string) string {
	tag := nonAlnumRe.ReplaceAllString(genre, "")
	if tag == "" {
		return ""
	}
	if emoji, ok := genreEmoji[tag]; ok {
		return "#" + tag + " " + emoji
	}
	return "#" + tag
}

// FormatDuration renders minutes as "2h 16m", or "45m" under an hour.
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	h, m := minutes/60, minutes%60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// TruncatePlot caps a plot at 600 characters plus an ellipsis.
func TruncatePlot(plot string) string {
	plot = strings.TrimSpace(plot)
	r := []rune(plot)
	if len(r) <= maxPlotLength {
		return plot
	}
	return string(r[:maxPlotLength]) + "..."
}

// Description is the renderable view of a title.
type Description struct {
	Type      domain.TitleType
	Title     string
	Year      string
	Runtime   int
	Seasons   int
	Episodes  int
	Rating    float64
	Languages []string
	Adult     bool
	Genres    []string
	Plot      string
	Directors []string
	Cast      []string
}

// DescribeDetails builds a Description from a stored title.
func DescribeDetails(d domain.TitleDetails) Description {
	return Description{
		Type:      d.Title.TMDBType,
		Title:     d.Title.Title,
		Year:      d.Title.Year,
		Runtime:   d.Title.Runtime,
		Seasons:   len(d.Title.Seasons),
		Episodes:  d.Title.EpisodeCount(),
		Rating:    d.Title.Rating,
		Languages: entityNames(d.Languages),
		Adult:     d.Title.Adult,
		Genres:    entityNames(d.Genres),
		Plot:      d.Title.Plot,
		Directors: entityNames(d.Directors),
		Cast:      entityNames(d.Cast),
	}
}

// DescribeInfo builds a Description straight from provider data.
func DescribeInfo(info domain.TitleInfo) Description {
	return Description{
		Type:      info.TMDBType,
		Title:     info.Title,
		Year:      info.Year,
		Runtime:   info.Runtime,
		Seasons:   info.NumberOfSeasons,
		Episodes:  info.NumberOfEpisodes,
		Rating:    info.Rating,
		Languages: info.Languages,
		Adult:     info.Adult,
		Genres:    info.Genres,
		Plot:      TruncatePlot(info.Plot),
		Directors: personNames(info.Directors),
		Cast:      personNames(info.Cast),
	}
}

// Format renders the HTML caption. Absent fields drop their whole line.
func (d Description) Format() string {
	var b strings.Builder
	line := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "<b>%s</b> %s\n", label, html.EscapeString(value))
		}
	}

	if d.Type == domain.TitleTV {
		line("📺 Title:", d.Title)
	} else {
		line("🎬 Title:", d.Title)
	}
	line("📆 Release:", d.Year)
	if d.Type == domain.TitleTV {
		line("📺 Seasons:", positive(d.Seasons))
		line("📺 Episodes:", positive(d.Episodes))
	} else {
		line("⏳️ Duration:", FormatDuration(d.Runtime))
	}
	if d.Rating > 0 {
		line("⭐ Rating:", strconv.FormatFloat(d.Rating, 'f', 1, 64)+" / 10")
	}
	line("🅰️ Languages:", strings.Join(d.Languages, ", "))
	if d.Adult {
		line("🔞 Adult:", "Yes")
	}
	tags := make([]string, 0, len(d.Genres))
	for _, g := range d.Genres {
		if tag := GenreTag(g); tag != "" {
			tags = append(tags, tag)
		}
	}
	line("⚙️ Genre:", strings.Join(tags, " "))
	b.WriteString("\n")
	if d.Plot != "" {
		fmt.Fprintf(&b, "<b>📝 Story:</b> %s\n\n", html.EscapeString(d.Plot))
	}
	line("🎬 Director:", strings.Join(d.Directors, ", "))
	line("🎭 Stars:", strings.Join(d.Cast, ", "))
	return strings.TrimSpace(b.String())
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func entityNames(es []domain.Entity) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name)
	}
	return out
}

func personNames(ps []domain.Person) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}
