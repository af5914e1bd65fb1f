package usecase

import "testing"

func TestParseReleaseName(t *testing.T) {
	cases := []struct {
		in   string
		want Release
	}{
		{"Movie.Title.2020.1080p.mkv", Release{Title: "Movie Title", Year: 2020}},
		{"The.Matrix.1999.2160p.UHD.BluRay.x265.mkv", Release{Title: "The Matrix", Year: 1999}},
		{"Breaking.Bad.S01E02.720p.WEB-DL.mkv", Release{Title: "Breaking Bad", Season: 1, Episode: 2}},
		{"[Group] Show.Name.2x05.mkv", Release{Title: "Show Name", Season: 2, Episode: 5}},
		{"Dark Season 2 Complete.mkv", Release{Title: "Dark", Season: 2}},
		{"1917.2019.1080p.mkv", Release{Title: "1917", Year: 2019}},
		{"Spirited.Away.AKA.Sen.to.Chihiro.2001.mkv", Release{Title: "Spirited Away", Year: 2001}},
		{"Amélie (2001).mp4", Release{Title: "Amelie", Year: 2001}},
		{"Charlotte's Web 2006.mkv", Release{Title: "Charlotte's Web", Year: 2006}},
		{"notes.pdf", Release{Title: "notes"}},
	}
	for _, c := range cases {
		got := ParseReleaseName(c.in)
		if got != c.want {
			t.Errorf("ParseReleaseName(%q): got %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestReleaseIsEpisode(t *testing.T) {
	if (Release{Title: "x", Year: 2020}).IsEpisode() {
		t.Error("movie must not be an episode")
	}
	if !(Release{Title: "x", Episode: 3}).IsEpisode() {
		t.Error("episode marker must count")
	}
}
