package usecase

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Release is what a scene-style file name says about its content.
type Release struct {
	Title   string
	Year    int
	Season  int
	Episode int
}

// IsEpisode reports whether the name carried season or episode markers.
func (r Release) IsEpisode() bool {
	return r.Season > 0 || r.Episode > 0
}

var (
	knownExtRe   = regexp.MustCompile(`(?i)^\.(mkv|mp4|avi|mov|wmv|flv|webm|m4v|ts|m2ts|mpg|mpeg|3gp|mp3|m4a|flac|aac|ogg|wav|opus|zip|rar|7z|pdf|epub|srt|jpg|jpeg|png)$`)
	groupTagRe   = regexp.MustCompile(`\[[^\]]*\]|\{[^}]*\}`)
	seasonEpRe   = regexp.MustCompile(`(?i)\bS(\d{1,2})\s?E(\d{1,3})\b`)
	crossEpRe    = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{2,3})\b`)
	seasonOnlyRe = regexp.MustCompile(`(?i)\b(?:S|Season\s?)(\d{1,2})\b`)
	episodeRe    = regexp.MustCompile(`(?i)\b(?:E|EP|Episode\s?)(\d{1,3})\b`)
	yearRe       = regexp.MustCompile(`\b(19[0-9]{2}|20[0-9]{2})\b`)
	akaRe        = regexp.MustCompile(`(?i)\sA[.\s]?K[.\s]?A[.]?\s+`)
	qualityRe    = regexp.MustCompile(`(?i)\b(?:480p|576p|720p|1080p|1080i|2160p|4k|uhd|hdrip|hdtv|web-?dl|web-?rip|webrip|blu-?ray|brrip|bdrip|dvdrip|dvdscr|camrip|hdcam|x264|x265|h\.?264|h\.?265|hevc|avc|aac\d?|ac3|ddp?5\.?1|dts|atmos|hdr10?|10bit|proper|repack|extended|unrated|remastered|imax|hindi|english|dual|multi|esubs?|amzn|nf|hmax|dsnp)\b`)
)

// ParseReleaseName extracts a search title, year and season/episode hints
// from a file name such as "Movie.Title.2020.1080p.mkv".
func ParseReleaseName(name string) Release {
	name = strings.TrimSpace(name)
	if ext := path.Ext(name); knownExtRe.MatchString(ext) {
		name = strings.TrimSuffix(name, ext)
	}
	name = groupTagRe.ReplaceAllString(name, " ")
	name = strings.NewReplacer(".", " ", "_", " ", "(", " ", ")", " ").Replace(name)
	name = strings.TrimSpace(spaceRe.ReplaceAllString(name, " "))

	var rel Release
	cut := len(name)
	mark := func(idx int) {
		if idx >= 0 && idx < cut {
			cut = idx
		}
	}

	if m := seasonEpRe.FindStringSubmatchIndex(name); m != nil {
		rel.Season = atoiSpan(name, m[2], m[3])
		rel.Episode = atoiSpan(name, m[4], m[5])
		mark(m[0])
	} else if m := crossEpRe.FindStringSubmatchIndex(name); m != nil && m[0] > 0 {
		rel.Season = atoiSpan(name, m[2], m[3])
		rel.Episode = atoiSpan(name, m[4], m[5])
		mark(m[0])
	} else {
		if m := seasonOnlyRe.FindStringSubmatchIndex(name); m != nil && m[0] > 0 {
			rel.Season = atoiSpan(name, m[2], m[3])
			mark(m[0])
		}
		if m := episodeRe.FindStringSubmatchIndex(name); m != nil && m[0] > 0 {
			rel.Episode = atoiSpan(name, m[2], m[3])
			mark(m[0])
		}
	}

	// A leading year is part of the title ("2012", "1917").
	for _, m := range yearRe.FindAllStringSubmatchIndex(name, -1) {
		if m[0] == 0 {
			continue
		}
		rel.Year = atoiSpan(name, m[2], m[3])
		mark(m[0])
		break
	}
	if m := qualityRe.FindStringIndex(name); m != nil && m[0] > 0 {
		mark(m[0])
	}

	title := name[:cut]
	title = strings.NewReplacer("-", " ", ":", " ").Replace(title)
	title = strings.TrimSpace(spaceRe.ReplaceAllString(title, " "))
	if loc := akaRe.FindStringIndex(" " + title + " "); loc != nil {
		title = strings.TrimSpace((" " + title + " ")[:loc[0]])
	}
	rel.Title = foldTitle(title)
	return rel
}

func atoiSpan(s string, from, to int) int {
	if from < 0 || to < 0 {
		return 0
	}
	n, err := strconv.Atoi(s[from:to])
	if err != nil {
		return 0
	}
	return n
}
