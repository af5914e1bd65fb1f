package usecase

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mediashare/internal/domain"
)

const maxQueryLength = 100

var (
	mentionRe      = regexp.MustCompile(`@[A-Za-z0-9_]{3,}`)
	linkRe         = regexp.MustCompile(`(?i)(?:https?://|www\.|t\.me/)\S+`)
	htmlTagRe      = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	emptyBracketRe = regexp.MustCompile(`[\[({]\s*[-_.\s]*\s*[\])}]`)
	repeatSepRe    = regexp.MustCompile(`([-_.])[-_.\s]*([-_.])`)
	spaceRe        = regexp.MustCompile(`\s+`)
)

// CleanFileName strips channel tags, links and markup from a file name or
// caption and collapses the separators left behind.
func CleanFileName(name string) string {
	s := htmlTagRe.ReplaceAllString(name, "")
	s = linkRe.ReplaceAllString(s, "")
	s = mentionRe.ReplaceAllString(s, "")
	for {
		next := emptyBracketRe.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	s = repeatSepRe.ReplaceAllStringFunc(s, func(m string) string {
		if strings.ContainsAny(m, ".") {
			return "."
		}
		return m[:1]
	})
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.Trim(s, " -_.|")
}

// ExtractFileInfo derives the stored attributes of a media event. The file
// name falls back to the first caption line.
func ExtractFileInfo(ev domain.RawEvent) (domain.FileInfo, error) {
	if ev.ChannelID == 0 || ev.MessageID <= 0 {
		return domain.FileInfo{}, fmt.Errorf("%w: missing message identity", domain.ErrMalformedEvent)
	}
	switch ev.Kind {
	case domain.MediaDocument, domain.MediaVideo, domain.MediaAudio, domain.MediaPhoto:
	default:
		return domain.FileInfo{}, fmt.Errorf("%w: unsupported media kind %q", domain.ErrMalformedEvent, ev.Kind)
	}

	name := CleanFileName(ev.FileName)
	if name == "" {
		caption, _, _ := strings.Cut(strings.TrimSpace(ev.Caption), "\n")
		name = CleanFileName(caption)
	}
	if name == "" {
		return domain.FileInfo{}, fmt.Errorf("%w: no file name or caption", domain.ErrMalformedEvent)
	}
	size := ev.FileSize
	if size < 0 {
		size = 0
	}
	return domain.FileInfo{
		FileName:  name,
		FileSize:  size,
		Kind:      ev.Kind,
		ChannelID: ev.ChannelID,
		MessageID: ev.MessageID,
	}, nil
}

// SanitizeQuery normalizes free-text search input: NFKC, control characters
// removed, whitespace collapsed, length capped.
func SanitizeQuery(q string) string {
	t := transform.Chain(norm.NFKC, runes.Remove(runes.In(unicode.Cc)))
	out, _, err := transform.String(t, spaceRe.ReplaceAllString(q, " "))
	if err != nil {
		out = q
	}
	out = strings.TrimSpace(spaceRe.ReplaceAllString(out, " "))
	if r := []rune(out); len(r) > maxQueryLength {
		out = strings.TrimSpace(string(r[:maxQueryLength]))
	}
	return out
}

// foldTitle removes diacritics so "Amélie" searches as "Amelie".
func foldTitle(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
