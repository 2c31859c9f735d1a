package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"github.com/nijaru/yt-sentiment/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugTitleRunes = 60

// TranscriptHash returns the hex SHA-256 of the normalized transcript text.
func TranscriptHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}

// NormalizeText collapses runs of whitespace and trims the ends.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Slugify builds a URL-safe slug from a title and video id. Accents are
// folded to ASCII; anything else non-alphanumeric becomes a hyphen.
func Slugify(title, videoID string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	count := 0
	lastHyphen := true
	for _, r := range strings.ToLower(folded) {
		if count >= maxSlugTitleRunes {
			break
		}
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastHyphen = false
			count++
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
			count++
		}
	}

	slug := strings.Trim(b.String(), "-")
	id := strings.ToLower(videoID)
	if slug == "" {
		return id
	}
	return slug + "-" + id
}

// ExtractContext derives the cultural context of a review from its metadata.
func ExtractContext(meta models.VideoMetadata, language string) models.CulturalContext {
	cc := models.CulturalContext{
		Language: language,
		Channel:  strings.TrimSpace(meta.ChannelTitle),
		Tags:     []string{},
	}
	if !meta.PublishedAt.IsZero() {
		cc.PublishedYear = meta.PublishedAt.Year()
	}
	seen := map[string]bool{}
	for _, tag := range meta.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		cc.Tags = append(cc.Tags, tag)
	}
	return cc
}

// Snapshot condenses the headline numbers of a run.
func Snapshot(s models.SentimentResult, adj models.BiasAdjustment, method models.Method) models.SentimentSnapshot {
	return models.SentimentSnapshot{
		Score:             s.SentimentScore,
		Verdict:           s.Verdict,
		SentimentSummary:  s.SentimentSummary,
		BiasAdjustedScore: adj.BiasAdjustedScore,
		Method:            method,
	}
}

func progressForTranscript(t models.Transcript) string {
	switch t.Method {
	case models.MethodCaptions:
		return fmt.Sprintf("Transcript acquired from %s captions (%d characters)", t.LanguageUsed, len(t.Text))
	case models.MethodAudio:
		return fmt.Sprintf("Transcript acquired from audio (%.1f minutes, $%.4f)", t.DurationMinutes, t.CostUSD)
	default:
		return "Transcript unavailable, continuing with default sentiment: " + t.Error
	}
}
