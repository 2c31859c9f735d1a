package models

import (
	"time"
)

type VideoMetadata struct {
	VideoID      string            `json:"videoId"`
	Title        string            `json:"title"`
	ChannelTitle string            `json:"channelTitle"`
	ChannelID    string            `json:"channelId"`
	PublishedAt  time.Time         `json:"publishedAt"`
	Description  string            `json:"description"`
	Thumbnails   map[string]string `json:"thumbnails,omitempty"`
	Tags         []string          `json:"tags"`
}

type CulturalContext struct {
	Language        string   `json:"language"`
	CaptionLanguage string   `json:"captionLanguage,omitempty"`
	Channel         string   `json:"channel"`
	PublishedYear   int      `json:"publishedYear,omitempty"`
	Tags            []string `json:"tags"`
}

type SentimentSnapshot struct {
	Score             float64 `json:"score"`
	Verdict           Verdict `json:"verdict"`
	SentimentSummary  string  `json:"sentimentSummary"`
	BiasAdjustedScore float64 `json:"biasAdjustedScore"`
	Method            Method  `json:"method"`
}

// PipelineResult is the persisted outcome of one run, keyed by canonical URL.
type PipelineResult struct {
	ID                string            `json:"id"`
	VideoID           string            `json:"videoId"`
	URL               string            `json:"url"`
	Slug              string            `json:"slug"`
	TranscriptHash    string            `json:"transcriptHash"`
	Transcript        Transcript        `json:"transcript"`
	Sentiment         SentimentResult   `json:"sentiment"`
	BiasDetection     BiasDetection     `json:"biasDetection"`
	BiasAdjustment    BiasAdjustment    `json:"biasAdjustment"`
	SentimentSnapshot SentimentSnapshot `json:"sentimentSnapshot"`
	CulturalContext   CulturalContext   `json:"culturalContext"`
	Metadata          VideoMetadata     `json:"metadata"`
	GeneralOnly       bool              `json:"generalOnly"`
	// Degraded marks an analysis built from defaults because no model output parsed.
	Degraded          bool              `json:"degraded,omitempty"`
	Reused            bool              `json:"reused,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}
