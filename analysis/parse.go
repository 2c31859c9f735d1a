package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/llm"
	"github.com/nijaru/yt-sentiment/models"
)

// chunkResult is what one chunk contributed. Nil scalars were absent or unusable.
type chunkResult struct {
	Summary          *string
	Score            *float64
	Verdict          *models.Verdict
	SentimentSummary *string
	ReviewSummary    *string
	BiasIndicators   []string
	AlsoRecommends   []string
	Pros             []string
	Cons             []string
}

type rawResult struct {
	Summary          string          `json:"summary"`
	SentimentScore   json.RawMessage `json:"sentimentScore"`
	Score            json.RawMessage `json:"score"`
	Verdict          string          `json:"verdict"`
	SentimentSummary string          `json:"sentimentSummary"`
	BiasIndicators   stringList      `json:"biasIndicators"`
	AlsoRecommends   stringList      `json:"alsoRecommends"`
	Pros             stringList      `json:"pros"`
	Cons             stringList      `json:"cons"`
	ReviewSummary    string          `json:"reviewSummary"`
}

// stringList accepts a JSON array of strings, a single string or null.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = stringList{one}
		return nil
	}
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(stringList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case map[string]any:
			if name, ok := v["name"].(string); ok {
				out = append(out, name)
			}
		}
	}
	*s = out
	return nil
}

// parseChunk decodes raw model output. A result without a usable summary is
// rejected so the caller can retry with the fallback prompt.
func parseChunk(raw string) (chunkResult, error) {
	const op = "analysis.parseChunk"

	var parsed rawResult
	if err := llm.DecodeJSON(raw, &parsed); err != nil {
		return chunkResult{}, errors.E(errors.KindMalformedLLMResponse, op, err, "unparsable model output")
	}

	summary := strings.TrimSpace(parsed.Summary)
	if summary == "" {
		return chunkResult{}, errors.E(errors.KindMalformedLLMResponse, op, nil, "model output missing summary")
	}

	res := chunkResult{
		Summary:        &summary,
		BiasIndicators: parsed.BiasIndicators,
		AlsoRecommends: parsed.AlsoRecommends,
		Pros:           parsed.Pros,
		Cons:           parsed.Cons,
	}

	if score, ok := parseScore(parsed.SentimentScore); ok {
		res.Score = &score
	} else if score, ok := parseScore(parsed.Score); ok {
		res.Score = &score
	}
	if verdict, ok := parseVerdict(parsed.Verdict); ok {
		res.Verdict = &verdict
	}
	if label, ok := parseLabel(parsed.SentimentSummary); ok {
		res.SentimentSummary = &label
	}
	if review := strings.TrimSpace(parsed.ReviewSummary); review != "" {
		res.ReviewSummary = &review
	}
	return res, nil
}

func parseScore(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "/10"))
		if score, err = strconv.ParseFloat(text, 64); err != nil {
			return 0, false
		}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, false
	}
	return math.Max(0, math.Min(10, score)), true
}

func parseVerdict(v string) (models.Verdict, bool) {
	switch models.Verdict(strings.ToLower(strings.TrimSpace(v))) {
	case models.VerdictPositive:
		return models.VerdictPositive, true
	case models.VerdictNegative:
		return models.VerdictNegative, true
	case models.VerdictMixed:
		return models.VerdictMixed, true
	}
	return "", false
}

func parseLabel(v string) (string, bool) {
	v = strings.TrimSpace(v)
	for _, label := range models.SentimentLabels {
		if strings.EqualFold(label, v) {
			return label, true
		}
	}
	return "", false
}

// LabelForScore maps a score onto the sentiment label set.
func LabelForScore(score float64) string {
	switch {
	case score >= 9.5:
		return models.LabelOverwhelminglyPositive
	case score >= 8.5:
		return models.LabelVeryPositive
	case score >= 7:
		return models.LabelPositive
	case score >= 6:
		return models.LabelMostlyPositive
	case score > 4:
		return models.LabelMixed
	case score > 3:
		return models.LabelMostlyNegative
	case score > 2:
		return models.LabelNegative
	case score > 1:
		return models.LabelVeryNegative
	default:
		return models.LabelOverwhelminglyNegative
	}
}

// VerdictForScore maps a score onto a verdict.
func VerdictForScore(score float64) models.Verdict {
	switch {
	case score >= 6:
		return models.VerdictPositive
	case score <= 4:
		return models.VerdictNegative
	default:
		return models.VerdictMixed
	}
}
