package analysis

import (
	"strings"

	"github.com/nijaru/yt-sentiment/models"
)

var sentinelTexts = map[string]bool{
	"":                             true,
	"n/a":                          true,
	"none":                         true,
	"no summary available.":        true,
	"no summary detected.":         true,
	"no review summary available.": true,
	"no review summary detected.":  true,
}

func isSentinelText(s string) bool {
	return sentinelTexts[strings.ToLower(strings.TrimSpace(s))]
}

// aggregate merges chunk results in submission order. Scalars come from the
// first chunk holding a non-default value; lists are unioned and deduplicated
// by trimmed value in first-seen order. Missing verdict and label are derived
// from the chosen score.
func aggregate(results []*chunkResult) models.SentimentResult {
	out := models.DefaultSentiment()

	var (
		haveSummary, haveScore, haveVerdict, haveLabel, haveReview bool
		bias, recs, pros, cons                                     = newUnion(), newUnion(), newUnion(), newUnion()
	)

	for _, r := range results {
		if r == nil {
			continue
		}
		if !haveSummary && r.Summary != nil && !isSentinelText(*r.Summary) {
			out.Summary, haveSummary = *r.Summary, true
		}
		if !haveScore && r.Score != nil && *r.Score != models.DefaultScore {
			out.SentimentScore, haveScore = *r.Score, true
		}
		if !haveVerdict && r.Verdict != nil && *r.Verdict != models.DefaultVerdict {
			out.Verdict, haveVerdict = *r.Verdict, true
		}
		if !haveLabel && r.SentimentSummary != nil && *r.SentimentSummary != models.DefaultLabel {
			out.SentimentSummary, haveLabel = *r.SentimentSummary, true
		}
		if !haveReview && r.ReviewSummary != nil && !isSentinelText(*r.ReviewSummary) {
			out.ReviewSummary, haveReview = *r.ReviewSummary, true
		}
		bias.add(r.BiasIndicators)
		recs.add(r.AlsoRecommends)
		pros.add(r.Pros)
		cons.add(r.Cons)
	}

	if haveScore && !haveVerdict {
		out.Verdict = VerdictForScore(out.SentimentScore)
	}
	if haveScore && !haveLabel {
		out.SentimentSummary = LabelForScore(out.SentimentScore)
	}

	out.BiasIndicators = bias.items
	out.AlsoRecommends = recs.items
	out.Pros = pros.items
	out.Cons = cons.items
	return out
}

type union struct {
	seen  map[string]bool
	items []string
}

func newUnion() *union {
	return &union{seen: make(map[string]bool), items: []string{}}
}

func (u *union) add(values []string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || u.seen[v] {
			continue
		}
		u.seen[v] = true
		u.items = append(u.items, v)
	}
}
