package models

type Verdict string

const (
	VerdictPositive Verdict = "positive"
	VerdictNegative Verdict = "negative"
	VerdictMixed    Verdict = "mixed"
)

// Sentiment labels ordered from most positive to most negative.
const (
	LabelOverwhelminglyPositive = "Overwhelmingly Positive"
	LabelVeryPositive           = "Very Positive"
	LabelPositive               = "Positive"
	LabelMostlyPositive         = "Mostly Positive"
	LabelMixed                  = "Mixed"
	LabelMostlyNegative         = "Mostly Negative"
	LabelNegative               = "Negative"
	LabelVeryNegative           = "Very Negative"
	LabelOverwhelminglyNegative = "Overwhelmingly Negative"
)

var SentimentLabels = []string{
	LabelOverwhelminglyPositive,
	LabelVeryPositive,
	LabelPositive,
	LabelMostlyPositive,
	LabelMixed,
	LabelMostlyNegative,
	LabelNegative,
	LabelVeryNegative,
	LabelOverwhelminglyNegative,
}

// Values used when nothing better is known.
const (
	DefaultScore         = 5.0
	DefaultVerdict       = VerdictMixed
	DefaultLabel         = LabelMixed
	DefaultSummary       = "No summary available."
	DefaultReviewSummary = "No review summary available."
)

// SentimentResult is the aggregated analysis of one transcript. Every field is
// always populated; slices are never nil.
type SentimentResult struct {
	Summary          string   `json:"summary"`
	SentimentScore   float64  `json:"sentimentScore"`
	Verdict          Verdict  `json:"verdict"`
	SentimentSummary string   `json:"sentimentSummary"`
	BiasIndicators   []string `json:"biasIndicators"`
	AlsoRecommends   []string `json:"alsoRecommends"`
	Pros             []string `json:"pros"`
	Cons             []string `json:"cons"`
	ReviewSummary    string   `json:"reviewSummary"`
}

func DefaultSentiment() SentimentResult {
	return SentimentResult{
		Summary:          DefaultSummary,
		SentimentScore:   DefaultScore,
		Verdict:          DefaultVerdict,
		SentimentSummary: DefaultLabel,
		BiasIndicators:   []string{},
		AlsoRecommends:   []string{},
		Pros:             []string{},
		Cons:             []string{},
		ReviewSummary:    DefaultReviewSummary,
	}
}

// AnalysisChunk is one slice of transcript sent to the model.
type AnalysisChunk struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	RawLLMOutput string `json:"rawLLMOutput,omitempty"`
}
