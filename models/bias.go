package models

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
)

type BiasImpact struct {
	Name               string   `json:"name"`
	Severity           Severity `json:"severity"`
	ImpactOnExperience string   `json:"impactOnExperience"`
	ScoreInfluence     float64  `json:"scoreInfluence"`
	Explanation        string   `json:"explanation"`
}

type BiasAdjustment struct {
	OriginalScore        float64 `json:"originalScore"`
	BiasAdjustedScore    float64 `json:"biasAdjustedScore"`
	TotalScoreAdjustment float64 `json:"totalScoreAdjustment"`
	Rationale            string  `json:"rationale"`
}

// BiasDetection lists the biases found in an analysis.
type BiasDetection struct {
	BiasesDetected []BiasImpact `json:"biasesDetected"`
	UnknownLabels  []string     `json:"unknownLabels,omitempty"`
}
