package analysis

import (
	"os"
	"strings"

	"github.com/nijaru/yt-sentiment/errors"
	"gopkg.in/yaml.v3"
)

// PromptConfig holds the prompts sent to the model for each chunk.
type PromptConfig struct {
	System   string `yaml:"system"`
	Primary  string `yaml:"primary"`
	Fallback string `yaml:"fallback"`
	General  string `yaml:"general"`
	// PrimaryIsFallback disables the second attempt because the primary prompt
	// is already the explicit one.
	PrimaryIsFallback bool `yaml:"primary_is_fallback"`
}

const defaultSystemPrompt = `You analyze transcripts of video game review videos. You respond with a single JSON object and nothing else.`

const defaultPrimaryPrompt = `Read the transcript excerpt and describe the reviewer's opinion.
Return JSON with these keys:
summary (string), sentimentScore (number 0-10), verdict ("positive", "negative" or "mixed"),
sentimentSummary (one of: Overwhelmingly Positive, Very Positive, Positive, Mostly Positive, Mixed, Mostly Negative, Negative, Very Negative, Overwhelmingly Negative),
biasIndicators (array of short bias labels such as "nostalgia bias" or "sponsored bias"),
alsoRecommends (array of other titles the reviewer recommends), pros (array), cons (array),
reviewSummary (string).`

const defaultFallbackPrompt = `Your previous answer could not be parsed. Respond ONLY with a JSON object, no prose and no code fences, exactly in this shape:
{"summary":"...","sentimentScore":5,"verdict":"mixed","sentimentSummary":"Mixed","biasIndicators":[],"alsoRecommends":[],"pros":[],"cons":[],"reviewSummary":"..."}
Every key is required. Base every value on the transcript excerpt below.`

const defaultGeneralPrompt = `Summarize the transcript excerpt. Return JSON with keys:
summary (string), sentimentScore (number 0-10), verdict ("positive", "negative" or "mixed"),
sentimentSummary (one of: Overwhelmingly Positive, Very Positive, Positive, Mostly Positive, Mixed, Mostly Negative, Negative, Very Negative, Overwhelmingly Negative),
alsoRecommends (array), pros (array), cons (array), reviewSummary (string).
Use an empty array for biasIndicators.`

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() PromptConfig {
	return PromptConfig{
		System:   defaultSystemPrompt,
		Primary:  defaultPrimaryPrompt,
		Fallback: defaultFallbackPrompt,
		General:  defaultGeneralPrompt,
	}
}

// LoadPromptConfig reads a YAML prompt file. Keys missing from the file keep
// their built-in values. An empty path returns the defaults.
func LoadPromptConfig(path string) (PromptConfig, error) {
	const op = "analysis.LoadPromptConfig"

	prompts := DefaultPrompts()
	if strings.TrimSpace(path) == "" {
		return prompts, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return prompts, errors.Internal(op, err, "failed to read prompt config")
	}

	var override PromptConfig
	if err := yaml.Unmarshal(data, &override); err != nil {
		return prompts, errors.InvalidInput(op, err, "invalid prompt config")
	}

	return prompts.merge(override), nil
}

func (p PromptConfig) merge(o PromptConfig) PromptConfig {
	if s := strings.TrimSpace(o.System); s != "" {
		p.System = s
	}
	if s := strings.TrimSpace(o.Primary); s != "" {
		p.Primary = s
	}
	if s := strings.TrimSpace(o.Fallback); s != "" {
		p.Fallback = s
	}
	if s := strings.TrimSpace(o.General); s != "" {
		p.General = s
	}
	p.PrimaryIsFallback = o.PrimaryIsFallback
	return p
}

// ForGeneralSummary returns a copy whose primary prompt asks only for a
// general summary.
func (p PromptConfig) ForGeneralSummary() PromptConfig {
	if strings.TrimSpace(p.General) != "" {
		p.Primary = p.General
	}
	return p
}
