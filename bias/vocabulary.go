package bias

import "github.com/nijaru/yt-sentiment/models"

// Canonical bias labels.
const (
	Nostalgia          = "nostalgia bias"
	Influencer         = "influencer bias"
	Sponsored          = "sponsored bias"
	Contrarian         = "contrarian"
	GenreAversion      = "genre aversion"
	ReviewerFatigue    = "reviewer fatigue"
	TechnicalCriticism = "technical criticism"
	Platform           = "platform bias"
	Accessibility      = "accessibility bias"
	StoryDriven        = "story-driven bias"
	Franchise          = "franchise bias"
)

// Entry describes one canonical label and how it moves a score. A positive
// influence means the reviewer likely rated higher than the content deserves.
// Stems match whole words; a word ending in '*' matches as a prefix.
type Entry struct {
	Label     string
	Stems     []string
	Severity  models.Severity
	Influence float64
	Impact    string
}

var vocabulary = []Entry{
	{
		Label:     Nostalgia,
		Stems:     []string{"nostalg*", "rose-tinted", "childhood"},
		Severity:  models.SeverityModerate,
		Influence: 0.4,
		Impact:    "Fond memories of earlier entries may inflate enthusiasm.",
	},
	{
		Label:     Influencer,
		Stems:     []string{"influencer", "hype"},
		Severity:  models.SeverityHigh,
		Influence: 1.0,
		Impact:    "Audience-driven hype can push the reviewer toward praise.",
	},
	{
		Label:     Sponsored,
		Stems:     []string{"sponsored", "sponsorship", "paid promotion", "review copy", "advertis*"},
		Severity:  models.SeverityHigh,
		Influence: 1.2,
		Impact:    "A commercial relationship may soften criticism.",
	},
	{
		Label:     Contrarian,
		Stems:     []string{"contrarian", "hot take"},
		Severity:  models.SeverityModerate,
		Influence: -0.5,
		Impact:    "Going against consensus can exaggerate negatives.",
	},
	{
		Label:     GenreAversion,
		Stems:     []string{"genre averse", "hate* the genre", "dislike* the genre", "not into the genre"},
		Severity:  models.SeverityModerate,
		Influence: -0.6,
		Impact:    "Dislike of the genre can drag the verdict down.",
	},
	{
		Label:     ReviewerFatigue,
		Stems:     []string{"fatigue", "burnout", "burned out"},
		Severity:  models.SeverityLow,
		Influence: -0.3,
		Impact:    "Weariness with similar titles can mute appreciation.",
	},
	{
		Label:     TechnicalCriticism,
		Stems:     []string{"technical", "performance", "framerate"},
		Severity:  models.SeverityLow,
		Influence: -0.2,
		Impact:    "Focus on technical flaws can outweigh other qualities.",
	},
	{
		Label:     Platform,
		Stems:     []string{"platform", "console war"},
		Severity:  models.SeverityModerate,
		Influence: 0.3,
		Impact:    "Loyalty to a platform can color the assessment.",
	},
	{
		Label:     Accessibility,
		Stems:     []string{"accessib*"},
		Severity:  models.SeverityLow,
		Influence: -0.2,
		Impact:    "Accessibility gaps weigh on the reviewer's experience.",
	},
	{
		Label:     StoryDriven,
		Stems:     []string{"story", "narrative"},
		Severity:  models.SeverityLow,
		Influence: 0.3,
		Impact:    "Strong attachment to narrative can overshadow gameplay issues.",
	},
	{
		Label:     Franchise,
		Stems:     []string{"franchise", "fanboy", "fan favorite", "series loyalty"},
		Severity:  models.SeverityModerate,
		Influence: 0.5,
		Impact:    "Attachment to the series can lift the score.",
	},
}

// Lookup returns the entry for a canonical label.
func Lookup(label string) (Entry, bool) {
	for _, e := range vocabulary {
		if e.Label == label {
			return e, true
		}
	}
	return Entry{}, false
}

// IsCanonical reports whether label is part of the vocabulary.
func IsCanonical(label string) bool {
	_, ok := Lookup(label)
	return ok
}
