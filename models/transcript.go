package models

type Method string

const (
	MethodCaptions Method = "captions"
	MethodAudio    Method = "audio"
	MethodNone     Method = "none"
)

// Transcript is the text obtained for one video along with how it was obtained.
type Transcript struct {
	VideoID         string   `json:"videoId"`
	Text            string   `json:"text"`
	Method          Method   `json:"method"`
	LanguageUsed    string   `json:"languageUsed,omitempty"`
	CostUSD         float64  `json:"costUSD"`
	DurationMinutes float64  `json:"durationMinutes"`
	Error           string   `json:"error,omitempty"`
	ErrorKind       string   `json:"errorKind,omitempty"`
	DebugTrail      []string `json:"debugTrail"`
}

func (t *Transcript) Empty() bool { return t.Method == MethodNone || t.Text == "" }

// AcquireOptions bounds what transcript acquisition may do for one video.
type AcquireOptions struct {
	Language           string  `json:"language"`
	AllowAudioFallback bool    `json:"allowAudioFallback"`
	MaxCostUSD         float64 `json:"maxCostUSD"`
	MaxDurationMinutes float64 `json:"maxDurationMinutes"`
}

// CaptionEntry is one timed caption line.
type CaptionEntry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}
