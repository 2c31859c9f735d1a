package llm

import (
	"encoding/json"
	"strings"

	"github.com/nijaru/yt-sentiment/errors"
)

var errNoJSONObject = errors.New("no JSON object found in model output")

// ExtractJSON returns the substring between the first '{' and the last '}' of
// raw, after stripping a surrounding markdown code fence.
func ExtractJSON(raw string) (string, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return "", errNoJSONObject
	}
	return cleaned[start : end+1], nil
}

// DecodeJSON extracts the outermost object from raw and unmarshals it into target.
func DecodeJSON(raw string, target any) error {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), target); err != nil {
		return errors.Wrap(err, "decode model JSON")
	}
	return nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
