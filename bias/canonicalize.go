package bias

import (
	"strings"
	"unicode"
)

const (
	maxEditDistance = 3
	// Shorter fragments would match almost any label.
	minContainedLen = 4
)

var genericTokens = map[string]bool{
	"bias":   true,
	"biased": true,
	"biases": true,
}

// Normalize lowercases a label, folds separators to single spaces and drops
// surrounding punctuation.
func Normalize(label string) string {
	label = strings.ToLower(label)
	label = strings.Map(func(r rune) rune {
		switch {
		case r == '_' || r == '/':
			return ' '
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || unicode.IsSpace(r):
			return r
		default:
			return -1
		}
	}, label)
	return strings.Join(strings.Fields(label), " ")
}

// Canonicalize maps free-form labels onto the vocabulary: exact match, then
// word-level containment in either direction (including known stems), then the
// closest label within edit distance 3. Labels that match nothing pass through
// normalized. The result keeps first-seen order and holds no duplicates.
func Canonicalize(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]bool, len(labels))
	for _, raw := range labels {
		label := Normalize(raw)
		if label == "" || genericTokens[label] {
			continue
		}
		canonical := match(label)
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out
}

func match(label string) string {
	for _, e := range vocabulary {
		if e.Label == label {
			return e.Label
		}
	}

	words := tokens(label)
	for _, e := range vocabulary {
		entryWords := tokens(e.Label)
		if containsRun(words, entryWords) || (len(label) >= minContainedLen && containsRun(entryWords, words)) {
			return e.Label
		}
		for _, stem := range e.Stems {
			if containsRun(words, tokens(stem)) {
				return e.Label
			}
		}
	}

	best, bestDist := "", maxEditDistance+1
	for _, e := range vocabulary {
		if d := Distance(label, e.Label); d < bestDist {
			best, bestDist = e.Label, d
		}
	}
	if best != "" {
		return best
	}
	return label
}

// tokens splits a normalized label into words at spaces and hyphens.
func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
}

// containsRun reports whether run appears as consecutive words of words.
// Pattern words ending in '*' match by prefix.
func containsRun(words, run []string) bool {
	if len(run) == 0 || len(run) > len(words) {
		return false
	}
	for i := 0; i+len(run) <= len(words); i++ {
		ok := true
		for j, pattern := range run {
			if !wordMatches(words[i+j], pattern) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

func wordMatches(word, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(word, prefix)
	}
	return word == pattern
}

// Distance is the Levenshtein edit distance between a and b, counted in runes.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
