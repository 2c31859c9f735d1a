package analysis

import (
	"strings"
	"unicode"

	"github.com/nijaru/yt-sentiment/models"
)

const DefaultChunkChars = 6000

// SplitChunks cuts text into pieces of at most size runes, preferring to break
// on whitespace in the last tenth of each piece.
func SplitChunks(text string, size int) []models.AnalysisChunk {
	if size <= 0 {
		size = DefaultChunkChars
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var chunks []models.AnalysisChunk
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			floor := end - size/10
			for i := end; i > floor && i > start; i-- {
				if unicode.IsSpace(runes[i-1]) {
					end = i
					break
				}
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, models.AnalysisChunk{Index: len(chunks), Text: piece})
		}
		start = end
	}
	return chunks
}
