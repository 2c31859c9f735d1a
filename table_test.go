package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nijaru/yt-sentiment/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"one"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "A")
	assert.True(t, strings.HasSuffix(out, "\n"))
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestPrintResult(t *testing.T) {
	result := &models.PipelineResult{
		URL:      "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Metadata: models.VideoMetadata{Title: "Retro review", ChannelTitle: "Chan"},
		Sentiment: models.SentimentResult{
			Verdict:          models.VerdictPositive,
			SentimentSummary: models.LabelPositive,
		},
		Transcript: models.Transcript{Method: models.MethodCaptions, LanguageUsed: "es"},
		BiasDetection: models.BiasDetection{
			BiasesDetected: []models.BiasImpact{{Name: "nostalgia bias", Severity: models.SeverityModerate, ScoreInfluence: -0.4}},
			UnknownLabels:  []string{"vibes bias"},
		},
		BiasAdjustment: models.BiasAdjustment{OriginalScore: 7, BiasAdjustedScore: 6.6, Rationale: "Nostalgia lowered the score."},
	}

	var buf bytes.Buffer
	printResult(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "Retro review")
	assert.Contains(t, out, "captions (es)")
	assert.Contains(t, out, "6.6")
	assert.Contains(t, out, "nostalgia bias")
	assert.Contains(t, out, "-0.4")
	assert.Contains(t, out, "Unrecognized bias labels: vibes bias")
	assert.Contains(t, out, "Nostalgia lowered the score.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	got := truncate("abcdefghij", 5)
	require.Equal(t, 5, len([]rune(got)))
	assert.Equal(t, "abcd…", got)
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["analyze"])
	assert.True(t, names["list"])
}
