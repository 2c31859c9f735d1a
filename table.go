package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nijaru/yt-sentiment/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: align})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render() + "\n"
}

func summaryTable(r *models.PipelineResult) string {
	rows := [][]string{
		{"Verdict", string(r.Sentiment.Verdict)},
		{"Sentiment", r.Sentiment.SentimentSummary},
		{"Score", formatScore(r.BiasAdjustment.OriginalScore)},
		{"Bias-adjusted score", formatScore(r.BiasAdjustment.BiasAdjustedScore)},
		{"Transcript", transcriptLabel(r.Transcript)},
		{"Channel", r.Metadata.ChannelTitle},
	}
	if r.Reused {
		rows = append(rows, []string{"Reused", "yes"})
	}
	return renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignLeft})
}

func biasTable(impacts []models.BiasImpact) string {
	rows := make([][]string, 0, len(impacts))
	for _, b := range impacts {
		rows = append(rows, []string{
			b.Name,
			string(b.Severity),
			b.ImpactOnExperience,
			fmt.Sprintf("%+.1f", b.ScoreInfluence),
		})
	}
	return renderTable(
		[]string{"Bias", "Severity", "Impact", "Influence"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	)
}

func listTable(results []models.PipelineResult) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.VideoID,
			truncate(r.Metadata.Title, 48),
			string(r.SentimentSnapshot.Verdict),
			formatScore(r.SentimentSnapshot.BiasAdjustedScore),
			string(r.SentimentSnapshot.Method),
			r.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return renderTable(
		[]string{"Video", "Title", "Verdict", "Adjusted", "Method", "Updated"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func transcriptLabel(t models.Transcript) string {
	switch t.Method {
	case models.MethodCaptions:
		return fmt.Sprintf("captions (%s)", t.LanguageUsed)
	case models.MethodAudio:
		return fmt.Sprintf("audio ($%.4f)", t.CostUSD)
	default:
		return "none"
	}
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
