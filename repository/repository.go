// Package repository defines persistence for pipeline results.
package repository

import (
	"context"

	"github.com/nijaru/yt-sentiment/models"
)

// Target selects the table a result is written to. Preview runs never touch
// the live table.
type Target string

const (
	TargetLive    Target = "live"
	TargetPreview Target = "preview"
)

// AnalysisRepository stores one record per canonical video URL. Save is a
// last-writer-wins upsert.
type AnalysisRepository interface {
	Save(ctx context.Context, target Target, result *models.PipelineResult) error
	FindByURL(ctx context.Context, target Target, url string) (*models.PipelineResult, error)
	List(ctx context.Context, target Target, limit int) ([]models.PipelineResult, error)
}
