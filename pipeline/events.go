package pipeline

import (
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/models"
)

// Stage names one step of a run. Stages execute in declaration order.
type Stage string

const (
	StageFetchMetadata        Stage = "FetchMetadata"
	StageExtractContext       Stage = "ExtractContext"
	StageAcquireTranscript    Stage = "AcquireTranscript"
	StageNormalizeRecord      Stage = "NormalizeRecord"
	StageAnalyzeAndAdjustBias Stage = "AnalyzeAndAdjustBias"
	StagePersist              Stage = "Persist"
	StageFetchPersisted       Stage = "FetchPersisted"
	StageDone                 Stage = "Done"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventResult   EventType = "result"
	EventError    EventType = "error"
)

// Event is one message of a streamed run. A stream always ends with exactly
// one result or error event.
type Event struct {
	Type    EventType              `json:"type"`
	Stage   Stage                  `json:"stage,omitempty"`
	Message string                 `json:"message,omitempty"`
	Result  *models.PipelineResult `json:"result,omitempty"`
	Err     *errors.AppError       `json:"-"`
}
