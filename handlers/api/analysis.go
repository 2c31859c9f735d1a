package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/pipeline"
	"github.com/nijaru/yt-sentiment/repository"
	"github.com/nijaru/yt-sentiment/validation"
	"github.com/nijaru/yt-sentiment/youtube"
	"github.com/sirupsen/logrus"
)

// Runner executes pipeline runs.
type Runner interface {
	Run(ctx context.Context, videoID string, opts pipeline.Options) (*models.PipelineResult, error)
	Stream(ctx context.Context, videoID string, opts pipeline.Options) <-chan pipeline.Event
}

// ArchiveReader reads results archived outside the database.
type ArchiveReader interface {
	FetchResult(ctx context.Context, target repository.Target, videoID string) (*models.PipelineResult, error)
}

type AnalysisHandler struct {
	runner    Runner
	repo      repository.AnalysisRepository
	archive   ArchiveReader
	validator *validation.Validator
	logger    *logrus.Logger
}

type analyzeRequest struct {
	VideoID     string `json:"videoId"`
	URL         string `json:"url"`
	Language    string `json:"language"`
	GeneralOnly bool   `json:"generalOnly"`
	Preview     bool   `json:"preview"`
}

func NewAnalysisHandler(runner Runner, repo repository.AnalysisRepository, validator *validation.Validator, logger *logrus.Logger) *AnalysisHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AnalysisHandler{
		runner:    runner,
		repo:      repo,
		validator: validator,
		logger:    logger,
	}
}

// parse resolves the video id and run options of a request. An empty
// language falls back to defaultLang.
func (req analyzeRequest) parse(defaultLang string) (string, pipeline.Options, error) {
	ref := req.VideoID
	if ref == "" {
		ref = req.URL
	}
	videoID, err := validation.ExtractVideoID(ref)
	if err != nil {
		return "", pipeline.Options{}, err
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = defaultLang
	}
	lang, err := validation.ValidateLanguage(req.Language)
	if err != nil {
		return "", pipeline.Options{}, err
	}
	return videoID, pipeline.Options{
		Language:    lang,
		GeneralOnly: req.GeneralOnly,
		Preview:     req.Preview,
	}, nil
}

func requestFromQuery(r *http.Request) analyzeRequest {
	q := r.URL.Query()
	general, _ := strconv.ParseBool(q.Get("general"))
	preview, _ := strconv.ParseBool(q.Get("preview"))
	return analyzeRequest{
		VideoID:     q.Get("videoId"),
		URL:         q.Get("url"),
		Language:    q.Get("language"),
		GeneralOnly: general,
		Preview:     preview,
	}
}

// HandleAnalyze handles POST /api/v1/analyze
func (h *AnalysisHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	const op = "AnalysisHandler.HandleAnalyze"

	if err := h.validator.ValidateRequest(r, validation.RequestValidationOpts{
		MaxContentLength: 64 * 1024,
		AllowedMethods:   []string{http.MethodPost},
		RequireJSON:      true,
	}); err != nil {
		respondError(w, r, err)
		return
	}

	var req analyzeRequest
	if err := readJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	videoID, opts, err := req.parse(h.validator.DefaultLanguage())
	if err != nil {
		respondError(w, r, err)
		return
	}

	logger := h.logger.WithFields(logrus.Fields{
		"op":       op,
		"video_id": videoID,
		"language": opts.Language,
	})
	logger.Info("Received analysis request")

	result, err := h.runner.Run(r.Context(), videoID, opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, result)
}

// HandleGetAnalysis handles GET /api/v1/analysis
func (h *AnalysisHandler) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	req := requestFromQuery(r)
	videoID, opts, err := req.parse(h.validator.DefaultLanguage())
	if err != nil {
		respondError(w, r, err)
		return
	}

	target := repository.TargetLive
	if opts.Preview {
		target = repository.TargetPreview
	}
	result, err := h.repo.FindByURL(r.Context(), target, youtube.CanonicalURL(videoID))
	if err != nil && h.archive != nil && errors.IsKind(err, errors.KindNotFound) {
		result, err = h.fetchArchived(r.Context(), target, videoID, err)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, result)
}

// fetchArchived reads a result from the archive after a database miss. An
// archive failure keeps the original not-found error.
func (h *AnalysisHandler) fetchArchived(ctx context.Context, target repository.Target, videoID string, missErr error) (*models.PipelineResult, error) {
	result, err := h.archive.FetchResult(ctx, target, videoID)
	if err != nil {
		h.logger.WithError(err).WithField("video_id", videoID).Debug("Archive miss")
		return nil, missErr
	}
	h.logger.WithField("video_id", videoID).Info("Served analysis from archive")
	return result, nil
}

// HandleStream handles GET /api/v1/analyze/stream. Each pipeline event is
// written as a server-sent event named progress, result or error.
func (h *AnalysisHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "AnalysisHandler.HandleStream"

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.Internal(op, nil, "streaming unsupported"))
		return
	}

	videoID, opts, err := requestFromQuery(r).parse(h.validator.DefaultLanguage())
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := h.logger.WithFields(logrus.Fields{"op": op, "video_id": videoID})
	for ev := range h.runner.Stream(r.Context(), videoID, opts) {
		if err := writeEvent(w, ev); err != nil {
			logger.WithError(err).Warn("Failed to write stream event")
			return
		}
		flusher.Flush()
	}
}

type progressData struct {
	Stage   pipeline.Stage `json:"stage"`
	Message string         `json:"message"`
}

func writeEvent(w http.ResponseWriter, ev pipeline.Event) error {
	var payload interface{}
	switch ev.Type {
	case pipeline.EventResult:
		payload = ev.Result
	case pipeline.EventError:
		if ev.Err != nil {
			payload = errorBody(ev.Err)
		} else {
			payload = &ErrorBody{Message: ev.Message, Stage: string(ev.Stage)}
		}
	default:
		payload = progressData{Stage: ev.Stage, Message: ev.Message}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
