package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/metrics"
	"github.com/nijaru/yt-sentiment/models"
	"github.com/nijaru/yt-sentiment/pipeline"
	"github.com/nijaru/yt-sentiment/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	err      error
	lastID   string
	lastOpts pipeline.Options
}

func (f *fakeRunner) result(videoID string) *models.PipelineResult {
	return &models.PipelineResult{
		VideoID: videoID,
		URL:     "https://www.youtube.com/watch?v=" + videoID,
		Slug:    "review-" + videoID,
		Transcript: models.Transcript{
			Method: models.MethodCaptions,
			Text:   "great game",
		},
	}
}

func (f *fakeRunner) Run(_ context.Context, videoID string, opts pipeline.Options) (*models.PipelineResult, error) {
	f.lastID, f.lastOpts = videoID, opts
	if f.err != nil {
		return nil, f.err
	}
	return f.result(videoID), nil
}

func (f *fakeRunner) Stream(_ context.Context, videoID string, opts pipeline.Options) <-chan pipeline.Event {
	f.lastID, f.lastOpts = videoID, opts
	events := make(chan pipeline.Event, 4)
	events <- pipeline.Event{Type: pipeline.EventProgress, Stage: pipeline.StageFetchMetadata, Message: "Fetched metadata"}
	if f.err != nil {
		appErr := errors.WithStage(string(pipeline.StageFetchMetadata), f.err, []string{"lookup: no prior record"})
		events <- pipeline.Event{Type: pipeline.EventError, Stage: pipeline.StageFetchMetadata, Message: appErr.Error(), Err: appErr}
	} else {
		events <- pipeline.Event{Type: pipeline.EventResult, Stage: pipeline.StageDone, Result: f.result(videoID)}
	}
	close(events)
	return events
}

type fakeRepo struct {
	records map[string]models.PipelineResult
}

func (f *fakeRepo) Save(context.Context, repository.Target, *models.PipelineResult) error { return nil }

func (f *fakeRepo) FindByURL(_ context.Context, target repository.Target, url string) (*models.PipelineResult, error) {
	r, ok := f.records[string(target)+" "+url]
	if !ok {
		return nil, errors.NotFound("fakeRepo.FindByURL", nil, "analysis not found")
	}
	return &r, nil
}

func (f *fakeRepo) List(context.Context, repository.Target, int) ([]models.PipelineResult, error) {
	return nil, nil
}

func newTestServer(t *testing.T, runner *fakeRunner, repo *fakeRepo, counters *metrics.Counters) *httptest.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logrus.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	s := NewServer(cfg, WithLogger(logger), WithServices(runner, repo), WithMetrics(counters))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandleAnalyze(t *testing.T) {
	runner := &fakeRunner{}
	srv := newTestServer(t, runner, &fakeRepo{}, metrics.NewCounters())

	resp, err := http.Post(srv.URL+"/api/v1/analyze", "application/json",
		strings.NewReader(`{"url":"https://youtu.be/abc123XYZ","language":"es-MX","generalOnly":true}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "abc123XYZ", data["videoId"])

	assert.Equal(t, "abc123XYZ", runner.lastID)
	assert.Equal(t, "es", runner.lastOpts.Language)
	assert.True(t, runner.lastOpts.GeneralOnly)
}

func TestHandleAnalyzeRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, &fakeRepo{}, metrics.NewCounters())

	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"not json", "text/plain", `videoId=abc123`},
		{"malformed json", "application/json", `{"videoId":`},
		{"bad url", "application/json", `{"url":"https://vimeo.com/123456"}`},
		{"bad language", "application/json", `{"videoId":"abc123XYZ","language":"@@"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/analyze", tt.contentType, strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode(t, resp)
			assert.Equal(t, false, body["success"])
		})
	}
}

func TestHandleAnalyzeStageError(t *testing.T) {
	cause := errors.E(errors.KindMetadataFetchError, "fake", nil, "metadata fetch failed")
	runner := &fakeRunner{err: errors.WithStage("FetchMetadata", cause, []string{"FetchMetadata: failed"})}
	srv := newTestServer(t, runner, &fakeRepo{}, metrics.NewCounters())

	resp, err := http.Post(srv.URL+"/api/v1/analyze", "application/json", strings.NewReader(`{"videoId":"abc123XYZ"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	body := decode(t, resp)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "FetchMetadata", errBody["stage"])
	assert.Equal(t, "MetadataFetchError", errBody["kind"])
	assert.NotEmpty(t, errBody["debugTrail"])
}

func TestHandleGetAnalysis(t *testing.T) {
	repo := &fakeRepo{records: map[string]models.PipelineResult{
		"preview https://www.youtube.com/watch?v=abc123XYZ": {VideoID: "abc123XYZ", Slug: "preview-slug"},
	}}
	srv := newTestServer(t, &fakeRunner{}, repo, metrics.NewCounters())

	resp, err := http.Get(srv.URL + "/api/v1/analysis?videoId=abc123XYZ&preview=true")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "preview-slug", data["slug"])

	resp, err = http.Get(srv.URL + "/api/v1/analysis?videoId=abc123XYZ")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

type fakeArchive struct {
	results map[string]*models.PipelineResult
	calls   int
}

func (f *fakeArchive) FetchResult(_ context.Context, target repository.Target, videoID string) (*models.PipelineResult, error) {
	f.calls++
	r, ok := f.results[string(target)+" "+videoID]
	if !ok {
		return nil, errors.New("no such key")
	}
	return r, nil
}

func TestHandleGetAnalysisFallsBackToArchive(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	archive := &fakeArchive{results: map[string]*models.PipelineResult{
		"live abc123XYZ": {VideoID: "abc123XYZ", Slug: "archived-slug"},
	}}
	repo := &fakeRepo{records: map[string]models.PipelineResult{
		"live https://www.youtube.com/watch?v=stored12345": {VideoID: "stored12345", Slug: "stored-slug"},
	}}

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	s := NewServer(cfg, WithLogger(logger), WithArchive(archive), WithServices(&fakeRunner{}, repo))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/v1/analysis?videoId=stored12345")
	require.NoError(t, err)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "stored-slug", data["slug"])
	assert.Equal(t, 0, archive.calls)

	resp, err = http.Get(srv.URL + "/api/v1/analysis?videoId=abc123XYZ")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data = decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "archived-slug", data["slug"])

	resp, err = http.Get(srv.URL + "/api/v1/analysis?videoId=missing1234&preview=true")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, 2, archive.calls)
}

func TestHandleAnalyzeUsesDefaultLanguage(t *testing.T) {
	runner := &fakeRunner{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	cfg.Transcript.DefaultLanguage = "de-AT"
	s := NewServer(cfg, WithLogger(logger), WithServices(runner, &fakeRepo{}))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/v1/analyze", "application/json", strings.NewReader(`{"videoId":"abc123XYZ"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	assert.Equal(t, "de", runner.lastOpts.Language)
}

type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, r io.Reader) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestHandleStream(t *testing.T) {
	runner := &fakeRunner{}
	srv := newTestServer(t, runner, &fakeRepo{}, metrics.NewCounters())

	resp, err := http.Get(srv.URL + "/api/v1/analyze/stream?videoId=abc123XYZ&preview=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp.Body)
	require.Len(t, events, 2)
	assert.Equal(t, "progress", events[0].name)
	assert.Contains(t, events[0].data, `"stage":"FetchMetadata"`)
	assert.Equal(t, "result", events[1].name)
	assert.Contains(t, events[1].data, `"slug":"review-abc123XYZ"`)
	assert.True(t, runner.lastOpts.Preview)
}

func TestHandleStreamError(t *testing.T) {
	runner := &fakeRunner{err: errors.E(errors.KindMetadataFetchError, "fake", nil, "metadata fetch failed")}
	srv := newTestServer(t, runner, &fakeRepo{}, metrics.NewCounters())

	resp, err := http.Get(srv.URL + "/api/v1/analyze/stream?videoId=abc123XYZ")
	require.NoError(t, err)
	defer resp.Body.Close()

	events := readEvents(t, resp.Body)
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].name)

	var body ErrorBody
	require.NoError(t, json.Unmarshal([]byte(events[1].data), &body))
	assert.Equal(t, "FetchMetadata", body.Stage)
	assert.Equal(t, []string{"lookup: no prior record"}, body.DebugTrail)
}

func TestHandleStreamRejectsBadID(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{}, &fakeRepo{}, metrics.NewCounters())

	resp, err := http.Get(srv.URL + "/api/v1/analyze/stream")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	counters := metrics.NewCounters()
	counters.Inc(metrics.PipelineRuns)
	srv := newTestServer(t, &fakeRunner{}, &fakeRepo{}, counters)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := decode(t, resp)["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "pipeline_runs 1")
}
