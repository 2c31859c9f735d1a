package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nijaru/yt-sentiment/config"
	"github.com/nijaru/yt-sentiment/errors"
	"github.com/nijaru/yt-sentiment/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
)

const defaultWhisperTimeout = 5 * time.Minute

// WhisperClient uploads audio to an OpenAI-compatible transcription endpoint.
type WhisperClient struct {
	cfg        config.WhisperConfig
	httpClient *http.Client
	policy     retry.Policy
	logger     *logrus.Entry
}

type WhisperOption func(*WhisperClient)

func WithWhisperHTTPClient(client *http.Client) WhisperOption {
	return func(c *WhisperClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithWhisperRetryPolicy(p retry.Policy) WhisperOption {
	return func(c *WhisperClient) {
		c.policy = p
	}
}

func WithWhisperLogger(logger *logrus.Entry) WhisperOption {
	return func(c *WhisperClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewWhisperClient(cfg config.WhisperConfig, opts ...WhisperOption) *WhisperClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWhisperTimeout
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}

	c := &WhisperClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.DefaultPolicy(),
		logger:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.Logger = c.logger
	return c
}

// Transcribe uploads one audio file and returns its text.
func (c *WhisperClient) Transcribe(ctx context.Context, filePath, language string) (string, error) {
	const op = "transcription.Transcribe"

	if c.cfg.APIKey == "" {
		return "", errors.E(errors.KindTranscriptionProviderError, op, nil, "whisper api key required")
	}

	text, err := retry.Do(ctx, c.policy, op, func(ctx context.Context) (string, error) {
		return c.upload(ctx, filePath, language)
	})
	if err != nil {
		return "", errors.E(errors.KindTranscriptionProviderError, op, err, "audio transcription failed")
	}
	c.logger.WithFields(logrus.Fields{
		"file":  filepath.Base(filePath),
		"chars": len(text),
	}).Debug("Audio segment transcribed")
	return text, nil
}

type whisperResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *WhisperClient) upload(ctx context.Context, filePath, language string) (string, error) {
	body, contentType, err := buildUpload(filePath, c.cfg.Model, language)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", errors.Wrap(err, "whisper request: new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "whisper request: http error")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "whisper request: read body")
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &retry.StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded whisperResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", errors.Wrap(err, "whisper request: decode response")
	}
	if decoded.Error != nil {
		return "", errors.New("whisper request: api error: " + strings.TrimSpace(decoded.Error.Message))
	}
	return strings.TrimSpace(decoded.Text), nil
}

func buildUpload(filePath, model, language string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fw, err := w.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return nil, "", errors.Wrap(err, "whisper request: create form file")
	}
	fd, err := os.Open(filePath)
	if err != nil {
		return nil, "", errors.Wrap(err, "whisper request: open audio")
	}
	defer fd.Close()
	if _, err := io.Copy(fw, fd); err != nil {
		return nil, "", errors.Wrap(err, "whisper request: copy audio")
	}

	if err := w.WriteField("model", model); err != nil {
		return nil, "", errors.Wrap(err, "whisper request: write model")
	}
	if base := baseLanguage(language); base != "" {
		if err := w.WriteField("language", base); err != nil {
			return nil, "", errors.Wrap(err, "whisper request: write language")
		}
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return nil, "", errors.Wrap(err, "whisper request: write format")
	}
	if err := w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "whisper request: close multipart writer")
	}
	return &buf, w.FormDataContentType(), nil
}

// baseLanguage reduces a tag like "en-US" to the ISO-639-1 code the API expects.
func baseLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return ""
	}
	base, _ := parsed.Base()
	return base.String()
}
