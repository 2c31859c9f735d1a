package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestInternal(t *testing.T) {
	err := Internal("test.Op", nil, "test message")

	if err.Code != http.StatusInternalServerError {
		t.Errorf("expected code %d, got %d", http.StatusInternalServerError, err.Code)
	}

	if err.Error() != "test message" {
		t.Errorf("expected error string 'test message', got '%s'", err.Error())
	}
}

func TestErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("cause error")
	err := InvalidInput("test.Op", cause, "test message")

	expected := "test message: cause error"
	if err.Error() != expected {
		t.Errorf("expected '%s', got '%s'", expected, err.Error())
	}
	if !Is(err, cause) {
		t.Errorf("expected wrapped cause to be reachable")
	}
}

func TestWithStage(t *testing.T) {
	base := E(KindMetadataFetchError, "youtube.FetchMetadata", fmt.Errorf("boom"), "metadata fetch failed")
	trail := []string{"FetchMetadata: started"}

	tagged := WithStage("FetchMetadata", base, trail)

	if tagged.Stage != "FetchMetadata" {
		t.Errorf("expected stage FetchMetadata, got %q", tagged.Stage)
	}
	if KindOf(tagged) != KindMetadataFetchError {
		t.Errorf("expected kind %s, got %s", KindMetadataFetchError, KindOf(tagged))
	}
	if len(tagged.Trail) != 1 {
		t.Errorf("expected trail length 1, got %d", len(tagged.Trail))
	}
	if base.Stage != "" {
		t.Errorf("original error must not be mutated")
	}
	if got := tagged.Error(); got != "FetchMetadata: metadata fetch failed: boom" {
		t.Errorf("unexpected message %q", got)
	}

	plain := WithStage("Persist", fmt.Errorf("disk full"), nil)
	if StageOf(plain) != "Persist" || KindOf(plain) != KindInternal {
		t.Errorf("unexpected wrap of plain error: %+v", plain)
	}

	if WithStage("Persist", nil, nil) != nil {
		t.Errorf("expected nil for nil error")
	}
}

func TestIsKind(t *testing.T) {
	inner := E(KindPrivateVideo, "youtube.FetchCaptions", nil, "private video")
	outer := E(KindTranscriptionProviderError, "transcription.Acquire", inner, "acquire failed")

	tests := []struct {
		name     string
		err      error
		kind     Kind
		expected bool
	}{
		{"outer kind", outer, KindTranscriptionProviderError, true},
		{"nested kind", outer, KindPrivateVideo, true},
		{"missing kind", outer, KindCostBudgetExceeded, false},
		{"wrapped with pkg/errors", Wrap(inner, "context"), KindPrivateVideo, true},
		{"non-custom error", fmt.Errorf("standard error"), KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsKind(tt.err, tt.kind); got != tt.expected {
				t.Errorf("IsKind() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"invalid input", InvalidInput("op", nil, "bad"), http.StatusBadRequest},
		{"not found", NotFound("op", nil, "missing"), http.StatusNotFound},
		{"budget", E(KindCostBudgetExceeded, "op", nil, "too expensive"), http.StatusUnprocessableEntity},
		{"metadata", E(KindMetadataFetchError, "op", nil, "upstream"), http.StatusBadGateway},
		{"plain", fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestFatal(t *testing.T) {
	if !Fatal(KindMetadataFetchError) || !Fatal(KindPersistenceError) {
		t.Errorf("metadata and persistence failures must be fatal")
	}
	if Fatal(KindNoCaptionsAvailable) || Fatal(KindMalformedLLMResponse) {
		t.Errorf("transcript and analysis failures must not be fatal")
	}
}
