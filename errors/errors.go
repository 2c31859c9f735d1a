package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies a failure so callers can decide between degrading and aborting.
type Kind string

const (
	KindUnknown                    Kind = ""
	KindInvalidInput               Kind = "InvalidInput"
	KindNotFound                   Kind = "NotFound"
	KindInternal                   Kind = "Internal"
	KindVideoUnavailable           Kind = "VideoUnavailable"
	KindPrivateVideo               Kind = "PrivateVideo"
	KindNoCaptionsAvailable        Kind = "NoCaptionsAvailable"
	KindCostBudgetExceeded         Kind = "CostBudgetExceeded"
	KindDurationBudgetExceeded     Kind = "DurationBudgetExceeded"
	KindTranscriptionProviderError Kind = "TranscriptionProviderError"
	KindMetadataFetchError         Kind = "MetadataFetchError"
	KindMalformedLLMResponse       Kind = "MalformedLLMResponse"
	KindPersistenceError           Kind = "PersistenceError"
)

type AppError struct {
	Code    int      `json:"-"`
	Message string   `json:"error"`
	Op      string   `json:"-"`
	Kind    Kind     `json:"kind,omitempty"`
	Stage   string   `json:"stage,omitempty"`
	Trail   []string `json:"debugTrail,omitempty"`
	Err     error    `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func InvalidInput(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
		Kind:    KindInvalidInput,
		Err:     err,
	}
}

func NotFound(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Op:      op,
		Kind:    KindNotFound,
		Err:     err,
	}
}

func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Kind:    KindInternal,
		Err:     err,
	}
}

// E builds an AppError of the given kind with the HTTP code that kind maps to.
func E(kind Kind, op string, err error, message string) *AppError {
	return &AppError{
		Code:    codeFor(kind),
		Message: message,
		Op:      op,
		Kind:    kind,
		Err:     err,
	}
}

// WithStage tags err with the pipeline stage that produced it and attaches the debug trail.
func WithStage(stage string, err error, trail []string) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if As(err, &appErr) {
		tagged := *appErr
		tagged.Stage = stage
		tagged.Trail = append([]string(nil), trail...)
		return &tagged
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
		Op:      stage,
		Kind:    KindInternal,
		Stage:   stage,
		Trail:   append([]string(nil), trail...),
		Err:     err,
	}
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// StageOf returns the stage tag of the first AppError in err's chain.
func StageOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}

// IsKind reports whether any AppError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var appErr *AppError
		if !As(err, &appErr) {
			return false
		}
		if appErr.Kind == kind {
			return true
		}
		err = appErr.Err
	}
	return false
}

// Fatal reports whether a failure of this kind must abort a pipeline run.
func Fatal(kind Kind) bool {
	return kind == KindMetadataFetchError || kind == KindPersistenceError
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	var appErr *AppError
	if As(err, &appErr) && appErr.Code != 0 {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

func codeFor(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound, KindVideoUnavailable, KindNoCaptionsAvailable:
		return http.StatusNotFound
	case KindPrivateVideo:
		return http.StatusForbidden
	case KindCostBudgetExceeded, KindDurationBudgetExceeded:
		return http.StatusUnprocessableEntity
	case KindMetadataFetchError, KindTranscriptionProviderError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Trail joins a debug trail into a single line for logs.
func Trail(trail []string) string {
	return strings.Join(trail, " | ")
}

func New(message string) error {
	return pkgerrors.New(message)
}

func Wrap(err error, message string) error {
	return pkgerrors.Wrap(err, message)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
